package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/signal-desk/internal/models"
)

const signalColumns = `id, ticker, action, price, timestamp, received_at,
		       analyzed, analyzed_by, analyzed_at, response_time_seconds`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSignal(row rowScanner) (*models.Signal, error) {
	var s models.Signal
	var analyzedBy sql.NullString
	var analyzedAt sql.NullTime
	var responseTime decimal.NullDecimal

	err := row.Scan(
		&s.ID, &s.Ticker, &s.Action, &s.Price, &s.Timestamp, &s.ReceivedAt,
		&s.Analyzed, &analyzedBy, &analyzedAt, &responseTime,
	)
	if err != nil {
		return nil, err
	}

	if analyzedBy.Valid {
		s.AnalyzedBy = &analyzedBy.String
	}
	if analyzedAt.Valid {
		at := analyzedAt.Time
		s.AnalyzedAt = &at
	}
	if responseTime.Valid {
		rt := responseTime.Decimal
		s.ResponseTimeSeconds = &rt
	}
	return &s, nil
}

// CreateSignal inserts a new, unanalyzed signal
func (db *DB) CreateSignal(ctx context.Context, s *models.Signal) error {
	query := `
		INSERT INTO signals (ticker, action, price, timestamp, received_at, analyzed)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING id
	`
	err := db.conn.QueryRowContext(ctx, query,
		s.Ticker, s.Action, s.Price, s.Timestamp, s.ReceivedAt,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to create signal: %w", err)
	}
	s.Analyzed = false
	return nil
}

// GetSignal retrieves a signal by ID
func (db *DB) GetSignal(ctx context.Context, id int) (*models.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE id = $1`

	s, err := scanSignal(db.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", models.ErrSignalNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get signal %d: %w", id, err)
	}
	return s, nil
}

// ListSignals returns all signals, most recently received first
func (db *DB) ListSignals(ctx context.Context) ([]*models.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals ORDER BY received_at DESC, id DESC`
	return db.querySignals(ctx, query)
}

// ListAnalyzedSignals returns every signal that carries a response time
func (db *DB) ListAnalyzedSignals(ctx context.Context) ([]*models.Signal, error) {
	query := `
		SELECT ` + signalColumns + `
		FROM signals
		WHERE analyzed = TRUE AND response_time_seconds IS NOT NULL
		ORDER BY id
	`
	return db.querySignals(ctx, query)
}

func (db *DB) querySignals(ctx context.Context, query string, args ...interface{}) ([]*models.Signal, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	defer rows.Close()

	signals := []*models.Signal{}
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		signals = append(signals, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate signals: %w", err)
	}
	return signals, nil
}

// MarkSignalAnalyzed records the analysis of a signal. The update only
// applies while analyzed is still false, so among concurrent callers at most
// one succeeds; the others get ErrSignalAlreadyAnalyzed.
func (db *DB) MarkSignalAnalyzed(ctx context.Context, id int, operator string, analyzedAt time.Time, responseTime decimal.Decimal) (*models.Signal, error) {
	query := `
		UPDATE signals SET
			analyzed = TRUE, analyzed_by = $2, analyzed_at = $3, response_time_seconds = $4
		WHERE id = $1 AND analyzed = FALSE
		RETURNING ` + signalColumns

	s, err := scanSignal(db.conn.QueryRowContext(ctx, query, id, operator, analyzedAt, responseTime))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to mark signal %d analyzed: %w", id, err)
	}

	exists, err := db.SignalExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %d", models.ErrSignalNotFound, id)
	}
	return nil, fmt.Errorf("%w: %d", models.ErrSignalAlreadyAnalyzed, id)
}

// SignalExists checks if a signal exists
func (db *DB) SignalExists(ctx context.Context, id int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM signals WHERE id = $1)`
	var exists bool
	if err := db.conn.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check signal existence: %w", err)
	}
	return exists, nil
}

// CountStaleSignals counts unanalyzed signals received before olderThan
func (db *DB) CountStaleSignals(ctx context.Context, olderThan time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM signals WHERE analyzed = FALSE AND received_at < $1`
	var n int
	if err := db.conn.QueryRowContext(ctx, query, olderThan).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count stale signals: %w", err)
	}
	return n, nil
}
