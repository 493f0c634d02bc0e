package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/signal-desk/internal/models"
)

// CreateTrade inserts a new trade. SignalID is stored as given; it is not
// checked against the signals table.
func (db *DB) CreateTrade(ctx context.Context, t *models.Trade) error {
	query := `
		INSERT INTO trades (
			signal_id, pair, direction, entry_price, exit_price, stop_loss, take_profit,
			reasoning, voice_note_url, screenshot_url, result, pips, created_by,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	err := db.conn.QueryRowContext(ctx, query,
		nullInt(t.SignalID), t.Pair, t.Direction, t.EntryPrice,
		nullDecimal(t.ExitPrice), nullDecimal(t.StopLoss), nullDecimal(t.TakeProfit),
		nullString(t.Reasoning), nullString(t.VoiceNoteURL), nullString(t.ScreenshotURL),
		t.Result, t.Pips, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}
	return nil
}

// ListTrades returns all trades, newest first, with the ticker of the linked
// signal when the link resolves
func (db *DB) ListTrades(ctx context.Context) ([]*models.TradeWithTicker, error) {
	query := `
		SELECT t.id, t.signal_id, t.pair, t.direction, t.entry_price, t.exit_price,
		       t.stop_loss, t.take_profit, t.reasoning, t.voice_note_url, t.screenshot_url,
		       t.result, t.pips, t.created_by, t.created_at, t.updated_at,
		       COALESCE(s.ticker, '')
		FROM trades t
		LEFT JOIN signals s ON s.id = t.signal_id
		ORDER BY t.created_at DESC, t.id DESC
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}
	defer rows.Close()

	trades := []*models.TradeWithTicker{}
	for rows.Next() {
		var t models.TradeWithTicker
		var signalID sql.NullInt64
		var exitPrice, stopLoss, takeProfit decimal.NullDecimal
		var reasoning, voiceNoteURL, screenshotURL sql.NullString

		err := rows.Scan(
			&t.ID, &signalID, &t.Pair, &t.Direction, &t.EntryPrice, &exitPrice,
			&stopLoss, &takeProfit, &reasoning, &voiceNoteURL, &screenshotURL,
			&t.Result, &t.Pips, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
			&t.Ticker,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}

		if signalID.Valid {
			id := int(signalID.Int64)
			t.SignalID = &id
		}
		t.ExitPrice = decimalPtr(exitPrice)
		t.StopLoss = decimalPtr(stopLoss)
		t.TakeProfit = decimalPtr(takeProfit)
		t.Reasoning = stringPtr(reasoning)
		t.VoiceNoteURL = stringPtr(voiceNoteURL)
		t.ScreenshotURL = stringPtr(screenshotURL)

		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}
	return trades, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullDecimal(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func decimalPtr(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
