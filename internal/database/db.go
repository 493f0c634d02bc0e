package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/trogers1052/signal-desk/internal/config"
	"github.com/trogers1052/signal-desk/internal/models"
)

// DB wraps the database connection pool
type DB struct {
	conn *sql.DB
}

// New opens the connection pool and verifies it is reachable
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	conn, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// NewFromConn wraps an already-open pool
func NewFromConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnreachable, err)
	}
	return nil
}

// Counts returns the number of stored signals and trades
func (db *DB) Counts(ctx context.Context) (*models.StoreCounts, error) {
	query := `SELECT (SELECT COUNT(*) FROM signals), (SELECT COUNT(*) FROM trades)`

	var counts models.StoreCounts
	if err := db.conn.QueryRowContext(ctx, query).Scan(&counts.Signals, &counts.Trades); err != nil {
		return nil, fmt.Errorf("%w: failed to count rows: %v", models.ErrStoreUnreachable, err)
	}
	return &counts, nil
}
