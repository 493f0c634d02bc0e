package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/signal-desk/internal/models"
)

var tradeCols = []string{
	"id", "signal_id", "pair", "direction", "entry_price", "exit_price",
	"stop_loss", "take_profit", "reasoning", "voice_note_url", "screenshot_url",
	"result", "pips", "created_by", "created_at", "updated_at", "ticker",
}

func TestCreateTrade(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	signalID := 1
	stop := decimal.RequireFromString("1.08")

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO trades")).
		WithArgs(
			int64(1), "EURUSD", "long", sqlmock.AnyArg(),
			nil, sqlmock.AnyArg(), nil,
			nil, nil, nil,
			"pending", sqlmock.AnyArg(), "alice", now, now,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	trade := &models.Trade{
		SignalID: &signalID, Pair: "EURUSD", Direction: "long",
		EntryPrice: decimal.RequireFromString("1.085"), StopLoss: &stop,
		Result: "pending", Pips: decimal.Zero, CreatedBy: "alice",
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.CreateTrade(context.Background(), trade))
	assert.Equal(t, 1, trade.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTrade_NoSignalLink(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("INSERT INTO trades").
		WithArgs(nil, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	trade := &models.Trade{Pair: "GBPUSD", Result: "pending", CreatedBy: "Anonymous"}
	require.NoError(t, db.CreateTrade(context.Background(), trade))
	assert.Equal(t, 7, trade.ID)
}

func TestCreateTrade_Error(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("INSERT INTO trades").WillReturnError(errors.New("boom"))

	err := db.CreateTrade(context.Background(), &models.Trade{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create trade")
}

func TestListTrades_OuterJoinTicker(t *testing.T) {
	db, mock := newMockDB(t)
	t1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN signals s ON s.id = t.signal_id")).
		WillReturnRows(sqlmock.NewRows(tradeCols).
			AddRow(2, 999, "USDJPY", "short", "151.2", nil, nil, nil, nil, nil, nil,
				"pending", "0", "bob", t2, t2, "").
			AddRow(1, 1, "EURUSD", "long", "1.085", "1.09", "1.08", "1.1", "breakout", nil, "https://x/1.png",
				"closed-win", "50", "alice", t1, t1, "EURUSD"))

	trades, err := db.ListTrades(context.Background())
	require.NoError(t, err)
	require.Len(t, trades, 2)

	dangling := trades[0]
	assert.Equal(t, 2, dangling.ID)
	require.NotNil(t, dangling.SignalID)
	assert.Equal(t, 999, *dangling.SignalID)
	assert.Equal(t, "", dangling.Ticker)
	assert.Nil(t, dangling.ExitPrice)
	assert.Nil(t, dangling.Reasoning)

	linked := trades[1]
	assert.Equal(t, "EURUSD", linked.Ticker)
	require.NotNil(t, linked.ExitPrice)
	assert.Equal(t, "1.09", linked.ExitPrice.String())
	require.NotNil(t, linked.Reasoning)
	assert.Equal(t, "breakout", *linked.Reasoning)
	assert.Nil(t, linked.VoiceNoteURL)
	assert.True(t, decimal.NewFromInt(50).Equal(linked.Pips))
}

func TestListTrades_QueryError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM trades t").WillReturnError(errors.New("down"))

	_, err := db.ListTrades(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get trades")
}
