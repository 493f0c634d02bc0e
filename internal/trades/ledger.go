// Package trades records operator trades, optionally linked to a signal.
package trades

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/signal-desk/internal/events"
	"github.com/trogers1052/signal-desk/internal/lenient"
	"github.com/trogers1052/signal-desk/internal/metrics"
	"github.com/trogers1052/signal-desk/internal/models"
)

// Store defines the persistence operations the ledger needs
type Store interface {
	CreateTrade(ctx context.Context, t *models.Trade) error
	ListTrades(ctx context.Context) ([]*models.TradeWithTicker, error)
}

// CreateRequest carries raw trade fields as decoded from JSON
type CreateRequest struct {
	SignalID      interface{} `json:"signal_id"`
	Pair          interface{} `json:"pair"`
	Direction     interface{} `json:"direction"`
	EntryPrice    interface{} `json:"entry_price"`
	ExitPrice     interface{} `json:"exit_price"`
	StopLoss      interface{} `json:"stop_loss"`
	TakeProfit    interface{} `json:"take_profit"`
	Reasoning     interface{} `json:"reasoning"`
	VoiceNoteURL  interface{} `json:"voice_note_url"`
	ScreenshotURL interface{} `json:"screenshot_url"`
	Result        interface{} `json:"result"`
	Pips          interface{} `json:"pips"`
	CreatedBy     interface{} `json:"created_by"`
}

// Ledger creates and lists trades
type Ledger struct {
	store     Store
	publisher events.Publisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewLedger creates a new Ledger
func NewLedger(store Store, publisher events.Publisher, log zerolog.Logger) *Ledger {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Ledger{
		store:     store,
		publisher: publisher,
		log:       log.With().Str("component", "trades").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create records a trade. Missing or malformed fields are defaulted rather
// than rejected, and signal_id is stored without checking the signal exists.
func (l *Ledger) Create(ctx context.Context, req CreateRequest) (*models.Trade, error) {
	now := l.now()

	pair, pairDefaulted := lenient.String(req.Pair, "")
	direction, directionDefaulted := lenient.String(req.Direction, "")
	entryPrice, entryDefaulted := lenient.Bounded(req.EntryPrice, decimal.Zero, models.PricePrecision, models.PricePlaces)
	result, _ := lenient.String(req.Result, models.DefaultTradeResult)
	pips, _ := lenient.Bounded(req.Pips, decimal.Zero, models.PipsPrecision, models.PipsPlaces)
	createdBy, _ := lenient.String(req.CreatedBy, models.DefaultOperator)

	if pairDefaulted || directionDefaulted || entryDefaulted {
		l.log.Warn().
			Bool("pair_missing", pairDefaulted).
			Bool("direction_missing", directionDefaulted).
			Bool("entry_price_defaulted", entryDefaulted).
			Msg("trade recorded with missing required fields")
	}

	t := &models.Trade{
		SignalID:      lenient.OptionalInt(req.SignalID),
		Pair:          pair,
		Direction:     direction,
		EntryPrice:    entryPrice,
		ExitPrice:     lenient.OptionalBounded(req.ExitPrice, models.PricePrecision, models.PricePlaces),
		StopLoss:      lenient.OptionalBounded(req.StopLoss, models.PricePrecision, models.PricePlaces),
		TakeProfit:    lenient.OptionalBounded(req.TakeProfit, models.PricePrecision, models.PricePlaces),
		Reasoning:     lenient.OptionalString(req.Reasoning),
		VoiceNoteURL:  lenient.OptionalString(req.VoiceNoteURL),
		ScreenshotURL: lenient.OptionalString(req.ScreenshotURL),
		Result:        result,
		Pips:          pips,
		CreatedBy:     createdBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := l.store.CreateTrade(ctx, t); err != nil {
		return nil, err
	}

	metrics.TradesCreated.WithLabelValues(t.Result).Inc()
	evt := l.log.Info().Int("trade_id", t.ID).Str("pair", t.Pair).Str("created_by", t.CreatedBy)
	if t.SignalID != nil {
		evt = evt.Int("signal_id", *t.SignalID)
	}
	evt.Msg("trade created")

	if err := l.publisher.Publish(ctx, events.New(events.TradeCreated, t, now)); err != nil {
		l.log.Warn().Err(err).Msg("failed to publish trade event")
	}
	return t, nil
}

// List returns all trades, newest first, each with its linked signal's ticker
func (l *Ledger) List(ctx context.Context) ([]*models.TradeWithTicker, error) {
	return l.store.ListTrades(ctx)
}
