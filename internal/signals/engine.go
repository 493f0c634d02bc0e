// Package signals implements the signal lifecycle: alerts are recorded as
// received, then claimed exactly once by an operator whose response time is
// measured from receipt.
package signals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/signal-desk/internal/events"
	"github.com/trogers1052/signal-desk/internal/lenient"
	"github.com/trogers1052/signal-desk/internal/metrics"
	"github.com/trogers1052/signal-desk/internal/models"
)

// Store defines the persistence operations the engine needs
type Store interface {
	CreateSignal(ctx context.Context, s *models.Signal) error
	GetSignal(ctx context.Context, id int) (*models.Signal, error)
	ListSignals(ctx context.Context) ([]*models.Signal, error)
	// MarkSignalAnalyzed must only update a signal that is still unanalyzed
	// and return models.ErrSignalAlreadyAnalyzed otherwise.
	MarkSignalAnalyzed(ctx context.Context, id int, operator string, analyzedAt time.Time, responseTime decimal.Decimal) (*models.Signal, error)
}

// CreateRequest carries raw alert fields. Values may be strings, numbers or
// nil; malformed values are replaced with defaults.
type CreateRequest struct {
	Ticker    interface{} `json:"ticker"`
	Action    interface{} `json:"action"`
	Price     interface{} `json:"price"`
	Timestamp interface{} `json:"timestamp"`
}

// AnalyzeResult is the outcome of a successful analysis
type AnalyzeResult struct {
	Signal       *models.Signal  `json:"signal"`
	ResponseTime decimal.Decimal `json:"response_time"`
}

// Engine enforces the receive -> analyze transition
type Engine struct {
	store     Store
	publisher events.Publisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewEngine creates a new Engine
func NewEngine(store Store, publisher events.Publisher, log zerolog.Logger) *Engine {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Engine{
		store:     store,
		publisher: publisher,
		log:       log.With().Str("component", "signals").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create records a new unanalyzed signal. It never rejects malformed input.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*models.Signal, error) {
	now := e.now()

	ticker, tickerDefaulted := lenient.String(req.Ticker, models.DefaultTicker)
	action, actionDefaulted := lenient.String(req.Action, models.DefaultAction)
	price, priceDefaulted := lenient.Bounded(req.Price, decimal.Zero, models.PricePrecision, models.PricePlaces)
	timestamp, timeDefaulted := lenient.Time(req.Timestamp, now)

	if tickerDefaulted || actionDefaulted || priceDefaulted || timeDefaulted {
		e.log.Warn().
			Bool("ticker_defaulted", tickerDefaulted).
			Bool("action_defaulted", actionDefaulted).
			Bool("price_defaulted", priceDefaulted).
			Bool("timestamp_defaulted", timeDefaulted).
			Interface("raw_price", req.Price).
			Interface("raw_timestamp", req.Timestamp).
			Msg("alert fields replaced with defaults")
	}

	s := &models.Signal{
		Ticker:     ticker,
		Action:     action,
		Price:      price,
		Timestamp:  timestamp.UTC(),
		ReceivedAt: now,
	}
	if err := e.store.CreateSignal(ctx, s); err != nil {
		return nil, err
	}

	metrics.SignalsReceived.Inc()
	e.log.Info().Int("signal_id", s.ID).Str("ticker", s.Ticker).Str("action", s.Action).
		Str("price", s.Price.String()).Msg("signal received")
	e.publish(ctx, events.New(events.SignalReceived, s, now))

	return s, nil
}

// Analyze claims a signal for operator and records its response time.
// A signal can be analyzed once; later calls fail with ErrSignalAlreadyAnalyzed
// whoever makes them.
func (e *Engine) Analyze(ctx context.Context, id int, operator string) (*AnalyzeResult, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		operator = models.DefaultOperator
	}

	current, err := e.store.GetSignal(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Analyzed {
		metrics.AnalyzeConflicts.Inc()
		return nil, fmt.Errorf("%w: %d", models.ErrSignalAlreadyAnalyzed, id)
	}

	now := e.now()
	responseTime := models.ResponseTime(current.ReceivedAt, now)
	if responseTime.IsNegative() {
		e.log.Warn().Int("signal_id", id).Str("response_time", responseTime.String()).
			Time("received_at", current.ReceivedAt).Msg("negative response time, clock skew")
	}

	updated, err := e.store.MarkSignalAnalyzed(ctx, id, operator, now, responseTime)
	if err != nil {
		if errors.Is(err, models.ErrSignalAlreadyAnalyzed) {
			metrics.AnalyzeConflicts.Inc()
			e.log.Info().Int("signal_id", id).Str("operator", operator).Msg("analyze lost race")
		}
		return nil, err
	}

	metrics.SignalsAnalyzed.WithLabelValues(operator).Inc()
	metrics.ResponseTime.Observe(responseTime.InexactFloat64())
	e.log.Info().Int("signal_id", id).Str("operator", operator).
		Str("response_time", responseTime.StringFixed(models.ResponseTimePlaces)).Msg("signal analyzed")
	e.publish(ctx, events.New(events.SignalAnalyzed, updated, now))

	return &AnalyzeResult{Signal: updated, ResponseTime: responseTime}, nil
}

// List returns all signals, most recently received first
func (e *Engine) List(ctx context.Context) ([]*models.Signal, error) {
	return e.store.ListSignals(ctx)
}

// publish is best-effort; failures never fail the lifecycle operation.
func (e *Engine) publish(ctx context.Context, evt *events.Event) {
	if err := e.publisher.Publish(ctx, evt); err != nil {
		e.log.Warn().Err(err).Str("event_type", evt.EventType).Msg("failed to publish event")
	}
}
