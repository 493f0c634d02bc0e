// Package ingest authenticates inbound alerts and turns them into signals.
package ingest

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/trogers1052/signal-desk/internal/metrics"
	"github.com/trogers1052/signal-desk/internal/models"
	"github.com/trogers1052/signal-desk/internal/signals"
)

// ErrUnauthorized is returned when an alert carries no valid shared secret.
var ErrUnauthorized = errors.New("unauthorized")

// ErrMalformed is returned when an alert body is not a JSON object.
var ErrMalformed = errors.New("malformed alert")

// Creator records signals
type Creator interface {
	Create(ctx context.Context, req signals.CreateRequest) (*models.Signal, error)
}

// Alert is a TradingView-style payload. Field values are kept raw so the
// engine can apply its defaults.
type Alert struct {
	Ticker    interface{}
	Action    interface{}
	Price     interface{}
	Timestamp interface{}
	Token     string
}

var (
	tickerKeys = []string{"ticker", "symbol"}
	actionKeys = []string{"action", "side"}
	priceKeys  = []string{"price", "close"}
	timeKeys   = []string{"time", "timestamp"}
	tokenKeys  = []string{"token", "secret"}
)

// ParseAlert decodes a JSON object into an Alert. Numbers are preserved as
// json.Number and unknown fields are ignored.
func ParseAlert(body []byte) (*Alert, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	alert := &Alert{
		Ticker:    first(raw, tickerKeys),
		Action:    first(raw, actionKeys),
		Price:     first(raw, priceKeys),
		Timestamp: first(raw, timeKeys),
	}
	if tok, ok := first(raw, tokenKeys).(string); ok {
		alert.Token = tok
	}
	return alert, nil
}

func first(raw map[string]interface{}, keys []string) interface{} {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// ResolveToken picks the first non-empty token in precedence order:
// header, query parameter, payload.
func ResolveToken(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// Gateway checks the shared secret before any signal is created
type Gateway struct {
	secret  []byte
	creator Creator
	log     zerolog.Logger
}

// NewGateway creates a new Gateway
func NewGateway(secret string, creator Creator, log zerolog.Logger) *Gateway {
	return &Gateway{
		secret:  []byte(secret),
		creator: creator,
		log:     log.With().Str("component", "ingest").Logger(),
	}
}

// Authorize compares token against the configured secret in constant time.
// An unset secret rejects everything.
func (g *Gateway) Authorize(token string) error {
	if len(g.secret) == 0 || token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare(g.secret, []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Ingest authorizes token and records the alert as a new signal.
func (g *Gateway) Ingest(ctx context.Context, token string, alert *Alert) (*models.Signal, error) {
	if err := g.Authorize(token); err != nil {
		metrics.AlertsRejected.WithLabelValues("unauthorized").Inc()
		g.log.Warn().Bool("token_present", token != "").Msg("alert rejected")
		return nil, err
	}
	if alert == nil {
		alert = &Alert{}
	}

	return g.creator.Create(ctx, signals.CreateRequest{
		Ticker:    alert.Ticker,
		Action:    alert.Action,
		Price:     alert.Price,
		Timestamp: alert.Timestamp,
	})
}

// IngestRaw parses body and ingests it. The payload token is used only when
// no header or query token was supplied.
func (g *Gateway) IngestRaw(ctx context.Context, body []byte, headerToken, queryToken string) (*models.Signal, error) {
	alert, err := ParseAlert(body)
	if err != nil {
		if g.Authorize(ResolveToken(headerToken, queryToken)) != nil {
			metrics.AlertsRejected.WithLabelValues("unauthorized").Inc()
			return nil, ErrUnauthorized
		}
		metrics.AlertsRejected.WithLabelValues("malformed").Inc()
		return nil, err
	}
	return g.Ingest(ctx, ResolveToken(headerToken, queryToken, alert.Token), alert)
}
