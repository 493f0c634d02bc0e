// Package events defines the lifecycle event envelope shared by the Kafka,
// Redis and Telegram publishers.
package events

import (
	"context"
	"errors"
	"time"
)

// Event types emitted by the service.
const (
	SignalReceived = "SIGNAL_RECEIVED"
	SignalAnalyzed = "SIGNAL_ANALYZED"
	TradeCreated   = "TRADE_CREATED"
	SignalsStale   = "SIGNALS_STALE"
)

const (
	source        = "signal-desk"
	schemaVersion = "1"
)

// Event is the envelope written to every sink.
type Event struct {
	EventType     string      `json:"event_type"`
	Source        string      `json:"source"`
	SchemaVersion string      `json:"schema_version"`
	Timestamp     time.Time   `json:"timestamp"`
	Data          interface{} `json:"data"`
}

// New builds an event stamped with the given time.
func New(eventType string, data interface{}, at time.Time) *Event {
	return &Event{
		EventType:     eventType,
		Source:        source,
		SchemaVersion: schemaVersion,
		Timestamp:     at.UTC(),
		Data:          data,
	}
}

// StaleReport is the payload of a SIGNALS_STALE event.
type StaleReport struct {
	Pending   int       `json:"pending"`
	OlderThan time.Time `json:"older_than"`
}

// Publisher delivers events to one sink.
type Publisher interface {
	Publish(ctx context.Context, evt *Event) error
}

// Fanout publishes to every non-nil publisher and joins their errors.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ctx context.Context, evt *Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(context.Context, *Event) error { return nil }

type timeoutPublisher struct {
	next    Publisher
	timeout time.Duration
}

// WithTimeout bounds each Publish on next to d. Delivery is detached from
// the caller's cancellation since it runs after the write has committed.
// A non-positive d only detaches.
func WithTimeout(next Publisher, d time.Duration) Publisher {
	return timeoutPublisher{next: next, timeout: d}
}

// Publish implements Publisher.
func (p timeoutPublisher) Publish(ctx context.Context, evt *Event) error {
	ctx = context.WithoutCancel(ctx)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.next.Publish(ctx, evt)
}
