package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/signal-desk/internal/ingest"
	"github.com/trogers1052/signal-desk/internal/models"
)

// TokenHeader is the message header that carries the alert secret
const TokenHeader = "X-Webhook-Token"

// AlertIngester defines the ingestion operation the consumer drives
type AlertIngester interface {
	IngestRaw(ctx context.Context, body []byte, headerToken, queryToken string) (*models.Signal, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// AlertsConsumer reads alert payloads from a topic and ingests them with the
// same token rule as the webhook
type AlertsConsumer struct {
	reader   messageReader
	topic    string
	ingester AlertIngester
	log      zerolog.Logger
}

// NewAlertsConsumer creates a new Kafka consumer for alert messages
func NewAlertsConsumer(brokers []string, topic, groupID string, ingester AlertIngester, log zerolog.Logger) *AlertsConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID + "-alerts",
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &AlertsConsumer{
		reader:   reader,
		topic:    topic,
		ingester: ingester,
		log:      log.With().Str("component", "kafka_alerts").Logger(),
	}
}

// Start begins consuming messages until ctx is cancelled
func (c *AlertsConsumer) Start(ctx context.Context) error {
	c.log.Info().Str("topic", c.topic).Msg("starting alerts consumer")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("alerts consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.log.Error().Err(err).Msg("error reading alert message")
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.log.Warn().Err(err).Int("partition", msg.Partition).Int64("offset", msg.Offset).
					Msg("alert message dropped")
			}
		}
	}
}

// processMessage ingests a single message. Rejected alerts are not retried.
func (c *AlertsConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	s, err := c.ingester.IngestRaw(ctx, msg.Value, headerValue(msg, TokenHeader), "")
	if err != nil {
		if errors.Is(err, ingest.ErrUnauthorized) || errors.Is(err, ingest.ErrMalformed) {
			return err
		}
		return fmt.Errorf("failed to ingest alert: %w", err)
	}

	c.log.Debug().Int("signal_id", s.ID).Int("partition", msg.Partition).Int64("offset", msg.Offset).
		Msg("alert ingested")
	return nil
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Close closes the Kafka consumer
func (c *AlertsConsumer) Close() error {
	return c.reader.Close()
}
