package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/signal-desk/internal/config"
	"github.com/trogers1052/signal-desk/internal/events"
)

// Client wraps the Redis client and publishes lifecycle events
type Client struct {
	rdb     redis.UniversalClient
	channel string
}

// New creates a new Redis client and verifies the connection
func New(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewFromClient(rdb, cfg.EventsChannel), nil
}

// NewFromClient wraps an existing client
func NewFromClient(rdb redis.UniversalClient, channel string) *Client {
	return &Client{rdb: rdb, channel: channel}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Publish implements events.Publisher. Events go to the configured channel
// and to a per-type channel suffixed with the event type.
func (c *Client) Publish(ctx context.Context, evt *events.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pipe := c.rdb.Pipeline()
	pipe.Publish(ctx, c.channel, payload)
	pipe.Publish(ctx, c.channel+":"+evt.EventType, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", evt.EventType, err)
	}
	return nil
}

// Subscribe returns a subscription to the events channel
func (c *Client) Subscribe(ctx context.Context) *redis.PubSub {
	return c.rdb.Subscribe(ctx, c.channel)
}
