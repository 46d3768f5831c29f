// Package redis publishes run summaries over Redis pub/sub.
//
// Each finished run produces one PUBLISH of the JSON-encoded summary to a
// configurable channel. Connection failures are retried with exponential
// backoff before the publish is given up.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fathomline/sounder/adapter"
)

// DefaultChannel is the pub/sub channel summaries go to unless the
// configuration names another.
const DefaultChannel = "sounder:run_summary"

// DefaultTimeout bounds a single PUBLISH round trip.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is how many times a failed publish is retried.
const DefaultRetries = 3

// Config configures the Redis pub/sub adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: sounder:run_summary).
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 3).
	Retries int
}

// Adapter publishes run summary events via Redis PUBLISH.
type Adapter struct {
	cfg    Config
	client *goredis.Client
}

// New creates a Redis pub/sub adapter from cfg. The URL must be present
// and parseable; unset channel, timeout, and retry count fall back to the
// package defaults.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Adapter{cfg: cfg, client: goredis.NewClient(opts)}, nil
}

// Publish sends the event as one JSON PUBLISH to the configured channel,
// retrying failed attempts with backoff.
func (a *Adapter) Publish(ctx context.Context, event *adapter.RunSummaryEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	err = adapter.Deliver(ctx, 1+a.cfg.Retries, func(ctx context.Context) error {
		opCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
		return a.client.Publish(opCtx, a.cfg.Channel, body).Err()
	})
	if err != nil {
		return fmt.Errorf("redis: publish run summary: %w", err)
	}
	return nil
}

// Close releases the client's connection pool.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
