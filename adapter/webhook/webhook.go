// Package webhook publishes run summaries to an HTTP endpoint.
//
// Each finished run produces one JSON POST. Network errors and 5xx
// responses are retried with exponential backoff; 4xx responses mean the
// endpoint rejected the payload, so the publish fails without retrying.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fathomline/sounder/adapter"
	"github.com/fathomline/sounder/iox"
)

// DefaultTimeout bounds a single POST round trip.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is how many times a failed publish is retried.
const DefaultRetries = 3

// Config configures the webhook adapter.
type Config struct {
	// URL is the HTTP endpoint to POST to (required).
	URL string
	// Headers are custom HTTP headers added to each request.
	Headers map[string]string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 3).
	Retries int
}

// Adapter publishes run summary events via HTTP POST.
type Adapter struct {
	cfg    Config
	client *http.Client
}

// New creates a webhook adapter from cfg. The URL must be present; unset
// timeout and retry count fall back to the package defaults.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Adapter{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

// StatusError reports a non-2xx HTTP response. The code lets callers tell
// retriable (5xx) from non-retriable (4xx) failures apart.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Publish sends the event as one JSON POST, retrying network errors and
// 5xx responses with backoff. A 4xx response fails immediately.
func (a *Adapter) Publish(ctx context.Context, event *adapter.RunSummaryEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	err = adapter.Deliver(ctx, 1+a.cfg.Retries, func(ctx context.Context) error {
		err := a.post(ctx, body)
		var se *StatusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
			return adapter.Permanent(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("webhook: publish run summary: %w", err)
	}
	return nil
}

// post performs a single POST and returns nil on a 2xx response.
func (a *Adapter) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range a.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	// Drain so the transport can reuse the connection.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Close releases idle transport connections.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
