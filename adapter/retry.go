package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// retryBase is the wait before the first retry. Each later retry doubles
// the wait.
const retryBase = 500 * time.Millisecond

// Permanent wraps err so Deliver stops retrying and surfaces it as is.
// Use it for failures a retry can never repair, such as a rejected
// payload.
func Permanent(err error) error { return &permanentError{err: err} }

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Deliver invokes send until it succeeds, attempts run out, or send
// reports a Permanent failure. Between attempts it waits an exponentially
// growing backoff; a context that ends during the wait or before an
// attempt aborts delivery.
func Deliver(ctx context.Context, attempts int, send func(context.Context) error) error {
	wait := retryBase
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("backoff interrupted: %w", ctx.Err())
			case <-timer.C:
			}
			wait *= 2
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = send(ctx)
		if lastErr == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, lastErr)
}
