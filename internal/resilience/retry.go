package resilience

import (
	"context"
	"time"
)

// RetryableError marks an error as eligible for retry (network errors
// and 5xx upstream responses). Errors that do not implement this, or
// report false, surface immediately: 4xx errors and
// deadline-exceeded fail fast.
type RetryableError interface {
	Retryable() bool
}

// WithRetry calls op up to attempts times with a fixed delay between
// attempts, stopping early on a non-retryable error or when ctx's
// deadline is exceeded. It never retries once ctx is done.
func WithRetry(ctx context.Context, attempts int, delay time.Duration, op func(ctx context.Context) error) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if re, ok := lastErr.(RetryableError); !ok || !re.Retryable() {
			return lastErr
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
