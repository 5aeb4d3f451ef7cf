// Package retry provides a small exponential-backoff helper. It is used for
// establishing executor connectivity at startup; dispatched jobs themselves
// are never retried.
package retry

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 1 * time.Second
	defaultMaxDelay     = 10 * time.Second
)

// Config represents retry configuration.
type Config struct {
	MaxAttempts    int           // maximum number of attempts (default: 3)
	InitialBackoff time.Duration // initial backoff duration (default: 1s)
	MaxBackoff     time.Duration // maximum backoff duration (default: 10s)
}

// Do executes fn until it succeeds or the attempts are exhausted, backing
// off exponentially between attempts. Context cancellation is honored
// during the backoff waits.
func Do(ctx context.Context, fn func() error, cfg Config) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialDelay
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxDelay
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		select {
		case <-time.After(backoff(attempt, cfg.InitialBackoff, cfg.MaxBackoff)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", cfg.MaxAttempts, lastErr)
}

// backoff returns 2^attempt * initial, capped at max.
func backoff(attempt int, initial, max time.Duration) time.Duration {
	d := time.Duration(1<<uint(attempt)) * initial
	if d > max {
		return max
	}
	return d
}
