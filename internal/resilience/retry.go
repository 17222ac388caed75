package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/fieldops/riskmeter/internal/errors"
)

// RetryConfig configures retry behavior with exponential backoff.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
	RetryableFunc func(error) bool
}

// DefaultRetryConfig returns sensible defaults for storage operations.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
		RetryableFunc: errors.IsRetryableError,
	}
}

// Retry executes fn with the default retry configuration. The scoring
// pipeline itself never retries internally; this wraps whole runs at the
// call site, e.g. the snapshot scheduler.
func Retry(ctx context.Context, operation string, fn func() error) error {
	return RetryWithConfig(ctx, operation, DefaultRetryConfig(), fn)
}

// RetryWithConfig executes fn with the given retry configuration.
func RetryWithConfig(ctx context.Context, operation string, config RetryConfig, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s cancelled: %w", operation, err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if config.RetryableFunc != nil && !config.RetryableFunc(lastErr) {
			return lastErr
		}

		if attempt == config.MaxAttempts {
			break
		}

		delay := calculateDelay(config, attempt)
		slog.Warn("Operation failed, retrying",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", config.MaxAttempts,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled during backoff: %w", operation, ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, config.MaxAttempts, lastErr)
}

// calculateDelay computes the backoff delay for an attempt.
func calculateDelay(config RetryConfig, attempt int) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffFactor, float64(attempt-1))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	if config.Jitter {
		// up to 25% jitter to avoid thundering herds
		delay += delay * 0.25 * rand.Float64()
	}

	return time.Duration(delay)
}
