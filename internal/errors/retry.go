package errors

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig bounds the exponential backoff applied between attempts.
type RetryConfig struct {
	// MaxRetries is how many times the call is retried after the initial
	// attempt.
	MaxRetries int

	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the growing wait between retries. Zero means no cap.
	MaxDelay time.Duration

	// Multiplier grows the wait after each retry.
	Multiplier float64
}

// Retry runs fn up to 1+MaxRetries times with exponential backoff.
// A *ServerError marked non-retryable aborts the loop immediately:
// retrying a validation or storage failure cannot change the outcome.
// Context cancellation is honored both between attempts and while
// waiting out a backoff delay.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult is Retry for calls that produce a value. On failure the
// zero value is returned, never a partial result from an earlier attempt.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	delay := cfg.InitialDelay

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if se, ok := err.(*ServerError); ok && !se.Retryable {
			return zero, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
