package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quickRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), quickRetryConfig(3), func() error {
		attempts++
		if attempts < 3 {
			return TransientIOError("fetch timed out", nil)
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_FailsAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), quickRetryConfig(2), func() error {
		attempts++
		return errors.New("still down")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, 3, attempts, "initial attempt plus two retries")
}

func TestRetry_NonRetryableServerErrorAbortsImmediately(t *testing.T) {
	attempts := 0
	valErr := ValidationError("total must be > 0", nil)
	err := Retry(context.Background(), quickRetryConfig(5), func() error {
		attempts++
		return valErr
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "a non-retryable error must not be retried")
	assert.Same(t, valErr, err, "the error is returned as-is, not wrapped in a retry count")
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Retry(ctx, quickRetryConfig(5), func() error {
		attempts++
		return errors.New("never reached")
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, attempts, "a cancelled context prevents even the first attempt")
}

func TestRetry_RespectsContextDeadlineDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	cfg := RetryConfig{
		MaxRetries:   10,
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2.0,
	}
	err := Retry(ctx, cfg, func() error {
		return errors.New("always failing")
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRetry_BackoffGrowsAndCapsAtMaxDelay(t *testing.T) {
	var timestamps []time.Time
	cfg := RetryConfig{
		MaxRetries:   4,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
	}

	_ = Retry(context.Background(), cfg, func() error {
		timestamps = append(timestamps, time.Now())
		return errors.New("always failing")
	})

	require.Len(t, timestamps, 5)
	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		assert.GreaterOrEqual(t, gap, 10*time.Millisecond)
		assert.LessOrEqual(t, gap.Milliseconds(), int64(60), "delay must stay near the 20ms cap")
	}
}

func TestRetryWithResult_ReturnsValue(t *testing.T) {
	attempts := 0
	result, err := RetryWithResult(context.Background(), quickRetryConfig(3), func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, TransientIOError("fetch failed", nil)
		}
		return 42, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestRetryWithResult_ReturnsZeroOnFailure(t *testing.T) {
	result, err := RetryWithResult(context.Background(), quickRetryConfig(1), func() (string, error) {
		return "partial", errors.New("always failing")
	})

	require.Error(t, err)
	assert.Equal(t, "", result, "a failed retry run must not leak a partial result")
}
