package embedder

import (
	"context"
	"time"
)

// Retry configuration defaults.
const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 100 * time.Millisecond
	defaultMaxDelay    = 5 * time.Second
	defaultMultiplier  = 2.0
)

// retryPolicy configures exponential-backoff retries for provider calls.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	multiplier  float64
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		multiplier:  defaultMultiplier,
	}
}

// withRetry runs fn with exponential backoff. Context cancellation
// stops retrying immediately and wins over the provider error.
func withRetry[T any](ctx context.Context, policy retryPolicy, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := policy.baseDelay

	for attempt := 0; attempt < policy.maxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt == policy.maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * policy.multiplier)
			if delay > policy.maxDelay {
				delay = policy.maxDelay
			}
		}
	}
	return zero, lastErr
}
