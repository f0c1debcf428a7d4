package rag

import (
	"context"
	"time"

	"github.com/fwojciec/ragchat"
	"go.uber.org/zap"
)

// DefaultRetryDelays returns the backoff delays for API retries: 1s, 2s, 4s.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
}

// withRetry calls fn until it succeeds, returns an error other than
// EUNAVAILABLE, or the delays are exhausted. Each delay is waited before
// the next attempt.
func withRetry[T any](ctx context.Context, op string, delays []time.Duration, logger *zap.Logger, fn func(context.Context) (T, error)) (T, error) {
	maxAttempts := len(delays) + 1 // 1 initial + N retries

	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		// Only transient failures are worth another attempt.
		if ragchat.ErrorCode(err) != ragchat.EUNAVAILABLE || attempt >= maxAttempts-1 {
			break
		}

		logger.Warn("retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+2),
			zap.Duration("delay", delays[attempt]),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delays[attempt]):
		}
	}

	return zero, lastErr
}
