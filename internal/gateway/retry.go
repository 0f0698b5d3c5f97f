package gateway

import (
	"context"
	"time"

	"payment-service/internal/apperr"

	"go.uber.org/zap"
)

// RetryConfig bounds the retry budget for gateway calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
}

// WithRetry runs fn, retrying only retryable gateway faults with exponential
// backoff. Non-retryable errors fail fast. The attempt budget is small; a
// payment stuck behind a flaky provider moves to FAILED rather than blocking.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, logger *zap.Logger, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error
	interval := cfg.InitialInterval

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}

		if !apperr.IsRetryable(lastErr) || attempt == cfg.MaxRetries {
			return result, lastErr
		}

		logger.Warn("Retrying gateway call",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", cfg.MaxRetries),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(interval):
		}
		interval *= 2
	}

	return result, lastErr
}
