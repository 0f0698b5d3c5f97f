package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"payment-service/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
)

func retryCfg(maxRetries int) RetryConfig {
	return RetryConfig{MaxRetries: maxRetries, InitialInterval: time.Millisecond}
}

func TestWithRetryRecoversFromTransientFault(t *testing.T) {
	calls := 0
	result, err := WithRetry(context.Background(), retryCfg(2), zap.NewNop(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", &apperr.GatewayError{Provider: "toss", Status: 503, Retryable: true}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestWithRetryFailsFastOnFinalError(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), retryCfg(3), zap.NewNop(), func() (string, error) {
		calls++
		return "", &apperr.GatewayError{Provider: "toss", Status: 400, Retryable: false}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "provider rejections must not be retried")
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), retryCfg(2), zap.NewNop(), func() (int, error) {
		calls++
		return 0, &apperr.GatewayError{Provider: "toss", Status: 500, Retryable: true}
	})
	require.Error(t, err)
	assert.True(t, apperr.IsRetryable(err))
	assert.Equal(t, 3, calls)
}

func TestWithRetryIgnoresNonGatewayErrors(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), retryCfg(3), zap.NewNop(), func() (int, error) {
		calls++
		return 0, errors.New("plain failure")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WithRetry(ctx, retryCfg(2), zap.NewNop(), func() (int, error) {
		return 0, &apperr.GatewayError{Provider: "toss", Retryable: true}
	})
	assert.ErrorIs(t, err, context.Canceled)
}
