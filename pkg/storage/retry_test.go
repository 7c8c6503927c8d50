package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/williamokano/cloudconfig/pkg/storage"
)

func fastRetry(attempts int) storage.RetryConfig {
	return storage.RetryConfig{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestWithRetry(t *testing.T) {
	t.Run("default_config_single_attempt", func(t *testing.T) {
		calls := 0
		err := storage.WithRetry(context.Background(), storage.DefaultRetryConfig(), func() error {
			calls++
			return storage.ErrConnFailed
		})

		assert.ErrorIs(t, err, storage.ErrConnFailed)
		assert.Equal(t, 1, calls)
	})

	t.Run("retryable_error_until_success", func(t *testing.T) {
		calls := 0
		err := storage.WithRetry(context.Background(), fastRetry(3), func() error {
			calls++
			if calls < 3 {
				return storage.ErrTimeout
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("retryable_error_exhausts_attempts", func(t *testing.T) {
		calls := 0
		err := storage.WithRetry(context.Background(), fastRetry(3), func() error {
			calls++
			return storage.WrapError("s3", "get", storage.ErrConnFailed)
		})

		assert.ErrorIs(t, err, storage.ErrConnFailed)
		assert.Equal(t, 3, calls)
	})

	t.Run("non_retryable_error", func(t *testing.T) {
		calls := 0
		err := storage.WithRetry(context.Background(), fastRetry(3), func() error {
			calls++
			return storage.ErrNotFound
		})

		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.Equal(t, 1, calls)
	})

	t.Run("critical_error", func(t *testing.T) {
		calls := 0
		err := storage.WithRetry(context.Background(), fastRetry(3), func() error {
			calls++
			return storage.ErrAuthFailed
		})

		assert.ErrorIs(t, err, storage.ErrAuthFailed)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero_attempts_still_runs_once", func(t *testing.T) {
		calls := 0
		err := storage.WithRetry(context.Background(), storage.RetryConfig{}, func() error {
			calls++
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("context_canceled_while_waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cfg := storage.RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, BackoffFactor: 1}

		err := storage.WithRetry(ctx, cfg, func() error {
			cancel()
			return storage.ErrConnFailed
		})

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		critical  bool
	}{
		{name: "conn_failed", err: storage.ErrConnFailed, retryable: true},
		{name: "timeout", err: storage.ErrTimeout, retryable: true},
		{name: "auth_failed", err: storage.ErrAuthFailed, critical: true},
		{name: "invalid_config", err: storage.ErrInvalidConfig, critical: true},
		{name: "not_found", err: storage.ErrNotFound},
		{name: "wrapped_timeout", err: storage.WrapError("s3", "get", storage.ErrTimeout), retryable: true},
		{name: "other", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, storage.IsRetryable(tt.err))
			assert.Equal(t, tt.critical, storage.IsCritical(tt.err))
		})
	}
}

func TestWrapContextError(t *testing.T) {
	err := storage.WrapContextError("local:bkt", "read", context.DeadlineExceeded)
	assert.ErrorIs(t, err, storage.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "read (local:bkt): operation timeout: context deadline exceeded", err.Error())

	err = storage.WrapContextError("local:bkt", "read", context.Canceled)
	assert.NotErrorIs(t, err, storage.ErrTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}
