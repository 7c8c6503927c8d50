package backblaze

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamokano/cloudconfig/pkg/storage"
)

func TestParseConfig(t *testing.T) {
	t.Run("maps_connection_parameters", func(t *testing.T) {
		cfg, err := parseConfig(storage.Config{AccessKey: "acct", SecretKey: "appkey", Bucket: "configs"})

		require.NoError(t, err)
		assert.Equal(t, "acct", cfg.AccountID)
		assert.Equal(t, "appkey", cfg.ApplicationKey)
		assert.Equal(t, "configs", cfg.BucketName)
	})

	tests := []struct {
		name string
		cfg  storage.Config
	}{
		{name: "missing_account", cfg: storage.Config{SecretKey: "k", Bucket: "b"}},
		{name: "missing_key", cfg: storage.Config{AccessKey: "a", Bucket: "b"}},
		{name: "missing_bucket", cfg: storage.Config{AccessKey: "a", SecretKey: "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig(tt.cfg)
			assert.ErrorIs(t, err, storage.ErrInvalidConfig)
		})
	}
}

func TestClassifyError(t *testing.T) {
	err := classifyError(errors.New("boom"))
	assert.NotErrorIs(t, err, storage.ErrNotFound)
	assert.Contains(t, err.Error(), "boom")
}

func TestClassifyAuthError(t *testing.T) {
	t.Run("keeps_cause", func(t *testing.T) {
		cause := errors.New("b2: 401 bad_auth_token")

		err := classifyAuthError(cause)

		assert.ErrorIs(t, err, storage.ErrAuthFailed)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "bad_auth_token")
	})

	t.Run("deadline_is_timeout", func(t *testing.T) {
		err := classifyAuthError(fmt.Errorf("authorize account: %w", context.DeadlineExceeded))

		assert.ErrorIs(t, err, storage.ErrTimeout)
		assert.NotErrorIs(t, err, storage.ErrAuthFailed)
	})

	t.Run("canceled_is_untouched", func(t *testing.T) {
		assert.ErrorIs(t, classifyAuthError(context.Canceled), context.Canceled)
		assert.NotErrorIs(t, classifyAuthError(context.Canceled), storage.ErrAuthFailed)
	})
}
