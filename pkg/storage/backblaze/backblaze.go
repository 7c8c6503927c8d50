package backblaze

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kurin/blazer/b2"

	"github.com/williamokano/cloudconfig/pkg/storage"
)

type Backend struct {
	name   string
	client *b2.Client
	bucket *b2.Bucket
	retry  storage.RetryConfig
}

func init() {
	storage.RegisterBackend("backblaze", func(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
		return New(ctx, cfg)
	})
}

// New creates a new Backblaze B2 backend. The access key is the B2 account
// id and the secret key the application key.
func New(ctx context.Context, cfg storage.Config) (*Backend, error) {
	b2Cfg, err := parseConfig(cfg)
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "init", err)
	}

	client, err := b2.NewClient(ctx, b2Cfg.AccountID, b2Cfg.ApplicationKey)
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "init", classifyAuthError(err))
	}

	bucket, err := client.Bucket(ctx, b2Cfg.BucketName)
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "get bucket", classifyError(err))
	}

	return &Backend{
		name:   cfg.Name,
		client: client,
		bucket: bucket,
		retry:  cfg.Retry,
	}, nil
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return "backblaze" }

// Read downloads a file from B2
func (b *Backend) Read(ctx context.Context, key string) ([]byte, error) {
	var body []byte

	err := storage.WithRetry(ctx, b.retry, func() error {
		reader := b.bucket.Object(key).NewReader(ctx)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		if err != nil {
			return storage.WrapError(b.name, "get "+key, classifyError(err))
		}

		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

// Close releases resources
func (b *Backend) Close() error {
	return nil
}

func parseConfig(cfg storage.Config) (*Config, error) {
	b2Cfg := &Config{
		AccountID:      cfg.AccessKey,
		ApplicationKey: cfg.SecretKey,
		BucketName:     cfg.Bucket,
	}

	if b2Cfg.AccountID == "" {
		return nil, fmt.Errorf("missing required option account_id: %w", storage.ErrInvalidConfig)
	}
	if b2Cfg.ApplicationKey == "" {
		return nil, fmt.Errorf("missing required option application_key: %w", storage.ErrInvalidConfig)
	}
	if b2Cfg.BucketName == "" {
		return nil, fmt.Errorf("missing required option bucket_name: %w", storage.ErrInvalidConfig)
	}

	return b2Cfg, nil
}

func classifyError(err error) error {
	if b2.IsNotExist(err) {
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	}
	return storage.WrapContextError("b2", "request", err)
}

// classifyAuthError reports a failed account authorization, keeping the cause
func classifyAuthError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", storage.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", storage.ErrAuthFailed, err)
}
