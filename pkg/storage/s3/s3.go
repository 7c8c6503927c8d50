package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/williamokano/cloudconfig/pkg/storage"
)

const defaultRegion = "us-east-1"

type Backend struct {
	name       string
	bucket     string
	retry      storage.RetryConfig
	downloader *manager.Downloader
}

func init() {
	storage.RegisterBackend("s3", func(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
		return New(ctx, cfg)
	})
}

// New creates a new S3 backend using static credentials
func New(ctx context.Context, cfg storage.Config) (*Backend, error) {
	s3Cfg, err := parseConfig(cfg)
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "init", err)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(s3Cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				s3Cfg.AccessKeyID,
				s3Cfg.SecretAccessKey,
				"",
			),
		),
	)
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "init", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3Cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3Cfg.Endpoint)
		}
		o.UsePathStyle = s3Cfg.ForcePathStyle
	})

	if s3Cfg.CheckBucket {
		_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(s3Cfg.Bucket),
		})
		if err != nil {
			return nil, storage.WrapError(cfg.Name, "connection test", classifyError(err))
		}
	}

	return &Backend{
		name:       cfg.Name,
		bucket:     s3Cfg.Bucket,
		retry:      cfg.Retry,
		downloader: manager.NewDownloader(client),
	}, nil
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return "s3" }

// Read downloads an object from S3 into memory
func (b *Backend) Read(ctx context.Context, key string) ([]byte, error) {
	var body []byte

	err := storage.WithRetry(ctx, b.retry, func() error {
		buf := manager.NewWriteAtBuffer([]byte{})

		_, err := b.downloader.Download(ctx, buf, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return storage.WrapError(b.name, "get "+key, classifyError(err))
		}

		body = buf.Bytes()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

// Close is a no-op for S3
func (b *Backend) Close() error {
	return nil
}

// Helper functions

func parseConfig(cfg storage.Config) (*Config, error) {
	s3Cfg := &Config{
		Region:          defaultRegion,
		Bucket:          cfg.Bucket,
		AccessKeyID:     cfg.AccessKey,
		SecretAccessKey: cfg.SecretKey,
	}

	if s3Cfg.Bucket == "" {
		return nil, fmt.Errorf("missing required option bucket: %w", storage.ErrInvalidConfig)
	}
	if s3Cfg.AccessKeyID == "" {
		return nil, fmt.Errorf("missing required option access_key: %w", storage.ErrInvalidConfig)
	}
	if s3Cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("missing required option secret_key: %w", storage.ErrInvalidConfig)
	}

	options := cfg.Options
	if v, ok := options["region"].(string); ok && v != "" {
		s3Cfg.Region = v
	}
	if v, ok := options["endpoint"].(string); ok {
		s3Cfg.Endpoint = v
	}
	if v, ok := options["force_path_style"].(bool); ok {
		s3Cfg.ForcePathStyle = v
	}
	if v, ok := options["check_bucket"].(bool); ok {
		s3Cfg.CheckBucket = v
	}

	return s3Cfg, nil
}

// classifyError maps SDK errors onto the storage sentinels, keeping the
// original error in the chain
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", storage.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) || errors.As(err, &noSuchBucket) {
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
		case "AccessDenied", "AllAccessDisabled":
			return fmt.Errorf("%w: %w", storage.ErrPermissionDenied, err)
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "InvalidToken":
			return fmt.Errorf("%w: %w", storage.ErrAuthFailed, err)
		case "SlowDown", "ServiceUnavailable", "InternalError", "RequestTimeout":
			return fmt.Errorf("%w: %w", storage.ErrConnFailed, err)
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch code := respErr.HTTPStatusCode(); {
		case code == http.StatusNotFound:
			return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
		case code == http.StatusForbidden:
			return fmt.Errorf("%w: %w", storage.ErrPermissionDenied, err)
		case code == http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", storage.ErrAuthFailed, err)
		case code >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %w", storage.ErrConnFailed, err)
		}
		return err
	}

	// No HTTP response at all: transport level failure
	return fmt.Errorf("%w: %w", storage.ErrConnFailed, err)
}
