package storage

import (
	"context"
	"time"
)

// Backend represents a read-only blob store holding configuration documents
type Backend interface {
	// Name returns a human-readable name for this backend (e.g., "s3:my-bucket")
	Name() string

	// Type returns the backend type (s3, backblaze, ssh, local)
	Type() string

	// Read returns the full content of the object stored under key
	// key: object key relative to the bucket (e.g., "dir/file1.json")
	Read(ctx context.Context, key string) ([]byte, error)

	// Close releases resources (connections, sessions)
	Close() error
}

// BackendFactory creates backends from connection parameters
type BackendFactory interface {
	Create(ctx context.Context, cfg Config) (Backend, error)
}

// Config represents the connection parameters of a single reload
type Config struct {
	Name      string                 // User-friendly name, used in logs and errors
	Type      string                 // Backend type: s3, backblaze, ssh, local
	Bucket    string                 // Bucket, B2 bucket, remote directory or local subdirectory
	AccessKey string                 // Access key id, B2 account id or SSH user
	SecretKey string                 // Secret key, B2 application key or SSH password
	Retry     RetryConfig            // Retry policy applied to every read
	Options   map[string]interface{} // Backend-specific options
}

// Result represents outcome of reading a single key
type Result struct {
	BackendName string
	BackendType string
	Key         string
	Body        []byte
	Success     bool
	Canceled    bool // True if the read was abandoned because another read failed
	Error       error
	Duration    time.Duration
}
