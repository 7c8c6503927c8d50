package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// PathSpec maps a logical configuration name to an object key in the bucket
type PathSpec struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// StoreConfig holds the connection parameters of the blob store
type StoreConfig struct {
	Type           string `json:"type,omitempty"`             // s3, backblaze, ssh, local (default: s3)
	AccessKey      string `json:"access_key"`                 // S3 access key id, B2 account id or SSH user
	SecretKey      string `json:"secret_key"`                 // never logged
	Bucket         string `json:"bucket"`                     // bucket name, or remote/local directory
	Region         string `json:"region,omitempty"`           // AWS region (default: us-east-1)
	Endpoint       string `json:"endpoint,omitempty"`         // optional: MinIO, LocalStack
	ForcePathStyle bool   `json:"force_path_style,omitempty"` // for MinIO
	CheckBucket    bool   `json:"check_bucket,omitempty"`     // s3 only: HeadBucket before reading
	Host           string `json:"host,omitempty"`             // ssh only
	Port           int    `json:"port,omitempty"`             // ssh only (default: 22)
	KeyPath        string `json:"key_path,omitempty"`         // ssh only
	KeyPassphrase  string `json:"key_passphrase,omitempty"`   // ssh only, never logged
	Path           string `json:"path,omitempty"`             // local only: root directory
	MaxAttempts    int    `json:"max_attempts,omitempty"`     // attempts per object (default: 1)
}

// Config is the root configuration structure
type Config struct {
	LogLevel             string      `json:"log_level,omitempty"`              // debug, info, warn, error (default: info)
	LogFormat            string      `json:"log_format,omitempty"`             // json, console (default: json)
	MaxConcurrentFetches int         `json:"max_concurrent_fetches,omitempty"` // default: 4
	FetchTimeoutSeconds  int         `json:"fetch_timeout_seconds,omitempty"`  // default: 30
	Store                StoreConfig `json:"store"`
	Paths                []PathSpec  `json:"paths"`
}

// GetType returns the backend type (defaults to s3)
func (s *StoreConfig) GetType() string {
	if s.Type != "" {
		return s.Type
	}
	return "s3"
}

// GetRegion returns the AWS region (defaults to us-east-1)
func (s *StoreConfig) GetRegion() string {
	if s.Region != "" {
		return s.Region
	}
	return "us-east-1"
}

// GetMaxAttempts returns the attempts per object (defaults to 1, no retry)
func (s *StoreConfig) GetMaxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return 1
}

// Options returns the backend-specific options for the storage factory
func (s *StoreConfig) Options() map[string]interface{} {
	options := map[string]interface{}{
		"region":           s.GetRegion(),
		"force_path_style": s.ForcePathStyle,
		"check_bucket":     s.CheckBucket,
	}
	if s.Endpoint != "" {
		options["endpoint"] = s.Endpoint
	}
	if s.Host != "" {
		options["host"] = s.Host
	}
	if s.Port > 0 {
		options["port"] = s.Port
	}
	if s.KeyPath != "" {
		options["key_path"] = s.KeyPath
	}
	if s.KeyPassphrase != "" {
		options["key_passphrase"] = s.KeyPassphrase
	}
	if s.Path != "" {
		options["path"] = s.Path
	}
	return options
}

// MarshalZerologObject logs the store without its secret key
func (s StoreConfig) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", s.GetType()).
		Str("bucket", s.Bucket).
		Str("access_key", s.AccessKey).
		Bool("secret_key_set", s.SecretKey != "")
	if s.Endpoint != "" {
		e.Str("endpoint", s.Endpoint)
	}
	if s.Host != "" {
		e.Str("host", s.Host)
	}
}

// GetMaxConcurrentFetches returns the max parallel object reads (defaults to 4)
func (c *Config) GetMaxConcurrentFetches() int {
	if c.MaxConcurrentFetches > 0 {
		return c.MaxConcurrentFetches
	}
	return 4
}

// GetFetchTimeout returns the per-object fetch timeout (defaults to 30s)
func (c *Config) GetFetchTimeout() time.Duration {
	if c.FetchTimeoutSeconds > 0 {
		return time.Duration(c.FetchTimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

// GetLogLevel returns the log level (defaults to info)
func (c *Config) GetLogLevel() string {
	if c.LogLevel != "" {
		return c.LogLevel
	}
	return "info"
}

// GetLogFormat returns the log format (defaults to json)
func (c *Config) GetLogFormat() string {
	if c.LogFormat != "" {
		return c.LogFormat
	}
	return "json"
}

// Check reports semantic problems the JSON schema cannot express. All
// problems are returned together.
func (c *Config) Check() error {
	var errs *multierror.Error

	if c.Store.AccessKey == "" {
		errs = multierror.Append(errs, fmt.Errorf("store.access_key is required"))
	}
	if c.Store.SecretKey == "" {
		errs = multierror.Append(errs, fmt.Errorf("store.secret_key is required"))
	}
	if c.Store.Bucket == "" {
		errs = multierror.Append(errs, fmt.Errorf("store.bucket is required"))
	}

	if len(c.Paths) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("at least one configuration path must be declared"))
	}

	seen := make(map[string]bool, len(c.Paths))
	for i, p := range c.Paths {
		if p.Name == "" {
			errs = multierror.Append(errs, fmt.Errorf("paths[%d].name is required", i))
		} else if seen[p.Name] {
			errs = multierror.Append(errs, fmt.Errorf("paths[%d]: duplicate name %q", i, p.Name))
		}
		seen[p.Name] = true

		if p.Key == "" {
			errs = multierror.Append(errs, fmt.Errorf("paths[%d].key is required", i))
		}
	}

	return errs.ErrorOrNil()
}
