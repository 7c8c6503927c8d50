package configuration

import (
	"errors"
	"fmt"
)

var (
	// ErrNotStarted is returned by Reload before Start or after Stop
	ErrNotStarted = errors.New("configuration service is not started")

	// ErrStopped is returned by a reload whose results were discarded
	// because the service stopped while it was fetching
	ErrStopped = errors.New("configuration service stopped during reload")
)

// ConfigurationError reports a missing or invalid setting. The cache is
// left untouched.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// FetchError reports a failed read of one path specification, or of the
// store itself when Key is empty.
type FetchError struct {
	Name string
	Key  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("fetch error: %v", e.Err)
	}
	return fmt.Sprintf("fetch error for %s (%s): %v", e.Name, e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
