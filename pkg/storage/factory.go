package storage

import (
	"context"
	"fmt"
	"sort"
)

// BackendConstructor is a function that creates a backend instance
type BackendConstructor func(ctx context.Context, cfg Config) (Backend, error)

var backendRegistry = make(map[string]BackendConstructor)

// RegisterBackend registers a backend constructor
func RegisterBackend(backendType string, constructor BackendConstructor) {
	backendRegistry[backendType] = constructor
}

// RegisteredTypes returns the registered backend types in sorted order
func RegisteredTypes() []string {
	types := make([]string, 0, len(backendRegistry))
	for t := range backendRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Factory creates storage backends from connection parameters
type Factory struct{}

// NewFactory creates a new factory instance
func NewFactory() *Factory {
	return &Factory{}
}

// Create instantiates a backend from config
func (f *Factory) Create(ctx context.Context, cfg Config) (Backend, error) {
	constructor, ok := backendRegistry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown backend type %q: %w", cfg.Type, ErrInvalidConfig)
	}

	return constructor(ctx, cfg)
}
