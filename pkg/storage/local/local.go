package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/williamokano/cloudconfig/pkg/storage"
)

// Backend serves objects from a directory tree: <path>/<bucket>/<key>
type Backend struct {
	name     string
	basePath string
}

func init() {
	storage.RegisterBackend("local", func(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
		return New(cfg)
	})
}

// New creates a new local filesystem backend
func New(cfg storage.Config) (*Backend, error) {
	root, _ := cfg.Options["path"].(string)
	if root == "" {
		root = "."
	}

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("missing required option bucket: %w", storage.ErrInvalidConfig)
	}

	basePath := filepath.Join(root, cfg.Bucket)
	info, err := os.Stat(basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.WrapError(cfg.Name, "init", storage.ErrNotFound)
		}
		return nil, storage.WrapError(cfg.Name, "init", err)
	}
	if !info.IsDir() {
		return nil, storage.WrapError(cfg.Name, "init", fmt.Errorf("%s is not a directory: %w", basePath, storage.ErrInvalidConfig))
	}

	return &Backend{
		name:     cfg.Name,
		basePath: basePath,
	}, nil
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return "local" }

// Read returns the content of a file below the bucket directory
func (b *Backend) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.WrapContextError(b.name, "read", err)
	}

	fullPath, err := b.resolve(key)
	if err != nil {
		return nil, storage.WrapError(b.name, "read", err)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return nil, storage.WrapError(b.name, "read "+key, storage.ErrNotFound)
		case errors.Is(err, os.ErrPermission):
			return nil, storage.WrapError(b.name, "read "+key, storage.ErrPermissionDenied)
		}
		return nil, storage.WrapError(b.name, "read "+key, err)
	}

	return data, nil
}

// Close is a no-op for local backend
func (b *Backend) Close() error {
	return nil
}

// resolve maps an object key onto a path that stays inside basePath
func (b *Backend) resolve(key string) (string, error) {
	fullPath := filepath.Join(b.basePath, filepath.FromSlash(strings.TrimPrefix(key, "/")))

	rel, err := filepath.Rel(b.basePath, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes bucket: %w", key, storage.ErrInvalidConfig)
	}

	return fullPath, nil
}
