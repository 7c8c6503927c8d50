package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// FetchOptions bounds a FetchAll call
type FetchOptions struct {
	MaxConcurrent int           // Maximum reads in flight (default: 1)
	Timeout       time.Duration // Per-key timeout, zero means none
}

// MultiFetcher reads many keys from one backend in parallel
type MultiFetcher struct {
	logger zerolog.Logger
}

// NewMultiFetcher creates a new multi-fetcher
func NewMultiFetcher(logger zerolog.Logger) *MultiFetcher {
	return &MultiFetcher{logger: logger}
}

// FetchAll reads every key concurrently and returns one result per key, in
// the order of keys. The first failed read cancels the reads still pending;
// their results are marked Canceled.
func (m *MultiFetcher) FetchAll(ctx context.Context, backend Backend, keys []string, opts FetchOptions) []Result {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	sem := semaphore.NewWeighted(int64(maxConcurrent))
	g, gCtx := errgroup.WithContext(ctx)

	results := make([]Result, len(keys))

	for i, key := range keys {
		g.Go(func() error {
			result := Result{
				BackendName: backend.Name(),
				BackendType: backend.Type(),
				Key:         key,
			}

			if err := sem.Acquire(gCtx, 1); err != nil {
				result.Error = fmt.Errorf("failed to acquire semaphore: %w", err)
				result.Canceled = ctx.Err() == nil
				results[i] = result
				return result.Error
			}
			defer sem.Release(1)

			start := time.Now()
			body, err := m.read(gCtx, backend, key, opts.Timeout)
			result.Duration = time.Since(start)

			if err != nil {
				result.Error = err
				// The group context is only done early when a sibling failed
				result.Canceled = errors.Is(err, context.Canceled) && gCtx.Err() != nil && ctx.Err() == nil

				if !result.Canceled {
					m.logger.Error().
						Err(err).
						Str("backend", backend.Name()).
						Str("key", key).
						Dur("duration", result.Duration).
						Msg("read failed")
				}

				results[i] = result
				return err
			}

			m.logger.Debug().
				Str("backend", backend.Name()).
				Str("key", key).
				Int("bytes", len(body)).
				Dur("duration", result.Duration).
				Msg("read succeeded")

			result.Body = body
			result.Success = true
			results[i] = result
			return nil
		})
	}

	// Individual errors are carried by the results
	_ = g.Wait()

	return results
}

func (m *MultiFetcher) read(ctx context.Context, backend Backend, key string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := backend.Read(ctx, key)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, err
	}
	return body, nil
}
