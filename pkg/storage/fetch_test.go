package storage_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/williamokano/cloudconfig/pkg/storage"
	"github.com/williamokano/cloudconfig/pkg/storage/mocks"
)

func newNamedMock(t *testing.T) *mocks.MockBackend {
	mockBackend := mocks.NewMockBackend(t)
	mockBackend.On("Name").Return("mock:bkt").Maybe()
	mockBackend.On("Type").Return("mock").Maybe()
	return mockBackend
}

func TestMultiFetcher_FetchAll(t *testing.T) {
	t.Run("all_succeed_in_key_order", func(t *testing.T) {
		mockBackend := newNamedMock(t)
		mockBackend.On("Read", mock.Anything, "a.json").Return([]byte("A"), nil).Once()
		mockBackend.On("Read", mock.Anything, "b.json").Return([]byte("B"), nil).Once()

		fetcher := storage.NewMultiFetcher(zerolog.Nop())
		results := fetcher.FetchAll(context.Background(), mockBackend, []string{"a.json", "b.json"}, storage.FetchOptions{MaxConcurrent: 2})

		require.Len(t, results, 2)
		assert.Equal(t, "a.json", results[0].Key)
		assert.Equal(t, []byte("A"), results[0].Body)
		assert.Equal(t, "b.json", results[1].Key)
		assert.Equal(t, []byte("B"), results[1].Body)
		for _, result := range results {
			assert.True(t, result.Success)
			assert.NoError(t, result.Error)
			assert.Equal(t, "mock:bkt", result.BackendName)
			assert.Equal(t, "mock", result.BackendType)
		}
	})

	t.Run("failure_is_reported", func(t *testing.T) {
		mockBackend := newNamedMock(t)
		mockBackend.On("Read", mock.Anything, "missing.json").Return(nil, storage.ErrNotFound).Once()

		fetcher := storage.NewMultiFetcher(zerolog.Nop())
		results := fetcher.FetchAll(context.Background(), mockBackend, []string{"missing.json"}, storage.FetchOptions{})

		require.Len(t, results, 1)
		assert.False(t, results[0].Success)
		assert.False(t, results[0].Canceled)
		assert.ErrorIs(t, results[0].Error, storage.ErrNotFound)
	})

	t.Run("failure_cancels_pending_reads", func(t *testing.T) {
		mockBackend := newNamedMock(t)
		mockBackend.On("Read", mock.Anything, "bad.json").Return(nil, errors.New("access denied")).Once()
		mockBackend.On("Read", mock.Anything, "slow.json").Return(func(ctx context.Context, key string) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).Maybe()

		fetcher := storage.NewMultiFetcher(zerolog.Nop())
		results := fetcher.FetchAll(context.Background(), mockBackend, []string{"slow.json", "bad.json"}, storage.FetchOptions{MaxConcurrent: 2})

		require.Len(t, results, 2)
		assert.True(t, results[0].Canceled, "slow read should be abandoned")
		assert.ErrorIs(t, results[0].Error, context.Canceled)
		assert.False(t, results[1].Canceled)
		assert.EqualError(t, results[1].Error, "access denied")
	})

	t.Run("per_key_timeout", func(t *testing.T) {
		mockBackend := newNamedMock(t)
		mockBackend.On("Read", mock.Anything, "hang.json").Return(func(ctx context.Context, key string) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).Once()

		fetcher := storage.NewMultiFetcher(zerolog.Nop())
		results := fetcher.FetchAll(context.Background(), mockBackend, []string{"hang.json"}, storage.FetchOptions{Timeout: 20 * time.Millisecond})

		require.Len(t, results, 1)
		assert.False(t, results[0].Canceled)
		assert.ErrorIs(t, results[0].Error, storage.ErrTimeout)
		assert.ErrorIs(t, results[0].Error, context.DeadlineExceeded)
	})

	t.Run("concurrency_is_bounded", func(t *testing.T) {
		var inFlight, peak atomic.Int32

		mockBackend := newNamedMock(t)
		mockBackend.On("Read", mock.Anything, mock.Anything).Return(func(ctx context.Context, key string) ([]byte, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			return []byte(key), nil
		}).Times(6)

		keys := []string{"1", "2", "3", "4", "5", "6"}
		fetcher := storage.NewMultiFetcher(zerolog.Nop())
		results := fetcher.FetchAll(context.Background(), mockBackend, keys, storage.FetchOptions{MaxConcurrent: 2})

		require.Len(t, results, 6)
		for i, result := range results {
			assert.True(t, result.Success)
			assert.Equal(t, keys[i], string(result.Body))
		}
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("caller_cancellation_is_not_marked_canceled", func(t *testing.T) {
		mockBackend := newNamedMock(t)
		mockBackend.On("Read", mock.Anything, "a.json").Return(func(ctx context.Context, key string) ([]byte, error) {
			return nil, ctx.Err()
		}).Maybe()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		fetcher := storage.NewMultiFetcher(zerolog.Nop())
		results := fetcher.FetchAll(ctx, mockBackend, []string{"a.json"}, storage.FetchOptions{})

		require.Len(t, results, 1)
		assert.False(t, results[0].Success)
		assert.False(t, results[0].Canceled)
		assert.ErrorIs(t, results[0].Error, context.Canceled)
	})

	t.Run("empty_keys", func(t *testing.T) {
		mockBackend := newNamedMock(t)

		fetcher := storage.NewMultiFetcher(zerolog.Nop())
		results := fetcher.FetchAll(context.Background(), mockBackend, nil, storage.FetchOptions{})

		assert.Empty(t, results)
	})
}
