package configuration

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/williamokano/cloudconfig/pkg/config"
	"github.com/williamokano/cloudconfig/pkg/storage"

	// Import backends to register them
	_ "github.com/williamokano/cloudconfig/pkg/storage/backblaze"
	_ "github.com/williamokano/cloudconfig/pkg/storage/local"
	_ "github.com/williamokano/cloudconfig/pkg/storage/s3"
	_ "github.com/williamokano/cloudconfig/pkg/storage/ssh"
)

// Lifecycle is the contract between the service and whatever hosts it
type Lifecycle interface {
	Start(ctx context.Context, cfg config.Config) error
	Reload(ctx context.Context) error
	Stop()
}

var _ Lifecycle = (*Service)(nil)

// Option configures a Service
type Option func(*Service)

// WithFactory replaces the storage factory used to reach the blob store
func WithFactory(factory storage.BackendFactory) Option {
	return func(s *Service) { s.factory = factory }
}

// WithClock replaces the time source used for snapshot timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service caches configuration documents fetched from a blob store.
//
// Readers load the current snapshot through an atomic pointer and never
// block. Reloads are serialised, fetch everything without holding the
// swap lock, and publish a complete new snapshot in one pointer store.
type Service struct {
	logger  zerolog.Logger
	factory storage.BackendFactory
	fetcher *storage.MultiFetcher
	now     func() time.Time

	reloadMu sync.Mutex

	// mu guards the fields below and every store to current
	mu         sync.Mutex
	cfg        config.Config
	running    bool
	generation uint64
	epoch      uint64 // bumped by Stop; a reload from an older epoch is discarded

	current atomic.Pointer[Snapshot]
}

// New creates a stopped service with an empty cache
func New(logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		logger:  logger.With().Str("component", "configuration").Logger(),
		factory: storage.NewFactory(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.fetcher = storage.NewMultiFetcher(s.logger)
	s.current.Store(emptySnapshot)

	return s
}

// Start installs cfg and performs the first reload. The service stays
// started when that reload fails, so the host may retry with Reload.
func (s *Service) Start(ctx context.Context, cfg config.Config) error {
	s.mu.Lock()
	s.cfg = cloneConfig(cfg)
	s.running = true
	s.mu.Unlock()

	s.logger.Info().
		Object("store", cfg.Store).
		Int("paths", len(cfg.Paths)).
		Msg("starting configuration service")

	return s.Reload(ctx)
}

// Configure replaces the settings used by the next reload
func (s *Service) Configure(cfg config.Config) {
	s.mu.Lock()
	s.cfg = cloneConfig(cfg)
	s.mu.Unlock()
}

// Get returns the cached record for key
func (s *Service) Get(key string) (Record, bool) {
	return s.current.Load().Get(key)
}

// Snapshot returns the current cache as a consistent view
func (s *Service) Snapshot() *Snapshot {
	return s.current.Load()
}

// Reload re-reads the connection parameters and path specifications and
// replaces the cache with freshly fetched records. On any failure the
// previous cache is kept and a single aggregated error is returned.
func (s *Service) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	s.mu.Lock()
	running := s.running
	epoch := s.epoch
	cfg := cloneConfig(s.cfg)
	s.mu.Unlock()

	if !running {
		return ErrNotStarted
	}

	start := s.now()
	log := s.logger.With().
		Str("store", cfg.Store.GetType()).
		Str("bucket", cfg.Store.Bucket).
		Logger()

	log.Info().Int("paths", len(cfg.Paths)).Msg("reloading configuration")

	records, err := s.load(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("reload failed, keeping previous configuration")
		return err
	}

	s.mu.Lock()
	if !s.running || s.epoch != epoch {
		s.mu.Unlock()
		log.Warn().Msg("service stopped during reload, discarding fetched configuration")
		return ErrStopped
	}
	s.generation++
	snapshot := newSnapshot(s.generation, s.now(), records)
	s.current.Store(snapshot)
	s.mu.Unlock()

	log.Info().
		Uint64("generation", snapshot.Generation()).
		Int("records", snapshot.Len()).
		Dur("duration", s.now().Sub(start)).
		Msg("configuration reloaded")

	return nil
}

// Stop clears the cache. Reload fails with ErrNotStarted until the next Start.
func (s *Service) Stop() {
	s.mu.Lock()
	s.running = false
	s.epoch++
	s.current.Store(emptySnapshot)
	s.mu.Unlock()

	s.logger.Info().Msg("configuration service stopped, cache cleared")
}

func (s *Service) load(ctx context.Context, cfg config.Config, log zerolog.Logger) (map[string]Record, error) {
	if err := checkConnection(cfg.Store); err != nil {
		return nil, err
	}
	if err := checkPaths(cfg.Paths); err != nil {
		return nil, err
	}

	retry := storage.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Store.GetMaxAttempts()

	backend, err := s.factory.Create(ctx, storage.Config{
		Name:      cfg.Store.GetType() + ":" + cfg.Store.Bucket,
		Type:      cfg.Store.GetType(),
		Bucket:    cfg.Store.Bucket,
		AccessKey: cfg.Store.AccessKey,
		SecretKey: cfg.Store.SecretKey,
		Retry:     retry,
		Options:   cfg.Store.Options(),
	})
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close storage backend")
		}
	}()

	keys := make([]string, len(cfg.Paths))
	for i, p := range cfg.Paths {
		keys[i] = p.Key
	}

	results := s.fetcher.FetchAll(ctx, backend, keys, storage.FetchOptions{
		MaxConcurrent: cfg.GetMaxConcurrentFetches(),
		Timeout:       cfg.GetFetchTimeout(),
	})

	errs := newErrors()
	records := make(map[string]Record, len(cfg.Paths))
	for i, result := range results {
		p := cfg.Paths[i]

		if !result.Success {
			// Abandoned after a sibling failed; the sibling carries the cause
			if result.Canceled {
				continue
			}
			errs = multierror.Append(errs, &FetchError{Name: p.Name, Key: p.Key, Err: result.Error})
			continue
		}

		records[p.Name] = NewRecord(cfg.Store.Bucket, p.Key, string(result.Body))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	if len(records) != len(cfg.Paths) {
		// Every failure was marked canceled: report the context
		cause := context.Cause(ctx)
		if cause == nil {
			cause = context.Canceled
		}
		return nil, &FetchError{Err: cause}
	}

	return records, nil
}

func checkConnection(store config.StoreConfig) error {
	errs := newErrors()

	if store.AccessKey == "" {
		errs = multierror.Append(errs, &ConfigurationError{Field: "access_key", Reason: "is required"})
	}
	if store.SecretKey == "" {
		errs = multierror.Append(errs, &ConfigurationError{Field: "secret_key", Reason: "is required"})
	}
	if store.Bucket == "" {
		errs = multierror.Append(errs, &ConfigurationError{Field: "bucket", Reason: "is required"})
	}

	return errs.ErrorOrNil()
}

func checkPaths(paths []config.PathSpec) error {
	if len(paths) == 0 {
		return &ConfigurationError{Field: "paths", Reason: "at least one configuration path must be declared"}
	}

	errs := newErrors()
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		switch {
		case p.Name == "":
			errs = multierror.Append(errs, &ConfigurationError{Field: "paths", Reason: "path name is required for key " + p.Key})
		case seen[p.Name]:
			errs = multierror.Append(errs, &ConfigurationError{Field: "paths." + p.Name, Reason: "declared more than once"})
		}
		seen[p.Name] = true

		if p.Key == "" {
			errs = multierror.Append(errs, &ConfigurationError{Field: "paths." + p.Name, Reason: "object key is required"})
		}
	}

	return errs.ErrorOrNil()
}

func newErrors() *multierror.Error {
	return &multierror.Error{ErrorFormat: joinErrors}
}

func joinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func cloneConfig(cfg config.Config) config.Config {
	cfg.Paths = append([]config.PathSpec(nil), cfg.Paths...)
	return cfg
}
