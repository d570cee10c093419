package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ohler55/ojg/jp"

	"titlecache/internal/config"
	"titlecache/internal/fetcher"
	"titlecache/internal/logging"
	"titlecache/internal/services"
	"titlecache/internal/store"
	"titlecache/internal/worker"
)

// DefaultSuggestions is the autocomplete limit used when none is given.
const DefaultSuggestions = 25

// TitleFetcher resolves a batch of ids against the remote service.
type TitleFetcher interface {
	BatchGet(ctx context.Context, ids []string) ([]fetcher.RemoteTitle, error)
}

// Manager coordinates refreshes and queries over the title store.
type Manager struct {
	store      *store.Store
	remote     TitleFetcher
	storeLane  *worker.Pool
	fetchPool  *worker.Pool
	logger     *slog.Logger
	now        func() time.Time
	ttl        time.Duration
	batchSize  int
	titleType  string
	addTimeout time.Duration
	facets     facetExprs

	snapshot atomic.Pointer[Snapshot]
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithClock overrides the time source used for TTL checks and timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New constructs a Manager over st that refreshes through remote.
func New(cfg *config.Config, st *store.Store, remote TitleFetcher, opts ...Option) (*Manager, error) {
	if cfg == nil || st == nil || remote == nil {
		return nil, services.Wrap(services.ErrConfiguration, "cache", "new manager", "config, store and fetcher are required", nil)
	}
	if cfg.Remote.BatchSize < 1 || cfg.Remote.BatchSize > fetcher.MaxBatchSize {
		return nil, services.Wrap(services.ErrConfiguration, "cache", "new manager",
			fmt.Sprintf("batch size %d outside 1..%d", cfg.Remote.BatchSize, fetcher.MaxBatchSize), nil)
	}
	if cfg.TTL() <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "cache", "new manager", "ttl must be positive", nil)
	}
	facets, err := compileFacets(cfg.Snapshot)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "cache", "new manager", "snapshot facets", err)
	}

	m := &Manager{
		store:      st,
		remote:     remote,
		now:        time.Now,
		ttl:        cfg.TTL(),
		batchSize:  cfg.Remote.BatchSize,
		titleType:  cfg.Remote.TitleType,
		addTimeout: cfg.AddTimeout(),
		facets:     facets,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "cache")
	m.storeLane = worker.NewLane("store")
	m.fetchPool = worker.NewPool("fetch", cfg.Remote.Workers)
	m.snapshot.Store(&Snapshot{})
	return m, nil
}

// NewFromConfig wires a Manager with the remote client described by cfg.
func NewFromConfig(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) (*Manager, error) {
	client := fetcher.New(
		fetcher.WithTimeout(cfg.RemoteTimeout()),
		fetcher.WithRetryMaxAttempts(cfg.Remote.MaxRetries),
		fetcher.WithRetryBackoff(cfg.RetryBaseDelay(), cfg.RetryMaxDelay()),
		fetcher.WithLogger(logger),
	)
	titles, err := fetcher.NewTitlesClient(cfg.Remote.BaseURL, client)
	if err != nil {
		return nil, err
	}
	return New(cfg, st, titles, append([]Option{WithLogger(logger)}, opts...)...)
}

// Close stops the worker lanes. The store stays open; its owner closes it.
func (m *Manager) Close() {
	m.fetchPool.Close()
	m.storeLane.Close()
}

// TTL reports the configured freshness window.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Count returns the number of cached titles.
func (m *Manager) Count(ctx context.Context) (int, error) {
	n, err := worker.Do(ctx, m.storeLane, m.store.Count)
	if err != nil {
		return 0, m.storageError("count", err)
	}
	return n, nil
}

// Stats describes the cache for status displays.
type Stats struct {
	store.Stats
	TTL      time.Duration
	Snapshot SnapshotCounts
}

// Stats reports store statistics along with TTL and snapshot sizes.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	st, err := worker.Do(ctx, m.storeLane, m.store.Stats)
	if err != nil {
		return Stats{}, m.storageError("stats", err)
	}
	return Stats{Stats: st, TTL: m.ttl, Snapshot: m.Snapshot().Counts()}, nil
}

// storageError passes context errors through untouched and tags everything
// else as a storage failure.
func (m *Manager) storageError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, worker.ErrClosed) {
		return err
	}
	return services.Wrap(services.ErrStorage, "cache", op, "", err)
}

type facetExprs struct {
	titles    jp.Expr
	genres    jp.Expr
	countries jp.Expr
}

func compileFacets(cfg config.Snapshot) (facetExprs, error) {
	var (
		out facetExprs
		err error
	)
	if out.titles, err = jp.ParseString(cfg.Titles); err != nil {
		return out, fmt.Errorf("titles %q: %w", cfg.Titles, err)
	}
	if out.genres, err = jp.ParseString(cfg.Genres); err != nil {
		return out, fmt.Errorf("genres %q: %w", cfg.Genres, err)
	}
	if out.countries, err = jp.ParseString(cfg.Countries); err != nil {
		return out, fmt.Errorf("countries %q: %w", cfg.Countries, err)
	}
	return out, nil
}
