package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"titlecache/internal/cache"
	"titlecache/internal/config"
	"titlecache/internal/fetcher"
	"titlecache/internal/services"
	"titlecache/internal/store"
	"titlecache/internal/testsupport"
)

type fixture struct {
	cfg     *config.Config
	store   *store.Store
	remote  *testsupport.Remote
	manager *cache.Manager
	clock   *fakeClock
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()

	remote := testsupport.NewRemote(t, testsupport.Catalog()...)
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithRemote(remote.URL)}, opts...)...)
	st := testsupport.MustOpenStore(t, cfg)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}

	mgr, err := cache.NewFromConfig(cfg, st, nil, cache.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	t.Cleanup(mgr.Close)
	return &fixture{cfg: cfg, store: st, remote: remote, manager: mgr, clock: clock}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	client, err := fetcher.NewTitlesClient("http://127.0.0.1:1", fetcher.New())
	if err != nil {
		t.Fatalf("NewTitlesClient: %v", err)
	}

	cases := map[string]func(*config.Config){
		"batch too large": func(c *config.Config) { c.Remote.BatchSize = fetcher.MaxBatchSize + 1 },
		"batch zero":      func(c *config.Config) { c.Remote.BatchSize = 0 },
		"ttl zero":        func(c *config.Config) { c.Cache.TTLHours = 0 },
		"bad facet":       func(c *config.Config) { c.Snapshot.Genres = "$.genres[" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			copyCfg := *cfg
			mutate(&copyCfg)
			if _, err := cache.New(&copyCfg, st, client); !errors.Is(err, services.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}

	if _, err := cache.New(cfg, nil, client); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for nil store, got %v", err)
	}
}

func TestCountAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testsupport.Seed(t, f.store, f.clock.Now(), testsupport.Catalog()[:3]...)

	n, err := f.manager.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 titles, got %d", n)
	}

	stats, err := f.manager.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Count != 3 || stats.TTL != f.cfg.TTL() {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !stats.Newest.Equal(f.clock.Now()) {
		t.Fatalf("expected newest %s, got %s", f.clock.Now(), stats.Newest)
	}
}

func TestClosedManagerRejectsWork(t *testing.T) {
	f := newFixture(t)
	f.manager.Close()

	if _, err := f.manager.Count(context.Background()); err == nil {
		t.Fatal("expected error after Close")
	}
}
