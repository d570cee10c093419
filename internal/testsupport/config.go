package testsupport

import (
	"path/filepath"
	"testing"
	"time"

	"titlecache/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config rooted in a fresh temp directory. Retry delays
// are zeroed so failing fetches do not slow tests down.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = base
	cfg.Paths.Database = filepath.Join(base, "titles.db")
	cfg.Paths.DatasetsDir = filepath.Join(base, "datasets")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Remote.RetryBaseDelayMS = 0
	cfg.Remote.RetryMaxDelayMS = 0
	cfg.Remote.MaxRetries = 2
	cfg.Remote.TimeoutSeconds = 5
	cfg.Datasets.MinFreeMiB = 0
	cfg.Seeder.IntervalSeconds = 0
	cfg.API.Bind = "127.0.0.1:0"
	cfg.API.Token = "test-token"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithRemote points the remote base URL at a test server.
func WithRemote(baseURL string) ConfigOption {
	return func(c *config.Config) { c.Remote.BaseURL = baseURL }
}

// WithDatasets points the datasets base URL at a test server.
func WithDatasets(baseURL string) ConfigOption {
	return func(c *config.Config) { c.Datasets.BaseURL = baseURL + "/" }
}

// WithTTL overrides the record time-to-live.
func WithTTL(ttl time.Duration) ConfigOption {
	return func(c *config.Config) { c.Cache.TTLHours = ttl.Hours() }
}

// WithBatchSize overrides the remote batch size.
func WithBatchSize(n int) ConfigOption {
	return func(c *config.Config) { c.Remote.BatchSize = n }
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.DataDir
}
