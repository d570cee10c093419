package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains on-disk locations.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	Database    string `toml:"database"`
	DatasetsDir string `toml:"datasets_dir"`
	LogDir      string `toml:"log_dir"`
}

// Remote configures the title metadata service and the retry policy used
// against it.
type Remote struct {
	BaseURL          string `toml:"base_url"`
	BatchSize        int    `toml:"batch_size"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	MaxRetries       int    `toml:"max_retries"`
	RetryBaseDelayMS int    `toml:"retry_base_delay_ms"`
	RetryMaxDelayMS  int    `toml:"retry_max_delay_ms"`
	Workers          int    `toml:"workers"`
	TitleType        string `toml:"title_type"`
}

// Cache contains freshness settings.
type Cache struct {
	TTLHours          float64 `toml:"ttl_hours"`
	AddTimeoutSeconds int     `toml:"add_timeout_seconds"`
}

// Datasets configures the bulk TSV snapshots used to seed the cache.
type Datasets struct {
	BaseURL     string   `toml:"base_url"`
	MaxAgeHours int      `toml:"max_age_hours"`
	TitleTypes  []string `toml:"title_types"`
	MinFreeMiB  int      `toml:"min_free_mib"`
}

// Seeder configures the background refresh loop.
type Seeder struct {
	IntervalSeconds int `toml:"interval_seconds"`
	ProgressEvery   int `toml:"progress_every"`
}

// API configures the HTTP control surface.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Snapshot holds the JSONPath expressions used to extract facet values.
type Snapshot struct {
	Titles    string `toml:"titles"`
	Genres    string `toml:"genres"`
	Countries string `toml:"countries"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for titlecache.
//
// Configuration sections by subsystem:
//   - Paths: data, database, dataset and log locations
//   - Remote: metadata service endpoint, batching and retry policy
//   - Cache: record TTL and the optional add budget
//   - Datasets: bulk snapshot download settings
//   - Seeder: refresh loop cadence
//   - API: control API bind address and bearer token
//   - Snapshot: facet JSONPath expressions
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Remote   Remote   `toml:"remote"`
	Cache    Cache    `toml:"cache"`
	Datasets Datasets `toml:"datasets"`
	Seeder   Seeder   `toml:"seeder"`
	API      API      `toml:"api"`
	Snapshot Snapshot `toml:"snapshot"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/titlecache/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second and third
// results report the resolved path and whether a file existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("titlecache.toml")
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the data, dataset and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.DatasetsDir, c.Paths.LogDir, filepath.Dir(c.Paths.Database)}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TTL returns the record time-to-live.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.Cache.TTLHours * float64(time.Hour))
}

// AddTimeout returns the overall budget for one add call, or zero for none.
func (c *Config) AddTimeout() time.Duration {
	return time.Duration(c.Cache.AddTimeoutSeconds) * time.Second
}

// RemoteTimeout returns the per-attempt HTTP timeout.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the first backoff delay.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Remote.RetryBaseDelayMS) * time.Millisecond
}

// RetryMaxDelay returns the cap applied to a single backoff delay.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Remote.RetryMaxDelayMS) * time.Millisecond
}

// DatasetMaxAge returns how old a dataset file may get before it is downloaded again.
func (c *Config) DatasetMaxAge() time.Duration {
	return time.Duration(c.Datasets.MaxAgeHours) * time.Hour
}

// SeederInterval returns the pause between seeding cycles.
func (c *Config) SeederInterval() time.Duration {
	return time.Duration(c.Seeder.IntervalSeconds) * time.Second
}

// SeederLockPath is the file lock that keeps a single seeder running per data dir.
func (c *Config) SeederLockPath() string {
	return filepath.Join(c.Paths.DataDir, "seeder.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
