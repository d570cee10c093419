package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"titlecache/internal/config"
)

func TestLoadDefaultsExpandPathsAndUseEnvToken(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("TITLECACHE_API_TOKEN", "env-token")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "titlecache")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.Database != filepath.Join(wantData, "titles.db") {
		t.Fatalf("unexpected database path: %q", cfg.Paths.Database)
	}
	if cfg.Paths.DatasetsDir != filepath.Join(wantData, "datasets") {
		t.Fatalf("unexpected datasets dir: %q", cfg.Paths.DatasetsDir)
	}
	if cfg.API.Token != "env-token" {
		t.Fatalf("expected api token from env, got %q", cfg.API.Token)
	}
	if cfg.Remote.BatchSize != 5 {
		t.Fatalf("expected batch size 5, got %d", cfg.Remote.BatchSize)
	}
	if cfg.TTL() != 24*time.Hour {
		t.Fatalf("expected 24h ttl, got %s", cfg.TTL())
	}
	if cfg.RetryBaseDelay() != 2*time.Second {
		t.Fatalf("expected 2s base delay, got %s", cfg.RetryBaseDelay())
	}
	if cfg.Remote.BaseURL != "https://api.imdbapi.dev" {
		t.Fatalf("unexpected remote base url: %q", cfg.Remote.BaseURL)
	}
}

func TestLoadCustomFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.ToSlash(dir) + `/data"

[remote]
base_url = "http://localhost:9999/"
batch_size = 3
title_type = " tvSeries "

[cache]
ttl_hours = 0.5

[datasets]
base_url = "http://localhost:9998/files"
title_types = ["movie", " ", "tvMovie"]

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing config at %q, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Remote.BaseURL != "http://localhost:9999" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Remote.BaseURL)
	}
	if cfg.Remote.BatchSize != 3 {
		t.Fatalf("unexpected batch size %d", cfg.Remote.BatchSize)
	}
	if cfg.Remote.TitleType != "tvSeries" {
		t.Fatalf("unexpected title type %q", cfg.Remote.TitleType)
	}
	if cfg.TTL() != 30*time.Minute {
		t.Fatalf("unexpected ttl %s", cfg.TTL())
	}
	if cfg.Datasets.BaseURL != "http://localhost:9998/files/" {
		t.Fatalf("expected datasets base url to gain a trailing slash, got %q", cfg.Datasets.BaseURL)
	}
	if strings.Join(cfg.Datasets.TitleTypes, ",") != "movie,tvMovie" {
		t.Fatalf("unexpected title types %v", cfg.Datasets.TitleTypes)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
	if cfg.Paths.Database != filepath.Join(dir, "data", "titles.db") {
		t.Fatalf("unexpected database path %q", cfg.Paths.Database)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"batch too large", func(c *config.Config) { c.Remote.BatchSize = 6 }, "remote.batch_size"},
		{"batch negative", func(c *config.Config) { c.Remote.BatchSize = -1 }, "remote.batch_size"},
		{"no retries", func(c *config.Config) { c.Remote.MaxRetries = 0 }, "remote.max_retries"},
		{"relative url", func(c *config.Config) { c.Remote.BaseURL = "/titles" }, "remote.base_url"},
		{"zero ttl", func(c *config.Config) { c.Cache.TTLHours = 0 }, "cache.ttl_hours"},
		{"bad facet", func(c *config.Config) { c.Snapshot.Genres = "$.genres[" }, "snapshot.genres"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[remote]\nbatchsize = 4\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to fail parsing")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Snapshot.Genres != "$.genres[*]" {
		t.Fatalf("unexpected genres facet %q", cfg.Snapshot.Genres)
	}
}
