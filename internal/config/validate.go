package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateDatasets(); err != nil {
		return err
	}
	if err := c.validateSeeder(); err != nil {
		return err
	}
	if err := c.validateSnapshot(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRemote() error {
	if err := validateHTTPURL("remote.base_url", c.Remote.BaseURL); err != nil {
		return err
	}
	if c.Remote.BatchSize < 1 || c.Remote.BatchSize > MaxBatchSize {
		return fmt.Errorf("remote.batch_size must be between 1 and %d", MaxBatchSize)
	}
	if c.Remote.MaxRetries < 1 {
		return errors.New("remote.max_retries must be at least 1")
	}
	if c.Remote.RetryBaseDelayMS < 0 {
		return errors.New("remote.retry_base_delay_ms must be non-negative")
	}
	if c.Remote.RetryMaxDelayMS < 0 {
		return errors.New("remote.retry_max_delay_ms must be non-negative")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.TTLHours <= 0 {
		return errors.New("cache.ttl_hours must be positive")
	}
	if c.Cache.AddTimeoutSeconds < 0 {
		return errors.New("cache.add_timeout_seconds must be non-negative")
	}
	return nil
}

func (c *Config) validateDatasets() error {
	if err := validateHTTPURL("datasets.base_url", c.Datasets.BaseURL); err != nil {
		return err
	}
	if c.Datasets.MaxAgeHours < 0 {
		return errors.New("datasets.max_age_hours must be non-negative")
	}
	return nil
}

func (c *Config) validateSeeder() error {
	if c.Seeder.IntervalSeconds < 0 {
		return errors.New("seeder.interval_seconds must be non-negative")
	}
	if c.Seeder.ProgressEvery < 0 {
		return errors.New("seeder.progress_every must be non-negative")
	}
	return nil
}

func (c *Config) validateSnapshot() error {
	facets := map[string]string{
		"snapshot.titles":    c.Snapshot.Titles,
		"snapshot.genres":    c.Snapshot.Genres,
		"snapshot.countries": c.Snapshot.Countries,
	}
	for key, expr := range facets {
		if _, err := jp.ParseString(expr); err != nil {
			return fmt.Errorf("%s: invalid JSONPath %q: %w", key, expr, err)
		}
	}
	return nil
}

func validateHTTPURL(key, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if (scheme != "http" && scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", key, raw)
	}
	return nil
}
