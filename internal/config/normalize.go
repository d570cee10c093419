package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRemote()
	c.normalizeDatasets()
	c.normalizeAPI()
	c.normalizeSnapshot()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.Database) == "" {
		c.Paths.Database = filepath.Join(c.Paths.DataDir, defaultDatabaseName)
	}
	if c.Paths.Database, err = expandPath(c.Paths.Database); err != nil {
		return fmt.Errorf("paths.database: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatasetsDir) == "" {
		c.Paths.DatasetsDir = filepath.Join(c.Paths.DataDir, defaultDatasetsSubdir)
	}
	if c.Paths.DatasetsDir, err = expandPath(c.Paths.DatasetsDir); err != nil {
		return fmt.Errorf("paths.datasets_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, defaultLogSubdir)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRemote() {
	c.Remote.BaseURL = strings.TrimRight(strings.TrimSpace(c.Remote.BaseURL), "/")
	if c.Remote.BaseURL == "" {
		c.Remote.BaseURL = defaultRemoteBaseURL
	}
	if c.Remote.BatchSize == 0 {
		c.Remote.BatchSize = defaultRemoteBatchSize
	}
	if c.Remote.TimeoutSeconds <= 0 {
		c.Remote.TimeoutSeconds = defaultRemoteTimeout
	}
	if c.Remote.MaxRetries == 0 {
		c.Remote.MaxRetries = defaultRemoteMaxRetries
	}
	if c.Remote.Workers <= 0 {
		c.Remote.Workers = defaultRemoteWorkers
	}
	c.Remote.TitleType = strings.TrimSpace(c.Remote.TitleType)
}

func (c *Config) normalizeDatasets() {
	c.Datasets.BaseURL = strings.TrimSpace(c.Datasets.BaseURL)
	if c.Datasets.BaseURL == "" {
		c.Datasets.BaseURL = defaultDatasetsBaseURL
	}
	if !strings.HasSuffix(c.Datasets.BaseURL, "/") {
		c.Datasets.BaseURL += "/"
	}
	types := c.Datasets.TitleTypes[:0]
	for _, value := range c.Datasets.TitleTypes {
		if value = strings.TrimSpace(value); value != "" {
			types = append(types, value)
		}
	}
	c.Datasets.TitleTypes = types
	if len(c.Datasets.TitleTypes) == 0 {
		c.Datasets.TitleTypes = []string{defaultTitleType}
	}
	if c.Datasets.MinFreeMiB < 0 {
		c.Datasets.MinFreeMiB = 0
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("TITLECACHE_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeSnapshot() {
	c.Snapshot.Titles = strings.TrimSpace(c.Snapshot.Titles)
	if c.Snapshot.Titles == "" {
		c.Snapshot.Titles = defaultTitlesFacet
	}
	c.Snapshot.Genres = strings.TrimSpace(c.Snapshot.Genres)
	if c.Snapshot.Genres == "" {
		c.Snapshot.Genres = defaultGenresFacet
	}
	c.Snapshot.Countries = strings.TrimSpace(c.Snapshot.Countries)
	if c.Snapshot.Countries == "" {
		c.Snapshot.Countries = defaultCountriesFacet
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
