package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"titlecache/internal/cache"
	"titlecache/internal/config"
	"titlecache/internal/logging"
	"titlecache/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configSeen = exists
	})
	return c.config, c.configErr
}

// logger builds the command logger. Long-running commands also log to
// stdout; one-shot commands only append to the log file.
func (c *commandContext) logger(foreground bool) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if foreground {
		return logging.NewFromConfig(cfg)
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "titlecache.log")},
	})
}

// session bundles the store and cache manager for one command.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	manager *cache.Manager
}

func (c *commandContext) openSession(foreground bool) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.logger(foreground)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	mgr, err := cache.NewFromConfig(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, store: st, manager: mgr}, nil
}

func (s *session) Close() {
	s.manager.Close()
	_ = s.store.Close()
}

func (c *commandContext) withSession(foreground bool, fn func(*session) error) error {
	s, err := c.openSession(foreground)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
