package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ironsheep/puzzle-match/internal/config"
	"github.com/ironsheep/puzzle-match/internal/history"
	"github.com/ironsheep/puzzle-match/internal/logging"
	"github.com/ironsheep/puzzle-match/internal/match"
)

const skipConfigAnnotation = "skipConfigLoad"

type commandContext struct {
	configFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	logger *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		logger:     logging.NewNop(),
	}
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
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// setup loads the configuration and installs the logger. Logs always go to
// stderr so stdout stays clean for results and the MCP protocol.
func (c *commandContext) setup(stderr io.Writer) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg, stderr)
	if err != nil {
		return err
	}
	c.logger = logger
	match.SetLogger(logger.With("component", "match"))
	if c.configExists {
		logger.Debug("configuration loaded", "path", c.configPath)
	}
	return nil
}

// matchOptions returns the configured matcher options.
func (c *commandContext) matchOptions() (match.Options, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return match.Options{}, err
	}
	return cfg.MatchOptions()
}

// openHistory opens the configured store. It returns nil without error when
// history is disabled.
func (c *commandContext) openHistory(ctx context.Context) (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, nil
	}
	store, err := history.Open(ctx, cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}

// optionalHistory is openHistory for commands that work without a store: an
// open failure is logged and matching continues unrecorded.
func (c *commandContext) optionalHistory(ctx context.Context) *history.Store {
	store, err := c.openHistory(ctx)
	if err != nil {
		c.logger.Warn("history unavailable", "error", err)
		return nil
	}
	return store
}

func closeHistory(store *history.Store, logger *slog.Logger) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		logger.Warn("failed to close history", "error", err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}
