package config

import (
	"errors"
	"fmt"

	"github.com/ironsheep/puzzle-match/internal/match"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMatcher(); err != nil {
		return err
	}
	if c.Scanner.Stride <= 0 {
		return errors.New("scanner.stride must be positive")
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.History.Enabled && c.History.Path == "" {
		return errors.New("history.path must be set when history is enabled")
	}
	return nil
}

func (c *Config) validateMatcher() error {
	if c.Matcher.MaxCoarseDim <= 0 {
		return errors.New("matcher.max_coarse_dim must be positive")
	}
	if c.Matcher.RefineRadius <= 0 {
		return errors.New("matcher.refine_radius must be positive")
	}
	if _, err := match.ParseMetric(c.Matcher.Metric); err != nil {
		return fmt.Errorf("matcher.metric: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
}
