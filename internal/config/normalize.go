package config

import (
	"os"
	"strings"

	"github.com/ironsheep/puzzle-match/internal/match"
)

// LogLevelEnv overrides logging.level when set.
const LogLevelEnv = "PUZZLE_MATCH_LOG_LEVEL"

func (c *Config) normalize() error {
	c.normalizeMatcher()
	if c.Scanner.Stride <= 0 {
		c.Scanner.Stride = defaultScanStride
	}
	c.normalizeLogging()
	return c.normalizeHistory()
}

func (c *Config) normalizeMatcher() {
	c.Matcher.Metric = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(c.Matcher.Metric), "-", "_"))
	if c.Matcher.Metric == "" {
		c.Matcher.Metric = defaultMetric
	}
	if c.Matcher.MaxCoarseDim == 0 {
		c.Matcher.MaxCoarseDim = match.DefaultMaxCoarseDim
	}
	if c.Matcher.RefineRadius == 0 {
		c.Matcher.RefineRadius = match.DefaultRefineRadius
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console", "text":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	if value, ok := os.LookupEnv(LogLevelEnv); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeHistory() error {
	if c.History.Path == "" {
		c.History.Path = defaultHistoryPath
	}
	expanded, err := expandPath(c.History.Path)
	if err != nil {
		return err
	}
	c.History.Path = expanded
	return nil
}
