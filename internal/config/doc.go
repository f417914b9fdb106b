// Package config loads, normalizes, and validates puzzle-match configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts) and
// reads TOML files. A missing file is not an error: the defaults apply. Use
// MatchOptions to turn the [matcher] section into match.Options.
package config
