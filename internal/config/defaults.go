package config

import "github.com/ironsheep/puzzle-match/internal/match"

const (
	defaultMetric      = "SQDIFF_NORMED"
	defaultScanStride  = match.DefaultStride
	defaultLogFormat   = "console"
	defaultLogLevel    = "info"
	defaultHistoryPath = "~/.local/share/puzzle-match/history.db"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Matcher: Matcher{
			Downscale:    true,
			MaxCoarseDim: match.DefaultMaxCoarseDim,
			RefineRadius: match.DefaultRefineRadius,
			Metric:       defaultMetric,
		},
		Scanner: Scanner{
			Stride: defaultScanStride,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryPath,
		},
	}
}
