package match

import (
	"fmt"
	"math"
	"strings"
)

// Metric selects the coarse-stage scoring function. Every metric is oriented
// so that lower scores are better.
type Metric int

const (
	// SqDiffNormed is the normalized sum of squared differences.
	SqDiffNormed Metric = iota

	// CCorrNormed is the negated normalized cross-correlation.
	CCorrNormed

	// SqDiff is the raw sum of squared differences.
	SqDiff

	// CCoeffNormed is the negated zero-mean normalized cross-correlation.
	CCoeffNormed
)

var metricNames = map[Metric]string{
	SqDiffNormed: "SQDIFF_NORMED",
	CCorrNormed:  "CCORR_NORMED",
	SqDiff:       "SQDIFF",
	CCoeffNormed: "CCOEFF_NORMED",
}

// Metrics lists every supported metric in declaration order.
func Metrics() []Metric {
	return []Metric{SqDiffNormed, CCorrNormed, SqDiff, CCoeffNormed}
}

func (m Metric) String() string {
	if name, ok := metricNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Metric(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) {
	if _, ok := metricNames[m]; !ok {
		return nil, fmt.Errorf("unknown metric %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMetric maps a metric name to a Metric. Matching ignores case and
// accepts '-' in place of '_'; an empty name selects SQDIFF_NORMED.
func ParseMetric(name string) (Metric, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	if norm == "" {
		return SqDiffNormed, nil
	}
	for m, n := range metricNames {
		if n == norm {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q (want SQDIFF_NORMED, CCORR_NORMED, SQDIFF or CCOEFF_NORMED)", name)
}

// windowSums holds the exact integer sums a score is derived from. n is the
// piece area; t and t2 are the piece sum and sum of squares; i and i2 the same
// for the puzzle window; ti is the cross term.
type windowSums struct {
	n     int64
	t, t2 int64
	i, i2 int64
	ti    int64
}

// score turns exact window sums into a lower-is-better score. All strategies
// share it, so equal sums always give bit-identical scores.
func (m Metric) score(s windowSums) float64 {
	switch m {
	case SqDiff:
		return float64(s.t2 - 2*s.ti + s.i2)

	case CCorrNormed:
		den := math.Sqrt(float64(s.t2) * float64(s.i2))
		if den == 0 {
			return 0
		}
		return -float64(s.ti) / den

	case CCoeffNormed:
		// Scaled by n to stay in integers.
		cov := s.n*s.ti - s.t*s.i
		varT := s.n*s.t2 - s.t*s.t
		varI := s.n*s.i2 - s.i*s.i
		if varT <= 0 || varI <= 0 {
			return 0
		}
		return -float64(cov) / math.Sqrt(float64(varT)*float64(varI))

	default:
		ssd := s.t2 - 2*s.ti + s.i2
		den := math.Sqrt(float64(s.t2) * float64(s.i2))
		if den == 0 {
			if ssd == 0 {
				return 0
			}
			return 1
		}
		return float64(ssd) / den
	}
}
