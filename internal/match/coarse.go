package match

import (
	"fmt"

	"github.com/ironsheep/puzzle-match/internal/imaging"
)

// Placement is the best offset found by one coarse correlation run.
type Placement struct {
	X     int
	Y     int
	Score float64
}

// CoarseMatcher runs the exhaustive coarse correlation of a gray piece over a
// gray puzzle and returns the lowest-scoring offset. Ties resolve to the first
// offset in row-major order. Implementations differ only in where the cross
// terms are computed; scores are derived identically.
type CoarseMatcher interface {
	// Device reports where the correlation runs.
	Device() Device

	// Match scores every offset of piece inside puzzle.
	Match(puzzle, piece *imaging.Raster, metric Metric) (Placement, error)

	// Close releases any device resources.
	Close() error
}

// cpuMatcher computes cross terms on the CPU, directly or through an FFT.
type cpuMatcher struct{}

var _ CoarseMatcher = cpuMatcher{}

func (cpuMatcher) Device() Device { return DeviceCPU }

func (cpuMatcher) Close() error { return nil }

func (cpuMatcher) Match(puzzle, piece *imaging.Raster, metric Metric) (Placement, error) {
	if err := checkFits(puzzle, piece); err != nil {
		return Placement{}, err
	}
	cross, method := crossTerms(puzzle, piece)
	Logger().Debug("match: cpu correlation",
		"method", method,
		"puzzle", fmt.Sprintf("%dx%d", puzzle.Width(), puzzle.Height()),
		"piece", fmt.Sprintf("%dx%d", piece.Width(), piece.Height()))
	return bestPlacement(newIntegral(puzzle), piece, cross, metric), nil
}

func checkFits(puzzle, piece *imaging.Raster) error {
	if piece.Width() > puzzle.Width() || piece.Height() > puzzle.Height() {
		return fmt.Errorf("piece %dx%d does not fit puzzle %dx%d: %w",
			piece.Width(), piece.Height(), puzzle.Width(), puzzle.Height(), ErrPieceExceedsPuzzle)
	}
	return nil
}

// bestPlacement scores cross, the row-major cross terms of piece over the
// puzzle described by ig, and returns the minimum. Only a strictly lower
// score replaces the current best.
func bestPlacement(ig *integral, piece *imaging.Raster, cross []int64, metric Metric) Placement {
	pw, ph := piece.Width(), piece.Height()
	outW := ig.stride - pw
	t, t2 := pieceSums(piece)
	s := windowSums{n: int64(pw * ph), t: t, t2: t2}

	best := Placement{Score: 0}
	for idx, ti := range cross {
		x, y := idx%outW, idx/outW
		s.i, s.i2 = ig.window(x, y, pw, ph)
		s.ti = ti
		score := metric.score(s)
		if idx == 0 || score < best.Score {
			best = Placement{X: x, Y: y, Score: score}
		}
	}
	return best
}
