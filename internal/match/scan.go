package match

import (
	"fmt"

	"github.com/ironsheep/puzzle-match/internal/imaging"
)

// DefaultStride is the scan stride used when none is configured.
const DefaultStride = 4

// ProgressFunc is called by Scan before each scanned row with the row's
// y offset and the number of candidate rows (H - h + 1). Panics raised by the
// callback are recovered and ignored.
type ProgressFunc func(row, totalRows int)

// ScanOutcome is the result of a stride-sampled brute-force scan.
type ScanOutcome struct {
	X                  int     `json:"x"`
	Y                  int     `json:"y"`
	BestDiff           float64 `json:"best_diff"`
	Similarity         float64 `json:"similarity"`
	PositionsEvaluated int     `json:"positions_evaluated"`
	Stride             int     `json:"stride"`
}

// Scan slides piece over puzzle at offsets 0, stride, 2*stride, ... on both
// axes and returns the offset with the lowest mean absolute difference over
// all three color channels. There is no scale search. A stride below 1 is
// treated as 1.
//
// The piece must fit inside the puzzle; otherwise ErrPieceExceedsPuzzle is
// returned before any scoring and before progress is called.
func Scan(puzzle, piece *imaging.Raster, stride int, progress ProgressFunc) (*ScanOutcome, error) {
	if err := validRaster("puzzle", puzzle); err != nil {
		return nil, err
	}
	if err := validRaster("piece", piece); err != nil {
		return nil, err
	}
	if err := checkFits(puzzle, piece); err != nil {
		return nil, err
	}
	stride = max(stride, 1)

	rgbPuzzle, rgbPiece := puzzle.RGB(), piece.RGB()
	searchW := puzzle.Width() - piece.Width() + 1
	searchH := puzzle.Height() - piece.Height() + 1

	var (
		bestX, bestY int
		bestSum      int64 = -1
		positions    int
	)
	for y := 0; y < searchH; y += stride {
		notify(progress, y, searchH)
		for x := 0; x < searchW; x += stride {
			positions++
			if bestSum == 0 {
				continue
			}
			var limit int64
			if bestSum > 0 {
				limit = bestSum
			}
			sum := rgbPuzzle.AbsDiffAt(rgbPiece, x, y, limit)
			if bestSum < 0 || sum < bestSum {
				bestSum, bestX, bestY = sum, x, y
			}
		}
	}
	if positions == 0 {
		return nil, fmt.Errorf("scan of %dx%d piece: %w", piece.Width(), piece.Height(), ErrEmptySearchSpace)
	}

	diff := float64(bestSum) / float64(rgbPiece.Area()*3)
	return &ScanOutcome{
		X:                  bestX,
		Y:                  bestY,
		BestDiff:           diff,
		Similarity:         imaging.Similarity(diff),
		PositionsEvaluated: positions,
		Stride:             stride,
	}, nil
}

func notify(progress ProgressFunc, row, total int) {
	if progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			Logger().Debug("match: progress callback panicked", "row", row, "panic", r)
		}
	}()
	progress(row, total)
}
