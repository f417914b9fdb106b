package match

import (
	"fmt"
	"math"

	"github.com/ironsheep/puzzle-match/internal/imaging"
)

// Refinement is the result of a full-resolution local search.
type Refinement struct {
	X                  int     `json:"x"`
	Y                  int     `json:"y"`
	MeanAbsDiff        float64 `json:"mean_abs_diff"`
	Similarity         float64 `json:"similarity"`
	PositionsEvaluated int     `json:"positions_evaluated"`
}

// refineRadius converts a radius in coarse pixels to full-resolution pixels.
func refineRadius(coarseRadius int, coarseScale float64) int {
	return int(math.Ceil(float64(coarseRadius) / coarseScale))
}

// Refine searches every offset within radius of (estX, estY), clamped to
// the puzzle, and returns the one with the lowest grayscale mean absolute
// difference. Ties go to the first offset in row-major order. When the
// clamped window collapses to one point that point is still evaluated.
func Refine(puzzle, piece *imaging.Raster, estX, estY, radius int) (*Refinement, error) {
	if err := validRaster("puzzle", puzzle); err != nil {
		return nil, err
	}
	if err := validRaster("piece", piece); err != nil {
		return nil, err
	}
	maxX := puzzle.Width() - piece.Width()
	maxY := puzzle.Height() - piece.Height()
	if maxX < 0 || maxY < 0 {
		return nil, fmt.Errorf("piece %dx%d cannot be placed in puzzle %dx%d: %w",
			piece.Width(), piece.Height(), puzzle.Width(), puzzle.Height(), ErrEmptySearchSpace)
	}
	radius = max(radius, 0)

	x0, x1 := clamp(estX-radius, 0, maxX), clamp(estX+radius, 0, maxX)
	y0, y1 := clamp(estY-radius, 0, maxY), clamp(estY+radius, 0, maxY)

	grayPuzzle, grayPiece := puzzle.Gray(), piece.Gray()
	best := Refinement{X: x0, Y: y0}
	bestSum := int64(-1)
	evaluated := 0

search:
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			evaluated++
			var limit int64
			if bestSum > 0 {
				limit = bestSum
			}
			sum := grayPuzzle.AbsDiffAt(grayPiece, x, y, limit)
			if bestSum < 0 || sum < bestSum {
				bestSum = sum
				best.X, best.Y = x, y
				if bestSum == 0 {
					break search
				}
			}
		}
	}

	best.MeanAbsDiff = float64(bestSum) / float64(grayPiece.Area())
	best.Similarity = imaging.Similarity(best.MeanAbsDiff)
	best.PositionsEvaluated = evaluated
	return &best, nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
