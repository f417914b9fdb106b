package match

import "math"

const (
	// minScaledDim is the largest piece dimension that is still rejected.
	minScaledDim = 4

	// maxPuzzleFraction caps a scaled piece relative to the puzzle.
	maxPuzzleFraction = 0.9
)

// estimateBand brackets a piece-count estimate to absorb irregular piece shapes.
var estimateBand = []float64{0.85, 1.0, 1.15}

// genericLadder is tried when the piece count is unknown.
var genericLadder = []float64{0.4, 0.6, 0.8, 1.0, 1.2, 1.5}

// ScaleCandidates proposes resize factors for a pieceW x pieceH piece inside a
// puzzleW x puzzleH puzzle.
//
// With expectedPieces > 1 the piece is assumed to cover 1/expectedPieces of
// the puzzle area at its native aspect ratio, and the estimate is bracketed at
// 0.85x, 1x and 1.15x. Otherwise a fixed ladder is used. Factors whose scaled
// piece would be 4px or less, or more than 90% of the puzzle, in either axis
// are dropped. The result is never empty: {1.0} is returned when nothing
// survives.
func ScaleCandidates(puzzleW, puzzleH, pieceW, pieceH, expectedPieces int) []float64 {
	var raw []float64
	if expectedPieces > 1 && pieceW > 0 && pieceH > 0 {
		area := float64(puzzleW) * float64(puzzleH) / float64(expectedPieces)
		aspect := float64(pieceW) / float64(pieceH)
		h := math.Sqrt(area / aspect)
		base := aspect * h / float64(pieceW)
		raw = make([]float64, len(estimateBand))
		for i, f := range estimateBand {
			raw[i] = base * f
		}
	} else {
		raw = genericLadder
	}

	out := make([]float64, 0, len(raw))
	for _, s := range raw {
		if scaleFits(s, puzzleW, puzzleH, pieceW, pieceH) {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []float64{1.0}
	}
	return out
}

func scaleFits(s float64, puzzleW, puzzleH, pieceW, pieceH int) bool {
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return false
	}
	w := int(float64(pieceW) * s)
	h := int(float64(pieceH) * s)
	if w <= minScaledDim || h <= minScaledDim {
		return false
	}
	return float64(w) <= maxPuzzleFraction*float64(puzzleW) &&
		float64(h) <= maxPuzzleFraction*float64(puzzleH)
}
