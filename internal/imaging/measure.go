package imaging

import (
	"fmt"
	"math"
)

// AbsDiffAt sums the absolute per-channel differences between piece and the
// piece-sized window of r whose top-left corner is (x, y).
//
// Both rasters must have the same channel count and the window must lie
// inside r; callers are expected to have validated that. When limit is
// positive the summation stops as soon as the running total reaches limit and
// that partial total is returned, which is enough to reject a window that
// cannot beat an earlier one.
func (r *Raster) AbsDiffAt(piece *Raster, x, y int, limit int64) int64 {
	rowLen := piece.width * piece.channels
	var sum int64
	for row := 0; row < piece.height; row++ {
		src := r.pix[((y+row)*r.width+x)*r.channels:]
		tpl := piece.pix[row*rowLen : (row+1)*rowLen]
		var rowSum int64
		for i, v := range tpl {
			rowSum += int64(absDiff(src[i], v))
		}
		sum += rowSum
		if limit > 0 && sum >= limit {
			return sum
		}
	}
	return sum
}

// MeanAbsDiff returns the mean absolute pixel difference between two rasters
// of identical size: 0 for identical rasters, 255 for maximal difference.
// Gray and RGB rasters may be mixed; the gray one is expanded to RGB.
func MeanAbsDiff(a, b *Raster) (float64, error) {
	if a.width != b.width || a.height != b.height {
		return 0, fmt.Errorf("rasters must have the same size for diff: %dx%d vs %dx%d",
			a.width, a.height, b.width, b.height)
	}
	if a.channels != b.channels {
		a, b = a.RGB(), b.RGB()
	}
	sum := a.AbsDiffAt(b, 0, 0, 0)
	return float64(sum) / float64(len(a.pix)), nil
}

// Similarity converts a mean absolute difference on the 0..255 scale into a
// similarity in [0, 1], where 1 means pixel-identical.
func Similarity(meanAbsDiff float64) float64 {
	s := 1.0 - meanAbsDiff/255.0
	return math.Max(0, math.Min(1, s))
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
