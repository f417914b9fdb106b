package match

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/ironsheep/puzzle-match/internal/imaging"
)

// directLimit is the multiply-add count below which the cross term is computed
// with plain loops instead of an FFT.
const directLimit = 1 << 22

// integral holds summed-area tables of a gray raster and of its squares.
// Entry (x, y) covers the pixels above and to the left of (x, y).
type integral struct {
	stride int
	sum    []int64
	sq     []int64
}

func newIntegral(r *imaging.Raster) *integral {
	w, h := r.Width(), r.Height()
	stride := w + 1
	ig := &integral{
		stride: stride,
		sum:    make([]int64, stride*(h+1)),
		sq:     make([]int64, stride*(h+1)),
	}
	pix := r.Pix()
	for y := 0; y < h; y++ {
		var rowSum, rowSq int64
		for x := 0; x < w; x++ {
			v := int64(pix[y*w+x])
			rowSum += v
			rowSq += v * v
			i := (y+1)*stride + x + 1
			ig.sum[i] = ig.sum[i-stride] + rowSum
			ig.sq[i] = ig.sq[i-stride] + rowSq
		}
	}
	return ig
}

// window returns the pixel sum and the sum of squares of the w x h window at (x, y).
func (ig *integral) window(x, y, w, h int) (sum, sq int64) {
	a := y*ig.stride + x
	b := a + w
	c := (y+h)*ig.stride + x
	d := c + w
	return ig.sum[d] - ig.sum[b] - ig.sum[c] + ig.sum[a],
		ig.sq[d] - ig.sq[b] - ig.sq[c] + ig.sq[a]
}

// pieceSums returns the pixel sum and sum of squares of a gray raster.
func pieceSums(r *imaging.Raster) (sum, sq int64) {
	for _, v := range r.Pix() {
		sum += int64(v)
		sq += int64(v) * int64(v)
	}
	return sum, sq
}

// crossTerms returns sum(T*I) for every offset of piece inside puzzle, in
// row-major order over the (W-w+1) x (H-h+1) offset grid. Both rasters must be
// gray and the piece must fit. The second result names the method used.
func crossTerms(puzzle, piece *imaging.Raster) ([]int64, string) {
	outW := puzzle.Width() - piece.Width() + 1
	outH := puzzle.Height() - piece.Height() + 1
	work := int64(outW) * int64(outH) * int64(piece.Area())
	if work <= directLimit {
		return crossDirect(puzzle, piece), "direct"
	}
	return crossFFT(puzzle, piece), "fft"
}

// crossAt computes the cross term for a single offset.
func crossAt(puzzle, piece *imaging.Raster, x, y int) int64 {
	pw, ph := piece.Width(), piece.Height()
	stride := puzzle.Width()
	src, tpl := puzzle.Pix(), piece.Pix()
	var total int64
	for r := 0; r < ph; r++ {
		row := src[(y+r)*stride+x : (y+r)*stride+x+pw]
		t := tpl[r*pw : (r+1)*pw]
		var acc int64
		for i, v := range t {
			acc += int64(v) * int64(row[i])
		}
		total += acc
	}
	return total
}

func crossDirect(puzzle, piece *imaging.Raster) []int64 {
	outW := puzzle.Width() - piece.Width() + 1
	outH := puzzle.Height() - piece.Height() + 1
	out := make([]int64, outW*outH)
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			out[y*outW+x] = crossAt(puzzle, piece, x, y)
		}
	}
	return out
}

// crossFFT correlates through the frequency domain: row transforms are real,
// column transforms complex, and the product F(I)*conj(F(T)) is transformed
// back the same way. The transform only needs to cover the puzzle because
// offsets that would wrap around are never read.
//
// Every true value is an integer well below 2^53 and the accumulated rounding
// error stays far under 0.5, so rounding recovers the exact cross term.
func crossFFT(puzzle, piece *imaging.Raster) []int64 {
	W, H := puzzle.Width(), puzzle.Height()
	outW := W - piece.Width() + 1
	outH := H - piece.Height() + 1

	nx, ny := smoothSize(W), smoothSize(H)
	half := nx/2 + 1
	rows := fourier.NewFFT(nx)
	cols := fourier.NewCmplxFFT(ny)

	fi := spectrum2D(puzzle, rows, cols, nx, ny)
	ft := spectrum2D(piece, rows, cols, nx, ny)
	for i := range fi {
		f := ft[i]
		fi[i] *= complex(real(f), -imag(f))
	}

	col := make([]complex128, ny)
	back := make([]complex128, ny)
	for k := 0; k < half; k++ {
		for y := 0; y < ny; y++ {
			col[y] = fi[y*half+k]
		}
		cols.Sequence(back, col)
		for y := 0; y < outH; y++ {
			fi[y*half+k] = back[y]
		}
	}

	norm := 1 / float64(nx*ny)
	seq := make([]float64, nx)
	out := make([]int64, outW*outH)
	for y := 0; y < outH; y++ {
		rows.Sequence(seq, fi[y*half:(y+1)*half])
		for x := 0; x < outW; x++ {
			out[y*outW+x] = int64(math.Round(seq[x] * norm))
		}
	}
	return out
}

// spectrum2D returns the ny x (nx/2+1) half spectrum of r zero-padded to
// nx x ny, stored row-major.
func spectrum2D(r *imaging.Raster, rows *fourier.FFT, cols *fourier.CmplxFFT, nx, ny int) []complex128 {
	half := nx/2 + 1
	freq := make([]complex128, ny*half)
	w, h := r.Width(), r.Height()
	pix := r.Pix()

	seq := make([]float64, nx)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			seq[x] = float64(pix[y*w+x])
		}
		rows.Coefficients(freq[y*half:(y+1)*half], seq)
	}

	col := make([]complex128, ny)
	coeff := make([]complex128, ny)
	for k := 0; k < half; k++ {
		for y := 0; y < ny; y++ {
			col[y] = freq[y*half+k]
		}
		cols.Coefficients(coeff, col)
		for y := 0; y < ny; y++ {
			freq[y*half+k] = coeff[y]
		}
	}
	return freq
}

// smoothSize returns the smallest n' >= n whose only prime factors are 2, 3
// and 5.
func smoothSize(n int) int {
	if n <= 1 {
		return 1
	}
	for m := n; ; m++ {
		k := m
		for _, p := range []int{2, 3, 5} {
			for k%p == 0 {
				k /= p
			}
		}
		if k == 1 {
			return m
		}
	}
}
