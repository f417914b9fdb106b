package match

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/ironsheep/puzzle-match/internal/imaging"
)

// noiseRaster builds a deterministic RGB raster of uniform noise.
func noiseRaster(t *testing.T, w, h int, seed uint64) *imaging.Raster {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	pix := make([]uint8, w*h*3)
	for i := range pix {
		pix[i] = uint8(rng.IntN(256))
	}
	r, err := imaging.NewRaster(w, h, 3, pix)
	if err != nil {
		t.Fatalf("NewRaster failed: %v", err)
	}
	return r
}

// grayNoise builds a deterministic gray raster of uniform noise.
func grayNoise(t *testing.T, w, h int, seed uint64) *imaging.Raster {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed+1))
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = uint8(rng.IntN(256))
	}
	r, err := imaging.NewRaster(w, h, 1, pix)
	if err != nil {
		t.Fatalf("NewRaster failed: %v", err)
	}
	return r
}

// smoothRaster builds a deterministic, non-periodic RGB texture with no
// sharp edges, so it survives resampling well.
func smoothRaster(t *testing.T, w, h int) *imaging.Raster {
	t.Helper()
	pix := make([]uint8, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fx, fy := float64(x), float64(y)
			r := 128 + 60*math.Sin(fx/7.3+0.5*math.Sin(fy/11.1)) + 50*math.Cos(fy/5.9+fx/13.7)
			g := 128 + 70*math.Cos(fx/9.1-fy/6.7) + 40*math.Sin(fx*fy/900)
			b := 128 + 90*math.Sin((fx+2*fy)/17.3)
			i := (y*w + x) * 3
			pix[i] = clampByte(r)
			pix[i+1] = clampByte(g)
			pix[i+2] = clampByte(b)
		}
	}
	out, err := imaging.NewRaster(w, h, 3, pix)
	if err != nil {
		t.Fatalf("NewRaster failed: %v", err)
	}
	return out
}

func clampByte(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

func mustCrop(t *testing.T, r *imaging.Raster, x, y, w, h int) *imaging.Raster {
	t.Helper()
	c, err := r.Crop(x, y, w, h)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	return c
}

func mustGray(t *testing.T, w, h int, pix []uint8) *imaging.Raster {
	t.Helper()
	r, err := imaging.NewRaster(w, h, 1, pix)
	if err != nil {
		t.Fatalf("NewRaster failed: %v", err)
	}
	return r
}
