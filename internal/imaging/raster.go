package imaging

import (
	"errors"
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// ErrEmptyRaster is returned when a raster would have no pixels.
var ErrEmptyRaster = errors.New("raster has no pixels")

// Filter selects the resampling kernel used by Resize.
type Filter int

const (
	// FilterArea averages every source pixel covered by a destination pixel.
	// Use it when shrinking.
	FilterArea Filter = iota

	// FilterLanczos is a 3-lobe Lanczos kernel. Use it when enlarging.
	FilterLanczos

	// FilterNearest copies the closest source pixel without blending.
	FilterNearest
)

func (f Filter) resampler() imaging.ResampleFilter {
	switch f {
	case FilterLanczos:
		return imaging.Lanczos
	case FilterNearest:
		return imaging.NearestNeighbor
	default:
		return imaging.Box
	}
}

// Raster is an immutable, dense, row-major pixel buffer with either three
// (RGB) or one (gray) 8-bit channels per pixel.
//
// Every transformation returns a new Raster; the receiver is never modified.
// A Raster may therefore be shared freely between goroutines.
type Raster struct {
	width    int
	height   int
	channels int
	pix      []uint8
}

// NewRaster wraps pix as a Raster. The slice must hold exactly
// width*height*channels bytes and must not be modified afterwards.
func NewRaster(width, height, channels int, pix []uint8) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d: %w", width, height, ErrEmptyRaster)
	}
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("unsupported channel count %d (want 1 or 3)", channels)
	}
	if len(pix) != width*height*channels {
		return nil, fmt.Errorf("pixel buffer holds %d bytes, want %d", len(pix), width*height*channels)
	}
	return &Raster{width: width, height: height, channels: channels, pix: pix}, nil
}

// FromImage converts a decoded image into a Raster.
//
// Gray images keep a single channel. Everything else becomes RGB; the alpha
// channel is dropped without compositing, matching a plain RGB conversion.
func FromImage(img image.Image) (*Raster, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyRaster
	}

	if g, ok := img.(*image.Gray); ok {
		pix := make([]uint8, b.Dx()*b.Dy())
		for y := 0; y < b.Dy(); y++ {
			off := g.PixOffset(b.Min.X, b.Min.Y+y)
			copy(pix[y*b.Dx():(y+1)*b.Dx()], g.Pix[off:off+b.Dx()])
		}
		return &Raster{width: b.Dx(), height: b.Dy(), channels: 1, pix: pix}, nil
	}

	return fromNRGBA(imaging.Clone(img), 3), nil
}

// fromNRGBA copies an NRGBA image into a raster with the given channel count.
// For one channel the red component is used, which is exact for images that
// started out gray.
func fromNRGBA(src *image.NRGBA, channels int) *Raster {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]uint8, w*h*channels)
	for y := 0; y < h; y++ {
		off := src.PixOffset(b.Min.X, b.Min.Y+y)
		row := src.Pix[off : off+w*4]
		dst := pix[y*w*channels : (y+1)*w*channels]
		for x := 0; x < w; x++ {
			if channels == 1 {
				dst[x] = row[x*4]
				continue
			}
			dst[x*3] = row[x*4]
			dst[x*3+1] = row[x*4+1]
			dst[x*3+2] = row[x*4+2]
		}
	}
	return &Raster{width: w, height: h, channels: channels, pix: pix}
}

// Width returns the raster width in pixels.
func (r *Raster) Width() int { return r.width }

// Height returns the raster height in pixels.
func (r *Raster) Height() int { return r.height }

// Channels returns 3 for RGB rasters and 1 for gray rasters.
func (r *Raster) Channels() int { return r.channels }

// Stride returns the number of bytes per row.
func (r *Raster) Stride() int { return r.width * r.channels }

// Pix exposes the backing buffer. Callers must treat it as read-only.
func (r *Raster) Pix() []uint8 { return r.pix }

// Area returns width*height.
func (r *Raster) Area() int { return r.width * r.height }

// IsGray reports whether the raster has a single channel.
func (r *Raster) IsGray() bool { return r.channels == 1 }

// Image returns a standard library view of the raster: *image.Gray for gray
// rasters and an opaque *image.NRGBA for RGB rasters.
func (r *Raster) Image() image.Image {
	if r.channels == 1 {
		g := image.NewGray(image.Rect(0, 0, r.width, r.height))
		copy(g.Pix, r.pix)
		return g
	}
	img := image.NewNRGBA(image.Rect(0, 0, r.width, r.height))
	for i, j := 0, 0; i < len(r.pix); i, j = i+3, j+4 {
		img.Pix[j] = r.pix[i]
		img.Pix[j+1] = r.pix[i+1]
		img.Pix[j+2] = r.pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// Luma weights for Gray, the ITU-R BT.601 coefficients. bild's own
// Grayscale uses 0.3/0.6/0.1.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// Gray returns a single channel luminance copy of the raster,
// round(0.299R + 0.587G + 0.114B). A gray raster returns itself.
func (r *Raster) Gray() *Raster {
	if r.channels == 1 {
		return r
	}
	// bild returns RGBA with the luma replicated in R, G and B.
	g := effect.GrayscaleWithWeights(r.Image(), lumaR, lumaG, lumaB)
	b := g.Bounds()
	pix := make([]uint8, r.width*r.height)
	for y := 0; y < r.height; y++ {
		off := g.PixOffset(b.Min.X, b.Min.Y+y)
		dst := pix[y*r.width : (y+1)*r.width]
		for x := range dst {
			dst[x] = g.Pix[off+x*4]
		}
	}
	return &Raster{width: r.width, height: r.height, channels: 1, pix: pix}
}

// RGB returns a three channel copy of the raster. An RGB raster returns itself.
func (r *Raster) RGB() *Raster {
	if r.channels == 3 {
		return r
	}
	pix := make([]uint8, len(r.pix)*3)
	for i, v := range r.pix {
		pix[i*3] = v
		pix[i*3+1] = v
		pix[i*3+2] = v
	}
	return &Raster{width: r.width, height: r.height, channels: 3, pix: pix}
}

// Resize resamples the raster to width x height with the given filter.
// Resizing to the current size returns the receiver unchanged.
func (r *Raster) Resize(width, height int, filter Filter) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid resize target %dx%d: %w", width, height, ErrEmptyRaster)
	}
	if width == r.width && height == r.height {
		return r, nil
	}
	resized := imaging.Resize(r.Image(), width, height, filter.resampler())
	return fromNRGBA(resized, r.channels), nil
}

// Crop returns the w x h sub-raster whose top-left corner is (x, y).
func (r *Raster) Crop(x, y, w, h int) (*Raster, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid crop size %dx%d: %w", w, h, ErrEmptyRaster)
	}
	if x < 0 || y < 0 || x+w > r.width || y+h > r.height {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside raster bounds (0,0)-(%d,%d)",
			x, y, x+w, y+h, r.width, r.height)
	}
	if r.channels == 1 {
		pix := make([]uint8, w*h)
		for row := 0; row < h; row++ {
			off := (y+row)*r.width + x
			copy(pix[row*w:(row+1)*w], r.pix[off:off+w])
		}
		return &Raster{width: w, height: h, channels: 1, pix: pix}, nil
	}
	cropped := imaging.Crop(r.Image(), image.Rect(x, y, x+w, y+h))
	return fromNRGBA(cropped, 3), nil
}
