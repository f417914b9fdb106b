package imaging

import (
	"fmt"
	"math"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// dominantSampleSize is the edge length of the thumbnail the dominant color
// is computed on.
const dominantSampleSize = 50

// RGBColor represents an RGB color with 8-bit components.
type RGBColor struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
}

// HSLColor represents a color in HSL (Hue, Saturation, Lightness) color space.
type HSLColor struct {
	H int `json:"h"` // Hue: 0-360 degrees (0=red, 120=green, 240=blue)
	S int `json:"s"` // Saturation: 0-100 percent (0=gray, 100=vivid)
	L int `json:"l"` // Lightness: 0-100 percent (0=black, 50=normal, 100=white)
}

// ColorResult contains a color value in multiple representations.
type ColorResult struct {
	Hex string   `json:"hex"` // Hex format "#RRGGBB"
	RGB RGBColor `json:"rgb"` // RGB components
	HSL HSLColor `json:"hsl"` // HSL representation
}

func (c RGBColor) colorful() colorful.Color {
	return colorful.Color{R: float64(c.R) / 255.0, G: float64(c.G) / 255.0, B: float64(c.B) / 255.0}
}

// Describe returns the color in hex, RGB and HSL form.
func (c RGBColor) Describe() ColorResult {
	cf := c.colorful()
	h, s, l := cf.Hsl()
	return ColorResult{
		Hex: fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B),
		RGB: c,
		HSL: HSLColor{H: int(math.Round(h)) % 360, S: int(math.Round(s * 100)), L: int(math.Round(l * 100))},
	}
}

// ColorDistance is the Euclidean distance between two colors in 0..255 RGB
// space: 0 for equal colors, about 441.67 for black against white.
func ColorDistance(a, b RGBColor) float64 {
	return a.colorful().DistanceRgb(b.colorful()) * 255.0
}

// PerceptualDistance is the CIEDE2000 difference between two colors. Unlike
// ColorDistance it tracks how different the colors look rather than how far
// apart their channel values are.
func PerceptualDistance(a, b RGBColor) float64 {
	return a.colorful().DistanceCIEDE2000(b.colorful())
}

// DominantColor returns the most frequent exact color of the raster after it
// has been reduced to a 50x50 thumbnail. Ties go to the color seen first in
// row-major order.
func DominantColor(r *Raster) (RGBColor, error) {
	thumb, err := r.RGB().Resize(dominantSampleSize, dominantSampleSize, FilterArea)
	if err != nil {
		return RGBColor{}, fmt.Errorf("failed to build color thumbnail: %w", err)
	}

	type tally struct {
		count int
		first int
	}
	counts := make(map[RGBColor]*tally)
	pix := thumb.Pix()
	for i := 0; i < len(pix); i += 3 {
		c := RGBColor{R: pix[i], G: pix[i+1], B: pix[i+2]}
		if t, ok := counts[c]; ok {
			t.count++
			continue
		}
		counts[c] = &tally{count: 1, first: i}
	}

	var best RGBColor
	bestCount, bestFirst := 0, 0
	for c, t := range counts {
		if t.count > bestCount || (t.count == bestCount && t.first < bestFirst) {
			best, bestCount, bestFirst = c, t.count, t.first
		}
	}
	return best, nil
}

// ColorFrequency represents a color and its occurrence frequency in a raster.
type ColorFrequency struct {
	Hex        string   `json:"hex"`        // Hex color "#RRGGBB" (quantized)
	Percentage float64  `json:"percentage"` // Percentage of pixels with this color (0-100)
	RGB        RGBColor `json:"rgb"`        // RGB components (quantized)
}

// DominantColorsResult contains the most frequently occurring colors, most
// common first.
type DominantColorsResult struct {
	Colors []ColorFrequency `json:"colors"`
}

// DominantColors extracts the count most common colors of the raster.
//
// # Color Quantization
//
// To group similar colors each component is quantized to a multiple of 16:
//
//	quantized = (original / 16) * 16
//
// so #F0F0F0 and #FAFAFA fall into the same bucket.
func DominantColors(r *Raster, count int) (*DominantColorsResult, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}

	rgb := r.RGB()
	colorCounts := make(map[RGBColor]int)
	pix := rgb.Pix()
	for i := 0; i < len(pix); i += 3 {
		c := RGBColor{R: pix[i] / 16 * 16, G: pix[i+1] / 16 * 16, B: pix[i+2] / 16 * 16}
		colorCounts[c]++
	}

	total := float64(rgb.Area())
	colors := make([]ColorFrequency, 0, len(colorCounts))
	for c, cnt := range colorCounts {
		colors = append(colors, ColorFrequency{
			Hex:        c.Describe().Hex,
			Percentage: float64(cnt) / total * 100,
			RGB:        c,
		})
	}

	sort.Slice(colors, func(i, j int) bool {
		if colors[i].Percentage != colors[j].Percentage {
			return colors[i].Percentage > colors[j].Percentage
		}
		return colors[i].Hex < colors[j].Hex
	})

	if len(colors) > count {
		colors = colors[:count]
	}

	return &DominantColorsResult{Colors: colors}, nil
}
