package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestRGBColor_Describe(t *testing.T) {
	tests := []struct {
		name    string
		c       RGBColor
		wantHex string
		wantHue int
		wantL   int
	}{
		{"pure red", RGBColor{255, 0, 0}, "#FF0000", 0, 50},
		{"pure green", RGBColor{0, 255, 0}, "#00FF00", 120, 50},
		{"pure blue", RGBColor{0, 0, 255}, "#0000FF", 240, 50},
		{"white", RGBColor{255, 255, 255}, "#FFFFFF", 0, 100},
		{"black", RGBColor{0, 0, 0}, "#000000", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.c.Describe()
			if got.Hex != tt.wantHex {
				t.Errorf("Hex: got %s, want %s", got.Hex, tt.wantHex)
			}
			if got.HSL.H != tt.wantHue {
				t.Errorf("Hue: got %d, want %d", got.HSL.H, tt.wantHue)
			}
			if got.HSL.L != tt.wantL {
				t.Errorf("Lightness: got %d, want %d", got.HSL.L, tt.wantL)
			}
		})
	}
}

func TestColorDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b RGBColor
		want float64
	}{
		{"same", RGBColor{10, 20, 30}, RGBColor{10, 20, 30}, 0},
		{"black white", RGBColor{0, 0, 0}, RGBColor{255, 255, 255}, math.Sqrt(3 * 255 * 255)},
		{"3-4-0", RGBColor{0, 0, 0}, RGBColor{3, 4, 0}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ColorDistance(tt.a, tt.b); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}
}

func TestPerceptualDistance(t *testing.T) {
	if d := PerceptualDistance(RGBColor{50, 60, 70}, RGBColor{50, 60, 70}); d > 1e-9 {
		t.Errorf("identical colors: got %f, want 0", d)
	}
	near := PerceptualDistance(RGBColor{200, 0, 0}, RGBColor{210, 0, 0})
	far := PerceptualDistance(RGBColor{200, 0, 0}, RGBColor{0, 0, 200})
	if near >= far {
		t.Errorf("expected near (%f) < far (%f)", near, far)
	}
}

func TestDominantColor_Solid(t *testing.T) {
	r := mustRaster(t, createInMemoryImage(120, 80, color.RGBA{12, 34, 56, 255}))

	got, err := DominantColor(r)
	if err != nil {
		t.Fatalf("DominantColor failed: %v", err)
	}
	if got != (RGBColor{12, 34, 56}) {
		t.Errorf("got %+v, want {12 34 56}", got)
	}
}

func TestDominantColor_Majority(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			c := color.RGBA{0, 0, 200, 255}
			if x >= 80 {
				c = color.RGBA{200, 0, 0, 255}
			}
			img.Set(x, y, c)
		}
	}

	got, err := DominantColor(mustRaster(t, img))
	if err != nil {
		t.Fatalf("DominantColor failed: %v", err)
	}
	if got != (RGBColor{0, 0, 200}) {
		t.Errorf("got %+v, want blue", got)
	}
}

func TestDominantColor_GrayInput(t *testing.T) {
	gray, _ := NewRaster(2, 2, 1, []uint8{90, 90, 90, 90})
	got, err := DominantColor(gray)
	if err != nil {
		t.Fatalf("DominantColor failed: %v", err)
	}
	if got != (RGBColor{90, 90, 90}) {
		t.Errorf("got %+v, want {90 90 90}", got)
	}
}

func TestDominantColors(t *testing.T) {
	r := mustRaster(t, createPatternImage(100, 100))

	result, err := DominantColors(r, 10)
	if err != nil {
		t.Fatalf("DominantColors failed: %v", err)
	}

	// Four equal quadrants.
	if len(result.Colors) != 4 {
		t.Fatalf("got %d colors, want 4", len(result.Colors))
	}
	for _, c := range result.Colors {
		if math.Abs(c.Percentage-25) > 0.01 {
			t.Errorf("%s: got %.2f%%, want 25%%", c.Hex, c.Percentage)
		}
	}
}

func TestDominantColors_Limit(t *testing.T) {
	r := mustRaster(t, createPatternImage(100, 100))

	result, err := DominantColors(r, 2)
	if err != nil {
		t.Fatalf("DominantColors failed: %v", err)
	}
	if len(result.Colors) != 2 {
		t.Errorf("got %d colors, want 2", len(result.Colors))
	}
}

func TestDominantColors_Quantization(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{0xF0, 0xF0, 0xF0, 255})
	img.Set(1, 0, color.RGBA{0xFA, 0xFA, 0xFA, 255})

	result, err := DominantColors(mustRaster(t, img), 5)
	if err != nil {
		t.Fatalf("DominantColors failed: %v", err)
	}
	if len(result.Colors) != 1 || result.Colors[0].Hex != "#F0F0F0" {
		t.Errorf("expected a single #F0F0F0 bucket, got %+v", result.Colors)
	}
}

func TestDominantColors_InvalidCount(t *testing.T) {
	r := mustRaster(t, createPatternImage(10, 10))
	if _, err := DominantColors(r, 0); err == nil {
		t.Error("expected error for zero count")
	}
}
