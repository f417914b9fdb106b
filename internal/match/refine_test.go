package match

import (
	"errors"
	"testing"
)

func TestRefine_FindsExactOffset(t *testing.T) {
	puzzle := noiseRaster(t, 120, 90, 5)
	piece := mustCrop(t, puzzle, 47, 30, 25, 20)

	tests := []struct {
		name       string
		estX, estY int
		radius     int
	}{
		{"exact estimate", 47, 30, 10},
		{"off by a few", 44, 33, 5},
		{"at radius edge", 37, 40, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := Refine(puzzle, piece, tt.estX, tt.estY, tt.radius)
			if err != nil {
				t.Fatalf("Refine failed: %v", err)
			}
			if ref.X != 47 || ref.Y != 30 {
				t.Errorf("got (%d,%d), want (47,30)", ref.X, ref.Y)
			}
			if ref.MeanAbsDiff != 0 || ref.Similarity != 1.0 {
				t.Errorf("got diff %v similarity %v, want 0 and 1", ref.MeanAbsDiff, ref.Similarity)
			}
		})
	}
}

func TestRefine_OutsideRadius(t *testing.T) {
	puzzle := noiseRaster(t, 120, 90, 5)
	piece := mustCrop(t, puzzle, 80, 60, 20, 20)

	ref, err := Refine(puzzle, piece, 10, 10, 5)
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if ref.X > 15 || ref.Y > 15 {
		t.Errorf("result (%d,%d) left the search window", ref.X, ref.Y)
	}
	if ref.Similarity >= 1 || ref.Similarity < 0 {
		t.Errorf("similarity %v out of range for a mismatch", ref.Similarity)
	}
	if ref.PositionsEvaluated != 11*11 {
		t.Errorf("positions: got %d, want 121", ref.PositionsEvaluated)
	}
}

func TestRefine_ClampsWindow(t *testing.T) {
	puzzle := noiseRaster(t, 50, 40, 9)
	piece := mustCrop(t, puzzle, 0, 0, 10, 10)

	ref, err := Refine(puzzle, piece, -100, -100, 3)
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if ref.X != 0 || ref.Y != 0 {
		t.Errorf("got (%d,%d), want (0,0)", ref.X, ref.Y)
	}
}

func TestRefine_DegenerateWindow(t *testing.T) {
	puzzle := noiseRaster(t, 30, 30, 2)

	ref, err := Refine(puzzle, puzzle, 12, 7, 30)
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if ref.X != 0 || ref.Y != 0 || ref.PositionsEvaluated != 1 {
		t.Errorf("got %+v, want the single offset (0,0)", ref)
	}
	if ref.Similarity != 1.0 {
		t.Errorf("identical rasters: similarity %v, want exactly 1", ref.Similarity)
	}
}

func TestRefine_PieceTooLarge(t *testing.T) {
	_, err := Refine(noiseRaster(t, 30, 30, 1), noiseRaster(t, 31, 10, 2), 0, 0, 5)
	if !errors.Is(err, ErrEmptySearchSpace) {
		t.Errorf("expected ErrEmptySearchSpace, got %v", err)
	}
}

func TestRefine_InvalidRaster(t *testing.T) {
	_, err := Refine(nil, noiseRaster(t, 3, 3, 2), 0, 0, 5)
	if !errors.Is(err, ErrInvalidRaster) {
		t.Errorf("expected ErrInvalidRaster, got %v", err)
	}
}

func TestRefineRadius(t *testing.T) {
	tests := []struct {
		radius int
		cs     float64
		want   int
	}{
		{30, 1, 30},
		{30, 0.8, 38},
		{30, 0.5, 60},
		{0, 0.5, 0},
	}
	for _, tt := range tests {
		if got := refineRadius(tt.radius, tt.cs); got != tt.want {
			t.Errorf("refineRadius(%d, %v) = %d, want %d", tt.radius, tt.cs, got, tt.want)
		}
	}
}
