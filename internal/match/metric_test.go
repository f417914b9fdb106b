package match

import (
	"math"
	"testing"
)

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in      string
		want    Metric
		wantErr bool
	}{
		{"SQDIFF_NORMED", SqDiffNormed, false},
		{"sqdiff_normed", SqDiffNormed, false},
		{"ccorr-normed", CCorrNormed, false},
		{" CCOEFF_NORMED ", CCoeffNormed, false},
		{"sqdiff", SqDiff, false},
		{"", SqDiffNormed, false},
		{"TM_CCORR", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMetric(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMetric(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseMetric(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMetric_TextRoundTrip(t *testing.T) {
	for _, m := range Metrics() {
		text, err := m.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) failed: %v", m, err)
		}
		var back Metric
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%s) failed: %v", text, err)
		}
		if back != m {
			t.Errorf("round trip: got %v, want %v", back, m)
		}
	}
	if _, err := Metric(42).MarshalText(); err == nil {
		t.Error("expected error for unknown metric")
	}
}

func TestMetric_Score(t *testing.T) {
	// Piece {1,2}, window {1,2}: identical.
	same := windowSums{n: 2, t: 3, t2: 5, i: 3, i2: 5, ti: 5}
	// Piece {1,2}, window {2,4}: proportional but not equal.
	double := windowSums{n: 2, t: 3, t2: 5, i: 6, i2: 20, ti: 10}
	// Piece {0,0} against a zero window.
	zeros := windowSums{n: 2}
	// Piece {0,0} against {3,4}.
	zeroPiece := windowSums{n: 2, i: 7, i2: 25}
	// Flat piece {5,5} against {1,2}: no variance in the piece.
	flat := windowSums{n: 2, t: 10, t2: 50, i: 3, i2: 5, ti: 15}

	tests := []struct {
		name   string
		metric Metric
		sums   windowSums
		want   float64
	}{
		{"sqdiff normed identical", SqDiffNormed, same, 0},
		{"sqdiff normed double", SqDiffNormed, double, 5 / math.Sqrt(100)},
		{"sqdiff normed zero both", SqDiffNormed, zeros, 0},
		{"sqdiff normed zero piece", SqDiffNormed, zeroPiece, 1},
		{"sqdiff raw", SqDiff, double, 5},
		{"ccorr identical", CCorrNormed, same, -1},
		{"ccorr proportional", CCorrNormed, double, -1},
		{"ccorr zero", CCorrNormed, zeroPiece, 0},
		{"ccoeff identical", CCoeffNormed, same, -1},
		{"ccoeff flat piece", CCoeffNormed, flat, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.metric.score(tt.sums)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}
