package history

import (
	"time"

	"github.com/ironsheep/puzzle-match/internal/match"
)

// Kind names what a run did.
type Kind string

const (
	KindMatch Kind = "match"
	KindScan  Kind = "scan"
)

// Run is one invocation against a puzzle.
type Run struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	PuzzlePath   string    `json:"puzzle_path"`
	PuzzleWidth  int       `json:"puzzle_width"`
	PuzzleHeight int       `json:"puzzle_height"`
	CreatedAt    time.Time `json:"created_at"`
}

// RunSummary is a run with aggregate outcome figures.
type RunSummary struct {
	Run
	Pieces         int     `json:"pieces"`
	Failed         int     `json:"failed"`
	BestSimilarity float64 `json:"best_similarity"`
}

// Outcome is the recorded result for one piece. Error is non-empty for a
// piece that could not be placed; the placement fields are then zero.
type Outcome struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	PiecePath   string    `json:"piece_path"`
	X           int       `json:"x"`
	Y           int       `json:"y"`
	Scale       float64   `json:"scale"`
	PieceWidth  int       `json:"piece_width"`
	PieceHeight int       `json:"piece_height"`
	Similarity  float64   `json:"similarity"`
	MeanAbsDiff float64   `json:"mean_abs_diff"`
	CoarseScore float64   `json:"coarse_score"`
	Metric      string    `json:"metric,omitempty"`
	Device      string    `json:"device,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// FromMatch converts a match outcome for storage.
func FromMatch(piecePath string, o *match.Outcome) Outcome {
	return Outcome{
		PiecePath:   piecePath,
		X:           o.X,
		Y:           o.Y,
		Scale:       o.Scale,
		PieceWidth:  o.PieceWidth,
		PieceHeight: o.PieceHeight,
		Similarity:  o.Similarity,
		MeanAbsDiff: o.MeanAbsDiff,
		CoarseScore: o.CoarseScore,
		Metric:      o.Metric.String(),
		Device:      string(o.Device),
	}
}

// FromScan converts a scan outcome for storage. The piece is unscaled.
func FromScan(piecePath string, pieceW, pieceH int, o *match.ScanOutcome) Outcome {
	return Outcome{
		PiecePath:   piecePath,
		X:           o.X,
		Y:           o.Y,
		Scale:       1,
		PieceWidth:  pieceW,
		PieceHeight: pieceH,
		Similarity:  o.Similarity,
		MeanAbsDiff: o.BestDiff,
		Device:      string(match.DeviceCPU),
	}
}

// Failure records a piece that produced an error.
func Failure(piecePath string, err error) Outcome {
	return Outcome{PiecePath: piecePath, Error: err.Error()}
}
