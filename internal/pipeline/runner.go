package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ironsheep/puzzle-match/internal/history"
	"github.com/ironsheep/puzzle-match/internal/imaging"
	"github.com/ironsheep/puzzle-match/internal/logging"
	"github.com/ironsheep/puzzle-match/internal/match"
)

// PieceResult is the outcome for one piece of a batch. Exactly one of
// Outcome and Error is set.
type PieceResult struct {
	Piece   string         `json:"piece"`
	Outcome *match.Outcome `json:"outcome,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// BatchResult is the outcome of Runner.Match.
type BatchResult struct {
	// RunID is empty when no history store is attached.
	RunID        string        `json:"run_id,omitempty"`
	Puzzle       string        `json:"puzzle"`
	PuzzleWidth  int           `json:"puzzle_width"`
	PuzzleHeight int           `json:"puzzle_height"`
	Results      []PieceResult `json:"results"`
}

// Failed counts the pieces that produced an error.
func (b *BatchResult) Failed() int {
	n := 0
	for _, r := range b.Results {
		if r.Error != "" {
			n++
		}
	}
	return n
}

// ScanResult is the outcome of Runner.Scan.
type ScanResult struct {
	RunID   string             `json:"run_id,omitempty"`
	Puzzle  string             `json:"puzzle"`
	Piece   string             `json:"piece"`
	Outcome *match.ScanOutcome `json:"outcome"`
}

// Runner loads images through a shared cache and optionally records results.
type Runner struct {
	cache   *imaging.ImageCache
	history *history.Store
	logger  *slog.Logger
}

// NewRunner returns a runner. store and logger may be nil.
func NewRunner(cache *imaging.ImageCache, store *history.Store, logger *slog.Logger) *Runner {
	if cache == nil {
		cache = imaging.NewImageCache()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{cache: cache, history: store, logger: logger}
}

// Cache returns the runner's image cache.
func (r *Runner) Cache() *imaging.ImageCache { return r.cache }

// History returns the attached store, or nil.
func (r *Runner) History() *history.Store { return r.history }

// Match matches every piece against the puzzle, in order. It fails only when
// the puzzle cannot be loaded or ctx is cancelled; in the latter case the
// pieces finished so far are returned alongside the error.
func (r *Runner) Match(ctx context.Context, puzzlePath string, piecePaths []string, opts match.Options) (*BatchResult, error) {
	puzzle, err := r.cache.Load(puzzlePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load puzzle: %w", err)
	}

	batch := &BatchResult{
		Puzzle:       puzzlePath,
		PuzzleWidth:  puzzle.Width(),
		PuzzleHeight: puzzle.Height(),
		Results:      make([]PieceResult, 0, len(piecePaths)),
	}
	batch.RunID = r.beginRun(ctx, history.KindMatch, puzzlePath, puzzle)

	for i, piecePath := range piecePaths {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("match batch interrupted", "done", i, "total", len(piecePaths))
			return batch, err
		}

		res := r.matchOne(puzzle, piecePath, opts)
		batch.Results = append(batch.Results, res)

		if res.Outcome != nil {
			r.logger.Info("piece matched",
				"piece", piecePath,
				"x", res.Outcome.X,
				"y", res.Outcome.Y,
				"scale", res.Outcome.Scale,
				"similarity", res.Outcome.Similarity,
				"device", res.Outcome.Device)
			r.record(ctx, batch.RunID, history.FromMatch(piecePath, res.Outcome))
		} else {
			r.logger.Warn("piece failed", "piece", piecePath, "error", res.Error)
			r.record(ctx, batch.RunID, history.Outcome{PiecePath: piecePath, Error: res.Error})
		}
	}
	return batch, nil
}

func (r *Runner) matchOne(puzzle *imaging.Raster, piecePath string, opts match.Options) PieceResult {
	piece, err := r.cache.Load(piecePath)
	if err != nil {
		return PieceResult{Piece: piecePath, Error: fmt.Sprintf("failed to load piece: %v", err)}
	}
	outcome, err := match.Match(puzzle, piece, opts)
	if err != nil {
		return PieceResult{Piece: piecePath, Error: err.Error()}
	}
	return PieceResult{Piece: piecePath, Outcome: outcome}
}

// Scan runs the brute-force scanner for one piece.
func (r *Runner) Scan(ctx context.Context, puzzlePath, piecePath string, stride int, progress match.ProgressFunc) (*ScanResult, error) {
	puzzle, err := r.cache.Load(puzzlePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load puzzle: %w", err)
	}
	piece, err := r.cache.Load(piecePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load piece: %w", err)
	}

	outcome, err := match.Scan(puzzle, piece, stride, progress)
	if err != nil {
		return nil, err
	}
	r.logger.Info("piece scanned",
		"piece", piecePath,
		"x", outcome.X,
		"y", outcome.Y,
		"similarity", outcome.Similarity,
		"positions", outcome.PositionsEvaluated)

	res := &ScanResult{Puzzle: puzzlePath, Piece: piecePath, Outcome: outcome}
	res.RunID = r.beginRun(ctx, history.KindScan, puzzlePath, puzzle)
	r.record(ctx, res.RunID, history.FromScan(piecePath, piece.Width(), piece.Height(), outcome))
	return res, nil
}

// beginRun returns "" when there is no store or the insert failed; history is
// best effort and never fails a match.
func (r *Runner) beginRun(ctx context.Context, kind history.Kind, puzzlePath string, puzzle *imaging.Raster) string {
	if r.history == nil {
		return ""
	}
	run, err := r.history.BeginRun(ctx, kind, puzzlePath, puzzle.Width(), puzzle.Height())
	if err != nil {
		r.logger.Warn("failed to record run", "error", err)
		return ""
	}
	return run.ID
}

func (r *Runner) record(ctx context.Context, runID string, o history.Outcome) {
	if r.history == nil || runID == "" {
		return
	}
	if _, err := r.history.Record(ctx, runID, o); err != nil {
		r.logger.Warn("failed to record outcome", "piece", o.PiecePath, "error", err)
	}
}
