package match

import (
	"errors"
	"fmt"
	"math"

	"github.com/ironsheep/puzzle-match/internal/imaging"
)

const (
	// DefaultMaxCoarseDim is the long-side size puzzles are reduced to for
	// the coarse stage.
	DefaultMaxCoarseDim = 1600

	// DefaultRefineRadius is the refinement radius in coarse pixels.
	DefaultRefineRadius = 30
)

// Options configures Match.
type Options struct {
	// ExpectedPieces is the total piece count of the puzzle; 0 or 1 means
	// unknown and selects the generic scale ladder.
	ExpectedPieces int

	// Downscale enables the coarse reduction of puzzles larger than
	// MaxCoarseDim on their long side.
	Downscale bool

	// UseGPU requests the accelerated coarse strategy. It silently falls
	// back to the CPU; Outcome.Device reports what actually ran.
	UseGPU bool

	// Metric is the coarse-stage score. Refinement always uses mean
	// absolute difference.
	Metric Metric

	// MaxCoarseDim is the coarse long-side limit; <= 0 means DefaultMaxCoarseDim.
	MaxCoarseDim int

	// RefineRadius is the refinement radius in coarse pixels; <= 0 means
	// DefaultRefineRadius.
	RefineRadius int
}

// DefaultOptions returns downscaling on, CPU only, SQDIFF_NORMED and the
// default tunables.
func DefaultOptions() Options {
	return Options{
		Downscale:    true,
		Metric:       SqDiffNormed,
		MaxCoarseDim: DefaultMaxCoarseDim,
		RefineRadius: DefaultRefineRadius,
	}
}

func (o Options) normalized() (Options, error) {
	if o.MaxCoarseDim <= 0 {
		o.MaxCoarseDim = DefaultMaxCoarseDim
	}
	if o.RefineRadius <= 0 {
		o.RefineRadius = DefaultRefineRadius
	}
	if _, ok := metricNames[o.Metric]; !ok {
		return o, fmt.Errorf("unknown metric %d", int(o.Metric))
	}
	return o, nil
}

// CandidateResult is the coarse outcome for one scale candidate. X and Y
// are in coarse coordinates.
type CandidateResult struct {
	Scale       float64 `json:"scale"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Score       float64 `json:"score"`
	PieceWidth  int     `json:"piece_width"`
	PieceHeight int     `json:"piece_height"`
}

// Outcome is the final result of Match. Every field is always populated.
type Outcome struct {
	// X and Y are the top-left corner of the piece in the full-resolution puzzle.
	X int `json:"x"`
	Y int `json:"y"`

	Scale       float64 `json:"scale"`
	PieceWidth  int     `json:"piece_width"`
	PieceHeight int     `json:"piece_height"`

	// Similarity is 1 - MeanAbsDiff/255, in [0, 1].
	Similarity  float64 `json:"similarity"`
	MeanAbsDiff float64 `json:"mean_abs_diff"`

	CoarseScore float64 `json:"coarse_score"`
	Metric      Metric  `json:"metric"`

	// CoarseScale is the factor the puzzle was reduced by for the coarse
	// stage; 1 when it was not reduced.
	CoarseScale float64 `json:"coarse_scale"`

	CandidatesEvaluated int               `json:"candidates_evaluated"`
	Scales              []float64         `json:"scales"`
	Candidates          []CandidateResult `json:"candidates"`
	Device              Device            `json:"device"`
}

// Match locates piece inside puzzle with a coarse-to-fine multi-scale search.
//
// For every scale from ScaleCandidates the piece is resized and correlated
// exhaustively against a (possibly reduced) grayscale puzzle. The
// lowest-scoring candidate wins; ties prefer the scale closest to 1.0 and then
// the earlier candidate. The winner is refined at full resolution by Refine.
//
// Match is deterministic and keeps no state between calls.
func Match(puzzle, piece *imaging.Raster, opts Options) (*Outcome, error) {
	if err := validRaster("puzzle", puzzle); err != nil {
		return nil, err
	}
	if err := validRaster("piece", piece); err != nil {
		return nil, err
	}
	opts, err := opts.normalized()
	if err != nil {
		return nil, err
	}

	W, H := puzzle.Width(), puzzle.Height()
	scales := ScaleCandidates(W, H, piece.Width(), piece.Height(), opts.ExpectedPieces)

	grayPuzzle := puzzle.Gray()
	grayPiece := piece.Gray()

	coarsePuzzle, coarseScale, err := reduce(grayPuzzle, opts)
	if err != nil {
		return nil, err
	}
	Logger().Debug("match: coarse puzzle",
		"width", coarsePuzzle.Width(),
		"height", coarsePuzzle.Height(),
		"coarse_scale", coarseScale,
		"scales", scales)

	job := coarseJob{
		puzzle:      coarsePuzzle,
		piece:       grayPiece,
		scales:      scales,
		coarseScale: coarseScale,
		metric:      opts.Metric,
	}

	var (
		results []CandidateResult
		device  = DeviceCPU
	)
	if opts.UseGPU {
		results, err = job.runGPU()
		if err != nil {
			// Any GPU failure discards its partial results.
			Logger().Warn("match: falling back to cpu",
				"error", err,
				"unavailable", errors.Is(err, ErrAcceleratedDeviceUnavailable))
			results = nil
		} else {
			device = DeviceGPU
		}
	}
	if results == nil {
		results, err = job.run(cpuMatcher{})
		if err != nil {
			return nil, err
		}
	}
	Logger().Info("match: coarse stage complete", "device", device, "candidates", len(results))

	if len(results) == 0 {
		if piece.Width() > W || piece.Height() > H {
			return nil, fmt.Errorf("piece %dx%d, puzzle %dx%d: %w", piece.Width(), piece.Height(), W, H, ErrPieceExceedsPuzzle)
		}
		return nil, fmt.Errorf("%d scale candidates rejected: %w", len(scales), ErrNoValidScaleCandidate)
	}

	best := results[selectCandidate(results)]

	fullW := int(float64(piece.Width()) * best.Scale)
	fullH := int(float64(piece.Height()) * best.Scale)
	filter := imaging.FilterArea
	if best.Scale > 1 {
		filter = imaging.FilterLanczos
	}
	fullPiece, err := grayPiece.Resize(max(1, fullW), max(1, fullH), filter)
	if err != nil {
		return nil, fmt.Errorf("failed to render piece at scale %.4f: %w", best.Scale, err)
	}

	estX := int(float64(best.X) / coarseScale)
	estY := int(float64(best.Y) / coarseScale)
	ref, err := Refine(grayPuzzle, fullPiece, estX, estY, refineRadius(opts.RefineRadius, coarseScale))
	if err != nil {
		return nil, err
	}

	return &Outcome{
		X:                   ref.X,
		Y:                   ref.Y,
		Scale:               best.Scale,
		PieceWidth:          fullPiece.Width(),
		PieceHeight:         fullPiece.Height(),
		Similarity:          ref.Similarity,
		MeanAbsDiff:         ref.MeanAbsDiff,
		CoarseScore:         best.Score,
		Metric:              opts.Metric,
		CoarseScale:         coarseScale,
		CandidatesEvaluated: len(results),
		Scales:              scales,
		Candidates:          results,
		Device:              device,
	}, nil
}

// reduce area-resamples the gray puzzle so its long side is at most
// MaxCoarseDim, when downscaling is enabled.
func reduce(gray *imaging.Raster, opts Options) (*imaging.Raster, float64, error) {
	longSide := max(gray.Width(), gray.Height())
	if !opts.Downscale || longSide <= opts.MaxCoarseDim {
		return gray, 1, nil
	}
	cs := float64(opts.MaxCoarseDim) / float64(longSide)
	w := max(1, int(float64(gray.Width())*cs))
	h := max(1, int(float64(gray.Height())*cs))
	coarse, err := gray.Resize(w, h, imaging.FilterArea)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to reduce puzzle: %w", err)
	}
	return coarse, cs, nil
}

// coarseJob is the per-call coarse stage: one correlation per scale.
type coarseJob struct {
	puzzle      *imaging.Raster
	piece       *imaging.Raster
	scales      []float64
	coarseScale float64
	metric      Metric
}

// openAccelerated opens the accelerated strategy. Tests replace it.
var openAccelerated = newGPUMatcher

// runGPU opens the accelerated device for this call only and runs every
// candidate on it. A panic while matching becomes an error wrapping
// ErrAcceleratedDeviceUnavailable and no results are returned.
func (j coarseJob) runGPU() (results []CandidateResult, err error) {
	m, err := openAccelerated()
	if err != nil {
		return nil, err
	}
	defer m.Close()
	defer func() {
		if r := recover(); r != nil {
			results, err = nil, unavailable("accelerated matcher panic: %v", r)
		}
	}()
	results, err = j.run(m)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (j coarseJob) run(m CoarseMatcher) ([]CandidateResult, error) {
	results := make([]CandidateResult, 0, len(j.scales))
	for _, s := range j.scales {
		pw := max(1, int(float64(j.piece.Width())*s*j.coarseScale))
		ph := max(1, int(float64(j.piece.Height())*s*j.coarseScale))
		if pw > j.puzzle.Width() || ph > j.puzzle.Height() {
			Logger().Debug("match: candidate skipped", "scale", s, "piece_width", pw, "piece_height", ph)
			continue
		}

		filter := imaging.FilterLanczos
		if s*j.coarseScale < 1 {
			filter = imaging.FilterArea
		}
		scaled, err := j.piece.Resize(pw, ph, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to resize piece to %dx%d: %w", pw, ph, err)
		}

		p, err := m.Match(j.puzzle, scaled, j.metric)
		if err != nil {
			return nil, err
		}
		Logger().Debug("match: candidate scored",
			"device", m.Device(), "scale", s, "x", p.X, "y", p.Y, "score", p.Score)
		results = append(results, CandidateResult{
			Scale:       s,
			X:           p.X,
			Y:           p.Y,
			Score:       p.Score,
			PieceWidth:  pw,
			PieceHeight: ph,
		})
	}
	return results, nil
}

// selectCandidate returns the index of the lowest score. Ties prefer the
// scale closest to 1.0, then the earlier candidate.
func selectCandidate(results []CandidateResult) int {
	best := 0
	for i := 1; i < len(results); i++ {
		r, b := results[i], results[best]
		if r.Score < b.Score ||
			(r.Score == b.Score && math.Abs(r.Scale-1) < math.Abs(b.Scale-1)) {
			best = i
		}
	}
	return best
}

func validRaster(name string, r *imaging.Raster) error {
	if r == nil || r.Width() <= 0 || r.Height() <= 0 {
		return fmt.Errorf("%s: %w", name, ErrInvalidRaster)
	}
	return nil
}
