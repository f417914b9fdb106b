package match

import "errors"

var (
	// ErrAcceleratedDeviceUnavailable is reported when the GPU strategy was
	// requested but no adapter could be opened, or the GPU run failed. Match
	// never returns it: it falls back to the CPU strategy instead.
	ErrAcceleratedDeviceUnavailable = errors.New("accelerated device unavailable")

	// ErrPieceExceedsPuzzle means the piece is wider or taller than the puzzle.
	ErrPieceExceedsPuzzle = errors.New("piece larger than puzzle")

	// ErrNoValidScaleCandidate means every scale candidate was rejected before
	// any correlation could run.
	ErrNoValidScaleCandidate = errors.New("no valid scale candidate")

	// ErrEmptySearchSpace means a search window contains no valid offset.
	ErrEmptySearchSpace = errors.New("empty search space")

	// ErrInvalidRaster is returned for nil or empty rasters.
	ErrInvalidRaster = errors.New("invalid raster")
)
