package metrics

import (
	"errors"
	"fmt"

	"github.com/ironsheep/puzzle-match/internal/imaging"
)

// ErrMissingRaster is returned when either input raster is nil.
var ErrMissingRaster = errors.New("puzzle and piece rasters are required")

// Size is a width and height in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PhysicalScale relates pixels to the printed puzzle. Width and height
// scales are zero when the matching real dimension was not given.
type PhysicalScale struct {
	PxPerCmWidth  float64 `json:"px_per_cm_width,omitempty"`
	PxPerCmHeight float64 `json:"px_per_cm_height,omitempty"`

	// PxPerCmAvg is set only when both scales are known.
	PxPerCmAvg float64 `json:"px_per_cm_avg,omitempty"`

	// PieceWidthCm and PieceHeightCm estimate the real piece size; when only
	// one axis scale is known it is used for both.
	PieceWidthCm  float64 `json:"piece_width_cm"`
	PieceHeightCm float64 `json:"piece_height_cm"`
}

// Report is the result of Basic.
type Report struct {
	PuzzleSize Size `json:"puzzle_size"`
	PieceSize  Size `json:"piece_size"`
	PuzzleArea int  `json:"puzzle_area"`
	PieceArea  int  `json:"piece_area"`

	// AreaRatio is PieceArea / PuzzleArea, 0 for an empty puzzle.
	AreaRatio float64 `json:"area_ratio"`

	DominantPuzzle imaging.ColorResult `json:"dominant_puzzle"`
	DominantPiece  imaging.ColorResult `json:"dominant_piece"`

	// ColorDistance is the RGB Euclidean distance between the dominant colors.
	ColorDistance float64 `json:"color_distance"`

	// PerceptualDistance is the CIEDE2000 difference between the dominant colors.
	PerceptualDistance float64 `json:"perceptual_distance"`

	// Scale is nil unless a positive real width or height was supplied.
	Scale *PhysicalScale `json:"scale,omitempty"`
}

// Basic compares puzzle and piece. widthCm and heightCm are the real
// dimensions of the printed puzzle; values <= 0 mean unknown.
func Basic(puzzle, piece *imaging.Raster, widthCm, heightCm float64) (*Report, error) {
	if puzzle == nil || piece == nil {
		return nil, ErrMissingRaster
	}

	rep := &Report{
		PuzzleSize: Size{Width: puzzle.Width(), Height: puzzle.Height()},
		PieceSize:  Size{Width: piece.Width(), Height: piece.Height()},
		PuzzleArea: puzzle.Area(),
		PieceArea:  piece.Area(),
	}
	if rep.PuzzleArea > 0 {
		rep.AreaRatio = float64(rep.PieceArea) / float64(rep.PuzzleArea)
	}

	dp, err := imaging.DominantColor(puzzle)
	if err != nil {
		return nil, fmt.Errorf("failed to get puzzle dominant color: %w", err)
	}
	dq, err := imaging.DominantColor(piece)
	if err != nil {
		return nil, fmt.Errorf("failed to get piece dominant color: %w", err)
	}
	rep.DominantPuzzle = dp.Describe()
	rep.DominantPiece = dq.Describe()
	rep.ColorDistance = imaging.ColorDistance(dp, dq)
	rep.PerceptualDistance = imaging.PerceptualDistance(dp, dq)

	rep.Scale = EstimateScale(puzzle.Width(), puzzle.Height(), piece.Width(), piece.Height(), widthCm, heightCm)
	return rep, nil
}

// EstimateScale derives pixels per centimetre from the puzzle's pixel and
// real dimensions and uses it to size the piece. It returns nil when neither
// real dimension is positive.
func EstimateScale(puzzleW, puzzleH, pieceW, pieceH int, widthCm, heightCm float64) *PhysicalScale {
	var sw, sh float64
	if widthCm > 0 {
		sw = float64(puzzleW) / widthCm
	}
	if heightCm > 0 {
		sh = float64(puzzleH) / heightCm
	}

	switch {
	case sw > 0 && sh > 0:
		return &PhysicalScale{
			PxPerCmWidth:  sw,
			PxPerCmHeight: sh,
			PxPerCmAvg:    (sw + sh) / 2,
			PieceWidthCm:  float64(pieceW) / sw,
			PieceHeightCm: float64(pieceH) / sh,
		}
	case sw > 0:
		return &PhysicalScale{
			PxPerCmWidth:  sw,
			PieceWidthCm:  float64(pieceW) / sw,
			PieceHeightCm: float64(pieceH) / sw,
		}
	case sh > 0:
		return &PhysicalScale{
			PxPerCmHeight: sh,
			PieceWidthCm:  float64(pieceW) / sh,
			PieceHeightCm: float64(pieceH) / sh,
		}
	}
	return nil
}

// GlobalDiff is the naive baseline: the piece is stretched to the puzzle's
// size and the mean absolute difference of the two is returned with its
// similarity. It says nothing about where the piece is.
func GlobalDiff(puzzle, piece *imaging.Raster) (meanAbsDiff, similarity float64, err error) {
	if puzzle == nil || piece == nil {
		return 0, 0, ErrMissingRaster
	}
	resized, err := piece.RGB().Resize(puzzle.Width(), puzzle.Height(), imaging.FilterLanczos)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to resize piece: %w", err)
	}
	mad, err := imaging.MeanAbsDiff(puzzle.RGB(), resized)
	if err != nil {
		return 0, 0, err
	}
	return mad, imaging.Similarity(mad), nil
}
