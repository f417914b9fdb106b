package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/puzzle-match/internal/imaging"
	"github.com/ironsheep/puzzle-match/internal/metrics"
)

type metricsOutput struct {
	*metrics.Report
	GlobalMeanAbsDiff *float64 `json:"global_mean_abs_diff,omitempty"`
	GlobalSimilarity  *float64 `json:"global_similarity,omitempty"`
}

func newMetricsCommand(ctx *commandContext) *cobra.Command {
	var (
		puzzlePath string
		piecePath  string
		widthCm    float64
		heightCm   float64
		globalDiff bool
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Report size, color and physical scale figures for a puzzle and piece",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(puzzlePath) == "" || strings.TrimSpace(piecePath) == "" {
				return errors.New("--puzzle and --piece are required")
			}
			if widthCm < 0 || heightCm < 0 {
				return errors.New("--width-cm and --height-cm must not be negative")
			}
			cache := imaging.NewImageCache()
			puzzle, err := cache.Load(puzzlePath)
			if err != nil {
				return fmt.Errorf("failed to load puzzle: %w", err)
			}
			piece, err := cache.Load(piecePath)
			if err != nil {
				return fmt.Errorf("failed to load piece: %w", err)
			}

			report, err := metrics.Basic(puzzle, piece, widthCm, heightCm)
			if err != nil {
				return err
			}
			out := metricsOutput{Report: report}
			if globalDiff {
				mad, sim, err := metrics.GlobalDiff(puzzle, piece)
				if err != nil {
					return err
				}
				out.GlobalMeanAbsDiff = &mad
				out.GlobalSimilarity = &sim
			}
			ctx.logger.Debug("metrics computed", "area_ratio", report.AreaRatio)

			if wantJSON(cmd, jsonOut) {
				return writeJSON(cmd, out)
			}
			writeText(cmd, renderKeyValues(metricsPairs(out)))
			return nil
		},
	}

	cmd.Flags().StringVar(&puzzlePath, "puzzle", "", "Puzzle image path")
	cmd.Flags().StringVar(&piecePath, "piece", "", "Piece image path")
	cmd.Flags().Float64Var(&widthCm, "width-cm", 0, "Physical puzzle width in centimeters")
	cmd.Flags().Float64Var(&heightCm, "height-cm", 0, "Physical puzzle height in centimeters")
	cmd.Flags().BoolVar(&globalDiff, "global-diff", false, "Also compare the piece resized to the whole puzzle")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Write JSON output")
	return cmd
}

func metricsPairs(out metricsOutput) [][2]string {
	r := out.Report
	pairs := [][2]string{
		{"Puzzle size", sizeText(r.PuzzleSize.Width, r.PuzzleSize.Height)},
		{"Piece size", sizeText(r.PieceSize.Width, r.PieceSize.Height)},
		{"Area ratio", fmt.Sprintf("%.6f", r.AreaRatio)},
		{"Puzzle color", r.DominantPuzzle.Hex},
		{"Piece color", r.DominantPiece.Hex},
		{"Color distance", fmt.Sprintf("%.2f", r.ColorDistance)},
		{"Perceptual distance", fmt.Sprintf("%.4f", r.PerceptualDistance)},
	}
	if s := r.Scale; s != nil {
		pairs = append(pairs,
			[2]string{"px/cm (width)", fmt.Sprintf("%.2f", s.PxPerCmWidth)},
			[2]string{"px/cm (height)", fmt.Sprintf("%.2f", s.PxPerCmHeight)},
			[2]string{"Piece size (cm)", fmt.Sprintf("%.2f x %.2f", s.PieceWidthCm, s.PieceHeightCm)},
		)
	}
	if out.GlobalSimilarity != nil {
		pairs = append(pairs,
			[2]string{"Global mean abs diff", fmt.Sprintf("%.3f", *out.GlobalMeanAbsDiff)},
			[2]string{"Global similarity", fmt.Sprintf("%.4f", *out.GlobalSimilarity)},
		)
	}
	return pairs
}
