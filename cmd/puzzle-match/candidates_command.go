package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/puzzle-match/internal/imaging"
	"github.com/ironsheep/puzzle-match/internal/match"
)

type candidateRow struct {
	Scale       float64 `json:"scale"`
	PieceWidth  int     `json:"piece_width"`
	PieceHeight int     `json:"piece_height"`
}

type candidatesOutput struct {
	Puzzle         string         `json:"puzzle"`
	Piece          string         `json:"piece"`
	PuzzleWidth    int            `json:"puzzle_width"`
	PuzzleHeight   int            `json:"puzzle_height"`
	PieceWidth     int            `json:"piece_width"`
	PieceHeight    int            `json:"piece_height"`
	ExpectedPieces int            `json:"expected_pieces,omitempty"`
	Candidates     []candidateRow `json:"candidates"`
}

func newCandidatesCommand(ctx *commandContext) *cobra.Command {
	var (
		puzzlePath string
		piecePath  string
		expected   int
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "List the scale factors a match would try",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(puzzlePath) == "" || strings.TrimSpace(piecePath) == "" {
				return errors.New("--puzzle and --piece are required")
			}
			if expected < 0 {
				return fmt.Errorf("--pieces must be >= 0, got %d", expected)
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

			scales := match.ScaleCandidates(puzzle.Width(), puzzle.Height(), piece.Width(), piece.Height(), expected)
			ctx.logger.Debug("scale candidates", "count", len(scales), "expected_pieces", expected)

			out := candidatesOutput{
				Puzzle:         puzzlePath,
				Piece:          piecePath,
				PuzzleWidth:    puzzle.Width(),
				PuzzleHeight:   puzzle.Height(),
				PieceWidth:     piece.Width(),
				PieceHeight:    piece.Height(),
				ExpectedPieces: expected,
				Candidates:     make([]candidateRow, 0, len(scales)),
			}
			for _, s := range scales {
				out.Candidates = append(out.Candidates, candidateRow{
					Scale:       s,
					PieceWidth:  int(float64(piece.Width()) * s),
					PieceHeight: int(float64(piece.Height()) * s),
				})
			}

			if wantJSON(cmd, jsonOut) {
				return writeJSON(cmd, out)
			}
			rows := make([][]string, 0, len(out.Candidates))
			for i, c := range out.Candidates {
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1),
					fmt.Sprintf("%.4f", c.Scale),
					sizeText(c.PieceWidth, c.PieceHeight),
				})
			}
			writeText(cmd, renderTable([]string{"#", "Scale", "Piece size"}, rows,
				[]columnAlignment{alignRight, alignRight, alignRight}))
			return nil
		},
	}

	cmd.Flags().StringVar(&puzzlePath, "puzzle", "", "Puzzle image path")
	cmd.Flags().StringVar(&piecePath, "piece", "", "Piece image path")
	cmd.Flags().IntVar(&expected, "pieces", 0, "Total piece count of the puzzle, if known")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Write JSON output")
	return cmd
}
