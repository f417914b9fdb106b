package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/puzzle-match/internal/match"
	"github.com/ironsheep/puzzle-match/internal/pipeline"
)

type matchFlags struct {
	puzzle      string
	pieces      []string
	expected    int
	noDownscale bool
	gpu         bool
	metric      string
	json        bool
}

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var flags matchFlags

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Locate one or more pieces in a puzzle image",
		Long: "Locate one or more pieces in a puzzle image.\n\n" +
			"Pieces are matched one after another; an interrupt stops the batch\n" +
			"after the current piece and reports what was finished.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(flags.puzzle) == "" {
				return errors.New("--puzzle is required")
			}
			if len(flags.pieces) == 0 {
				return errors.New("at least one --piece is required")
			}
			opts, err := flags.options(cmd, ctx)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			store := ctx.optionalHistory(runCtx)
			defer closeHistory(store, ctx.logger)

			runner := pipeline.NewRunner(nil, store, ctx.logger)
			result, runErr := runner.Match(runCtx, flags.puzzle, flags.pieces, opts)
			if result == nil {
				return runErr
			}
			if err := renderBatch(cmd, result, flags.json); err != nil {
				return err
			}
			if runErr != nil {
				if errors.Is(runErr, context.Canceled) {
					fmt.Fprintf(cmd.ErrOrStderr(), "interrupted after %d of %d pieces\n", len(result.Results), len(flags.pieces))
				}
				return runErr
			}
			if failed := result.Failed(); failed > 0 {
				return fmt.Errorf("%d of %d pieces could not be matched", failed, len(result.Results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.puzzle, "puzzle", "", "Puzzle image path")
	cmd.Flags().StringArrayVar(&flags.pieces, "piece", nil, "Piece image path (repeatable)")
	cmd.Flags().IntVar(&flags.expected, "pieces", 0, "Total piece count of the puzzle, if known")
	cmd.Flags().BoolVar(&flags.noDownscale, "no-downscale", false, "Search the puzzle at full resolution")
	cmd.Flags().BoolVar(&flags.gpu, "gpu", false, "Run the coarse search on the GPU when available")
	cmd.Flags().StringVar(&flags.metric, "metric", "", "Coarse metric (SQDIFF_NORMED, CCORR_NORMED, SQDIFF, CCOEFF_NORMED)")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Write JSON output")
	return cmd
}

// options overlays the command line on the configured matcher options.
func (f matchFlags) options(cmd *cobra.Command, ctx *commandContext) (match.Options, error) {
	opts, err := ctx.matchOptions()
	if err != nil {
		return match.Options{}, err
	}
	if f.expected < 0 {
		return match.Options{}, fmt.Errorf("--pieces must be >= 0, got %d", f.expected)
	}
	opts.ExpectedPieces = f.expected
	if f.noDownscale {
		opts.Downscale = false
	}
	if cmd.Flags().Changed("gpu") {
		opts.UseGPU = f.gpu
	}
	if f.metric != "" {
		metric, err := match.ParseMetric(f.metric)
		if err != nil {
			return match.Options{}, err
		}
		opts.Metric = metric
	}
	return opts, nil
}

func renderBatch(cmd *cobra.Command, result *pipeline.BatchResult, jsonFlag bool) error {
	if wantJSON(cmd, jsonFlag) {
		return writeJSON(cmd, result)
	}

	rows := make([][]string, 0, len(result.Results))
	for _, r := range result.Results {
		if r.Outcome == nil {
			rows = append(rows, []string{r.Piece, "-", "-", "-", "-", "-", "-", r.Error})
			continue
		}
		o := r.Outcome
		rows = append(rows, []string{
			r.Piece,
			fmt.Sprintf("%d", o.X),
			fmt.Sprintf("%d", o.Y),
			fmt.Sprintf("%.3f", o.Scale),
			sizeText(o.PieceWidth, o.PieceHeight),
			similarityText(cmd, o.Similarity),
			string(o.Device),
			"",
		})
	}
	writeText(cmd, fmt.Sprintf("Puzzle %s (%s)", result.Puzzle, sizeText(result.PuzzleWidth, result.PuzzleHeight)))
	writeText(cmd, renderTable(
		[]string{"Piece", "X", "Y", "Scale", "Size", "Similarity", "Device", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	))
	if result.RunID != "" {
		writeText(cmd, "Run "+result.RunID)
	}
	return nil
}
