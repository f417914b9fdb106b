package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/puzzle-match/internal/match"
	"github.com/ironsheep/puzzle-match/internal/pipeline"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var (
		puzzlePath string
		piecePath  string
		stride     int
		quiet      bool
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Brute-force scan for a piece at its native scale",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(puzzlePath) == "" || strings.TrimSpace(piecePath) == "" {
				return errors.New("--puzzle and --piece are required")
			}
			if !cmd.Flags().Changed("stride") {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				stride = cfg.Scanner.Stride
			}
			if stride < 1 {
				return fmt.Errorf("--stride must be >= 1, got %d", stride)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			store := ctx.optionalHistory(runCtx)
			defer closeHistory(store, ctx.logger)

			var progress match.ProgressFunc
			if !quiet {
				progress = newProgressPrinter(cmd.ErrOrStderr()).update
			}

			runner := pipeline.NewRunner(nil, store, ctx.logger)
			result, err := runner.Scan(runCtx, puzzlePath, piecePath, stride, progress)
			if err != nil {
				return err
			}

			if wantJSON(cmd, jsonOut) {
				return writeJSON(cmd, result)
			}
			o := result.Outcome
			writeText(cmd, renderKeyValues([][2]string{
				{"Piece", result.Piece},
				{"X", fmt.Sprintf("%d", o.X)},
				{"Y", fmt.Sprintf("%d", o.Y)},
				{"Mean abs diff", fmt.Sprintf("%.3f", o.BestDiff)},
				{"Similarity", similarityText(cmd, o.Similarity)},
				{"Positions", fmt.Sprintf("%d", o.PositionsEvaluated)},
				{"Stride", fmt.Sprintf("%d", o.Stride)},
			}))
			return nil
		},
	}

	cmd.Flags().StringVar(&puzzlePath, "puzzle", "", "Puzzle image path")
	cmd.Flags().StringVar(&piecePath, "piece", "", "Piece image path")
	cmd.Flags().IntVar(&stride, "stride", match.DefaultStride, "Step between evaluated offsets")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not report progress on stderr")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Write JSON output")
	return cmd
}

// progressPrinter writes scan progress in 10% steps.
type progressPrinter struct {
	w    io.Writer
	last int
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, last: -1}
}

func (p *progressPrinter) update(row, total int) {
	if total <= 0 {
		return
	}
	pct := (row + 1) * 100 / total
	step := pct / 10 * 10
	if step <= p.last {
		return
	}
	p.last = step
	fmt.Fprintf(p.w, "scan: %d%% (row %d of %d)\n", step, row+1, total)
}
