package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironsheep/puzzle-match/internal/history"
)

type runDetail struct {
	Run      *history.Run      `json:"run"`
	Outcomes []history.Outcome `json:"outcomes"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit   int
		runID   string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded match runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return errors.New("history is disabled in the configuration")
			}
			store, err := ctx.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeHistory(store, ctx.logger)

			if id := strings.TrimSpace(runID); id != "" {
				run, err := store.GetRun(cmd.Context(), id)
				if err != nil {
					return err
				}
				outcomes, err := store.Outcomes(cmd.Context(), id)
				if err != nil {
					return err
				}
				if wantJSON(cmd, jsonOut) {
					return writeJSON(cmd, runDetail{Run: run, Outcomes: outcomes})
				}
				renderRunDetail(cmd, run, outcomes)
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if wantJSON(cmd, jsonOut) {
				if runs == nil {
					runs = []history.RunSummary{}
				}
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				writeText(cmd, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID,
					string(r.Kind),
					r.CreatedAt.Local().Format(time.DateTime),
					r.PuzzlePath,
					fmt.Sprintf("%d", r.Pieces),
					fmt.Sprintf("%d", r.Failed),
					similarityText(cmd, r.BestSimilarity),
				})
			}
			writeText(cmd, renderTable(
				[]string{"Run", "Kind", "Created", "Puzzle", "Pieces", "Failed", "Best"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "Show the outcomes of one run")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Write JSON output")
	return cmd
}

func renderRunDetail(cmd *cobra.Command, run *history.Run, outcomes []history.Outcome) {
	writeText(cmd, fmt.Sprintf("Run %s (%s) on %s, %s",
		run.ID, run.Kind, run.PuzzlePath, run.CreatedAt.Local().Format(time.DateTime)))
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Error != "" {
			rows = append(rows, []string{o.PiecePath, "-", "-", "-", "-", o.Error})
			continue
		}
		rows = append(rows, []string{
			o.PiecePath,
			fmt.Sprintf("%d", o.X),
			fmt.Sprintf("%d", o.Y),
			fmt.Sprintf("%.3f", o.Scale),
			similarityText(cmd, o.Similarity),
			"",
		})
	}
	writeText(cmd, renderTable(
		[]string{"Piece", "X", "Y", "Scale", "Similarity", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
}
