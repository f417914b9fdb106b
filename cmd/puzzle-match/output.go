package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// wantJSON reports whether results should be written as JSON: when asked for,
// or when stdout is not a terminal.
func wantJSON(cmd *cobra.Command, jsonFlag bool) bool {
	return jsonFlag || !isTerminal(cmd.OutOrStdout())
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func writeText(cmd *cobra.Command, s string) {
	fmt.Fprintln(cmd.OutOrStdout(), s)
}

// similarityText formats a similarity as a percentage, colored by quality on
// terminals.
func similarityText(cmd *cobra.Command, sim float64) string {
	value := fmt.Sprintf("%.2f%%", sim*100)
	if !isTerminal(cmd.OutOrStdout()) {
		return value
	}
	switch {
	case sim >= 0.9:
		return text.FgGreen.Sprint(value)
	case sim >= 0.75:
		return text.FgYellow.Sprint(value)
	default:
		return text.FgRed.Sprint(value)
	}
}

func sizeText(w, h int) string {
	return fmt.Sprintf("%dx%d", w, h)
}
