package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/puzzle-match/internal/match"
)

func newVersionCommand() *cobra.Command {
	var detect bool

	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "puzzle-match %s\n", Version)
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
			if !detect {
				return nil
			}
			info, err := match.DetectGPU()
			if err != nil {
				fmt.Fprintf(out, "  GPU: unavailable (%v)\n", err)
				return nil
			}
			fmt.Fprintf(out, "  GPU: %s (%s, %s)\n", info.Name, info.Backend, info.Type)
			return nil
		},
	}

	cmd.Flags().BoolVar(&detect, "gpu", false, "Open the GPU adapter and report it")
	return cmd
}
