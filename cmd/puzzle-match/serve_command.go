package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/puzzle-match/internal/history"
	"github.com/ironsheep/puzzle-match/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin and stdout",
		Long: "Run the MCP server on stdin and stdout.\n\n" +
			"The server speaks JSON-RPC 2.0, one message per line. Logs go to\n" +
			"stderr. When history is enabled the server holds an exclusive lock\n" +
			"on the database for its lifetime.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts, err := cfg.MatchOptions()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var store *history.Store
			if cfg.History.Enabled {
				lock, err := history.Lock(cfg.History.Path)
				if err != nil {
					if errors.Is(err, history.ErrLocked) {
						return fmt.Errorf("another server is using %s: %w", cfg.History.Path, err)
					}
					return err
				}
				defer func() {
					if err := lock.Unlock(); err != nil {
						ctx.logger.Warn("failed to release history lock", "error", err)
					}
				}()

				store, err = history.Open(runCtx, cfg.History.Path)
				if err != nil {
					return fmt.Errorf("open history: %w", err)
				}
				defer closeHistory(store, ctx.logger)
			}

			ctx.logger.Info("mcp server starting",
				"name", server.ServerName,
				"version", server.ServerVersion,
				"build", Version,
				"history", cfg.History.Enabled,
				"gpu", opts.UseGPU)

			srv := server.New(server.Options{
				Match:      opts,
				ScanStride: cfg.Scanner.Stride,
				Logger:     ctx.logger.With("component", "server"),
				History:    store,
			})
			return srv.Serve(runCtx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
