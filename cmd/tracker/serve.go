package main

import (
	"context"
	"os/signal"
	"syscall"

	"task-tracker/internal/server"

	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pool, err := server.OpenDatabase(cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			queryCache := server.BuildCache(runCtx, cfg)
			if queryCache != nil {
				defer queryCache.Close()
			}

			app := server.NewApp(cfg, server.Dependencies{Pool: pool, Cache: queryCache})
			defer app.Close()

			err = server.Serve(runCtx, cfg, app.Router)
			if err != nil && runCtx.Err() != nil {
				return context.Canceled
			}
			return err
		},
	}
}
