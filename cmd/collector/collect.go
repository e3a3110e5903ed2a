package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCollectCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run a single collection cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := a.buildCollector(dryRun)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if _, err := c.RunOnce(ctx); err != nil {
				a.log.Error("collection cycle failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "keep results in memory instead of writing files")
	return cmd
}
