package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"premiumcollector/internal/scheduler"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run collection cycles on the configured schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := a.buildCollector(false)
			if err != nil {
				return err
			}
			defer cleanup()

			job := func(ctx context.Context) error {
				_, err := c.RunOnce(ctx)
				return err
			}
			s, err := scheduler.New(a.cfg.Schedule.Spec, a.cfg.Schedule.RunOnStart, job, a.log)
			if err != nil {
				return err
			}
			s.Start()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			received := <-sig
			a.log.Info("shutting down", zap.String("signal", received.String()))

			s.Stop()
			return nil
		},
	}
}
