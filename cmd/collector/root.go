package main

import (
	"fmt"

	"premiumcollector/config"
	"premiumcollector/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "collector",
		Short: "KRW crypto premium collector",
		Long: `Collects domestic (Upbit, Bithumb) and reference (Coinbase) prices,
derives the implied USD/KRW rate and records per-coin premiums to a latest-state
file and a date-partitioned history.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// viper config
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}

			// zap logger
			log, err := logger.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}

			a.cfg = cfg
			a.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config file (default ./config/config.yaml)")

	root.AddCommand(
		newCollectCmd(a),
		newServeCmd(a),
		newHistoryCmd(a),
	)
	return root
}
