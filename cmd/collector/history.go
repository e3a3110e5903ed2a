package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"premiumcollector/pkg/storage/filestore"
	"premiumcollector/pkg/storage/postgres"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		days   int
		symbol string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print stored snapshots of the last N days as JSON",
		Long: `Print stored snapshots of the last N days as JSON.
With --symbol, one coin's rows are read from the Postgres mirror instead of the
history files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return fmt.Errorf("--days must not be negative, got %d", days)
			}

			var (
				b   []byte
				err error
			)
			if symbol != "" {
				b, err = a.symbolHistory(cmd.Context(), strings.ToUpper(symbol), days)
			} else {
				b, err = a.fileHistory(days)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "lookback window in days")
	cmd.Flags().StringVar(&symbol, "symbol", "", "read one coin from the postgres mirror")
	return cmd
}

func (a *app) fileHistory(days int) ([]byte, error) {
	store, err := filestore.New(a.cfg.Storage, a.log)
	if err != nil {
		return nil, err
	}
	snaps, err := store.LoadHistory(days, time.Now())
	if err != nil {
		return nil, err
	}
	return filestore.MarshalHistory(snaps)
}

func (a *app) symbolHistory(ctx context.Context, symbol string, days int) ([]byte, error) {
	if !a.cfg.Postgres.Enabled {
		return nil, errors.New("--symbol needs the postgres mirror (postgres.enabled)")
	}
	client, err := postgres.NewClient(a.cfg.Postgres.DSN(a.cfg.Log.Environment))
	if err != nil {
		return nil, err
	}
	defer client.Close()

	y, m, d := time.Now().UTC().Date()
	since := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -days)

	records, err := client.GetSymbolHistory(ctx, symbol, since)
	if err != nil {
		return nil, fmt.Errorf("query %s history: %w", symbol, err)
	}
	if records == nil {
		records = []postgres.SnapshotRecord{}
	}
	return json.Marshal(records)
}
