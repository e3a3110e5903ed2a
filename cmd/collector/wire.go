package main

import (
	"fmt"
	"time"

	"premiumcollector/internal/collector"
	"premiumcollector/internal/memorystore"
	"premiumcollector/internal/premium"
	"premiumcollector/internal/source"
	"premiumcollector/pkg/bithumb"
	"premiumcollector/pkg/coinbase"
	"premiumcollector/pkg/coingecko"
	"premiumcollector/pkg/fetch"
	"premiumcollector/pkg/storage/filestore"
	"premiumcollector/pkg/storage/postgres"
	"premiumcollector/pkg/upbit"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// buildCollector wires sources, store and the optional mirror. The returned
// cleanup closes whatever was opened.
func (a *app) buildCollector(dryRun bool) (*collector.Collector, func(), error) {
	cfg := a.cfg
	policy, err := premium.ParseInclusionPolicy(cfg.Collector.InclusionPolicy)
	if err != nil {
		return nil, nil, err
	}

	fetcher := fetch.NewClient(cfg.Fetch, a.log)

	c := &collector.Collector{
		Upbit: &source.Upbit{
			Client: upbit.NewRESTClient(cfg.Sources.Upbit, fetcher),
			Logger: a.log,
		},
		Bithumb: &source.Bithumb{
			Client: bithumb.NewRESTClient(cfg.Sources.Bithumb, fetcher),
			Logger: a.log,
		},
		Reference: &source.Coinbase{
			Client: coinbase.NewRESTClient(cfg.Sources.Coinbase, fetcher),
			Logger: a.log,
		},
		Metadata: &source.CoinGecko{
			Client: coingecko.NewRESTClient(cfg.Sources.CoinGecko, fetcher),
			Logger: a.log,
		},
		Deriver: premium.RateDeriver{
			Anchor:   cfg.Collector.AnchorSymbol,
			Fallback: decimal.NewFromFloat(cfg.Collector.FallbackFXRate),
		},
		Reconciler:    premium.Reconciler{Policy: policy},
		RetentionDays: cfg.Storage.RetentionDays,
		StagePause:    cfg.Collector.StagePause,
		Now:           time.Now,
		Logger:        a.log,
	}
	cleanup := func() {}

	if dryRun {
		a.log.Info("dry run: results are kept in memory only")
		c.Store = memorystore.NewMemoryStore(cfg.Storage.RetentionDays)
		return c, cleanup, nil
	}

	store, err := filestore.New(cfg.Storage, a.log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	c.Store = store

	if cfg.Postgres.Enabled {
		pg, err := postgres.InitializeAndMigrateSnapshotRecord(cfg.Postgres, cfg.Log.Environment, true)
		if err != nil {
			// the file store is authoritative; run without the mirror
			a.log.Warn("postgres mirror unavailable", zap.Error(err))
		} else {
			c.Mirror = pg
			cleanup = func() {
				if err := pg.Close(); err != nil {
					a.log.Warn("failed to close postgres", zap.Error(err))
				}
			}
		}
	}
	return c, cleanup, nil
}
