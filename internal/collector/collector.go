package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"premiumcollector/internal/premium"
	"premiumcollector/internal/source"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrNoMetadata aborts a cycle when the allow-list is required but empty.
	ErrNoMetadata = errors.New("no coin metadata")
	// ErrNoReferenceData aborts a cycle when the reference exchange returned nothing.
	ErrNoReferenceData = errors.New("no reference exchange data")
)

// Store is where a cycle's results land.
type Store interface {
	SaveLatest(state premium.LatestState) error
	AppendHistory(snap premium.Snapshot) (int, error)
	PruneHistory(now time.Time) ([]string, error)
}

// Mirror is an optional secondary copy of each snapshot.
type Mirror interface {
	InsertSnapshot(ctx context.Context, snap premium.Snapshot) (int64, error)
	DeleteSnapshotsBefore(ctx context.Context, before time.Time) (int64, error)
}

// Collector runs one collection cycle at a time: fetch every source in turn,
// derive the rate, reconcile, compute premiums and persist.
type Collector struct {
	Upbit     source.QuoteSource
	Bithumb   source.QuoteSource
	Reference source.QuoteSource
	Metadata  source.MetadataSource

	Deriver    premium.RateDeriver
	Reconciler premium.Reconciler

	Store  Store
	Mirror Mirror // nil disables mirroring

	RetentionDays int
	StagePause    time.Duration
	Now           func() time.Time
	Logger        *zap.Logger
}

// Extreme is one coin's premium on one exchange.
type Extreme struct {
	Symbol  string
	Premium decimal.Decimal
}

// Result summarizes a completed cycle.
type Result struct {
	Timestamp   time.Time
	FXRate      decimal.Decimal
	FXDerived   bool
	Coins       int
	Coverage    map[premium.ExchangeID]int
	Top, Bottom *Extreme
	Entries     int
	Pruned      []string
}

// RunOnce executes a full cycle. Fatal preconditions return before anything
// is written, so the previous latest state stays in place.
func (c *Collector) RunOnce(ctx context.Context) (*Result, error) {
	c.Logger.Info("collection cycle started")

	upbitQuotes := c.Upbit.Quotes(ctx)
	if err := c.pause(ctx); err != nil {
		return nil, err
	}
	bithumbQuotes := c.Bithumb.Quotes(ctx)
	if err := c.pause(ctx); err != nil {
		return nil, err
	}
	reference := c.Reference.Quotes(ctx)
	if err := c.pause(ctx); err != nil {
		return nil, err
	}
	meta := c.Metadata.Metadata(ctx)

	if len(reference) == 0 {
		c.Logger.Error("reference prices unavailable, aborting cycle", zap.String("source", c.Reference.Name()))
		return nil, ErrNoReferenceData
	}
	if len(meta) == 0 && c.Reconciler.Policy == premium.PolicyAllowList {
		c.Logger.Error("coin metadata unavailable, aborting cycle", zap.String("source", c.Metadata.Name()))
		return nil, ErrNoMetadata
	}

	fx, derived := c.Deriver.Derive(upbitQuotes, reference)
	if !derived {
		c.Logger.Warn("anchor quote missing, using fallback rate",
			zap.String("anchor", c.Deriver.Anchor), zap.String("usd_krw", fx.String()))
	}

	locals := map[premium.ExchangeID]premium.QuoteSet{
		premium.Upbit:   upbitQuotes,
		premium.Bithumb: bithumbQuotes,
	}
	coins := c.Reconciler.Reconcile(meta, reference, locals, fx)

	// one clock read picks the partition, stamps both files and drives pruning
	now := c.Now().UTC()
	snap := premium.NewSnapshot(now, fx, coins)

	entries, err := c.Store.AppendHistory(snap)
	if err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}
	pruned, err := c.Store.PruneHistory(now)
	if err != nil {
		c.Logger.Warn("history pruning failed", zap.Error(err))
	}
	if err := c.Store.SaveLatest(premium.NewLatestState(now, fx, coins)); err != nil {
		return nil, fmt.Errorf("save latest state: %w", err)
	}

	c.mirror(ctx, snap, now)

	res := summarize(coins)
	res.Timestamp = snap.Timestamp
	res.FXRate = fx
	res.FXDerived = derived
	res.Entries = entries
	res.Pruned = pruned
	c.logSummary(res)
	return res, nil
}

func (c *Collector) mirror(ctx context.Context, snap premium.Snapshot, now time.Time) {
	if c.Mirror == nil {
		return
	}
	n, err := c.Mirror.InsertSnapshot(ctx, snap)
	if err != nil {
		c.Logger.Warn("failed to mirror snapshot", zap.Error(err))
		return
	}
	y, m, d := now.Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -c.RetentionDays)
	deleted, err := c.Mirror.DeleteSnapshotsBefore(ctx, cutoff)
	if err != nil {
		c.Logger.Warn("failed to prune mirrored snapshots", zap.Error(err))
		return
	}
	c.Logger.Info("snapshot mirrored", zap.Int64("inserted", n), zap.Int64("pruned", deleted))
}

func (c *Collector) pause(ctx context.Context) error {
	if c.StagePause <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.StagePause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func summarize(coins []premium.ReconciledCoin) *Result {
	res := &Result{
		Coins:    len(coins),
		Coverage: make(map[premium.ExchangeID]int, len(premium.Exchanges)),
	}
	for _, coin := range coins {
		for ex := range coin.Premiums {
			res.Coverage[ex]++
		}
		p, ok := coin.Premiums[premium.Upbit]
		if !ok {
			continue
		}
		if res.Top == nil || p.GreaterThan(res.Top.Premium) {
			res.Top = &Extreme{Symbol: coin.Symbol, Premium: p}
		}
		if res.Bottom == nil || p.LessThan(res.Bottom.Premium) {
			res.Bottom = &Extreme{Symbol: coin.Symbol, Premium: p}
		}
	}
	return res
}

func (c *Collector) logSummary(res *Result) {
	fields := []zap.Field{
		zap.Int("coins", res.Coins),
		zap.Int("upbit", res.Coverage[premium.Upbit]),
		zap.Int("bithumb", res.Coverage[premium.Bithumb]),
		zap.String("usd_krw", res.FXRate.StringFixed(1)),
		zap.Bool("rate_derived", res.FXDerived),
		zap.Int("partition_entries", res.Entries),
	}
	if res.Top != nil {
		fields = append(fields,
			zap.String("top", fmt.Sprintf("%s %s%%", res.Top.Symbol, res.Top.Premium.StringFixed(1))),
			zap.String("bottom", fmt.Sprintf("%s %s%%", res.Bottom.Symbol, res.Bottom.Premium.StringFixed(1))),
		)
	}
	c.Logger.Info("collection cycle completed", fields...)
}
