package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"premiumcollector/internal/memorystore"
	"premiumcollector/internal/premium"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var clock = time.Date(2026, 10, 16, 9, 30, 15, 0, time.UTC)

type quoteStub struct {
	name  string
	set   premium.QuoteSet
	calls *int
}

func (s quoteStub) Name() string { return s.name }

func (s quoteStub) Quotes(context.Context) premium.QuoteSet {
	if s.calls != nil {
		*s.calls++
	}
	return s.set
}

type metaStub struct{ meta premium.Metadata }

func (s metaStub) Name() string { return "meta" }

func (s metaStub) Metadata(context.Context) premium.Metadata { return s.meta }

type mirrorStub struct {
	inserted []premium.Snapshot
	cutoff   time.Time
	err      error
}

func (m *mirrorStub) InsertSnapshot(_ context.Context, snap premium.Snapshot) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.inserted = append(m.inserted, snap)
	return int64(len(snap.Coins)), nil
}

func (m *mirrorStub) DeleteSnapshotsBefore(_ context.Context, before time.Time) (int64, error) {
	m.cutoff = before
	return 0, nil
}

type failingStore struct{ *memorystore.MemoryStore }

func (failingStore) SaveLatest(premium.LatestState) error { return errors.New("disk full") }

type pruneFailingStore struct{ *memorystore.MemoryStore }

func (pruneFailingStore) PruneHistory(time.Time) ([]string, error) {
	return nil, errors.New("permission denied")
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func local(prices map[string]string) premium.QuoteSet {
	set := premium.QuoteSet{}
	for sym, p := range prices {
		set[sym] = premium.Quote{Symbol: sym, LocalPrice: decimal.NewNullDecimal(d(p))}
	}
	return set
}

func reference(prices map[string]string) premium.QuoteSet {
	set := premium.QuoteSet{}
	for sym, p := range prices {
		set[sym] = premium.Quote{Symbol: sym, ReferenceUSD: decimal.NewNullDecimal(d(p))}
	}
	return set
}

func newCollector(store Store) *Collector {
	return &Collector{
		Upbit: quoteStub{name: "upbit", set: local(map[string]string{
			"BTC": "150000000", "ETH": "1650000", "XRP": "2985",
		})},
		Bithumb: quoteStub{name: "bithumb", set: local(map[string]string{
			"BTC": "150750000", "SOL": "225000",
		})},
		Reference: quoteStub{name: "coinbase", set: reference(map[string]string{
			"BTC": "100000", "ETH": "1000", "XRP": "2", "SOL": "150",
		})},
		Metadata: metaStub{meta: premium.Metadata{
			"BTC": {Symbol: "BTC", Name: "Bitcoin", MarketCapRank: 1},
			"ETH": {Symbol: "ETH", Name: "Ethereum", MarketCapRank: 2},
			"XRP": {Symbol: "XRP", Name: "XRP", MarketCapRank: 4},
			"SOL": {Symbol: "SOL", Name: "Solana", MarketCapRank: 5},
		}},
		Deriver:       premium.RateDeriver{Anchor: "BTC", Fallback: d("1450")},
		Reconciler:    premium.Reconciler{Policy: premium.PolicyAllowList},
		Store:         store,
		RetentionDays: 30,
		Now:           func() time.Time { return clock },
		Logger:        zap.NewNop(),
	}
}

// go test -v --run TestRunOnce
func TestRunOnce(t *testing.T) {
	store := memorystore.NewMemoryStore(30)
	store.AppendHistory(premium.Snapshot{Timestamp: clock.AddDate(0, 0, -45)})

	res, err := newCollector(store).RunOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, res.FXDerived)
	assert.True(t, res.FXRate.Equal(d("1500")))
	assert.Equal(t, 4, res.Coins)
	assert.Equal(t, 3, res.Coverage[premium.Upbit])
	assert.Equal(t, 2, res.Coverage[premium.Bithumb])
	assert.Equal(t, "ETH", res.Top.Symbol)
	assert.True(t, res.Top.Premium.Equal(d("10")))
	assert.Equal(t, "XRP", res.Bottom.Symbol)
	assert.True(t, res.Bottom.Premium.Equal(d("-0.5")))
	assert.Equal(t, 1, res.Entries)
	assert.Equal(t, []string{"2026-09-01"}, res.Pruned)

	latest, ok := store.Latest()
	require.True(t, ok)
	assert.Equal(t, clock, latest.UpdatedAt)
	require.Len(t, latest.Coins, 4)
	assert.Equal(t, []string{"BTC", "ETH", "XRP", "SOL"}, []string{
		latest.Coins[0].Symbol, latest.Coins[1].Symbol, latest.Coins[2].Symbol, latest.Coins[3].Symbol,
	})

	sol := latest.Coins[3]
	assert.NotContains(t, sol.Premiums, premium.Upbit)
	assert.True(t, sol.Premiums[premium.Bithumb].Equal(d("0")))

	history := store.Partition("2026-10-16")
	require.Len(t, history, 1)
	assert.Equal(t, clock, history[0].Timestamp)
	assert.Equal(t, 1, store.CountAll())
}

// go test -v --run TestRunOnceFallbackRate
func TestRunOnceFallbackRate(t *testing.T) {
	store := memorystore.NewMemoryStore(30)
	c := newCollector(store)
	c.Upbit = quoteStub{name: "upbit", set: premium.QuoteSet{}}

	res, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, res.FXDerived)
	assert.True(t, res.FXRate.Equal(d("1450")))
	assert.Zero(t, res.Coverage[premium.Upbit])
	assert.Nil(t, res.Top)
}

// go test -v --run TestRunOnceFatalPreconditions
func TestRunOnceFatalPreconditions(t *testing.T) {
	t.Run("no reference data", func(t *testing.T) {
		store := memorystore.NewMemoryStore(30)
		c := newCollector(store)
		c.Reference = quoteStub{name: "coinbase", set: premium.QuoteSet{}}

		_, err := c.RunOnce(context.Background())
		require.ErrorIs(t, err, ErrNoReferenceData)
		_, ok := store.Latest()
		assert.False(t, ok)
		assert.Zero(t, store.CountAll())
	})

	t.Run("no metadata", func(t *testing.T) {
		store := memorystore.NewMemoryStore(30)
		c := newCollector(store)
		c.Metadata = metaStub{}

		_, err := c.RunOnce(context.Background())
		require.ErrorIs(t, err, ErrNoMetadata)
		assert.Zero(t, store.CountAll())
	})

	t.Run("metadata optional under reference policy", func(t *testing.T) {
		store := memorystore.NewMemoryStore(30)
		c := newCollector(store)
		c.Metadata = metaStub{}
		c.Reconciler.Policy = premium.PolicyReference

		res, err := c.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 4, res.Coins)

		latest, _ := store.Latest()
		for _, coin := range latest.Coins {
			assert.Equal(t, premium.UnrankedRank, coin.Metadata.MarketCapRank)
			assert.Equal(t, coin.Symbol, coin.Metadata.Name)
		}
	})
}

// go test -v --run TestRunOnceWriteFailure
func TestRunOnceWriteFailure(t *testing.T) {
	c := newCollector(failingStore{memorystore.NewMemoryStore(30)})

	_, err := c.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

// go test -v --run TestRunOncePruneFailure
func TestRunOncePruneFailure(t *testing.T) {
	store := memorystore.NewMemoryStore(30)
	c := newCollector(pruneFailingStore{store})

	res, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Pruned)
	assert.Equal(t, 1, res.Entries)

	latest, ok := store.Latest()
	require.True(t, ok)
	assert.Len(t, latest.Coins, 4)
}

// go test -v --run TestRunOnceMirror
func TestRunOnceMirror(t *testing.T) {
	mirror := &mirrorStub{}
	c := newCollector(memorystore.NewMemoryStore(30))
	c.Mirror = mirror

	_, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, mirror.inserted, 1)
	assert.Equal(t, time.Date(2026, 9, 16, 0, 0, 0, 0, time.UTC), mirror.cutoff)

	// mirror failures never fail the cycle
	c.Mirror = &mirrorStub{err: errors.New("connection refused")}
	_, err = c.RunOnce(context.Background())
	require.NoError(t, err)
}

// go test -v --run TestRunOnceCancelled
func TestRunOnceCancelled(t *testing.T) {
	calls := 0
	store := memorystore.NewMemoryStore(30)
	c := newCollector(store)
	c.StagePause = time.Hour
	c.Bithumb = quoteStub{name: "bithumb", calls: &calls}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
	assert.Zero(t, store.CountAll())
}
