package filestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"premiumcollector/config"
	"premiumcollector/internal/premium"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func newStore(t *testing.T) (*Store, config.StorageConfig) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.StorageConfig{
		DataDir:       dir,
		HistoryDir:    filepath.Join(dir, "history"),
		LatestFile:    "coins.json",
		RetentionDays: 30,
	}
	s, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return s, cfg
}

func snapshotAt(ts time.Time) premium.Snapshot {
	return premium.Snapshot{
		Timestamp: ts,
		FXRate:    decimal.RequireFromString("1500"),
		Coins: map[string]premium.PremiumRecord{
			"BTC": {
				ReferenceUSD: decimal.RequireFromString("100000"),
				Premiums: map[premium.ExchangeID]decimal.Decimal{
					premium.Upbit:   decimal.RequireFromString("1.25"),
					premium.Bithumb: decimal.RequireFromString("-0.5"),
				},
			},
			"SOL": {
				ReferenceUSD: decimal.RequireFromString("150"),
				Premiums: map[premium.ExchangeID]decimal.Decimal{
					premium.Bithumb: decimal.Zero,
				},
			},
		},
	}
}

func writePartition(t *testing.T, cfg config.StorageConfig, date string, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.HistoryDir, date+".json"), []byte(body), 0o644))
}

// go test -v --run TestAppendHistoryToExistingPartition
func TestAppendHistoryToExistingPartition(t *testing.T) {
	s, cfg := newStore(t)

	for i := 0; i < 3; i++ {
		n, err := s.AppendHistory(snapshotAt(now.Add(time.Duration(i) * 30 * time.Minute)))
		require.NoError(t, err)
		require.Equal(t, i+1, n)
	}

	n, err := s.AppendHistory(snapshotAt(now.Add(2 * time.Hour)))
	require.NoError(t, err)
	require.Equal(t, 4, n)

	b, err := os.ReadFile(filepath.Join(cfg.HistoryDir, "2026-10-16.json"))
	require.NoError(t, err)
	require.False(t, strings.Contains(string(b), "\n"), "partition must be compact")

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	require.Len(t, raw, 4)
	require.Equal(t, "2026-10-16T09:30:00Z", raw[0]["timestamp"])

	coins := raw[0]["coins"].(map[string]any)
	sol := coins["SOL"].(map[string]any)
	require.Equal(t, 150.0, sol["ref"])
	require.Equal(t, 0.0, sol["bt"])
	_, hasUp := sol["up"]
	require.False(t, hasUp, "unobserved premium must be omitted, not zero")

	snaps := s.LoadPartition("2026-10-16")
	require.Len(t, snaps, 4)
	require.True(t, snaps[0].Coins["BTC"].Premiums[premium.Upbit].Equal(decimal.RequireFromString("1.25")))
	require.NotContains(t, snaps[0].Coins["SOL"].Premiums, premium.Upbit)
}

// go test -v --run TestCorruptPartitionIsEmpty
func TestCorruptPartitionIsEmpty(t *testing.T) {
	s, cfg := newStore(t)
	writePartition(t, cfg, "2026-10-16", `[{"timestamp":"2026-10-16T00:00:00Z",`)

	require.Empty(t, s.LoadPartition("2026-10-16"))
	require.Empty(t, s.LoadPartition("2026-10-01"))

	// the next append starts the partition over
	n, err := s.AppendHistory(snapshotAt(now))
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

// go test -v --run TestPruneHistory
func TestPruneHistory(t *testing.T) {
	s, cfg := newStore(t)

	var dates []string
	for _, ago := range []int{40, 31, 29, 1} {
		date := now.AddDate(0, 0, -ago).Format(dateLayout)
		dates = append(dates, date)
		writePartition(t, cfg, date, `[]`)
	}
	writePartition(t, cfg, "notes", `ignored`)

	_, err := s.AppendHistory(snapshotAt(now))
	require.NoError(t, err)

	removed, err := s.PruneHistory(now)
	require.NoError(t, err)
	require.Equal(t, []string{dates[0], dates[1]}, removed)

	left, err := s.Partitions()
	require.NoError(t, err)
	require.Equal(t, []string{dates[2], dates[3], "2026-10-16"}, left)

	_, err = os.Stat(filepath.Join(cfg.HistoryDir, "notes.json"))
	require.NoError(t, err)
}

// go test -v --run TestPruneHistoryContinuesPastFailure
func TestPruneHistoryContinuesPastFailure(t *testing.T) {
	s, cfg := newStore(t)

	var dates []string
	for _, ago := range []int{45, 40, 35} {
		date := now.AddDate(0, 0, -ago).Format(dateLayout)
		dates = append(dates, date)
		writePartition(t, cfg, date, `[]`)
	}

	locked := filepath.Join(cfg.HistoryDir, dates[1]+".json")
	s.remove = func(name string) error {
		if name == locked {
			return os.ErrPermission
		}
		return os.Remove(name)
	}

	removed, err := s.PruneHistory(now)
	require.NoError(t, err)
	require.Equal(t, []string{dates[0], dates[2]}, removed)

	left, err := s.Partitions()
	require.NoError(t, err)
	require.Equal(t, []string{dates[1]}, left)
}

// go test -v --run TestLoadHistory
func TestLoadHistory(t *testing.T) {
	s, cfg := newStore(t)

	_, err := s.AppendHistory(snapshotAt(now.AddDate(0, 0, -10)))
	require.NoError(t, err)
	_, err = s.AppendHistory(snapshotAt(now.AddDate(0, 0, -2)))
	require.NoError(t, err)
	_, err = s.AppendHistory(snapshotAt(now.AddDate(0, 0, -2).Add(time.Hour)))
	require.NoError(t, err)
	_, err = s.AppendHistory(snapshotAt(now))
	require.NoError(t, err)
	writePartition(t, cfg, now.AddDate(0, 0, -1).Format(dateLayout), `not json`)

	history, err := s.LoadHistory(7, now)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i := 1; i < len(history); i++ {
		require.True(t, history[i-1].Timestamp.Before(history[i].Timestamp))
	}

	history, err = s.LoadHistory(30, now)
	require.NoError(t, err)
	require.Len(t, history, 4)
}

// go test -v --run TestSaveLatest
func TestSaveLatest(t *testing.T) {
	s, cfg := newStore(t)

	state := premium.LatestState{
		UpdatedAt: now,
		FXRate:    decimal.RequireFromString("1500"),
		Coins: []premium.ReconciledCoin{{
			Symbol:       "ETH",
			Metadata:     premium.CoinMetadata{Symbol: "ETH", ID: "ethereum", Name: "Ethereum", Image: "https://img/eth.png", MarketCapRank: 2},
			LocalPrices:  map[premium.ExchangeID]decimal.Decimal{premium.Upbit: decimal.RequireFromString("1650000")},
			Change24h:    map[premium.ExchangeID]decimal.Decimal{premium.Upbit: decimal.RequireFromString("-1.5")},
			ReferenceUSD: decimal.RequireFromString("1000"),
			FXRate:       decimal.RequireFromString("1500"),
			Premiums:     map[premium.ExchangeID]decimal.Decimal{premium.Upbit: decimal.RequireFromString("10")},
		}},
	}
	require.NoError(t, s.SaveLatest(state))
	require.NoError(t, s.SaveLatest(state)) // overwrite, not append

	b, err := os.ReadFile(cfg.LatestPath())
	require.NoError(t, err)

	var got struct {
		UpdatedAt string           `json:"updated_at"`
		USDKRW    float64          `json:"usd_krw"`
		Coins     []map[string]any `json:"coins"`
	}
	require.NoError(t, json.Unmarshal(b, &got))
	require.Equal(t, "2026-10-16T09:30:00Z", got.UpdatedAt)
	require.Equal(t, 1500.0, got.USDKRW)
	require.Len(t, got.Coins, 1)

	eth := got.Coins[0]
	require.Equal(t, "ETH", eth["symbol"])
	require.Equal(t, "Ethereum", eth["name"])
	require.Equal(t, 2.0, eth["market_cap_rank"])
	require.Equal(t, 1000.0, eth["reference_usd"])
	require.Equal(t, 1650000.0, eth["upbit_krw"])
	require.Equal(t, 10.0, eth["upbit_premium"])
	require.Equal(t, -1.5, eth["upbit_change_24h"])
	require.NotContains(t, eth, "bithumb_krw")
	require.NotContains(t, eth, "bithumb_premium")
}

// go test -v --run TestMarshalHistory
func TestMarshalHistory(t *testing.T) {
	b, err := MarshalHistory([]premium.Snapshot{snapshotAt(now)})
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	require.Len(t, raw, 1)
	require.Equal(t, "2026-10-16T09:30:00Z", raw[0]["timestamp"])
	require.Equal(t, 1500.0, raw[0]["usd_krw"])

	b, err = MarshalHistory(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", string(b))
}
