package filestore

import (
	"encoding/json"
	"fmt"
	"time"

	"premiumcollector/internal/premium"

	"github.com/shopspring/decimal"
)

const timestampLayout = "2006-01-02T15:04:05Z"

// latestFile is the on-disk shape of the latest-state file.
type latestFile struct {
	UpdatedAt string       `json:"updated_at"`
	USDKRW    float64      `json:"usd_krw"`
	Coins     []coinRecord `json:"coins"`
}

// coinRecord is one reconciled coin. Exchange fields are omitted when unobserved.
type coinRecord struct {
	Symbol        string  `json:"symbol"`
	ID            string  `json:"id,omitempty"`
	Name          string  `json:"name"`
	Image         string  `json:"image"`
	MarketCapRank int     `json:"market_cap_rank"`
	USDKRW        float64 `json:"usd_krw"`
	ReferenceUSD  float64 `json:"reference_usd"`

	UpbitKRW       *float64 `json:"upbit_krw,omitempty"`
	UpbitPremium   *float64 `json:"upbit_premium,omitempty"`
	UpbitChange24h *float64 `json:"upbit_change_24h,omitempty"`

	BithumbKRW       *float64 `json:"bithumb_krw,omitempty"`
	BithumbPremium   *float64 `json:"bithumb_premium,omitempty"`
	BithumbChange24h *float64 `json:"bithumb_change_24h,omitempty"`
}

// snapshotRecord is one entry of a history partition.
type snapshotRecord struct {
	Timestamp string                   `json:"timestamp"`
	USDKRW    float64                  `json:"usd_krw"`
	Coins     map[string]compactRecord `json:"coins"`
}

// compactRecord keeps history files small: reference price plus premiums.
type compactRecord struct {
	Ref float64  `json:"ref"`
	Up  *float64 `json:"up,omitempty"`
	Bt  *float64 `json:"bt,omitempty"`
}

func optional(m map[premium.ExchangeID]decimal.Decimal, ex premium.ExchangeID) *float64 {
	v, ok := m[ex]
	if !ok {
		return nil
	}
	f := v.InexactFloat64()
	return &f
}

func toDecimal(f *float64) (decimal.Decimal, bool) {
	if f == nil {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(*f), true
}

func toLatestFile(state premium.LatestState) latestFile {
	fx := state.FXRate.Round(2).InexactFloat64()
	out := latestFile{
		UpdatedAt: state.UpdatedAt.UTC().Format(timestampLayout),
		USDKRW:    fx,
		Coins:     make([]coinRecord, 0, len(state.Coins)),
	}
	for _, c := range state.Coins {
		out.Coins = append(out.Coins, coinRecord{
			Symbol:        c.Symbol,
			ID:            c.Metadata.ID,
			Name:          c.Metadata.Name,
			Image:         c.Metadata.Image,
			MarketCapRank: c.Metadata.MarketCapRank,
			USDKRW:        fx,
			ReferenceUSD:  c.ReferenceUSD.InexactFloat64(),

			UpbitKRW:       optional(c.LocalPrices, premium.Upbit),
			UpbitPremium:   optional(c.Premiums, premium.Upbit),
			UpbitChange24h: optional(c.Change24h, premium.Upbit),

			BithumbKRW:       optional(c.LocalPrices, premium.Bithumb),
			BithumbPremium:   optional(c.Premiums, premium.Bithumb),
			BithumbChange24h: optional(c.Change24h, premium.Bithumb),
		})
	}
	return out
}

func toSnapshotRecord(snap premium.Snapshot) snapshotRecord {
	rec := snapshotRecord{
		Timestamp: snap.Timestamp.UTC().Format(timestampLayout),
		USDKRW:    snap.FXRate.Round(2).InexactFloat64(),
		Coins:     make(map[string]compactRecord, len(snap.Coins)),
	}
	for sym, c := range snap.Coins {
		rec.Coins[sym] = compactRecord{
			Ref: c.ReferenceUSD.InexactFloat64(),
			Up:  optional(c.Premiums, premium.Upbit),
			Bt:  optional(c.Premiums, premium.Bithumb),
		}
	}
	return rec
}

func fromSnapshotRecord(rec snapshotRecord) (premium.Snapshot, error) {
	ts, err := time.Parse(timestampLayout, rec.Timestamp)
	if err != nil {
		return premium.Snapshot{}, fmt.Errorf("parse timestamp %q: %w", rec.Timestamp, err)
	}

	snap := premium.Snapshot{
		Timestamp: ts,
		FXRate:    decimal.NewFromFloat(rec.USDKRW),
		Coins:     make(map[string]premium.PremiumRecord, len(rec.Coins)),
	}
	for sym, c := range rec.Coins {
		premiums := make(map[premium.ExchangeID]decimal.Decimal, 2)
		if v, ok := toDecimal(c.Up); ok {
			premiums[premium.Upbit] = v
		}
		if v, ok := toDecimal(c.Bt); ok {
			premiums[premium.Bithumb] = v
		}
		snap.Coins[sym] = premium.PremiumRecord{
			ReferenceUSD: decimal.NewFromFloat(c.Ref),
			Premiums:     premiums,
		}
	}
	return snap, nil
}

// MarshalHistory encodes snapshots in the history partition format.
func MarshalHistory(snaps []premium.Snapshot) ([]byte, error) {
	records := make([]snapshotRecord, 0, len(snaps))
	for _, snap := range snaps {
		records = append(records, toSnapshotRecord(snap))
	}
	return json.Marshal(records)
}
