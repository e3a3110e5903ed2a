package premium

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// InclusionPolicy decides which symbols become a ReconciledCoin.
type InclusionPolicy string

const (
	// PolicyAllowList keeps symbols in the metadata allow-list that have at
	// least one local price and a positive reference price.
	PolicyAllowList InclusionPolicy = "allowlist"
	// PolicyReference keeps any symbol with a local price on some domestic
	// exchange and a positive reference price, whether or not it is ranked.
	PolicyReference InclusionPolicy = "reference"
)

func ParseInclusionPolicy(s string) (InclusionPolicy, error) {
	switch p := InclusionPolicy(s); p {
	case PolicyAllowList, PolicyReference:
		return p, nil
	default:
		return "", fmt.Errorf("unknown inclusion policy %q", s)
	}
}

// Reconciler merges per-source quotes into ReconciledCoins.
type Reconciler struct {
	Policy InclusionPolicy
}

// Reconcile builds one ReconciledCoin per included symbol, premiums included,
// sorted ascending by market cap rank. Equal ranks keep alphabetical order.
// Prices are carried at source precision; nothing is averaged across sources.
func (r Reconciler) Reconcile(meta Metadata, reference QuoteSet, locals map[ExchangeID]QuoteSet, fxRate decimal.Decimal) []ReconciledCoin {
	candidates := r.candidates(meta, locals)

	coins := make([]ReconciledCoin, 0, len(candidates))
	for _, symbol := range candidates {
		refPrice, ok := reference.ReferencePrice(symbol)
		if !ok {
			continue
		}

		localPrices := make(map[ExchangeID]decimal.Decimal, len(locals))
		changes := make(map[ExchangeID]decimal.Decimal, len(locals))
		for _, ex := range Exchanges {
			set := locals[ex]
			price, ok := set.LocalPrice(symbol)
			if !ok {
				continue
			}
			localPrices[ex] = price
			if q := set[symbol]; q.Change24h.Valid {
				changes[ex] = q.Change24h.Decimal
			}
		}
		if len(localPrices) == 0 {
			continue
		}

		md, _ := meta.Lookup(symbol)
		coins = append(coins, ReconciledCoin{
			Symbol:       symbol,
			Metadata:     md,
			LocalPrices:  localPrices,
			Change24h:    changes,
			ReferenceUSD: refPrice,
			FXRate:       fxRate,
			Premiums:     Premiums(localPrices, refPrice, fxRate),
		})
	}

	sort.SliceStable(coins, func(i, j int) bool {
		return coins[i].Metadata.MarketCapRank < coins[j].Metadata.MarketCapRank
	})
	return coins
}

// candidates returns the symbols to consider, alphabetically.
func (r Reconciler) candidates(meta Metadata, locals map[ExchangeID]QuoteSet) []string {
	seen := make(map[string]struct{})
	switch r.Policy {
	case PolicyReference:
		for _, set := range locals {
			for symbol := range set {
				seen[symbol] = struct{}{}
			}
		}
	default:
		for symbol := range meta {
			seen[symbol] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for symbol := range seen {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// NewLatestState wraps a reconciled cycle result.
func NewLatestState(now time.Time, fxRate decimal.Decimal, coins []ReconciledCoin) LatestState {
	return LatestState{UpdatedAt: now.UTC(), FXRate: fxRate, Coins: coins}
}

// NewSnapshot compacts reconciled coins into a history entry.
func NewSnapshot(now time.Time, fxRate decimal.Decimal, coins []ReconciledCoin) Snapshot {
	snap := Snapshot{
		Timestamp: now.UTC().Truncate(time.Second),
		FXRate:    fxRate,
		Coins:     make(map[string]PremiumRecord, len(coins)),
	}
	for _, c := range coins {
		premiums := make(map[ExchangeID]decimal.Decimal, len(c.Premiums))
		for ex, p := range c.Premiums {
			premiums[ex] = p
		}
		snap.Coins[c.Symbol] = PremiumRecord{ReferenceUSD: c.ReferenceUSD, Premiums: premiums}
	}
	return snap
}
