package premium

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnrankedRank sorts assets with no market cap rank after every ranked asset.
const UnrankedRank = 999

// ExchangeID names a domestic (local currency) exchange.
type ExchangeID string

const (
	Upbit   ExchangeID = "upbit"
	Bithumb ExchangeID = "bithumb"
)

// Exchanges lists the domestic exchanges in output order.
var Exchanges = []ExchangeID{Upbit, Bithumb}

// Quote is a point-in-time observation of one symbol from one source.
// Invalid fields were not observed by that source.
type Quote struct {
	Symbol       string
	LocalPrice   decimal.NullDecimal
	ReferenceUSD decimal.NullDecimal
	Change24h    decimal.NullDecimal // percent
}

// QuoteSet maps a normalized symbol to its quote from a single source.
// An empty set means the source failed or returned nothing.
type QuoteSet map[string]Quote

// LocalPrice returns the positive local price for symbol, if observed.
func (s QuoteSet) LocalPrice(symbol string) (decimal.Decimal, bool) {
	q, ok := s[symbol]
	if !ok || !q.LocalPrice.Valid || !q.LocalPrice.Decimal.IsPositive() {
		return decimal.Zero, false
	}
	return q.LocalPrice.Decimal, true
}

// ReferencePrice returns the positive USD price for symbol, if observed.
func (s QuoteSet) ReferencePrice(symbol string) (decimal.Decimal, bool) {
	q, ok := s[symbol]
	if !ok || !q.ReferenceUSD.Valid || !q.ReferenceUSD.Decimal.IsPositive() {
		return decimal.Zero, false
	}
	return q.ReferenceUSD.Decimal, true
}

// CoinMetadata describes one asset of the market cap ranking.
type CoinMetadata struct {
	Symbol        string
	ID            string
	Name          string
	Image         string
	MarketCapRank int
}

// Metadata is the allow-list: every tracked symbol and its display data.
type Metadata map[string]CoinMetadata

// Lookup returns the metadata for symbol, or a placeholder named after the
// symbol with UnrankedRank when it is not in the allow-list.
func (m Metadata) Lookup(symbol string) (CoinMetadata, bool) {
	if md, ok := m[symbol]; ok {
		return md, true
	}
	return CoinMetadata{Symbol: symbol, Name: symbol, MarketCapRank: UnrankedRank}, false
}

// ReconciledCoin is the unified record of one symbol for one cycle.
// It is built once by Reconciler.Reconcile and never modified.
type ReconciledCoin struct {
	Symbol       string
	Metadata     CoinMetadata
	LocalPrices  map[ExchangeID]decimal.Decimal
	Change24h    map[ExchangeID]decimal.Decimal
	ReferenceUSD decimal.Decimal
	FXRate       decimal.Decimal
	Premiums     map[ExchangeID]decimal.Decimal // only exchanges with a local price
}

// PremiumRecord is the compact per-coin history entry.
type PremiumRecord struct {
	ReferenceUSD decimal.Decimal
	Premiums     map[ExchangeID]decimal.Decimal
}

// Snapshot is one cycle's compact history entry.
type Snapshot struct {
	Timestamp time.Time
	FXRate    decimal.Decimal
	Coins     map[string]PremiumRecord
}

// LatestState is the full result of the most recent cycle.
type LatestState struct {
	UpdatedAt time.Time
	FXRate    decimal.Decimal
	Coins     []ReconciledCoin
}
