package upbit

import "github.com/shopspring/decimal"

// Market is one entry of GET /v1/market/all.
type Market struct {
	Market      string `json:"market"`       // e.g., "KRW-BTC"
	KoreanName  string `json:"korean_name"`  // e.g., "비트코인"
	EnglishName string `json:"english_name"` // e.g., "Bitcoin"
}

// Ticker is the subset of GET /v1/ticker the collector reads.
type Ticker struct {
	Market           string              `json:"market"`             // e.g., "KRW-BTC"
	TradePrice       decimal.Decimal     `json:"trade_price"`        // last traded price in the quote currency
	SignedChangeRate decimal.NullDecimal `json:"signed_change_rate"` // 24h change as a ratio, e.g. -0.0123
}

// Price is a ticker normalized to a bare symbol.
type Price struct {
	Symbol    string
	Price     decimal.Decimal
	Change24h decimal.NullDecimal // percent
}
