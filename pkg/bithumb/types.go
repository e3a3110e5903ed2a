package bithumb

import "github.com/shopspring/decimal"

// reservedDataKey is the non-coin timestamp entry inside the ALL ticker "data" object.
const reservedDataKey = "date"

// Price is one coin of the ALL ticker normalized to a bare symbol.
type Price struct {
	Symbol       string
	ClosingPrice decimal.Decimal
	Change24h    decimal.NullDecimal // fluctate_rate_24H, percent
}
