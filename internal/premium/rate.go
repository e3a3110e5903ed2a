package premium

import "github.com/shopspring/decimal"

// RateDeriver computes the implied USD/local exchange rate from one anchor asset
// quoted on the domestic exchange and on the reference exchange.
type RateDeriver struct {
	Anchor   string
	Fallback decimal.Decimal
}

// Derive returns anchor_local / anchor_usd rounded to 2 places. When either
// quote is missing or not positive it returns the fallback and false.
func (d RateDeriver) Derive(local, reference QuoteSet) (decimal.Decimal, bool) {
	localPrice, okLocal := local.LocalPrice(d.Anchor)
	refPrice, okRef := reference.ReferencePrice(d.Anchor)
	return ImpliedRate(localPrice, okLocal, refPrice, okRef, d.Fallback)
}

// ImpliedRate is the pure form of Derive.
func ImpliedRate(local decimal.Decimal, hasLocal bool, reference decimal.Decimal, hasReference bool, fallback decimal.Decimal) (decimal.Decimal, bool) {
	if !hasLocal || !hasReference || !local.IsPositive() || !reference.IsPositive() {
		return fallback, false
	}
	return local.Div(reference).Round(2), true
}
