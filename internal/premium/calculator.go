package premium

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Premium returns the percentage by which localPrice, converted to USD at
// fxRate, deviates from referenceUSD, rounded to 2 places.
// It reports false when any input is not positive.
func Premium(localPrice, referenceUSD, fxRate decimal.Decimal) (decimal.Decimal, bool) {
	if !localPrice.IsPositive() || !referenceUSD.IsPositive() || !fxRate.IsPositive() {
		return decimal.Zero, false
	}
	localUSD := localPrice.Div(fxRate)
	return localUSD.Sub(referenceUSD).Div(referenceUSD).Mul(hundred).Round(2), true
}

// Premiums computes one premium per exchange that has a local price.
// Exchanges without a local price get no entry at all.
func Premiums(localPrices map[ExchangeID]decimal.Decimal, referenceUSD, fxRate decimal.Decimal) map[ExchangeID]decimal.Decimal {
	out := make(map[ExchangeID]decimal.Decimal, len(localPrices))
	for ex, price := range localPrices {
		if p, ok := Premium(price, referenceUSD, fxRate); ok {
			out[ex] = p
		}
	}
	return out
}
