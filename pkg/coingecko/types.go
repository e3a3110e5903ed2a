package coingecko

// UnrankedRank is used when the provider reports no market cap rank.
const UnrankedRank = 999

// Market is the subset of GET /api/v3/coins/markets the collector reads.
type Market struct {
	ID            string `json:"id"`              // e.g., "bitcoin"
	Symbol        string `json:"symbol"`          // lower-case ticker, e.g., "btc"
	Name          string `json:"name"`            // e.g., "Bitcoin"
	Image         string `json:"image"`           // logo URL
	MarketCapRank *int   `json:"market_cap_rank"` // null for unranked assets
}

// Rank returns the market cap rank or UnrankedRank.
func (m Market) Rank() int {
	if m.MarketCapRank == nil {
		return UnrankedRank
	}
	return *m.MarketCapRank
}
