package coingecko

import (
	"context"
	"fmt"
	"strings"

	"premiumcollector/config"
	"premiumcollector/pkg/fetch"
)

type RESTClient struct {
	baseURL    string
	vsCurrency string
	perPage    int
	fetcher    *fetch.Client
}

func NewRESTClient(cfg config.CoinGeckoConfig, fetcher *fetch.Client) *RESTClient {
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = 100
	}
	return &RESTClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		vsCurrency: cfg.VsCurrency,
		perPage:    perPage,
		fetcher:    fetcher,
	}
}

// GetTopMarkets returns the first page of assets ordered by market cap, descending.
func (c *RESTClient) GetTopMarkets(ctx context.Context) ([]Market, error) {
	endpoint := fmt.Sprintf(
		"%s/api/v3/coins/markets?vs_currency=%s&order=market_cap_desc&per_page=%d&page=1&sparkline=false",
		c.baseURL,
		c.vsCurrency,
		c.perPage,
	)

	var markets []Market
	if err := c.fetcher.GetJSON(ctx, endpoint, &markets); err != nil {
		return nil, err
	}
	return markets, nil
}
