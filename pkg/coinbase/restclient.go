package coinbase

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"premiumcollector/config"
	"premiumcollector/pkg/fetch"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var one = decimal.NewFromInt(1)

type RESTClient struct {
	baseURL  string
	currency string
	fetcher  *fetch.Client
}

func NewRESTClient(cfg config.CoinbaseConfig, fetcher *fetch.Client) *RESTClient {
	return &RESTClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		currency: cfg.Currency,
		fetcher:  fetcher,
	}
}

// GetPrices returns the price of one unit of each listed asset in the base currency.
func (c *RESTClient) GetPrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	endpoint := c.baseURL + "/v2/exchange-rates?currency=" + url.QueryEscape(c.currency)

	body, err := c.fetcher.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return ParseRates(body)
}

// ParseRates reads data.rates ("1 base = X asset") and inverts each entry to
// "1 asset = Y base". Non-numeric and non-positive rates are dropped.
func ParseRates(body []byte) (map[string]decimal.Decimal, error) {
	rates := gjson.GetBytes(body, "data.rates")
	if !rates.IsObject() {
		return nil, fmt.Errorf("coinbase response has no data.rates object")
	}

	prices := make(map[string]decimal.Decimal)
	rates.ForEach(func(key, value gjson.Result) bool {
		r, err := decimal.NewFromString(value.String())
		if err != nil {
			return true
		}
		if price, ok := Invert(r); ok {
			prices[strings.ToUpper(key.String())] = price
		}
		return true
	})
	return prices, nil
}

// Invert returns 1/rate, or false when rate is not positive.
func Invert(rate decimal.Decimal) (decimal.Decimal, bool) {
	if !rate.IsPositive() {
		return decimal.Zero, false
	}
	return one.Div(rate), true
}
