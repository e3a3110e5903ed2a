package bithumb

import (
	"context"
	"fmt"
	"strings"

	"premiumcollector/config"
	"premiumcollector/pkg/fetch"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

type RESTClient struct {
	baseURL         string
	paymentCurrency string
	successStatus   string
	fetcher         *fetch.Client
}

func NewRESTClient(cfg config.BithumbConfig, fetcher *fetch.Client) *RESTClient {
	return &RESTClient{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		paymentCurrency: cfg.PaymentCurrency,
		successStatus:   cfg.SuccessStatus,
		fetcher:         fetcher,
	}
}

// GetPrices fetches every ticker quoted in the payment currency with a single call.
// The payload is trusted only when its status field equals the success sentinel.
func (c *RESTClient) GetPrices(ctx context.Context) (map[string]Price, error) {
	endpoint := fmt.Sprintf("%s/public/ticker/ALL_%s", c.baseURL, c.paymentCurrency)

	body, err := c.fetcher.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return ParseAllTicker(body, c.successStatus)
}

// ParseAllTicker extracts closing prices from an ALL ticker response.
// Entries that are not objects, the reserved "date" key, and unparsable prices are skipped.
func ParseAllTicker(body []byte, successStatus string) (map[string]Price, error) {
	if status := gjson.GetBytes(body, "status").String(); status != successStatus {
		return nil, fmt.Errorf("bithumb status %q: %s", status, gjson.GetBytes(body, "message").String())
	}

	data := gjson.GetBytes(body, "data")
	if !data.IsObject() {
		return nil, fmt.Errorf("bithumb response has no data object")
	}

	prices := make(map[string]Price)
	data.ForEach(func(key, value gjson.Result) bool {
		symbol := key.String()
		if symbol == reservedDataKey || !value.IsObject() {
			return true
		}

		closing, err := decimal.NewFromString(value.Get("closing_price").String())
		if err != nil {
			return true
		}

		p := Price{Symbol: strings.ToUpper(symbol), ClosingPrice: closing}
		if rate := value.Get("fluctate_rate_24H"); rate.Exists() {
			if d, err := decimal.NewFromString(rate.String()); err == nil {
				p.Change24h = decimal.NewNullDecimal(d)
			}
		}
		prices[p.Symbol] = p
		return true
	})

	return prices, nil
}
