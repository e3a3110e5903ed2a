package upbit

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"premiumcollector/config"
	"premiumcollector/pkg/fetch"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

var hundred = decimal.NewFromInt(100)

type RESTClient struct {
	baseURL       string
	quoteCurrency string
	batchSize     int
	batchGate     *rate.Limiter
	fetcher       *fetch.Client
}

func NewRESTClient(cfg config.UpbitConfig, fetcher *fetch.Client) *RESTClient {
	gate := rate.NewLimiter(rate.Inf, 1)
	if cfg.BatchPause > 0 {
		gate = rate.NewLimiter(rate.Every(cfg.BatchPause), 1)
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > config.MaxUpbitBatchSize {
		batchSize = config.MaxUpbitBatchSize
	}
	return &RESTClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		quoteCurrency: cfg.QuoteCurrency,
		batchSize:     batchSize,
		batchGate:     gate,
		fetcher:       fetcher,
	}
}

// GetMarkets returns market identifiers quoted in the configured currency, e.g. "KRW-BTC".
func (c *RESTClient) GetMarkets(ctx context.Context) ([]string, error) {
	var all []Market
	if err := c.fetcher.GetJSON(ctx, c.baseURL+"/v1/market/all?isDetails=false", &all); err != nil {
		return nil, err
	}

	prefix := c.quoteCurrency + "-"
	var markets []string
	for _, m := range all {
		if strings.HasPrefix(m.Market, prefix) {
			markets = append(markets, m.Market)
		}
	}
	return markets, nil
}

// GetTickers fetches tickers for a single batch of markets.
func (c *RESTClient) GetTickers(ctx context.Context, markets []string) ([]Ticker, error) {
	endpoint := c.baseURL + "/v1/ticker?markets=" + url.QueryEscape(strings.Join(markets, ","))

	var tickers []Ticker
	if err := c.fetcher.GetJSON(ctx, endpoint, &tickers); err != nil {
		return nil, err
	}
	return tickers, nil
}

// GetPrices lists the quote-currency markets, then fetches their tickers in
// batches of at most batchSize with a fixed pause between batches.
// A failed batch is skipped; an error is returned only when nothing was priced.
func (c *RESTClient) GetPrices(ctx context.Context) (map[string]Price, error) {
	markets, err := c.GetMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("no %s markets listed", c.quoteCurrency)
	}

	prices := make(map[string]Price, len(markets))
	var firstErr error
	for _, batch := range chunkStrings(markets, c.batchSize) {
		if err := c.batchGate.Wait(ctx); err != nil {
			return nil, err
		}

		tickers, err := c.GetTickers(ctx, batch)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		for _, t := range tickers {
			p := Price{
				Symbol: c.Symbol(t.Market),
				Price:  t.TradePrice,
			}
			if t.SignedChangeRate.Valid {
				p.Change24h = decimal.NewNullDecimal(t.SignedChangeRate.Decimal.Mul(hundred))
			}
			prices[p.Symbol] = p
		}
	}

	if len(prices) == 0 && firstErr != nil {
		return nil, fmt.Errorf("fetch tickers: %w", firstErr)
	}
	return prices, nil
}

// Symbol strips the quote-currency prefix: "KRW-BTC" -> "BTC".
func (c *RESTClient) Symbol(market string) string {
	return strings.ToUpper(strings.TrimPrefix(market, c.quoteCurrency+"-"))
}

func chunkStrings(in []string, size int) [][]string {
	if size <= 0 || len(in) == 0 {
		return [][]string{in}
	}
	out := make([][]string, 0, (len(in)+size-1)/size)
	for i := 0; i < len(in); i += size {
		j := i + size
		if j > len(in) {
			j = len(in)
		}
		out = append(out, in[i:j])
	}
	return out
}
