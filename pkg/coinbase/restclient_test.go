package coinbase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"premiumcollector/config"
	"premiumcollector/pkg/fetch"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const exchangeRates = `{"data":{"currency":"USD","rates":{
  "btc":"0.00001",
  "ETH":"0.0004",
  "USD":"1",
  "ZERO":"0",
  "NEG":"-2",
  "JUNK":"abc"
}}}`

// go test -v --run TestParseRates
func TestParseRates(t *testing.T) {
	prices, err := ParseRates([]byte(exchangeRates))
	require.NoError(t, err)

	require.Len(t, prices, 3)
	require.True(t, prices["BTC"].Equal(decimal.NewFromInt(100000)))
	require.True(t, prices["ETH"].Equal(decimal.NewFromInt(2500)))
	require.True(t, prices["USD"].Equal(decimal.NewFromInt(1)))
	require.NotContains(t, prices, "ZERO")
	require.NotContains(t, prices, "NEG")
	require.NotContains(t, prices, "JUNK")
}

// go test -v --run TestInvertRoundTrip
func TestInvertRoundTrip(t *testing.T) {
	for _, s := range []string{"0.00001", "0.0004", "1", "3", "7.123456", "1234.5678", "0.000000183"} {
		rate := decimal.RequireFromString(s)

		price, ok := Invert(rate)
		require.True(t, ok)
		back, ok := Invert(price)
		require.True(t, ok)

		diff := back.Sub(rate).Abs()
		tol := rate.Mul(decimal.RequireFromString("1e-9"))
		require.True(t, diff.LessThanOrEqual(tol), "rate %s came back as %s", rate, back)
	}

	_, ok := Invert(decimal.Zero)
	require.False(t, ok)
	_, ok = Invert(decimal.NewFromInt(-1))
	require.False(t, ok)
}

func TestParseRatesMissingTable(t *testing.T) {
	_, err := ParseRates([]byte(`{"errors":[{"id":"not_found"}]}`))
	require.Error(t, err)
}

// go test -v --run TestGetPrices
func TestGetPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/exchange-rates", r.URL.Path)
		require.Equal(t, "USD", r.URL.Query().Get("currency"))
		_, _ = w.Write([]byte(exchangeRates))
	}))
	defer srv.Close()

	fetcher := fetch.NewClient(config.FetchConfig{Timeout: 2 * time.Second, Retries: 1}, zap.NewNop())
	c := NewRESTClient(config.CoinbaseConfig{BaseURL: srv.URL, Currency: "USD"}, fetcher)

	prices, err := c.GetPrices(context.Background())
	require.NoError(t, err)
	require.Len(t, prices, 3)
}
