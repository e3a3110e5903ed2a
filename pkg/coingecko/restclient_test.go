package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"premiumcollector/config"
	"premiumcollector/pkg/fetch"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// go test -v --run TestGetTopMarkets
func TestGetTopMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "/api/v3/coins/markets", r.URL.Path)
		require.Equal(t, "usd", q.Get("vs_currency"))
		require.Equal(t, "market_cap_desc", q.Get("order"))
		require.Equal(t, "100", q.Get("per_page"))
		_, _ = w.Write([]byte(`[
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin","image":"https://img/btc.png","market_cap_rank":1},
			{"id":"newcoin","symbol":"new","name":"New","image":"","market_cap_rank":null}
		]`))
	}))
	defer srv.Close()

	fetcher := fetch.NewClient(config.FetchConfig{Timeout: 2 * time.Second, Retries: 1}, zap.NewNop())
	c := NewRESTClient(config.CoinGeckoConfig{BaseURL: srv.URL, VsCurrency: "usd", PerPage: 100}, fetcher)

	markets, err := c.GetTopMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 2)
	require.Equal(t, "bitcoin", markets[0].ID)
	require.Equal(t, 1, markets[0].Rank())
	require.Equal(t, UnrankedRank, markets[1].Rank())
}
