package source

import (
	"context"
	"strings"

	"premiumcollector/internal/premium"
	"premiumcollector/pkg/bithumb"
	"premiumcollector/pkg/coinbase"
	"premiumcollector/pkg/coingecko"
	"premiumcollector/pkg/upbit"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// QuoteSource yields one provider's normalized quotes. Failures are logged and
// produce an empty set, never an error.
type QuoteSource interface {
	Name() string
	Quotes(ctx context.Context) premium.QuoteSet
}

// MetadataSource yields the allow-list, empty on failure.
type MetadataSource interface {
	Name() string
	Metadata(ctx context.Context) premium.Metadata
}

type UpbitPricer interface {
	GetPrices(ctx context.Context) (map[string]upbit.Price, error)
}

type BithumbPricer interface {
	GetPrices(ctx context.Context) (map[string]bithumb.Price, error)
}

type CoinbasePricer interface {
	GetPrices(ctx context.Context) (map[string]decimal.Decimal, error)
}

type CoinGeckoRanker interface {
	GetTopMarkets(ctx context.Context) ([]coingecko.Market, error)
}

var (
	_ UpbitPricer     = (*upbit.RESTClient)(nil)
	_ BithumbPricer   = (*bithumb.RESTClient)(nil)
	_ CoinbasePricer  = (*coinbase.RESTClient)(nil)
	_ CoinGeckoRanker = (*coingecko.RESTClient)(nil)
)

// Upbit is the domestic exchange source.
type Upbit struct {
	Client UpbitPricer
	Logger *zap.Logger
}

func (s *Upbit) Name() string { return string(premium.Upbit) }

func (s *Upbit) Quotes(ctx context.Context) premium.QuoteSet {
	s.Logger.Info("fetching local prices", zap.String("source", s.Name()))

	prices, err := s.Client.GetPrices(ctx)
	if err != nil {
		s.Logger.Warn("source failed, continuing without it", zap.String("source", s.Name()), zap.Error(err))
		return premium.QuoteSet{}
	}

	set := make(premium.QuoteSet, len(prices))
	for sym, p := range prices {
		set[sym] = premium.Quote{
			Symbol:     sym,
			LocalPrice: decimal.NewNullDecimal(p.Price),
			Change24h:  p.Change24h,
		}
	}
	s.Logger.Info("local prices fetched", zap.String("source", s.Name()), zap.Int("coins", len(set)))
	return set
}

// Bithumb is the secondary domestic exchange source.
type Bithumb struct {
	Client BithumbPricer
	Logger *zap.Logger
}

func (s *Bithumb) Name() string { return string(premium.Bithumb) }

func (s *Bithumb) Quotes(ctx context.Context) premium.QuoteSet {
	s.Logger.Info("fetching local prices", zap.String("source", s.Name()))

	prices, err := s.Client.GetPrices(ctx)
	if err != nil {
		s.Logger.Warn("source failed, continuing without it", zap.String("source", s.Name()), zap.Error(err))
		return premium.QuoteSet{}
	}

	set := make(premium.QuoteSet, len(prices))
	for sym, p := range prices {
		set[sym] = premium.Quote{
			Symbol:     sym,
			LocalPrice: decimal.NewNullDecimal(p.ClosingPrice),
			Change24h:  p.Change24h,
		}
	}
	s.Logger.Info("local prices fetched", zap.String("source", s.Name()), zap.Int("coins", len(set)))
	return set
}

// Coinbase is the USD reference source.
type Coinbase struct {
	Client CoinbasePricer
	Logger *zap.Logger
}

func (s *Coinbase) Name() string { return "coinbase" }

func (s *Coinbase) Quotes(ctx context.Context) premium.QuoteSet {
	s.Logger.Info("fetching reference prices", zap.String("source", s.Name()))

	prices, err := s.Client.GetPrices(ctx)
	if err != nil {
		s.Logger.Warn("source failed, continuing without it", zap.String("source", s.Name()), zap.Error(err))
		return premium.QuoteSet{}
	}

	set := make(premium.QuoteSet, len(prices))
	for sym, usd := range prices {
		set[sym] = premium.Quote{Symbol: sym, ReferenceUSD: decimal.NewNullDecimal(usd)}
	}
	s.Logger.Info("reference prices fetched", zap.String("source", s.Name()), zap.Int("coins", len(set)))
	return set
}

// CoinGecko is the market cap ranking source.
type CoinGecko struct {
	Client CoinGeckoRanker
	Logger *zap.Logger
}

func (s *CoinGecko) Name() string { return "coingecko" }

// Metadata builds the allow-list. When a ticker appears twice the better
// ranked asset wins.
func (s *CoinGecko) Metadata(ctx context.Context) premium.Metadata {
	s.Logger.Info("fetching coin metadata", zap.String("source", s.Name()))

	markets, err := s.Client.GetTopMarkets(ctx)
	if err != nil {
		s.Logger.Warn("source failed", zap.String("source", s.Name()), zap.Error(err))
		return premium.Metadata{}
	}

	meta := make(premium.Metadata, len(markets))
	for _, m := range markets {
		sym := strings.ToUpper(strings.TrimSpace(m.Symbol))
		if sym == "" {
			continue
		}
		if prev, ok := meta[sym]; ok && prev.MarketCapRank <= m.Rank() {
			continue
		}
		meta[sym] = premium.CoinMetadata{
			Symbol:        sym,
			ID:            m.ID,
			Name:          m.Name,
			Image:         m.Image,
			MarketCapRank: m.Rank(),
		}
	}
	s.Logger.Info("coin metadata fetched", zap.String("source", s.Name()), zap.Int("coins", len(meta)))
	return meta
}
