package collector

import (
	"context"
	"errors"

	"TrendScope/internal/model"
	"TrendScope/internal/store"

	"go.uber.org/zap"
)

// CachedFetcher serves tables from a BarStore and falls back to Inner.
// Cache failures are logged and never fail a fetch.
type CachedFetcher struct {
	Inner  Fetcher
	Store  store.BarStore
	logger *zap.Logger
}

// NewCachedFetcher wraps inner with a read-through cache.
func NewCachedFetcher(inner Fetcher, s store.BarStore, logger *zap.Logger) *CachedFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedFetcher{Inner: inner, Store: s, logger: logger}
}

func (f *CachedFetcher) Name() string { return "cached-" + f.Inner.Name() }

// FetchDaily returns the cached table when fresh, otherwise fetches and stores it.
func (f *CachedFetcher) FetchDaily(ctx context.Context, ticker string, years int) (*model.RawTable, error) {
	table, err := f.Store.Load(ctx, ticker, years)
	if err == nil {
		f.logger.Debug("price cache hit", zap.String("ticker", ticker), zap.Int("years", years))
		return table, nil
	}
	if !errors.Is(err, store.ErrCacheMiss) {
		f.logger.Warn("price cache load failed", zap.String("ticker", ticker), zap.Error(err))
	}

	table, err = f.Inner.FetchDaily(ctx, ticker, years)
	if err != nil {
		return nil, err
	}
	if err := f.Store.Save(ctx, ticker, years, table); err != nil {
		f.logger.Warn("price cache save failed", zap.String("ticker", ticker), zap.Error(err))
	}
	return table, nil
}
