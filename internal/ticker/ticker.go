// Package ticker maintains the quick-view snapshot of the first watch-list
// coins and renders the compact badge derived from it.
package ticker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"coinwatch/internal/quote"
	"coinwatch/internal/storage"
	"coinwatch/internal/watchlist"
)

// Key is the storage key holding the last snapshot.
const Key = "tickerSnapshot"

// DefaultSize is how many watch-list coins the snapshot covers.
const DefaultSize = 3

// Item is one snapshot row. Price and change are null when no quote could
// be resolved.
type Item struct {
	Coin      watchlist.Coin      `json:"coin"`
	PriceUSD  decimal.NullDecimal `json:"priceUsd"`
	Change24h decimal.NullDecimal `json:"change24h"`
	Timestamp int64               `json:"timestamp,omitempty"`
}

// Snapshotter refreshes and stores ticker snapshots.
type Snapshotter struct {
	kv     storage.KVStore
	watch  *watchlist.Store
	quotes quote.Source
	size   int
	logger zerolog.Logger
}

// NewSnapshotter constructs a Snapshotter covering the first size coins.
func NewSnapshotter(kv storage.KVStore, watch *watchlist.Store, quotes quote.Source, size int, logger zerolog.Logger) *Snapshotter {
	if size <= 0 {
		size = DefaultSize
	}
	return &Snapshotter{
		kv:     kv,
		watch:  watch,
		quotes: quotes,
		size:   size,
		logger: logger.With().Str("component", "ticker").Logger(),
	}
}

// Refresh resolves the leading watch-list coins concurrently and persists
// the snapshot. An empty watch list yields an empty snapshot and no write.
func (s *Snapshotter) Refresh(ctx context.Context) ([]Item, error) {
	coins, err := s.watch.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load watch list: %w", err)
	}
	if len(coins) > s.size {
		coins = coins[:s.size]
	}
	if len(coins) == 0 {
		return []Item{}, nil
	}

	items := make([]Item, len(coins))
	g, gctx := errgroup.WithContext(ctx)
	for i, coin := range coins {
		g.Go(func() error {
			items[i] = Item{Coin: coin}
			q, ok := s.quotes.Get(gctx, coin.Identifier())
			if !ok {
				return nil
			}
			items[i].PriceUSD = decimal.NewNullDecimal(q.PriceUSD)
			items[i].Change24h = decimal.NewNullDecimal(q.Change24h)
			items[i].Timestamp = q.ObservedAt.UnixMilli()
			return nil
		})
	}
	_ = g.Wait()

	if err := storage.SetJSON(ctx, s.kv, Key, items); err != nil {
		return items, fmt.Errorf("save ticker snapshot: %w", err)
	}
	s.logger.Debug().Int("coins", len(items)).Msg("ticker snapshot refreshed")
	return items, nil
}

// Load returns the stored snapshot, or an empty one.
func (s *Snapshotter) Load(ctx context.Context) ([]Item, error) {
	var items []Item
	ok, err := storage.GetJSON(ctx, s.kv, Key, &items)
	if err != nil {
		return nil, err
	}
	if !ok || items == nil {
		return []Item{}, nil
	}
	return items, nil
}

// Current returns the stored snapshot, refreshing it first when empty.
func (s *Snapshotter) Current(ctx context.Context) ([]Item, error) {
	items, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		return items, nil
	}
	return s.Refresh(ctx)
}

// ObservedAt converts the stored timestamp back to a time.
func (i Item) ObservedAt() time.Time {
	if i.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(i.Timestamp).UTC()
}
