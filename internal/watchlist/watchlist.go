// Package watchlist keeps the user's ordered list of followed coins.
package watchlist

import (
	"context"
	"errors"
	"strings"

	"coinwatch/internal/storage"
)

// Key is the storage key holding the list.
const Key = "watchList"

// ErrInvalidCoin is returned when a coin has no id.
var ErrInvalidCoin = errors.New("watchlist: coin id is required")

// Coin identifies a followed coin.
type Coin struct {
	ID      string `json:"id"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
	IconURL string `json:"iconUrl,omitempty"`
}

// Identifier is what price lookups should use for the coin.
func (c Coin) Identifier() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Symbol
}

// Store persists the watch list in a KV store.
type Store struct {
	kv storage.KVStore
}

// NewStore constructs a Store.
func NewStore(kv storage.KVStore) *Store {
	return &Store{kv: kv}
}

// List returns the coins in insertion order.
func (s *Store) List(ctx context.Context) ([]Coin, error) {
	var coins []Coin
	ok, err := storage.GetJSON(ctx, s.kv, Key, &coins)
	if err != nil {
		return nil, err
	}
	if !ok || coins == nil {
		return []Coin{}, nil
	}
	return coins, nil
}

// Add appends coin unless a coin with the same id is already listed. It
// reports whether the list changed.
func (s *Store) Add(ctx context.Context, coin Coin) (bool, error) {
	coin.ID = strings.TrimSpace(coin.ID)
	if coin.ID == "" {
		return false, ErrInvalidCoin
	}

	coins, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	for _, c := range coins {
		if c.ID == coin.ID {
			return false, nil
		}
	}
	return true, storage.SetJSON(ctx, s.kv, Key, append(coins, coin))
}

// Remove drops the coin with id. It reports whether the list changed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	coins, err := s.List(ctx)
	if err != nil {
		return false, err
	}

	kept := make([]Coin, 0, len(coins))
	for _, c := range coins {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(coins) {
		return false, nil
	}
	return true, storage.SetJSON(ctx, s.kv, Key, kept)
}
