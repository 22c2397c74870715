// Package quote resolves user supplied coin identifiers into USD price quotes
// and caches the results.
package quote

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a resolved USD price observation. Values are never mutated after
// construction.
type Quote struct {
	CoinID     string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Name       string          `json:"name"`
	PriceUSD   decimal.Decimal `json:"priceUsd"`
	Change24h  decimal.Decimal `json:"change24h"`
	ObservedAt time.Time       `json:"timestamp"`
	Source     string          `json:"source"`
}

// Source returns a quote for an identifier, reporting false when none could
// be obtained. Implementations never return errors: every failure is "no data".
type Source interface {
	Get(ctx context.Context, identifier string) (Quote, bool)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, identifier string) (Quote, bool)

// Get implements Source.
func (f SourceFunc) Get(ctx context.Context, identifier string) (Quote, bool) {
	return f(ctx, identifier)
}

// Clock returns the current time. Injected so tests can age cache entries.
type Clock func() time.Time

func systemClock() time.Time { return time.Now() }
