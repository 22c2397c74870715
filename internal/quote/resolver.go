package quote

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"coinwatch/internal/fetcher"
	"coinwatch/internal/metrics"
)

// PrimaryProvider is the directory + markets provider (CoinGecko).
type PrimaryProvider interface {
	SearchCoins(ctx context.Context, query string) ([]fetcher.SearchHit, error)
	Markets(ctx context.Context, ids []string) ([]fetcher.Market, error)
}

// FallbackProvider is the ticker provider consulted when the primary has no
// usable answer (Coinpaprika).
type FallbackProvider interface {
	Ticker(ctx context.Context, id string) (*fetcher.Ticker, error)
	SearchCurrencies(ctx context.Context, text string, limit int) ([]string, error)
}

// ResolverOptions tune the resolver.
type ResolverOptions struct {
	Now Clock
}

// Resolver turns an identifier (id, symbol, contract address or free text)
// into a Quote using the primary provider, then the fallback.
type Resolver struct {
	primary  PrimaryProvider
	fallback FallbackProvider
	now      Clock
	logger   zerolog.Logger
}

// NewResolver constructs a Resolver. Either provider may be nil.
func NewResolver(primary PrimaryProvider, fallback FallbackProvider, opts ResolverOptions, logger zerolog.Logger) *Resolver {
	now := opts.Now
	if now == nil {
		now = systemClock
	}
	return &Resolver{
		primary:  primary,
		fallback: fallback,
		now:      now,
		logger:   logger.With().Str("component", "resolver").Logger(),
	}
}

// Get implements Source without caching.
func (r *Resolver) Get(ctx context.Context, identifier string) (Quote, bool) {
	return r.Resolve(ctx, identifier)
}

// Resolve looks identifier up on the primary provider and falls back to the
// secondary one. Provider failures are logged and reported as "not found".
func (r *Resolver) Resolve(ctx context.Context, identifier string) (Quote, bool) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return Quote{}, false
	}

	if r.primary != nil {
		if q, ok := r.fromPrimary(ctx, id); ok {
			metrics.ResolutionsTotal.WithLabelValues("primary").Inc()
			return q, true
		}
	}

	if r.fallback != nil {
		if q, ok := r.fromFallback(ctx, id); ok {
			metrics.ResolutionsTotal.WithLabelValues("fallback").Inc()
			return q, true
		}
	}

	metrics.ResolutionsTotal.WithLabelValues("absent").Inc()
	r.logger.Debug().Str("identifier", id).Msg("no provider could resolve identifier")
	return Quote{}, false
}

func (r *Resolver) fromPrimary(ctx context.Context, id string) (Quote, bool) {
	query := normalizeIdentifier(id)

	hits, err := r.primary.SearchCoins(ctx, query)
	if err != nil {
		r.logger.Debug().Err(err).Str("identifier", id).Msg("primary search failed")
		return Quote{}, false
	}

	hit, ok := SelectHit(hits, query)
	if !ok {
		return Quote{}, false
	}

	rows, err := r.primary.Markets(ctx, []string{hit.ID})
	if err != nil {
		r.logger.Debug().Err(err).Str("coin_id", hit.ID).Msg("primary markets failed")
		return Quote{}, false
	}
	if len(rows) == 0 {
		return Quote{}, false
	}

	row := rows[0]
	for _, candidate := range rows {
		if candidate.ID == hit.ID {
			row = candidate
			break
		}
	}
	if !row.HasQuote() || row.CurrentPrice.Decimal.IsNegative() {
		r.logger.Debug().Str("coin_id", hit.ID).Msg("primary market row incomplete")
		return Quote{}, false
	}

	return Quote{
		CoinID:     row.ID,
		Symbol:     strings.ToUpper(row.Symbol),
		Name:       row.Name,
		PriceUSD:   row.CurrentPrice.Decimal,
		Change24h:  row.PriceChangePercentage24h.Decimal,
		ObservedAt: r.observedAt(row.LastUpdated),
		Source:     "coingecko",
	}, true
}

func (r *Resolver) fromFallback(ctx context.Context, id string) (Quote, bool) {
	ticker, err := r.fallback.Ticker(ctx, id)
	if err == nil {
		if q, ok := r.fromTicker(ticker); ok {
			return q, true
		}
	} else {
		r.logger.Debug().Err(err).Str("identifier", id).Msg("fallback ticker failed")
	}

	ids, err := r.fallback.SearchCurrencies(ctx, id, 1)
	if err != nil {
		r.logger.Debug().Err(err).Str("identifier", id).Msg("fallback search failed")
		return Quote{}, false
	}
	if len(ids) == 0 {
		return Quote{}, false
	}

	ticker, err = r.fallback.Ticker(ctx, ids[0])
	if err != nil {
		r.logger.Debug().Err(err).Str("ticker_id", ids[0]).Msg("fallback ticker retry failed")
		return Quote{}, false
	}
	return r.fromTicker(ticker)
}

func (r *Resolver) fromTicker(t *fetcher.Ticker) (Quote, bool) {
	if t == nil {
		return Quote{}, false
	}
	usd, ok := t.USD()
	if !ok || usd.Price.Decimal.IsNegative() {
		return Quote{}, false
	}

	updated := usd.LastUpdated
	if updated == "" {
		updated = t.LastUpdated
	}

	name := t.Name
	if name == "" {
		name = t.Symbol
	}
	if name == "" {
		name = t.ID
	}

	return Quote{
		CoinID:     t.ID,
		Symbol:     strings.ToUpper(t.Symbol),
		Name:       name,
		PriceUSD:   usd.Price.Decimal,
		Change24h:  usd.PercentChange24h.Decimal,
		ObservedAt: r.observedAt(updated),
		Source:     "coinpaprika",
	}, true
}

func (r *Resolver) observedAt(raw string) time.Time {
	if raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts
		}
	}
	return r.now()
}

// SelectHit picks the search hit matching identifier: exact id first, then
// exact symbol (both case-insensitive), then the best market-cap rank with
// unranked hits last. Ties keep search order.
func SelectHit(hits []fetcher.SearchHit, identifier string) (fetcher.SearchHit, bool) {
	if len(hits) == 0 {
		return fetcher.SearchHit{}, false
	}

	lowered := strings.ToLower(strings.TrimSpace(identifier))
	for _, h := range hits {
		if strings.ToLower(h.ID) == lowered {
			return h, true
		}
	}
	for _, h := range hits {
		if strings.ToLower(h.Symbol) == lowered {
			return h, true
		}
	}

	best := 0
	for i := 1; i < len(hits); i++ {
		if rankLess(hits[i], hits[best]) {
			best = i
		}
	}
	return hits[best], true
}

func rankLess(a, b fetcher.SearchHit) bool {
	if a.MarketCapRank == nil {
		return false
	}
	if b.MarketCapRank == nil {
		return true
	}
	return *a.MarketCapRank < *b.MarketCapRank
}

// normalizeIdentifier lowercases contract addresses so they match the
// provider's canonical form; anything else is passed through.
func normalizeIdentifier(id string) string {
	if common.IsHexAddress(id) {
		return strings.ToLower(common.HexToAddress(id).Hex())
	}
	return id
}
