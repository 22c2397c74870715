package fetcher

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	coingeckoSearchPath  = "/search"
	coingeckoMarketsPath = "/coins/markets"

	// directorySearchLimit caps how many search hits are enriched with market data.
	directorySearchLimit = 50
)

// CoingeckoOptions parameterise the CoinGecko client.
type CoingeckoOptions struct {
	BaseURL            string
	DemoAPIKey         string
	RateLimitPerMinute int
	Timeout            time.Duration
	UserAgent          string
}

// Coingecko is the primary price provider.
type Coingecko struct {
	http *jsonClient
}

// NewCoingecko constructs a CoinGecko client.
func NewCoingecko(opts CoingeckoOptions, logger zerolog.Logger) *Coingecko {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}

	headers := map[string]string{}
	if opts.DemoAPIKey != "" {
		headers["x-cg-demo-api-key"] = opts.DemoAPIKey
	}

	return &Coingecko{
		http: newJSONClient(clientOptions{
			provider:     "coingecko",
			baseURL:      baseURL,
			timeout:      opts.Timeout,
			userAgent:    opts.UserAgent,
			ratePerMin:   opts.RateLimitPerMinute,
			extraHeaders: headers,
		}, logger.With().Str("component", "coingecko").Logger()),
	}
}

// SearchCoins queries the directory search endpoint.
func (c *Coingecko) SearchCoins(ctx context.Context, query string) ([]SearchHit, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, errors.New("search query is empty")
	}

	var res searchResponse
	if err := c.http.getJSON(ctx, "search", coingeckoSearchPath, url.Values{"query": {q}}, &res); err != nil {
		return nil, err
	}
	return res.Coins, nil
}

// Markets fetches USD market rows for the given canonical ids.
func (c *Coingecko) Markets(ctx context.Context, ids []string) ([]Market, error) {
	if len(ids) == 0 {
		return nil, errors.New("at least one coin id required")
	}

	query := url.Values{
		"vs_currency":             {"usd"},
		"ids":                     {strings.Join(ids, ",")},
		"order":                   {"market_cap_desc"},
		"sparkline":               {"false"},
		"price_change_percentage": {"24h"},
	}

	var rows []Market
	if err := c.http.getJSON(ctx, "markets", coingeckoMarketsPath, query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// TopMarkets lists coins ordered by market capitalisation.
func (c *Coingecko) TopMarkets(ctx context.Context, page, perPage int) ([]Market, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 10
	}

	query := url.Values{
		"vs_currency":             {"usd"},
		"order":                   {"market_cap_desc"},
		"per_page":                {strconv.Itoa(perPage)},
		"page":                    {strconv.Itoa(page)},
		"sparkline":               {"false"},
		"price_change_percentage": {"24h"},
	}

	var rows []Market
	if err := c.http.getJSON(ctx, "markets", coingeckoMarketsPath, query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Directory searches for query and enriches the hits with market data,
// preserving search order. When the markets call fails the bare hits are
// returned without prices.
func (c *Coingecko) Directory(ctx context.Context, query string) ([]DirectoryItem, error) {
	hits, err := c.SearchCoins(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return []DirectoryItem{}, nil
	}
	if len(hits) > directorySearchLimit {
		hits = hits[:directorySearchLimit]
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}

	byID := make(map[string]Market)
	if rows, err := c.Markets(ctx, ids); err == nil {
		for _, row := range rows {
			byID[row.ID] = row
		}
	}

	items := make([]DirectoryItem, 0, len(hits))
	for _, h := range hits {
		item := DirectoryItem{
			ID:     h.ID,
			Symbol: strings.ToUpper(h.Symbol),
			Name:   firstNonEmpty(h.Name, h.ID),
			Image:  h.Large,
		}
		if m, ok := byID[h.ID]; ok {
			item.PriceUSD = m.CurrentPrice.NullDecimal
			item.Change24h = m.PriceChangePercentage24h.NullDecimal
			if m.Image != "" {
				item.Image = m.Image
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// ListingItems converts market rows into directory items.
func ListingItems(rows []Market) []DirectoryItem {
	items := make([]DirectoryItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, DirectoryItem{
			ID:        row.ID,
			Symbol:    strings.ToUpper(row.Symbol),
			Name:      firstNonEmpty(row.Name, row.ID),
			Image:     row.Image,
			PriceUSD:  row.CurrentPrice.NullDecimal,
			Change24h: row.PriceChangePercentage24h.NullDecimal,
		})
	}
	return items
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
