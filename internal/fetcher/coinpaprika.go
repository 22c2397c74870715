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

// CoinpaprikaOptions parameterise the Coinpaprika client.
type CoinpaprikaOptions struct {
	BaseURL            string
	RateLimitPerMinute int
	Timeout            time.Duration
	UserAgent          string
}

// Coinpaprika is the fallback price provider.
type Coinpaprika struct {
	http *jsonClient
}

// NewCoinpaprika constructs a Coinpaprika client.
func NewCoinpaprika(opts CoinpaprikaOptions, logger zerolog.Logger) *Coinpaprika {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.coinpaprika.com/v1"
	}

	return &Coinpaprika{
		http: newJSONClient(clientOptions{
			provider:   "coinpaprika",
			baseURL:    baseURL,
			timeout:    opts.Timeout,
			userAgent:  opts.UserAgent,
			ratePerMin: opts.RateLimitPerMinute,
		}, logger.With().Str("component", "coinpaprika").Logger()),
	}
}

// Ticker fetches the ticker document for a native Coinpaprika id such as
// "btc-bitcoin".
func (c *Coinpaprika) Ticker(ctx context.Context, id string) (*Ticker, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("ticker id is empty")
	}

	var ticker Ticker
	if err := c.http.getJSON(ctx, "ticker", "/tickers/"+url.PathEscape(id), nil, &ticker); err != nil {
		return nil, err
	}
	return &ticker, nil
}

// SearchCurrencies returns currency ids matching text, best match first.
func (c *Coinpaprika) SearchCurrencies(ctx context.Context, text string, limit int) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("search text is empty")
	}
	if limit <= 0 {
		limit = 1
	}

	query := url.Values{
		"q":     {text},
		"c":     {"currencies"},
		"limit": {strconv.Itoa(limit)},
	}

	var res paprikaSearchResponse
	if err := c.http.getJSON(ctx, "search", "/search", query, &res); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(res.Currencies))
	for _, cur := range res.Currencies {
		if cur.ID != "" {
			ids = append(ids, cur.ID)
		}
	}
	return ids, nil
}
