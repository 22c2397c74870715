package fetcher

import (
	"bytes"

	"github.com/shopspring/decimal"
)

// Number is a nullable decimal decoded only from JSON number literals.
// Quoted strings, booleans and null leave it invalid.
type Number struct {
	decimal.NullDecimal
}

// NewNumber wraps a known value.
func NewNumber(d decimal.Decimal) Number {
	return Number{NullDecimal: decimal.NewNullDecimal(d)}
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	n.NullDecimal = decimal.NullDecimal{}
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return nil
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return nil
	}
	n.NullDecimal = decimal.NewNullDecimal(d)
	return nil
}

// SearchHit is one coin returned by the CoinGecko directory search.
type SearchHit struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	MarketCapRank *int   `json:"market_cap_rank"`
	Large         string `json:"large"`
}

type searchResponse struct {
	Coins []SearchHit `json:"coins"`
}

// Market is a CoinGecko /coins/markets row. Price fields are nullable so
// callers can tell "missing" from zero.
type Market struct {
	ID                       string `json:"id"`
	Symbol                   string `json:"symbol"`
	Name                     string `json:"name"`
	Image                    string `json:"image"`
	CurrentPrice             Number `json:"current_price"`
	PriceChangePercentage24h Number `json:"price_change_percentage_24h"`
	MarketCapRank            *int   `json:"market_cap_rank"`
	LastUpdated              string `json:"last_updated"`
}

// HasQuote reports whether both price and 24h change are present.
func (m Market) HasQuote() bool {
	return m.CurrentPrice.Valid && m.PriceChangePercentage24h.Valid
}

// Ticker is a Coinpaprika /tickers/{id} document.
type Ticker struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Symbol      string                 `json:"symbol"`
	Rank        int                    `json:"rank"`
	LastUpdated string                 `json:"last_updated"`
	Quotes      map[string]TickerQuote `json:"quotes"`
}

// TickerQuote is the per-currency block inside a Ticker.
type TickerQuote struct {
	Price            Number `json:"price"`
	PercentChange24h Number `json:"percent_change_24h"`
	LastUpdated      string `json:"last_updated"`
}

// USD returns the USD quote block when it carries both numeric fields.
func (t Ticker) USD() (TickerQuote, bool) {
	q, ok := t.Quotes["USD"]
	if !ok || !q.Price.Valid || !q.PercentChange24h.Valid {
		return TickerQuote{}, false
	}
	return q, true
}

type paprikaSearchResponse struct {
	Currencies []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	} `json:"currencies"`
}

// DirectoryItem is a search or listing result enriched with market data
// when available.
type DirectoryItem struct {
	ID        string
	Symbol    string
	Name      string
	Image     string
	PriceUSD  decimal.NullDecimal
	Change24h decimal.NullDecimal
}
