package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestCoingeckoSearchCoins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("query") != "eth" {
			t.Fatalf("query not forwarded: %s", r.URL.RawQuery)
		}
		if r.Header.Get("x-cg-demo-api-key") != "demo" {
			t.Fatalf("demo api key header missing")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"coins": []map[string]any{
				{"id": "ethereum", "symbol": "ETH", "name": "Ethereum", "market_cap_rank": 2},
				{"id": "ethereum-classic", "symbol": "ETC", "name": "Ethereum Classic"},
			},
		})
	}))
	defer srv.Close()

	cg := NewCoingecko(CoingeckoOptions{BaseURL: srv.URL, DemoAPIKey: "demo", Timeout: time.Second}, noopLogger())
	hits, err := cg.SearchCoins(context.Background(), " eth ")
	if err != nil {
		t.Fatalf("search should succeed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].MarketCapRank == nil || *hits[0].MarketCapRank != 2 {
		t.Fatalf("rank not decoded: %#v", hits[0])
	}
	if hits[1].MarketCapRank != nil {
		t.Fatalf("missing rank should decode as nil")
	}
}

func TestCoingeckoSearchEmptyQuery(t *testing.T) {
	cg := NewCoingecko(CoingeckoOptions{BaseURL: "http://127.0.0.1:1"}, noopLogger())
	if _, err := cg.SearchCoins(context.Background(), "   "); err == nil {
		t.Fatal("empty query should be rejected before any request")
	}
}

func TestCoingeckoMarketsMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") != "bitcoin,ethereum" {
			t.Fatalf("ids not joined: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":51000.5,"price_change_percentage_24h":-1.25},
			{"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":null}
		]`))
	}))
	defer srv.Close()

	cg := NewCoingecko(CoingeckoOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	rows, err := cg.Markets(context.Background(), []string{"bitcoin", "ethereum"})
	if err != nil {
		t.Fatalf("markets should succeed: %v", err)
	}
	if !rows[0].HasQuote() {
		t.Fatal("bitcoin row should carry a full quote")
	}
	if !rows[0].CurrentPrice.Decimal.Equal(decimal.RequireFromString("51000.5")) {
		t.Fatalf("unexpected price %s", rows[0].CurrentPrice.Decimal)
	}
	if rows[1].HasQuote() {
		t.Fatal("ethereum row lacks price and change")
	}
}

func TestCoingeckoMarketsRejectsQuotedNumbers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":"100","price_change_percentage_24h":1.5},
			{"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3100,"price_change_percentage_24h":true}
		]`))
	}))
	defer srv.Close()

	cg := NewCoingecko(CoingeckoOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	rows, err := cg.Markets(context.Background(), []string{"bitcoin", "ethereum"})
	if err != nil {
		t.Fatalf("markets should decode: %v", err)
	}
	if rows[0].HasQuote() {
		t.Fatal("string price must not count as a quote")
	}
	if rows[1].HasQuote() {
		t.Fatal("boolean change must not count as a quote")
	}
	if !rows[1].CurrentPrice.Valid {
		t.Fatal("numeric price should still decode")
	}
}

func TestCoingeckoHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	cg := NewCoingecko(CoingeckoOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := cg.Markets(context.Background(), []string{"bitcoin"})
	if err == nil {
		t.Fatal("HTTP 429 should return an error")
	}
	if IsNotFound(err) {
		t.Fatal("429 is not a not-found error")
	}
}

func TestCoingeckoTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cg := NewCoingecko(CoingeckoOptions{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, noopLogger())
	start := time.Now()
	if _, err := cg.SearchCoins(context.Background(), "btc"); err == nil {
		t.Fatal("slow upstream should time out")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("per-call timeout was not applied")
	}
}

func TestCoingeckoDirectoryFallsBackToBareHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			_, _ = w.Write([]byte(`{"coins":[{"id":"solana","symbol":"sol","name":"Solana","large":"sol.png"}]}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	cg := NewCoingecko(CoingeckoOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	items, err := cg.Directory(context.Background(), "sol")
	if err != nil {
		t.Fatalf("directory should degrade, not fail: %v", err)
	}
	if len(items) != 1 || items[0].Symbol != "SOL" || items[0].PriceUSD.Valid {
		t.Fatalf("unexpected items %#v", items)
	}
	if items[0].Image != "sol.png" {
		t.Fatalf("search image should be kept")
	}
}

func TestCoingeckoDirectoryPreservesSearchOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			_, _ = w.Write([]byte(`{"coins":[{"id":"b","symbol":"b","name":"B"},{"id":"a","symbol":"a","name":"A"}]}`))
		case "/coins/markets":
			_, _ = w.Write([]byte(`[
				{"id":"a","symbol":"a","name":"A","current_price":1,"price_change_percentage_24h":0},
				{"id":"b","symbol":"b","name":"B","current_price":2,"price_change_percentage_24h":0}
			]`))
		}
	}))
	defer srv.Close()

	cg := NewCoingecko(CoingeckoOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	items, err := cg.Directory(context.Background(), "x")
	if err != nil {
		t.Fatalf("directory failed: %v", err)
	}
	if items[0].ID != "b" || !items[0].PriceUSD.Decimal.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("search order or price lost: %#v", items)
	}
}
