package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"coinwatch/internal/quote"
)

func TestTelegramSinkSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/bottoken/sendMessage") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	sink := NewTelegramSink("token", "chat", srv.URL, time.Second, testLogger())
	if err := sink.Show(context.Background(), "Bitcoin - alert triggered", "price ≥ $50000, now $51000.00"); err != nil {
		t.Fatalf("Show should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id mismatch: %#v", received)
	}
	if !strings.Contains(received["text"], "Bitcoin - alert triggered") {
		t.Fatalf("text should carry the title: %q", received["text"])
	}
}

func TestTelegramSinkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	sink := NewTelegramSink("token", "chat", srv.URL, time.Second, testLogger())
	if err := sink.Show(context.Background(), "t", "b"); err == nil {
		t.Fatal("ok=false should be an error")
	}
}

func TestRenderNotification(t *testing.T) {
	q := quote.Quote{CoinID: "bitcoin", Name: "Bitcoin", PriceUSD: decimal.RequireFromString("51000"), Change24h: decimal.RequireFromString("-6.5")}

	title, body := RenderNotification(Rule{CoinID: "bitcoin", Kind: PriceAtLeast, Threshold: decimal.NewFromInt(50000)}, q)
	if title != "Bitcoin - alert triggered" {
		t.Fatalf("unexpected title %q", title)
	}
	if body != "price ≥ $50000, now $51000.00" {
		t.Fatalf("unexpected body %q", body)
	}

	_, body = RenderNotification(Rule{CoinID: "bitcoin", Kind: Change24hAtMost, Threshold: decimal.NewFromInt(-5)}, q)
	if body != "24h change ≤ -5%, now -6.50%" {
		t.Fatalf("unexpected body %q", body)
	}

	title, _ = RenderNotification(Rule{CoinID: "bitcoin", Kind: PriceAtMost}, quote.Quote{})
	if title != "bitcoin - alert triggered" {
		t.Fatalf("title should fall back to coin id, got %q", title)
	}
}

type recordingSink struct {
	calls []string
	err   error
}

func (r *recordingSink) Show(_ context.Context, title, body string) error {
	r.calls = append(r.calls, title+"|"+body)
	return r.err
}

func TestMultiSinkDeliversToAllAndJoinsErrors(t *testing.T) {
	failing := &recordingSink{err: errors.New("boom")}
	ok := &recordingSink{}

	err := MultiSink{failing, ok}.Show(context.Background(), "t", "b")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(failing.calls) != 1 || len(ok.calls) != 1 {
		t.Fatalf("every sink should be called once: %v %v", failing.calls, ok.calls)
	}
}

func TestToggleSink(t *testing.T) {
	next := &recordingSink{}
	toggle := NewToggleSink(next)

	_ = toggle.Show(context.Background(), "a", "1")
	toggle.SetEnabled(false)
	_ = toggle.Show(context.Background(), "b", "2")
	toggle.SetEnabled(true)
	_ = toggle.Show(context.Background(), "c", "3")

	if len(next.calls) != 2 || next.calls[1] != "c|3" {
		t.Fatalf("disabled toggle should swallow notifications: %v", next.calls)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
