package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"coinwatch/internal/alerting"
	"coinwatch/internal/config"
	"coinwatch/internal/quote"
	"coinwatch/internal/settings"
	"coinwatch/internal/storage"
)

var fakeQuotes = map[string]quote.Quote{
	"bitcoin":  {CoinID: "bitcoin", Symbol: "btc", Name: "Bitcoin", PriceUSD: decimal.NewFromInt(64000), Change24h: decimal.RequireFromString("2.5")},
	"ethereum": {CoinID: "ethereum", Symbol: "eth", Name: "Ethereum", PriceUSD: decimal.NewFromInt(3100), Change24h: decimal.RequireFromString("-6")},
}

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()

	cfg := &config.Config{
		Storage:   config.StorageConfig{Backend: config.BackendFile, FilePath: filepath.Join(t.TempDir(), "state.json")},
		Scheduler: config.SchedulerConfig{Interval: time.Minute},
		Cache:     config.CacheConfig{TTL: 30 * time.Second},
		Alerting:  config.AlertingConfig{Enabled: true, Channels: []string{"log"}},
		Ticker:    config.TickerConfig{Size: 3},
	}

	out := &bytes.Buffer{}
	a := &App{
		Config: cfg,
		Logger: zerolog.Nop(),
		Out:    out,
		QuoteSource: quote.SourceFunc(func(_ context.Context, id string) (quote.Quote, bool) {
			if id == "btc" {
				id = "bitcoin"
			}
			q, ok := fakeQuotes[id]
			q.ObservedAt = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
			return q, ok
		}),
	}
	return a, out
}

func openState(t *testing.T, a *App) storage.KVStore {
	t.Helper()
	kv, closer, err := storage.Open(context.Background(), a.Config.Storage)
	require.NoError(t, err)
	t.Cleanup(closer)
	return kv
}

func TestParseRuleRejectsBadInput(t *testing.T) {
	_, err := ParseRule(AlertInput{CoinID: "bitcoin", Kind: "price_between", Threshold: "1"})
	require.ErrorIs(t, err, alerting.ErrInvalidRule)

	_, err = ParseRule(AlertInput{CoinID: "bitcoin", Kind: "price_gte", Threshold: "lots"})
	require.ErrorIs(t, err, alerting.ErrInvalidRule)

	_, err = ParseRule(AlertInput{CoinID: " ", Kind: "price_gte", Threshold: "1"})
	require.ErrorIs(t, err, alerting.ErrInvalidRule)

	rule, err := ParseRule(AlertInput{CoinID: "bitcoin", Kind: "price_gte", Threshold: "50000.5"})
	require.NoError(t, err)
	require.Equal(t, alerting.PriceAtLeast, rule.Kind)
}

func TestAlertLifecycle(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t)

	rule, err := a.AddAlert(ctx, AlertInput{CoinID: "bitcoin", Kind: "price_at_least", Threshold: "50000"})
	require.NoError(t, err)
	require.Contains(t, out.String(), rule.ID)

	out.Reset()
	require.NoError(t, a.ListAlerts(ctx, "bitcoin"))
	require.Contains(t, out.String(), "price ≥ $50000")

	out.Reset()
	require.NoError(t, a.Check(ctx))
	require.Contains(t, out.String(), rule.ID)

	require.NoError(t, a.RemoveAlert(ctx, rule.ID))
	require.Error(t, a.RemoveAlert(ctx, rule.ID))

	out.Reset()
	require.NoError(t, a.ListAlerts(ctx, ""))
	require.Contains(t, out.String(), "no alert rules")
}

func TestWatchAddResolvesCanonicalCoin(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t)

	require.NoError(t, a.WatchAdd(ctx, "btc"))
	require.NoError(t, a.WatchAdd(ctx, "bitcoin"))
	require.Contains(t, out.String(), "already watched")
	require.ErrorIs(t, a.WatchAdd(ctx, "unknown-coin"), ErrNoQuote)

	out.Reset()
	require.NoError(t, a.WatchList(ctx))
	require.Contains(t, out.String(), "BTC")
	require.Contains(t, out.String(), "Bitcoin")

	require.NoError(t, a.WatchRemove(ctx, "bitcoin"))
	require.Error(t, a.WatchRemove(ctx, "bitcoin"))
}

func TestShowPrintsSnapshotAndBadge(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t)
	require.NoError(t, a.WatchAdd(ctx, "ethereum"))
	require.NoError(t, a.WatchAdd(ctx, "bitcoin"))

	out.Reset()
	require.NoError(t, a.Show(ctx, ShowOptions{Refresh: true}))
	require.Contains(t, out.String(), "$3100.00")
	require.Contains(t, out.String(), "-6.00%")
	require.Contains(t, out.String(), "badge: ↓! #dc2626")
}

func TestSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t)

	prefs, err := a.SetSetting(ctx, "refreshMode", "auto")
	require.NoError(t, err)
	require.Equal(t, settings.RefreshAuto, prefs.RefreshMode)

	_, err = a.SetSetting(ctx, "refreshMode", "hourly")
	require.ErrorIs(t, err, settings.ErrInvalidSetting)

	out.Reset()
	require.NoError(t, a.ShowSettings(ctx))
	require.Contains(t, out.String(), `"refreshMode": "auto"`)
}

func TestSimulateAlertLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t)

	rule, err := a.AddAlert(ctx, AlertInput{CoinID: "bitcoin", Kind: "price_at_most", Threshold: "30000"})
	require.NoError(t, err)

	triggered, err := a.SimulateAlert(ctx, SimulateOptions{CoinID: "bitcoin", PriceUSD: decimal.NewFromInt(25000)})
	require.NoError(t, err)
	require.Len(t, triggered, 1)
	require.Equal(t, rule.ID, triggered[0].ID)

	notified, err := alerting.NewRuleStore(openState(t, a)).Notified(ctx)
	require.NoError(t, err)
	require.Empty(t, notified)
}

func TestSimulateAlertRequiresChannels(t *testing.T) {
	a, _ := newTestApp(t)
	a.Config.Alerting.Enabled = false

	_, err := a.SimulateAlert(context.Background(), SimulateOptions{CoinID: "bitcoin"})
	require.Error(t, err)
}

func TestExportWritesCSVAndPNG(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t)
	require.NoError(t, a.WatchAdd(ctx, "bitcoin"))
	require.NoError(t, a.WatchAdd(ctx, "ethereum"))

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out", "snapshot.csv")
	pngPath := filepath.Join(dir, "out", "snapshot.png")
	require.NoError(t, a.Export(ctx, ExportOptions{CSVPath: csvPath, PNGPath: pngPath, Refresh: true}))

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, []string{"bitcoin", "BTC", "Bitcoin", "64000", "2.5", "2026-06-01T00:00:00Z"}, records[1])

	info, err := os.Stat(pngPath)
	require.NoError(t, err)
	require.Positive(t, info.Size())
}

func TestExportRequiresTarget(t *testing.T) {
	a, _ := newTestApp(t)
	require.Error(t, a.Export(context.Background(), ExportOptions{}))
}
