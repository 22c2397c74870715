package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"coinwatch/internal/quote"
	"coinwatch/internal/storage"
)

var evalNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// priceBoard serves quotes from a mutable map; coins without an entry are absent.
type priceBoard struct {
	mu     sync.Mutex
	prices map[string]quote.Quote
	calls  map[string]int
}

func newPriceBoard() *priceBoard {
	return &priceBoard{prices: map[string]quote.Quote{}, calls: map[string]int{}}
}

func (b *priceBoard) set(coin string, price, change string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[coin] = quote.Quote{
		CoinID:    coin,
		Name:      coin,
		PriceUSD:  decimal.RequireFromString(price),
		Change24h: decimal.RequireFromString(change),
	}
}

func (b *priceBoard) drop(coin string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.prices, coin)
}

func (b *priceBoard) Get(_ context.Context, id string) (quote.Quote, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[id]++
	q, ok := b.prices[id]
	return q, ok
}

type evalFixture struct {
	kv    *storage.MemoryStore
	store *RuleStore
	board *priceBoard
	sink  *recordingSink
	eval  *Evaluator
}

func newEvalFixture() *evalFixture {
	kv := storage.NewMemoryStore()
	store := NewRuleStore(kv)
	board := newPriceBoard()
	sink := &recordingSink{}
	eval := NewEvaluator(store, board, sink, EvaluatorOptions{Now: func() time.Time { return evalNow }}, testLogger())
	return &evalFixture{kv: kv, store: store, board: board, sink: sink, eval: eval}
}

func TestCheckAllNotifiesOncePerEpisode(t *testing.T) {
	ctx := context.Background()
	f := newEvalFixture()

	rule, err := f.store.Upsert(ctx, Rule{CoinID: "bitcoin", Kind: PriceAtLeast, Threshold: decimal.NewFromInt(50000)})
	require.NoError(t, err)

	f.board.set("bitcoin", "49000", "0")
	triggered, err := f.eval.CheckAll(ctx)
	require.NoError(t, err)
	require.Empty(t, triggered)
	require.Empty(t, f.sink.calls)

	f.board.set("bitcoin", "51000", "0")
	triggered, err = f.eval.CheckAll(ctx)
	require.NoError(t, err)
	require.Len(t, triggered, 1)
	require.Equal(t, rule.ID, triggered[0].ID)
	require.Len(t, f.sink.calls, 1)

	notified, err := f.store.Notified(ctx)
	require.NoError(t, err)
	require.Equal(t, evalNow.UnixMilli(), notified[rule.ID])

	f.board.set("bitcoin", "52000", "0")
	triggered, err = f.eval.CheckAll(ctx)
	require.NoError(t, err)
	require.Len(t, triggered, 1, "still triggered")
	require.Len(t, f.sink.calls, 1, "no second notification within the episode")

	f.board.set("bitcoin", "49500", "0")
	triggered, err = f.eval.CheckAll(ctx)
	require.NoError(t, err)
	require.Empty(t, triggered)
	notified, _ = f.store.Notified(ctx)
	require.NotContains(t, notified, rule.ID)

	f.board.set("bitcoin", "50500", "0")
	_, err = f.eval.CheckAll(ctx)
	require.NoError(t, err)
	require.Len(t, f.sink.calls, 2, "new episode notifies again")
}

func TestCheckAllRepeatedPassesNotifyOnce(t *testing.T) {
	ctx := context.Background()
	f := newEvalFixture()

	_, err := f.store.Upsert(ctx, Rule{CoinID: "ethereum", Kind: Change24hAtMost, Threshold: decimal.NewFromInt(-5)})
	require.NoError(t, err)
	f.board.set("ethereum", "2000", "-7.25")

	for i := 0; i < 5; i++ {
		triggered, err := f.eval.CheckAll(ctx)
		require.NoError(t, err)
		require.Len(t, triggered, 1)
	}
	require.Len(t, f.sink.calls, 1)
}

func TestCheckAllUnavailablePriceRearms(t *testing.T) {
	ctx := context.Background()
	f := newEvalFixture()

	rule, err := f.store.Upsert(ctx, Rule{CoinID: "solana", Kind: PriceAtMost, Threshold: decimal.NewFromInt(100)})
	require.NoError(t, err)

	f.board.set("solana", "90", "0")
	_, err = f.eval.CheckAll(ctx)
	require.NoError(t, err)
	require.Len(t, f.sink.calls, 1)

	f.board.drop("solana")
	triggered, err := f.eval.CheckAll(ctx)
	require.NoError(t, err)
	require.Empty(t, triggered, "unknown price never triggers")
	notified, _ := f.store.Notified(ctx)
	require.NotContains(t, notified, rule.ID)

	f.board.set("solana", "95", "0")
	_, err = f.eval.CheckAll(ctx)
	require.NoError(t, err)
	require.Len(t, f.sink.calls, 2)
}

func TestCheckAllResolvesEachCoinOnce(t *testing.T) {
	ctx := context.Background()
	f := newEvalFixture()

	for _, threshold := range []int64{10, 20, 30} {
		_, err := f.store.Upsert(ctx, Rule{CoinID: "dogecoin", Kind: PriceAtLeast, Threshold: decimal.NewFromInt(threshold)})
		require.NoError(t, err)
	}
	f.board.set("dogecoin", "25", "0")

	triggered, err := f.eval.CheckAll(ctx)
	require.NoError(t, err)
	require.Len(t, triggered, 2)
	require.Equal(t, 1, f.board.calls["dogecoin"])
}

func TestCheckAllNoRules(t *testing.T) {
	f := newEvalFixture()

	triggered, err := f.eval.CheckAll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, triggered)
	require.Empty(t, triggered)
}

func TestCheckAllSinkFailureStillMarksNotified(t *testing.T) {
	ctx := context.Background()
	f := newEvalFixture()
	f.sink.err = errors.New("display unavailable")

	rule, err := f.store.Upsert(ctx, Rule{CoinID: "bitcoin", Kind: PriceAtLeast, Threshold: decimal.NewFromInt(1)})
	require.NoError(t, err)
	f.board.set("bitcoin", "2", "0")

	triggered, err := f.eval.CheckAll(ctx)
	require.NoError(t, err)
	require.Len(t, triggered, 1)

	notified, _ := f.store.Notified(ctx)
	require.Contains(t, notified, rule.ID)
}

func TestCheckAllWithoutSinkTracksState(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	store := NewRuleStore(kv)
	board := newPriceBoard()
	eval := NewEvaluator(store, board, nil, EvaluatorOptions{}, testLogger())

	rule, err := store.Upsert(ctx, Rule{CoinID: "bitcoin", Kind: PriceAtLeast, Threshold: decimal.NewFromInt(1)})
	require.NoError(t, err)
	board.set("bitcoin", "2", "0")

	_, err = eval.CheckAll(ctx)
	require.NoError(t, err)
	notified, _ := store.Notified(ctx)
	require.Contains(t, notified, rule.ID)
}

type failingKV struct{ err error }

func (f failingKV) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingKV) Set(context.Context, string, []byte) error   { return f.err }

func TestCheckAllSurfacesStorageErrors(t *testing.T) {
	store := NewRuleStore(failingKV{err: errors.New("disk gone")})
	eval := NewEvaluator(store, newPriceBoard(), nil, EvaluatorOptions{}, testLogger())

	_, err := eval.CheckAll(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk gone")
}
