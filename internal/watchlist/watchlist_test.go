package watchlist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"coinwatch/internal/storage"
)

func TestAddDedupesAndKeepsOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewMemoryStore())

	changed, err := store.Add(ctx, Coin{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"})
	require.NoError(t, err)
	require.True(t, changed)

	_, err = store.Add(ctx, Coin{ID: "ethereum", Symbol: "eth", Name: "Ethereum"})
	require.NoError(t, err)

	changed, err = store.Add(ctx, Coin{ID: "bitcoin", Symbol: "BTC", Name: "dup"})
	require.NoError(t, err)
	require.False(t, changed)

	coins, err := store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"bitcoin", "ethereum"}, []string{coins[0].ID, coins[1].ID})
	require.Equal(t, "Bitcoin", coins[0].Name, "first entry wins")
}

func TestAddRejectsEmptyID(t *testing.T) {
	_, err := NewStore(storage.NewMemoryStore()).Add(context.Background(), Coin{ID: "  ", Symbol: "x"})
	require.ErrorIs(t, err, ErrInvalidCoin)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewMemoryStore())
	_, _ = store.Add(ctx, Coin{ID: "bitcoin"})
	_, _ = store.Add(ctx, Coin{ID: "solana"})

	changed, err := store.Remove(ctx, "bitcoin")
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = store.Remove(ctx, "bitcoin")
	require.NoError(t, err)
	require.False(t, changed)

	coins, _ := store.List(ctx)
	require.Len(t, coins, 1)
	require.Equal(t, "solana", coins[0].ID)
}

func TestListToleratesMalformed(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, Key, []byte(`"oops"`)))

	coins, err := NewStore(kv).List(ctx)
	require.NoError(t, err)
	require.Empty(t, coins)
}

func TestIdentifierFallsBackToSymbol(t *testing.T) {
	require.Equal(t, "bitcoin", Coin{ID: "bitcoin", Symbol: "btc"}.Identifier())
	require.Equal(t, "btc", Coin{Symbol: "btc"}.Identifier())
}
