package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"coinwatch/internal/storage"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	got, err := NewStore(storage.NewMemoryStore()).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, Defaults(), got)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, Key, []byte(`{"refreshMode":"auto","refreshIntervalMinutes":0,"notifications":{"enableBadge":false,"throttleMinutes":-3}}`)))

	got, err := NewStore(kv).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, RefreshAuto, got.RefreshMode)
	require.Equal(t, 5, got.RefreshIntervalMinutes, "non-positive interval falls back to default")
	require.Equal(t, "USD", got.Currency)
	require.False(t, got.Notifications.EnableBadge)
	require.True(t, got.Notifications.EnableDesktop, "unset nested fields keep defaults")
	require.Zero(t, got.Notifications.ThrottleMinutes)
}

func TestLoadMalformedReadsDefaults(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, Key, []byte(`{"refreshMode":"auto",`)))

	got, err := NewStore(kv).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, Defaults(), got)
}

func TestSetConvertsAndPersists(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewMemoryStore())

	_, err := store.Set(ctx, "refreshMode", "auto")
	require.NoError(t, err)
	_, err = store.Set(ctx, "refreshIntervalMinutes", "15")
	require.NoError(t, err)
	_, err = store.Set(ctx, "notifications.enableDesktop", "false")
	require.NoError(t, err)
	_, err = store.Set(ctx, "currency", "eur")
	require.NoError(t, err)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, RefreshAuto, got.RefreshMode)
	require.Equal(t, 15*time.Minute, got.RefreshInterval())
	require.False(t, got.Notifications.EnableDesktop)
	require.Equal(t, "EUR", got.Currency)
}

func TestSetRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewMemoryStore())

	_, err := store.Set(ctx, "refreshMode", "sometimes")
	require.ErrorIs(t, err, ErrInvalidSetting)

	_, err = store.Set(ctx, "colour", "blue")
	require.ErrorIs(t, err, ErrInvalidSetting)

	_, err = store.Set(ctx, "notifications.throttleMinutes", "soon")
	require.ErrorIs(t, err, ErrInvalidSetting)

	_, err = store.Set(ctx, "a.b.c", "1")
	require.ErrorIs(t, err, ErrInvalidSetting)

	got, _ := store.Load(ctx)
	require.Equal(t, Defaults(), got)
}

func TestRefreshIntervalFloor(t *testing.T) {
	require.Equal(t, time.Minute, Settings{RefreshIntervalMinutes: 0}.RefreshInterval())
	require.Equal(t, 5*time.Minute, Defaults().RefreshInterval())
}
