package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMemoryStoreSetGetExpires(t *testing.T) {
	store := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 50*time.Millisecond))

	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), value)

	time.Sleep(80 * time.Millisecond)

	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := newTestMemoryStore(t)
	ctx := context.Background()

	src := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", src, time.Minute))
	src[0] = 'x'

	value, _, _ := store.Get(ctx, "k")
	require.Equal(t, []byte("abc"), value)
	value[0] = 'y'

	again, _, _ := store.Get(ctx, "k")
	require.Equal(t, []byte("abc"), again)
}

func TestMemoryStoreIncrementFixedWindow(t *testing.T) {
	store := newTestMemoryStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, ttl, err := store.IncrementWithTTL(ctx, "rl", 60*time.Millisecond)
		require.NoError(t, err)
		require.Equal(t, want, count)
		require.Greater(t, ttl, time.Duration(0))
		require.LessOrEqual(t, ttl, 60*time.Millisecond)
	}

	time.Sleep(90 * time.Millisecond)

	count, _, err := store.IncrementWithTTL(ctx, "rl", 60*time.Millisecond)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))
	_, _, err := store.IncrementWithTTL(ctx, "b", time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "a", "b"))

	_, ok, _ := store.Get(ctx, "a")
	require.False(t, ok)
	count, _, _ := store.IncrementWithTTL(ctx, "b", time.Minute)
	require.EqualValues(t, 1, count)
	require.NoError(t, store.Ping(ctx))
}
