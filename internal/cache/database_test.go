package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aecdata/pipeline/internal/database/testutil"
	"github.com/aecdata/pipeline/internal/models"
)

func TestDatabaseStoreRoundTrip(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Set(ctx, "cache:stats:/api/v1/projects/p1/stats", []byte(`{"file_count":2}`), time.Minute))

	value, ok, err := store.Get(ctx, "cache:stats:/api/v1/projects/p1/stats")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"file_count":2}`, string(value))

	// Upsert replaces the value.
	require.NoError(t, store.Set(ctx, "cache:stats:/api/v1/projects/p1/stats", []byte(`{"file_count":3}`), time.Minute))
	value, _, err = store.Get(ctx, "cache:stats:/api/v1/projects/p1/stats")
	require.NoError(t, err)
	require.JSONEq(t, `{"file_count":3}`, string(value))

	require.NoError(t, store.Delete(ctx, "cache:stats:/api/v1/projects/p1/stats"))
	_, ok, err = store.Get(ctx, "cache:stats:/api/v1/projects/p1/stats")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStoreExpiredEntryIsMiss(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStoreIncrementKeepsWindow(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	count, first, err := store.IncrementWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	count, second, err := store.IncrementWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.LessOrEqual(t, second, first)
}

func TestNilDatabaseStore(t *testing.T) {
	require.Nil(t, NewDatabaseStore(nil))

	var store *DatabaseStore
	_, _, err := store.Get(context.Background(), "k")
	require.Error(t, err)
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, db.Create(&models.CacheEntry{Key: "stale", Value: []byte("1"), ExpiresAt: now.Add(-time.Hour)}).Error)
	require.NoError(t, db.Create(&models.CacheEntry{Key: "fresh", Value: []byte("1"), ExpiresAt: now.Add(time.Hour)}).Error)
	require.NoError(t, db.Create(&models.CacheEntry{Key: "forever", Value: []byte("1")}).Error)

	removed, err := store.PurgeExpired(context.Background(), now)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var keys []string
	require.NoError(t, db.Model(&models.CacheEntry{}).Order("key").Pluck("key", &keys).Error)
	require.Equal(t, []string{"forever", "fresh"}, keys)
}

func TestDatabaseStoreCounterRestartsAfterWindow(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		count, ttl, err := store.IncrementWithTTL(ctx, "ratelimit:get_file:10.0.0.1:60", time.Minute)
		require.NoError(t, err)
		require.EqualValues(t, i, count)
		require.Equal(t, time.Minute, ttl)
	}

	now = now.Add(61 * time.Second)
	count, ttl, err := store.IncrementWithTTL(ctx, "ratelimit:get_file:10.0.0.1:60", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)

	var rows int64
	require.NoError(t, db.Model(&models.RateCounter{}).Count(&rows).Error)
	require.EqualValues(t, 1, rows)
}

func TestDatabaseStorePurgeDropsClosedCounters(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, _, err := store.IncrementWithTTL(ctx, "short", time.Second)
	require.NoError(t, err)
	_, _, err = store.IncrementWithTTL(ctx, "long", time.Hour)
	require.NoError(t, err)

	removed, err := store.PurgeExpired(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var keys []string
	require.NoError(t, db.Model(&models.RateCounter{}).Pluck("key", &keys).Error)
	require.Equal(t, []string{"long"}, keys)
}

func TestDatabaseStoreDeleteClearsCounters(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	count, _, err := store.IncrementWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	require.NoError(t, store.Delete(ctx, "rl"))
	count, _, err = store.IncrementWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}
