package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisIncrementSetsTTLOnFirstHit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)
	ctx := context.Background()

	mock.ExpectIncr("aec:ratelimit:get_file:10.0.0.1:60").SetVal(1)
	mock.ExpectPExpire("aec:ratelimit:get_file:10.0.0.1:60", time.Minute).SetVal(true)
	mock.ExpectPTTL("aec:ratelimit:get_file:10.0.0.1:60").SetVal(time.Minute)

	count, ttl, err := store.IncrementWithTTL(ctx, "ratelimit:get_file:10.0.0.1:60", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)

	mock.ExpectIncr("aec:ratelimit:get_file:10.0.0.1:60").SetVal(2)
	mock.ExpectPTTL("aec:ratelimit:get_file:10.0.0.1:60").SetVal(42 * time.Second)

	count, ttl, err = store.IncrementWithTTL(ctx, "ratelimit:get_file:10.0.0.1:60", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, 42*time.Second, ttl)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisIncrementRestoresMissingExpiry(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)
	ctx := context.Background()
	key := "aec:ratelimit:get_file:10.0.0.1:60"

	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectPExpire(key, time.Minute).SetErr(errors.New("i/o timeout"))

	_, _, err := store.IncrementWithTTL(ctx, "ratelimit:get_file:10.0.0.1:60", time.Minute)
	require.Error(t, err)

	mock.ExpectIncr(key).SetVal(2)
	mock.ExpectPTTL(key).SetVal(time.Duration(-1))
	mock.ExpectPExpire(key, time.Minute).SetVal(true)

	count, ttl, err := store.IncrementWithTTL(ctx, "ratelimit:get_file:10.0.0.1:60", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, time.Minute, ttl)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisIncrementPropagatesErrors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	mock.ExpectIncr("aec:counter").SetErr(errors.New("connection refused"))

	_, _, err := store.IncrementWithTTL(context.Background(), "counter", time.Minute)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSetGetDelete(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)
	ctx := context.Background()

	body := []byte(`{"id":1}`)
	mock.ExpectSet("aec:cache:get_file:/api/v1/files/1", body, 5*time.Minute).SetVal("OK")
	mock.ExpectGet("aec:cache:get_file:/api/v1/files/1").SetVal(string(body))
	mock.ExpectGet("aec:cache:get_file:/api/v1/files/2").RedisNil()
	mock.ExpectDel("aec:cache:get_file:/api/v1/files/1").SetVal(1)

	require.NoError(t, store.Set(ctx, "cache:get_file:/api/v1/files/1", body, 5*time.Minute))

	value, ok, err := store.Get(ctx, "cache:get_file:/api/v1/files/1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, body, value)

	_, ok, err = store.Get(ctx, "cache:get_file:/api/v1/files/2")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Delete(ctx, "cache:get_file:/api/v1/files/1"))
	require.NoError(t, store.Delete(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPing(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	mock.ExpectPing().SetErr(errors.New("down"))
	require.Error(t, store.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
	require.NoError(t, store.Close())
}

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions(RedisConfig{URL: "redis://:secret@redis:6379/2"})
	require.NoError(t, err)
	require.Equal(t, "redis:6379", opts.Addr)
	require.Equal(t, "secret", opts.Password)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, defaultRedisTimeout, opts.DialTimeout)

	opts, err = redisOptions(RedisConfig{Address: "localhost:6379", TLS: true, Timeout: time.Second})
	require.NoError(t, err)
	require.NotNil(t, opts.TLSConfig)
	require.Equal(t, time.Second, opts.ReadTimeout)

	_, err = redisOptions(RedisConfig{})
	require.Error(t, err)
}

func TestNormalizeKey(t *testing.T) {
	store := NewRedisStore(nil)
	require.Equal(t, "aec:a:b", store.prefixed("a::b"))
	require.Equal(t, "aec:a", store.prefixed("aec:a"))
	require.Equal(t, "aec:a", store.prefixed(":a"))
}
