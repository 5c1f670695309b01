package market

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/hybridopt/pkg/backtest"
)

type countingSource struct {
	calls atomic.Int32
	bars  []backtest.Bar
	err   error
}

func (s *countingSource) Bars(ctx context.Context) ([]backtest.Bar, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.bars, nil
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func sampleBars() []backtest.Bar {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []backtest.Bar{
		{Timestamp: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Timestamp: ts.Add(time.Hour), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 12},
	}
}

func TestRedisBarCache_ReadThrough(t *testing.T) {
	mr, client := setupRedis(t)
	src := &countingSource{bars: sampleBars()}
	cache := NewRedisBarCache(client, src, "BTCUSDT:1h:1000", time.Minute)
	ctx := context.Background()

	first, err := cache.Bars(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.True(t, mr.Exists("hybridopt:bars:BTCUSDT:1h:1000"))

	second, err := cache.Bars(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load(), "second read should be served from cache")
	require.Len(t, second, len(first))
	assert.True(t, first[1].Timestamp.Equal(second[1].Timestamp))
	assert.Equal(t, first[1].Close, second[1].Close)

	mr.FastForward(2 * time.Minute)
	_, err = cache.Bars(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load(), "expired entry should reload")
}

func TestRedisBarCache_SourceErrorNotCached(t *testing.T) {
	mr, client := setupRedis(t)
	srcErr := errors.New("database down")
	src := &countingSource{err: srcErr}
	cache := NewRedisBarCache(client, src, "x", 0)

	_, err := cache.Bars(context.Background())
	assert.ErrorIs(t, err, srcErr)
	assert.False(t, mr.Exists("hybridopt:bars:x"))
	assert.Equal(t, DefaultBarCacheTTL, cache.ttl)
}

func TestRedisBarCache_CorruptEntry(t *testing.T) {
	mr, client := setupRedis(t)
	require.NoError(t, mr.Set("hybridopt:bars:x", "not json"))
	src := &countingSource{bars: sampleBars()}
	cache := NewRedisBarCache(client, src, "x", time.Minute)

	bars, err := cache.Bars(context.Background())
	require.NoError(t, err)
	assert.Len(t, bars, 2)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestRedisBarCache_Invalidate(t *testing.T) {
	mr, client := setupRedis(t)
	src := &countingSource{bars: sampleBars()}
	cache := NewRedisBarCache(client, src, "x", time.Minute)
	ctx := context.Background()

	_, err := cache.Bars(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx))
	assert.False(t, mr.Exists("hybridopt:bars:x"))

	_, err = cache.Bars(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestRedisBarCache_NilClient(t *testing.T) {
	src := &countingSource{bars: sampleBars()}
	cache := NewRedisBarCache(nil, src, "x", time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := cache.Bars(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), src.calls.Load())
	assert.NoError(t, cache.Invalidate(ctx))
	assert.Error(t, cache.Health(ctx))
}

func TestRedisBarCache_Health(t *testing.T) {
	mr, client := setupRedis(t)
	cache := NewRedisBarCache(client, &countingSource{}, "x", time.Minute)
	assert.NoError(t, cache.Health(context.Background()))

	mr.Close()
	assert.Error(t, cache.Health(context.Background()))
}

func TestBarCacheName(t *testing.T) {
	assert.Equal(t, "BTCUSDT:1h:1000", BarCacheName(BarQuery{Symbol: "BTCUSDT"}))
	assert.Equal(t, "ETHUSDT:4h:200", BarCacheName(BarQuery{Symbol: "ETHUSDT", Interval: "4h", Limit: 200}))
}
