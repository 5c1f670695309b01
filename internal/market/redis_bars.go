package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/hybridopt/internal/metrics"
	"github.com/ajitpratap0/hybridopt/pkg/backtest"
)

// DefaultBarCacheTTL bounds how stale a cached snapshot may be
const DefaultBarCacheTTL = 5 * time.Minute

const cacheOpTimeout = 500 * time.Millisecond

// RedisBarCache is a read-through cache in front of a BarSource.
// A nil client disables caching and every call goes to the source.
type RedisBarCache struct {
	client *redis.Client
	source BarSource
	key    string
	ttl    time.Duration
}

type barCacheEntry struct {
	Bars     []backtest.Bar `json:"bars"`
	CachedAt time.Time      `json:"cached_at"`
}

// NewRedisBarCache wraps source; name identifies the snapshot within the cache
func NewRedisBarCache(client *redis.Client, source BarSource, name string, ttl time.Duration) *RedisBarCache {
	if ttl <= 0 {
		ttl = DefaultBarCacheTTL
	}
	return &RedisBarCache{
		client: client,
		source: source,
		key:    buildKey(name),
		ttl:    ttl,
	}
}

// BarCacheName derives the cache name of a query
func BarCacheName(q BarQuery) string {
	q = q.withDefaults()
	return fmt.Sprintf("%s:%s:%d", q.Symbol, q.Interval, q.Limit)
}

// Bars returns the cached snapshot when present, otherwise loads and caches it
func (c *RedisBarCache) Bars(ctx context.Context) ([]backtest.Bar, error) {
	if bars, ok := c.get(ctx); ok {
		return bars, nil
	}

	bars, err := c.source.Bars(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.set(ctx, bars); err != nil {
		log.Warn().
			Err(err).
			Str("key", c.key).
			Msg("Failed to cache bars")
	}
	return bars, nil
}

func (c *RedisBarCache) get(ctx context.Context) ([]backtest.Bar, bool) {
	if c.client == nil {
		return nil, false
	}

	cacheCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	metrics.RecordRedisOperation("get")
	cached, err := c.client.Get(cacheCtx, c.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Debug().
				Err(err).
				Str("key", c.key).
				Msg("Redis get error - treating as cache miss")
		}
		metrics.RecordCacheLookup(false)
		return nil, false
	}

	var entry barCacheEntry
	if err := json.Unmarshal(cached, &entry); err != nil || len(entry.Bars) == 0 {
		log.Warn().
			Err(err).
			Str("key", c.key).
			Msg("Discarding unreadable cached bars")
		metrics.RecordCacheLookup(false)
		return nil, false
	}

	metrics.RecordCacheLookup(true)
	log.Debug().
		Str("key", c.key).
		Int("bars", len(entry.Bars)).
		Time("cached_at", entry.CachedAt).
		Msg("Cache hit for bars")
	return entry.Bars, true
}

func (c *RedisBarCache) set(ctx context.Context, bars []backtest.Bar) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(barCacheEntry{Bars: bars, CachedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal bars: %w", err)
	}

	cacheCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	metrics.RecordRedisOperation("set")
	return c.client.Set(cacheCtx, c.key, data, c.ttl).Err()
}

// Invalidate drops the cached snapshot
func (c *RedisBarCache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}

	cacheCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	metrics.RecordRedisOperation("del")
	if err := c.client.Del(cacheCtx, c.key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache key: %w", err)
	}
	return nil
}

// Health checks if the Redis connection is healthy
func (c *RedisBarCache) Health(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Ping(cacheCtx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

func buildKey(name string) string {
	return "hybridopt:bars:" + name
}
