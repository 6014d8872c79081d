package cache

import (
	"context"
	"errors"
	"log"
	"time"
)

const defaultL1TTL = 10 * time.Second

// MultiLevelCache layers an in-process cache (L1) over an optional Redis cache (L2).
// L2 calls go through a circuit breaker, so a Redis outage degrades to L1 only.
//
// Invalidation reaches only the L1 of the process that performs it, so with L2 enabled
// an L1 entry never outlives min(l1TTL, remaining L2 TTL). That bounds how long another
// process can serve a result its peer has already invalidated.
type MultiLevelCache struct {
	l1      *MemoryCache
	l2      *RedisCache
	breaker *CircuitBreaker
	metrics *CacheMetrics
	l1TTL   time.Duration
}

func NewMultiLevelCache(redisCache *RedisCache, breakerConfig *CircuitBreakerConfig) *MultiLevelCache {
	return &MultiLevelCache{
		l1:      NewMemoryCache(),
		l2:      redisCache,
		breaker: NewCircuitBreaker(breakerConfig),
		metrics: NewCacheMetrics(),
		l1TTL:   defaultL1TTL,
	}
}

// WithL1TTL caps how long entries stay in L1 when an L2 is configured.
func (c *MultiLevelCache) WithL1TTL(ttl time.Duration) *MultiLevelCache {
	if ttl > 0 {
		c.l1TTL = ttl
	}
	return c
}

func (c *MultiLevelCache) localTTL(ttl time.Duration) time.Duration {
	if c.l2 == nil {
		return ttl
	}
	if ttl <= 0 || ttl > c.l1TTL {
		return c.l1TTL
	}
	return ttl
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, c.localTTL(ttl)); err != nil {
		c.metrics.RecordError()
		return err
	}
	c.metrics.RecordSet()

	if c.l2 == nil {
		return nil
	}

	err := c.breaker.Execute(func() error {
		return c.l2.Set(ctx, key, value, ttl)
	})
	if err != nil {
		c.metrics.RecordError()
	}
	return err
}

func (c *MultiLevelCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := c.l1.Get(ctx, key, dest); err == nil {
		c.metrics.RecordHit()
		return nil
	}

	if c.l2 == nil {
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}

	var l2Err error
	err := c.breaker.Execute(func() error {
		l2Err = c.l2.Get(ctx, key, dest)
		if errors.Is(l2Err, ErrCacheMiss) {
			return nil
		}
		return l2Err
	})
	if err != nil {
		c.metrics.RecordError()
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}
	if l2Err != nil {
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}

	c.metrics.RecordHit()
	c.promote(ctx, key, dest)
	return nil
}

// promote copies an L2 hit into L1 for no longer than the entry has left in L2.
func (c *MultiLevelCache) promote(ctx context.Context, key string, value interface{}) {
	var (
		remaining time.Duration
		gone      bool
	)
	err := c.breaker.Execute(func() error {
		var ttlErr error
		remaining, ttlErr = c.l2.TTL(ctx, key)
		if errors.Is(ttlErr, ErrCacheMiss) {
			gone = true
			return nil
		}
		return ttlErr
	})
	if err != nil {
		c.metrics.RecordError()
		return
	}
	if gone {
		return
	}

	if err := c.l1.Set(ctx, key, value, c.localTTL(remaining)); err != nil {
		log.Printf("⚠️ Failed to promote %s to L1 cache: %v", key, err)
	}
}

func (c *MultiLevelCache) DeletePattern(ctx context.Context, pattern string) error {
	if err := c.l1.DeletePattern(ctx, pattern); err != nil {
		c.metrics.RecordError()
		return err
	}
	c.metrics.RecordDelete()

	if c.l2 == nil {
		return nil
	}

	err := c.breaker.Execute(func() error {
		return c.l2.DeletePattern(ctx, pattern)
	})
	if err != nil {
		c.metrics.RecordError()
	}
	return err
}

func (c *MultiLevelCache) Metrics() MetricsSnapshot {
	return c.metrics.Snapshot()
}

func (c *MultiLevelCache) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"l1":      c.l1.Stats(),
		"metrics": c.metrics.Snapshot(),
	}

	if c.l2 != nil {
		stats["l2"] = c.l2.Stats()
		stats["circuit_breaker"] = c.breaker.GetStats()
	}

	return stats
}

// Health reports ErrCacheDown while the L2 breaker is open; otherwise it pings Redis.
func (c *MultiLevelCache) Health(ctx context.Context) error {
	if c.l2 == nil {
		return nil
	}
	if c.breaker.GetState() == CircuitBreakerOpen {
		return ErrCacheDown
	}
	return c.l2.Health(ctx)
}

func (c *MultiLevelCache) Close() error {
	c.l1.Close()

	if c.l2 != nil {
		return c.l2.Close()
	}
	return nil
}
