package cache

import (
	"context"
	"errors"
	"time"
)

type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, key string) (bool, error)
	Stats(ctx context.Context) map[string]interface{}
	Health(ctx context.Context) error
	Close() error
}

// DefaultL1TTL bounds how long a process may serve an entry another process
// has already invalidated in the shared tier. Without a shared tier local
// entries keep their full TTL.
const DefaultL1TTL = 30 * time.Second

// MultiLevelCache keeps a short-lived process-local copy in front of an
// optional shared cache. Calls to the shared tier go through a circuit breaker.
type MultiLevelCache struct {
	l1      *MemoryCache
	l2      Cache
	l1TTL   time.Duration
	breaker *CircuitBreaker
	metrics *CacheMetrics
}

func NewMultiLevelCache(l2 Cache, breaker *CircuitBreaker) *MultiLevelCache {
	if breaker == nil {
		breaker = NewCircuitBreaker(nil)
	}
	return &MultiLevelCache{
		l1:      NewMemoryCache(),
		l2:      l2,
		l1TTL:   DefaultL1TTL,
		breaker: breaker,
		metrics: NewCacheMetrics(),
	}
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

func (c *MultiLevelCache) remote(fn func() error) error {
	if c.l2 == nil {
		return nil
	}
	err := c.breaker.Execute(fn)
	if err != nil {
		c.metrics.RecordError()
	}
	return err
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, c.localTTL(ttl)); err != nil {
		return err
	}
	c.metrics.RecordSet()

	return c.remote(func() error {
		return c.l2.Set(ctx, key, value, ttl)
	})
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

	missed := false
	err := c.remote(func() error {
		err := c.l2.Get(ctx, key, dest)
		if errors.Is(err, ErrCacheMiss) {
			missed = true
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	if missed {
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}

	c.metrics.RecordHit()
	c.l1.Set(ctx, key, dest, c.l1TTL)
	return nil
}

func (c *MultiLevelCache) Delete(ctx context.Context, key string) error {
	c.l1.Delete(ctx, key)
	c.metrics.RecordDelete()

	return c.remote(func() error {
		return c.l2.Delete(ctx, key)
	})
}

func (c *MultiLevelCache) DeletePattern(ctx context.Context, pattern string) error {
	if err := c.l1.DeletePattern(ctx, pattern); err != nil {
		return err
	}
	c.metrics.RecordDelete()

	return c.remote(func() error {
		return c.l2.DeletePattern(ctx, pattern)
	})
}

func (c *MultiLevelCache) Exists(ctx context.Context, key string) (bool, error) {
	if found, _ := c.l1.Exists(ctx, key); found {
		return true, nil
	}

	found := false
	err := c.remote(func() error {
		var err error
		found, err = c.l2.Exists(ctx, key)
		return err
	})
	return found, err
}

func (c *MultiLevelCache) Metrics() CacheMetrics {
	return c.metrics.GetStats()
}

func (c *MultiLevelCache) Stats(ctx context.Context) map[string]interface{} {
	stats := map[string]interface{}{
		"l1":       c.l1.Stats(ctx),
		"metrics":  c.metrics.GetStats(),
		"hit_rate": c.metrics.HitRate(),
		"breaker":  c.breaker.GetStats(),
	}

	if c.l2 != nil {
		stats["l2"] = c.l2.Stats(ctx)
	}

	return stats
}

func (c *MultiLevelCache) Health(ctx context.Context) error {
	if c.l2 != nil {
		return c.l2.Health(ctx)
	}
	return nil
}

func (c *MultiLevelCache) Close() error {
	c.l1.Close()
	if c.l2 != nil {
		return c.l2.Close()
	}
	return nil
}
