package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"taskflow/backend/internal/logger"
)

type MultiLevelConfig struct {
	// L1TTL caps how long an entry lives in process memory, so instances
	// sharing the L2 converge after another instance invalidates.
	L1TTL        time.Duration
	L1MaxEntries int
	Breaker      *CircuitBreakerConfig
}

func DefaultMultiLevelConfig() *MultiLevelConfig {
	return &MultiLevelConfig{
		L1TTL:        time.Minute,
		L1MaxEntries: 10000,
		Breaker:      DefaultCircuitBreakerConfig(),
	}
}

// MultiLevelCache reads L1 first, then L2. L2 calls go through a circuit
// breaker; while it is open the cache behaves as L1 only.
//
// Invalidations that cannot reach L2 are kept as pending and replayed
// before L2 is read or written again, so entries deleted during an outage
// are never served once L2 comes back.
type MultiLevelCache struct {
	l1      *MemoryCache
	l2      Cache
	breaker *CircuitBreaker
	metrics *CacheMetrics
	l1TTL   time.Duration

	pendingMu       sync.Mutex
	pendingKeys     map[string]struct{}
	pendingPatterns map[string]struct{}
	dirty           atomic.Bool
}

// NewMultiLevelCache builds the cache. l2 may be nil.
func NewMultiLevelCache(l2 Cache, config *MultiLevelConfig, metrics *CacheMetrics) *MultiLevelCache {
	if config == nil {
		config = DefaultMultiLevelConfig()
	}
	if metrics == nil {
		metrics = NewCacheMetrics(nil)
	}

	breakerConfig := *DefaultCircuitBreakerConfig()
	if config.Breaker != nil {
		breakerConfig = *config.Breaker
	}
	if breakerConfig.OnStateChange == nil {
		breakerConfig.OnStateChange = func(from, to CircuitBreakerState) {
			l := logger.Get()
			l.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("cache L2 circuit breaker state changed")
		}
	}

	return &MultiLevelCache{
		l1:      NewMemoryCache(config.L1MaxEntries),
		l2:      l2,
		breaker: NewCircuitBreaker(&breakerConfig),
		metrics: metrics,
		l1TTL:   config.L1TTL,

		pendingKeys:     make(map[string]struct{}),
		pendingPatterns: make(map[string]struct{}),
	}
}

func (c *MultiLevelCache) l1Expiry(ttl time.Duration) time.Duration {
	if c.l1TTL > 0 && (ttl <= 0 || ttl > c.l1TTL) {
		return c.l1TTL
	}
	return ttl
}

func (c *MultiLevelCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := c.l1.Get(ctx, key, dest); err == nil {
		c.metrics.RecordHit("l1")
		return nil
	}

	if c.l2 == nil || !c.replayInvalidations(ctx) {
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}

	err := c.breaker.Execute(func() error {
		return c.l2.Get(ctx, key, dest)
	})
	switch {
	case err == nil:
		c.metrics.RecordHit("l2")
		_ = c.l1.Set(ctx, key, dest, c.l1TTL)
		return nil
	case errors.Is(err, ErrCacheMiss):
		c.metrics.RecordMiss()
		return ErrCacheMiss
	case errors.Is(err, ErrCircuitBreakerOpen):
		c.metrics.RecordMiss()
		return ErrCacheMiss
	default:
		c.metrics.RecordError("l2")
		return fmt.Errorf("%w: %v", ErrCacheDown, err)
	}
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, c.l1Expiry(ttl)); err != nil {
		c.metrics.RecordError("l1")
		return err
	}
	c.metrics.RecordSet()

	if c.l2 == nil || !c.replayInvalidations(ctx) {
		return nil
	}
	return c.onL2(func() error { return c.l2.Set(ctx, key, value, ttl) })
}

func (c *MultiLevelCache) Delete(ctx context.Context, keys ...string) error {
	_ = c.l1.Delete(ctx, keys...)
	c.metrics.RecordDelete()

	if c.l2 == nil {
		return nil
	}
	return c.invalidateL2(func() error { return c.l2.Delete(ctx, keys...) }, keys, "")
}

func (c *MultiLevelCache) DeletePattern(ctx context.Context, pattern string) error {
	if err := c.l1.DeletePattern(ctx, pattern); err != nil {
		return err
	}
	c.metrics.RecordDelete()

	if c.l2 == nil {
		return nil
	}
	return c.invalidateL2(func() error { return c.l2.DeletePattern(ctx, pattern) }, nil, pattern)
}

// invalidateL2 runs an L2 deletion and remembers it when L2 could not
// apply it.
func (c *MultiLevelCache) invalidateL2(fn func() error, keys []string, pattern string) error {
	err := c.breaker.Execute(fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCircuitBreakerOpen):
		c.markPending(keys, pattern)
		return nil
	default:
		c.markPending(keys, pattern)
		c.metrics.RecordError("l2")
		return fmt.Errorf("%w: %v", ErrCacheDown, err)
	}
}

func (c *MultiLevelCache) onL2(fn func() error) error {
	err := c.breaker.Execute(fn)
	if err == nil || errors.Is(err, ErrCircuitBreakerOpen) {
		return nil
	}

	c.metrics.RecordError("l2")
	return fmt.Errorf("%w: %v", ErrCacheDown, err)
}

func (c *MultiLevelCache) markPending(keys []string, pattern string) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	for _, k := range keys {
		c.pendingKeys[k] = struct{}{}
	}
	if pattern != "" {
		c.pendingPatterns[pattern] = struct{}{}
	}
	c.dirty.Store(true)
}

// replayInvalidations pushes pending deletions to L2 and reports whether
// L2 is safe to use. It returns false while anything is still pending.
func (c *MultiLevelCache) replayInvalidations(ctx context.Context) bool {
	if !c.dirty.Load() {
		return true
	}

	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if len(c.pendingKeys) > 0 {
		keys := make([]string, 0, len(c.pendingKeys))
		for k := range c.pendingKeys {
			keys = append(keys, k)
		}
		if err := c.breaker.Execute(func() error { return c.l2.Delete(ctx, keys...) }); err != nil {
			return false
		}
		c.pendingKeys = make(map[string]struct{})
	}

	for pattern := range c.pendingPatterns {
		if err := c.breaker.Execute(func() error { return c.l2.DeletePattern(ctx, pattern) }); err != nil {
			return false
		}
		delete(c.pendingPatterns, pattern)
	}

	c.dirty.Store(false)
	l := logger.FromContext(ctx)
	l.Info().Msg("replayed pending cache L2 invalidations")
	return true
}

// Ping reports L2 reachability; a cache without L2 is always healthy.
func (c *MultiLevelCache) Ping(ctx context.Context) error {
	if c.l2 == nil {
		return nil
	}
	return c.l2.Ping(ctx)
}

func (c *MultiLevelCache) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"l1_entries": c.l1.Len(),
		"metrics":    c.metrics.Snapshot(),
	}

	if c.l2 != nil {
		stats["l2_breaker"] = c.breaker.GetStats()

		c.pendingMu.Lock()
		stats["l2_pending_invalidations"] = len(c.pendingKeys) + len(c.pendingPatterns)
		c.pendingMu.Unlock()
	}
	if r, ok := c.l2.(*RedisCache); ok {
		stats["l2_pool"] = r.Stats()
	}

	return stats
}

func (c *MultiLevelCache) Close() error {
	_ = c.l1.Close()

	if c.l2 != nil {
		return c.l2.Close()
	}
	return nil
}
