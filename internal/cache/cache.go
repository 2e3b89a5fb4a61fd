// Package cache provides the read-through cache in front of the task store:
// an in-process L1, an optional Redis L2 and a circuit breaker between them.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrCacheDown = errors.New("cache unavailable")
)

// Cache stores JSON-serialisable values under string keys. Patterns use
// glob syntax where '*' matches any run of characters.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
	Ping(ctx context.Context) error
	Close() error
}
