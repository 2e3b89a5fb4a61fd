package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCache is a process-local TTL map. Values are stored encoded so a
// caller mutating its copy never changes what others read.
type MemoryCache struct {
	mu         sync.RWMutex
	items      map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

func NewMemoryCache(maxEntries int) *MemoryCache {
	return &MemoryCache{
		items:      make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.RLock()
	entry, ok := m.items[key]
	m.mu.RUnlock()

	if !ok {
		return ErrCacheMiss
	}

	if entry.expired(m.now()) {
		m.mu.Lock()
		if cur, still := m.items[key]; still && cur.expired(m.now()) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return ErrCacheMiss
	}

	if err := json.Unmarshal(entry.data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}
	return nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[key]; !exists && m.maxEntries > 0 && len(m.items) >= m.maxEntries {
		m.evictLocked()
	}
	m.items[key] = entry
	return nil
}

// evictLocked drops expired entries, or an arbitrary one if none expired.
func (m *MemoryCache) evictLocked() {
	now := m.now()
	removed := false
	for k, e := range m.items {
		if e.expired(now) {
			delete(m.items, k)
			removed = true
		}
	}
	if removed {
		return
	}
	for k := range m.items {
		delete(m.items, k)
		return
	}
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func (m *MemoryCache) DeletePattern(_ context.Context, pattern string) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.items {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.items, k)
		}
	}
	return nil
}

func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryCache) Ping(context.Context) error {
	return nil
}

func (m *MemoryCache) Close() error {
	m.mu.Lock()
	m.items = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}
