package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CacheService is an in-memory TTL cache. Concurrent misses for the same key
// are collapsed into a single load.
type CacheService struct {
	mu    sync.RWMutex
	cache map[string]cacheEntry
	group singleflight.Group
	now   func() time.Time
}

type cacheEntry struct {
	data      interface{}
	expiresAt time.Time
}

// NewCacheService creates a new cache service.
func NewCacheService() *CacheService {
	return &CacheService{
		cache: make(map[string]cacheEntry),
		now:   time.Now,
	}
}

// Get retrieves a value from cache.
func (cs *CacheService) Get(key string) (interface{}, bool) {
	cs.mu.RLock()
	entry, exists := cs.cache[key]
	cs.mu.RUnlock()

	if !exists || cs.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

// Set stores a value in cache with TTL.
func (cs *CacheService) Set(key string, value interface{}, ttl time.Duration) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.cache[key] = cacheEntry{data: value, expiresAt: cs.now().Add(ttl)}
}

// Delete removes a key from cache.
func (cs *CacheService) Delete(key string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	delete(cs.cache, key)
}

// InvalidateByPrefix removes all keys with the given prefix.
func (cs *CacheService) InvalidateByPrefix(prefix string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for key := range cs.cache {
		if strings.HasPrefix(key, prefix) {
			delete(cs.cache, key)
		}
	}
}

// GetOrSet retrieves a value from cache or computes it if not found.
// Errors are not cached.
func (cs *CacheService) GetOrSet(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fn func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	if value, found := cs.Get(key); found {
		return value, nil
	}

	value, err, _ := cs.group.Do(key, func() (interface{}, error) {
		if value, found := cs.Get(key); found {
			return value, nil
		}
		value, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		cs.Set(key, value, ttl)
		return value, nil
	})
	return value, err
}
