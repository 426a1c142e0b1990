package cache

import (
	"sync"
	"time"

	"github.com/cuemby/omg/pkg/log"
	"github.com/cuemby/omg/pkg/types"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxEntriesPerKind is the hard per-kind entry cap.
const DefaultMaxEntriesPerKind = 10_000

type entry struct {
	value     []byte
	expiresAt time.Time
}

// kindCache pairs a bounded LRU with a single-flight group so concurrent
// misses for the same key coalesce onto one producer call.
type kindCache struct {
	lru *lru.Cache
	sf  singleflight.Group
}

// TTLCache is the daemon's process-local TTL cache: safe under
// parallel readers and writers, with producers run outside any
// structural lock.
type TTLCache struct {
	mu         sync.RWMutex
	kinds      map[types.CacheKind]*kindCache
	maxEntries int
	logger     zerolog.Logger
}

// New creates a TTLCache with the given per-kind entry cap. A cap of 0
// uses DefaultMaxEntriesPerKind.
func New(maxEntriesPerKind int) *TTLCache {
	if maxEntriesPerKind <= 0 {
		maxEntriesPerKind = DefaultMaxEntriesPerKind
	}
	return &TTLCache{
		kinds:      make(map[types.CacheKind]*kindCache),
		maxEntries: maxEntriesPerKind,
		logger:     log.WithComponent("cache"),
	}
}

func (c *TTLCache) kindFor(kind types.CacheKind) *kindCache {
	c.mu.RLock()
	kc, ok := c.kinds[kind]
	c.mu.RUnlock()
	if ok {
		return kc
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if kc, ok := c.kinds[kind]; ok {
		return kc
	}
	l, _ := lru.New(c.maxEntries)
	kc = &kindCache{lru: l}
	c.kinds[kind] = kc
	return kc
}

// GetOrInsert returns the cached value for key if present and unexpired;
// otherwise it invokes producer, with concurrent identical calls
// coalesced onto a single producer invocation.
func (c *TTLCache) GetOrInsert(key types.CacheKey, ttl time.Duration, producer func() ([]byte, error)) ([]byte, error) {
	kc := c.kindFor(key.Kind)

	if v, ok := kc.lru.Get(key.Hash); ok {
		e := v.(entry)
		if time.Now().Before(e.expiresAt) {
			return e.value, nil
		}
		kc.lru.Remove(key.Hash)
	}

	v, err, _ := kc.sf.Do(key.Hash, func() (interface{}, error) {
		value, err := producer()
		if err != nil {
			return nil, err
		}
		kc.lru.Add(key.Hash, entry{value: value, expiresAt: time.Now().Add(ttl)})
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Invalidate removes a single key from its kind's cache.
func (c *TTLCache) Invalidate(key types.CacheKey) {
	c.mu.RLock()
	kc, ok := c.kinds[key.Kind]
	c.mu.RUnlock()
	if !ok {
		return
	}
	kc.lru.Remove(key.Hash)
}

// InvalidateKind drops every cached entry for a whole CacheKind.
func (c *TTLCache) InvalidateKind(kind types.CacheKind) {
	c.mu.RLock()
	kc, ok := c.kinds[kind]
	c.mu.RUnlock()
	if !ok {
		return
	}
	kc.lru.Purge()
}

// Len reports the number of cached entries for kind, for tests and
// metrics.
func (c *TTLCache) Len(kind types.CacheKind) int {
	c.mu.RLock()
	kc, ok := c.kinds[kind]
	c.mu.RUnlock()
	if !ok {
		return 0
	}
	return kc.lru.Len()
}
