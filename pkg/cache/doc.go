/*
Package cache implements the daemon's process-local TTL cache: the
hottest-path memoization layer for fuzzy searches and info lookups of
popular packages.

	┌──────────────────── PROCESS TTL CACHE ────────────────────┐
	│  TTLCache                                                  │
	│    one bounded LRU (github.com/hashicorp/golang-lru) per   │
	│    CacheKind, capped at maxEntries (default 10,000)        │
	│    one golang.org/x/sync/singleflight.Group per kind for   │
	│    producer coalescing                                     │
	│                                                             │
	│  GetOrInsert(key, ttl, producer):                          │
	│    1. LRU hit + not expired  -> return cached value        │
	│    2. otherwise              -> singleflight.Do(producer)  │
	│       concurrent callers with the same key share one call  │
	└─────────────────────────────────────────────────────────────┘

Eviction is time-based first (an expired entry is treated as a miss and
replaced), then approximate-LRU once a kind's entry cap is reached.
*/
package cache
