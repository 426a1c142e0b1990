package handler

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/cuemby/omg/pkg/types"
)

// cacheHash derives a PTC/PKV cache key hash from a request's
// canonical arguments (e.g. lower(query) and limit for a search key).
func cacheHash(parts ...string) string {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum64())
}

func searchCacheKey(query string, limit int) types.CacheKey {
	return types.CacheKey{Kind: types.CacheSearch, Hash: cacheHash(strings.ToLower(query), fmt.Sprint(limit))}
}

func infoCacheKey(name string) types.CacheKey {
	return types.CacheKey{Kind: types.CacheInfo, Hash: cacheHash(name)}
}

func updatesCacheKey() types.CacheKey {
	return types.CacheKey{Kind: types.CacheUpdates, Hash: "all"}
}

func completionCacheKey(prefix string, limit int) types.CacheKey {
	return types.CacheKey{Kind: types.CacheCompletion, Hash: cacheHash(strings.ToLower(prefix), fmt.Sprint(limit))}
}
