package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/omg/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_GetOrInsert_CachesValue(t *testing.T) {
	c := New(10)
	key := types.CacheKey{Kind: types.CacheInfo, Hash: "bash"}

	calls := int32(0)
	producer := func() ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("bash-info"), nil
	}

	v, err := c.GetOrInsert(key, time.Minute, producer)
	require.NoError(t, err)
	assert.Equal(t, []byte("bash-info"), v)

	v, err = c.GetOrInsert(key, time.Minute, producer)
	require.NoError(t, err)
	assert.Equal(t, []byte("bash-info"), v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTTLCache_SingleFlight_CoalescesConcurrentProducers(t *testing.T) {
	c := New(10)
	key := types.CacheKey{Kind: types.CacheSearch, Hash: "fire"}

	calls := int32(0)
	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := c.GetOrInsert(key, time.Minute, func() ([]byte, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(5 * time.Millisecond)
				return []byte("result"), nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTTLCache_ExpiredEntryRefetches(t *testing.T) {
	c := New(10)
	key := types.CacheKey{Kind: types.CacheInfo, Hash: "vim"}

	calls := int32(0)
	producer := func() ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("vim-info"), nil
	}

	_, err := c.GetOrInsert(key, time.Millisecond, producer)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = c.GetOrInsert(key, time.Minute, producer)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTTLCache_Invalidate(t *testing.T) {
	c := New(10)
	key := types.CacheKey{Kind: types.CacheInfo, Hash: "htop"}

	_, err := c.GetOrInsert(key, time.Minute, func() ([]byte, error) {
		return []byte("v1"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len(types.CacheInfo))

	c.Invalidate(key)
	assert.Equal(t, 0, c.Len(types.CacheInfo))
}

func TestTTLCache_InvalidateKind(t *testing.T) {
	c := New(10)
	producer := func() ([]byte, error) { return []byte("v"), nil }

	_, _ = c.GetOrInsert(types.CacheKey{Kind: types.CacheSearch, Hash: "a"}, time.Minute, producer)
	_, _ = c.GetOrInsert(types.CacheKey{Kind: types.CacheSearch, Hash: "b"}, time.Minute, producer)
	assert.Equal(t, 2, c.Len(types.CacheSearch))

	c.InvalidateKind(types.CacheSearch)
	assert.Equal(t, 0, c.Len(types.CacheSearch))
}

func TestTTLCache_ProducerError_NotCached(t *testing.T) {
	c := New(10)
	key := types.CacheKey{Kind: types.CacheUpdates, Hash: "x"}

	_, err := c.GetOrInsert(key, time.Minute, func() ([]byte, error) {
		return nil, assertErr
	})
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len(types.CacheUpdates))
}

var assertErr = assertError("producer failed")

type assertError string

func (e assertError) Error() string { return string(e) }
