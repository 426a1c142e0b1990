package metrics

import (
	"time"

	"github.com/cuemby/omg/pkg/cache"
	"github.com/cuemby/omg/pkg/types"
)

// indexCounter is the part of *index.Index the collector samples. Using
// an interface keeps this package from importing pkg/index, which
// imports pkg/backend, which imports this package.
type indexCounter interface {
	Counts() (total, installed, explicit int)
}

// Collector periodically samples gauges that have no natural call site
// of their own: index size and per-kind cache occupancy.
type Collector struct {
	idx    indexCounter
	cache  *cache.TTLCache
	stopCh chan struct{}
}

// NewCollector creates a metrics collector over a running index and
// cache. cache may be nil if the daemon was started without one.
func NewCollector(idx indexCounter, c *cache.TTLCache) *Collector {
	return &Collector{
		idx:    idx,
		cache:  c,
		stopCh: make(chan struct{}),
	}
}

// Start begins periodic sampling.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts periodic sampling.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if c.idx != nil {
		total, _, _ := c.idx.Counts()
		IndexPackagesTotal.Set(float64(total))
	}
	if c.cache != nil {
		for _, kind := range []types.CacheKind{types.CacheSearch, types.CacheInfo, types.CacheUpdates, types.CacheCompletion} {
			CacheEntriesTotal.WithLabelValues(string(kind)).Set(float64(c.cache.Len(kind)))
		}
	}
}
