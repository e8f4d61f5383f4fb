package metrics

import "sync/atomic"

// CacheMetric counts hits, misses and coalesced waits for a cache.
type CacheMetric struct {
	name      string
	hits      atomic.Int64
	misses    atomic.Int64
	coalesced atomic.Int64
}

func newCacheMetric(name string) *CacheMetric {
	return &CacheMetric{name: name}
}

// Hit records a cache hit.
func (c *CacheMetric) Hit() {
	if Enabled() {
		c.hits.Add(1)
	}
}

// Miss records a cache miss that went to the network.
func (c *CacheMetric) Miss() {
	if Enabled() {
		c.misses.Add(1)
	}
}

// Coalesced records a caller that shared another caller's in-flight fetch.
func (c *CacheMetric) Coalesced() {
	if Enabled() {
		c.coalesced.Add(1)
	}
}

// Reset zeroes all counters.
func (c *CacheMetric) Reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.coalesced.Store(0)
}

// Stats returns a snapshot.
func (c *CacheMetric) Stats() CacheStats {
	h, m := c.hits.Load(), c.misses.Load()
	var rate float64
	if h+m > 0 {
		rate = float64(h) / float64(h+m)
	}
	return CacheStats{
		Name:      c.name,
		Hits:      h,
		Misses:    m,
		Coalesced: c.coalesced.Load(),
		HitRate:   rate,
	}
}

// CacheStats is a snapshot of one CacheMetric.
type CacheStats struct {
	Name      string  `json:"name"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Coalesced int64   `json:"coalesced"`
	HitRate   float64 `json:"hit_rate"`
}

// EntityCache tracks the session entity store.
var EntityCache = newCacheMetric("entity_cache")

// AllCacheMetrics returns every registered cache metric.
func AllCacheMetrics() []*CacheMetric {
	return []*CacheMetric{EntityCache}
}

// Snapshot is the payload served at /debug/metrics.
type Snapshot struct {
	Timings []TimingStats `json:"timings"`
	Caches  []CacheStats  `json:"caches"`
}

// Collect gathers every metric into a Snapshot.
func Collect() Snapshot {
	s := Snapshot{Timings: AllTimingStats()}
	for _, c := range AllCacheMetrics() {
		s.Caches = append(s.Caches, c.Stats())
	}
	return s
}
