package cache

import (
	"sync/atomic"
	"time"
)

// CacheMetrics counts cache traffic. The zero value is not usable; call
// NewCacheMetrics.
type CacheMetrics struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Errors  int64 `json:"errors"`
	Sets    int64 `json:"sets"`
	Deletes int64 `json:"deletes"`
	Since   int64 `json:"since"`
}

func NewCacheMetrics() *CacheMetrics {
	return &CacheMetrics{Since: time.Now().Unix()}
}

func (m *CacheMetrics) RecordHit()    { atomic.AddInt64(&m.Hits, 1) }
func (m *CacheMetrics) RecordMiss()   { atomic.AddInt64(&m.Misses, 1) }
func (m *CacheMetrics) RecordError()  { atomic.AddInt64(&m.Errors, 1) }
func (m *CacheMetrics) RecordSet()    { atomic.AddInt64(&m.Sets, 1) }
func (m *CacheMetrics) RecordDelete() { atomic.AddInt64(&m.Deletes, 1) }

// GetStats returns a consistent-enough copy for reporting.
func (m *CacheMetrics) GetStats() CacheMetrics {
	return CacheMetrics{
		Hits:    atomic.LoadInt64(&m.Hits),
		Misses:  atomic.LoadInt64(&m.Misses),
		Errors:  atomic.LoadInt64(&m.Errors),
		Sets:    atomic.LoadInt64(&m.Sets),
		Deletes: atomic.LoadInt64(&m.Deletes),
		Since:   atomic.LoadInt64(&m.Since),
	}
}

// HitRate is the percentage of lookups served from cache.
func (m *CacheMetrics) HitRate() float64 {
	hits := atomic.LoadInt64(&m.Hits)
	total := hits + atomic.LoadInt64(&m.Misses)
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

func (m *CacheMetrics) Reset() {
	for _, counter := range []*int64{&m.Hits, &m.Misses, &m.Errors, &m.Sets, &m.Deletes} {
		atomic.StoreInt64(counter, 0)
	}
	atomic.StoreInt64(&m.Since, time.Now().Unix())
}
