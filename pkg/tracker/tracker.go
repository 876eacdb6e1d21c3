package tracker

import (
	"sync"
	"sync/atomic"
	"time"
)

// Tracker tracks usage statistics per provider.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*ProviderStats
}

// ProviderStats holds metrics for a specific provider.
// Fields are accessed atomically.
type ProviderStats struct {
	CacheHits   int64
	CacheMisses int64
	Success     int64
	Failures    int64
	BytesIn     int64
	DurationMs  int64 // cumulative wall time spent in calls
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*ProviderStats),
	}
}

// getStats returns the stats object for a provider, creating it if needed.
func (t *Tracker) getStats(provider string) *ProviderStats {
	t.mu.RLock()
	s, ok := t.stats[provider]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double check
	if s, ok = t.stats[provider]; ok {
		return s
	}
	s = &ProviderStats{}
	t.stats[provider] = s
	return s
}

// TrackCacheHit increments the cache hit counter.
func (t *Tracker) TrackCacheHit(provider string) {
	atomic.AddInt64(&t.getStats(provider).CacheHits, 1)
}

func (t *Tracker) TrackCacheMiss(provider string) {
	atomic.AddInt64(&t.getStats(provider).CacheMisses, 1)
}

// TrackSuccess records a completed call with its payload size and duration.
func (t *Tracker) TrackSuccess(provider string, bytes int64, d time.Duration) {
	s := t.getStats(provider)
	atomic.AddInt64(&s.Success, 1)
	atomic.AddInt64(&s.BytesIn, bytes)
	atomic.AddInt64(&s.DurationMs, d.Milliseconds())
}

// TrackFailure records a failed call and the time spent on it.
func (t *Tracker) TrackFailure(provider string, d time.Duration) {
	s := t.getStats(provider)
	atomic.AddInt64(&s.Failures, 1)
	atomic.AddInt64(&s.DurationMs, d.Milliseconds())
}

// Reset zeroes all counters while keeping the provider entries.
func (t *Tracker) Reset() {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, s := range t.stats {
		atomic.StoreInt64(&s.CacheHits, 0)
		atomic.StoreInt64(&s.CacheMisses, 0)
		atomic.StoreInt64(&s.Success, 0)
		atomic.StoreInt64(&s.Failures, 0)
		atomic.StoreInt64(&s.BytesIn, 0)
		atomic.StoreInt64(&s.DurationMs, 0)
	}
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ProviderStats)
	for k, v := range t.stats {
		result[k] = ProviderStats{
			CacheHits:   atomic.LoadInt64(&v.CacheHits),
			CacheMisses: atomic.LoadInt64(&v.CacheMisses),
			Success:     atomic.LoadInt64(&v.Success),
			Failures:    atomic.LoadInt64(&v.Failures),
			BytesIn:     atomic.LoadInt64(&v.BytesIn),
			DurationMs:  atomic.LoadInt64(&v.DurationMs),
		}
	}
	return result
}
