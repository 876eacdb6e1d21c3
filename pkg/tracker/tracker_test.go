package tracker

import (
	"sync"
	"testing"
	"time"
)

func TestTracker(t *testing.T) {
	tr := New()
	provider := "wikipedia"

	// Test Initial State
	stats := tr.Snapshot()
	if len(stats) != 0 {
		t.Errorf("Expected empty stats, got %d", len(stats))
	}

	// Test Tracking
	tr.TrackCacheHit(provider)
	tr.TrackCacheMiss(provider)
	tr.TrackSuccess(provider, 2048, 150*time.Millisecond)
	tr.TrackFailure(provider, 50*time.Millisecond)

	// Verify Snapshot
	stats = tr.Snapshot()
	pStats, ok := stats[provider]
	if !ok {
		t.Fatalf("Expected stats for provider %s", provider)
	}

	if pStats.CacheHits != 1 {
		t.Errorf("Expected 1 CacheHit, got %d", pStats.CacheHits)
	}
	if pStats.CacheMisses != 1 {
		t.Errorf("Expected 1 CacheMiss, got %d", pStats.CacheMisses)
	}
	if pStats.Success != 1 {
		t.Errorf("Expected 1 Success, got %d", pStats.Success)
	}
	if pStats.Failures != 1 {
		t.Errorf("Expected 1 Failure, got %d", pStats.Failures)
	}
	if pStats.BytesIn != 2048 {
		t.Errorf("Expected 2048 BytesIn, got %d", pStats.BytesIn)
	}
	if pStats.DurationMs != 200 {
		t.Errorf("Expected 200ms cumulative, got %d", pStats.DurationMs)
	}
}

func TestReset(t *testing.T) {
	tr := New()
	provider := "gemini"

	tr.TrackSuccess(provider, 100, 10*time.Millisecond)

	tr.Reset()

	stats := tr.Snapshot()
	s, ok := stats[provider]
	if !ok {
		t.Fatal("Post-Reset: Provider should still exist in map")
	}
	if s.Success != 0 || s.BytesIn != 0 || s.DurationMs != 0 {
		t.Errorf("Post-Reset: counters should be zero, got %+v", s)
	}
}

func TestConcurrentTracking(t *testing.T) {
	tr := New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.TrackSuccess("gemini", 1, time.Millisecond)
				tr.TrackCacheHit("wikipedia")
			}
		}()
	}
	wg.Wait()

	stats := tr.Snapshot()
	if stats["gemini"].Success != 1000 {
		t.Errorf("Expected 1000 successes, got %d", stats["gemini"].Success)
	}
	if stats["wikipedia"].CacheHits != 1000 {
		t.Errorf("Expected 1000 cache hits, got %d", stats["wikipedia"].CacheHits)
	}
}
