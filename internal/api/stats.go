package api

import (
	"net/http"
	"runtime"
	"sync"

	"github.com/NagiElgarhi/view-tours/pkg/tracker"
)

// StatsHandler reports per-provider request counters and process
// diagnostics for the stats panel.
type StatsHandler struct {
	tracker     *tracker.Tracker
	llmFallback []string

	mu     sync.Mutex
	maxMem uint64
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(t *tracker.Tracker, fallback []string) *StatsHandler {
	return &StatsHandler{tracker: t, llmFallback: fallback}
}

// ProviderStatsDTO is the wire shape of one provider's counters.
type ProviderStatsDTO struct {
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	Successes   int64 `json:"successes"`
	Failures    int64 `json:"failures"`
	BytesIn     int64 `json:"bytes_in"`
	HitRate     int64 `json:"hit_rate"`
	AvgMillis   int64 `json:"avg_ms"`
}

// ProcessStats is a coarse view of the server process.
type ProcessStats struct {
	MemoryMB    uint64 `json:"memory_mb"`
	MemoryMaxMB uint64 `json:"memory_max_mb"`
	Goroutines  int    `json:"goroutines"`
}

// StatsResponse is the stats endpoint payload.
type StatsResponse struct {
	Process     ProcessStats                `json:"process"`
	Providers   map[string]ProviderStatsDTO `json:"providers"`
	LLMFallback []string                    `json:"llm_fallback"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Process:     h.processStats(),
		Providers:   make(map[string]ProviderStatsDTO),
		LLMFallback: h.llmFallback,
	}

	for provider, stats := range h.tracker.Snapshot() {
		totalCache := stats.CacheHits + stats.CacheMisses
		hitRate := int64(0)
		if totalCache > 0 {
			hitRate = (stats.CacheHits * 100) / totalCache
		}
		avgMillis := int64(0)
		if calls := stats.Success + stats.Failures; calls > 0 {
			avgMillis = stats.DurationMs / calls
		}
		resp.Providers[provider] = ProviderStatsDTO{
			CacheHits:   stats.CacheHits,
			CacheMisses: stats.CacheMisses,
			Successes:   stats.Success,
			Failures:    stats.Failures,
			BytesIn:     stats.BytesIn,
			HitRate:     hitRate,
			AvgMillis:   avgMillis,
		}
	}

	writeJSON(w, resp)
}

func (h *StatsHandler) processStats() ProcessStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h.mu.Lock()
	if m.Alloc > h.maxMem {
		h.maxMem = m.Alloc
	}
	maxMem := h.maxMem
	h.mu.Unlock()

	return ProcessStats{
		MemoryMB:    bToMb(m.Alloc),
		MemoryMaxMB: bToMb(maxMem),
		Goroutines:  runtime.NumGoroutine(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
