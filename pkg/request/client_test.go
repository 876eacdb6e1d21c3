package request

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NagiElgarhi/view-tours/pkg/cache"
	"github.com/NagiElgarhi/view-tours/pkg/config"
	"github.com/NagiElgarhi/view-tours/pkg/db"
	"github.com/NagiElgarhi/view-tours/pkg/store"
	"github.com/NagiElgarhi/view-tours/pkg/tracker"
)

func testConfig() config.RequestConfig {
	return config.RequestConfig{
		Retries: 3,
		Timeout: config.Duration(5 * time.Second),
		Backoff: config.BackoffConfig{
			BaseDelay: config.Duration(10 * time.Millisecond),
			MaxDelay:  config.Duration(time.Second),
		},
	}
}

func TestGet_Sequential(t *testing.T) {
	// Mock Server using simple handler that sleeps to prove sequential execution
	var conc int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&conc, 1)
		defer atomic.AddInt32(&conc, -1)

		if current > 1 {
			// If concurrent > 1, the queue didn't work (for same provider)
			t.Errorf("Concurrency detected! Expected sequential.")
		}
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(200)
		if _, err := w.Write([]byte("ok")); err != nil {
			t.Logf("Write failed: %v", err)
		}
	}))
	defer svr.Close()

	client := New(cache.Null{}, tracker.New(), testConfig())

	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			if _, err := client.Get(context.Background(), svr.URL, ""); err != nil {
				t.Errorf("Get failed: %v", err)
			}
		}()
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("requests did not complete")
		}
	}
}

func TestGet_Retry(t *testing.T) {
	attempts := 0
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(429) // Too Many Requests
			return
		}
		w.WriteHeader(200)
		if _, err := w.Write([]byte("success")); err != nil {
			t.Logf("Write failed: %v", err)
		}
	}))
	defer svr.Close()

	client := New(cache.Null{}, tracker.New(), testConfig())

	body, err := client.Get(context.Background(), svr.URL, "")
	if err != nil {
		t.Fatalf("Expected success after retry, got error: %v", err)
	}
	if string(body) != "success" {
		t.Errorf("Expected 'success', got '%s'", string(body))
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestGet_CacheHitSkipsNetwork(t *testing.T) {
	calls := 0
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(200)
		if _, err := w.Write([]byte("payload")); err != nil {
			t.Logf("Write failed: %v", err)
		}
	}))
	defer svr.Close()

	tempDir := t.TempDir()
	d, err := db.Init(filepath.Join(tempDir, "client_test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	tr := tracker.New()
	client := New(store.NewSQLiteStore(d), tr, testConfig())

	// First call goes to the network and populates the cache.
	body, err := client.Get(context.Background(), svr.URL, "test_key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(body) != "payload" {
		t.Errorf("unexpected body %q", body)
	}

	// Second call must be served from cache.
	body, err = client.Get(context.Background(), svr.URL, "test_key")
	if err != nil {
		t.Fatalf("cached Get failed: %v", err)
	}
	if string(body) != "payload" {
		t.Errorf("unexpected cached body %q", body)
	}
	if calls != 1 {
		t.Errorf("expected 1 network call, got %d", calls)
	}

	stats := tr.Snapshot()
	host := stats[normalizeProvider(mustHost(t, svr.URL))]
	if host.CacheHits != 1 || host.CacheMisses != 1 {
		t.Errorf("tracker hits/misses = %d/%d, want 1/1", host.CacheHits, host.CacheMisses)
	}
}

func TestGet_FatalStatusNoRetry(t *testing.T) {
	attempts := 0
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(404)
	}))
	defer svr.Close()

	client := New(cache.Null{}, tracker.New(), testConfig())

	if _, err := client.Get(context.Background(), svr.URL, ""); err == nil {
		t.Fatal("expected error for 404")
	}
	if attempts != 1 {
		t.Errorf("4xx must not be retried, got %d attempts", attempts)
	}
}

func mustHost(t *testing.T, raw string) string {
	t.Helper()
	req, err := http.NewRequest("GET", raw, http.NoBody)
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return req.URL.Host
}
