package api

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/NagiElgarhi/view-tours/internal/ui"
	"github.com/NagiElgarhi/view-tours/pkg/version"
)

// NewServer creates and configures the HTTP server: the JSON API under
// /api plus the embedded single-page frontend.
func NewServer(addr string, disc *DiscoveryHandler, audio *AudioHandler, settings *SettingsHandler, stats *StatsHandler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	// Session view + intents
	mux.HandleFunc("GET /api/session", disc.HandleSession)
	mux.HandleFunc("POST /api/discover/start", disc.HandleStart)
	mux.HandleFunc("POST /api/discover/capture", disc.HandleCapture)
	mux.HandleFunc("POST /api/discover/frame", disc.HandleFrame)
	mux.HandleFunc("POST /api/discover/upload", disc.HandleUpload)
	mux.HandleFunc("POST /api/discover/search", disc.HandleSearch)
	mux.HandleFunc("POST /api/discover/reverify", disc.HandleReverify)
	mux.HandleFunc("POST /api/enrich/{kind}", disc.HandleEnrich)
	mux.HandleFunc("POST /api/nearby/select", disc.HandleSelectNearby)
	mux.HandleFunc("POST /api/narrate", disc.HandleNarrate)
	mux.HandleFunc("POST /api/reset", disc.HandleReset)
	mux.HandleFunc("GET /api/map", disc.HandleMap)

	// Playback controls
	mux.HandleFunc("POST /api/audio/control", audio.HandleControl)
	mux.HandleFunc("GET /api/audio/status", audio.HandleStatus)

	// Settings
	mux.HandleFunc("GET /api/settings", settings.HandleGet)
	mux.HandleFunc("PUT /api/settings", settings.HandleSet)

	// Diagnostics
	mux.Handle("GET /api/stats", stats)
	mux.HandleFunc("GET /api/logs", handleLogs)

	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	// Static frontend (SPA with index.html fallback)
	distFS, err := fs.Sub(ui.DistFS, "dist")
	if err != nil {
		panic(fmt.Sprintf("Failed to subtree dist from embedded assets: %v", err))
	}
	spaFS := &spaFileSystem{root: http.FS(distFS)}
	mux.Handle("/", http.FileServer(spaFS))

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
