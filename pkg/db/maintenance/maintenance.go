package maintenance

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/NagiElgarhi/view-tours/pkg/db"
)

const (
	cacheMaxAge  = 30 * 24 * time.Hour
	speechMaxAge = 30 * 24 * time.Hour
)

// Run executes all maintenance tasks: pruning the HTTP response cache
// and expiring old synthesized audio. It blocks until completion.
// Failures are logged but never abort startup.
func Run(ctx context.Context, d *db.DB, speechCacheDir string) error {
	slog.Info("Starting database maintenance...")

	if err := d.PruneCache(cacheMaxAge); err != nil {
		slog.Error("Cache pruning failed", "error", err)
	} else {
		slog.Info("Cache pruning completed")
	}

	if speechCacheDir != "" {
		if count, err := pruneSpeechCache(ctx, speechCacheDir); err != nil {
			slog.Error("Speech cache pruning failed", "error", err)
		} else if count > 0 {
			slog.Info("Speech cache pruning completed", "removed", count)
		}
	}

	return nil
}

// pruneSpeechCache removes synthesized audio files older than speechMaxAge.
// Only known audio extensions are touched; anything else in the directory
// is left alone.
func pruneSpeechCache(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	deadline := time.Now().Add(-speechMaxAge)
	removed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".mp3" && ext != ".wav" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(deadline) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			slog.Warn("Failed to remove expired audio", "file", e.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
