// Package narration turns analysis text into speech and manages playback.
package narration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/NagiElgarhi/view-tours/pkg/audio"
	"github.com/NagiElgarhi/view-tours/pkg/config"
	"github.com/NagiElgarhi/view-tours/pkg/model"
	"github.com/NagiElgarhi/view-tours/pkg/speech"
)

// Controller owns the single narration slot: at most one section is spoken
// at a time, and reading a new section supersedes the current one.
type Controller struct {
	mu       sync.Mutex
	cfg      config.Provider
	engines  map[string]speech.Provider
	fallback string
	dead     map[string]bool
	player   audio.Service
	cacheDir string

	speaking  bool
	sectionID string
	token     uint64
}

// New creates a narration controller. engines maps engine names (as used by
// the speech_engine setting) to providers; fallback names the engine used
// when the active one fails fatally.
func New(cfg config.Provider, engines map[string]speech.Provider, fallback string, player audio.Service, cacheDir string) *Controller {
	return &Controller{
		cfg:      cfg,
		engines:  engines,
		fallback: fallback,
		dead:     make(map[string]bool),
		player:   player,
		cacheDir: cacheDir,
	}
}

// View returns the externally visible narration state.
func (c *Controller) View() model.NarrationView {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := model.NarrationView{Speaking: c.speaking}
	if c.speaking {
		v.SectionID = c.sectionID
	}
	return v
}

// Read speaks text for the given section. Reading the section that is
// currently speaking stops it instead; reading a different section replaces
// the current narration.
func (c *Controller) Read(ctx context.Context, text, sectionID string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("nothing to narrate for section %q", sectionID)
	}

	c.mu.Lock()
	if c.speaking && c.sectionID == sectionID {
		c.stopLocked()
		c.mu.Unlock()
		return nil
	}
	if c.speaking {
		c.stopLocked()
	}
	c.token++
	token := c.token
	c.speaking = true
	c.sectionID = sectionID
	c.mu.Unlock()

	go c.speak(ctx, token, text, sectionID)
	return nil
}

// Stop silences the current narration, if any.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Reset silences the controller and invalidates any in-flight synthesis.
// Called when the discovery session is torn down.
func (c *Controller) Reset() {
	c.Stop()
}

// stopLocked invalidates the current utterance and halts playback.
func (c *Controller) stopLocked() {
	c.token++
	c.speaking = false
	c.sectionID = ""
	c.player.Stop()
}

// speak synthesizes and plays one utterance. Runs off the caller's goroutine;
// a stale token means the utterance was superseded and its output is dropped.
func (c *Controller) speak(ctx context.Context, token uint64, text, sectionID string) {
	path, err := c.synthesize(ctx, text)
	if err != nil {
		slog.Error("Narration: synthesis failed", "section", sectionID, "error", err)
		c.finish(token)
		return
	}

	vol := c.cfg.Volume(ctx)

	// The token check and Play must be atomic: a superseding Read that
	// lands between them would stop a playback that has not started yet
	// and leave the stale one audible.
	c.mu.Lock()
	if token != c.token {
		c.mu.Unlock()
		return
	}
	c.player.SetVolume(vol)
	err = c.player.Play(path, false, func() {
		c.finish(token)
	})
	c.mu.Unlock()
	if err != nil {
		slog.Error("Narration: playback failed", "path", path, "error", err)
		c.finish(token)
	}
}

// finish marks the utterance done if it is still the current one.
func (c *Controller) finish(token uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token == c.token {
		c.speaking = false
		c.sectionID = ""
	}
}

// synthesize produces an audio file for text, serving from the on-disk cache
// when the same text was already spoken with the same engine and voice.
func (c *Controller) synthesize(ctx context.Context, text string) (string, error) {
	engine := c.activeEngine(ctx)
	voice := c.cfg.Voice(ctx)

	provider, ok := c.engines[engine]
	if !ok {
		return "", fmt.Errorf("unknown speech engine %q", engine)
	}

	base := filepath.Join(c.cacheDir, cacheKey(engine, voice, text))
	if path, ok := cachedFile(base); ok {
		slog.Debug("Narration: cache hit", "path", path)
		return path, nil
	}

	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create speech cache dir: %w", err)
	}

	format, err := provider.Synthesize(ctx, text, voice, base)
	if speech.IsFatalError(err) {
		slog.Warn("Narration: engine failed fatally, switching to fallback", "engine", engine, "error", err)
		c.markDead(engine)
		return c.retryWithFallback(ctx, engine, text, voice)
	}
	if err != nil {
		return "", err
	}

	path := base + "." + format
	if err := speech.VerifyAudioFile(path); err != nil {
		return "", err
	}
	return path, nil
}

// retryWithFallback tries the fallback engine once after a fatal failure.
func (c *Controller) retryWithFallback(ctx context.Context, failed, text, voice string) (string, error) {
	if c.fallback == "" || c.fallback == failed {
		return "", fmt.Errorf("speech engine %q failed with no fallback available", failed)
	}
	provider, ok := c.engines[c.fallback]
	if !ok {
		return "", fmt.Errorf("fallback speech engine %q not registered", c.fallback)
	}

	base := filepath.Join(c.cacheDir, cacheKey(c.fallback, voice, text))
	if path, ok := cachedFile(base); ok {
		return path, nil
	}

	format, err := provider.Synthesize(ctx, text, voice, base)
	if err != nil {
		return "", fmt.Errorf("fallback engine %q failed: %w", c.fallback, err)
	}
	path := base + "." + format
	if err := speech.VerifyAudioFile(path); err != nil {
		return "", err
	}
	return path, nil
}

// activeEngine resolves the configured engine, substituting the fallback when
// the configured one has failed fatally this session.
func (c *Controller) activeEngine(ctx context.Context) string {
	engine := c.cfg.SpeechEngine(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead[engine] && c.fallback != "" && !c.dead[c.fallback] {
		return c.fallback
	}
	return engine
}

func (c *Controller) markDead(engine string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dead[engine] = true
}

// cacheKey derives a stable filename for an utterance.
func cacheKey(engine, voice, text string) string {
	h := sha256.Sum256([]byte(engine + "\x00" + voice + "\x00" + text))
	return hex.EncodeToString(h[:8])
}

// cachedFile returns the existing cache file for a base path, checking the
// formats our engines produce.
func cachedFile(base string) (string, bool) {
	for _, ext := range []string{".mp3", ".wav"} {
		path := base + ext
		if speech.VerifyAudioFile(path) == nil {
			return path, true
		}
	}
	return "", false
}
