package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/NagiElgarhi/view-tours/pkg/config"
	"github.com/NagiElgarhi/view-tours/pkg/store"
)

// SettingsHandler reads and writes runtime settings. Writes land in the
// persistent state store, where they override the YAML config.
type SettingsHandler struct {
	cfg   config.Provider
	store store.StateStore
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(cfg config.Provider, st store.StateStore) *SettingsHandler {
	return &SettingsHandler{cfg: cfg, store: st}
}

// SettingsResponse is the full runtime settings snapshot.
type SettingsResponse struct {
	Locale       string  `json:"locale"`
	Volume       float64 `json:"volume"`
	Voice        string  `json:"voice"`
	SpeechEngine string  `json:"speech_engine"`
	AutoNearby   bool    `json:"auto_nearby"`
	WikiEnabled  bool    `json:"wiki_enabled"`
	NearbyLimit  int     `json:"nearby_limit"`
}

// SettingsRequest carries partial updates; absent fields stay untouched.
type SettingsRequest struct {
	Locale       *string  `json:"locale,omitempty"`
	Volume       *float64 `json:"volume,omitempty"`
	Voice        *string  `json:"voice,omitempty"`
	SpeechEngine *string  `json:"speech_engine,omitempty"`
	AutoNearby   *bool    `json:"auto_nearby,omitempty"`
	WikiEnabled  *bool    `json:"wiki_enabled,omitempty"`
	NearbyLimit  *int     `json:"nearby_limit,omitempty"`
}

// HandleGet handles GET /api/settings.
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.snapshot(r.Context()))
}

// HandleSet handles PUT /api/settings.
func (h *SettingsHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	if err := h.apply(ctx, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, h.snapshot(ctx))
}

func (h *SettingsHandler) snapshot(ctx context.Context) SettingsResponse {
	return SettingsResponse{
		Locale:       h.cfg.Locale(ctx),
		Volume:       h.cfg.Volume(ctx),
		Voice:        h.cfg.Voice(ctx),
		SpeechEngine: h.cfg.SpeechEngine(ctx),
		AutoNearby:   h.cfg.AutoNearby(ctx),
		WikiEnabled:  h.cfg.WikiEnabled(ctx),
		NearbyLimit:  h.cfg.NearbyLimit(ctx),
	}
}

func (h *SettingsHandler) apply(ctx context.Context, req *SettingsRequest) error {
	if req.Volume != nil {
		if *req.Volume < 0 || *req.Volume > 1 {
			return fmt.Errorf("volume must be between 0 and 1")
		}
		if err := h.set(ctx, config.KeyVolume, strconv.FormatFloat(*req.Volume, 'f', -1, 64)); err != nil {
			return err
		}
	}
	if req.NearbyLimit != nil {
		if *req.NearbyLimit < 1 || *req.NearbyLimit > 50 {
			return fmt.Errorf("nearby_limit must be between 1 and 50")
		}
		if err := h.set(ctx, config.KeyNearbyLimit, strconv.Itoa(*req.NearbyLimit)); err != nil {
			return err
		}
	}
	if req.SpeechEngine != nil {
		switch *req.SpeechEngine {
		case "edge-tts", "windows-sapi":
		default:
			return fmt.Errorf("unknown speech engine %q", *req.SpeechEngine)
		}
		if err := h.set(ctx, config.KeySpeechEngine, *req.SpeechEngine); err != nil {
			return err
		}
	}
	if req.Locale != nil {
		if !config.IsValidLocale(*req.Locale) {
			return fmt.Errorf("invalid locale %q: must be 'xx-YY' (e.g. 'en-US', 'de-DE')", *req.Locale)
		}
		if err := h.set(ctx, config.KeyLocale, *req.Locale); err != nil {
			return err
		}
	}
	if req.Voice != nil {
		if err := h.set(ctx, config.KeyVoice, *req.Voice); err != nil {
			return err
		}
	}
	if req.AutoNearby != nil {
		if err := h.set(ctx, config.KeyAutoNearby, strconv.FormatBool(*req.AutoNearby)); err != nil {
			return err
		}
	}
	if req.WikiEnabled != nil {
		if err := h.set(ctx, config.KeyWikiEnabled, strconv.FormatBool(*req.WikiEnabled)); err != nil {
			return err
		}
	}
	return nil
}

func (h *SettingsHandler) set(ctx context.Context, key, val string) error {
	if err := h.store.SetState(ctx, key, val); err != nil {
		slog.Error("Failed to persist setting", "key", key, "error", err)
		return fmt.Errorf("failed to save %s", key)
	}
	slog.Info("Setting updated", "key", key, "value", val)
	return nil
}
