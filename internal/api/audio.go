package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/NagiElgarhi/view-tours/pkg/audio"
)

// AudioHandler exposes playback controls for the current narration.
type AudioHandler struct {
	audio audio.Service
}

// NewAudioHandler creates a new AudioHandler.
func NewAudioHandler(audioMgr audio.Service) *AudioHandler {
	return &AudioHandler{audio: audioMgr}
}

// AudioControlRequest represents a playback control command.
type AudioControlRequest struct {
	Action string `json:"action"` // "pause", "resume", "stop", "replay"
}

// AudioStatusResponse represents the playback status.
type AudioStatusResponse struct {
	IsPlaying   bool    `json:"is_playing"`
	IsPaused    bool    `json:"is_paused"`
	IsBusy      bool    `json:"is_busy"`
	HasReplay   bool    `json:"has_replay"`
	Volume      float64 `json:"volume"`
	PositionMs  int64   `json:"position_ms"`
	DurationMs  int64   `json:"duration_ms"`
	RemainingMs int64   `json:"remaining_ms"`
}

// HandleControl handles POST /api/audio/control.
func (h *AudioHandler) HandleControl(w http.ResponseWriter, r *http.Request) {
	var req AudioControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var state string
	switch req.Action {
	case "pause":
		h.audio.Pause()
		state = "paused"
	case "resume":
		h.audio.Resume()
		state = "playing"
	case "stop":
		h.audio.Stop()
		state = "stopped"
	case "replay":
		if !h.audio.ReplayLast(nil) {
			writeJSON(w, map[string]string{
				"status":  "error",
				"message": "No previous narration to replay",
			})
			return
		}
		state = "replaying"
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	slog.Debug("Audio control", "action", req.Action, "state", state)
	writeJSON(w, map[string]string{"status": "ok", "state": state})
}

// HandleStatus handles GET /api/audio/status.
func (h *AudioHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, AudioStatusResponse{
		IsPlaying:   h.audio.IsPlaying(),
		IsPaused:    h.audio.IsPaused(),
		IsBusy:      h.audio.IsBusy(),
		HasReplay:   h.audio.LastPlayedFile() != "",
		Volume:      h.audio.Volume(),
		PositionMs:  h.audio.Position().Milliseconds(),
		DurationMs:  h.audio.Duration().Milliseconds(),
		RemainingMs: h.audio.Remaining().Milliseconds(),
	})
}
