package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/NagiElgarhi/view-tours/pkg/discovery"
	"github.com/NagiElgarhi/view-tours/pkg/geo"
	"github.com/NagiElgarhi/view-tours/pkg/imagesource"
	"github.com/NagiElgarhi/view-tours/pkg/model"
)

// Discoverer is the orchestrator surface the API exposes.
type Discoverer interface {
	View() model.SessionView
	StartAcquisition(ctx context.Context) error
	Capture(ctx context.Context) error
	Upload(ctx context.Context, r io.Reader) error
	SearchText(ctx context.Context, query string) error
	Reverify(ctx context.Context) error
	SelectNearby(ctx context.Context, name string) error
	Enrich(ctx context.Context, kind model.EnrichmentKind) error
	Narrate(ctx context.Context, sectionID string) error
	MapView() (*discovery.Grounding, []model.NearbyLandmark)
	Reset()
}

// FrameSink receives preview frames from the browser camera.
type FrameSink interface {
	Current() *imagesource.Stream
}

// DiscoveryHandler exposes the discovery session over HTTP.
type DiscoveryHandler struct {
	orch   Discoverer
	frames FrameSink
}

// NewDiscoveryHandler creates a new DiscoveryHandler.
func NewDiscoveryHandler(orch Discoverer, frames FrameSink) *DiscoveryHandler {
	return &DiscoveryHandler{orch: orch, frames: frames}
}

// HandleSession handles GET /api/session.
func (h *DiscoveryHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.orch.View())
}

// HandleStart handles POST /api/discover/start.
func (h *DiscoveryHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, h.orch.StartAcquisition(r.Context()))
}

// HandleCapture handles POST /api/discover/capture.
func (h *DiscoveryHandler) HandleCapture(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, h.orch.Capture(r.Context()))
}

// HandleFrame handles POST /api/discover/frame: the browser posts raw
// JPEG preview frames here while the camera is live.
func (h *DiscoveryHandler) HandleFrame(w http.ResponseWriter, r *http.Request) {
	stream := h.frames.Current()
	if stream == nil {
		writeError(w, http.StatusConflict, "no live camera stream")
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 8<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read frame")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty frame")
		return
	}
	stream.SubmitFrame(data)
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpload handles POST /api/discover/upload. Accepts either a
// multipart form with an "image" part or a raw image body.
func (h *DiscoveryHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, _, err := r.FormFile("image")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing image part")
			return
		}
		defer f.Close()
		src = f
	}
	h.intent(w, r, h.orch.Upload(r.Context(), src))
}

// HandleSearch handles POST /api/discover/search.
func (h *DiscoveryHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.intent(w, r, h.orch.SearchText(r.Context(), req.Query))
}

// HandleReverify handles POST /api/discover/reverify.
func (h *DiscoveryHandler) HandleReverify(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, h.orch.Reverify(r.Context()))
}

// HandleEnrich handles POST /api/enrich/{kind}.
func (h *DiscoveryHandler) HandleEnrich(w http.ResponseWriter, r *http.Request) {
	kind := model.EnrichmentKind(r.PathValue("kind"))
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "unknown enrichment kind")
		return
	}
	h.intent(w, r, h.orch.Enrich(r.Context(), kind))
}

// HandleSelectNearby handles POST /api/nearby/select.
func (h *DiscoveryHandler) HandleSelectNearby(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.intent(w, r, h.orch.SelectNearby(r.Context(), req.Name))
}

// HandleNarrate handles POST /api/narrate.
func (h *DiscoveryHandler) HandleNarrate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Section string `json:"section"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.intent(w, r, h.orch.Narrate(r.Context(), req.Section))
}

// HandleMap handles GET /api/map: the grounded subject plus its nearby
// pool as a GeoJSON FeatureCollection. Empty outside Presenting.
func (h *DiscoveryHandler) HandleMap(w http.ResponseWriter, r *http.Request) {
	g, nearby := h.orch.MapView()
	var center *geo.Point
	if g != nil && g.HasCoords {
		center = &geo.Point{Lat: g.Lat, Lon: g.Lon}
	}
	writeJSON(w, geo.NearbyCollection(center, nearby))
}

// HandleReset handles POST /api/reset.
func (h *DiscoveryHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.orch.Reset()
	writeJSON(w, h.orch.View())
}

// intent finishes an intent request: reject with the error message, or
// answer with the fresh session view so the UI can render immediately.
func (h *DiscoveryHandler) intent(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		status := http.StatusConflict
		if errors.Is(err, discovery.ErrEmptyQuery) {
			status = http.StatusBadRequest
		}
		slog.Debug("Intent rejected", "path", r.URL.Path, "error", err)
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, h.orch.View())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
