package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NagiElgarhi/view-tours/pkg/config"
)

type memStateStore struct {
	vals map[string]string
}

func newMemStateStore() *memStateStore {
	return &memStateStore{vals: make(map[string]string)}
}

func (m *memStateStore) GetState(ctx context.Context, key string) (string, bool) {
	v, ok := m.vals[key]
	return v, ok
}

func (m *memStateStore) SetState(ctx context.Context, key, val string) error {
	m.vals[key] = val
	return nil
}

func (m *memStateStore) DeleteState(ctx context.Context, key string) error {
	delete(m.vals, key)
	return nil
}

func newSettingsHandler() (*SettingsHandler, *memStateStore) {
	st := newMemStateStore()
	prov := config.NewProvider(config.DefaultConfig(), st)
	return NewSettingsHandler(prov, st), st
}

func TestSettingsGet(t *testing.T) {
	h, _ := newSettingsHandler()

	rec := httptest.NewRecorder()
	h.HandleGet(rec, httptest.NewRequest("GET", "/api/settings", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp SettingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Locale != "en-US" {
		t.Errorf("expected default locale en-US, got %q", resp.Locale)
	}
	if resp.SpeechEngine != "edge-tts" {
		t.Errorf("expected default engine edge-tts, got %q", resp.SpeechEngine)
	}
	if !resp.AutoNearby {
		t.Error("expected auto_nearby on by default")
	}
}

func TestSettingsUpdate(t *testing.T) {
	h, st := newSettingsHandler()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("PUT", "/api/settings",
		strings.NewReader(`{"volume": 0.5, "speech_engine": "windows-sapi", "auto_nearby": false, "locale": "de-DE"}`))
	h.HandleSet(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SettingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Volume != 0.5 {
		t.Errorf("expected volume 0.5, got %v", resp.Volume)
	}
	if resp.SpeechEngine != "windows-sapi" {
		t.Errorf("expected engine windows-sapi, got %q", resp.SpeechEngine)
	}
	if resp.AutoNearby {
		t.Error("expected auto_nearby off")
	}

	// Values must be persisted, not just echoed.
	if v, _ := st.GetState(context.Background(), config.KeyVolume); v != "0.5" {
		t.Errorf("volume not persisted: %q", v)
	}
	if v, _ := st.GetState(context.Background(), config.KeySpeechEngine); v != "windows-sapi" {
		t.Errorf("engine not persisted: %q", v)
	}
	if v, _ := st.GetState(context.Background(), config.KeyLocale); v != "de-DE" {
		t.Errorf("locale not persisted: %q", v)
	}
}

func TestSettingsValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"VolumeTooHigh", `{"volume": 1.5}`},
		{"VolumeNegative", `{"volume": -0.1}`},
		{"UnknownEngine", `{"speech_engine": "festival"}`},
		{"NearbyLimitZero", `{"nearby_limit": 0}`},
		{"BadLocaleFormat", `{"locale": "english"}`},
		{"BadLocaleCase", `{"locale": "EN-us"}`},
		{"MalformedJSON", `{volume}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, st := newSettingsHandler()
			rec := httptest.NewRecorder()
			h.HandleSet(rec, httptest.NewRequest("PUT", "/api/settings", strings.NewReader(tt.body)))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
			if len(st.vals) != 0 {
				t.Errorf("rejected update must not persist anything: %v", st.vals)
			}
		})
	}
}

func TestSettingsPartialUpdate(t *testing.T) {
	h, st := newSettingsHandler()

	rec := httptest.NewRecorder()
	h.HandleSet(rec, httptest.NewRequest("PUT", "/api/settings", strings.NewReader(`{"voice": "en-GB-SoniaNeural"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(st.vals) != 1 {
		t.Errorf("expected exactly one persisted key, got %v", st.vals)
	}
}
