package config

import (
	"context"
	"testing"
	"time"
)

// MockStateStore implements store.StateStore for testing.
type MockStateStore struct {
	data map[string]string
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{data: make(map[string]string)}
}

func (m *MockStateStore) GetState(ctx context.Context, key string) (string, bool) {
	val, ok := m.data[key]
	return val, ok
}

func (m *MockStateStore) SetState(ctx context.Context, key, val string) error {
	m.data[key] = val
	return nil
}

func (m *MockStateStore) DeleteState(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestUnifiedProvider(t *testing.T) {
	ctx := context.Background()
	baseCfg := &Config{}
	baseCfg.Discovery.Locale = "en-US"
	baseCfg.Discovery.NearbyLimit = 10
	baseCfg.Discovery.ExpandWordTarget = 400
	baseCfg.Discovery.PodcastWordTarget = 500
	baseCfg.Discovery.AutoNearby = true
	baseCfg.Discovery.SubmitTimeout = Duration(60 * time.Second)
	baseCfg.Audio.Volume = 0.8
	baseCfg.Speech.Engine = "edge-tts"
	baseCfg.Speech.EdgeTTS.VoiceID = "en-US-AvaMultilingualNeural"
	baseCfg.Wiki.Enabled = true

	store := NewMockStateStore()
	p := NewProvider(baseCfg, store)

	t.Run("Defaults_And_Fallbacks", func(t *testing.T) {
		if p.Locale(ctx) != "en-US" {
			t.Errorf("expected en-US, got %s", p.Locale(ctx))
		}
		if p.NearbyLimit(ctx) != 10 {
			t.Errorf("expected 10, got %d", p.NearbyLimit(ctx))
		}
		if p.ExpandWordTarget(ctx) != 400 {
			t.Errorf("expected 400, got %d", p.ExpandWordTarget(ctx))
		}
		if p.PodcastWordTarget(ctx) != 500 {
			t.Errorf("expected 500, got %d", p.PodcastWordTarget(ctx))
		}
		if p.AutoNearby(ctx) != true {
			t.Error("expected auto nearby true")
		}
		if p.SubmitTimeout(ctx) != 60*time.Second {
			t.Errorf("expected 60s, got %v", p.SubmitTimeout(ctx))
		}
		if p.Volume(ctx) != 0.8 {
			t.Errorf("expected 0.8, got %f", p.Volume(ctx))
		}
		if p.Voice(ctx) != "en-US-AvaMultilingualNeural" {
			t.Errorf("expected en-US-AvaMultilingualNeural, got %s", p.Voice(ctx))
		}
		if p.SpeechEngine(ctx) != "edge-tts" {
			t.Errorf("expected edge-tts, got %s", p.SpeechEngine(ctx))
		}
		if p.WikiEnabled(ctx) != true {
			t.Error("expected wiki enabled")
		}
		if p.AppConfig() != baseCfg {
			t.Error("expected baseCfg")
		}
	})

	t.Run("Store_Overrides", func(t *testing.T) {
		store.SetState(ctx, KeyLocale, "de-DE")
		store.SetState(ctx, KeyNearbyLimit, "6")
		store.SetState(ctx, KeyExpandWordTarget, "250")
		store.SetState(ctx, KeyPodcastWordTarget, "300")
		store.SetState(ctx, KeyAutoNearby, "false")
		store.SetState(ctx, KeyVolume, "0.5")
		store.SetState(ctx, KeyVoice, "de-DE-KatjaNeural")
		store.SetState(ctx, KeySpeechEngine, "windows-sapi")
		store.SetState(ctx, KeyWikiEnabled, "false")

		if p.Locale(ctx) != "de-DE" {
			t.Errorf("expected de-DE, got %s", p.Locale(ctx))
		}
		if p.NearbyLimit(ctx) != 6 {
			t.Errorf("expected 6, got %d", p.NearbyLimit(ctx))
		}
		if p.ExpandWordTarget(ctx) != 250 {
			t.Errorf("expected 250, got %d", p.ExpandWordTarget(ctx))
		}
		if p.PodcastWordTarget(ctx) != 300 {
			t.Errorf("expected 300, got %d", p.PodcastWordTarget(ctx))
		}
		if p.AutoNearby(ctx) != false {
			t.Error("expected auto nearby false")
		}
		if p.Volume(ctx) != 0.5 {
			t.Errorf("expected 0.5, got %f", p.Volume(ctx))
		}
		if p.Voice(ctx) != "de-DE-KatjaNeural" {
			t.Errorf("expected de-DE-KatjaNeural, got %s", p.Voice(ctx))
		}
		if p.SpeechEngine(ctx) != "windows-sapi" {
			t.Errorf("expected windows-sapi, got %s", p.SpeechEngine(ctx))
		}
		if p.WikiEnabled(ctx) != false {
			t.Error("expected wiki disabled")
		}
	})

	t.Run("Conversion_Errors_Fallbacks", func(t *testing.T) {
		store.SetState(ctx, KeyNearbyLimit, "invalid")
		store.SetState(ctx, KeyVolume, "invalid")

		if p.NearbyLimit(ctx) != 10 {
			t.Errorf("expected fallback 10, got %d", p.NearbyLimit(ctx))
		}
		if p.Volume(ctx) != 0.8 {
			t.Errorf("expected fallback 0.8, got %f", p.Volume(ctx))
		}
	})

	t.Run("Empty_Store_Handle", func(t *testing.T) {
		pNone := NewProvider(baseCfg, nil)
		if pNone.Locale(ctx) != "en-US" {
			t.Errorf("expected en-US, got %s", pNone.Locale(ctx))
		}
		if pNone.Volume(ctx) != 0.8 {
			t.Errorf("expected 0.8, got %f", pNone.Volume(ctx))
		}
	})
}
