package config

import (
	"context"
	"strconv"
	"time"

	"github.com/NagiElgarhi/view-tours/pkg/store"
)

// Provider defines the interface for accessing unified configuration.
// Values changed at runtime through the settings API live in the persistent
// store and override the static YAML config.
type Provider interface {
	// Discovery
	Locale(ctx context.Context) string
	NearbyLimit(ctx context.Context) int
	ExpandWordTarget(ctx context.Context) int
	PodcastWordTarget(ctx context.Context) int
	AutoNearby(ctx context.Context) bool
	SubmitTimeout(ctx context.Context) time.Duration

	// Speech / Audio
	Volume(ctx context.Context) float64
	Voice(ctx context.Context) string
	SpeechEngine(ctx context.Context) string

	// Grounding
	WikiEnabled(ctx context.Context) bool

	// Raw access (for components that need deep access)
	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

// --- Implementations ---

func (p *UnifiedProvider) Locale(ctx context.Context) string {
	fallback := p.base.Discovery.Locale
	if fallback == "" {
		fallback = "en-US"
	}
	return p.getString(ctx, KeyLocale, fallback)
}

func (p *UnifiedProvider) NearbyLimit(ctx context.Context) int {
	return p.getInt(ctx, KeyNearbyLimit, p.base.Discovery.NearbyLimit)
}

func (p *UnifiedProvider) ExpandWordTarget(ctx context.Context) int {
	return p.getInt(ctx, KeyExpandWordTarget, p.base.Discovery.ExpandWordTarget)
}

func (p *UnifiedProvider) PodcastWordTarget(ctx context.Context) int {
	return p.getInt(ctx, KeyPodcastWordTarget, p.base.Discovery.PodcastWordTarget)
}

func (p *UnifiedProvider) AutoNearby(ctx context.Context) bool {
	return p.getBool(ctx, KeyAutoNearby, p.base.Discovery.AutoNearby)
}

func (p *UnifiedProvider) SubmitTimeout(ctx context.Context) time.Duration {
	return time.Duration(p.base.Discovery.SubmitTimeout)
}

func (p *UnifiedProvider) Volume(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyVolume, p.base.Audio.Volume)
}

func (p *UnifiedProvider) Voice(ctx context.Context) string {
	return p.getString(ctx, KeyVoice, p.base.Speech.EdgeTTS.VoiceID)
}

func (p *UnifiedProvider) SpeechEngine(ctx context.Context) string {
	fallback := p.base.Speech.Engine
	if fallback == "" {
		fallback = "edge-tts"
	}
	return p.getString(ctx, KeySpeechEngine, fallback)
}

func (p *UnifiedProvider) WikiEnabled(ctx context.Context) bool {
	return p.getBool(ctx, KeyWikiEnabled, p.base.Wiki.Enabled)
}

// --- Helpers ---

func (p *UnifiedProvider) getString(ctx context.Context, key, fallback string) string {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val
		}
	}
	return fallback
}

func (p *UnifiedProvider) getInt(ctx context.Context, key string, fallback int) int {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				return i
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getFloat64(ctx context.Context, key string, fallback float64) float64 {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getBool(ctx context.Context, key string, fallback bool) bool {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val == "true"
		}
	}
	return fallback
}
