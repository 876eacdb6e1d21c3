package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Request   RequestConfig   `yaml:"request"`
	Speech    SpeechConfig    `yaml:"speech"`
	Audio     AudioConfig     `yaml:"audio"`
	Log       LogConfig       `yaml:"log"`
	DB        DBConfig        `yaml:"db"`
	Server    ServerConfig    `yaml:"server"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Wiki      WikiConfig      `yaml:"wiki"`
	LLM       LLMConfig       `yaml:"llm"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// DiscoveryConfig holds settings for the discovery session.
type DiscoveryConfig struct {
	Locale            string   `yaml:"locale"`              // response language, "xx-YY"
	NearbyLimit       int      `yaml:"nearby_limit"`        // max nearby suggestions requested
	ExpandWordTarget  int      `yaml:"expand_word_target"`  // word target for expanded history
	PodcastWordTarget int      `yaml:"podcast_word_target"` // word target for the podcast script
	SubmitTimeout     Duration `yaml:"submit_timeout"`      // bound on a single backend call
	AutoNearby        bool     `yaml:"auto_nearby"`         // fetch nearby in the background after identify
	CameraWarmup      Duration `yaml:"camera_warmup"`       // max wait for the first preview frame
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Type     string            `yaml:"type"` // "gemini", "openai"
	Key      string            `yaml:"key"`
	Model    string            `yaml:"model"`
	BaseURL  string            `yaml:"base_url,omitempty"`
	Profiles map[string]string `yaml:"profiles"` // intent -> model override
}

// LLMConfig holds settings for the generative backend chain.
type LLMConfig struct {
	Fallback          []string                  `yaml:"fallback"` // provider names, tried in order
	Providers         map[string]ProviderConfig `yaml:"providers"`
	TemperatureBase   float32                   `yaml:"temperature_base"`
	TemperatureJitter float32                   `yaml:"temperature_jitter"` // bell curve jitter around base
	ReverifyDelta     float32                   `yaml:"reverify_delta"`     // subtracted from base on re-verify
}

// EdgeTTSConfig holds settings for Edge TTS.
type EdgeTTSConfig struct {
	VoiceID string `yaml:"voice"` // e.g. "en-US-AvaMultilingualNeural"
}

// SpeechConfig holds speech synthesis settings.
type SpeechConfig struct {
	Engine   string        `yaml:"engine"`
	CacheDir string        `yaml:"cache_dir"`
	EdgeTTS  EdgeTTSConfig `yaml:"edge_tts"`
}

// AudioConfig holds playback settings.
type AudioConfig struct {
	Volume float64 `yaml:"volume"` // 0.0 - 1.0
}

// WikiConfig holds Wikipedia grounding settings.
type WikiConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Language       string   `yaml:"language"`
	SearchRadius   Distance `yaml:"search_radius"`
	GeosearchLimit int      `yaml:"geosearch_limit"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	LLM      LogSettings `yaml:"llm"`
	Speech   LogSettings `yaml:"speech"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(120 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		Speech: SpeechConfig{
			Engine:   "edge-tts",
			CacheDir: "./data/speech",
			EdgeTTS: EdgeTTSConfig{
				VoiceID: "en-US-AvaMultilingualNeural",
			},
		},
		Audio: AudioConfig{
			Volume: 1.0,
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			LLM: LogSettings{
				Path:  "./logs/llm.log",
				Level: "INFO",
			},
			Speech: LogSettings{
				Path:  "./logs/speech.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/viewtours.db",
		},
		Server: ServerConfig{
			Address: "localhost:8687",
		},
		Discovery: DiscoveryConfig{
			Locale:            "en-US",
			NearbyLimit:       10,
			ExpandWordTarget:  400,
			PodcastWordTarget: 500,
			SubmitTimeout:     Duration(60 * time.Second),
			AutoNearby:        true,
			CameraWarmup:      Duration(8 * time.Second),
		},
		Wiki: WikiConfig{
			Enabled:        true,
			Language:       "en",
			SearchRadius:   Distance(10000), // 10km
			GeosearchLimit: 25,
		},
		LLM: LLMConfig{
			Fallback: []string{"gemini-flash"},
			Providers: map[string]ProviderConfig{
				"gemini-flash": {
					Type:  "gemini",
					Model: "gemini-2.5-flash",
					Profiles: map[string]string{
						"identify": "gemini-2.5-flash",
						"reverify": "gemini-2.5-flash",
						"expand":   "gemini-2.5-flash-lite",
						"nearby":   "gemini-2.5-flash-lite",
						"podcast":  "gemini-2.5-flash",
					},
				},
			},
			TemperatureBase:   1.0,
			TemperatureJitter: 0.3,
			ReverifyDelta:     0.2,
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT
// save back to disk (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		// If file does not exist, save defaults
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}

	// Load secrets from env if empty (fallback only, never saved back to disk)
	applyEnvSecrets(cfg)

	// Expand $VAR / %VAR% in paths (in memory only; raw values stay on disk)
	cfg.DB.Path = expandPath(cfg.DB.Path)
	cfg.Speech.CacheDir = expandPath(cfg.Speech.CacheDir)
	cfg.Log.Server.Path = expandPath(cfg.Log.Server.Path)
	cfg.Log.Requests.Path = expandPath(cfg.Log.Requests.Path)
	cfg.Log.LLM.Path = expandPath(cfg.Log.LLM.Path)
	cfg.Log.Speech.Path = expandPath(cfg.Log.Speech.Path)

	// Validate locale format (xx-YY)
	if !IsValidLocale(cfg.Discovery.Locale) {
		return nil, fmt.Errorf("invalid locale format '%s': must be 'xx-YY' (e.g. 'en-US', 'de-DE')", cfg.Discovery.Locale)
	}

	return cfg, nil
}

// applyEnvSecrets fills empty provider keys from well-known env variables.
func applyEnvSecrets(cfg *Config) {
	for name, p := range cfg.LLM.Providers {
		if p.Key != "" {
			continue
		}
		var envKey string
		switch p.Type {
		case "gemini":
			envKey = "GEMINI_API_KEY"
		case "openai":
			envKey = "OPENAI_API_KEY"
		default:
			continue
		}
		if key := os.Getenv(envKey); key != "" {
			p.Key = key
			cfg.LLM.Providers[name] = p
		}
	}
}

var windowsVarRe = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_]*)%`)

// expandPath expands $VAR and %VAR% environment references in a path.
func expandPath(s string) string {
	s = windowsVarRe.ReplaceAllStringFunc(s, func(m string) string {
		name := m[1 : len(m)-1]
		if val := os.Getenv(name); val != "" {
			return val
		}
		return m
	})
	return os.ExpandEnv(s)
}

// IsValidLocale reports whether s is an xx-YY locale tag.
func IsValidLocale(s string) bool {
	matched, _ := regexp.MatchString(`^[a-z]{2}-[A-Z]{2}$`, s)
	return matched
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# ViewTours Configuration
# ----------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), nm (nautical miles)

`)
	data = append(header, data...)

	// Inject comments for enum fields. Regex keeps the key's indentation so
	// comments land at the right nesting level.

	// Speech engine options
	reEngine := regexp.MustCompile(`(?m)^(\s+)engine:`)
	data = reEngine.ReplaceAll(data, []byte("${1}# Options: edge-tts, windows-sapi\n${1}engine:"))

	// Locale format
	reLocale := regexp.MustCompile(`(?m)^(\s+)locale:`)
	data = reLocale.ReplaceAll(data, []byte("${1}# Format: xx-YY (e.g. en-US, de-DE, ja-JP)\n${1}locale:"))

	// Temperature jitter comment
	reTemp := regexp.MustCompile(`(?m)^(\s+)temperature_jitter:`)
	data = reTemp.ReplaceAll(data, []byte("${1}# Bell curve: most likely base, range [base-jitter, base+jitter]\n${1}temperature_jitter:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil // File exists, do nothing
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
