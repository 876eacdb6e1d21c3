package config

// Persistent state keys (Registry)
const (
	KeyLocale            = "locale"
	KeyVolume            = "volume"
	KeyVoice             = "speech_voice"
	KeySpeechEngine      = "speech_engine"
	KeyNearbyLimit       = "nearby_limit"
	KeyAutoNearby        = "auto_nearby"
	KeyWikiEnabled       = "wiki_grounding"
	KeyExpandWordTarget  = "expand_word_target"
	KeyPodcastWordTarget = "podcast_word_target"
)
