package model

import "strings"

// LanguageInfo holds the code and English name of a language.
type LanguageInfo struct {
	Code string `json:"code"` // e.g., "de"
	Name string `json:"name"` // e.g., "German"
}

// languageNames maps primary language subtags to English names.
// Covers the locales the speech voices ship for; anything else
// falls back to English.
var languageNames = map[string]string{
	"ar": "Arabic",
	"cs": "Czech",
	"da": "Danish",
	"de": "German",
	"el": "Greek",
	"en": "English",
	"es": "Spanish",
	"fi": "Finnish",
	"fr": "French",
	"he": "Hebrew",
	"hi": "Hindi",
	"hu": "Hungarian",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"nb": "Norwegian",
	"nl": "Dutch",
	"pl": "Polish",
	"pt": "Portuguese",
	"ro": "Romanian",
	"ru": "Russian",
	"sv": "Swedish",
	"th": "Thai",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"vi": "Vietnamese",
	"zh": "Chinese",
}

// LanguageForLocale resolves a BCP 47 locale like "de-DE" to its
// primary language. Unknown locales default to English.
func LanguageForLocale(locale string) LanguageInfo {
	code, _, _ := strings.Cut(strings.ToLower(locale), "-")
	if name, ok := languageNames[code]; ok {
		return LanguageInfo{Code: code, Name: name}
	}
	return LanguageInfo{Code: "en", Name: "English"}
}
