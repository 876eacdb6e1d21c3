package model

import (
	"fmt"
	"strings"
	"time"
)

// Phase describes where a discovery session currently is.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseAcquiring  Phase = "acquiring"  // camera device held, waiting for a frame
	PhaseSubmitting Phase = "submitting" // identify/reverify request in flight
	PhasePresenting Phase = "presenting" // confident result on screen
	PhaseUncertain  Phase = "uncertain"  // backend could not identify the subject
	PhaseFailed     Phase = "failed"
)

// EnrichmentKind identifies a follow-up request for the current subject.
type EnrichmentKind string

const (
	EnrichExpand  EnrichmentKind = "expand"
	EnrichNearby  EnrichmentKind = "nearby"
	EnrichPodcast EnrichmentKind = "podcast"
)

// Valid reports whether k is one of the known enrichment kinds.
func (k EnrichmentKind) Valid() bool {
	switch k {
	case EnrichExpand, EnrichNearby, EnrichPodcast:
		return true
	}
	return false
}

// Section identifiers for narration and partial rendering.
const (
	SectionMessage      = "message"
	SectionHistory      = "history"
	SectionArchitecture = "architecture"
	SectionFunFacts     = "fun_facts"
	SectionNearby       = "nearby"
	SectionScript       = "script"
)

// NearbyLandmark is one entry of the "what else is around" list.
type NearbyLandmark struct {
	Name      string  `json:"name"`
	Distance  float64 `json:"distance_km"` // straight-line, kilometers
	Direction string  `json:"direction"`   // cardinal, e.g. "northeast"
	Brief     string  `json:"brief"`       // one- or two-sentence teaser

	// Coordinates (optional, only when the backend or wiki lookup supplied them)
	Lat float64 `json:"lat,omitempty"`
	Lon float64 `json:"lon,omitempty"`
}

// DerivativeScript is a long-form rewrite of the current subject,
// e.g. a podcast episode script.
type DerivativeScript struct {
	Title       string    `json:"title"` // always matches the subject it was written for
	Format      string    `json:"format"`
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at"`
}

// AnalysisResult is the presentable outcome of one identify or reverify
// round, plus any enrichments fetched for the same subject.
type AnalysisResult struct {
	Title     string `json:"title"`
	Uncertain bool   `json:"uncertain"`
	Message   string `json:"message"` // short conversational summary, always present

	// Detail sections (empty until filled by identify or expand)
	History      string   `json:"history,omitempty"`
	Architecture string   `json:"architecture,omitempty"`
	FunFacts     []string `json:"fun_facts,omitempty"`

	// Enrichments (nil/empty until requested)
	Nearby []NearbyLandmark  `json:"nearby,omitempty"`
	Script *DerivativeScript `json:"script,omitempty"`

	// Metadata
	Locale     string    `json:"locale"` // locale the text was generated in
	ReceivedAt time.Time `json:"received_at"`
}

// DisplayTitle returns the best available heading for the result.
// Priority: Title > "Unidentified subject" (uncertain) > "Untitled".
func (r *AnalysisResult) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	if r.Uncertain {
		return "Unidentified subject"
	}
	return "Untitled"
}

// SectionText returns the speakable prose for a section of the result.
// The second return is false when the section is unknown or has no
// content yet.
func (r *AnalysisResult) SectionText(id string) (string, bool) {
	switch id {
	case SectionMessage:
		return r.Message, r.Message != ""
	case SectionHistory:
		return r.History, r.History != ""
	case SectionArchitecture:
		return r.Architecture, r.Architecture != ""
	case SectionFunFacts:
		if len(r.FunFacts) == 0 {
			return "", false
		}
		return strings.Join(r.FunFacts, " "), true
	case SectionNearby:
		if len(r.Nearby) == 0 {
			return "", false
		}
		var b strings.Builder
		for i, n := range r.Nearby {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(n.Speakable())
		}
		return b.String(), true
	case SectionScript:
		if r.Script == nil || r.Script.Text == "" {
			return "", false
		}
		return r.Script.Text, true
	}
	return "", false
}

// Speakable renders the entry as a sentence suitable for narration.
func (n *NearbyLandmark) Speakable() string {
	var b strings.Builder
	b.WriteString(n.Name)
	if n.Distance > 0 {
		fmt.Fprintf(&b, ", %s", speakDistance(n.Distance))
		if n.Direction != "" {
			fmt.Fprintf(&b, " to the %s", n.Direction)
		}
	} else if n.Direction != "" {
		fmt.Fprintf(&b, ", to the %s", n.Direction)
	}
	b.WriteString(".")
	if n.Brief != "" {
		b.WriteString(" ")
		b.WriteString(n.Brief)
		if !strings.HasSuffix(n.Brief, ".") && !strings.HasSuffix(n.Brief, "!") && !strings.HasSuffix(n.Brief, "?") {
			b.WriteString(".")
		}
	}
	return b.String()
}

// speakDistance renders a distance in km as TTS-friendly words.
func speakDistance(km float64) string {
	if km < 1.0 {
		return fmt.Sprintf("about %d meters", int(km*1000/50+0.5)*50)
	}
	if km < 10.0 {
		return fmt.Sprintf("about %.1f kilometers", km)
	}
	return fmt.Sprintf("about %d kilometers", int(km+0.5))
}

// NarrationView is the externally visible state of the narrator.
type NarrationView struct {
	Speaking  bool   `json:"speaking"`
	SectionID string `json:"section_id,omitempty"` // set only while speaking
}

// SessionView is a point-in-time snapshot of a discovery session,
// safe to serialize for the UI.
type SessionView struct {
	Phase      Phase           `json:"phase"`
	Generation uint64          `json:"generation"`
	Result     *AnalysisResult `json:"result,omitempty"`

	// Enriching lists the kinds with a request currently in flight.
	Enriching []EnrichmentKind `json:"enriching,omitempty"`

	Narration NarrationView `json:"narration"`

	// Error carries the last failure message: the terminal error in
	// PhaseFailed, or a failed enrichment while still presenting.
	Error string `json:"error,omitempty"`
}
