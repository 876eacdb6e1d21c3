package discovery

import (
	"context"
	"io"

	"github.com/NagiElgarhi/view-tours/pkg/model"
	"github.com/NagiElgarhi/view-tours/pkg/prompt"
)

// Gateway is the backend boundary: one structured-content call per method,
// no retries, no caching.
type Gateway interface {
	Identify(ctx context.Context, req prompt.Request, img []byte) (*model.AnalysisResult, error)
	Expand(ctx context.Context, req prompt.Request) (string, error)
	Nearby(ctx context.Context, req prompt.Request) ([]model.NearbyLandmark, error)
	Podcast(ctx context.Context, req prompt.Request, subjectTitle string) (*model.DerivativeScript, error)
}

// PromptBuilder renders the instruction and contract for an intent.
type PromptBuilder interface {
	Build(ctx context.Context, intent string, subject prompt.Subject) (prompt.Request, error)
}

// Stream is a live camera stream owned by the session.
type Stream interface {
	Still(ctx context.Context) ([]byte, error)
	Release()
}

// ImageSource produces camera streams and normalizes uploads.
type ImageSource interface {
	Acquire(ctx context.Context) (Stream, error)
	DecodeUpload(r io.Reader) ([]byte, error)
	ReleaseAll()
}

// Narrator is the narration controller boundary.
type Narrator interface {
	Read(ctx context.Context, text, sectionID string) error
	View() model.NarrationView
	Reset()
}

// Grounding is what the Wikipedia layer knows about the current subject.
type Grounding struct {
	Extract   string
	Lat, Lon  float64
	HasCoords bool
}

// Grounder backs LLM output with real-world data. Both methods are
// best-effort: failures leave the LLM result untouched.
type Grounder interface {
	// Subject fetches the summary for a confirmed title.
	Subject(ctx context.Context, title, locale string) (*Grounding, error)
	// Nearby recomputes distance/direction for entries it can locate
	// around the given origin. Entries it cannot locate pass through.
	Nearby(ctx context.Context, lat, lon float64, entries []model.NearbyLandmark) []model.NearbyLandmark
}
