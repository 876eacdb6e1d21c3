package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/NagiElgarhi/view-tours/pkg/config"
	"github.com/NagiElgarhi/view-tours/pkg/model"
)

// Renderer renders a named template. Satisfied by *Manager.
type Renderer interface {
	Render(name string, data any) (string, error)
}

// Builder turns a request intent plus subject into the instruction text
// and locale sent to the backend. The response contract for each intent
// is fixed (see types.go); the templates restate it to the model so no
// free-form prose leaks outside the structured fields.
type Builder struct {
	cfg     config.Provider
	renders Renderer
}

// NewBuilder creates a Builder over the given template renderer.
func NewBuilder(cfg config.Provider, r Renderer) *Builder {
	return &Builder{cfg: cfg, renders: r}
}

// Build produces the backend request for one intent. It is
// deterministic apart from template-level phrasing variety and does no
// I/O beyond the preloaded templates.
func (b *Builder) Build(ctx context.Context, intent string, subject Subject) (Request, error) {
	if err := validate(intent, subject); err != nil {
		return Request{}, err
	}

	locale := b.cfg.Locale(ctx)
	lang := model.LanguageForLocale(locale)

	data := map[string]any{
		"Language":     lang.Name,
		"Locale":       locale,
		"Title":        subject.Title,
		"Query":        strings.TrimSpace(subject.Query),
		"HasImage":     subject.HasImage,
		"WikiExtract":  subject.WikiExtract,
		"NearbyLimit":  b.cfg.NearbyLimit(ctx),
		"ExpandWords":  b.cfg.ExpandWordTarget(ctx),
		"PodcastWords": b.cfg.PodcastWordTarget(ctx),
	}

	instruction, err := b.renders.Render(intent+".tmpl", data)
	if err != nil {
		return Request{}, fmt.Errorf("rendering %s prompt: %w", intent, err)
	}

	return Request{
		Intent:      intent,
		Instruction: instruction,
		Locale:      locale,
	}, nil
}

// validate enforces per-intent input constraints before any rendering.
func validate(intent string, subject Subject) error {
	switch intent {
	case IntentIdentify:
		if !subject.HasImage && strings.TrimSpace(subject.Query) == "" {
			return fmt.Errorf("identify requires an image or a non-empty query")
		}
	case IntentReverify:
		// Image-less reverify is legal: a text-identified subject is
		// re-checked by name alone.
		if subject.Title == "" {
			return fmt.Errorf("reverify requires the prior title")
		}
	case IntentExpand, IntentNearby, IntentPodcast:
		if subject.Title == "" {
			return fmt.Errorf("%s requires an identified subject", intent)
		}
	default:
		return fmt.Errorf("unknown intent %q", intent)
	}
	return nil
}
