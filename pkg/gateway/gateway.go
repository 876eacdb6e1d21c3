package gateway

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/NagiElgarhi/view-tours/pkg/llm"
	"github.com/NagiElgarhi/view-tours/pkg/model"
	"github.com/NagiElgarhi/view-tours/pkg/prompt"
)

// Gateway is the single boundary to the generative backend. Every
// operation issues exactly one provider call — no retries, no caching:
// the orchestrator owns re-ask policy, and two identical submissions
// are a legitimate re-verification.
type Gateway struct {
	provider llm.Provider
}

// New creates a Gateway over the given provider (usually the failover chain).
func New(p llm.Provider) *Gateway {
	return &Gateway{provider: p}
}

// Identify submits an identify or reverify request and returns the
// validated result. img may be nil for text-only identification.
func (g *Gateway) Identify(ctx context.Context, req prompt.Request, img []byte) (*model.AnalysisResult, error) {
	var payload prompt.IdentifyPayload
	if err := g.submit(ctx, req, img, &payload); err != nil {
		return nil, err
	}

	// Contract check: a confident result needs a title; an uncertain
	// one needs at least an explanation.
	if !payload.Uncertain && strings.TrimSpace(payload.Title) == "" {
		return nil, &MalformedError{Intent: req.Intent, Detail: "confident result without title"}
	}
	if payload.Uncertain && strings.TrimSpace(payload.Message) == "" {
		payload.Message = "The subject could not be identified."
	}

	return &model.AnalysisResult{
		Title:        strings.TrimSpace(payload.Title),
		Uncertain:    payload.Uncertain,
		Message:      strings.TrimSpace(payload.Message),
		History:      strings.TrimSpace(payload.History),
		Architecture: strings.TrimSpace(payload.Architecture),
		FunFacts:     trimAll(payload.FunFacts),
		Locale:       req.Locale,
		ReceivedAt:   time.Now(),
	}, nil
}

// Expand submits an expand-history request and returns the narrative.
func (g *Gateway) Expand(ctx context.Context, req prompt.Request) (string, error) {
	var payload prompt.ExpandPayload
	if err := g.submit(ctx, req, nil, &payload); err != nil {
		return "", err
	}
	history := strings.TrimSpace(payload.History)
	if history == "" {
		return "", &MalformedError{Intent: req.Intent, Detail: "empty history"}
	}
	return history, nil
}

// Nearby submits a nearby-landmarks request. Entries without a name are
// dropped; ordering is preserved.
func (g *Gateway) Nearby(ctx context.Context, req prompt.Request) ([]model.NearbyLandmark, error) {
	var payload prompt.NearbyPayload
	if err := g.submit(ctx, req, nil, &payload); err != nil {
		return nil, err
	}

	out := make([]model.NearbyLandmark, 0, len(payload.Nearby))
	for _, e := range payload.Nearby {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		out = append(out, model.NearbyLandmark{
			Name:      name,
			Distance:  e.Distance,
			Direction: strings.ToLower(strings.TrimSpace(e.Direction)),
			Brief:     strings.TrimSpace(e.Brief),
		})
	}
	return out, nil
}

// Podcast submits a podcast-script request scoped to subjectTitle. The
// returned script always carries that title, regardless of what the
// backend echoed back.
func (g *Gateway) Podcast(ctx context.Context, req prompt.Request, subjectTitle string) (*model.DerivativeScript, error) {
	var payload prompt.PodcastPayload
	if err := g.submit(ctx, req, nil, &payload); err != nil {
		return nil, err
	}
	script := strings.TrimSpace(payload.Script)
	if script == "" {
		return nil, &MalformedError{Intent: req.Intent, Detail: "empty script"}
	}
	return &model.DerivativeScript{
		Title:       subjectTitle,
		Format:      "podcast",
		Text:        script,
		GeneratedAt: time.Now(),
	}, nil
}

// submit performs the single provider call for a request and classifies
// failures. The correlation ID ties log lines of one submission together.
func (g *Gateway) submit(ctx context.Context, req prompt.Request, img []byte, target any) error {
	id := uuid.NewString()[:8]
	start := time.Now()

	slog.Debug("Gateway: submitting", "id", id, "intent", req.Intent, "locale", req.Locale, "image", len(img) > 0)

	var err error
	if len(img) > 0 {
		err = g.provider.GenerateImageJSON(ctx, req.Intent, req.Instruction, llm.Image{Data: img, MIME: "image/jpeg"}, target)
	} else {
		err = g.provider.GenerateJSON(ctx, req.Intent, req.Instruction, target)
	}

	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, llm.ErrMalformed) {
			slog.Warn("Gateway: malformed response", "id", id, "intent", req.Intent, "elapsed", elapsed, "error", err)
			return &MalformedError{Intent: req.Intent, Detail: "response did not match contract", Err: err}
		}
		slog.Warn("Gateway: call failed", "id", id, "intent", req.Intent, "elapsed", elapsed, "error", err)
		return &TransportError{Intent: req.Intent, Err: err}
	}

	slog.Info("Gateway: response received", "id", id, "intent", req.Intent, "elapsed", elapsed)
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
