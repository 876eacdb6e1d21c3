// Package discovery owns the session state machine: acquisition,
// identification, enrichment, and the stale-response discipline that
// keeps late completions from corrupting a newer subject.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/NagiElgarhi/view-tours/pkg/config"
	"github.com/NagiElgarhi/view-tours/pkg/gateway"
	"github.com/NagiElgarhi/view-tours/pkg/imagesource"
	"github.com/NagiElgarhi/view-tours/pkg/model"
	"github.com/NagiElgarhi/view-tours/pkg/prompt"
)

// Orchestrator drives exactly one live discovery session. All public
// methods are safe for concurrent use; backend work runs on goroutines
// tagged with the session generation so superseded completions are
// silently dropped.
type Orchestrator struct {
	mu       sync.Mutex
	cfg      config.Provider
	prompts  PromptBuilder
	backend  Gateway
	source   ImageSource
	narrator Narrator
	grounder Grounder // optional

	s            session
	stream       Stream
	subjectImage []byte
}

// New creates an orchestrator in the idle phase. grounder may be nil.
func New(cfg config.Provider, prompts PromptBuilder, backend Gateway, source ImageSource, narrator Narrator, grounder Grounder) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		prompts:  prompts,
		backend:  backend,
		source:   source,
		narrator: narrator,
		grounder: grounder,
		s:        newSession(),
	}
}

// View returns a snapshot of the session for the API.
func (o *Orchestrator) View() model.SessionView {
	narration := o.narrator.View()
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.s.view(narration)
}

// StartAcquisition begins a new discovery with the camera. Always
// permitted; any previous subject, narration, and stream are torn down
// first.
func (o *Orchestrator) StartAcquisition(ctx context.Context) error {
	o.narrator.Reset()

	o.mu.Lock()
	o.releaseStreamLocked()
	o.subjectImage = nil
	o.s.beginSubject(model.PhaseAcquiring, false)
	gen := o.s.generation
	o.mu.Unlock()

	stream, err := o.source.Acquire(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.s.current(gen) {
		if stream != nil {
			stream.Release()
		}
		return nil
	}
	if err != nil {
		slog.Warn("Discovery: camera acquisition failed", "error", err)
		o.s.applyIdentifyFailure(gen, "Camera is unavailable. Check permissions and try again.")
		return err
	}
	o.stream = stream
	slog.Info("Discovery: acquiring", "generation", gen)
	return nil
}

// TryAgain restarts acquisition from an uncertain or failed outcome.
func (o *Orchestrator) TryAgain(ctx context.Context) error {
	return o.StartAcquisition(ctx)
}

// Capture takes a still from the live stream and submits it for
// identification.
func (o *Orchestrator) Capture(ctx context.Context) error {
	o.mu.Lock()
	if o.s.phase != model.PhaseAcquiring || o.stream == nil {
		o.mu.Unlock()
		return fmt.Errorf("no live camera stream to capture from")
	}
	stream := o.stream
	o.stream = nil
	o.s.phase = model.PhaseSubmitting
	gen := o.s.generation
	o.mu.Unlock()

	go func() {
		ctx, cancel := o.submitContext()
		img, err := stream.Still(ctx)
		cancel()
		stream.Release()
		if err != nil {
			slog.Warn("Discovery: still capture failed", "error", err)
			o.mu.Lock()
			o.s.applyIdentifyFailure(gen, "Could not capture a frame from the camera.")
			o.mu.Unlock()
			return
		}
		o.mu.Lock()
		if !o.s.current(gen) {
			o.mu.Unlock()
			return
		}
		o.subjectImage = img
		o.mu.Unlock()
		o.runIdentify(gen, prompt.IntentIdentify, prompt.Subject{HasImage: true}, img)
	}()
	return nil
}

// Upload identifies a user-provided image file. Starts a new subject.
func (o *Orchestrator) Upload(ctx context.Context, r io.Reader) error {
	img, err := o.source.DecodeUpload(r)
	if err != nil {
		if errors.Is(err, imagesource.ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("could not decode uploaded image: %w", err)
	}

	gen := o.beginSubmitting(img, false)
	go o.runIdentify(gen, prompt.IntentIdentify, prompt.Subject{HasImage: true}, img)
	return nil
}

// SearchText identifies a subject by name. Blank queries are rejected
// before any backend call.
func (o *Orchestrator) SearchText(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		slog.Debug("Discovery: ignoring empty search query")
		return ErrEmptyQuery
	}

	gen := o.beginSubmitting(nil, false)
	go o.runIdentify(gen, prompt.IntentIdentify, prompt.Subject{Query: query}, nil)
	return nil
}

// Reverify re-asks the backend about the current subject with the
// stricter cross-check instruction. The new answer replaces the old one
// wholesale.
func (o *Orchestrator) Reverify(ctx context.Context) error {
	o.mu.Lock()
	if o.s.phase != model.PhasePresenting || o.s.result == nil {
		o.mu.Unlock()
		return fmt.Errorf("nothing to re-verify")
	}
	subject := prompt.Subject{
		Title:    o.s.result.Title,
		HasImage: len(o.subjectImage) > 0,
	}
	img := o.subjectImage
	o.s.phase = model.PhaseSubmitting
	o.s.errMsg = ""
	gen := o.s.generation
	o.mu.Unlock()

	go o.runIdentify(gen, prompt.IntentReverify, subject, img)
	return nil
}

// SelectNearby hops to a suggested landmark by name. The current nearby
// list is retained as the candidate pool for the next result.
func (o *Orchestrator) SelectNearby(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyQuery
	}

	o.mu.Lock()
	if o.s.phase != model.PhasePresenting || o.s.result == nil {
		o.mu.Unlock()
		return fmt.Errorf("no nearby suggestions to select from")
	}
	o.narrator.Reset()
	o.s.pool = o.s.result.Nearby
	o.releaseStreamLocked()
	o.subjectImage = nil
	o.s.beginSubject(model.PhaseSubmitting, true)
	gen := o.s.generation
	o.mu.Unlock()

	go o.runIdentify(gen, prompt.IntentIdentify, prompt.Subject{Query: name}, nil)
	return nil
}

// Enrich starts an on-demand follow-up for the current confident result.
// At most one request per kind is in flight; kinds are independent.
func (o *Orchestrator) Enrich(ctx context.Context, kind model.EnrichmentKind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown enrichment kind %q", kind)
	}

	o.mu.Lock()
	if o.s.phase == model.PhaseUncertain {
		o.mu.Unlock()
		return fmt.Errorf("enrichment is unavailable for an uncertain result")
	}
	if !o.s.canEnrich(kind) {
		busy := o.s.enriching[kind]
		o.mu.Unlock()
		if busy {
			return fmt.Errorf("%s request already in flight", kind)
		}
		return fmt.Errorf("no confident result to enrich")
	}
	o.s.enriching[kind] = true
	gen := o.s.generation
	title := o.s.result.Title
	var grounding *Grounding
	if o.s.grounding != nil {
		g := *o.s.grounding
		grounding = &g
	}
	o.mu.Unlock()

	go o.runEnrichment(gen, kind, title, grounding)
	return nil
}

// MapView returns the grounded subject coordinates (nil when unknown)
// and the current nearby list for map rendering. Outside Presenting
// there is nothing to draw.
func (o *Orchestrator) MapView() (*Grounding, []model.NearbyLandmark) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.s.phase != model.PhasePresenting || o.s.result == nil {
		return nil, nil
	}
	g := o.s.grounding
	if g != nil {
		cp := *g
		g = &cp
	}
	return g, o.s.result.Nearby
}

// Narrate reads one section of the current result aloud, with the
// controller's toggle semantics.
func (o *Orchestrator) Narrate(ctx context.Context, sectionID string) error {
	o.mu.Lock()
	res := o.s.result
	phase := o.s.phase
	o.mu.Unlock()

	if res == nil || (phase != model.PhasePresenting && phase != model.PhaseUncertain) {
		return fmt.Errorf("nothing to narrate")
	}
	text, ok := res.SectionText(sectionID)
	if !ok {
		return fmt.Errorf("section %q has no content", sectionID)
	}
	return o.narrator.Read(ctx, text, sectionID)
}

// Reset tears the session down to idle: narration, stream, result.
func (o *Orchestrator) Reset() {
	o.narrator.Reset()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.releaseStreamLocked()
	o.subjectImage = nil
	o.s.beginSubject(model.PhaseIdle, false)
	slog.Info("Discovery: session reset")
}

// Shutdown resets the session and releases device resources.
func (o *Orchestrator) Shutdown() {
	o.Reset()
	o.source.ReleaseAll()
}

// --- internals ---

// beginSubmitting tears down the previous subject and enters Submitting.
func (o *Orchestrator) beginSubmitting(img []byte, keepPool bool) uint64 {
	o.narrator.Reset()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.releaseStreamLocked()
	o.subjectImage = img
	o.s.beginSubject(model.PhaseSubmitting, keepPool)
	return o.s.generation
}

func (o *Orchestrator) releaseStreamLocked() {
	if o.stream != nil {
		o.stream.Release()
		o.stream = nil
	}
}

// submitContext bounds one backend call. Detached from the caller's
// context: HTTP handlers return before the work completes.
func (o *Orchestrator) submitContext() (context.Context, context.CancelFunc) {
	timeout := o.cfg.SubmitTimeout(context.Background())
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// runIdentify performs one identify/reverify round for generation gen.
func (o *Orchestrator) runIdentify(gen uint64, intent string, subject prompt.Subject, img []byte) {
	ctx, cancel := o.submitContext()
	defer cancel()

	req, err := o.prompts.Build(ctx, intent, subject)
	if err == nil {
		var res *model.AnalysisResult
		res, err = o.backend.Identify(ctx, req, img)
		if err == nil {
			o.finishIdentify(gen, res)
			return
		}
	}

	logSubmitFailure(intent, err)
	o.mu.Lock()
	o.s.applyIdentifyFailure(gen, userMessage(err))
	o.mu.Unlock()
}

// finishIdentify installs a successful result and kicks off background
// follow-ups (grounding, auto-nearby) for confident ones.
func (o *Orchestrator) finishIdentify(gen uint64, res *model.AnalysisResult) {
	o.mu.Lock()
	applied := o.s.applyIdentify(gen, res)
	phase := o.s.phase
	// A corrected title advances the generation; follow-ups belong to
	// the new one.
	gen = o.s.generation
	o.mu.Unlock()

	if !applied {
		slog.Debug("Discovery: dropping stale identify response", "generation", gen)
		return
	}
	if phase != model.PhasePresenting {
		slog.Info("Discovery: uncertain result", "message", res.Message)
		return
	}
	slog.Info("Discovery: presenting", "title", res.Title, "generation", gen)

	bg := context.Background()
	if o.grounder != nil && o.cfg.WikiEnabled(bg) {
		go o.groundSubject(gen, res.Title)
	}
	if o.cfg.AutoNearby(bg) && len(res.Nearby) == 0 {
		if err := o.Enrich(bg, model.EnrichNearby); err != nil {
			slog.Debug("Discovery: auto-nearby not started", "error", err)
		}
	}
}

// groundSubject attaches Wikipedia-backed context to the current subject.
// Failures are soft: the result stands untouched.
func (o *Orchestrator) groundSubject(gen uint64, title string) {
	ctx, cancel := o.submitContext()
	defer cancel()

	locale := o.cfg.Locale(ctx)
	g, err := o.grounder.Subject(ctx, title, locale)
	if err != nil || g == nil {
		slog.Debug("Discovery: subject grounding unavailable", "title", title, "error", err)
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.s.current(gen) || o.s.phase != model.PhasePresenting {
		return
	}
	o.s.grounding = g
	slog.Debug("Discovery: subject grounded", "title", title, "coords", g.HasCoords)
}

// runEnrichment performs one enrichment round for generation gen.
func (o *Orchestrator) runEnrichment(gen uint64, kind model.EnrichmentKind, title string, grounding *Grounding) {
	ctx, cancel := o.submitContext()
	defer cancel()

	merge, err := o.fetchEnrichment(ctx, kind, title, grounding)
	if err != nil {
		logSubmitFailure(string(kind), err)
		o.mu.Lock()
		o.s.applyEnrichmentFailure(gen, kind, userMessage(err))
		o.mu.Unlock()
		return
	}

	o.mu.Lock()
	applied := o.s.applyEnrichment(gen, kind, merge)
	o.mu.Unlock()
	if !applied {
		slog.Debug("Discovery: dropping stale enrichment", "kind", kind, "generation", gen)
		return
	}
	slog.Info("Discovery: enrichment merged", "kind", kind, "title", title)
}

// fetchEnrichment runs the backend call for one kind and returns the
// merge to apply under the session lock.
func (o *Orchestrator) fetchEnrichment(ctx context.Context, kind model.EnrichmentKind, title string, grounding *Grounding) (func(*model.AnalysisResult), error) {
	subject := prompt.Subject{Title: title}
	if kind == model.EnrichExpand && grounding != nil {
		subject.WikiExtract = grounding.Extract
	}

	req, err := o.prompts.Build(ctx, string(kind), subject)
	if err != nil {
		return nil, err
	}

	switch kind {
	case model.EnrichExpand:
		text, err := o.backend.Expand(ctx, req)
		if err != nil {
			return nil, err
		}
		return func(r *model.AnalysisResult) { r.History = text }, nil

	case model.EnrichNearby:
		entries, err := o.backend.Nearby(ctx, req)
		if err != nil {
			return nil, err
		}
		if o.grounder != nil && grounding != nil && grounding.HasCoords {
			entries = o.grounder.Nearby(ctx, grounding.Lat, grounding.Lon, entries)
		}
		return func(r *model.AnalysisResult) { r.Nearby = filterSelf(entries, r.Title) }, nil

	case model.EnrichPodcast:
		script, err := o.backend.Podcast(ctx, req, title)
		if err != nil {
			return nil, err
		}
		return func(r *model.AnalysisResult) {
			// The script belongs to exactly one title.
			if !sameTitle(script.Title, r.Title) {
				return
			}
			script.Title = r.Title
			r.Script = script
		}, nil
	}
	return nil, fmt.Errorf("unknown enrichment kind %q", kind)
}

// logSubmitFailure keeps transport and contract failures distinguishable
// in the logs while the user sees the same retryable message.
func logSubmitFailure(intent string, err error) {
	var malformed *gateway.MalformedError
	var transport *gateway.TransportError
	switch {
	case errors.As(err, &malformed):
		slog.Error("Discovery: malformed backend response", "intent", intent, "error", err)
	case errors.As(err, &transport):
		slog.Error("Discovery: backend call failed", "intent", intent, "error", err)
	default:
		slog.Error("Discovery: request failed", "intent", intent, "error", err)
	}
}

// userMessage maps an internal failure to the message shown in the UI.
func userMessage(err error) string {
	var malformed *gateway.MalformedError
	if errors.As(err, &malformed) {
		return "The response could not be understood. Please try again."
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The request timed out. Please try again."
	}
	return "The request failed. Please try again."
}
