package discovery

import (
	"strings"

	"github.com/NagiElgarhi/view-tours/pkg/model"
)

// session holds the orchestrator's state machine value. Its methods are
// pure transitions: they touch no collaborator and do no I/O, so the
// machine can be unit-tested without the Orchestrator around it.
type session struct {
	phase      model.Phase
	generation uint64
	result     *model.AnalysisResult
	grounding  *Grounding
	enriching  map[model.EnrichmentKind]bool
	errMsg     string

	// pool retains the previous nearby list across a select-nearby hop so
	// the remaining suggestions survive the subject change.
	pool []model.NearbyLandmark
}

func newSession() session {
	return session{
		phase:     model.PhaseIdle,
		enriching: make(map[model.EnrichmentKind]bool),
	}
}

// beginSubject starts a new generation: everything belonging to the
// previous subject is dropped. The retained nearby pool survives only
// when keepPool is set (select-nearby hop).
func (s *session) beginSubject(phase model.Phase, keepPool bool) {
	s.generation++
	s.phase = phase
	s.result = nil
	s.grounding = nil
	s.enriching = make(map[model.EnrichmentKind]bool)
	s.errMsg = ""
	if !keepPool {
		s.pool = nil
	}
}

// current reports whether a completion tagged with gen is still relevant.
func (s *session) current(gen uint64) bool {
	return gen == s.generation
}

// applyIdentify installs an identify/reverify result for generation gen.
// Stale completions are dropped. Returns true if the result was applied.
func (s *session) applyIdentify(gen uint64, res *model.AnalysisResult) bool {
	if !s.current(gen) {
		return false
	}
	// A replacement that corrects the title is a subject change: anything
	// still in flight for the old title (enrichments, grounding) must not
	// merge into the new result.
	if s.result != nil && !sameTitle(s.result.Title, res.Title) {
		s.generation++
		s.enriching = make(map[model.EnrichmentKind]bool)
		s.grounding = nil
	}
	s.errMsg = ""
	s.result = res
	if res.Uncertain {
		s.phase = model.PhaseUncertain
		return true
	}
	s.phase = model.PhasePresenting
	// A retained candidate pool replaces the (empty) nearby list of the
	// fresh result, minus the new subject itself.
	if len(s.pool) > 0 && len(res.Nearby) == 0 {
		res.Nearby = filterSelf(s.pool, res.Title)
	}
	s.pool = nil
	return true
}

// applyIdentifyFailure records a terminal failure for generation gen.
func (s *session) applyIdentifyFailure(gen uint64, msg string) bool {
	if !s.current(gen) {
		return false
	}
	s.phase = model.PhaseFailed
	s.result = nil
	s.errMsg = msg
	return true
}

// canEnrich reports whether enrichment of the given kind may start now.
// Enrichment is confidence-gated and single-flight per kind.
func (s *session) canEnrich(kind model.EnrichmentKind) bool {
	return s.phase == model.PhasePresenting &&
		s.result != nil &&
		kind.Valid() &&
		!s.enriching[kind]
}

// applyEnrichment merges one enrichment payload atomically. Stale or
// out-of-phase completions are dropped.
func (s *session) applyEnrichment(gen uint64, kind model.EnrichmentKind, merge func(*model.AnalysisResult)) bool {
	if !s.current(gen) {
		return false
	}
	s.enriching[kind] = false
	if s.phase != model.PhasePresenting || s.result == nil {
		return false
	}
	s.errMsg = ""
	merge(s.result)
	return true
}

// applyEnrichmentFailure records an enrichment failure without leaving
// Presenting or touching the result.
func (s *session) applyEnrichmentFailure(gen uint64, kind model.EnrichmentKind, msg string) bool {
	if !s.current(gen) {
		return false
	}
	s.enriching[kind] = false
	if s.phase != model.PhasePresenting {
		return false
	}
	s.errMsg = msg
	return true
}

// view renders the snapshot the API serves.
func (s *session) view(narration model.NarrationView) model.SessionView {
	v := model.SessionView{
		Phase:      s.phase,
		Generation: s.generation,
		Narration:  narration,
		Error:      s.errMsg,
	}
	if s.phase == model.PhasePresenting || s.phase == model.PhaseUncertain {
		v.Result = s.result
	}
	for _, kind := range []model.EnrichmentKind{model.EnrichExpand, model.EnrichNearby, model.EnrichPodcast} {
		if s.enriching[kind] {
			v.Enriching = append(v.Enriching, kind)
		}
	}
	return v
}

// filterSelf drops entries whose trimmed, case-folded name matches title.
func filterSelf(entries []model.NearbyLandmark, title string) []model.NearbyLandmark {
	out := make([]model.NearbyLandmark, 0, len(entries))
	for _, e := range entries {
		if sameTitle(e.Name, title) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// sameTitle compares titles trimmed and case-folded.
func sameTitle(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
