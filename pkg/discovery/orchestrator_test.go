package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NagiElgarhi/view-tours/pkg/config"
	"github.com/NagiElgarhi/view-tours/pkg/gateway"
	"github.com/NagiElgarhi/view-tours/pkg/model"
	"github.com/NagiElgarhi/view-tours/pkg/prompt"
)

func testConfig(autoNearby, wiki bool) config.Provider {
	c := config.DefaultConfig()
	c.Discovery.AutoNearby = autoNearby
	c.Wiki.Enabled = wiki
	c.Discovery.SubmitTimeout = config.Duration(5 * time.Second)
	return config.NewProvider(c, nil)
}

func newTestOrchestrator(gw *mockGateway, grounder Grounder) (*Orchestrator, *mockSource, *mockNarrator) {
	source := &mockSource{}
	narrator := &mockNarrator{}
	o := New(testConfig(false, grounder != nil), mockBuilder{}, gw, source, narrator, grounder)
	return o, source, narrator
}

func waitPhase(t *testing.T, o *Orchestrator, phase model.Phase) model.SessionView {
	t.Helper()
	var view model.SessionView
	require.Eventually(t, func() bool {
		view = o.View()
		return view.Phase == phase
	}, 3*time.Second, 10*time.Millisecond, "never reached phase %s (last: %s)", phase, view.Phase)
	return view
}

func TestCaptureFlowReachesPresenting(t *testing.T) {
	gw := &mockGateway{
		identifyFunc: func(ctx context.Context, req prompt.Request, img []byte) (*model.AnalysisResult, error) {
			if len(img) == 0 {
				return nil, errors.New("capture must carry image bytes")
			}
			return &model.AnalysisResult{
				Title:        "Eiffel Tower",
				Message:      "identified",
				History:      "...",
				Architecture: "...",
				FunFacts:     []string{"a", "b"},
			}, nil
		},
	}
	stream := &mockStream{}
	o, source, _ := newTestOrchestrator(gw, nil)
	source.acquireFunc = func(ctx context.Context) (Stream, error) { return stream, nil }

	require.NoError(t, o.StartAcquisition(context.Background()))
	assert.Equal(t, model.PhaseAcquiring, o.View().Phase)

	require.NoError(t, o.Capture(context.Background()))
	view := waitPhase(t, o, model.PhasePresenting)
	require.NotNil(t, view.Result)
	assert.Equal(t, "Eiffel Tower", view.Result.Title)
	assert.True(t, stream.wasReleased(), "stream must be released after capture")
}

func TestUncertainResultRouting(t *testing.T) {
	gw := &mockGateway{
		identifyFunc: func(ctx context.Context, req prompt.Request, img []byte) (*model.AnalysisResult, error) {
			return &model.AnalysisResult{Uncertain: true, Message: "blurry"}, nil
		},
	}
	o, _, _ := newTestOrchestrator(gw, nil)

	require.NoError(t, o.SearchText(context.Background(), "something vague"))
	view := waitPhase(t, o, model.PhaseUncertain)
	require.NotNil(t, view.Result)
	assert.Equal(t, "blurry", view.Result.Message)

	// confidence gating: no enrichment from an uncertain result
	err := o.Enrich(context.Background(), model.EnrichExpand)
	require.Error(t, err)
	_, expand, nearby, podcast := gw.calls()
	assert.Zero(t, expand+nearby+podcast)
}

func TestNearbySelfFilter(t *testing.T) {
	gw := &mockGateway{
		nearbyFunc: func(ctx context.Context, req prompt.Request) ([]model.NearbyLandmark, error) {
			return []model.NearbyLandmark{
				{Name: "Louvre"},
				{Name: "Pont Neuf"},
				{Name: "Sainte-Chapelle"},
				{Name: "Palais Royal"},
				{Name: "Tuileries"},
			}, nil
		},
	}
	o, _, _ := newTestOrchestrator(gw, nil)

	require.NoError(t, o.SearchText(context.Background(), "Louvre"))
	waitPhase(t, o, model.PhasePresenting)

	require.NoError(t, o.Enrich(context.Background(), model.EnrichNearby))
	require.Eventually(t, func() bool {
		v := o.View()
		return v.Result != nil && len(v.Result.Nearby) > 0
	}, 3*time.Second, 10*time.Millisecond)

	nearby := o.View().Result.Nearby
	require.Len(t, nearby, 4, "the subject's own entry is filtered out")
	for _, e := range nearby {
		assert.NotEqual(t, "louvre", strings.ToLower(e.Name))
	}
}

func TestPodcastFailureKeepsPresenting(t *testing.T) {
	gw := &mockGateway{
		podcastFunc: func(ctx context.Context, req prompt.Request, title string) (*model.DerivativeScript, error) {
			return nil, &gateway.TransportError{Intent: "podcast", Err: errors.New("boom")}
		},
	}
	o, _, _ := newTestOrchestrator(gw, nil)

	require.NoError(t, o.SearchText(context.Background(), "Louvre"))
	waitPhase(t, o, model.PhasePresenting)

	require.NoError(t, o.Enrich(context.Background(), model.EnrichPodcast))
	require.Eventually(t, func() bool {
		return o.View().Error != ""
	}, 3*time.Second, 10*time.Millisecond)

	view := o.View()
	assert.Equal(t, model.PhasePresenting, view.Phase, "enrichment failure is not terminal")
	require.NotNil(t, view.Result)
	assert.Equal(t, "Louvre", view.Result.Title)
	assert.Nil(t, view.Result.Script)
}

func TestStaleIdentifySuppressed(t *testing.T) {
	block := make(chan struct{})
	gw := &mockGateway{
		identifyFunc: func(ctx context.Context, req prompt.Request, img []byte) (*model.AnalysisResult, error) {
			if req.Instruction == "Old Palace" {
				<-block
				return confident("Old Palace"), nil
			}
			return confident("New Palace"), nil
		},
	}
	o, _, _ := newTestOrchestrator(gw, nil)

	require.NoError(t, o.SearchText(context.Background(), "Old Palace"))
	assert.Equal(t, model.PhaseSubmitting, o.View().Phase)

	// supersede while the first request is still in flight
	require.NoError(t, o.SearchText(context.Background(), "New Palace"))
	view := waitPhase(t, o, model.PhasePresenting)
	require.NotNil(t, view.Result)
	assert.Equal(t, "New Palace", view.Result.Title)
	firstGen := view.Generation

	// the late response must not clobber the newer subject
	close(block)
	time.Sleep(100 * time.Millisecond)
	view = o.View()
	assert.Equal(t, "New Palace", view.Result.Title)
	assert.Equal(t, firstGen, view.Generation)
}

func TestEmptyQueryNeverCallsBackend(t *testing.T) {
	gw := &mockGateway{}
	o, _, _ := newTestOrchestrator(gw, nil)

	err := o.SearchText(context.Background(), "   \t ")
	require.ErrorIs(t, err, ErrEmptyQuery)

	identify, _, _, _ := gw.calls()
	assert.Zero(t, identify)
	assert.Equal(t, model.PhaseIdle, o.View().Phase)
}

func TestEnrichSingleFlightPerKind(t *testing.T) {
	block := make(chan struct{})
	gw := &mockGateway{
		expandFunc: func(ctx context.Context, req prompt.Request) (string, error) {
			<-block
			return "long history", nil
		},
	}
	o, _, _ := newTestOrchestrator(gw, nil)

	require.NoError(t, o.SearchText(context.Background(), "Louvre"))
	waitPhase(t, o, model.PhasePresenting)

	require.NoError(t, o.Enrich(context.Background(), model.EnrichExpand))
	err := o.Enrich(context.Background(), model.EnrichExpand)
	require.Error(t, err, "same kind must not run twice concurrently")

	// a different kind is independent
	require.NoError(t, o.Enrich(context.Background(), model.EnrichPodcast))

	close(block)
	require.Eventually(t, func() bool {
		v := o.View()
		return v.Result != nil && v.Result.History == "long history"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestScriptTitleMatchesSubject(t *testing.T) {
	gw := &mockGateway{}
	o, _, _ := newTestOrchestrator(gw, nil)

	require.NoError(t, o.SearchText(context.Background(), "Louvre"))
	waitPhase(t, o, model.PhasePresenting)

	require.NoError(t, o.Enrich(context.Background(), model.EnrichPodcast))
	require.Eventually(t, func() bool {
		v := o.View()
		return v.Result != nil && v.Result.Script != nil
	}, 3*time.Second, 10*time.Millisecond)

	view := o.View()
	assert.Equal(t, view.Result.Title, view.Result.Script.Title)
}

func TestSelectNearbyKeepsPool(t *testing.T) {
	gw := &mockGateway{
		identifyFunc: func(ctx context.Context, req prompt.Request, img []byte) (*model.AnalysisResult, error) {
			return confident(req.Instruction), nil
		},
		nearbyFunc: func(ctx context.Context, req prompt.Request) ([]model.NearbyLandmark, error) {
			return []model.NearbyLandmark{
				{Name: "Panthéon"},
				{Name: "Sorbonne"},
			}, nil
		},
	}
	o, _, _ := newTestOrchestrator(gw, nil)

	require.NoError(t, o.SearchText(context.Background(), "Notre-Dame"))
	waitPhase(t, o, model.PhasePresenting)
	require.NoError(t, o.Enrich(context.Background(), model.EnrichNearby))
	require.Eventually(t, func() bool {
		v := o.View()
		return v.Result != nil && len(v.Result.Nearby) == 2
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, o.SelectNearby(context.Background(), "Panthéon"))
	view := waitPhase(t, o, model.PhasePresenting)
	require.NotNil(t, view.Result)
	assert.Equal(t, "Panthéon", view.Result.Title)
	// the previous pool survives, minus the new subject itself
	require.Len(t, view.Result.Nearby, 1)
	assert.Equal(t, "Sorbonne", view.Result.Nearby[0].Name)
	// the hop starts a fresh subject: no script carried over
	assert.Nil(t, view.Result.Script)
}

func TestNewAcquisitionTearsDown(t *testing.T) {
	gw := &mockGateway{}
	o, _, narrator := newTestOrchestrator(gw, nil)

	require.NoError(t, o.SearchText(context.Background(), "Louvre"))
	view := waitPhase(t, o, model.PhasePresenting)
	gen := view.Generation

	require.NoError(t, o.StartAcquisition(context.Background()))
	view = o.View()
	assert.Equal(t, model.PhaseAcquiring, view.Phase)
	assert.Nil(t, view.Result)
	assert.Greater(t, view.Generation, gen)
	assert.GreaterOrEqual(t, narrator.resetCount(), 1)
}

func TestCameraFailureIsTerminal(t *testing.T) {
	gw := &mockGateway{}
	o, source, _ := newTestOrchestrator(gw, nil)
	source.acquireFunc = func(ctx context.Context) (Stream, error) {
		return nil, fmt.Errorf("permission denied")
	}

	err := o.StartAcquisition(context.Background())
	require.Error(t, err)
	view := o.View()
	assert.Equal(t, model.PhaseFailed, view.Phase)
	assert.NotEmpty(t, view.Error)
}

func TestCaptureWithoutStream(t *testing.T) {
	gw := &mockGateway{}
	o, _, _ := newTestOrchestrator(gw, nil)

	require.Error(t, o.Capture(context.Background()))
}

func TestReverifyReplacesWholesale(t *testing.T) {
	var sawReverify atomic.Bool
	gw := &mockGateway{
		identifyFunc: func(ctx context.Context, req prompt.Request, img []byte) (*model.AnalysisResult, error) {
			if req.Intent == prompt.IntentReverify {
				sawReverify.Store(true)
				return confident("Petit Palais"), nil
			}
			return confident("Grand Palais"), nil
		},
	}
	o, _, _ := newTestOrchestrator(gw, nil)

	require.NoError(t, o.SearchText(context.Background(), "palace"))
	waitPhase(t, o, model.PhasePresenting)
	assert.Equal(t, "Grand Palais", o.View().Result.Title)

	require.NoError(t, o.Reverify(context.Background()))
	require.Eventually(t, func() bool {
		v := o.View()
		return v.Phase == model.PhasePresenting && v.Result.Title == "Petit Palais"
	}, 3*time.Second, 10*time.Millisecond)
	assert.True(t, sawReverify.Load())
}

func TestReverifyCorrectionInvalidatesInFlightPodcast(t *testing.T) {
	block := make(chan struct{})
	gw := &mockGateway{
		identifyFunc: func(ctx context.Context, req prompt.Request, img []byte) (*model.AnalysisResult, error) {
			if req.Intent == prompt.IntentReverify {
				return confident("Corrected Palace"), nil
			}
			return confident("Wrong Palace"), nil
		},
		podcastFunc: func(ctx context.Context, req prompt.Request, title string) (*model.DerivativeScript, error) {
			<-block
			return &model.DerivativeScript{Title: title, Format: "podcast", Text: "script"}, nil
		},
	}
	o, _, _ := newTestOrchestrator(gw, nil)

	require.NoError(t, o.SearchText(context.Background(), "palace"))
	waitPhase(t, o, model.PhasePresenting)
	require.NoError(t, o.Enrich(context.Background(), model.EnrichPodcast))

	// the correction lands while the podcast is still in flight
	require.NoError(t, o.Reverify(context.Background()))
	require.Eventually(t, func() bool {
		v := o.View()
		return v.Phase == model.PhasePresenting && v.Result.Title == "Corrected Palace"
	}, 3*time.Second, 10*time.Millisecond)

	close(block)
	time.Sleep(100 * time.Millisecond)

	view := o.View()
	require.NotNil(t, view.Result)
	assert.Nil(t, view.Result.Script, "a script pinned to the old title must not merge")

	// the corrected subject can still be enriched afresh
	require.NoError(t, o.Enrich(context.Background(), model.EnrichPodcast))
	require.Eventually(t, func() bool {
		v := o.View()
		return v.Result != nil && v.Result.Script != nil
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Corrected Palace", o.View().Result.Script.Title)
}

func TestAutoNearbyFires(t *testing.T) {
	gw := &mockGateway{
		nearbyFunc: func(ctx context.Context, req prompt.Request) ([]model.NearbyLandmark, error) {
			return []model.NearbyLandmark{{Name: "Palais Garnier"}}, nil
		},
	}
	source := &mockSource{}
	narrator := &mockNarrator{}
	o := New(testConfig(true, false), mockBuilder{}, gw, source, narrator, nil)

	require.NoError(t, o.SearchText(context.Background(), "Louvre"))
	require.Eventually(t, func() bool {
		v := o.View()
		return v.Result != nil && len(v.Result.Nearby) == 1
	}, 3*time.Second, 10*time.Millisecond)

	_, _, nearbyCalls, _ := gw.calls()
	assert.Equal(t, 1, nearbyCalls)
}

func TestNearbyGroundingRecomputes(t *testing.T) {
	gw := &mockGateway{
		nearbyFunc: func(ctx context.Context, req prompt.Request) ([]model.NearbyLandmark, error) {
			return []model.NearbyLandmark{{Name: "Pont des Arts", Distance: 99}}, nil
		},
	}
	grounder := &mockGrounder{
		subjectFunc: func(ctx context.Context, title, locale string) (*Grounding, error) {
			return &Grounding{Extract: "wiki extract", Lat: 48.86, Lon: 2.34, HasCoords: true}, nil
		},
		nearbyFunc: func(ctx context.Context, lat, lon float64, entries []model.NearbyLandmark) []model.NearbyLandmark {
			out := make([]model.NearbyLandmark, len(entries))
			copy(out, entries)
			for i := range out {
				out[i].Distance = 0.4
				out[i].Direction = "northwest"
			}
			return out
		},
	}
	o, _, _ := newTestOrchestrator(gw, grounder)

	require.NoError(t, o.SearchText(context.Background(), "Louvre"))
	waitPhase(t, o, model.PhasePresenting)

	// grounding lands asynchronously; retry the enrichment until the
	// recomputed geometry shows up.
	require.Eventually(t, func() bool {
		_ = o.Enrich(context.Background(), model.EnrichNearby)
		v := o.View()
		return v.Result != nil && len(v.Result.Nearby) == 1 && v.Result.Nearby[0].Distance == 0.4
	}, 3*time.Second, 25*time.Millisecond)

	assert.Equal(t, "northwest", o.View().Result.Nearby[0].Direction)
}

func TestSubmitTimeoutSurfacesAsFailure(t *testing.T) {
	gw := &mockGateway{
		identifyFunc: func(ctx context.Context, req prompt.Request, img []byte) (*model.AnalysisResult, error) {
			<-ctx.Done()
			return nil, &gateway.TransportError{Intent: "identify", Err: ctx.Err()}
		},
	}
	source := &mockSource{}
	cfg := config.DefaultConfig()
	cfg.Discovery.AutoNearby = false
	cfg.Wiki.Enabled = false
	cfg.Discovery.SubmitTimeout = config.Duration(50 * time.Millisecond)
	o := New(config.NewProvider(cfg, nil), mockBuilder{}, gw, source, &mockNarrator{}, nil)

	require.NoError(t, o.SearchText(context.Background(), "Louvre"))
	view := waitPhase(t, o, model.PhaseFailed)
	assert.Contains(t, view.Error, "timed out")
}

func TestNarrateReadsSection(t *testing.T) {
	gw := &mockGateway{}
	o, _, narrator := newTestOrchestrator(gw, nil)

	require.Error(t, o.Narrate(context.Background(), model.SectionHistory), "nothing to narrate while idle")

	require.NoError(t, o.SearchText(context.Background(), "Louvre"))
	waitPhase(t, o, model.PhasePresenting)

	require.NoError(t, o.Narrate(context.Background(), model.SectionHistory))
	assert.Equal(t, []string{model.SectionHistory}, narrator.reads)

	require.Error(t, o.Narrate(context.Background(), model.SectionScript), "empty section has no content")
}

func TestResetReturnsToIdle(t *testing.T) {
	gw := &mockGateway{}
	o, source, narrator := newTestOrchestrator(gw, nil)

	require.NoError(t, o.SearchText(context.Background(), "Louvre"))
	waitPhase(t, o, model.PhasePresenting)

	o.Shutdown()
	view := o.View()
	assert.Equal(t, model.PhaseIdle, view.Phase)
	assert.Nil(t, view.Result)
	assert.GreaterOrEqual(t, narrator.resetCount(), 2)
	source.mu.Lock()
	released := source.releaseAll
	source.mu.Unlock()
	assert.Equal(t, 1, released)
}
