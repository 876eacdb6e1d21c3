package discovery

import (
	"context"
	"io"
	"sync"

	"github.com/NagiElgarhi/view-tours/pkg/model"
	"github.com/NagiElgarhi/view-tours/pkg/prompt"
)

type mockGateway struct {
	mu sync.Mutex

	identifyFunc func(ctx context.Context, req prompt.Request, img []byte) (*model.AnalysisResult, error)
	expandFunc   func(ctx context.Context, req prompt.Request) (string, error)
	nearbyFunc   func(ctx context.Context, req prompt.Request) ([]model.NearbyLandmark, error)
	podcastFunc  func(ctx context.Context, req prompt.Request, title string) (*model.DerivativeScript, error)

	identifyCalls int
	expandCalls   int
	nearbyCalls   int
	podcastCalls  int
}

func (m *mockGateway) Identify(ctx context.Context, req prompt.Request, img []byte) (*model.AnalysisResult, error) {
	m.mu.Lock()
	m.identifyCalls++
	fn := m.identifyFunc
	m.mu.Unlock()
	if fn == nil {
		// Echo the built subject so title assertions line up with the
		// query under test.
		title := req.Instruction
		if title == "" {
			title = "Mock Subject"
		}
		return confident(title), nil
	}
	return fn(ctx, req, img)
}

func (m *mockGateway) Expand(ctx context.Context, req prompt.Request) (string, error) {
	m.mu.Lock()
	m.expandCalls++
	fn := m.expandFunc
	m.mu.Unlock()
	if fn == nil {
		return "expanded history", nil
	}
	return fn(ctx, req)
}

func (m *mockGateway) Nearby(ctx context.Context, req prompt.Request) ([]model.NearbyLandmark, error) {
	m.mu.Lock()
	m.nearbyCalls++
	fn := m.nearbyFunc
	m.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, req)
}

func (m *mockGateway) Podcast(ctx context.Context, req prompt.Request, title string) (*model.DerivativeScript, error) {
	m.mu.Lock()
	m.podcastCalls++
	fn := m.podcastFunc
	m.mu.Unlock()
	if fn == nil {
		return &model.DerivativeScript{Title: title, Format: "podcast", Text: "script"}, nil
	}
	return fn(ctx, req, title)
}

func (m *mockGateway) calls() (identify, expand, nearby, podcast int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identifyCalls, m.expandCalls, m.nearbyCalls, m.podcastCalls
}

// mockBuilder stamps the subject into the request so test gateways can
// tell which subject a call belongs to.
type mockBuilder struct{}

func (mockBuilder) Build(ctx context.Context, intent string, subject prompt.Subject) (prompt.Request, error) {
	instruction := subject.Query
	if instruction == "" {
		instruction = subject.Title
	}
	return prompt.Request{Intent: intent, Instruction: instruction, Locale: "en-US"}, nil
}

type mockStream struct {
	mu        sync.Mutex
	stillFunc func(ctx context.Context) ([]byte, error)
	released  bool
}

func (m *mockStream) Still(ctx context.Context) ([]byte, error) {
	if m.stillFunc != nil {
		return m.stillFunc(ctx)
	}
	return []byte("jpeg-bytes"), nil
}

func (m *mockStream) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = true
}

func (m *mockStream) wasReleased() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

type mockSource struct {
	mu          sync.Mutex
	acquireFunc func(ctx context.Context) (Stream, error)
	decodeFunc  func(r io.Reader) ([]byte, error)
	releaseAll  int
}

func (m *mockSource) Acquire(ctx context.Context) (Stream, error) {
	if m.acquireFunc != nil {
		return m.acquireFunc(ctx)
	}
	return &mockStream{}, nil
}

func (m *mockSource) DecodeUpload(r io.Reader) ([]byte, error) {
	if m.decodeFunc != nil {
		return m.decodeFunc(r)
	}
	return []byte("normalized-jpeg"), nil
}

func (m *mockSource) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseAll++
}

type mockNarrator struct {
	mu     sync.Mutex
	resets int
	reads  []string
}

func (m *mockNarrator) Read(ctx context.Context, text, sectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = append(m.reads, sectionID)
	return nil
}

func (m *mockNarrator) View() model.NarrationView {
	return model.NarrationView{}
}

func (m *mockNarrator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
}

func (m *mockNarrator) resetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

type mockGrounder struct {
	mu          sync.Mutex
	subjectFunc func(ctx context.Context, title, locale string) (*Grounding, error)
	nearbyFunc  func(ctx context.Context, lat, lon float64, entries []model.NearbyLandmark) []model.NearbyLandmark
	nearbyCalls int
}

func (m *mockGrounder) Subject(ctx context.Context, title, locale string) (*Grounding, error) {
	if m.subjectFunc != nil {
		return m.subjectFunc(ctx, title, locale)
	}
	return nil, nil
}

func (m *mockGrounder) Nearby(ctx context.Context, lat, lon float64, entries []model.NearbyLandmark) []model.NearbyLandmark {
	m.mu.Lock()
	m.nearbyCalls++
	fn := m.nearbyFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, lat, lon, entries)
	}
	return entries
}

// confident builds a minimal confident result.
func confident(title string) *model.AnalysisResult {
	return &model.AnalysisResult{
		Title:        title,
		Message:      "identified",
		History:      "some history",
		Architecture: "some architecture",
		FunFacts:     []string{"fact one"},
	}
}
