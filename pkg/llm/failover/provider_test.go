package failover

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NagiElgarhi/view-tours/pkg/llm"
	"github.com/NagiElgarhi/view-tours/pkg/request"
)

// mockProvider is a scriptable llm.Provider.
type mockProvider struct {
	profiles  map[string]bool
	textFunc  func() (string, error)
	calls     int
	healthErr error
}

func (m *mockProvider) GenerateText(ctx context.Context, name, prompt string) (string, error) {
	m.calls++
	if m.textFunc != nil {
		return m.textFunc()
	}
	return "ok", nil
}

func (m *mockProvider) GenerateJSON(ctx context.Context, name, prompt string, target any) error {
	m.calls++
	if m.textFunc != nil {
		if _, err := m.textFunc(); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockProvider) GenerateImageJSON(ctx context.Context, name, prompt string, img llm.Image, target any) error {
	return m.GenerateJSON(ctx, name, prompt, target)
}

func (m *mockProvider) HealthCheck(ctx context.Context) error { return m.healthErr }

func (m *mockProvider) HasProfile(name string) bool { return m.profiles[name] }

func newChain(t *testing.T, providers ...*mockProvider) *Provider {
	t.Helper()
	ps := make([]llm.Provider, len(providers))
	names := make([]string, len(providers))
	for i, p := range providers {
		ps[i] = p
		names[i] = string(rune('a' + i))
	}
	bo := request.NewProviderBackoff(time.Minute, time.Hour)
	f, err := New(ps, names, bo, "", false)
	require.NoError(t, err)
	return f
}

func allProfiles() map[string]bool {
	return map[string]bool{"identify": true, "reverify": true, "expand": true}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, nil, nil, "", false)
	assert.Error(t, err)

	_, err = New([]llm.Provider{&mockProvider{}}, []string{"a", "b"}, nil, "", false)
	assert.Error(t, err)
}

func TestSingleCallPerRequest(t *testing.T) {
	// A failing first provider must NOT cause a second call within the
	// same request; the chain only demotes it for subsequent requests.
	p1 := &mockProvider{profiles: allProfiles(), textFunc: func() (string, error) {
		return "", errors.New("boom 500")
	}}
	p2 := &mockProvider{profiles: allProfiles()}
	f := newChain(t, p1, p2)

	_, err := f.GenerateText(context.Background(), "identify", "x")
	require.Error(t, err)
	assert.Equal(t, 1, p1.calls)
	assert.Equal(t, 0, p2.calls, "no in-request failover")

	// Next request goes to the second provider while the first cools down.
	out, err := f.GenerateText(context.Background(), "identify", "x")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 1, p1.calls)
	assert.Equal(t, 1, p2.calls)
}

func TestCircuitBreaker_FatalDisables(t *testing.T) {
	p1 := &mockProvider{profiles: allProfiles(), textFunc: func() (string, error) {
		return "", errors.New("401 unauthorized")
	}}
	p2 := &mockProvider{profiles: allProfiles()}
	f := newChain(t, p1, p2)

	_, err := f.GenerateText(context.Background(), "identify", "x")
	require.Error(t, err)

	// p1 is disabled for the session; every subsequent call goes to p2.
	for i := 0; i < 3; i++ {
		_, err := f.GenerateText(context.Background(), "identify", "x")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, p1.calls)
	assert.Equal(t, 3, p2.calls)
}

func TestProfileRouting(t *testing.T) {
	p1 := &mockProvider{profiles: map[string]bool{"identify": true}}
	p2 := &mockProvider{profiles: map[string]bool{"podcast": true}}
	f := newChain(t, p1, p2)

	_, err := f.GenerateText(context.Background(), "podcast", "x")
	require.NoError(t, err)
	assert.Equal(t, 0, p1.calls)
	assert.Equal(t, 1, p2.calls)

	_, err = f.GenerateText(context.Background(), "nearby", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active provider")
}

func TestAllInBackoff_StillServes(t *testing.T) {
	fail := errors.New("boom")
	p1 := &mockProvider{profiles: allProfiles(), textFunc: func() (string, error) { return "", fail }}
	f := newChain(t, p1)

	_, err := f.GenerateText(context.Background(), "identify", "x")
	require.Error(t, err)

	// Sole provider is cooling down but must still serve.
	_, err = f.GenerateText(context.Background(), "identify", "x")
	require.Error(t, err)
	assert.Equal(t, 2, p1.calls)
}

func TestHasProfile_Union(t *testing.T) {
	p1 := &mockProvider{profiles: map[string]bool{"identify": true}}
	p2 := &mockProvider{profiles: map[string]bool{"podcast": true}}
	f := newChain(t, p1, p2)

	assert.True(t, f.HasProfile("identify"))
	assert.True(t, f.HasProfile("podcast"))
	assert.False(t, f.HasProfile("nearby"))
}

func TestHealthCheck(t *testing.T) {
	p1 := &mockProvider{profiles: allProfiles(), healthErr: errors.New("bad key")}
	p2 := &mockProvider{profiles: allProfiles()}
	f := newChain(t, p1, p2)
	assert.NoError(t, f.HealthCheck(context.Background()))

	p2.healthErr = errors.New("down")
	assert.Error(t, f.HealthCheck(context.Background()))
}

func TestIsUnrecoverable(t *testing.T) {
	assert.True(t, isUnrecoverable(errors.New("status 401")))
	assert.True(t, isUnrecoverable(errors.New("Forbidden")))
	assert.True(t, isUnrecoverable(errors.New("invalid_api_key")))
	assert.False(t, isUnrecoverable(errors.New("status 429")))
	assert.False(t, isUnrecoverable(errors.New("status 400")))
	assert.False(t, isUnrecoverable(nil))
}
