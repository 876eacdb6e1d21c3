package failover

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/NagiElgarhi/view-tours/pkg/llm"
	"github.com/NagiElgarhi/view-tours/pkg/request"
)

// Provider wraps multiple LLM providers behind one llm.Provider.
//
// A single call is served by exactly one underlying provider: the chain
// never retries a failed call, it only influences which provider serves
// the NEXT call (cool-down via backoff, circuit breaker for fatal auth
// errors). The caller owns any re-ask policy.
type Provider struct {
	providers []llm.Provider
	names     []string
	disabled  map[int]bool
	backoff   *request.ProviderBackoff // key: providerName:profileName
	logPath   string
	enabled   bool
	mu        sync.RWMutex
}

// New creates a failover chain over the ordered provider list.
func New(providers []llm.Provider, names []string, backoff *request.ProviderBackoff, logPath string, logEnabled bool) (*Provider, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one provider required for failover")
	}
	if len(providers) != len(names) {
		return nil, fmt.Errorf("provider count (%d) does not match name count (%d)", len(providers), len(names))
	}
	if backoff == nil {
		backoff = request.NewProviderBackoff(time.Second, 5*time.Minute)
	}

	return &Provider{
		providers: providers,
		names:     names,
		disabled:  make(map[int]bool),
		backoff:   backoff,
		logPath:   logPath,
		enabled:   logEnabled,
	}, nil
}

// GenerateText implements llm.Provider.
func (f *Provider) GenerateText(ctx context.Context, name, prompt string) (string, error) {
	res, err := f.execute(name, prompt, func(p llm.Provider) (any, error) {
		return p.GenerateText(ctx, name, prompt)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// GenerateJSON implements llm.Provider.
func (f *Provider) GenerateJSON(ctx context.Context, name, prompt string, target any) error {
	_, err := f.execute(name, prompt, func(p llm.Provider) (any, error) {
		if err := p.GenerateJSON(ctx, name, prompt, target); err != nil {
			return nil, err
		}
		return target, nil
	})
	return err
}

// GenerateImageJSON implements llm.Provider.
func (f *Provider) GenerateImageJSON(ctx context.Context, name, prompt string, img llm.Image, target any) error {
	_, err := f.execute(name, prompt, func(p llm.Provider) (any, error) {
		if err := p.GenerateImageJSON(ctx, name, prompt, img, target); err != nil {
			return nil, err
		}
		return target, nil
	})
	return err
}

// HasProfile implements llm.Provider.
func (f *Provider) HasProfile(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, p := range f.providers {
		if p.HasProfile(name) {
			return true
		}
	}
	return false
}

// HealthCheck verifies that at least one active provider is healthy.
func (f *Provider) HealthCheck(ctx context.Context) error {
	f.mu.RLock()
	providers := f.providers
	names := f.names
	disabled := make(map[int]bool, len(f.disabled))
	for k, v := range f.disabled {
		disabled[k] = v
	}
	f.mu.RUnlock()

	var errs []string
	for i, p := range providers {
		if disabled[i] {
			continue
		}
		if err := p.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", names[i], err))
			continue
		}
		return nil // At least one is healthy
	}

	if len(errs) == 0 {
		return fmt.Errorf("no providers available in failover chain")
	}
	return fmt.Errorf("all LLM providers failed health check: %s", strings.Join(errs, "; "))
}

// selectCandidate picks one provider for this call: first non-disabled candidate
// supporting the profile whose backoff window has elapsed. When every
// supporting candidate is cooling down, the first one serves anyway so a
// call is never refused while a provider exists.
func (f *Provider) selectCandidate(profile string) (llm.Provider, string, int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	firstIdx := -1
	for i, p := range f.providers {
		if f.disabled[i] || !p.HasProfile(profile) {
			continue
		}
		if firstIdx < 0 {
			firstIdx = i
		}
		if f.backoff.Ready(f.names[i] + ":" + profile) {
			return p, f.names[i], i, nil
		}
	}

	if firstIdx >= 0 {
		slog.Debug("LLM: all candidates in backoff, using first", "profile", profile, "provider", f.names[firstIdx])
		return f.providers[firstIdx], f.names[firstIdx], firstIdx, nil
	}
	return nil, "", -1, fmt.Errorf("no active provider supports profile %q", profile)
}

// execute runs fn against exactly one provider of the chain.
func (f *Provider) execute(profile, prompt string, fn func(llm.Provider) (any, error)) (any, error) {
	p, name, idx, err := f.selectCandidate(profile)
	if err != nil {
		return nil, err
	}

	backoffKey := name + ":" + profile

	res, err := fn(p)
	if err == nil {
		f.backoff.RecordSuccess(backoffKey)
		f.logRequest(name, profile, prompt, fmt.Sprintf("%v", res), nil)
		return res, nil
	}

	f.logRequest(name, profile, prompt, "", err)

	if isUnrecoverable(err) {
		slog.Warn("LLM provider fatal error, disabling for the session", "provider", name, "error", err)
		f.mu.Lock()
		f.disabled[idx] = true
		f.mu.Unlock()
	} else {
		f.backoff.RecordFailure(backoffKey)
	}

	return nil, err
}

func (f *Provider) logRequest(providerName, callName, prompt, response string, err error) {
	if f.logPath == "" || !f.enabled {
		return
	}

	if mkErr := os.MkdirAll(filepath.Dir(f.logPath), 0o755); mkErr != nil {
		return
	}

	file, fErr := os.OpenFile(f.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if fErr != nil {
		return
	}
	defer file.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	var entry string

	if err != nil {
		// Failed requests log only the fact and the reason.
		entry = fmt.Sprintf("[%s][%s] ERROR: %s - %v\n%s\n",
			timestamp, strings.ToUpper(providerName), callName, err, strings.Repeat("-", 80))
	} else {
		wrappedResponse := llm.WordWrap(response, 80)
		truncatedPrompt := llm.TruncateParagraphs(prompt, 80)

		entry = fmt.Sprintf("[%s][%s] PROMPT: %s\nPROMPT_TEXT:\n%s\n\nRESPONSE:\n%s\n%s\n",
			timestamp, strings.ToUpper(providerName), callName, truncatedPrompt, wrappedResponse, strings.Repeat("-", 80))
	}

	_, _ = file.WriteString(entry)
}

// isUnrecoverable identifies errors that should trip the circuit breaker.
func isUnrecoverable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	// 401: Unauthorized (invalid key)
	// 403: Forbidden (disabled key / restricted access)
	// 429 (Too Many Requests) and 400 (Bad Request) are NOT fatal: they
	// may be transient or model-specific and don't warrant disabling the
	// provider.
	return strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "invalid_api_key")
}
