package probe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/NagiElgarhi/view-tours/pkg/llm"
	"github.com/NagiElgarhi/view-tours/pkg/speech"
)

// LLM verifies the backend provider chain is configured and reachable.
// This is the one check the application cannot run without.
func LLM(p llm.Provider) Probe {
	return Probe{
		Name:     "LLM Providers",
		Check:    p.HealthCheck,
		Critical: true,
	}
}

// Speech verifies a synthesis engine can list voices. Narration
// degrades to the fallback engine when this fails, so it is a warning.
func Speech(name string, engine speech.Provider) Probe {
	return Probe{
		Name: fmt.Sprintf("Speech (%s)", name),
		Check: func(ctx context.Context) error {
			voices, err := engine.Voices(ctx)
			if err != nil {
				return err
			}
			if len(voices) == 0 {
				return fmt.Errorf("engine reports no voices")
			}
			return nil
		},
		Critical: false,
	}
}

// Grounding verifies the Wikipedia layer answers. Discovery works
// without grounding, so it is a warning.
func Grounding(check func(ctx context.Context) error) Probe {
	return Probe{
		Name:     "Wikipedia Grounding",
		Check:    check,
		Critical: false,
	}
}

// DataDir verifies the data directory is writable; the speech cache
// and database live under it.
func DataDir(path string) Probe {
	return Probe{
		Name: "Data Directory",
		Check: func(ctx context.Context) error {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
			f, err := os.CreateTemp(path, "probe-*")
			if err != nil {
				return fmt.Errorf("not writable: %w", err)
			}
			name := f.Name()
			f.Close()
			return os.Remove(filepath.Clean(name))
		},
		Critical: true,
	}
}
