package probe

import (
	"context"
	"errors"
	"testing"

	"github.com/NagiElgarhi/view-tours/pkg/speech"
)

type fakeEngine struct {
	voices []speech.Voice
	err    error
}

func (f *fakeEngine) Synthesize(ctx context.Context, text, voice, outputPath string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeEngine) Voices(ctx context.Context) ([]speech.Voice, error) {
	return f.voices, f.err
}

func TestSpeechProbe(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		p := Speech("edge-tts", &fakeEngine{voices: []speech.Voice{{ID: "en-US-AvaMultilingualNeural"}}})
		if p.Critical {
			t.Error("speech probe must not be critical")
		}
		if err := p.Check(context.Background()); err != nil {
			t.Errorf("expected pass, got %v", err)
		}
	})

	t.Run("NoVoices", func(t *testing.T) {
		p := Speech("edge-tts", &fakeEngine{})
		if err := p.Check(context.Background()); err == nil {
			t.Error("expected failure for empty voice list")
		}
	})

	t.Run("EngineError", func(t *testing.T) {
		p := Speech("edge-tts", &fakeEngine{err: errors.New("handshake failed")})
		if err := p.Check(context.Background()); err == nil {
			t.Error("expected failure when engine errors")
		}
	})
}

func TestDataDirProbe(t *testing.T) {
	p := DataDir(t.TempDir())
	if !p.Critical {
		t.Error("data dir probe must be critical")
	}
	if err := p.Check(context.Background()); err != nil {
		t.Errorf("expected writable temp dir to pass, got %v", err)
	}
}

func TestGroundingProbe(t *testing.T) {
	sentinel := errors.New("unreachable")
	p := Grounding(func(ctx context.Context) error { return sentinel })
	if p.Critical {
		t.Error("grounding probe must not be critical")
	}
	if !errors.Is(p.Check(context.Background()), sentinel) {
		t.Error("expected probe to surface the check error")
	}
}
