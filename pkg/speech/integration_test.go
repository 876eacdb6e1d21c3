package speech_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/NagiElgarhi/view-tours/pkg/speech/edgetts"
	"github.com/NagiElgarhi/view-tours/pkg/speech/sapi"
	"github.com/NagiElgarhi/view-tours/pkg/tracker"
)

func TestLocal_SAPI(t *testing.T) {
	if runtime.GOOS != "windows" {
		t.Skip("SAPI only works on Windows")
	}
	if os.Getenv("TEST_SPEECH") == "" {
		t.Skip("Set TEST_SPEECH=1 to run SAPI integration test")
	}

	p := sapi.NewProvider()
	outputPath := filepath.Join(t.TempDir(), "test_sapi.wav")

	format, err := p.Synthesize(context.Background(), "This is a local SAPI test.", "", outputPath)
	if err != nil {
		t.Fatalf("SAPI synthesis failed: %v", err)
	}

	if format != "wav" {
		t.Errorf("Expected wav, got %s", format)
	}

	if _, err := os.Stat(outputPath); err != nil {
		t.Errorf("Output file was not created: %v", err)
	}
}

func TestOnline_EdgeTTS(t *testing.T) {
	if os.Getenv("TEST_SPEECH") == "" {
		t.Skip("Set TEST_SPEECH=1 to run Edge TTS integration test")
	}

	p := edgetts.NewProvider(tracker.New())
	outputPath := filepath.Join(t.TempDir(), "test_edge.mp3")

	format, err := p.Synthesize(context.Background(), "This is an Edge TTS online test.", "en-US-AvaMultilingualNeural", outputPath)
	if err != nil {
		t.Fatalf("Edge TTS synthesis failed: %v", err)
	}

	if format != "mp3" {
		t.Errorf("Expected mp3, got %s", format)
	}

	if _, err := os.Stat(outputPath); err != nil {
		t.Errorf("Output file was not created: %v", err)
	}
}

func TestVoices_SAPI(t *testing.T) {
	if runtime.GOOS != "windows" {
		t.Skip("SAPI only works on Windows")
	}
	if os.Getenv("TEST_SPEECH") == "" {
		t.Skip("Set TEST_SPEECH=1 to run SAPI integration test")
	}

	p := sapi.NewProvider()
	voices, err := p.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices failed: %v", err)
	}

	if len(voices) == 0 {
		t.Log("No SAPI voices found (this can happen in some Windows environments, synthesis is verified separately)")
	}

	for _, v := range voices {
		t.Logf("Found voice: %s (%s)", v.Name, v.ID)
	}
}
