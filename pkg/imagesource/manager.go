package imagesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/NagiElgarhi/view-tours/pkg/llm/imageutil"
	"github.com/NagiElgarhi/view-tours/pkg/logging"
)

// ErrDeviceUnavailable is returned when the camera device is disabled
// or never delivers a frame within the warm-up window.
var ErrDeviceUnavailable = errors.New("camera device unavailable")

// maxUploadBytes caps decoded uploads; anything bigger is rejected
// before decoding.
const maxUploadBytes = 20 << 20

// Manager normalizes the three acquisition paths (live camera frames,
// file upload, text-only/none) behind one boundary. The browser is the
// actual camera: it posts preview frames into the active Stream.
//
// At most one Stream is live; acquiring a new one tears down the
// previous one first.
type Manager struct {
	mu      sync.Mutex
	current *Stream
	warmup  time.Duration
	enabled bool
}

// NewManager creates a Manager. warmup bounds how long Still waits for
// a first frame; disabled managers fail every Acquire.
func NewManager(warmup time.Duration, enabled bool) *Manager {
	if warmup <= 0 {
		warmup = 8 * time.Second
	}
	return &Manager{warmup: warmup, enabled: enabled}
}

// Acquire claims the camera. Any previously acquired stream is released
// first — the device is exclusively owned.
func (m *Manager) Acquire(ctx context.Context) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return nil, fmt.Errorf("%w: camera disabled by configuration", ErrDeviceUnavailable)
	}

	if m.current != nil {
		m.current.Release()
	}

	s := &Stream{
		warmup:  m.warmup,
		frameCh: make(chan struct{}),
	}
	m.current = s
	slog.Debug("ImageSource: stream acquired")
	return s, nil
}

// Current returns the live stream, or nil.
func (m *Manager) Current() *Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.Released() {
		m.current = nil
	}
	return m.current
}

// ReleaseAll tears down the live stream, if any. Safe to call on every
// exit path.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Release()
		m.current = nil
	}
}

// DecodeUpload reads an uploaded image file and normalizes it for
// backend submission (downscale + JPEG re-encode).
func (m *Manager) DecodeUpload(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(data) > maxUploadBytes {
		return nil, fmt.Errorf("upload exceeds %d bytes", maxUploadBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty upload")
	}

	out, _, err := imageutil.PrepareForLLM(data)
	if err != nil {
		return nil, fmt.Errorf("decoding upload: %w", err)
	}
	return out, nil
}

// Stream is one exclusively-owned camera acquisition. The presentation
// layer feeds preview frames in; Still hands the latest one out.
type Stream struct {
	mu       sync.Mutex
	frame    []byte
	frameCh  chan struct{} // closed once the first frame arrives
	gotFirst bool
	released bool
	warmup   time.Duration
}

// SubmitFrame stores a preview frame as the current still candidate.
// Frames posted after release are dropped.
func (s *Stream) SubmitFrame(jpeg []byte) {
	if len(jpeg) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}

	s.frame = append(s.frame[:0], jpeg...)
	logging.TraceDefault("ImageSource: frame submitted", "bytes", len(jpeg))
	if !s.gotFirst {
		s.gotFirst = true
		close(s.frameCh)
	}
}

// Still returns a copy of the latest frame, waiting up to the warm-up
// window for the first one. A stream that never produces a frame is a
// device failure.
func (s *Stream) Still(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: stream already released", ErrDeviceUnavailable)
	}
	ch := s.frameCh
	got := s.gotFirst
	s.mu.Unlock()

	if !got {
		timer := time.NewTimer(s.warmup)
		defer timer.Stop()
		select {
		case <-ch:
		case <-timer.C:
			return nil, fmt.Errorf("%w: no frame within %s", ErrDeviceUnavailable, s.warmup)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released || len(s.frame) == 0 {
		return nil, fmt.Errorf("%w: stream closed before a frame arrived", ErrDeviceUnavailable)
	}
	out := make([]byte, len(s.frame))
	copy(out, s.frame)
	return out, nil
}

// Release stops the stream. Idempotent; called on every exit path.
func (s *Stream) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	s.frame = nil
	if !s.gotFirst {
		s.gotFirst = true
		close(s.frameCh) // wake any Still waiter so it can fail fast
	}
	slog.Debug("ImageSource: stream released")
}

// Released reports whether the stream has been torn down.
func (s *Stream) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
