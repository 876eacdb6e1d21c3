package logging

import (
	"strings"
	"sync"
)

const captureRingSize = 200

// LogCaptureWriter is a thread-safe writer keeping a small ring of recent
// log lines for the UI log view.
type LogCaptureWriter struct {
	mu    sync.RWMutex
	lines []string
	next  int
	full  bool
}

// GlobalLogCapture is the singleton instance for capturing logs.
var GlobalLogCapture = NewLogCaptureWriter()

// NewLogCaptureWriter creates an empty capture ring.
func NewLogCaptureWriter() *LogCaptureWriter {
	return &LogCaptureWriter{lines: make([]string, captureRingSize)}
}

// Write implements io.Writer. Each write is treated as one log line.
func (w *LogCaptureWriter) Write(p []byte) (n int, err error) {
	line := strings.TrimRight(string(p), "\n")
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines[w.next] = line
	w.next = (w.next + 1) % len(w.lines)
	if w.next == 0 {
		w.full = true
	}
	return len(p), nil
}

// GetLastLine returns the most recent log line.
func (w *LogCaptureWriter) GetLastLine() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	idx := w.next - 1
	if idx < 0 {
		if !w.full {
			return ""
		}
		idx = len(w.lines) - 1
	}
	return w.lines[idx]
}

// Lines returns up to n most recent lines, oldest first.
func (w *LogCaptureWriter) Lines(n int) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	size := w.next
	if w.full {
		size = len(w.lines)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]string, 0, n)
	start := w.next - n
	if start < 0 {
		start += len(w.lines)
	}
	for i := 0; i < n; i++ {
		out = append(out, w.lines[(start+i)%len(w.lines)])
	}
	return out
}
