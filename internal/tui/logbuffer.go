package tui

import (
	"strings"
	"sync"
)

// DefaultLogLines bounds the log pane history.
const DefaultLogLines = 500

// LogBuffer is an io.Writer collecting log lines for the log pane. Writers
// never block on the UI; the model drains the buffer once per frame.
type LogBuffer struct {
	mu    sync.Mutex
	lines []string
	max   int
}

// NewLogBuffer creates a buffer keeping at most limit undrained lines.
func NewLogBuffer(limit int) *LogBuffer {
	if limit <= 0 {
		limit = DefaultLogLines
	}
	return &LogBuffer{max: limit}
}

// Write splits p into lines and stores them.
func (b *LogBuffer) Write(p []byte) (int, error) {
	text := strings.TrimRight(string(p), "\n")
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range strings.Split(text, "\n") {
		b.lines = append(b.lines, l)
	}
	if over := len(b.lines) - b.max; over > 0 {
		b.lines = append(b.lines[:0], b.lines[over:]...)
	}
	return len(p), nil
}

// Drain returns and clears the pending lines.
func (b *LogBuffer) Drain() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.lines
	b.lines = nil
	return out
}
