package logger

import (
	"context"
	"io"
	"sync"
)

// Sink receives every encoded log line and ships it somewhere durable.
// Write must not block on network I/O; Flush is where shipping happens
type Sink interface {
	io.Writer
	Flush(ctx context.Context) error
}

// FlushAll flushes every sink and returns the first error
func FlushAll(ctx context.Context, sinks ...Sink) error {
	var first error
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if err := s.Flush(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// MemorySink keeps lines in memory. Useful in tests and for short CLI runs
type MemorySink struct {
	mu    sync.Mutex
	lines [][]byte
}

// Write stores a copy of p
func (m *MemorySink) Write(p []byte) (int, error) {
	b := make([]byte, len(p))
	copy(b, p)
	m.mu.Lock()
	m.lines = append(m.lines, b)
	m.mu.Unlock()
	return len(p), nil
}

// Flush is a no-op
func (m *MemorySink) Flush(context.Context) error { return nil }

// Lines returns the captured lines as strings
func (m *MemorySink) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.lines))
	for i, l := range m.lines {
		out[i] = string(l)
	}
	return out
}
