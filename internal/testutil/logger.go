// Package testutil provides test utilities for structured logging.
package testutil

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

// NewTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// Entry is a captured log record.
type Entry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]slog.Value
}

// Capture records every log entry so tests can assert on them.
type Capture struct {
	mu      sync.Mutex
	entries []Entry
	attrs   []slog.Attr
	parent  *Capture
}

// NewCaptureLogger returns a logger backed by a Capture.
func NewCaptureLogger() (*slog.Logger, *Capture) {
	c := &Capture{}
	return slog.New(c), c
}

func (c *Capture) root() *Capture {
	if c.parent != nil {
		return c.parent.root()
	}
	return c
}

// Enabled implements slog.Handler.
func (c *Capture) Enabled(context.Context, slog.Level) bool { return true }

// Handle implements slog.Handler.
func (c *Capture) Handle(_ context.Context, r slog.Record) error {
	e := Entry{Level: r.Level, Message: r.Message, Attrs: map[string]slog.Value{}}
	for _, a := range c.attrs {
		e.Attrs[a.Key] = a.Value
	}
	r.Attrs(func(a slog.Attr) bool {
		e.Attrs[a.Key] = a.Value
		return true
	})

	root := c.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	root.entries = append(root.entries, e)
	return nil
}

// WithAttrs implements slog.Handler.
func (c *Capture) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Capture{attrs: append(append([]slog.Attr{}, c.attrs...), attrs...), parent: c.root()}
}

// WithGroup implements slog.Handler. Groups are flattened.
func (c *Capture) WithGroup(string) slog.Handler {
	return c
}

// Entries returns a copy of the captured entries.
func (c *Capture) Entries() []Entry {
	root := c.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	return append([]Entry(nil), root.entries...)
}

// Messages returns the messages logged at the given level.
func (c *Capture) Messages(level slog.Level) []string {
	var out []string
	for _, e := range c.Entries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// Find returns the first entry with the given message.
func (c *Capture) Find(message string) (Entry, bool) {
	for _, e := range c.Entries() {
		if e.Message == message {
			return e, true
		}
	}
	return Entry{}, false
}
