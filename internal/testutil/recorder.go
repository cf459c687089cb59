package testutil

import (
	"context"
	"log/slog"
	"sync"
)

// Event is one captured log record.
type Event struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Recorder is a slog.Handler that keeps every record in memory so tests can
// assert on emitted events instead of log output.
type Recorder struct {
	mu     *sync.Mutex
	events *[]Event
	attrs  []slog.Attr
}

// NewRecorder returns a Recorder and a logger writing to it.
func NewRecorder() (*Recorder, *slog.Logger) {
	r := &Recorder{mu: &sync.Mutex{}, events: &[]Event{}}
	return r, slog.New(r)
}

// Enabled accepts every level.
func (r *Recorder) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle stores the record.
func (r *Recorder) Handle(_ context.Context, rec slog.Record) error {
	attrs := make(map[string]any, rec.NumAttrs()+len(r.attrs))
	for _, a := range r.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	*r.events = append(*r.events, Event{Level: rec.Level, Message: rec.Message, Attrs: attrs})
	return nil
}

// WithAttrs returns a handler sharing the same event log.
func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Recorder{mu: r.mu, events: r.events, attrs: append(append([]slog.Attr{}, r.attrs...), attrs...)}
}

// WithGroup is a no-op; groups are not used by the code under test.
func (r *Recorder) WithGroup(string) slog.Handler {
	return r
}

// Events returns a copy of all captured events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), *r.events...)
}

// AtLevel returns the captured events with the given level.
func (r *Recorder) AtLevel(level slog.Level) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}
