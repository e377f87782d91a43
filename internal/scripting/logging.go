package scripting

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// DefaultLogBufferSize is used when NewRingLogger is given a non-positive
// size.
const DefaultLogBufferSize = 1000

// LogEntry is one retained record.
type LogEntry struct {
	Time    time.Time         `json:"time"`
	Level   slog.Level        `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// ParseLevel maps debug, info, warn and error (any case) to a slog level.
func ParseLevel(s string) (slog.Level, bool) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, false
	}
	return l, true
}

// RingLogger keeps the most recent log records in memory, so scripts and
// diagnostics can read them back, and optionally mirrors them as JSON to a
// sink.
type RingLogger struct {
	logger *slog.Logger
	ring   *ring
	level  *slog.LevelVar
}

// NewRingLogger retains up to size records at or above level. A nil sink
// keeps records in memory only.
func NewRingLogger(size int, level slog.Level, sink io.Writer) *RingLogger {
	if size <= 0 {
		size = DefaultLogBufferSize
	}
	lv := new(slog.LevelVar)
	lv.Set(level)
	h := &ringHandler{ring: &ring{entries: make([]LogEntry, size)}, level: lv}
	if sink != nil {
		h.next = slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: lv})
	}
	return &RingLogger{logger: slog.New(h), ring: h.ring, level: lv}
}

func (l *RingLogger) Logger() *slog.Logger { return l.logger }

func (l *RingLogger) SetLevel(level slog.Level) { l.level.Set(level) }

// Entries returns the retained records, oldest first.
func (l *RingLogger) Entries() []LogEntry { return l.ring.snapshot(0) }

// Recent returns at most n of the newest records, oldest first.
func (l *RingLogger) Recent(n int) []LogEntry { return l.ring.snapshot(n) }

// Search returns records whose message, attribute keys or attribute values
// contain query, case-insensitively.
func (l *RingLogger) Search(query string) []LogEntry {
	query = strings.ToLower(query)
	var out []LogEntry
	for _, e := range l.ring.snapshot(0) {
		if e.matches(query) {
			out = append(out, e)
		}
	}
	return out
}

func (l *RingLogger) Clear() { l.ring.clear() }

func (e LogEntry) matches(query string) bool {
	if strings.Contains(strings.ToLower(e.Message), query) {
		return true
	}
	for k, v := range e.Attrs {
		if strings.Contains(strings.ToLower(k), query) || strings.Contains(strings.ToLower(v), query) {
			return true
		}
	}
	return false
}

// ring is a fixed-capacity circular buffer.
type ring struct {
	mu      sync.Mutex
	entries []LogEntry
	start   int
	n       int
}

func (r *ring) push(e LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := (r.start + r.n) % len(r.entries)
	r.entries[i] = e
	if r.n < len(r.entries) {
		r.n++
	} else {
		r.start = (r.start + 1) % len(r.entries)
	}
}

func (r *ring) snapshot(limit int) []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.n
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]LogEntry, n)
	skip := r.n - n
	for i := range out {
		out[i] = r.entries[(r.start+skip+i)%len(r.entries)]
	}
	return out
}

func (r *ring) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.entries)
	r.start, r.n = 0, 0
}

// ringHandler is the slog.Handler behind RingLogger. Attributes added with
// WithAttrs are carried on the derived handler; groups qualify keys with a
// dotted prefix.
type ringHandler struct {
	ring   *ring
	level  slog.Leveler
	next   slog.Handler
	attrs  []slog.Attr
	prefix string
}

func (h *ringHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ringHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs := make(map[string]string, len(h.attrs)+record.NumAttrs())
	for _, a := range h.attrs {
		addAttr(attrs, "", a)
	}
	record.Attrs(func(a slog.Attr) bool {
		addAttr(attrs, h.prefix, a)
		return true
	})
	if len(attrs) == 0 {
		attrs = nil
	}
	h.ring.push(LogEntry{
		Time:    record.Time,
		Level:   record.Level,
		Message: record.Message,
		Attrs:   attrs,
	})
	if h.next != nil {
		return h.next.Handle(ctx, record)
	}
	return nil
}

func (h *ringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = slices.Clip(c.attrs)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		c.attrs = append(c.attrs, a)
	}
	if h.next != nil {
		c.next = h.next.WithAttrs(attrs)
	}
	return &c
}

func (h *ringHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	if h.next != nil {
		c.next = h.next.WithGroup(name)
	}
	return &c
}

func addAttr(dst map[string]string, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, g := range a.Value.Group() {
			addAttr(dst, p, g)
		}
		return
	}
	dst[prefix+a.Key] = a.Value.String()
}
