// Package logging wires up slog with a ring-buffer handler so the last N
// log records are queryable without a separate log-shipping dependency.
package logging

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Line is a single buffered log record.
type Line struct {
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Time    time.Time      `json:"ts"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// RingHandler wraps a text handler to stderr and additionally keeps the last
// ringSize records in memory for introspection (CLI `config --show`-style
// commands, future admin surfaces).
type RingHandler struct {
	inner     slog.Handler
	mu        sync.RWMutex
	ring      []Line
	ringSize  int
	ringPos   int
	ringCount int
	level     slog.Leveler
	attrs     []slog.Attr
	groups    []string
}

// NewRingHandler builds a RingHandler at the given level with the given
// buffer size.
func NewRingHandler(level slog.Leveler, ringSize int) *RingHandler {
	if ringSize <= 0 {
		ringSize = 1000
	}
	return &RingHandler{
		inner:    slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		ring:     make([]Line, ringSize),
		ringSize: ringSize,
		level:    level,
	}
}

func (h *RingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *RingHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}

	attrs := make(map[string]any)
	prefix := groupPrefix(h.groups)
	for _, a := range h.attrs {
		attrs[prefix+a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[prefix+a.Key] = a.Value.Any()
		return true
	})

	line := Line{Level: r.Level.String(), Message: r.Message, Time: r.Time}
	if len(attrs) > 0 {
		line.Attrs = attrs
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.ring[h.ringPos] = line
	h.ringPos = (h.ringPos + 1) % h.ringSize
	if h.ringCount < h.ringSize {
		h.ringCount++
	}
	return nil
}

func (h *RingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RingHandler{
		inner:    h.inner.WithAttrs(attrs),
		ring:     h.ring,
		ringSize: h.ringSize,
		level:    h.level,
		attrs:    append(cloneAttrs(h.attrs), attrs...),
		groups:   h.groups,
	}
}

func (h *RingHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &RingHandler{
		inner:    h.inner.WithGroup(name),
		ring:     h.ring,
		ringSize: h.ringSize,
		level:    h.level,
		attrs:    cloneAttrs(h.attrs),
		groups:   append(append([]string{}, h.groups...), name),
	}
}

// Recent returns a snapshot of the buffered log lines, oldest first.
func (h *RingHandler) Recent() []Line {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.ringCount == 0 {
		return nil
	}
	result := make([]Line, h.ringCount)
	start := (h.ringPos - h.ringCount + h.ringSize) % h.ringSize
	for i := 0; i < h.ringCount; i++ {
		result[i] = h.ring[(start+i)%h.ringSize]
	}
	return result
}

func groupPrefix(groups []string) string {
	if len(groups) == 0 {
		return ""
	}
	var p string
	for _, g := range groups {
		p += g + "."
	}
	return p
}

func cloneAttrs(attrs []slog.Attr) []slog.Attr {
	if len(attrs) == 0 {
		return nil
	}
	c := make([]slog.Attr, len(attrs))
	copy(c, attrs)
	return c
}

// Setup installs a RingHandler as the default slog logger at the given
// level ("debug", "info", "warn", "error") and returns it for introspection.
func Setup(levelName string, ringSize int) *RingHandler {
	level := slog.LevelInfo
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	h := NewRingHandler(level, ringSize)
	slog.SetDefault(slog.New(h))
	return h
}
