package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Entry is the flattened form of a log record kept in the log history.
type Entry struct {
	Time     time.Time
	Level    string
	Category string
	Message  string
}

// Recorder receives a copy of every log record that passed level filtering.
// Record must not block for long and must not log through the same logger.
type Recorder interface {
	Record(e Entry)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(Entry)

// Record calls f(e).
func (f RecorderFunc) Record(e Entry) { f(e) }

type teeHandler struct {
	next     slog.Handler
	rec      Recorder
	category string
	attrs    []slog.Attr
}

// Tee returns a handler that writes to next and flattens each handled
// record into rec. Records without a category attribute are filed as SYSTEM.
func Tee(next slog.Handler, rec Recorder) slog.Handler {
	return &teeHandler{next: next, rec: rec, category: CategorySystem}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.next.Handle(ctx, r)

	category := h.category
	var b strings.Builder
	b.WriteString(r.Message)

	appendAttr := func(a slog.Attr) {
		if a.Key == CategoryKey {
			category = a.Value.String()
			return
		}
		if a.Key == "service" || a.Key == "version" {
			return
		}
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(a)
		return true
	})

	h.rec.Record(Entry{
		Time:     r.Time,
		Level:    r.Level.String(),
		Category: category,
		Message:  b.String(),
	})
	return err
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	for _, a := range attrs {
		if a.Key == CategoryKey {
			clone.category = a.Value.String()
		}
	}
	return &clone
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	return &clone
}
