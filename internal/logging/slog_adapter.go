// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package logging

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rs/zerolog"
)

// SlogHandler routes slog records into the process-wide zerolog logger so
// that slog-only dependencies (sutureslog, most prominently) share Herald's
// log stream and level configuration.
type SlogHandler struct {
	prefix string // dotted WithGroup chain, "" at the root
	attrs  []slog.Attr
}

// NewSlogHandler returns a handler over the process-wide logger.
func NewSlogHandler() *SlogHandler {
	return &SlogHandler{}
}

// NewSlogLogger wraps the handler in an slog.Logger, ready to hand to
// sutureslog.Handler.
func NewSlogLogger() *slog.Logger {
	return slog.New(NewSlogHandler())
}

func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return levelFromSlog(level) >= zerolog.GlobalLevel()
}

func (h *SlogHandler) Handle(_ context.Context, rec slog.Record) error {
	ev := Logger().WithLevel(levelFromSlog(rec.Level))
	if ev == nil {
		return nil
	}
	for _, a := range h.attrs {
		ev = h.field(ev, a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		ev = h.field(ev, a)
		return true
	})
	ev.Msg(rec.Message)
	return nil
}

func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &SlogHandler{prefix: h.prefix, attrs: merged}
}

func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SlogHandler{prefix: joinKey(h.prefix, name), attrs: h.attrs}
}

func (h *SlogHandler) field(ev *zerolog.Event, a slog.Attr) *zerolog.Event {
	key := joinKey(h.prefix, a.Key)
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return ev.Str(key, v.String())
	case slog.KindInt64:
		return ev.Int64(key, v.Int64())
	case slog.KindUint64:
		return ev.Uint64(key, v.Uint64())
	case slog.KindFloat64:
		return ev.Float64(key, v.Float64())
	case slog.KindBool:
		return ev.Bool(key, v.Bool())
	case slog.KindDuration:
		return ev.Dur(key, v.Duration())
	case slog.KindTime:
		return ev.Time(key, v.Time())
	case slog.KindGroup:
		nested := &SlogHandler{prefix: key}
		for _, ga := range v.Group() {
			ev = nested.field(ev, ga)
		}
		return ev
	default:
		return ev.Interface(key, v.Any())
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.Join([]string{prefix, key}, ".")
}

func levelFromSlog(l slog.Level) zerolog.Level {
	switch {
	case l < slog.LevelDebug:
		return zerolog.TraceLevel
	case l < slog.LevelInfo:
		return zerolog.DebugLevel
	case l < slog.LevelWarn:
		return zerolog.InfoLevel
	case l < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
