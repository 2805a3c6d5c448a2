package common

import (
	"context"
	"log/slog"
)

// nopHandler is a slog.Handler that discards every record.
// Enabled reports false for all levels so callers skip attribute construction entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }

// NopLogger returns a logger that discards all output.
// Components default to it so they stay silent unless the host injects a real logger.
//
// Returns:
//   - *slog.Logger: a logger backed by a handler that drops every record
func NopLogger() *slog.Logger {
	return slog.New(nopHandler{})
}

// LoggerOrNop returns l, or a discarding logger when l is nil.
func LoggerOrNop(l *slog.Logger) *slog.Logger {
	if l == nil {
		return NopLogger()
	}
	return l
}
