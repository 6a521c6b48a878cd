package richtext

import (
	"context"
	"log/slog"
)

// Logger wraps *slog.Logger so the façade can log without every call
// site needing a nil check; the façade logs at Debug when it buffers a
// remote op pending its dependencies and when it drops a stale patch. A
// zero-value Logger discards everything.
type Logger struct {
	inner *slog.Logger
}

// NewLogger wraps an existing *slog.Logger. Passing nil is valid and
// yields a Logger that discards all records.
func NewLogger(inner *slog.Logger) *Logger {
	return &Logger{inner: inner}
}

func (l *Logger) debug(ctx context.Context, msg string, args ...any) {
	if l == nil || l.inner == nil {
		return
	}
	l.inner.DebugContext(ctx, msg, args...)
}

func (l *Logger) warn(ctx context.Context, msg string, args ...any) {
	if l == nil || l.inner == nil {
		return
	}
	l.inner.WarnContext(ctx, msg, args...)
}
