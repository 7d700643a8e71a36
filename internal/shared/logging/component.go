package logging

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

var base atomic.Pointer[slog.Logger]

// SetBase replaces the structured logger that component loggers write to.
// Passing nil restores slog.Default().
func SetBase(logger *slog.Logger) {
	base.Store(logger)
}

func baseLogger() *slog.Logger {
	if logger := base.Load(); logger != nil {
		return logger
	}
	return slog.Default()
}

type componentLogger struct {
	component string
	attrs     []any
}

// NewComponentLogger returns the process logger scoped to a component.
// The backend is resolved on every call so SetBase takes effect for loggers
// created before configuration was loaded.
func NewComponentLogger(component string) Logger {
	return &componentLogger{component: component}
}

// With returns a component logger carrying extra structured attributes.
func With(logger Logger, attrs ...any) Logger {
	if cl, ok := logger.(*componentLogger); ok {
		merged := make([]any, 0, len(cl.attrs)+len(attrs))
		merged = append(merged, cl.attrs...)
		merged = append(merged, attrs...)
		return &componentLogger{component: cl.component, attrs: merged}
	}
	return OrNop(logger)
}

func (l *componentLogger) log(level slog.Level, format string, args []any) {
	backend := baseLogger()
	if !backend.Enabled(context.Background(), level) {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	attrs := make([]any, 0, len(l.attrs)+2)
	attrs = append(attrs, "component", l.component)
	attrs = append(attrs, l.attrs...)
	backend.Log(context.Background(), level, msg, attrs...)
}

func (l *componentLogger) Debug(format string, args ...any) { l.log(slog.LevelDebug, format, args) }
func (l *componentLogger) Info(format string, args ...any)  { l.log(slog.LevelInfo, format, args) }
func (l *componentLogger) Warn(format string, args ...any)  { l.log(slog.LevelWarn, format, args) }
func (l *componentLogger) Error(format string, args ...any) { l.log(slog.LevelError, format, args) }
