package logging

import (
	"io"
	"log/slog"
	"time"
)

// Logger defines the minimal logging interface for taskmesh. Arguments
// follow slog's alternating key/value convention.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewJSONLogger creates a Logger writing slog JSON records to w at the given
// level.
func NewJSONLogger(w io.Writer, level slog.Level) Logger {
	return NewSlogAdapter(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

// NewTextLogger creates a Logger writing slog text records to w at the given
// level.
func NewTextLogger(w io.Writer, level slog.Level) Logger {
	return NewSlogAdapter(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// NoOpLogger discards all log messages. Useful for testing or when logging
// is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// LogInvocation records completion of a model or CLI invocation in a uniform
// shape across providers.
func LogInvocation(l Logger, provider, invocationID string, dur time.Duration, err error) {
	if err != nil {
		l.Error("invocation failed",
			"provider", provider,
			"invocation_id", invocationID,
			"duration", dur,
			"error", err.Error(),
		)
		return
	}
	l.Info("invocation completed",
		"provider", provider,
		"invocation_id", invocationID,
		"duration", dur,
	)
}

// LogProcessExit records termination of a managed agent process.
func LogProcessExit(l Logger, pid int, killed bool, err error) {
	args := []any{"pid", pid, "killed", killed}
	if err != nil {
		args = append(args, "error", err.Error())
		l.Warn("agent process exited", args...)
		return
	}
	l.Debug("agent process exited", args...)
}
