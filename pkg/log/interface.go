// Package log provides the structured logging interface used across housecv.
//
// The interface is slog-compatible so the backend can be switched without
// touching call sites. The default backend is zerolog (see NewZerologProvider);
// the CLI can select a slog JSON backend instead, and tests capture records
// with NewTestLogger.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("modelselection").With(
//	    log.MethodKey, "lasso",
//	)
//	logger.Info("cross-validation finished",
//	    log.GridSizeKey, 5,
//	    log.RMSEKey, 0.1213,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. For Error, a leading error value is
// treated specially by every implementation (it is emitted under the "error"
// key together with its structured details when available).
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates and configures loggers.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
