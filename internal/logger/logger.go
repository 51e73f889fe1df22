package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger interface for structured logging
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Fatal(msg string, err error, fields ...interface{})
	With(fields ...interface{}) Logger
}

// SlogLogger implements Logger on top of log/slog. Fields are key/value pairs.
type SlogLogger struct {
	l *slog.Logger
}

// Options configures a SlogLogger
type Options struct {
	Level  string
	JSON   bool
	Writer io.Writer
}

// New creates a logger writing to opts.Writer (stderr when nil)
func New(opts Options) Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, handlerOpts)
	} else {
		h = slog.NewTextHandler(w, handlerOpts)
	}
	return &SlogLogger{l: slog.New(h)}
}

// NewSimpleLogger creates a text logger at info level
func NewSimpleLogger() Logger {
	return New(Options{Level: "info"})
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() Logger {
	return New(Options{Writer: io.Discard})
}

// ParseLevel maps a level name to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Info logs an info message
func (s *SlogLogger) Info(msg string, fields ...interface{}) {
	s.l.Info(msg, fields...)
}

// Error logs an error message; a nil err is omitted
func (s *SlogLogger) Error(msg string, err error, fields ...interface{}) {
	if err != nil {
		fields = append([]interface{}{"error", err.Error()}, fields...)
	}
	s.l.Error(msg, fields...)
}

// Warn logs a warning message
func (s *SlogLogger) Warn(msg string, fields ...interface{}) {
	s.l.Warn(msg, fields...)
}

// Debug logs a debug message
func (s *SlogLogger) Debug(msg string, fields ...interface{}) {
	s.l.Debug(msg, fields...)
}

// Fatal logs a fatal error and exits
func (s *SlogLogger) Fatal(msg string, err error, fields ...interface{}) {
	s.Error(msg, err, fields...)
	os.Exit(1)
}

// With returns a logger that adds fields to every record
func (s *SlogLogger) With(fields ...interface{}) Logger {
	return &SlogLogger{l: s.l.With(fields...)}
}
