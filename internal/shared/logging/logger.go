package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
}

type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger writes JSON records to stdout. Use NewSlogLoggerTo for other
// formats or destinations.
func NewSlogLogger(level slog.Level) Logger {
	return NewSlogLoggerTo(os.Stdout, level, "json")
}

// NewSlogLoggerTo builds a logger writing "json" (default) or "text" records
// to w with UTC timestamps.
func NewSlogLoggerTo(w io.Writer, level slog.Level, format string) Logger {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.TimeValue(a.Value.Time().UTC())
			}
			return a
		},
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &SlogLogger{log: slog.New(handler)}
}

// ParseLevel maps a config level name to a slog level. Unknown names map to
// info.
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

func (sl *SlogLogger) Debug(msg string, args ...any) {
	sl.log.Debug(msg, args...)
}

func (sl *SlogLogger) Info(msg string, args ...any) {
	sl.log.Info(msg, args...)
}

func (sl *SlogLogger) Warn(msg string, args ...any) {
	sl.log.Warn(msg, args...)
}

func (sl *SlogLogger) Error(msg string, args ...any) {
	sl.log.Error(msg, args...)
}

func (sl *SlogLogger) Fatal(msg string, args ...any) {
	sl.log.Error(msg, args...)
	os.Exit(1)
}

type nopLogger struct{}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return nopLogger{}
}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Fatal(string, ...any) {}
