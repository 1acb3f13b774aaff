// Package log wraps log/slog with a component attribute and the field names
// shared by every potrosnja binary.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a slog.Logger whose records always carry a component attribute.
type Logger struct {
	*slog.Logger
	base      *slog.Logger // without the component attribute
	component string
}

// Config holds logger configuration. A nil Handler writes text to Output
// (stdout when nil) at Level.
type Config struct {
	Level     slog.Level
	Component string
	Handler   slog.Handler
	Output    io.Writer
}

func wrap(base *slog.Logger, component string) *Logger {
	return &Logger{
		Logger:    base.With(FieldComponent, component),
		base:      base,
		component: component,
	}
}

// New creates a logger from config.
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		out := config.Output
		if out == nil {
			out = os.Stdout
		}
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: config.Level})
	}
	component := config.Component
	if component == "" {
		component = ComponentApp
	}
	return wrap(slog.New(handler), component)
}

// With returns a logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return wrap(l.base.With(args...), l.component)
}

// WithComponent returns the same logger under another component name.
func (l *Logger) WithComponent(component string) *Logger {
	return wrap(l.base, component)
}

// Default wraps slog.Default under the given component.
func Default(component string) *Logger {
	return wrap(slog.Default(), component)
}

// ParseLevel maps LOG_LEVEL values (debug, info, warn, error) to a slog.Level.
// Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// SetDefault installs logger, without its component, as the slog default.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.base)
}

// Component returns the logger's component name.
func (l *Logger) Component() string {
	return l.component
}
