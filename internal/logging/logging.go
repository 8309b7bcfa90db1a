// Package logging provides the leveled, component-tagged logger used across
// the engine.
package logging

import (
	"fmt"
	"strings"

	"github.com/mborders/logmatic"
)

// Level names accepted by Parse and the log_level config key.
const (
	LevelTrace = "trace"
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

func setLevel(l *logmatic.Logger, level string) bool {
	switch strings.ToLower(level) {
	case LevelTrace:
		l.SetLevel(logmatic.TRACE)
	case LevelDebug:
		l.SetLevel(logmatic.DEBUG)
	case LevelInfo:
		l.SetLevel(logmatic.INFO)
	case LevelWarn:
		l.SetLevel(logmatic.WARN)
	case LevelError:
		l.SetLevel(logmatic.ERROR)
	default:
		l.SetLevel(logmatic.INFO)
		return false
	}
	return true
}

// Logger prefixes every message with its component name.
type Logger struct {
	l         *logmatic.Logger
	component string
}

// New returns a root logger at the named level. Unknown names fall back to
// info and are reported by the returned error.
func New(level string) (*Logger, error) {
	l := logmatic.NewLogger()
	l.ExitOnFatal = false
	if !setLevel(l, level) {
		return &Logger{l: l}, fmt.Errorf("unknown log level %q", level)
	}
	return &Logger{l: l}, nil
}

// Nop returns a logger that drops everything below fatal.
func Nop() *Logger {
	l := logmatic.NewLogger()
	l.ExitOnFatal = false
	l.SetLevel(logmatic.FATAL)
	return &Logger{l: l}
}

// With returns a logger for a named component sharing the same output.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return Nop().With(component)
	}
	return &Logger{l: l.l, component: component}
}

func (l *Logger) format(format string) string {
	if l.component == "" {
		return format
	}
	return "[" + l.component + "] " + format
}

// Trace logs a printf-style message at trace level, prefixed with the
// component name. The other level methods behave the same.
func (l *Logger) Trace(format string, args ...any) { l.l.Trace(l.format(format), args...) }

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...any) { l.l.Debug(l.format(format), args...) }

// Info logs at info level.
func (l *Logger) Info(format string, args ...any) { l.l.Info(l.format(format), args...) }

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...any) { l.l.Warn(l.format(format), args...) }

// Error logs at error level.
func (l *Logger) Error(format string, args ...any) { l.l.Error(l.format(format), args...) }
