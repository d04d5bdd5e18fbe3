package log

import (
	"github.com/kataras/golog"
)

// Golog adapts a kataras/golog logger to the Logger interface.
type Golog struct {
	logger *golog.Logger
}

var _ Logger = (*Golog)(nil)

// NewGolog wraps an existing golog.Logger.
func NewGolog(logger *golog.Logger) *Golog {
	return &Golog{logger: logger}
}

// Debug logs debug messages.
func (l *Golog) Debug(format string, v ...any) {
	l.logger.Debugf(format, v...)
}

// Info logs informational messages.
func (l *Golog) Info(format string, v ...any) {
	l.logger.Infof(format, v...)
}

// Warn logs warning messages.
func (l *Golog) Warn(format string, v ...any) {
	l.logger.Warnf(format, v...)
}

// Error logs error messages.
func (l *Golog) Error(format string, v ...any) {
	l.logger.Errorf(format, v...)
}

// SetLevel sets the underlying golog level.
func (l *Golog) SetLevel(level Level) {
	name := "info"
	switch level {
	case LevelDebug:
		name = "debug"
	case LevelInfo:
		name = "info"
	case LevelWarn:
		name = "warn"
	case LevelError:
		name = "error"
	case LevelNone:
		name = "disable"
	}
	l.logger.SetLevel(name)
}
