package log

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Level represents logging severity.
type Level int

const (
	// LevelDebug for detailed debugging information
	LevelDebug Level = iota
	// LevelInfo for general informational messages
	LevelInfo
	// LevelWarn for warning messages
	LevelWarn
	// LevelError for error messages
	LevelError
	// LevelNone disables all logging
	LevelNone
)

// String returns the string representation of Level.
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
	case LevelNone:
		return "NONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// Logger is the logging interface used throughout forge.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// StdLogger implements Logger using Go's standard log package.
type StdLogger struct {
	logger *log.Logger
	level  Level
}

// NewStdLogger creates a logger writing to stderr.
func NewStdLogger(level Level) *StdLogger {
	return &StdLogger{
		logger: log.New(os.Stderr, "[forge] ", log.LstdFlags),
		level:  level,
	}
}

// NewStdLoggerTo creates a logger with a custom output.
func NewStdLoggerTo(out io.Writer, level Level) *StdLogger {
	return &StdLogger{
		logger: log.New(out, "[forge] ", log.LstdFlags),
		level:  level,
	}
}

// Debug logs debug messages.
func (l *StdLogger) Debug(format string, v ...any) {
	if l.level <= LevelDebug {
		l.logger.Printf("[DEBUG] "+format, v...)
	}
}

// Info logs informational messages.
func (l *StdLogger) Info(format string, v ...any) {
	if l.level <= LevelInfo {
		l.logger.Printf("[INFO] "+format, v...)
	}
}

// Warn logs warning messages.
func (l *StdLogger) Warn(format string, v ...any) {
	if l.level <= LevelWarn {
		l.logger.Printf("[WARN] "+format, v...)
	}
}

// Error logs error messages.
func (l *StdLogger) Error(format string, v ...any) {
	if l.level <= LevelError {
		l.logger.Printf("[ERROR] "+format, v...)
	}
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// Package-level logger, info level by default.
var defaultLogger Logger = NewStdLogger(LevelInfo)

// SetDefault replaces the package-level logger.
func SetDefault(logger Logger) {
	defaultLogger = logger
}

// Default returns the current package-level logger.
func Default() Logger {
	return defaultLogger
}

// SetLevel installs a stderr logger with the given level as the package default.
func SetLevel(level Level) {
	defaultLogger = NewStdLogger(level)
}

// Debug logs a debug message using the package-level logger.
func Debug(format string, v ...any) {
	defaultLogger.Debug(format, v...)
}

// Info logs an informational message using the package-level logger.
func Info(format string, v ...any) {
	defaultLogger.Info(format, v...)
}

// Warn logs a warning message using the package-level logger.
func Warn(format string, v ...any) {
	defaultLogger.Warn(format, v...)
}

// Error logs an error message using the package-level logger.
func Error(format string, v ...any) {
	defaultLogger.Error(format, v...)
}
