package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStdLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerTo(&buf, LevelWarn)

	l.Debug("debug %d", 1)
	l.Info("info %d", 2)
	l.Warn("warn %d", 3)
	l.Error("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "[WARN] warn 3")
	assert.Contains(t, out, "[ERROR] error 4")
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "NONE", LevelNone.String())
	assert.Equal(t, "UNKNOWN(42)", Level(42).String())
}

func TestSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	var buf bytes.Buffer
	SetDefault(NewStdLoggerTo(&buf, LevelDebug))
	Info("hello %s", "world")
	assert.Contains(t, buf.String(), "[INFO] hello world")
}
