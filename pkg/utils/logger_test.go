package utils

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedLogger(level LogLevel) (*DefaultLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := NewDefaultLogger(level, buf)
	l.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 5e6, time.UTC) }
	return l, buf
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"DEBUG":   LevelDebug,
		" info ":  LevelInfo,
		"warning": LevelWarn,
		"Warn":    LevelWarn,
		"error":   LevelError,
		"verbose": LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), "input %q", in)
	}
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(7).String())
	assert.Equal(t, "UNKNOWN", LogLevel(-1).String())
}

func TestDefaultLogger_Line(t *testing.T) {
	l, buf := fixedLogger(LevelInfo)
	l.Info("visited %d objects", 12)
	assert.Equal(t, "[2024-03-01 12:00:00.005] [INFO] visited 12 objects\n", buf.String())
}

func TestDefaultLogger_Filter(t *testing.T) {
	l, buf := fixedLogger(LevelWarn)
	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	out := buf.String()
	assert.NotContains(t, out, "[DEBUG]")
	assert.NotContains(t, out, "[INFO]")
	assert.Contains(t, out, "[WARN] w")
	assert.Contains(t, out, "[ERROR] e")
}

func TestDefaultLogger_NoArgsKeepsPercent(t *testing.T) {
	l, buf := fixedLogger(LevelDebug)
	l.Info("100% reachable")
	assert.Contains(t, buf.String(), "100% reachable")
}

func TestDefaultLogger_Fields(t *testing.T) {
	l, buf := fixedLogger(LevelDebug)
	child := l.WithField("scheme", "ccs").WithFields(map[string]interface{}{"gen": 2, "a": true})
	child.Info("pass done")
	l.Info("parent")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[INFO] a=true gen=2 scheme=ccs pass done")
	assert.NotContains(t, lines[1], "scheme=")
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	l, err := NewFileLogger(LevelInfo, path)
	require.NoError(t, err)
	l.Info("hello")
	assert.FileExists(t, path)
}

func TestNullLogger(t *testing.T) {
	var l Logger = &NullLogger{}
	l.Error("ignored %d", 1)
	assert.Same(t, l, l.WithField("k", "v"))
	assert.Same(t, l, l.WithFields(nil))
}

func TestGlobalLogger(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	l, _ := fixedLogger(LevelDebug)
	SetGlobalLogger(l)
	assert.Same(t, l, GetGlobalLogger())

	SetGlobalLogger(nil)
	assert.Same(t, l, GetGlobalLogger())
}
