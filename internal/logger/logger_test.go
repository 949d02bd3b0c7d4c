package logger

import (
	"bytes"
	"facestream/internal/config"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"trace", LevelTrace},
		{"info", LevelInfo},
		{"warn", LevelWarning},
		{"warning", LevelWarning},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseLevel(tt.input), "ParseLevel(%q)", tt.input)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var out, errOut bytes.Buffer
	l := New(&out, &errOut, LevelInfo)

	l.Trace("skipped %d", 1)
	l.Info("hello %s", "world")
	l.Warning("careful")
	l.Error("broken")

	assert.NotContains(t, out.String(), "skipped")
	assert.Contains(t, out.String(), "hello world")
	assert.Contains(t, out.String(), "careful")
	assert.Contains(t, errOut.String(), "broken")
}

func TestLogger_TraceEnabled(t *testing.T) {
	var out bytes.Buffer
	l := New(&out, &out, LevelTrace)

	l.Trace("no region: %s", "degenerate")

	assert.Contains(t, out.String(), "no region: degenerate")
}

func TestNewLogger_WritesFilesAndCleans(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(&config.Config{LogDirectory: dir, LogLevel: "info"})

	l.Warning("link dropped")

	data, err := os.ReadFile(filepath.Join(dir, "warning.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "link dropped")

	require.NoError(t, l.CleanLogs("warning.log"))
	data, err = os.ReadFile(filepath.Join(dir, "warning.log"))
	require.NoError(t, err)
	assert.Empty(t, data)
}
