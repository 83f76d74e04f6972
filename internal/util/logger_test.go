package util

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLogLevel(tt.input))
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("warn", "", false)
	require.NoError(t, err)
	logger.AddOutput(NewWriterOutput(&buf, FormatText))

	logger.Debug("hidden debug")
	logger.Infof("hidden %s", "info")
	logger.Warn("shown warn")
	logger.Errorf("shown %d", 42)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown warn")
	assert.Contains(t, out, "[ERROR] shown 42")

	logger.SetLevel(LevelDebug)
	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "[DEBUG] now visible")
}

func TestLogger_FieldsAreSortedInText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("debug", "", false)
	require.NoError(t, err)
	logger.AddOutput(NewWriterOutput(&buf, FormatText))

	child := logger.With(F("op", "abc"))
	child.Info("layer settled", F("layer", "no2"), F("assets", 3))

	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasSuffix(line, "layer settled assets=3 layer=no2 op=abc"), line)
}

func TestLogger_WithSharesOutputs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("info", "", false)
	require.NoError(t, err)
	child := logger.With(F("component", "cache"))

	// Outputs added to the parent after With still reach the child.
	logger.AddOutput(NewWriterOutput(&buf, FormatText))
	child.Info("hello")

	assert.Contains(t, buf.String(), "component=cache")
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("info", "", false)
	require.NoError(t, err)
	logger.AddOutput(NewWriterOutput(&buf, FormatJSON))

	logger.Info("fetched", F("url", "s3://a.tif"))

	var entry LogEntry
	require.NoError(t, sonic.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "fetched", entry.Message)
	assert.Equal(t, "s3://a.tif", entry.Fields["url"])
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	logger, err := NewLogger("info", path, false)
	require.NoError(t, err)
	logger.Info("written to file")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO] written to file")
}

func TestGlobalHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("debug", "", false)
	require.NoError(t, err)
	logger.AddOutput(NewWriterOutput(&buf, FormatText))

	SetLogger(logger)
	t.Cleanup(func() { SetLogger(nil) })

	LogDebugf("debug %d", 1)
	LogInfo("info line")
	LogWarnf("warn %s", "line")
	LogError("error line")

	out := buf.String()
	assert.Contains(t, out, "debug 1")
	assert.Contains(t, out, "info line")
	assert.Contains(t, out, "warn line")
	assert.Contains(t, out, "error line")

	SetLogger(nil)
	assert.NotPanics(t, func() { LogInfo("dropped") })
}
