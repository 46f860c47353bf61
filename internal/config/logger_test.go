package config

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerTo_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "production")

	logger.Debug("hidden")
	logger.Info("session started", "session_id", "abc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "session started", entry["msg"])
	assert.Equal(t, "unlockx", entry["service"])
	assert.Equal(t, "abc", entry["session_id"])
}

func TestNewLoggerTo_DevelopmentIsVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "development")

	logger.Debug("frame skipped", "reason", "timeout")

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, "frame skipped")
	assert.Contains(t, out, "source=")
}
