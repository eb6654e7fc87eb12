package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.InfoLevel, "json")

	logger.Debug().Msg("hidden")
	logger.Info().Int("chain", 2).Msg("chain complete")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "info", event["level"])
	assert.Equal(t, "chain complete", event["message"])
	assert.Equal(t, 2.0, event["chain"])
	assert.Contains(t, event, "time")
}

func TestNewWithWriterConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.DebugLevel, "console")
	logger.Debug().Str("fit_id", "f1").Msg("fit started")

	assert.Contains(t, buf.String(), "fit started")
	assert.Contains(t, buf.String(), "f1")
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arflow.log")
	logger, closer, err := New(Config{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info().Msg("skipped")
	logger.Warn().Msg("kept")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "skipped")
	assert.Contains(t, string(data), "kept")
}

func TestNewInvalidLevel(t *testing.T) {
	_, _, err := New(Config{Level: "loud"})
	assert.ErrorContains(t, err, "invalid log level")
}
