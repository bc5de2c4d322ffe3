package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NormalizesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "debug", Output: &buf})

	log.Error("boom", "error", errors.New("disk full"))

	assert.Contains(t, buf.String(), "err=\"disk full\"")
	assert.NotContains(t, buf.String(), "error=")
}

func TestNew_JSONFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "warn", Format: "json", Output: &buf})

	log.Info("hidden")
	log.Warn("shown", "line", "l1")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"line":"l1"`)
}

func TestNew_FileCopy(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "cadence.log")
	log := New(Options{Level: "info", File: path, Output: &buf})

	log.With("session", "s1").Info("started")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"session":"s1"`)
	assert.Contains(t, buf.String(), "session=s1")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestFromEnv(t *testing.T) {
	t.Setenv("CADENCE_LOG_LEVEL", "debug")
	t.Setenv("CADENCE_LOG_FORMAT", "json")
	t.Setenv("CADENCE_LOG_SOURCE", "TRUE")
	t.Setenv("CADENCE_LOG_FILE", "")

	opts := FromEnv()
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, "json", opts.Format)
	assert.True(t, opts.AddSource)
	assert.Empty(t, opts.File)
}
