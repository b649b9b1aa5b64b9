package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogPath_UnderDataDir(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, filepath.Join(dir, "logs", "server.log"), LogPath(dir))
	assert.Contains(t, LogDir(""), ".archivesearch")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(in))
		})
	}
	assert.True(t, ValidLevel("Warn"))
	assert.False(t, ValidLevel("trace"))
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: file-only logging at debug level
	cfg := StdioConfig(t.TempDir(), "debug")

	// When: logging an event
	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	logger.Debug("search_default_complete", slog.Int("results", 3))
	cleanup()

	// Then: the file holds a JSON line with the attributes
	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &line))
	assert.Equal(t, "search_default_complete", line["msg"])
	assert.Equal(t, float64(3), line["results"])
}

func TestSetup_LevelFilters(t *testing.T) {
	cfg := StdioConfig(t.TempDir(), "warn")

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	logger.Info("dropped")
	logger.Warn("kept")
	cleanup()

	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestRotatingWriter_Rotates(t *testing.T) {
	// Given: a writer that rotates after 10 bytes and keeps 2 files
	path := filepath.Join(t.TempDir(), "server.log")
	w, err := newRotatingWriter(path, 10, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	// When: writing four 8-byte lines
	for _, s := range []string{"line-1\n\n", "line-2\n\n", "line-3\n\n", "line-4\n\n"} {
		_, err := w.Write([]byte(s))
		require.NoError(t, err)
	}

	// Then: the newest line is current and at most two rotations survive
	cur, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line-4\n\n", string(cur))

	one, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "line-3\n\n", string(one))

	two, err := os.ReadFile(path + ".2")
	require.NoError(t, err)
	assert.Equal(t, "line-2\n\n", string(two))

	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "a.log"), 1, 1)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
}
