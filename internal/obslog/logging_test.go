package obslog

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.WriteToStderr = false

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	defer cleanup()

	logger.Info("indexing started", slog.String("path", "/tmp/docs"))

	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "indexing started")
	assert.Contains(t, string(data), "/tmp/docs")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("anything-else"))
}

func TestRotatingWriter_RotatesPastMaxSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	w, err := NewRotatingWriter(path, 0, 2) // maxSize computed as 0MB -> forces rotation on first write after size 0
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)

	_, statErr := os.Stat(path + ".1")
	assert.NoError(t, statErr)
}
