// Package obslog sets up structured logging for the indexer daemon.
package obslog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config controls log output location, rotation, and level.
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string

	// FilePath is the destination log file. Rotated in place.
	FilePath string

	// MaxSizeMB is the size threshold that triggers rotation.
	MaxSizeMB int

	// MaxFiles is the number of rotated files retained alongside the active one.
	MaxFiles int

	// WriteToStderr additionally mirrors log output to stderr.
	WriteToStderr bool
}

// DefaultConfig returns sensible logging defaults for a running daemon.
func DefaultConfig(dataDir string) Config {
	return Config{
		Level:         "info",
		FilePath:      filepath.Join(dataDir, "logs", "ragindexd.log"),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig is DefaultConfig with the level forced to debug.
func DebugConfig(dataDir string) Config {
	cfg := DefaultConfig(dataDir)
	cfg.Level = "debug"
	return cfg
}

// Setup builds a slog.Logger writing JSON records to a rotating file, and
// returns a cleanup function that flushes and closes the underlying writer.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}

	writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, fmt.Errorf("open rotating log writer: %w", err)
	}

	var out io.Writer = writer
	if cfg.WriteToStderr {
		out = io.MultiWriter(writer, os.Stderr)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})
	logger := slog.New(handler)

	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}

	return logger, cleanup, nil
}

// SetupDefault configures and installs the package-level default logger.
func SetupDefault(cfg Config) (func(), error) {
	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
