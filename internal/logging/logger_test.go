package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/searchsync/internal/config"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })
	return &buf
}

func TestNewLogger_ConsoleOnly(t *testing.T) {
	out := captureStdout(t)
	cfg := config.DefaultLoggingConfig()
	cfg.Dir = filepath.Join(t.TempDir(), "logs")

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.Info("hello", "key", "value")
	logger.Debug("hidden")

	assert.Contains(t, out.String(), "[INFO] hello key=value")
	assert.NotContains(t, out.String(), "hidden")
	assert.NoDirExists(t, cfg.Dir)
}

func TestNewLogger_Files(t *testing.T) {
	captureStdout(t)
	cfg := config.DefaultLoggingConfig()
	cfg.Dir = filepath.Join(t.TempDir(), "logs")
	cfg.File.Enabled = true
	defer Shutdown()

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.Info("indexed", "rows", 3)
	logger.Warn("rejected", "row", "ca_objects/7")

	main, err := os.ReadFile(filepath.Join(cfg.Dir, "searchsync.log"))
	require.NoError(t, err)
	assert.Contains(t, string(main), `"msg":"indexed"`)
	assert.Contains(t, string(main), `"msg":"rejected"`)

	errs, err := os.ReadFile(filepath.Join(cfg.Dir, "errors.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(errs), "indexed")
	assert.Contains(t, string(errs), `"row":"ca_objects/7"`)
}

func TestNewLogger_NoOutputs(t *testing.T) {
	cfg := config.DefaultLoggingConfig()
	cfg.Console.Enabled = false

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}

func TestNewLogger_BadDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	cfg := config.DefaultLoggingConfig()
	cfg.File.Enabled = true
	cfg.Dir = filepath.Join(file, "logs")

	_, err := NewLogger(cfg)
	assert.ErrorContains(t, err, "failed to create log directory")
}

func TestInitialize(t *testing.T) {
	out := captureStdout(t)
	old := slog.Default()
	defer slog.SetDefault(old)

	cfg := config.DefaultLoggingConfig()
	require.NoError(t, Initialize(cfg))
	slog.Info("via default")

	assert.Contains(t, out.String(), "via default")
}

func TestWithMinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := WithMinLevel(slog.New(NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), "warn")

	logger.Info("request")
	logger.Error("request failed")

	assert.NotContains(t, buf.String(), "[INFO]")
	assert.Contains(t, buf.String(), "request failed")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
