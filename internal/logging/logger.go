// Package logging configures the process-wide slog logger: a console
// handler plus optional rotated log files.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/syntrixbase/searchsync/internal/config"
)

const (
	mainLogName  = "searchsync.log"
	errorLogName = "errors.log"
)

var (
	// Open log files, closed by Shutdown
	logFiles   []*lumberjack.Logger
	logFilesMu sync.Mutex

	stdout io.Writer = os.Stdout
)

// Initialize sets up the global logger based on configuration
func Initialize(cfg config.LoggingConfig) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger)

	slog.Debug("Logging initialized",
		"level", cfg.Level,
		"dir", cfg.Dir,
		"console", cfg.Console.Enabled,
		"file", cfg.File.Enabled,
	)
	return nil
}

// NewLogger creates a logger writing to the outputs cfg enables. With file
// output on, every record at the file level goes to searchsync.log and
// warnings and errors are also copied to errors.log.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var handlers []slog.Handler

	if cfg.Console.Enabled {
		handlers = append(handlers, createHandler(stdout, cfg.Console.Format, ParseLevel(cfg.Console.Level)))
	}

	if cfg.File.Enabled {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		mainFile := openLogFile(cfg, mainLogName)
		handlers = append(handlers, createHandler(mainFile, cfg.File.Format, ParseLevel(cfg.File.Level)))

		errorFile := openLogFile(cfg, errorLogName)
		handlers = append(handlers, NewLevelFilter(createHandler(errorFile, cfg.File.Format, slog.LevelWarn), slog.LevelWarn))
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	case 1:
		return slog.New(handlers[0]), nil
	}
	return slog.New(NewMultiHandler(handlers...)), nil
}

// WithMinLevel returns a logger that drops records of logger below level.
func WithMinLevel(logger *slog.Logger, level string) *slog.Logger {
	return slog.New(NewLevelFilter(logger.Handler(), ParseLevel(level)))
}

// Shutdown closes all log files
func Shutdown() error {
	logFilesMu.Lock()
	defer logFilesMu.Unlock()

	for _, logFile := range logFiles {
		if err := logFile.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
	}
	logFiles = nil
	return nil
}

func openLogFile(cfg config.LoggingConfig, name string) *lumberjack.Logger {
	f := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, name),
		MaxSize:    cfg.Rotation.MaxSize,
		MaxBackups: cfg.Rotation.MaxBackups,
		MaxAge:     cfg.Rotation.MaxAge,
		Compress:   cfg.Rotation.Compress,
	}
	logFilesMu.Lock()
	logFiles = append(logFiles, f)
	logFilesMu.Unlock()
	return f
}

// ParseLevel maps a configured level name to a slog level. Unknown names
// are treated as info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func createHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return NewTextHandler(w, opts)
}
