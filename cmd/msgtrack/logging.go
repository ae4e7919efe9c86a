package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"msgtrack/pkg/config"
)

// logFileName is the log file created under the configured log directory.
const logFileName = "msgtrack.log"

// newLogger builds the structured logger for a command: a text handler on
// stderr, teed into <dir>/msgtrack.log when a log directory is configured.
// The returned close func releases the log file.
func newLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, func(), error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, nil, err
	}

	w := stderr
	closeFn := func() {}
	if cfg.Log.Dir != "" {
		if err := os.MkdirAll(cfg.Log.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(cfg.Log.Dir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(stderr, f)
		closeFn = func() { _ = f.Close() }
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level, AddSource: level <= slog.LevelDebug}))
	return logger, closeFn, nil
}
