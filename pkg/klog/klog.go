// Package klog sets up the kernel's structured logger.
package klog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// InitLogger installs a text slog handler writing to stdout and, when path is
// not empty, appending to the file at path. An unknown level logs at INFO
// and says so. The returned closer closes the log file.
func InitLogger(path, level string) (io.Closer, error) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o666)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, f)
		closer = f
	}

	lvl, err := convertStringToLogLevel(level)
	slog.SetDefault(New(w, lvl))
	if err != nil {
		slog.Warn(err.Error())
	}
	slog.Debug("logger configured", "level", lvl, "file", path)
	return closer, nil
}

// New returns a text logger writing to w at the given level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func convertStringToLogLevel(level string) (slog.Level, error) {
	switch level {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q, using INFO", level)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
