package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/npratt/grblctl/internal/config"
)

// LoggerResult bundles the constructed logger with its rotating file
// writer, so the caller can close it on shutdown.
type LoggerResult struct {
	Logger *slog.Logger
	Writer io.WriteCloser
	Path   string
}

// Close flushes and closes the rotating log file.
func (r *LoggerResult) Close() error {
	return r.Writer.Close()
}

// SetupLogger builds a JSON slog.Logger that writes to logPath with
// lumberjack-based rotation (cfg.LogRotation), and also mirrors to
// stderr when mirrorStderr is true (appropriate for foreground runs;
// daemonized children only write the file).
func SetupLogger(logPath string, level slog.Leveler, rot config.LogRotationConfig, mirrorStderr bool) (*LoggerResult, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    rot.MaxSizeMB,
		MaxBackups: rot.MaxBackups,
		MaxAge:     rot.MaxAgeDays,
		Compress:   rot.Compress,
	}

	var w io.Writer = rotator
	if mirrorStderr {
		w = io.MultiWriter(rotator, os.Stderr)
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	return &LoggerResult{Logger: logger, Writer: rotator, Path: logPath}, nil
}
