package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fyxxlabs/sitescan/config"
)

// initLogger configures slog based on the LogConfig. When cfg.File is set,
// output is also written to a rotated log file.
func initLogger(cfg config.LogConfig, out io.Writer) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("cannot create log directory", "error", err)
		} else {
			out = io.MultiWriter(out, &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    5, // MB
				MaxBackups: 3,
				MaxAge:     30, // days
				Compress:   true,
			})
		}
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler).With("service", "sitescan"))
}
