// Package observability builds the process logger: JSON lines through
// log/slog, to stderr or to a size-rotated file.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the level and destination of the logger.
type Config struct {
	Level      string // debug | info | warn | error
	File       string // empty = stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ParseLevel maps a level name onto a slog level. Unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogger returns the logger described by cfg and the closer of its
// output. Closing stderr is a no-op.
func NewLogger(cfg Config) (*slog.Logger, io.Closer, error) {
	var w io.WriteCloser = nopCloser{os.Stderr}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("observability: log dir: %w", err)
		}
		w = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(cfg.Level)})
	return slog.New(h), w, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
