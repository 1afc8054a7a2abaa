package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): got %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cvwatch.log")
	logger, closer, err := NewLogger(Config{Level: "warn", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("collector: hidden")
	logger.Warn("collector: export failed", "name", "a.json")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines: got %d, want 1:\n%s", len(lines), data)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "collector: export failed" || rec["name"] != "a.json" || rec["level"] != "WARN" {
		t.Errorf("record: got %v", rec)
	}
}

func TestNewLoggerStderr(t *testing.T) {
	logger, closer, err := NewLogger(Config{})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !logger.Enabled(context.Background(), slog.LevelInfo) || logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("default level: want info")
	}
	if err := closer.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
