package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/cvwatch/domwatch/mutation"
)

// ImportStats summarises a directory import.
type ImportStats struct {
	Files     int `json:"files"`
	Instances int `json:"instances"`
	Events    int `json:"events"`
	Skipped   int `json:"skipped"`
}

// ImportFile loads one artifact file into the store. The crawl instance
// is keyed by the file's base name.
func (s *Store) ImportFile(ctx context.Context, path string, opts ImportOptions) (*CrawlInstance, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("store: import: %w", err)
	}
	a, err := mutation.UnmarshalArtifact(data)
	if err != nil {
		return nil, 0, fmt.Errorf("store: import %s: %w", path, err)
	}
	return s.SaveArtifact(ctx, filepath.Base(path), path, *a, opts)
}

// ImportDir imports the .json files directly inside dir. Unreadable or
// malformed files are logged and skipped.
func (s *Store) ImportDir(ctx context.Context, dir string, opts ImportOptions, logger *slog.Logger) (ImportStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var stats ImportStats
	if err := opts.validate(); err != nil {
		return stats, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return stats, fmt.Errorf("store: import dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Files++
		_, n, err := s.ImportFile(ctx, filepath.Join(dir, e.Name()), opts)
		if err != nil {
			stats.Skipped++
			logger.Warn("store: skip artifact", "file", e.Name(), "error", err)
			continue
		}
		stats.Instances++
		stats.Events += n
	}
	logger.Info("store: directory imported", "dir", dir,
		"files", stats.Files, "instances", stats.Instances, "events", stats.Events, "skipped", stats.Skipped)
	return stats, nil
}

// Import imports path, a single artifact file or a directory of them.
func (s *Store) Import(ctx context.Context, path string, opts ImportOptions, logger *slog.Logger) (ImportStats, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return ImportStats{}, fmt.Errorf("store: import: %w", err)
	}
	if fi.IsDir() {
		return s.ImportDir(ctx, path, opts, logger)
	}
	_, n, err := s.ImportFile(ctx, path, opts)
	if err != nil {
		return ImportStats{Files: 1, Skipped: 1}, err
	}
	return ImportStats{Files: 1, Instances: 1, Events: n}, nil
}
