// Package export persists flushed session artifacts.
package export

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/cvwatch/domwatch/mutation"
)

// Exporter writes one artifact under a derived name.
type Exporter interface {
	Export(ctx context.Context, name string, a mutation.Artifact) error
}

// Multi writes every artifact to several exporters. A failing exporter
// does not stop the others; the first error is returned.
type Multi struct {
	exporters []Exporter
	logger    *slog.Logger
}

// NewMulti returns a fan-out exporter.
func NewMulti(logger *slog.Logger, exporters ...Exporter) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{exporters: exporters, logger: logger}
}

func (m *Multi) Export(ctx context.Context, name string, a mutation.Artifact) error {
	var firstErr error
	for _, e := range m.exporters {
		if err := e.Export(ctx, name, a); err != nil {
			m.logger.Warn("export: exporter failed", "name", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Func adapts a function to Exporter.
type Func func(ctx context.Context, name string, a mutation.Artifact) error

func (f Func) Export(ctx context.Context, name string, a mutation.Artifact) error {
	return f(ctx, name, a)
}
