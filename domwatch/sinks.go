package domwatch

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/cvwatch/domwatch/internal/export"
	"github.com/hazyhaar/cvwatch/domwatch/mutation"
	"github.com/hazyhaar/cvwatch/store"
)

// Exporter receives every artifact the collector flushes.
type Exporter = export.Exporter

// NewFileExporter writes artifacts as JSON files under dir.
func NewFileExporter(dir string) Exporter {
	return export.NewFile(dir)
}

// NewStoreExporter saves artifacts as crawl instances in st.
func NewStoreExporter(st *store.Store, opts store.ImportOptions) Exporter {
	return export.NewStore(st, opts)
}

// NewMultiExporter fans artifacts out to every exporter. A failing
// exporter does not stop the others.
func NewMultiExporter(logger *slog.Logger, exporters ...Exporter) Exporter {
	return export.NewMulti(logger, exporters...)
}

// ExportFunc adapts a function to an Exporter, for in-process consumers.
func ExportFunc(fn func(ctx context.Context, name string, a mutation.Artifact) error) Exporter {
	return export.Func(fn)
}
