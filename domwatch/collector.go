package domwatch

import (
	"log/slog"

	"github.com/hazyhaar/cvwatch/domwatch/internal/collector"
)

// Collector buffers tab sessions and flushes one artifact per visited URL.
// Its Handler serves the HTTP API and RegisterMCP adds the MCP tools.
type Collector = collector.Collector

// NewCollector creates a collector flushing into exp.
func NewCollector(cfg *Config, exp Exporter, logger *slog.Logger) *Collector {
	return collector.New(collector.Config{
		Exporter:     exp,
		Excluded:     cfg.Observer.Excluded,
		Suffix:       cfg.Collector.Suffix,
		FlushOnClose: cfg.Collector.FlushOnClose,
		QueueSize:    cfg.Collector.QueueSize,
		Logger:       logger,
	})
}
