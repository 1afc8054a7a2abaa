package domwatch

import (
	"github.com/hazyhaar/cvwatch/domwatch/internal/config"
	"github.com/hazyhaar/cvwatch/domwatch/internal/observer"
)

// Config is the top-level cvwatch configuration. Re-exported from internal.
type Config = config.Config

// LogConfig controls the process logger.
type LogConfig = config.LogConfig

// CollectorConfig controls session buffering and artifact export.
type CollectorConfig = config.CollectorConfig

// ObserverConfig controls the in-page filter.
type ObserverConfig = config.ObserverConfig

// BrowserConfig controls Chrome.
type BrowserConfig = config.BrowserConfig

// CrawlConfig lists the pages to visit.
type CrawlConfig = config.CrawlConfig

// StoreConfig controls artifact import.
type StoreConfig = config.StoreConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() *Config {
	return config.Default()
}

func filterFor(cfg ObserverConfig) observer.Filter {
	return observer.Filter{
		BlockedMarker:      cfg.BlockedMarker,
		SnippetMarker:      cfg.SnippetMarker,
		ExcludedSubstrings: cfg.Excluded,
	}
}
