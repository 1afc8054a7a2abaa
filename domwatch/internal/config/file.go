// Package config loads the cvwatch YAML configuration.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level cvwatch configuration.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Collector  CollectorConfig  `yaml:"collector"`
	Observer   ObserverConfig   `yaml:"observer"`
	Browser    BrowserConfig    `yaml:"browser"`
	Crawl      CrawlConfig      `yaml:"crawl"`
	Store      StoreConfig      `yaml:"store"`
	FilterList FilterListConfig `yaml:"filterlist"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level      string `yaml:"level"` // debug | info | warn | error
	File       string `yaml:"file"`  // empty = stderr
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// CollectorConfig controls session buffering and artifact export.
type CollectorConfig struct {
	Addr         string `yaml:"addr"`
	OutputDir    string `yaml:"output_dir"`
	Suffix       string `yaml:"suffix"`
	FlushOnClose bool   `yaml:"flush_on_close"`
	QueueSize    int    `yaml:"queue_size"`
}

// ObserverConfig controls the in-page filter.
type ObserverConfig struct {
	BlockedMarker  string   `yaml:"blocked_marker"`
	SnippetMarker  string   `yaml:"snippet_marker"`
	Excluded       []string `yaml:"excluded"`
	CaptureDialogs bool     `yaml:"capture_dialogs"`
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Remote          string        `yaml:"remote"`
	Stealth         string        `yaml:"stealth"` // headless | headful
	XvfbDisplay     string        `yaml:"xvfb_display"`
	Extensions      []string      `yaml:"extensions"`
	UserDataDir     string        `yaml:"user_data_dir"`
	RecycleInterval time.Duration `yaml:"recycle_interval"`
	BlockLists      []string      `yaml:"block_lists"`
}

// CrawlConfig lists the pages to visit and how.
type CrawlConfig struct {
	URLs       []string      `yaml:"urls"`
	URLFile    string        `yaml:"url_file"`
	Parallel   int           `yaml:"parallel"`
	Dwell      time.Duration `yaml:"dwell"`
	NavTimeout time.Duration `yaml:"nav_timeout"`
	Collector  string        `yaml:"collector"` // remote collector base URL; empty = in-process
	DumpOnLoad bool          `yaml:"dump_on_load"`
	Echo       bool          `yaml:"echo"` // also print page messages as JSON lines
}

// StoreConfig controls where artifacts are imported.
type StoreConfig struct {
	Path       string `yaml:"path"`
	CrawlGroup string `yaml:"crawl_group"`
	Collection string `yaml:"collection"`
	Control    bool   `yaml:"control"`
	WithEvents bool   `yaml:"with_events"`
}

// FilterListConfig names the ad-block lists used for classification.
type FilterListConfig struct {
	Lists []string `yaml:"lists"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Collector.Addr == "" {
		c.Collector.Addr = "127.0.0.1:8787"
	}
	if c.Collector.OutputDir == "" {
		c.Collector.OutputDir = "artifacts"
	}
	if c.Collector.Suffix == "" {
		c.Collector.Suffix = "--cvdommutationvanilla"
	}
	if c.Collector.QueueSize <= 0 {
		c.Collector.QueueSize = 4096
	}
	if c.Observer.BlockedMarker == "" {
		c.Observer.BlockedMarker = "abp-blocked-element"
	}
	if c.Observer.SnippetMarker == "" {
		c.Observer.SnippetMarker = "abp-blocked-snippet"
	}
	if c.Observer.Excluded == nil {
		c.Observer.Excluded = []string{"chrome", "dev", "newtab"}
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Crawl.Parallel <= 0 {
		c.Crawl.Parallel = 1
	}
	if c.Crawl.Dwell <= 0 {
		c.Crawl.Dwell = 10 * time.Second
	}
	if c.Crawl.NavTimeout <= 0 {
		c.Crawl.NavTimeout = 30 * time.Second
	}
	if c.Store.Path == "" {
		c.Store.Path = "cvwatch.db"
	}
	if c.Store.Collection == "" {
		c.Store.Collection = "vanilla_dommutation"
	}
}

// CrawlURLs returns the configured URLs followed by those of the URL file,
// one per line. Blank lines and lines starting with '#' are skipped.
func (c *Config) CrawlURLs() ([]string, error) {
	urls := append([]string(nil), c.Crawl.URLs...)
	if c.Crawl.URLFile == "" {
		return urls, nil
	}
	f, err := os.Open(c.Crawl.URLFile)
	if err != nil {
		return nil, fmt.Errorf("config: url file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: url file: %w", err)
	}
	return urls, nil
}
