// Command cvwatch records the DOM mutations of page loads, buffers them per
// tab and exports one artifact per visited URL, then imports artifacts into
// SQLite, compares control with variant crawls and classifies requests
// against ad-block filter lists.
//
// Usage:
//
//	cvwatch collect --config cvwatch.yaml [--mcp]
//	cvwatch crawl   --config cvwatch.yaml [--url https://example.com]
//	cvwatch match   --lists easylist.txt,easyprivacy.txt --input requests.txt --output blocked.txt
//	cvwatch import  artifacts/ --group 2026-10-16 --events
//	cvwatch diff    https://example.com/ --group 2026-10-16 --save
//	cvwatch schema  --db cvwatch.db
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/cvwatch/domwatch"
	"github.com/hazyhaar/cvwatch/observability"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	config   string
	logLevel string
}

var rootCmd = &cobra.Command{
	Use:   "cvwatch",
	Short: "Record page-load DOM mutations and compare vanilla with ad-block crawls",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&rootFlags.config, "config", "c", "", "path to cvwatch.yaml (defaults apply without one)")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "override log.level: debug, info, warn, error")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger every command uses.
// The returned closer flushes the log file.
func setup() (*domwatch.Config, *slog.Logger, io.Closer, error) {
	cfg := domwatch.DefaultConfig()
	if rootFlags.config != "" {
		c, err := domwatch.LoadConfigFile(rootFlags.config)
		if err != nil {
			return nil, nil, nil, err
		}
		cfg = c
	}
	if rootFlags.logLevel != "" {
		cfg.Log.Level = rootFlags.logLevel
	}

	logger, closer, err := observability.NewLogger(observability.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, closer, nil
}
