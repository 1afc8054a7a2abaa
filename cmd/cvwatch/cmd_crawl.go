package main

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/cvwatch/domwatch"
)

var crawlFlags struct {
	urls       []string
	extensions []string
	parallel   int
	output     string
	collector  string
	echo       bool
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Visit the configured URLs in Chrome and record their DOM mutations",
	Long: `Opens a fresh tab per URL, observes the page for crawl.dwell and closes
the tab, which flushes its artifact. Artifacts go to the in-process collector
unless --collector (crawl.collector) names a running one.

Load an unpacked ad-block extension with --extension to run the variant crawl
of the same URL list.`,
	RunE: runCrawl,
}

func init() {
	f := crawlCmd.Flags()
	f.StringSliceVar(&crawlFlags.urls, "url", nil, "URL to visit (repeatable); replaces crawl.urls")
	f.StringSliceVar(&crawlFlags.extensions, "extension", nil, "unpacked extension directory (repeatable)")
	f.IntVar(&crawlFlags.parallel, "parallel", 0, "override crawl.parallel")
	f.StringVarP(&crawlFlags.output, "output", "o", "", "override collector.output_dir")
	f.StringVar(&crawlFlags.collector, "collector", "", "override crawl.collector")
	f.BoolVar(&crawlFlags.echo, "echo", false, "print every page message as a JSON line")
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	defer closer.Close()

	if len(crawlFlags.urls) > 0 {
		cfg.Crawl.URLs, cfg.Crawl.URLFile = crawlFlags.urls, ""
	}
	if len(crawlFlags.extensions) > 0 {
		cfg.Browser.Extensions = crawlFlags.extensions
	}
	if crawlFlags.parallel > 0 {
		cfg.Crawl.Parallel = crawlFlags.parallel
	}
	if crawlFlags.output != "" {
		cfg.Collector.OutputDir = crawlFlags.output
	}
	if crawlFlags.collector != "" {
		cfg.Crawl.Collector = crawlFlags.collector
	}
	if crawlFlags.echo {
		cfg.Crawl.Echo = true
	}
	// Every crawl tab is closed after its visit; its session must survive.
	cfg.Collector.FlushOnClose = true

	urls, err := cfg.CrawlURLs()
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return errors.New("cvwatch: crawl: no URLs (set crawl.urls, crawl.url_file or --url)")
	}

	var col *domwatch.Collector
	if cfg.Crawl.Collector == "" {
		exp, release, err := exporter(cfg, logger)
		if err != nil {
			return err
		}
		defer release()
		col = domwatch.NewCollector(cfg, exp, logger)
	}

	crawler, err := domwatch.NewCrawler(cfg, col, logger)
	if err != nil {
		return err
	}
	crawler.SetEcho(cmd.OutOrStdout())
	stats, runErr := crawler.Run(cmd.Context(), urls)
	if col != nil {
		if err := col.Close(context.WithoutCancel(cmd.Context())); err != nil {
			logger.Error("cvwatch: close collector", "error", err)
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		return err
	}
	return runErr
}
