package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/cvwatch/domwatch"
	"github.com/hazyhaar/cvwatch/filterlist"
	"github.com/hazyhaar/cvwatch/store"
)

var collectFlags struct {
	addr   string
	output string
	mcp    bool
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run the collector HTTP API that buffers tab sessions and flushes artifacts",
	Long: `Serves the collector API on --addr. Browser-side channels post messages
and navigation statuses per tab; every navigation away from a URL flushes
the tab's session as one artifact into the output directory, and into the
store when store.crawl_group is configured.

With --mcp the cvwatch_sessions and filterlist_match tools are also served
over stdio.`,
	RunE: runCollect,
}

func init() {
	f := collectCmd.Flags()
	f.StringVar(&collectFlags.addr, "addr", "", "override collector.addr")
	f.StringVarP(&collectFlags.output, "output", "o", "", "override collector.output_dir")
	f.BoolVar(&collectFlags.mcp, "mcp", false, "also serve MCP tools over stdio")
}

func runCollect(cmd *cobra.Command, _ []string) error {
	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	defer closer.Close()
	if collectFlags.addr != "" {
		cfg.Collector.Addr = collectFlags.addr
	}
	if collectFlags.output != "" {
		cfg.Collector.OutputDir = collectFlags.output
	}

	exp, release, err := exporter(cfg, logger)
	if err != nil {
		return err
	}
	defer release()
	col := domwatch.NewCollector(cfg, exp, logger)

	ctx := cmd.Context()
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{Addr: cfg.Collector.Addr, Handler: col.Handler()}
	g.Go(func() error {
		logger.Info("cvwatch: collector listening", "addr", cfg.Collector.Addr, "output", cfg.Collector.OutputDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("cvwatch: collector: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if collectFlags.mcp {
		lists, err := filterlist.LoadFiles(logger, cfg.FilterList.Lists...)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return serveMCP(gctx, col, lists, logger)
		})
	}

	err = g.Wait()
	if cerr := col.Close(context.WithoutCancel(ctx)); cerr != nil {
		logger.Error("cvwatch: close collector", "error", cerr)
	}
	logger.Info("cvwatch: collector stopped", "flushes", col.Flushes())
	return err
}

func serveMCP(ctx context.Context, col *domwatch.Collector, lists *filterlist.List, logger *slog.Logger) error {
	srv := mcp.NewServer(&mcp.Implementation{Name: "cvwatch", Version: version}, nil)
	col.RegisterMCP(srv, logger)
	lists.RegisterMCP(srv, logger)
	logger.Info("cvwatch: serving MCP over stdio", "rules", lists.Len())
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("cvwatch: mcp: %w", err)
	}
	return nil
}

// exporter builds the artifact destination: the output directory, plus
// the store when a crawl group is configured. release closes the store.
func exporter(cfg *domwatch.Config, logger *slog.Logger) (domwatch.Exporter, func(), error) {
	file := domwatch.NewFileExporter(cfg.Collector.OutputDir)
	if cfg.Store.CrawlGroup == "" {
		return file, func() {}, nil
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	db := domwatch.NewStoreExporter(st, importOptions(cfg))
	release := func() {
		if err := st.Close(); err != nil {
			logger.Warn("cvwatch: close store", "error", err)
		}
	}
	return domwatch.NewMultiExporter(logger, file, db), release, nil
}

func importOptions(cfg *domwatch.Config) store.ImportOptions {
	return store.ImportOptions{
		CrawlGroup: cfg.Store.CrawlGroup,
		Collection: cfg.Store.Collection,
		Control:    cfg.Store.Control,
		WithEvents: cfg.Store.WithEvents,
	}
}
