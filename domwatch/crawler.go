// Package domwatch drives Chrome through a list of pages and records the
// DOM mutations of each visit. Every page load gets a fresh tab with an
// observer attached; the collector buffers the events per tab and flushes
// one artifact per visited URL.
//
// The same crawl runs vanilla or with an ad-block extension loaded, so the
// artifacts of both runs can be imported into the store and compared with
// store.DiffDOM.
package domwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/cvwatch/domwatch/internal/browser"
	"github.com/hazyhaar/cvwatch/domwatch/internal/collector"
	"github.com/hazyhaar/cvwatch/domwatch/internal/observer"
	"github.com/hazyhaar/cvwatch/domwatch/internal/transport"
	"github.com/hazyhaar/cvwatch/domwatch/mutation"
	"github.com/hazyhaar/cvwatch/filterlist"
)

// signalTimeout bounds the wait for the page to echo the filename event.
const signalTimeout = 5 * time.Second

// CrawlStats summarises a crawl.
type CrawlStats struct {
	Visited int   `json:"visited"`
	Failed  int   `json:"failed"`
	Blocked int64 `json:"blocked"`
}

// sessions is where a crawl reports tabs: the in-process collector or a
// remote one.
type sessions interface {
	navigation(ctx context.Context, tabID, pageURL, status string)
	channel(tabID string) transport.Channel
	release(ch transport.Channel)
	closed(ctx context.Context, tabID string)
}

type localSessions struct {
	c      *collector.Collector
	logger *slog.Logger
}

func (s localSessions) navigation(ctx context.Context, tabID, pageURL, status string) {
	s.c.OnNavigation(ctx, tabID, pageURL, status)
}

func (s localSessions) channel(tabID string) transport.Channel { return s.c.Connect(tabID) }

func (s localSessions) release(ch transport.Channel) {
	p, ok := ch.(*transport.Port)
	if !ok {
		return
	}
	if err := s.c.Release(p); err != nil && s.logger != nil {
		s.logger.Warn("domwatch: release channel", "tab", p.Name(), "error", err)
	}
}

func (s localSessions) closed(ctx context.Context, tabID string) { s.c.OnTabClosed(ctx, tabID) }

type remoteSessions struct {
	c      *collector.Client
	logger *slog.Logger
}

func (s remoteSessions) navigation(ctx context.Context, tabID, pageURL, status string) {
	if err := s.c.Navigation(ctx, tabID, pageURL, status); err != nil {
		s.logger.Warn("domwatch: report navigation", "tab", tabID, "error", err)
	}
}

func (s remoteSessions) channel(tabID string) transport.Channel { return s.c.Channel(tabID) }

func (s remoteSessions) release(transport.Channel) {}

func (s remoteSessions) closed(ctx context.Context, tabID string) {
	if err := s.c.Closed(ctx, tabID); err != nil {
		s.logger.Warn("domwatch: report tab closed", "tab", tabID, "error", err)
	}
}

// Crawler visits pages in parallel tabs of one browser.
type Crawler struct {
	cfg    *Config
	mgr    *browser.Manager
	sess   sessions
	filter observer.Filter
	logger *slog.Logger
	echo   io.Writer

	// Visits hold gate for reading; a browser recycle holds it for writing
	// so no tab is lost mid-visit.
	gate        sync.RWMutex
	mu          sync.Mutex
	generation  int
	lastRecycle time.Time

	blocked atomic.Int64
}

// NewCrawler creates a crawler reporting into col, or into the remote
// collector at cfg.Crawl.Collector when set. The browser's block lists
// are loaded here.
func NewCrawler(cfg *Config, col *Collector, logger *slog.Logger) (*Crawler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Crawler{
		cfg:    cfg,
		filter: filterFor(cfg.Observer),
		logger: logger,
	}
	switch {
	case cfg.Crawl.Collector != "":
		c.sess = remoteSessions{c: collector.NewClient(cfg.Crawl.Collector, logger), logger: logger}
	case col != nil:
		c.sess = localSessions{c: col, logger: logger}
	default:
		return nil, fmt.Errorf("domwatch: crawl needs a collector")
	}

	var list *filterlist.List
	if len(cfg.Browser.BlockLists) > 0 {
		l, err := filterlist.LoadFiles(logger, cfg.Browser.BlockLists...)
		if err != nil {
			return nil, fmt.Errorf("domwatch: block lists: %w", err)
		}
		list = l
	}

	c.mgr = browser.NewManager(browser.Config{
		RemoteURL:   cfg.Browser.Remote,
		Stealth:     browser.ParseStealth(cfg.Browser.Stealth),
		XvfbDisplay: cfg.Browser.XvfbDisplay,
		Extensions:  cfg.Browser.Extensions,
		UserDataDir: cfg.Browser.UserDataDir,
		BlockList:   list,
		Logger:      logger,
	})
	return c, nil
}

// SetEcho sets where echoed page messages go (os.Stdout by default).
func (c *Crawler) SetEcho(w io.Writer) { c.echo = w }

// Run starts the browser, visits every URL and closes the browser. A
// failed visit is logged and counted; Run only fails when the browser
// cannot start or ctx is cancelled.
func (c *Crawler) Run(ctx context.Context, urls []string) (CrawlStats, error) {
	var stats CrawlStats
	if _, err := c.mgr.Start(ctx); err != nil {
		return stats, fmt.Errorf("domwatch: start browser: %w", err)
	}
	defer c.mgr.Close()
	c.lastRecycle = time.Now()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Crawl.Parallel)
	for i, u := range urls {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			err := c.Visit(gctx, i, u)
			mu.Lock()
			if err != nil {
				stats.Failed++
				c.logger.Error("domwatch: visit failed", "url", u, "error", err)
			} else {
				stats.Visited++
			}
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	stats.Blocked = c.blocked.Load()
	c.logger.Info("domwatch: crawl done", "visited", stats.Visited, "failed", stats.Failed, "blocked", stats.Blocked)
	if err != nil {
		return stats, err
	}
	return stats, ctx.Err()
}

// Visit loads pageURL in a fresh tab, observes it for the dwell time and
// closes the tab, which flushes its session. i numbers the artifact.
func (c *Crawler) Visit(ctx context.Context, i int, pageURL string) error {
	tab, err := c.openTab(ctx)
	if err != nil {
		return err
	}
	defer c.gate.RUnlock()
	defer tab.Close()

	log := c.logger.With("url", pageURL, "tab", tab.ID)
	c.sess.navigation(ctx, tab.ID, pageURL, collector.StatusLoading)

	ch := c.sess.channel(tab.ID)
	var out transport.Channel = ch
	if c.cfg.Crawl.Echo {
		out = transport.NewRouter(c.logger, ch, transport.NewStdout(c.echo, tab.ID))
	}
	obs := observer.New(observer.Config{
		PageURL:        pageURL,
		Channel:        out,
		Filter:         c.filter,
		CaptureDialogs: c.cfg.Observer.CaptureDialogs,
		Logger:         c.logger,
	})
	tab.Hook.Bind(obs)

	navErr := tab.Navigate(ctx, pageURL, c.cfg.Crawl.NavTimeout)
	if navErr == nil {
		c.sess.navigation(ctx, tab.ID, pageURL, collector.StatusComplete)
		c.nameArtifact(ctx, tab, i, pageURL, log)
		c.dwell(ctx)
		if c.cfg.Crawl.DumpOnLoad {
			if err := tab.Hook.Dump(); err != nil {
				log.Warn("domwatch: page dump", "error", err)
			}
		}
	}

	failed := tab.Hook.Unbind()
	if err := obs.Close(); err != nil {
		log.Warn("domwatch: close observer", "error", err)
	}
	c.sess.release(ch)
	c.sess.closed(context.WithoutCancel(ctx), tab.ID)
	c.blocked.Add(tab.Blocked())

	if navErr != nil {
		return navErr
	}
	log.Info("domwatch: visited", "blocked", tab.Blocked(), "unreplayed", failed)
	return nil
}

// nameArtifact asks the page to announce the artifact name, the way the
// crawl driver does in the browser. If the page never echoes it, the
// signal is injected directly.
func (c *Crawler) nameArtifact(ctx context.Context, tab *browser.Tab, i int, pageURL string, log *slog.Logger) {
	name := fileName(i, pageURL)
	if err := tab.DispatchFileName(ctx, name); err != nil {
		log.Debug("domwatch: dispatch file name", "error", err)
	}
	wctx, cancel := context.WithTimeout(ctx, signalTimeout)
	defer cancel()
	if err := tab.Hook.WaitSignal(wctx, mutation.SignalFileName); err == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"filename": name})
	tab.Hook.Signal(mutation.SignalFileName, payload)
}

func (c *Crawler) dwell(ctx context.Context) {
	t := time.NewTimer(c.cfg.Crawl.Dwell)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// openTab returns a new tab with c.gate held for reading. A tab that
// fails to open gets one retry on a recycled browser.
func (c *Crawler) openTab(ctx context.Context) (*browser.Tab, error) {
	c.recycle(ctx, false, 0)

	c.gate.RLock()
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()
	tab, err := browser.OpenTab(ctx, c.mgr)
	if err == nil {
		return tab, nil
	}
	c.gate.RUnlock()
	c.logger.Warn("domwatch: open tab failed, recycling browser", "error", err)

	c.recycle(ctx, true, gen)
	c.gate.RLock()
	tab, err = browser.OpenTab(ctx, c.mgr)
	if err != nil {
		c.gate.RUnlock()
		return nil, fmt.Errorf("domwatch: open tab: %w", err)
	}
	return tab, nil
}

// recycle relaunches the browser when the recycle interval has elapsed,
// or when force is set and no other worker relaunched it since gen.
func (c *Crawler) recycle(ctx context.Context, force bool, gen int) {
	if !force && !c.recycleDue() {
		return
	}
	c.gate.Lock()
	defer c.gate.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if force && c.generation != gen {
		return
	}
	if !force && !c.recycleDueLocked() {
		return
	}
	if err := c.mgr.Recycle(ctx); err != nil {
		c.logger.Error("domwatch: recycle browser", "error", err)
	}
	c.generation++
	c.lastRecycle = time.Now()
}

func (c *Crawler) recycleDue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recycleDueLocked()
}

func (c *Crawler) recycleDueLocked() bool {
	every := c.cfg.Browser.RecycleInterval
	return every > 0 && time.Since(c.lastRecycle) >= every
}

// fileName names the artifact of the i-th URL: the URL without its
// scheme, cut to 50 bytes on a rune boundary, and the index.
func fileName(i int, pageURL string) string {
	name := pageURL
	if _, rest, ok := strings.Cut(name, "://"); ok {
		name = rest
	}
	if len(name) > 50 {
		cut := 50
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return name + "__" + strconv.Itoa(i)
}
