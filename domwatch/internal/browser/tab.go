package browser

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// Tab wraps a Rod page with the page hook installed and, when the manager
// has a block list, request blocking.
type Tab struct {
	Page *rod.Page
	ID   string
	Hook *Hook

	block   *blocker
	manager *Manager
}

// OpenTab creates a new stealth tab on the manager's browser.
func OpenTab(ctx context.Context, mgr *Manager) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	hook, err := InstallHook(ctx, page, mgr.cfg.Logger)
	if err != nil {
		page.Close()
		return nil, err
	}

	t := &Tab{Page: page, ID: string(page.TargetID), Hook: hook, manager: mgr}
	if mgr.cfg.BlockList != nil {
		if t.block, err = applyBlockList(page, mgr.cfg.BlockList); err != nil {
			mgr.cfg.Logger.Warn("browser: request blocking failed", "error", err)
		}
	}
	return t, nil
}

// Navigate loads pageURL and waits for the load event, at most timeout.
// A load that does not finish in time is logged, not returned: the page
// keeps being observed.
func (t *Tab) Navigate(ctx context.Context, pageURL string, timeout time.Duration) error {
	if t.block != nil {
		if u, err := url.Parse(pageURL); err == nil {
			t.block.domain.Store(u.Hostname())
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := t.Page.Context(navCtx).Navigate(pageURL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := t.Page.Context(navCtx).WaitLoad(); err != nil {
		t.manager.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return nil
}

// DispatchFileName raises the file-name event in the page, the way the
// crawl driver names the artifact of the current visit.
func (t *Tab) DispatchFileName(ctx context.Context, name string) error {
	_, err := t.Page.Context(ctx).Eval(`(name) => window.dispatchEvent(
		new CustomEvent('AnticvFileNameEvent', {detail: {filename: name}}))`, name)
	if err != nil {
		return fmt.Errorf("browser: dispatch file name: %w", err)
	}
	return nil
}

// Blocked returns the number of requests the block list failed.
func (t *Tab) Blocked() int64 {
	if t.block == nil {
		return 0
	}
	return t.block.blocked.Load()
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.block != nil {
		t.block.stop()
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
