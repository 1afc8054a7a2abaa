// Package browser runs Chrome for crawls: launch with the configured
// extensions, open stealth tabs, install the page hook that mirrors the DOM
// into Go, and relaunch after a crash.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/hazyhaar/cvwatch/filterlist"
)

// StealthLevel controls how Chrome is displayed.
type StealthLevel int

const (
	LevelHeadless StealthLevel = 1 // headless + stealth
	LevelHeadful  StealthLevel = 2 // headful on Xvfb + stealth
)

// ParseStealth maps the configuration names onto levels.
func ParseStealth(s string) StealthLevel {
	if s == "headful" {
		return LevelHeadful
	}
	return LevelHeadless
}

func (l StealthLevel) String() string {
	if l == LevelHeadful {
		return "headful"
	}
	return "headless"
}

var errClosed = errors.New("browser: manager is closed")

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket of an already running Chrome.
	// Empty launches a local one.
	RemoteURL string

	Stealth StealthLevel

	// XvfbDisplay hosts a headful Chrome. Default ":99".
	XvfbDisplay string

	// Extensions are unpacked extension directories, typically an ad
	// blocker for the variant crawl. Local Chrome only.
	Extensions []string

	// UserDataDir is the Chrome profile. Empty = a temporary one.
	UserDataDir string

	// BlockList, when set, fails every request it blocks in every tab.
	BlockList *filterlist.List

	Logger *slog.Logger
}

// Manager owns one Chrome process at a time.
type Manager struct {
	cfg Config

	mu       sync.RWMutex
	browser  *rod.Browser
	launched *launcher.Launcher
	display  *xvfb
	since    time.Time
	closed   bool
}

// NewManager creates a Manager. Chrome starts with Start.
func NewManager(cfg Config) *Manager {
	if cfg.Stealth == 0 {
		cfg.Stealth = LevelHeadless
	}
	if cfg.XvfbDisplay == "" {
		cfg.XvfbDisplay = ":99"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{cfg: cfg}
}

// Start launches Chrome, or connects to the remote one.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errClosed
	}
	if err := m.startLocked(ctx); err != nil {
		return nil, err
	}
	return m.browser, nil
}

// Browser returns the current browser, nil before Start.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Recycle replaces Chrome with a fresh process. Tabs of the old one are
// gone afterwards.
func (m *Manager) Recycle(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	m.cfg.Logger.Info("browser: recycling", "uptime", time.Since(m.since).Round(time.Second))
	m.stopLocked()
	if err := m.startLocked(ctx); err != nil {
		return fmt.Errorf("browser: relaunch: %w", err)
	}
	return nil
}

// Close stops Chrome and its display for good.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.stopLocked()
	return nil
}

func (m *Manager) startLocked(ctx context.Context) error {
	if m.cfg.Stealth == LevelHeadful && m.display == nil {
		d, err := startXvfb(ctx, m.cfg.XvfbDisplay)
		if err != nil {
			return err
		}
		m.display = d
		m.cfg.Logger.Info("browser: xvfb started", "display", d.name)
	}

	controlURL := m.cfg.RemoteURL
	if controlURL == "" {
		l := m.launcher(ctx)
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		controlURL, m.launched = u, l
	} else if len(m.cfg.Extensions) > 0 {
		m.cfg.Logger.Warn("browser: extensions are ignored for a remote browser", "url", controlURL)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("browser: connect %s: %w", controlURL, err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		m.cfg.Logger.Warn("browser: ignore cert errors", "error", err)
	}
	m.browser, m.since = b, time.Now()
	m.cfg.Logger.Info("browser: ready", "url", controlURL, "mode", m.cfg.Stealth,
		"remote", m.cfg.RemoteURL != "", "extensions", len(m.cfg.Extensions))
	return nil
}

// launcher builds the local Chrome command line.
func (m *Manager) launcher(ctx context.Context) *launcher.Launcher {
	l := launcher.New().Context(ctx).
		Set("disable-blink-features", "AutomationControlled")

	exts := strings.Join(m.cfg.Extensions, ",")
	switch {
	case m.cfg.Stealth == LevelHeadful:
		l = l.Headless(false).Env(append(os.Environ(), "DISPLAY="+m.cfg.XvfbDisplay)...)
	case exts != "":
		// Extensions only run in the new headless mode.
		l = l.Headless(false).Set("headless", "new")
	default:
		l = l.Headless(true)
	}
	if exts != "" {
		l = l.Set("load-extension", exts).Set("disable-extensions-except", exts)
	}
	if m.cfg.UserDataDir != "" {
		l = l.UserDataDir(m.cfg.UserDataDir)
	}
	return l
}

func (m *Manager) stopLocked() {
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			m.cfg.Logger.Debug("browser: close", "error", err)
		}
		m.browser = nil
	}
	if m.launched != nil {
		m.launched.Cleanup()
		m.launched = nil
	}
	if m.display != nil {
		m.display.stop()
		m.cfg.Logger.Info("browser: xvfb stopped", "display", m.display.name)
		m.display = nil
	}
}
