// Package collector buffers the messages of every observed tab and
// exports one artifact per visited URL when the tab navigates away.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/cvwatch/domwatch/internal/export"
	"github.com/hazyhaar/cvwatch/domwatch/internal/observer"
	"github.com/hazyhaar/cvwatch/domwatch/internal/transport"
	"github.com/hazyhaar/cvwatch/domwatch/mutation"
)

// Navigation statuses reported by the browser.
const (
	StatusLoading  = "loading"
	StatusComplete = "complete"
)

// Session is the buffered state of one tab.
type Session struct {
	TabID    string             `json:"tabId"`
	URL      string             `json:"url"`
	FileName string             `json:"filename"`
	Events   []mutation.Message `json:"events"`
	Loading  bool               `json:"loading"`
}

// Config for creating a Collector.
type Config struct {
	Exporter export.Exporter
	// Excluded are URL substrings of pages that are never tracked.
	Excluded []string
	// Suffix is appended to artifact names. Default mutation.DefaultFileSuffix.
	Suffix string
	// FlushOnClose exports the session of a closed tab, and every
	// remaining session on Close, instead of discarding them.
	FlushOnClose bool
	// QueueSize bounds each port. Default transport.DefaultQueueSize.
	QueueSize int
	Clock     func() time.Time
	Logger    *slog.Logger
}

// Collector owns every tab's session.
type Collector struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	ports    map[*transport.Port]struct{}
	flushes  int
}

// New creates a Collector.
func New(cfg Config) *Collector {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Suffix == "" {
		cfg.Suffix = mutation.DefaultFileSuffix
	}
	if cfg.Excluded == nil {
		cfg.Excluded = append([]string(nil), observer.DefaultExcluded...)
	}
	return &Collector{
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: make(map[string]*Session),
		ports:    make(map[*transport.Port]struct{}),
	}
}

func (c *Collector) excluded(u string) bool {
	for _, s := range c.cfg.Excluded {
		if s != "" && strings.Contains(u, s) {
			return true
		}
	}
	return false
}

// session returns the tab's session, creating an untracked one. Caller
// holds c.mu.
func (c *Collector) session(tabID string) *Session {
	s, ok := c.sessions[tabID]
	if !ok {
		s = &Session{TabID: tabID}
		c.sessions[tabID] = s
		c.logger.Debug("collector: new tab", "tab", tabID)
	}
	return s
}

// OnNavigation applies a navigation status of tab. Loading a URL other
// than the session's flushes the old session, when it had a URL, and
// starts a fresh one. Completion of the current URL only clears the
// loading flag. Excluded URLs and unknown statuses are ignored.
func (c *Collector) OnNavigation(ctx context.Context, tabID, url, status string) {
	if url == "" || c.excluded(url) {
		return
	}

	var pending *flushJob
	c.mu.Lock()
	s := c.session(tabID)
	switch status {
	case StatusLoading:
		if s.URL == url {
			break
		}
		if s.URL != "" {
			pending = c.detach(s)
		} else if len(s.Events) > 0 {
			c.logger.Debug("collector: discard untracked events", "tab", tabID, "events", len(s.Events))
		}
		*s = Session{TabID: tabID, URL: url, Loading: true}
		c.logger.Info("collector: tab loading new url", "tab", tabID, "url", url)
	case StatusComplete:
		if s.URL == url {
			s.Loading = false
			c.logger.Debug("collector: page complete", "tab", tabID, "url", url)
		}
	default:
		c.logger.Debug("collector: ignore navigation status", "tab", tabID, "status", status)
	}
	c.mu.Unlock()

	c.flush(ctx, pending)
}

// OnMessage buffers one message of tab. Handshakes are only logged and
// a filename signal sets the session's filename without being buffered.
func (c *Collector) OnMessage(tabID string, msg mutation.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session(tabID)

	if msg.IsHandshake() {
		c.logger.Debug("collector: page connected", "tab", tabID, "url", msg.HandshakeURL())
		return
	}
	if name, ok := msg.FileName(); ok {
		s.FileName = name
		c.logger.Debug("collector: filename set", "tab", tabID, "filename", name)
		return
	}
	s.Events = append(s.Events, msg)
}

// OnTabActivated records that tab became the active tab.
func (c *Collector) OnTabActivated(tabID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session(tabID)
	s.Events = append(s.Events, c.tabEvent(s, mutation.KindTabActivated))
}

// OnTabClosed records the removal of tab and drops its session, or
// exports it when FlushOnClose is set. Unknown tabs are ignored.
func (c *Collector) OnTabClosed(ctx context.Context, tabID string) {
	var pending *flushJob
	c.mu.Lock()
	s, ok := c.sessions[tabID]
	if ok {
		s.Events = append(s.Events, c.tabEvent(s, mutation.KindTabRemoved))
		delete(c.sessions, tabID)
		if c.cfg.FlushOnClose && s.URL != "" {
			pending = c.detach(s)
		} else {
			c.logger.Info("collector: tab closed, session discarded", "tab", tabID, "url", s.URL, "events", len(s.Events))
		}
	}
	c.mu.Unlock()

	c.flush(ctx, pending)
}

func (c *Collector) tabEvent(s *Session, kind mutation.Kind) mutation.Message {
	return mutation.NewTabEvent(kind, s.TabID, c.stamp(s))
}

// stamp reads the clock for s, never earlier than its last timed message:
// a wall clock stepping back keeps the session ordered.
func (c *Collector) stamp(s *Session) int64 {
	now := c.cfg.Clock().UnixMilli()
	for i := len(s.Events) - 1; i >= 0; i-- {
		if t := s.Events[i].Time; t != 0 {
			return max(now, t)
		}
	}
	return now
}

// Connect opens an in-process channel for a page of tab. Its single
// reader feeds OnMessage in FIFO order.
func (c *Collector) Connect(tabID string) *transport.Port {
	p := transport.NewPort(tabID, c.cfg.QueueSize, func(m mutation.Message) {
		c.OnMessage(tabID, m)
	})
	c.mu.Lock()
	c.ports[p] = struct{}{}
	c.mu.Unlock()
	return p
}

// Release closes p and forgets it.
func (c *Collector) Release(p *transport.Port) error {
	c.mu.Lock()
	delete(c.ports, p)
	c.mu.Unlock()
	if dropped := p.Dropped(); dropped > 0 {
		c.logger.Warn("collector: port dropped messages", "tab", p.Name(), "dropped", dropped)
	}
	return p.Close()
}

// Sessions returns a copy of every session, for inspection.
func (c *Collector) Sessions() []Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		cp := *s
		cp.Events = append([]mutation.Message(nil), s.Events...)
		out = append(out, cp)
	}
	return out
}

// Session returns a copy of tab's session.
func (c *Collector) Session(tabID string) (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[tabID]
	if !ok {
		return Session{}, false
	}
	cp := *s
	cp.Events = append([]mutation.Message(nil), s.Events...)
	return cp, true
}

// Flushes returns how many artifacts were exported.
func (c *Collector) Flushes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushes
}

// Close drains and closes every open port, then exports the remaining
// sessions when FlushOnClose is set.
func (c *Collector) Close(ctx context.Context) error {
	c.mu.Lock()
	ports := make([]*transport.Port, 0, len(c.ports))
	for p := range c.ports {
		ports = append(ports, p)
	}
	c.mu.Unlock()
	var errs []error
	for _, p := range ports {
		if err := c.Release(p); err != nil {
			errs = append(errs, fmt.Errorf("collector: release %s: %w", p.Name(), err))
		}
	}

	if !c.cfg.FlushOnClose {
		return errors.Join(errs...)
	}
	var jobs []*flushJob
	c.mu.Lock()
	for id, s := range c.sessions {
		if s.URL != "" {
			jobs = append(jobs, c.detach(s))
		}
		delete(c.sessions, id)
	}
	c.mu.Unlock()
	for _, j := range jobs {
		c.flush(ctx, j)
	}
	return errors.Join(errs...)
}
