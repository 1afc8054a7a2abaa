// Package observer turns raw DOM change records of one page into
// normalised mutation events, filters them and streams them to a
// transport channel.
package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/cvwatch/domwatch/internal/dom"
	"github.com/hazyhaar/cvwatch/domwatch/internal/transport"
	"github.com/hazyhaar/cvwatch/domwatch/mutation"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// Config for creating an Observer.
type Config struct {
	PageURL        string
	Channel        transport.Channel
	Filter         Filter
	CaptureDialogs bool
	Clock          func() time.Time
	Logger         *slog.Logger
}

// Observer watches a single page. HandleRecords, the lifecycle hooks and
// signals may be called from different goroutines; they are serialised
// internally so events leave in call order.
type Observer struct {
	ch       transport.Channel
	filter   Filter
	dialogs  bool
	clock    func() time.Time
	logger   *slog.Logger
	pageURL  string
	excluded bool

	mu       sync.Mutex
	ctx      context.Context
	watcher  dom.Watcher
	norm     *Normalizer
	reg      *Registry
	domReady bool
	last     int64
	dead     bool
	closed   bool
	sent     int
	dropped  int
}

// New creates an Observer for the page at cfg.PageURL.
func New(cfg Config) *Observer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Filter.BlockedMarker == "" && cfg.Filter.SnippetMarker == "" && cfg.Filter.ExcludedSubstrings == nil {
		cfg.Filter = DefaultFilter()
	}
	reg := NewRegistry()
	return &Observer{
		ch:       cfg.Channel,
		filter:   cfg.Filter,
		dialogs:  cfg.CaptureDialogs,
		clock:    cfg.Clock,
		logger:   cfg.Logger.With("url", cfg.PageURL),
		pageURL:  cfg.PageURL,
		excluded: cfg.Filter.Excluded(cfg.PageURL),
		ctx:      context.Background(),
		norm:     NewNormalizer(reg),
		reg:      reg,
	}
}

// Attach opens the channel with the handshake, subscribes to every change
// of the document and to each open shadow root present at this point.
// Shadow roots attached later are not observed.
func (o *Observer) Attach(ctx context.Context, w dom.Watcher) error {
	o.mu.Lock()
	o.ctx = ctx
	o.watcher = w
	o.mu.Unlock()

	if err := transport.Open(ctx, o.ch, o.pageURL); err != nil {
		o.mu.Lock()
		o.markDead(err)
		o.mu.Unlock()
		return fmt.Errorf("observer: open channel: %w", err)
	}

	doc := w.Document()
	if err := w.Observe(doc, dom.AllMutations, o.HandleRecords); err != nil {
		return fmt.Errorf("observer: observe document: %w", err)
	}
	roots := findShadowRoots(w, doc, nil)
	for _, sr := range roots {
		if err := w.Observe(sr, dom.AllMutations, o.HandleRecords); err != nil {
			return fmt.Errorf("observer: observe shadow root: %w", err)
		}
	}
	o.logger.Debug("observer: attached", "shadow_roots", len(roots), "excluded", o.excluded)
	return nil
}

// findShadowRoots collects the open shadow roots under n, descending into
// the roots it finds.
func findShadowRoots(w dom.Watcher, n *html.Node, list []*html.Node) []*html.Node {
	if sr := w.ShadowRoot(n); sr != nil {
		list = append(list, sr)
		list = findShadowRoots(w, sr, list)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode || c.Type == html.DocumentNode {
			list = findShadowRoots(w, c, list)
		}
	}
	return list
}

// HandleRecords processes one batch in arrival order. An unknown record is
// logged and skipped.
func (o *Observer) HandleRecords(records []dom.Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, rec := range records {
		events, err := o.norm.Normalize(rec)
		if err != nil {
			o.logger.Warn("observer: skip record", "error", err)
			continue
		}
		for i := range events {
			o.emit(events[i])
		}
	}
}

// DOMContentLoaded marks the page ready and emits the lifecycle event.
func (o *Observer) DOMContentLoaded() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.domReady = true
	o.emit(mutation.Event{Type: mutation.KindDOMContentLoaded})
}

// WindowLoaded emits the load-complete lifecycle event.
func (o *Observer) WindowLoaded() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.emit(mutation.Event{Type: mutation.KindWindowLoaded})
}

// DialogInvoked records an attempt of the page to open a dialog as a
// synthetic nodes-added event. It does nothing unless dialog capture is
// enabled.
func (o *Observer) DialogInvoked(message string) {
	if !o.dialogs {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.emit(mutation.Event{
		Type:   mutation.KindNodesAdded,
		Target: &mutation.NodeRef{Selector: "Page", NodeID: -1},
		Nodes:  []mutation.NodeRef{{Selector: "Alert", NodeID: -1}},
		Record: message,
	})
}

// Signal forwards a custom signal, such as the output filename, as is.
// Signals are not filtered.
func (o *Observer) Signal(name string, payload json.RawMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.send(mutation.NewSignal(name, payload))
}

var spaces = regexp.MustCompile(` +`)

// Dump emits a page dump event: the node-name outline of the document,
// the body's HTML and its text.
func (o *Observer) Dump() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.watcher == nil {
		return errors.New("observer: dump: not attached")
	}
	doc := o.watcher.Document()

	var outline strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		line := dom.NodeName(n)
		if n.Type == html.TextNode {
			text := strings.NewReplacer("\r", " ", "\n", " ").Replace(" " + n.Data)
			line += spaces.ReplaceAllString(text, " ")
		}
		outline.WriteString(line)
		outline.WriteByte('\n')
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			walk(c)
		}
	}

	var inner bytes.Buffer
	if body := dom.Body(doc); body != nil {
		for c := body.FirstChild; c != nil; c = c.NextSibling {
			if err := html.Render(&inner, c); err != nil {
				return fmt.Errorf("observer: dump: render: %w", err)
			}
		}
	}
	text := html.UnescapeString(bluemonday.StrictPolicy().Sanitize(inner.String()))

	o.emit(mutation.Event{
		Type:      mutation.KindPageDump,
		DOM:       outline.String(),
		InnerHTML: inner.String(),
		InnerText: strings.TrimSpace(text),
	})
	return nil
}

// Close closes the channel. Further events are dropped.
func (o *Observer) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	o.logger.Debug("observer: closed", "sent", o.sent, "dropped", o.dropped, "nodes", o.reg.Assigned())
	if err := o.ch.Close(); err != nil {
		return fmt.Errorf("observer: close channel: %w", err)
	}
	return nil
}

// Registry exposes the page's node registry.
func (o *Observer) Registry() *Registry { return o.reg }

// emit filters ev, stamps it and sends it. Caller holds o.mu.
func (o *Observer) emit(ev mutation.Event) {
	if o.excluded || !o.filter.Allow(&ev, o.domReady) {
		return
	}
	ev.Timestamp = o.now()
	o.send(mutation.NewEventMessage(ev, ev.Timestamp))
}

// now returns the clock in epoch milliseconds, never going backwards.
func (o *Observer) now() int64 {
	t := o.clock().UnixMilli()
	if t < o.last {
		t = o.last
	}
	o.last = t
	return t
}

func (o *Observer) send(msg mutation.Message) {
	if o.dead || o.closed {
		return
	}
	err := o.ch.Send(o.ctx, msg)
	switch {
	case err == nil:
		o.sent++
	case !transport.Terminal(err):
		o.dropped++
	default:
		o.markDead(err)
	}
}

func (o *Observer) markDead(err error) {
	if o.dead {
		return
	}
	o.dead = true
	o.logger.Warn("observer: channel lost, dropping further events", "error", err)
}
