package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/cvwatch/domwatch/internal/dom"
)

//go:embed pagehook.js
var pageHookJS string

// bindingName is the Runtime binding the page hook reports through.
const bindingName = "__cvwatch_binding"

// PageObserver receives what the page hook reports for one page load.
// *observer.Observer implements it.
type PageObserver interface {
	Attach(ctx context.Context, w dom.Watcher) error
	DOMContentLoaded()
	WindowLoaded()
	DialogInvoked(message string)
	Signal(name string, payload json.RawMessage)
	Dump() error
}

type hookMessage struct {
	Kind    string          `json:"kind"`
	Doc     string          `json:"doc"`
	URL     string          `json:"url,omitempty"`
	Root    *wireNode       `json:"root,omitempty"`
	Records []wireRecord    `json:"records,omitempty"`
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hook routes the page hook traffic of a tab to the bound observer. The
// first document reported after Bind is mirrored and attached; documents
// loaded later in the same tab are ignored until the next Bind.
type Hook struct {
	ctx    context.Context
	logger *slog.Logger

	mu     sync.Mutex
	obs    PageObserver
	doc    string
	mirror *Mirror
	failed int
	seen   map[string]chan struct{}
}

func newHook(ctx context.Context, logger *slog.Logger) *Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hook{ctx: ctx, logger: logger}
}

// InstallHook adds the binding and the page hook to page, and starts
// listening for binding calls and JavaScript dialogs. Dialogs are accepted
// so the page never blocks on them.
func InstallHook(ctx context.Context, page *rod.Page, logger *slog.Logger) (*Hook, error) {
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		return nil, fmt.Errorf("browser: add binding: %w", err)
	}
	js := strings.ReplaceAll(pageHookJS, "__CVWATCH_BINDING__", bindingName)
	if _, err := page.EvalOnNewDocument(js); err != nil {
		return nil, fmt.Errorf("browser: install page hook: %w", err)
	}

	h := newHook(ctx, logger)
	wait := page.Context(ctx).EachEvent(
		func(e *proto.RuntimeBindingCalled) {
			if e.Name == bindingName {
				h.handle(e.Payload)
			}
		},
		func(e *proto.PageJavascriptDialogOpening) {
			h.dialog(e.Message)
			go func() {
				if err := (proto.PageHandleJavaScriptDialog{Accept: true}).Call(page); err != nil {
					h.logger.Debug("browser: dismiss dialog", "error", err)
				}
			}()
		},
	)
	go wait()
	return h, nil
}

// Bind routes the next document to obs.
func (h *Hook) Bind(obs PageObserver) {
	h.mu.Lock()
	h.obs, h.doc, h.mirror, h.seen = obs, "", nil, nil
	h.mu.Unlock()
}

// Unbind stops routing and returns the number of mutation records the
// mirror could not replay.
func (h *Hook) Unbind() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	failed := h.failed
	h.obs, h.doc, h.mirror, h.failed, h.seen = nil, "", nil, 0, nil
	return failed
}

// Attached reports whether the bound observer has a document.
func (h *Hook) Attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mirror != nil
}

// Signal forwards a custom signal to the bound observer.
func (h *Hook) Signal(name string, payload json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.obs != nil {
		h.obs.Signal(name, payload)
	}
}

// WaitSignal blocks until the page reports the custom signal name for the
// bound document, or ctx is done.
func (h *Hook) WaitSignal(ctx context.Context, name string) error {
	h.mu.Lock()
	ch := h.seenLocked(name)
	h.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hook) seenLocked(name string) chan struct{} {
	if h.seen == nil {
		h.seen = make(map[string]chan struct{})
	}
	ch, ok := h.seen[name]
	if !ok {
		ch = make(chan struct{})
		h.seen[name] = ch
	}
	return ch
}

// Dump asks the bound observer for a page dump of the mirrored document.
func (h *Hook) Dump() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.mirror == nil {
		return fmt.Errorf("browser: dump: no document attached")
	}
	return h.obs.Dump()
}

func (h *Hook) handle(payload string) {
	var msg hookMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		h.logger.Warn("browser: bad page hook message", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.obs == nil {
		return
	}

	if msg.Kind == "snapshot" {
		if h.mirror != nil {
			h.logger.Debug("browser: ignoring later document", "url", msg.URL)
			return
		}
		if msg.Root == nil {
			h.logger.Warn("browser: snapshot without document", "url", msg.URL)
			return
		}
		m, err := NewMirror(*msg.Root)
		if err != nil {
			h.logger.Warn("browser: mirror document", "url", msg.URL, "error", err)
			return
		}
		h.doc, h.mirror = msg.Doc, m
		if err := h.obs.Attach(h.ctx, m); err != nil {
			h.logger.Warn("browser: attach observer", "url", msg.URL, "error", err)
		}
		return
	}

	if h.mirror == nil || msg.Doc != h.doc {
		return
	}
	switch msg.Kind {
	case "records":
		if n := h.mirror.Apply(msg.Records); n > 0 {
			h.failed += n
			h.logger.Debug("browser: records not replayed", "count", n)
		}
	case "lifecycle":
		switch msg.Name {
		case "DOMContentLoaded":
			h.obs.DOMContentLoaded()
		case "WindowLoaded":
			h.obs.WindowLoaded()
		}
	case "signal":
		h.obs.Signal(msg.Name, msg.Payload)
		ch := h.seenLocked(msg.Name)
		select {
		case <-ch:
		default:
			close(ch)
		}
	default:
		h.logger.Debug("browser: unknown page hook message", "kind", msg.Kind)
	}
}

func (h *Hook) dialog(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.obs != nil && h.mirror != nil {
		h.obs.DialogInvoked(message)
	}
}
