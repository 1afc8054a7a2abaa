package domwatch

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hazyhaar/cvwatch/domwatch/internal/collector"
	"github.com/hazyhaar/cvwatch/domwatch/mutation"
)

func TestFileName(t *testing.T) {
	long := "https://example.com/" + strings.Repeat("a", 60)
	tests := []struct {
		i    int
		url  string
		want string
	}{
		{0, "https://example.com/", "example.com/__0"},
		{7, "example.com/x", "example.com/x__7"},
		{2, long, "example.com/" + strings.Repeat("a", 38) + "__2"},
		// The cut falls inside "é" (two bytes at offsets 49-50).
		{3, "http://" + strings.Repeat("b", 49) + "é", strings.Repeat("b", 49) + "__3"},
	}
	for _, tt := range tests {
		if got := fileName(tt.i, tt.url); got != tt.want {
			t.Errorf("fileName(%d, %q): got %q, want %q", tt.i, tt.url, got, tt.want)
		}
	}
}

type artifacts struct {
	mu  sync.Mutex
	got map[string]mutation.Artifact
}

func (a *artifacts) exporter() Exporter {
	a.got = make(map[string]mutation.Artifact)
	return ExportFunc(func(_ context.Context, name string, art mutation.Artifact) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.got[name] = art
		return nil
	})
}

// visit replays what Visit reports for one page, without a browser.
func visit(t *testing.T, s sessions, tabID, pageURL string) {
	t.Helper()
	ctx := context.Background()
	s.navigation(ctx, tabID, pageURL, collector.StatusLoading)
	ch := s.channel(tabID)
	if err := ch.Send(ctx, mutation.NewHandshake(pageURL)); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if err := ch.Send(ctx, mutation.NewSignal(mutation.SignalFileName, []byte(`{"filename":"named"}`))); err != nil {
		t.Fatalf("signal: %v", err)
	}
	ev := mutation.NewEventMessage(mutation.Event{Type: mutation.KindWindowLoaded, Timestamp: 3}, 3)
	if err := ch.Send(ctx, ev); err != nil {
		t.Fatalf("event: %v", err)
	}
	s.navigation(ctx, tabID, pageURL, collector.StatusComplete)
	if err := ch.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	s.release(ch)
	s.closed(ctx, tabID)
}

func TestLocalSessionsFlushOnClose(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Collector.FlushOnClose = true
	var out artifacts
	col := NewCollector(cfg, out.exporter(), nil)

	visit(t, localSessions{c: col}, "T1", "http://a.test/")

	art, ok := out.got["named"+cfg.Collector.Suffix+".json"]
	if !ok {
		t.Fatalf("artifacts: got %v, want the named one", out.got)
	}
	if art.URL != "http://a.test/" {
		t.Errorf("url: got %q", art.URL)
	}
	// window loaded + tab removed
	if len(art.DOMMutation) != 2 {
		t.Errorf("events: got %d, want 2", len(art.DOMMutation))
	}
}

func TestRemoteSessions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Collector.FlushOnClose = true
	var out artifacts
	col := NewCollector(cfg, out.exporter(), nil)
	srv := httptest.NewServer(col.Handler())
	defer srv.Close()

	cfg.Crawl.Collector = srv.URL
	c, err := NewCrawler(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewCrawler: %v", err)
	}
	if _, ok := c.sess.(remoteSessions); !ok {
		t.Fatalf("sessions: got %T, want remoteSessions", c.sess)
	}

	visit(t, c.sess, "T2", "http://b.test/")
	if _, ok := out.got["named"+cfg.Collector.Suffix+".json"]; !ok {
		t.Errorf("artifacts: got %v, want the named one", out.got)
	}
}

func TestNewCrawler(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := NewCrawler(cfg, nil, nil); err == nil {
		t.Error("expected error without a collector")
	}

	col := NewCollector(cfg, nil, nil)
	cfg.Browser.BlockLists = []string{filepath.Join(t.TempDir(), "missing.txt")}
	if _, err := NewCrawler(cfg, col, nil); err == nil {
		t.Error("expected error for a missing block list")
	}

	list := filepath.Join(t.TempDir(), "easylist.txt")
	if err := os.WriteFile(list, []byte("||ads.test^\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Browser.BlockLists = []string{list}
	c, err := NewCrawler(cfg, col, nil)
	if err != nil {
		t.Fatalf("NewCrawler: %v", err)
	}
	if _, ok := c.sess.(localSessions); !ok {
		t.Errorf("sessions: got %T, want localSessions", c.sess)
	}
}

func TestRecycleDue(t *testing.T) {
	cfg := DefaultConfig()
	c, err := NewCrawler(cfg, NewCollector(cfg, nil, nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !c.recycleDue() {
		t.Error("zero last recycle: want due")
	}
	cfg.Browser.RecycleInterval = 0
	if c.recycleDue() {
		t.Error("no interval: want not due")
	}
}
