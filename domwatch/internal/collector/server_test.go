package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/cvwatch/domwatch/internal/transport"
	"github.com/hazyhaar/cvwatch/domwatch/mutation"
)

func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHTTPLifecycle(t *testing.T) {
	c, rec := newTestCollector(Config{})
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	if resp := do(t, srv, http.MethodGet, "/healthz", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: got %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPost, "/tabs/3/navigation", `{"url":"http://a.test/","status":"loading"}`); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("navigation: got %d", resp.StatusCode)
	}

	// The HTTP transport posts to the same API.
	ch := transport.NewHTTP(srv.URL, "3")
	ctx := context.Background()
	if err := transport.Open(ctx, ch, "http://a.test/"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := int64(1); i <= 2; i++ {
		if err := ch.Send(ctx, event(i)); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	do(t, srv, http.MethodPost, "/tabs/3/activated", "")

	resp := do(t, srv, http.MethodGet, "/sessions", "")
	var got []SessionSummary
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	want := []SessionSummary{{TabID: "3", URL: "http://a.test/", Loading: true, Events: 3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sessions mismatch (-want +got):\n%s", diff)
	}

	do(t, srv, http.MethodPost, "/tabs/3/navigation", `{"url":"http://b.test/","status":"loading"}`)
	if n := len(rec.all()); n != 1 {
		t.Errorf("flushes: got %d, want 1", n)
	}

	if resp := do(t, srv, http.MethodDelete, "/tabs/3", ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: got %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodGet, "/sessions/3", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("session after delete: got %d, want 404", resp.StatusCode)
	}
}

func TestHTTPRejectsBadMessages(t *testing.T) {
	c, _ := newTestCollector(Config{})
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	if resp := do(t, srv, http.MethodPost, "/tabs/1/messages", "{"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed: got %d, want 400", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPost, "/tabs/1/messages", `{"time":1}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("untyped: got %d, want 400", resp.StatusCode)
	}
}

func TestHTTPSessionDetail(t *testing.T) {
	c, _ := newTestCollector(Config{})
	c.OnNavigation(context.Background(), "9", "http://a.test/", StatusLoading)
	c.OnMessage("9", event(4))
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp := do(t, srv, http.MethodGet, "/sessions/9", "")
	var s Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}
	if len(s.Events) != 1 || s.Events[0].Event == nil || s.Events[0].Time != 4 {
		t.Errorf("session: got %+v", s)
	}
}

func TestMCPSessions(t *testing.T) {
	c, _ := newTestCollector(Config{})
	c.OnNavigation(context.Background(), "1", "http://a.test/", StatusLoading)
	c.OnMessage("1", event(1))

	impl := &mcp.Implementation{Name: "cvwatch-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)
	c.RegisterMCP(srv, nil)
	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()
	cs, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer cs.Close()

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "cvwatch_sessions", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	var list struct {
		Sessions []SessionSummary `json:"sessions"`
	}
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].Events != 1 {
		t.Errorf("sessions: got %+v", list.Sessions)
	}

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{Name: "cvwatch_sessions", Arguments: map[string]any{"tabId": "1"}})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	var s Session
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &s); err != nil {
		t.Fatal(err)
	}
	if s.URL != "http://a.test/" || len(s.Events) != 1 || s.Events[0].Event.Type != mutation.KindTextChanged {
		t.Errorf("session: got %+v", s)
	}

	res, _ = cs.CallTool(ctx, &mcp.CallToolParams{Name: "cvwatch_sessions", Arguments: map[string]any{"tabId": "nope"}})
	if !res.IsError {
		t.Error("unknown tab: want tool error")
	}
}

func TestClientDrivesRemoteCollector(t *testing.T) {
	c, rec := newTestCollector(Config{FlushOnClose: true})
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	ctx := context.Background()
	cl := NewClient(srv.URL+"/", nil)
	if err := cl.Navigation(ctx, "tab 9", "http://a.test/", StatusLoading); err != nil {
		t.Fatalf("Navigation: %v", err)
	}
	ch := cl.Channel("tab 9")
	if err := ch.Send(ctx, event(5)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := cl.Activated(ctx, "tab 9"); err != nil {
		t.Fatalf("Activated: %v", err)
	}
	if err := cl.Closed(ctx, "tab 9"); err != nil {
		t.Fatalf("Closed: %v", err)
	}

	got := rec.all()
	if len(got) != 1 {
		t.Fatalf("flushes: got %d, want 1", len(got))
	}
	if got[0].artifact.URL != "http://a.test/" {
		t.Errorf("url: got %q", got[0].artifact.URL)
	}
	// event, activated, removed
	if n := len(got[0].artifact.DOMMutation); n != 3 {
		t.Errorf("events: got %d, want 3", n)
	}
}

func TestClientReportsStatus(t *testing.T) {
	c, _ := newTestCollector(Config{})
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	cl := NewClient(srv.URL, nil)
	if err := cl.Navigation(context.Background(), "1", "", ""); err != nil {
		t.Errorf("empty navigation: %v", err)
	}
	srv.Close()
	if err := cl.Activated(context.Background(), "1"); err == nil {
		t.Error("expected error from a stopped collector")
	}
}
