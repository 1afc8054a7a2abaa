package kit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}
	base := func(context.Context, any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	resp, err := Chain(mw("a"), mw("b"))(base)(context.Background(), nil)
	if err != nil || resp != "ok" {
		t.Fatalf("call: got %v, %v", resp, err)
	}
	want := []string{"a_before", "b_before", "endpoint", "b_after", "a_after"}
	if len(order) != len(want) {
		t.Fatalf("order: got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d]: got %q, want %q", i, order[i], want[i])
		}
	}
}

func TestLoggingAssignsRequestID(t *testing.T) {
	var seen string
	ep := Logging(nil, "t")(func(ctx context.Context, _ any) (any, error) {
		seen = RequestID(ctx)
		return nil, nil
	})
	ep(context.Background(), nil)
	if seen == "" {
		t.Error("RequestID: want one assigned")
	}

	ep(WithRequestID(context.Background(), "fixed"), nil)
	if seen != "fixed" {
		t.Errorf("RequestID: got %q, want %q", seen, "fixed")
	}
}

type echoReq struct {
	Name string `json:"name"`
}

func session(t *testing.T, srv *mcp.Server) *mcp.ClientSession {
	t.Helper()
	impl := &mcp.Implementation{Name: "kit-test", Version: "0.1.0"}
	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()
	cs, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func TestRegisterMCPTool(t *testing.T) {
	srv := mcp.NewServer(&mcp.Implementation{Name: "kit-test", Version: "0.1.0"}, nil)
	tool := &mcp.Tool{
		Name:        "echo",
		Description: "Echo the name back.",
		InputSchema: InputSchema(map[string]any{"name": map[string]any{"type": "string"}}, "name"),
	}
	RegisterMCPTool[echoReq](srv, tool, func(ctx context.Context, req any) (any, error) {
		r := req.(*echoReq)
		if r.Name == "fail" {
			return nil, errors.New("asked to fail")
		}
		return map[string]string{"name": r.Name, "transport": Transport(ctx)}, nil
	})
	cs := session(t, srv)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"name": "x"}})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &got); err != nil {
		t.Fatal(err)
	}
	if got["name"] != "x" || got["transport"] != "mcp" {
		t.Errorf("result: got %v", got)
	}

	res, err = cs.CallTool(context.Background(), &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"name": "fail"}})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Error("endpoint error: want tool error result")
	}
}
