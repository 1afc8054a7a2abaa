package collector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/cvwatch/kit"
)

type sessionsReq struct {
	TabID string `json:"tabId"`
}

// RegisterMCP registers the cvwatch_sessions tool on srv.
func (c *Collector) RegisterMCP(srv *mcp.Server, logger *slog.Logger) {
	tool := &mcp.Tool{
		Name:        "cvwatch_sessions",
		Description: "List the tab sessions buffered by the collector, or return one session with its events when tabId is given.",
		InputSchema: kit.InputSchema(map[string]any{
			"tabId": map[string]any{"type": "string", "description": "Tab whose full session to return"},
		}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*sessionsReq)
		if r.TabID == "" {
			return map[string]any{"sessions": c.Summaries(), "flushes": c.Flushes()}, nil
		}
		s, ok := c.Session(r.TabID)
		if !ok {
			return nil, fmt.Errorf("unknown tab %q", r.TabID)
		}
		return s, nil
	}

	kit.RegisterMCPTool[sessionsReq](srv, tool, endpoint, kit.Logging(logger, tool.Name))
}
