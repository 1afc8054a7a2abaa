package filterlist

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/cvwatch/kit"
)

type matchReq struct {
	URL          string `json:"url"`
	Domain       string `json:"domain"`
	ResourceType string `json:"resourceType"`
}

// MatchResult is the answer of the filterlist_match tool.
type MatchResult struct {
	Blocked   bool   `json:"blocked"`
	Rule      string `json:"rule,omitempty"`
	Exception bool   `json:"exception,omitempty"`
}

// RegisterMCP registers the filterlist_match tool on srv.
func (l *List) RegisterMCP(srv *mcp.Server, logger *slog.Logger) {
	tool := &mcp.Tool{
		Name:        "filterlist_match",
		Description: "Check whether a request URL is blocked by the loaded ad-block filter lists.",
		InputSchema: kit.InputSchema(map[string]any{
			"url":          map[string]any{"type": "string", "description": "Requested URL"},
			"domain":       map[string]any{"type": "string", "description": "Host of the page issuing the request"},
			"resourceType": map[string]any{"type": "string", "description": "Browser resource type, e.g. script, image, sub_frame"},
		}, "url"),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*matchReq)
		if r.URL == "" {
			return nil, errors.New("url is required")
		}
		blocked, rule := l.Match(Request{URL: r.URL, Domain: r.Domain, Type: ParseResourceType(r.ResourceType)})
		res := MatchResult{Blocked: blocked}
		if rule != nil {
			res.Rule = rule.Raw
			res.Exception = rule.Exception
		}
		return res, nil
	}

	kit.RegisterMCPTool[matchReq](srv, tool, endpoint, kit.Logging(logger, tool.Name))
}
