package kit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// InputSchema builds a JSON object schema for tool arguments.
func InputSchema(properties map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// RegisterMCPTool registers endpoint as an MCP tool. Arguments are decoded
// into a fresh Req, which the endpoint receives as *Req. Decoding and
// endpoint errors become tool errors; results are returned as JSON text.
func RegisterMCPTool[Req any](srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint, mws ...Middleware) {
	endpoint = Chain(mws...)(endpoint)
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		r := new(Req)
		if args := req.Params.Arguments; len(args) > 0 {
			if err := json.Unmarshal(args, r); err != nil {
				return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
			}
		}

		resp, err := endpoint(WithTransport(ctx, "mcp"), r)
		if err != nil {
			return toolError(err), nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
