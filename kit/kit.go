// Package kit is the endpoint layer shared by the cvwatch tool surfaces:
// a typed endpoint, composable middleware and the MCP tool adapter.
package kit

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/cvwatch/idgen"
)

// Endpoint handles one decoded request.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares; the first one is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

type contextKey string

const (
	requestIDKey contextKey = "kit_request_id"
	transportKey contextKey = "kit_transport"
)

// WithRequestID tags ctx with a request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id of ctx, or "".
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithTransport records which surface served the request ("mcp", "http").
func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, transportKey, t)
}

// Transport returns the serving surface of ctx, "mcp" by default.
func Transport(ctx context.Context) string {
	if v, ok := ctx.Value(transportKey).(string); ok {
		return v
	}
	return "mcp"
}

// Logging logs every call of the endpoint named name with its duration.
// Requests without an id get one.
func Logging(logger *slog.Logger, name string) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			if RequestID(ctx) == "" {
				ctx = WithRequestID(ctx, idgen.New())
			}
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"endpoint", name,
				"transport", Transport(ctx),
				"request_id", RequestID(ctx),
				"duration", time.Since(start),
			}
			if err != nil {
				logger.Warn("kit: call failed", append(attrs, "error", err)...)
			} else {
				logger.Debug("kit: call", attrs...)
			}
			return resp, err
		}
	}
}
