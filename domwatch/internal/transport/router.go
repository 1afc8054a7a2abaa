package transport

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/cvwatch/domwatch/mutation"
)

// Router fans each message out to several channels. One failing channel
// does not block the others; errors are logged and the first is returned.
type Router struct {
	chans  []Channel
	logger *slog.Logger
}

// NewRouter returns a fan-out over chans.
func NewRouter(logger *slog.Logger, chans ...Channel) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{chans: chans, logger: logger}
}

func (r *Router) Send(ctx context.Context, msg mutation.Message) error {
	var firstErr error
	for _, c := range r.chans {
		if err := c.Send(ctx, msg); err != nil {
			r.logger.Warn("transport: send failed", "type", msg.Type, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, c := range r.chans {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Func delivers messages through a Go function call, for observers and
// collectors living in the same binary without a queue in between.
type Func func(ctx context.Context, msg mutation.Message) error

func (f Func) Send(ctx context.Context, msg mutation.Message) error { return f(ctx, msg) }

func (f Func) Close() error { return nil }
