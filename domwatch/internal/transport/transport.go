// Package transport carries messages from an in-page observer to a
// collector. A channel is opened once per page load with a handshake and
// then carries one message at a time, in order, without acknowledgement.
package transport

import (
	"context"
	"errors"

	"github.com/hazyhaar/cvwatch/domwatch/mutation"
)

var (
	// ErrClosed is returned once a channel can no longer deliver. It is
	// terminal for the page.
	ErrClosed = errors.New("transport: channel closed")

	// ErrQueueFull is returned when a bounded channel drops a message.
	// The channel stays usable.
	ErrQueueFull = errors.New("transport: queue full")
)

// Channel is a per-page message link.
type Channel interface {
	Send(ctx context.Context, msg mutation.Message) error
	Close() error
}

// Open announces pageURL on ch with the handshake message.
func Open(ctx context.Context, ch Channel, pageURL string) error {
	return ch.Send(ctx, mutation.NewHandshake(pageURL))
}

// Terminal reports whether err means the channel is gone for good.
func Terminal(err error) bool {
	return err != nil && !errors.Is(err, ErrQueueFull)
}
