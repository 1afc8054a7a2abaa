package transport

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hazyhaar/cvwatch/domwatch/mutation"
)

// DefaultQueueSize bounds a Port's queue.
const DefaultQueueSize = 4096

// Port is an in-process channel with a single reader goroutine. Messages
// are handed to the reader in FIFO order; when the queue is full the
// newest message is dropped.
type Port struct {
	name    string
	queue   chan mutation.Message
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewPort starts a port whose reader calls handle for every message.
// size <= 0 selects DefaultQueueSize.
func NewPort(name string, size int, handle func(mutation.Message)) *Port {
	if size <= 0 {
		size = DefaultQueueSize
	}
	p := &Port{
		name:  name,
		queue: make(chan mutation.Message, size),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		for msg := range p.queue {
			handle(msg)
		}
	}()
	return p
}

// Name returns the port's name.
func (p *Port) Name() string { return p.name }

func (p *Port) Send(ctx context.Context, msg mutation.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

// Close stops accepting messages, lets the reader drain the queue and
// waits for it to finish.
func (p *Port) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
	return nil
}

// Dropped returns how many messages were dropped on a full queue.
func (p *Port) Dropped() int64 { return p.dropped.Load() }
