//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"sync"
)

// DefaultMailboxSize is the buffer used when a mailbox is created with a non-positive size.
const DefaultMailboxSize = 256

// ErrStopped is returned when sending to an actor that has been stopped.
var ErrStopped = errors.New("actor stopped")

// Ref is a typed handle used to deliver messages to an actor.
type Ref[M any] interface {
	// Send enqueues msg. It blocks while the mailbox is full and gives up when
	// ctx is done or the receiver stopped.
	Send(ctx context.Context, msg M) error
}

// RefFunc adapts a function to Ref.
type RefFunc[M any] func(ctx context.Context, msg M) error

// Send calls f.
func (f RefFunc[M]) Send(ctx context.Context, msg M) error {
	return f(ctx, msg)
}

// Mailbox is a FIFO queue drained by a single goroutine.
// Handlers run to completion one message at a time.
type Mailbox[M any] struct {
	// name identifies the actor in errors.
	name string
	// queue holds pending messages.
	queue chan M
	// quit is closed by Stop.
	quit chan struct{}
	// exited is closed when the run loop returns.
	exited chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewMailbox creates a mailbox with the given buffer size.
func NewMailbox[M any](name string, size int) *Mailbox[M] {
	if size <= 0 {
		size = DefaultMailboxSize
	}

	return &Mailbox[M]{
		name:   name,
		queue:  make(chan M, size),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// Name returns the actor name.
func (m *Mailbox[M]) Name() string {
	return m.name
}

// Send implements Ref.
func (m *Mailbox[M]) Send(ctx context.Context, msg M) error {
	// Checked first so a stopped mailbox never accepts anything, even with room left.
	select {
	case <-m.quit:
		return ErrStopped
	default:
	}

	select {
	case m.queue <- msg:
		return nil
	case <-m.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start runs handle for every message in a new goroutine until Stop is called
// or ctx is done. Calling Start twice has no effect.
func (m *Mailbox[M]) Start(ctx context.Context, handle func(context.Context, M)) {
	m.startOnce.Do(func() {
		go m.loop(ctx, handle)
	})
}

func (m *Mailbox[M]) loop(ctx context.Context, handle func(context.Context, M)) {
	defer close(m.exited)

	for {
		// Quit wins over pending messages.
		select {
		case <-m.quit:
			return
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-m.quit:
			return
		case <-ctx.Done():
			return
		case msg := <-m.queue:
			handle(ctx, msg)
		}
	}
}

// Stop terminates the run loop and waits until the current handler returned.
// It must not be called from the mailbox's own handler.
func (m *Mailbox[M]) Stop() {
	m.stopOnce.Do(func() {
		close(m.quit)
	})

	m.startOnce.Do(func() {
		// Never started: nothing to wait for.
		close(m.exited)
	})

	<-m.exited
}

// Done is closed once the run loop has exited.
func (m *Mailbox[M]) Done() <-chan struct{} {
	return m.exited
}
