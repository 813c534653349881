package room

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrOutboxClosed = errors.New("outbox closed")
)

// Frame is one message headed for a connection's transport.
type Frame struct {
	Binary bool
	Data   []byte
}

// Outbox is the routing handle the authority holds for one connection.
// It is deliberately not the connection itself: the authority can only
// push frames, never touch the transport or its lifecycle.
type Outbox struct {
	ch chan Frame

	mu     sync.RWMutex
	closed bool
}

func NewOutbox(buf int) *Outbox {
	return &Outbox{ch: make(chan Frame, buf)}
}

// TrySend never blocks. A full buffer or a closed outbox drops the frame
// and reports why; the caller decides whether that matters.
func (o *Outbox) TrySend(f Frame) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrOutboxClosed
	}
	select {
	case o.ch <- f:
		return nil
	default:
		return ErrBackpressure
	}
}

// Send waits for buffer space instead of dropping, up to timeout. Used
// for deliveries that must arrive in full even when they exceed the
// buffer, like the membership enumeration an admin receives on join.
func (o *Outbox) Send(f Frame, timeout time.Duration) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrOutboxClosed
	}
	select {
	case o.ch <- f:
		return nil
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case o.ch <- f:
		return nil
	case <-t.C:
		return ErrBackpressure
	}
}

// C is drained by the owning connection's write loop.
func (o *Outbox) C() <-chan Frame {
	return o.ch
}

func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.ch)
}
