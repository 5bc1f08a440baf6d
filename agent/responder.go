package agent

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrCancelled is returned to the authentication side when the session
	// dropped the responder without answering.
	ErrCancelled = errors.New("authentication request cancelled")
	// ErrResponderUsed is returned when answering a responder twice.
	ErrResponderUsed = errors.New("responder already consumed")
	// ErrAbandoned is returned by Send when the waiting side gave up.
	ErrAbandoned = errors.New("authentication request abandoned")
)

// Responder is a single-use answer channel. Exactly one of Send or Drop takes
// effect; later calls are no-ops (Drop) or fail (Send).
type Responder[T any] struct {
	mu        sync.Mutex
	ch        chan T
	consumed  bool
	abandoned bool
}

func NewResponder[T any]() *Responder[T] {
	return &Responder[T]{ch: make(chan T, 1)}
}

// Send delivers v to the waiting side. It never blocks. When the waiting side
// has gone, Send fails with ErrAbandoned and v stays with the caller.
func (r *Responder[T]) Send(v T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.abandoned {
		return ErrAbandoned
	}
	if r.consumed {
		return ErrResponderUsed
	}
	r.consumed = true
	r.ch <- v
	close(r.ch)
	return nil
}

// Drop releases the waiting side with ErrCancelled. Dropping a consumed
// responder does nothing.
func (r *Responder[T]) Drop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumed {
		return
	}
	r.consumed = true
	close(r.ch)
}

// Consumed reports whether Send or Drop was called.
func (r *Responder[T]) Consumed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.consumed
}

// Abandoned reports whether Wait gave up before an answer arrived.
func (r *Responder[T]) Abandoned() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abandoned
}

// Wait blocks until the responder is answered or dropped, or ctx is done. A
// responder whose Wait ended on ctx is abandoned.
func (r *Responder[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	select {
	case v, ok := <-r.ch:
		return r.received(v, ok)
	case <-ctx.Done():
	}

	r.mu.Lock()
	if !r.consumed {
		r.abandoned = true
		r.consumed = true
		close(r.ch)
		r.mu.Unlock()
		return zero, ctx.Err()
	}
	r.mu.Unlock()
	// answered while ctx was being cancelled
	v, ok := <-r.ch
	return r.received(v, ok)
}

func (r *Responder[T]) received(v T, ok bool) (T, error) {
	if !ok {
		var zero T
		return zero, ErrCancelled
	}
	return v, nil
}
