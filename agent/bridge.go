// Package agent connects the authentication agent, which runs on its own
// goroutines, to the interactive session. Requests travel over a Bridge; each
// carries a single-use Responder the session answers or drops.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kastheco/mountie/secret"
)

// ErrBridgeClosed is returned once the authentication side of the bridge has
// gone away. For the session this is fatal.
var ErrBridgeClosed = errors.New("authentication bridge closed")

// Listener answers the two request kinds an authentication agent receives.
// Both calls block until the session answers, the request is cancelled or ctx
// is done.
type Listener interface {
	ChooseUser(ctx context.Context, users []string) (UserChoice, error)
	RequestPassword(ctx context.Context, name string) (*secret.Secret, error)
}

// Bridge carries requests from the authentication goroutines to the session
// and the stop/ack handshake back.
type Bridge struct {
	requests chan Request

	closed    chan struct{}
	closeOnce sync.Once

	stop     chan struct{}
	stopOnce sync.Once

	done     chan struct{}
	ackOnce  sync.Once
	attached atomic.Bool
}

var _ Listener = (*Bridge)(nil)

func NewBridge() *Bridge {
	return &Bridge{
		requests: make(chan Request),
		closed:   make(chan struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// ChooseUser forwards a user choice to the session and waits for the answer.
func (b *Bridge) ChooseUser(ctx context.Context, users []string) (UserChoice, error) {
	req := newChooseUser(users)
	if err := b.send(ctx, req); err != nil {
		return UserChoice{}, err
	}
	return req.Responder.Wait(ctx)
}

// RequestPassword forwards a password prompt for name to the session and
// waits for the answer.
func (b *Bridge) RequestPassword(ctx context.Context, name string) (*secret.Secret, error) {
	req := newRequestPassword(name)
	if err := b.send(ctx, req); err != nil {
		return nil, err
	}
	return req.Responder.Wait(ctx)
}

func (b *Bridge) send(ctx context.Context, req Request) error {
	select {
	case b.requests <- req:
		return nil
	case <-b.closed:
		return ErrBridgeClosed
	case <-b.stop:
		return ErrCancelled
	case <-ctx.Done():
		return fmt.Errorf("forward request %s: %w", req.RequestID(), ctx.Err())
	}
}

// TryRecv returns the next request without blocking, or nil when none is
// ready.
func (b *Bridge) TryRecv() (Request, error) {
	select {
	case <-b.closed:
		return nil, ErrBridgeClosed
	default:
	}
	select {
	case req := <-b.requests:
		return req, nil
	default:
		return nil, nil
	}
}

// Attach marks the bridge as driven by an authentication loop. Shutdown only
// waits for an acknowledgement on attached bridges.
func (b *Bridge) Attach() error {
	if !b.attached.CompareAndSwap(false, true) {
		return errors.New("authentication bridge already attached")
	}
	return nil
}

// Close is called by the authentication side when it can no longer serve
// requests.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.closed) })
}

// Stop is closed when the session asks the authentication loop to finish.
func (b *Bridge) Stop() <-chan struct{} {
	return b.stop
}

// Ack acknowledges that the authentication loop has terminated.
func (b *Bridge) Ack() {
	b.ackOnce.Do(func() { close(b.done) })
}

// Shutdown signals the authentication loop to stop and waits for its
// acknowledgement.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.stopOnce.Do(func() { close(b.stop) })
	if !b.attached.Load() {
		return nil
	}
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for authentication agent to stop: %w", ctx.Err())
	}
}
