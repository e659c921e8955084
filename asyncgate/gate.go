// Package asyncgate implements the single-slot rendezvous the QMP session
// uses to hand heavy operations (save, load, screenshot, pause, resume,
// reset) to the emulator's main thread and wait for completion.
package asyncgate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind identifies the operation submitted to the gate.
type Kind int

const (
	KindNone Kind = iota
	KindSave
	KindLoad
	KindScreenshot
	KindPause
	KindResume
	KindReset
)

// Status is the slot's lifecycle state. Transitions are
// Idle->Pending->Complete->Idle, with two exceptions that take Pending
// straight back to Idle: Reset, and a background drain whose drainTimeout
// expires before Complete arrives.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusComplete
)

// ErrBusy is returned by Submit when a request is already in flight.
var ErrBusy = errors.New("asyncgate: a request is already pending")

// ErrTimeout is returned by Await when the deadline elapses before the
// emulator main thread completes the request. The request itself is not
// cancelled; a late completion is discarded by the background drain that
// Await starts.
var ErrTimeout = errors.New("asyncgate: request timed out")

// Request is the value stored while a submission is Pending or Complete.
type Request struct {
	ID       string
	Kind     Kind
	Argument any
}

// Gate is the single-slot rendezvous. Zero value is ready to use.
type Gate struct {
	mu     sync.Mutex
	status Status
	req    Request
	err    error
}

// Submit performs the Idle->Pending CAS and stores kind/argument. It fails
// with ErrBusy if a request is already Pending or Complete (i.e. not yet
// drained).
func (g *Gate) Submit(kind Kind, argument any) (Request, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusIdle {
		return Request{}, ErrBusy
	}

	req := Request{
		ID:       ulid.Make().String(),
		Kind:     kind,
		Argument: argument,
	}
	g.req = req
	g.status = StatusPending
	g.err = nil
	return req, nil
}

// Pending reports the current request if the slot is Pending, for the
// emulator main thread to pick up at a safe point.
func (g *Gate) Pending() (Request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusPending {
		return Request{}, false
	}
	return g.req, true
}

// Complete transitions Pending->Complete, recording the outcome. Called by
// the emulator main thread once it has executed the request.
func (g *Gate) Complete(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusPending {
		return
	}
	g.err = err
	g.status = StatusComplete
}

// drainTimeout bounds how long a background drain (started when an Await
// gives up on a request that is still Pending, or by Forget) will wait for
// the emulator thread's eventual Complete. Past this the slot is forced
// back to Idle regardless, so a request whose Complete never arrives
// cannot wedge every later Submit behind ErrBusy forever.
const drainTimeout = 60 * time.Second

// Await polls for Complete, with the given timeout, then transitions
// Complete->Idle and returns the recorded error (nil on success). If the
// deadline or ctx elapses first, Await returns without draining the slot
// itself but starts a background drain so a Complete that the emulator
// thread reports later still returns the slot to Idle instead of leaving
// it parked at Complete (or Pending) forever.
func (g *Gate) Await(ctx context.Context, timeout time.Duration) error {
	err, drained := g.poll(ctx, timeout)
	if !drained {
		go g.backgroundDrain()
	}

	return err
}

func (g *Gate) poll(ctx context.Context, timeout time.Duration) (err error, drained bool) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()

	for {
		g.mu.Lock()
		if g.status == StatusComplete {
			err := g.err
			g.status = StatusIdle
			g.req = Request{}
			g.err = nil
			g.mu.Unlock()
			return err, true
		}
		g.mu.Unlock()

		if time.Now().After(deadline) {
			return ErrTimeout, false
		}

		select {
		case <-ctx.Done():
			return ctx.Err(), false
		case <-ticker.C:
		}
	}
}

// backgroundDrain waits for a request abandoned by a timed-out or
// cancelled Await (or handed off by Forget) to reach Complete and returns
// the slot to Idle. It gives up after drainTimeout and forces the slot
// back to Idle regardless, discarding whatever outcome eventually arrives.
func (g *Gate) backgroundDrain() {
	deadline := time.Now().Add(drainTimeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		g.mu.Lock()
		if g.status == StatusComplete || time.Now().After(deadline) {
			g.status = StatusIdle
			g.req = Request{}
			g.err = nil
			g.mu.Unlock()
			return
		}
		g.mu.Unlock()

		<-ticker.C
	}
}

// Forget spawns a background drain for a request the caller has already
// Submit-ed but does not want to block on, such as system_reset's "reply
// immediately" contract. The slot returns to Idle once the emulator
// thread calls Complete, or after drainTimeout if it never does.
func (g *Gate) Forget() {
	go g.backgroundDrain()
}

// Reset forces the slot back to Idle, discarding any in-flight or completed
// request. Used on server Stop.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = StatusIdle
	g.req = Request{}
	g.err = nil
}

// StatusNow reports the slot's current status, for the admin status API.
func (g *Gate) StatusNow() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}
