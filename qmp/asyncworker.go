package qmp

import (
	"context"
	"time"

	"github.com/lokkju/dosbox-x/asyncgate"
	"github.com/lokkju/dosbox-x/facade"
	"github.com/lokkju/dosbox-x/rdbglog"
)

// timeouts for the async operations a QMP session can submit.
const (
	screenshotTimeout  = 5 * time.Second
	saveLoadTimeout    = 30 * time.Second
	pauseResumeTimeout = 1 * time.Second
)

// GateWorker stands in for the emulator main thread's side of the Async
// Request Gate: it is the sole consumer of gate.Pending(), translating each
// request into the corresponding facade call and polling the facade's own
// completion signal until it can call gate.Complete. Every QMP session
// sharing a Handle submits through the same Gate/worker pair, giving the
// gate a single-slot, process-wide shape.
type GateWorker struct {
	gate   *asyncgate.Gate
	facade facade.Emulator
	log    *rdbglog.Logger

	// OnComplete, if set, is called with the finished request right after
	// the worker calls gate.Complete for it. The waiting Await may already
	// have returned the Gate to Idle by then. The embedder uses this to
	// publish gate completions to its own observability surface.
	OnComplete func(req asyncgate.Request, err error)
}

func NewGateWorker(gate *asyncgate.Gate, f facade.Emulator, log *rdbglog.Logger) *GateWorker {
	return &GateWorker{gate: gate, facade: f, log: log}
}

// Run polls the gate for pending requests until ctx is cancelled. It is
// meant to run as one long-lived goroutine per Handle.
func (w *GateWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			req, ok := w.gate.Pending()
			if !ok {
				continue
			}

			w.service(ctx, req)
		}
	}
}

func (w *GateWorker) service(ctx context.Context, req asyncgate.Request) {
	switch req.Kind {
	case asyncgate.KindSave:
		path, _ := req.Argument.(string)
		w.facade.RequestSave(path)
		w.complete(req, w.pollSaveLoad(ctx))

	case asyncgate.KindLoad:
		path, _ := req.Argument.(string)
		w.facade.RequestLoad(path)
		w.complete(req, w.pollSaveLoad(ctx))

	case asyncgate.KindScreenshot:
		w.facade.TakeScreenshot()
		w.complete(req, w.pollScreenshot(ctx))

	case asyncgate.KindPause:
		w.facade.RequestPause()
		w.complete(req, w.pollUntil(ctx, pauseResumeTimeout, w.facade.IsPaused))

	case asyncgate.KindResume:
		w.facade.RequestResume()
		w.complete(req, w.pollUntil(ctx, pauseResumeTimeout, func() bool { return !w.facade.IsPaused() }))

	case asyncgate.KindReset:
		dosOnly, _ := req.Argument.(bool)
		w.facade.RequestReset(dosOnly)
		w.complete(req, nil)

	default:
		w.complete(req, genericError("unknown async request kind"))
	}
}

func (w *GateWorker) complete(req asyncgate.Request, err error) {
	w.gate.Complete(err)
	if w.OnComplete != nil {
		w.OnComplete(req, err)
	}
}

func (w *GateWorker) pollSaveLoad(ctx context.Context) error {
	deadline := time.Now().Add(saveLoadTimeout)
	for time.Now().Before(deadline) {
		if done, err := w.facade.IsComplete(); done {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}

	return genericError("save/load operation timed out")
}

func (w *GateWorker) pollScreenshot(ctx context.Context) error {
	deadline := time.Now().Add(screenshotTimeout)
	for time.Now().Before(deadline) {
		if !w.facade.IsScreenshotPending() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}

	return genericError("screenshot timed out")
}

func (w *GateWorker) pollUntil(ctx context.Context, timeout time.Duration, cond func() bool) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}

	return genericError("operation timed out")
}
