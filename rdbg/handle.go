// Package rdbg wires the GDB and QMP servers, the Async Request Gate, and
// the admin observability surface into one owned lifecycle object. Callers
// create as many Handles as they need; there is no process-wide singleton.
package rdbg

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lokkju/dosbox-x/admin"
	"github.com/lokkju/dosbox-x/asyncgate"
	"github.com/lokkju/dosbox-x/config"
	"github.com/lokkju/dosbox-x/facade"
	"github.com/lokkju/dosbox-x/netutil"
	"github.com/lokkju/dosbox-x/qmp"
	"github.com/lokkju/dosbox-x/rdbglog"
	"github.com/lokkju/dosbox-x/rsp"
)

// Sentinel errors for Handle's lifecycle, meant to be compared with
// errors.Is.
var (
	ErrAlreadyRunning = errors.New("rdbg: already running")
	ErrNotRunning     = errors.New("rdbg: not running")
)

// Handle owns one instance of the remote-debugging core: the GDB server,
// the QMP server, the shared Async Request Gate and its worker, and the
// admin status surface. Callers create exactly as many as they need; there
// is no process-wide singleton.
type Handle struct {
	cfg    config.Map
	facade facade.Emulator
	log    *rdbglog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	group   *errgroup.Group

	gate      *asyncgate.Gate
	gdb       *rsp.Server
	qmpServer *qmp.Server
	adminSrv  *admin.Server
	adminLn   net.Listener
}

// New creates a Handle bound to cfg and f. The servers are not started
// until Start is called.
func New(cfg config.Map, f facade.Emulator, log *rdbglog.Logger) *Handle {
	if log == nil {
		log = rdbglog.New()
	}

	return &Handle{cfg: cfg, facade: f, log: log, gate: &asyncgate.Gate{}}
}

// IsRunning reports whether Start has succeeded and Stop has not yet run.
func (h *Handle) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Start brings up the configured servers and returns once they are
// listening. It returns ErrAlreadyRunning if called twice without an
// intervening Stop.
func (h *Handle) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	h.cancel = cancel
	h.group = group
	h.mu.Unlock()

	h.adminSrv = admin.NewServer(h, h.log.WithComponent("admin"))

	worker := qmp.NewGateWorker(h.gate, h.facade, h.log.WithComponent("gateworker"))
	worker.OnComplete = func(req asyncgate.Request, err error) {
		h.adminSrv.Publish(admin.Event{
			Kind:      "gate_complete",
			Detail:    gateCompleteDetail(req, err),
			Timestamp: time.Now(),
		})
	}
	group.Go(func() error {
		worker.Run(groupCtx)
		return nil
	})

	if h.cfg.GetBool("gdb.enabled") {
		ln, err := netutil.Listen(netutil.ListenOptions{
			Bind:          h.cfg.GetString("gdb.bind"),
			Port:          h.cfg.GetInt64("gdb.port"),
			ProxyProtocol: h.cfg.GetBool("gdb.proxy_protocol"),
		})
		if err != nil {
			cancel()
			return fmt.Errorf("rdbg: starting gdb server: %w", err)
		}

		h.gdb = rsp.NewServer(ln, h.facade, h.log.WithComponent("gdb"))
		group.Go(func() error {
			h.gdb.AcceptLoop()
			return nil
		})
	}

	if h.cfg.GetBool("qmp.enabled") {
		ln, err := netutil.Listen(netutil.ListenOptions{
			Bind:          h.cfg.GetString("qmp.bind"),
			Port:          h.cfg.GetInt64("qmp.port"),
			ProxyProtocol: h.cfg.GetBool("qmp.proxy_protocol"),
		})
		if err != nil {
			cancel()
			return fmt.Errorf("rdbg: starting qmp server: %w", err)
		}

		h.qmpServer = qmp.NewServer(ln, h.facade, h.gate, h.log.WithComponent("qmp"), qmp.Relaxed)
		group.Go(func() error {
			h.qmpServer.AcceptLoop()
			return nil
		})
	}

	if h.cfg.GetBool("admin.enabled") {
		ln, err := netutil.Listen(netutil.ListenOptions{
			Bind: h.cfg.GetString("admin.bind"),
			Port: h.cfg.GetInt64("admin.port"),
		})
		if err != nil {
			cancel()
			return fmt.Errorf("rdbg: starting admin server: %w", err)
		}

		h.mu.Lock()
		h.adminLn = ln
		h.mu.Unlock()

		group.Go(func() error {
			return h.adminSrv.Serve(ln)
		})

		group.Go(func() error {
			<-groupCtx.Done()
			return h.adminSrv.Shutdown(context.Background())
		})
	}

	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	return nil
}

// Stop shuts down every running server and waits for their goroutines to
// return. It returns ErrNotRunning if Start was never called or a prior
// Stop already completed.
func (h *Handle) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrNotRunning
	}

	cancel := h.cancel
	group := h.group
	gdb := h.gdb
	qmpServer := h.qmpServer
	h.running = false
	h.mu.Unlock()

	if gdb != nil {
		_ = gdb.Close()
	}

	if qmpServer != nil {
		_ = qmpServer.Close()
	}

	h.gate.Reset()
	cancel()

	return group.Wait()
}

// AdminAddr returns the admin server's bound address, or nil if the admin
// server is not enabled. Useful for dialing an ephemeral admin.port in
// tests.
func (h *Handle) AdminAddr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.adminLn == nil {
		return nil
	}
	return h.adminLn.Addr()
}

// GDBStatus implements admin.StatusProvider.
func (h *Handle) GDBStatus() admin.GDBStatus {
	h.mu.Lock()
	gdb := h.gdb
	h.mu.Unlock()

	if gdb == nil {
		return admin.GDBStatus{}
	}

	status := admin.GDBStatus{
		Listening:       true,
		Port:            h.cfg.GetInt64("gdb.port"),
		ClientConnected: gdb.HasClient(),
	}

	if session := gdb.Session(); session != nil {
		status.BreakpointCount = session.BreakpointCount()
		status.NoAckMode = session.NoAckMode()
		status.ExecutionState = execStateLabel(session.ExecState())
	}

	return status
}

// QMPStatus implements admin.StatusProvider.
func (h *Handle) QMPStatus() admin.QMPStatus {
	h.mu.Lock()
	qmpServer := h.qmpServer
	h.mu.Unlock()

	if qmpServer == nil {
		return admin.QMPStatus{}
	}

	return admin.QMPStatus{
		Listening:       true,
		Port:            h.cfg.GetInt64("qmp.port"),
		ClientConnected: qmpServer.HasClient(),
	}
}

// Poll forwards to the GDB server's Debug Poll Loop hook, returning
// rsp.ActionNone if no GDB server is configured.
func (h *Handle) Poll() rsp.PendingAction {
	h.mu.Lock()
	gdb := h.gdb
	h.mu.Unlock()

	if gdb == nil {
		return rsp.ActionNone
	}

	return gdb.Poll()
}

// ReportStop forwards a stop notification to the GDB server and publishes
// it to the admin event stream. A no-op if no GDB server is configured.
func (h *Handle) ReportStop(signal int) {
	h.mu.Lock()
	gdb := h.gdb
	h.mu.Unlock()

	if gdb == nil {
		return
	}

	gdb.ReportStop(signal)
	h.adminSrv.Publish(admin.Event{
		Kind:      "stop",
		Detail:    fmt.Sprintf("signal %d", signal),
		Timestamp: time.Now(),
	})
}

func execStateLabel(s rsp.ExecutionState) string {
	switch s {
	case rsp.StateRunning:
		return "running"
	case rsp.StateStoppedPendingReply:
		return "stopped_pending_reply"
	default:
		return "stopped_idle"
	}
}

func gateCompleteDetail(req asyncgate.Request, err error) string {
	if err != nil {
		return fmt.Sprintf("%s failed: %s", gateKindLabel(req.Kind), err)
	}

	return fmt.Sprintf("%s completed", gateKindLabel(req.Kind))
}

func gateKindLabel(k asyncgate.Kind) string {
	switch k {
	case asyncgate.KindSave:
		return "save"
	case asyncgate.KindLoad:
		return "load"
	case asyncgate.KindScreenshot:
		return "screenshot"
	case asyncgate.KindPause:
		return "pause"
	case asyncgate.KindResume:
		return "resume"
	case asyncgate.KindReset:
		return "reset"
	default:
		return "unknown"
	}
}
