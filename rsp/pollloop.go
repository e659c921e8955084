package rsp

import (
	"errors"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lokkju/dosbox-x/facade"
	"github.com/lokkju/dosbox-x/rdbglog"
)

// ErrInteractiveDebuggerActive is returned (and reported to the client as
// "$E99#...") when a GDB client tries to connect while the emulator's
// on-screen debugger owns the floor. E99 is kept verbatim for
// compatibility even though its original rationale is undocumented.
var ErrInteractiveDebuggerActive = errors.New("rsp: interactive debugger is active")

// Server drives one GDB endpoint: it owns the listener, the at-most-one
// accepted client, and the Debug Poll Loop that the emulator's instruction
// executor calls between ticks.
type Server struct {
	facade facade.Emulator
	log    *rdbglog.Logger

	mu            sync.Mutex
	ln            net.Listener
	conn          net.Conn
	framer        *Framer
	session       *Session
	haltRequested bool
}

// NewServer creates a GDB Server bound to the given listener and facade.
// The caller owns ln's lifecycle (typically via netutil.Listen).
func NewServer(ln net.Listener, f facade.Emulator, log *rdbglog.Logger) *Server {
	return &Server{facade: f, log: log, ln: ln}
}

// Close shuts down any accepted client and the listener. Idempotent.
func (srv *Server) Close() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.conn != nil {
		_ = srv.conn.Close()
		srv.conn = nil
	}

	if srv.ln != nil {
		return srv.ln.Close()
	}

	return nil
}

// HasClient reports whether a GDB client is currently connected.
func (srv *Server) HasClient() bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.conn != nil
}

// Session returns the active session, or nil if no client is connected.
func (srv *Server) Session() *Session {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.session
}

// accept registers a newly-accepted connection as the session's one client,
// rejecting it if one is already connected or the interactive debugger owns
// the floor.
func (srv *Server) accept(conn net.Conn) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.conn != nil {
		_ = conn.Close()
		return errors.New("rsp: a client is already connected")
	}

	if srv.facade.IsInteractiveDebuggerActive() {
		_ = SendFrame(conn, "E99")
		_ = conn.Close()
		return ErrInteractiveDebuggerActive
	}

	id := uuid.NewString()
	srv.conn = conn
	srv.framer = &Framer{}
	srv.session = NewSession(srv.facade, srv.log, id)
	srv.log.Info("gdb client accepted", logrus.Fields{"session": id, "remote": conn.RemoteAddr().String()})
	return nil
}

// AcceptLoop accepts clients one at a time for as long as the listener is
// open, per the "exactly one client at a time" invariant: a second
// connection attempt is refused (rejected, not the first torn down) while
// one is already active, by handing connections to accept() which closes
// them immediately in that case.
func (srv *Server) AcceptLoop() {
	for {
		conn, err := srv.ln.Accept()
		if err != nil {
			return
		}

		if err := srv.accept(conn); err != nil {
			srv.log.Warn("gdb accept rejected", logrus.Fields{"error": err.Error()})
			continue
		}

		go srv.serveClient()
	}
}

// serveClient drains and dispatches frames until the client disconnects or
// detaches. Register/memory access happens here, synchronously, which is
// safe because the emulator is paused whenever dispatch runs (the poll
// loop only lets STEP/CONTINUE advance execution, and those return to the
// caller without blocking on further socket I/O).
func (srv *Server) serveClient() {
	srv.mu.Lock()
	conn := srv.conn
	framer := srv.framer
	session := srv.session
	srv.mu.Unlock()

	if conn == nil {
		// Close ran between accept and this goroutine starting.
		return
	}

	buf := make([]byte, 4096)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			framer.Feed(buf[:n])
			srv.drain(conn, framer, session)
		}

		if err != nil {
			break
		}
	}

	srv.mu.Lock()
	srv.conn = nil
	srv.framer = nil
	srv.mu.Unlock()
	session.Reset()
	srv.log.Info("gdb client disconnected", logrus.Fields{"session": session.id})
}

func (srv *Server) drain(conn net.Conn, framer *Framer, session *Session) {
	for {
		res := framer.Next(conn)
		switch res.Kind {
		case ResultNone:
			return
		case ResultInterrupt:
			reply, hasReply, action := session.HandleInterrupt()
			if hasReply {
				_ = SendFrame(conn, reply)
			}

			if action == ActionHalt {
				srv.requestHalt()
			}
		case ResultFrame:
			reply, hasReply, detach := session.Dispatch(res.Payload)
			if hasReply {
				_ = SendFrame(conn, reply)
			}

			// Once QStartNoAckMode has been answered, later frames get no
			// '+'/'-' from the framer.
			framer.NoAck = session.NoAckMode()

			if detach {
				_ = conn.Close()
				return
			}
		}
	}
}

// requestHalt is invoked when a 0x03 interrupt arrives mid-CONTINUE. It
// records the request so the next Poll() call surfaces ActionHalt to the
// embedder's instruction executor, which is expected to stop at the next
// instruction boundary and call ReportStop.
func (srv *Server) requestHalt() {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.haltRequested = true
}

// Poll is the Debug Poll Loop hook: the embedder's instruction executor
// calls it between instructions (or on a short timer). It returns the
// action (STEP, CONTINUE, or HALT-in-progress) that dispatch has queued,
// clearing it. ActionNone means nothing to do this tick: if a CONTINUE is
// already underway the embedder just keeps running until it hits a
// breakpoint on its own or Poll reports ActionHalt.
func (srv *Server) Poll() PendingAction {
	session := srv.Session()
	if session == nil {
		return ActionNone
	}

	if action := session.TakePendingAction(); action != ActionNone {
		return action
	}

	srv.mu.Lock()
	halt := srv.haltRequested
	srv.haltRequested = false
	srv.mu.Unlock()

	if halt {
		return ActionHalt
	}

	return ActionNone
}

// ReportStop sends exactly one stop reply for a RUNNING->STOPPED
// transition. The embedder calls this once, after a STEP completes, a
// software breakpoint is hit, or a HALT request (0x03) is honored.
func (srv *Server) ReportStop(signal int) {
	srv.mu.Lock()
	conn := srv.conn
	session := srv.session
	srv.mu.Unlock()

	if conn == nil || session == nil {
		return
	}

	_ = SendFrame(conn, session.NotifyStop(signal))
}
