package qmp

import (
	"errors"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lokkju/dosbox-x/asyncgate"
	"github.com/lokkju/dosbox-x/facade"
	"github.com/lokkju/dosbox-x/rdbglog"
)

// Server drives the QMP endpoint: one dedicated goroutine per accepted
// client (at most one at a time), reading line-delimited JSON and replying
// through Session.Dispatch.
type Server struct {
	facade facade.Emulator
	gate   *asyncgate.Gate
	log    *rdbglog.Logger
	mode   NegotiationMode

	mu   sync.Mutex
	ln   net.Listener
	conn net.Conn
}

// NewServer creates a QMP Server bound to the given listener, facade, and
// the shared Async Request Gate (serviced by a GateWorker started
// elsewhere, typically by the owning Handle).
func NewServer(ln net.Listener, f facade.Emulator, gate *asyncgate.Gate, log *rdbglog.Logger, mode NegotiationMode) *Server {
	return &Server{facade: f, gate: gate, log: log, ln: ln, mode: mode}
}

// Close shuts down any connected client and the listener. Idempotent. The
// in-flight recv (which may be blocked) is interrupted by closing conn.
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

// HasClient reports whether a QMP client is currently connected.
func (srv *Server) HasClient() bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.conn != nil
}

// AcceptLoop accepts clients one at a time for as long as the listener is
// open. A second connection attempt while one client is active is refused.
func (srv *Server) AcceptLoop() {
	for {
		conn, err := srv.ln.Accept()
		if err != nil {
			return
		}

		if err := srv.claim(conn); err != nil {
			srv.log.Warn("qmp accept rejected", logrus.Fields{"error": err.Error()})
			_ = conn.Close()
			continue
		}

		go srv.serveClient(conn)
	}
}

func (srv *Server) claim(conn net.Conn) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.conn != nil {
		return errors.New("qmp: a client is already connected")
	}

	srv.conn = conn
	return nil
}

func (srv *Server) release() {
	srv.mu.Lock()
	srv.conn = nil
	srv.mu.Unlock()
}

// serveClient runs the dedicated per-client thread: send the greeting,
// then loop reading JSON objects off the socket and dispatching them.
func (srv *Server) serveClient(conn net.Conn) {
	defer srv.release()

	id := uuid.NewString()
	srv.log.Info("qmp client accepted", logrus.Fields{"session": id, "remote": conn.RemoteAddr().String()})

	if _, err := conn.Write(Greeting()); err != nil {
		_ = conn.Close()
		return
	}

	session := NewSession(srv.facade, srv.gate, srv.log, id, srv.mode)

	var buf []byte
	readBuf := make([]byte, 4096)

	for {
		n, err := conn.Read(readBuf)
		if n > 0 {
			buf = append(buf, readBuf[:n]...)

			for {
				obj, consumed, ok := ExtractObject(buf)
				if !ok {
					break
				}

				buf = buf[consumed:]
				reply, closeConn := session.Dispatch(obj)
				if _, werr := conn.Write(reply); werr != nil {
					_ = conn.Close()
					srv.log.Info("qmp client disconnected", logrus.Fields{"session": id})
					return
				}

				if closeConn {
					_ = conn.Close()
					srv.log.Info("qmp client disconnected", logrus.Fields{"session": id})
					return
				}
			}
		}

		if err != nil {
			break
		}
	}

	srv.log.Info("qmp client disconnected", logrus.Fields{"session": id})
}
