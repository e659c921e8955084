// Package admin exposes a read-only HTTP/websocket surface that lets the
// embedding emulator observe the GDB and QMP servers' state instead of
// polling log files.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lokkju/dosbox-x/rdbglog"
)

// GDBStatus is a snapshot of the GDB server/session state for the status API.
type GDBStatus struct {
	Listening       bool   `json:"listening"`
	Port            int64  `json:"port"`
	ClientConnected bool   `json:"client_connected"`
	ExecutionState  string `json:"execution_state,omitempty"`
	BreakpointCount int    `json:"breakpoint_count,omitempty"`
	NoAckMode       bool   `json:"no_ack_mode,omitempty"`
}

// QMPStatus is a snapshot of the QMP server state for the status API.
type QMPStatus struct {
	Listening       bool  `json:"listening"`
	Port            int64 `json:"port"`
	ClientConnected bool  `json:"client_connected"`
}

// StatusProvider is implemented by the root Handle; admin polls it on each
// GET /status request rather than caching, since snapshots are cheap.
type StatusProvider interface {
	GDBStatus() GDBStatus
	QMPStatus() QMPStatus
}

// Event is one notification pushed to GET /events subscribers: a GDB
// stop-reply transition or an Async Request Gate completion.
type Event struct {
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the admin HTTP surface. It is read-only: nothing it exposes can
// drive the emulator, only observe the core's own state.
type Server struct {
	provider StatusProvider
	log      *rdbglog.Logger

	mu          sync.Mutex
	subscribers map[chan Event]struct{}

	httpServer *http.Server
}

// NewServer builds the admin router. Call Serve to run it against a
// listener; the caller owns the listener's lifecycle.
func NewServer(provider StatusProvider, log *rdbglog.Logger) *Server {
	return &Server{
		provider:    provider,
		log:         log,
		subscribers: make(map[chan Event]struct{}),
	}
}

// Publish fans an event out to every connected /events websocket client.
// Slow subscribers are dropped rather than blocking the publisher.
func (s *Server) Publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			delete(s.subscribers, ch)
			close(ch)
		}
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/status", s.handleStatus)
	r.Get("/events", s.handleEvents)
	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	payload := struct {
		GDB GDBStatus `json:"gdb"`
		QMP QMPStatus `json:"qmp"`
	}{
		GDB: s.provider.GDBStatus(),
		QMP: s.provider.QMPStatus(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn("admin status encode failed", nil)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("admin websocket upgrade failed", nil)
		return
	}
	defer conn.Close()

	ch := make(chan Event, 16)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subscribers, ch)
		s.mu.Unlock()
	}()

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

// Serve runs the admin HTTP server on ln until Shutdown is called or ln
// closes.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.httpServer = &http.Server{Handler: s.router()}
	srv := s.httpServer
	s.mu.Unlock()

	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Shutdown gracefully stops the admin HTTP server and closes every open
// /events subscriber channel.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	return srv.Shutdown(ctx)
}
