package rsp

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokkju/dosbox-x/facade"
	"github.com/lokkju/dosbox-x/rdbglog"
)

func newTestServer(t *testing.T) (*Server, net.Listener, *facade.Fake) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	f := facade.NewFake()
	f.RequestResume()
	srv := NewServer(ln, f, rdbglog.New())
	go srv.AcceptLoop()

	return srv, ln, f
}

func dialServer(t *testing.T, srv *Server, ln net.Listener) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, srv.HasClient, time.Second, time.Millisecond)
	return conn
}

// readFrame reads one "$payload#cc" frame, discarding a leading '+'/'-' ack
// byte if present.
func readFrame(t *testing.T, r *bufio.Reader) string {
	t.Helper()

	b, err := r.ReadByte()
	require.NoError(t, err)
	if b == '+' || b == '-' {
		b, err = r.ReadByte()
		require.NoError(t, err)
	}
	require.Equal(t, byte('$'), b)

	payload, err := r.ReadString('#')
	require.NoError(t, err)
	payload = payload[:len(payload)-1]

	cc := make([]byte, 2)
	_, err = r.Read(cc)
	require.NoError(t, err)

	return payload
}

func TestPollLoopStepThenReportStop(t *testing.T) {
	srv, ln, f := newTestServer(t)
	conn := dialServer(t, srv, ln)
	r := bufio.NewReader(conn)

	require.NoError(t, SendFrame(conn, "s"))

	require.Eventually(t, func() bool {
		return srv.Poll() == ActionStep
	}, time.Second, time.Millisecond)

	f.StepInstruction()
	srv.ReportStop(SigTrap)

	payload := readFrame(t, r)
	assert.Equal(t, "S05", payload)
}

func TestPollLoopContinueThenInterruptHalts(t *testing.T) {
	srv, ln, _ := newTestServer(t)
	conn := dialServer(t, srv, ln)
	r := bufio.NewReader(conn)

	require.NoError(t, SendFrame(conn, "c"))

	require.Eventually(t, func() bool {
		return srv.Poll() == ActionContinue
	}, time.Second, time.Millisecond)

	// Simulate the embedder entering its run loop: the session is now
	// RUNNING, so a bare 0x03 must come back as ActionHalt rather than an
	// immediate reply.
	_, err := conn.Write([]byte{0x03})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return srv.Poll() == ActionHalt
	}, time.Second, time.Millisecond)

	srv.ReportStop(SigTrap)

	payload := readFrame(t, r)
	assert.Equal(t, "S05", payload)
}

func TestAcceptLoopRejectsSecondClient(t *testing.T) {
	srv, ln, _ := newTestServer(t)
	_ = dialServer(t, srv, ln)

	conn2, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn2.Close()

	buf := make([]byte, 1)
	conn2.SetReadDeadline(time.Now().Add(time.Second))
	_, err = conn2.Read(buf)
	assert.Error(t, err)
}
