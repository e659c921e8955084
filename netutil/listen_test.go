package netutil

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenAcceptsConnections(t *testing.T) {
	ln, err := Listen(ListenOptions{Bind: "127.0.0.1", Port: 0})
	require.NoError(t, err)
	defer ln.Close()

	addr := ln.Addr().(*net.TCPAddr)
	assert.NotZero(t, addr.Port)

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
		done <- err
	}()

	client, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	client.Close()

	require.NoError(t, <-done)
}

func TestResolveBindDefaultsToAnyAddress(t *testing.T) {
	ip, err := resolveBind("")
	require.NoError(t, err)
	assert.True(t, ip.Equal(net.IPv4zero))
}

func TestResolveBindRejectsGarbage(t *testing.T) {
	_, err := resolveBind("not-an-ip")
	assert.Error(t, err)
}

func TestResolveBindRejectsIPv6(t *testing.T) {
	_, err := resolveBind("::1")
	assert.Error(t, err)
}
