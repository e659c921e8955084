package rdbg

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokkju/dosbox-x/admin"
	"github.com/lokkju/dosbox-x/config"
	"github.com/lokkju/dosbox-x/facade"
	"github.com/lokkju/dosbox-x/rdbglog"
	"github.com/lokkju/dosbox-x/rsp"
)

func ephemeralConfig(t *testing.T) config.Map {
	t.Helper()
	m, err := config.Load(config.DebugServerSchema(), map[string]string{
		"gdb.port":  "0",
		"gdb.bind":  "127.0.0.1",
		"qmp.port":  "0",
		"qmp.bind":  "127.0.0.1",
		"admin.enabled": "false",
	})
	require.NoError(t, err)
	return m
}

func TestStartStopLifecycle(t *testing.T) {
	h := New(ephemeralConfig(t), facade.NewFake(), rdbglog.New())
	assert.False(t, h.IsRunning())

	require.NoError(t, h.Start(context.Background()))
	assert.True(t, h.IsRunning())

	require.NoError(t, h.Stop())
	assert.False(t, h.IsRunning())
}

func TestStartTwiceReturnsErrAlreadyRunning(t *testing.T) {
	h := New(ephemeralConfig(t), facade.NewFake(), rdbglog.New())
	require.NoError(t, h.Start(context.Background()))
	defer h.Stop()

	err := h.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestStopWithoutStartReturnsErrNotRunning(t *testing.T) {
	h := New(ephemeralConfig(t), facade.NewFake(), rdbglog.New())
	err := h.Stop()
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestStatusReflectsDisabledServers(t *testing.T) {
	m, err := config.Load(config.DebugServerSchema(), map[string]string{
		"gdb.enabled": "false",
		"qmp.enabled": "false",
	})
	require.NoError(t, err)

	h := New(m, facade.NewFake(), rdbglog.New())
	require.NoError(t, h.Start(context.Background()))
	defer h.Stop()

	assert.False(t, h.GDBStatus().Listening)
	assert.False(t, h.QMPStatus().Listening)
}

func TestPollWithoutGDBServerReturnsNone(t *testing.T) {
	m, err := config.Load(config.DebugServerSchema(), map[string]string{"gdb.enabled": "false"})
	require.NoError(t, err)

	h := New(m, facade.NewFake(), rdbglog.New())
	require.NoError(t, h.Start(context.Background()))
	defer h.Stop()

	assert.Equal(t, rsp.ActionNone, h.Poll())
}

func TestReportStopPublishesAdminEvent(t *testing.T) {
	m, err := config.Load(config.DebugServerSchema(), map[string]string{
		"gdb.port":      "0",
		"gdb.bind":      "127.0.0.1",
		"qmp.port":      "0",
		"qmp.bind":      "127.0.0.1",
		"admin.enabled": "true",
		"admin.port":    "0",
		"admin.bind":    "127.0.0.1",
	})
	require.NoError(t, err)

	h := New(m, facade.NewFake(), rdbglog.New())
	require.NoError(t, h.Start(context.Background()))
	defer h.Stop()

	require.NotNil(t, h.AdminAddr())
	url := fmt.Sprintf("ws://%s/events", h.AdminAddr().String())

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	h.ReportStop(5)

	var ev admin.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "stop", ev.Kind)
	assert.Contains(t, ev.Detail, "5")
}

func TestStopReturnsWithinTimeout(t *testing.T) {
	h := New(ephemeralConfig(t), facade.NewFake(), rdbglog.New())
	require.NoError(t, h.Start(context.Background()))

	done := make(chan error, 1)
	go func() { done <- h.Stop() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return in time")
	}
}
