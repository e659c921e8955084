package asyncgate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitAwaitRoundTrip(t *testing.T) {
	g := &Gate{}

	req, err := g.Submit(KindSave, "/tmp/x.bin")
	require.NoError(t, err)
	assert.Equal(t, KindSave, req.Kind)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, StatusPending, g.StatusNow())

	go func() {
		pending, ok := g.Pending()
		require.True(t, ok)
		assert.Equal(t, req.ID, pending.ID)
		g.Complete(nil)
	}()

	err = g.Await(context.Background(), time.Second)
	assert.NoError(t, err)
	assert.Equal(t, StatusIdle, g.StatusNow())
}

func TestSubmitWhileBusyReturnsErrBusy(t *testing.T) {
	g := &Gate{}
	_, err := g.Submit(KindPause, nil)
	require.NoError(t, err)

	_, err = g.Submit(KindResume, nil)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestAwaitTimesOutWithoutCompletion(t *testing.T) {
	g := &Gate{}
	_, err := g.Submit(KindScreenshot, nil)
	require.NoError(t, err)

	err = g.Await(context.Background(), 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestCompletePropagatesError(t *testing.T) {
	g := &Gate{}
	_, err := g.Submit(KindLoad, "/tmp/y.bin")
	require.NoError(t, err)

	wantErr := errors.New("boom")
	g.Complete(wantErr)

	err = g.Await(context.Background(), time.Second)
	assert.ErrorIs(t, err, wantErr)
}

func TestResetForcesIdle(t *testing.T) {
	g := &Gate{}
	_, err := g.Submit(KindReset, false)
	require.NoError(t, err)

	g.Reset()
	assert.Equal(t, StatusIdle, g.StatusNow())

	_, err = g.Submit(KindReset, true)
	assert.NoError(t, err)
}

func TestCompleteIgnoredWhenNotPending(t *testing.T) {
	g := &Gate{}
	g.Complete(errors.New("should be ignored"))
	assert.Equal(t, StatusIdle, g.StatusNow())
}

// A timed-out Await must not wedge the slot: once the emulator thread
// eventually calls Complete, the background drain it started has to bring
// the slot back to Idle on its own, with no later Await call required.
func TestAwaitTimeoutDrainsLateCompletion(t *testing.T) {
	g := &Gate{}
	_, err := g.Submit(KindSave, "/tmp/x.bin")
	require.NoError(t, err)

	err = g.Await(context.Background(), 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	g.Complete(nil)

	require.Eventually(t, func() bool { return g.StatusNow() == StatusIdle }, time.Second, time.Millisecond)

	_, err = g.Submit(KindLoad, "/tmp/y.bin")
	assert.NoError(t, err)
}

// Forget must let a pending request drain to Idle on its own once the
// emulator thread completes it, without the caller ever calling Await.
func TestForgetDrainsOnceComplete(t *testing.T) {
	g := &Gate{}
	_, err := g.Submit(KindReset, false)
	require.NoError(t, err)

	g.Forget()
	g.Complete(nil)

	require.Eventually(t, func() bool { return g.StatusNow() == StatusIdle }, time.Second, time.Millisecond)

	_, err = g.Submit(KindReset, true)
	assert.NoError(t, err)
}
