package rsp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeChecksum(t *testing.T) {
	require.Equal(t, "00", computeChecksum(""))
	// 'g' = 0x67
	require.Equal(t, "67", computeChecksum("g"))
}

func TestFramerGoodFrame(t *testing.T) {
	f := &Framer{}
	var ack bytes.Buffer
	f.Feed([]byte("$g#67"))

	res := f.Next(&ack)
	require.Equal(t, ResultFrame, res.Kind)
	assert.Equal(t, "g", res.Payload)
	assert.Equal(t, "+", ack.String())
	assert.False(t, f.Pending())
}

func TestFramerBadChecksumThenGood(t *testing.T) {
	f := &Framer{}
	var ack bytes.Buffer
	f.Feed([]byte("$g#00$g#67"))

	res := f.Next(&ack)
	require.Equal(t, ResultFrame, res.Kind)
	assert.Equal(t, "g", res.Payload)
	assert.Equal(t, "-+", ack.String())
}

func TestFramerIncompleteFrame(t *testing.T) {
	f := &Framer{}
	var ack bytes.Buffer

	f.Feed([]byte("$g"))
	require.Equal(t, ResultNone, f.Next(&ack).Kind)

	f.Feed([]byte("#6"))
	require.Equal(t, ResultNone, f.Next(&ack).Kind)

	f.Feed([]byte("7"))
	res := f.Next(&ack)
	require.Equal(t, ResultFrame, res.Kind)
	assert.Equal(t, "g", res.Payload)
}

func TestFramerDiscardsGarbageAndAcks(t *testing.T) {
	f := &Framer{}
	var ack bytes.Buffer
	f.Feed([]byte("+-garbage$g#67"))

	res := f.Next(&ack)
	require.Equal(t, ResultFrame, res.Kind)
	assert.Equal(t, "g", res.Payload)
}

func TestFramerInterrupt(t *testing.T) {
	f := &Framer{}
	var ack bytes.Buffer
	f.Feed([]byte{0x03})

	res := f.Next(&ack)
	require.Equal(t, ResultInterrupt, res.Kind)
	assert.Equal(t, 0, ack.Len())
}

func TestFramerNoAckModeSuppressesAcks(t *testing.T) {
	f := &Framer{NoAck: true}
	var ack bytes.Buffer
	f.Feed([]byte("$g#67"))

	res := f.Next(&ack)
	require.Equal(t, ResultFrame, res.Kind)
	assert.Equal(t, 0, ack.Len())
}

func TestSendFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SendFrame(&buf, "OK"))
	assert.Equal(t, "$OK#9a", buf.String())
}

func TestSendFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SendFrame(&buf, ""))
	assert.Equal(t, "$#00", buf.String())
}
