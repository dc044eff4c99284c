package transport

import (
	"testing"

	"github.com/opd-ai/avdecc/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUDPTransportExchange(t *testing.T) {
	b, err := NewUDPTransport("127.0.0.1:0", "", macB)
	require.NoError(t, err)
	defer b.Close()

	a, err := NewUDPTransport("127.0.0.1:0", b.LocalAddr().String(), macA)
	require.NoError(t, err)
	defer a.Close()

	gotA, gotB := newCollector(), newCollector()
	a.RegisterHandler(protocol.SubtypeACMP, gotA.handle)
	b.RegisterHandler(protocol.SubtypeACMP, gotB.handle)

	require.NoError(t, a.Send(testAcmpdu(t, 7), nil))
	gotB.wait(t)

	gotB.mu.Lock()
	pdu, from := gotB.pdus[0], gotB.addrs[0]
	gotB.mu.Unlock()

	parsed, err := protocol.ParseAcmpdu(pdu)
	require.NoError(t, err)
	assert.Equal(t, uint16(7), parsed.SequenceID)
	assert.Equal(t, a.LocalAddr().String(), from.String())

	require.NoError(t, b.Send(pdu, from))
	gotA.wait(t)
	assert.Equal(t, 1, gotA.count())
}

func TestUDPTransportIgnoresOwnFrames(t *testing.T) {
	a, err := NewUDPTransport("127.0.0.1:0", "", macA)
	require.NoError(t, err)
	defer a.Close()

	echo, err := NewUDPTransport("127.0.0.1:0", "", macA)
	require.NoError(t, err)
	defer echo.Close()

	got := newCollector()
	echo.RegisterHandler(protocol.SubtypeACMP, got.handle)

	other, err := NewUDPTransport("127.0.0.1:0", "", macB)
	require.NoError(t, err)
	defer other.Close()

	// Same source MAC on both ends: the receiver treats it as its own frame.
	require.NoError(t, a.Send(testAcmpdu(t, 1), echo.LocalAddr()))
	require.NoError(t, other.Send(testAcmpdu(t, 2), echo.LocalAddr()))
	got.wait(t)

	got.mu.Lock()
	defer got.mu.Unlock()
	require.Len(t, got.pdus, 1)
	parsed, err := protocol.ParseAcmpdu(got.pdus[0])
	require.NoError(t, err)
	assert.Equal(t, uint16(2), parsed.SequenceID)
}

func TestUDPTransportErrors(t *testing.T) {
	_, err := NewUDPTransport("127.0.0.1:0", "", nil)
	assert.ErrorIs(t, err, protocol.ErrInvalidHardwareAddr)

	_, err = NewUDPTransport("127.0.0.1:0", "not a host:port:x", macA)
	assert.Error(t, err)

	a, err := NewUDPTransport("127.0.0.1:0", "", macA)
	require.NoError(t, err)
	assert.ErrorIs(t, a.Send(testAcmpdu(t, 1), nil), ErrUnsupportedAddr)
	assert.Equal(t, macA, a.HardwareAddr())

	require.NoError(t, a.Close())
	assert.NoError(t, a.Close())
	assert.ErrorIs(t, a.Send(testAcmpdu(t, 1), a.LocalAddr()), ErrTransportClosed)
}
