package bindings

import (
	"net"
	"testing"

	"github.com/opd-ai/avdecc"
	"github.com/opd-ai/avdecc/entity"
	"github.com/opd-ai/avdecc/protocol"
	"github.com/opd-ai/avdecc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	controllerID protocol.UniqueIdentifier = 0x0001020304050607
	entityID     protocol.UniqueIdentifier = 0x1011121314151617
)

// panicTransport panics on every send.
type panicTransport struct{}

func (panicTransport) Send([]byte, net.Addr) error { panic("send exploded") }

func (panicTransport) Close() error { return nil }

func (panicTransport) LocalAddr() net.Addr { return &transport.SimAddr{} }

func (panicTransport) RegisterHandler(protocol.Subtype, transport.Handler) {}

// newPair returns a controller interface with a responder on the same
// synchronous segment.
func newPair(t *testing.T) (*avdecc.ProtocolInterface, *entity.Responder) {
	t.Helper()
	network := transport.NewSimulatedNetwork()

	opts := avdecc.NewOptions()
	opts.EntityID = controllerID
	controller, err := avdecc.New(network.Endpoint(net.HardwareAddr{2, 0, 0, 0, 0, 1}), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = controller.Close() })

	remote, err := avdecc.New(network.Endpoint(net.HardwareAddr{2, 0, 0, 0, 0, 2}), avdecc.NewOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = remote.Close() })

	r := entity.NewResponder(remote, &entity.Options{EntityID: entityID})
	t.Cleanup(r.Close)
	return controller, r
}

func aem(seq uint16) *protocol.AemAecpdu {
	return &protocol.AemAecpdu{
		MessageType:        protocol.AecpAemCommand,
		TargetEntityID:     entityID,
		ControllerEntityID: controllerID,
		SequenceID:         seq,
		CommandType:        protocol.AemCommandEntityAvailable,
	}
}

func TestManagerHandles(t *testing.T) {
	m := NewManager()
	pi, _ := newPair(t)

	assert.Equal(t, Handle(0), m.Create(nil))

	h1 := m.Create(pi)
	h2 := m.Create(pi)
	assert.NotEqual(t, Handle(0), h1)
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, m.Len())

	got, ok := m.Get(h1)
	require.True(t, ok)
	assert.Same(t, pi, got)

	_, ok = m.Get(Handle(42))
	assert.False(t, ok)
}

func TestManagerSendCommands(t *testing.T) {
	m := NewManager()
	pi, r := newPair(t)
	h := m.Create(pi)

	var acmpCode, aemCode, mvuCode avdecc.InterfaceError = 0xFF, 0xFF, 0xFF
	var aemResp *protocol.AemAecpdu

	code := m.SendAcmpCommand(h, &protocol.Acmpdu{
		MessageType:        protocol.AcmpGetRxStateCommand,
		ControllerEntityID: controllerID,
		ListenerEntityID:   entityID,
		SequenceID:         1,
	}, func(_ *protocol.Acmpdu, code avdecc.InterfaceError) { acmpCode = code })
	assert.Equal(t, avdecc.ErrNoError, code)

	code = m.SendAemAecpCommand(h, aem(2), func(resp *protocol.AemAecpdu, code avdecc.InterfaceError) {
		aemResp, aemCode = resp, code
	})
	assert.Equal(t, avdecc.ErrNoError, code)

	code = m.SendMvuAecpCommand(h, &protocol.MvuAecpdu{
		MessageType:        protocol.AecpVendorUniqueCommand,
		TargetEntityID:     entityID,
		ControllerEntityID: controllerID,
		SequenceID:         3,
		CommandType:        protocol.MvuCommandGetMilanInfo,
	}, func(_ *protocol.MvuAecpdu, code avdecc.InterfaceError) { mvuCode = code })
	assert.Equal(t, avdecc.ErrNoError, code)

	assert.Equal(t, avdecc.ErrNoError, acmpCode)
	assert.Equal(t, avdecc.ErrNoError, aemCode)
	assert.Equal(t, avdecc.ErrNoError, mvuCode)
	require.NotNil(t, aemResp)
	assert.Equal(t, uint16(2), aemResp.SequenceID)
	assert.Equal(t, entity.Stats{Acmp: 1, Aem: 1, Mvu: 1}, r.Stats())
}

func TestManagerErrorCodes(t *testing.T) {
	m := NewManager()
	pi, _ := newPair(t)
	h := m.Create(pi)
	noop := func(*protocol.AemAecpdu, avdecc.InterfaceError) {}

	t.Run("unknown handle", func(t *testing.T) {
		assert.Equal(t, avdecc.ErrInvalidProtocolInterfaceHandle, m.SendAemAecpCommand(Handle(99), aem(1), noop))
	})

	t.Run("reserved sequence id", func(t *testing.T) {
		assert.Equal(t, avdecc.ErrInvalidParameters, m.SendAemAecpCommand(h, aem(0), noop))
	})

	t.Run("nil callback", func(t *testing.T) {
		assert.Equal(t, avdecc.ErrInvalidParameters, m.SendAemAecpCommand(h, aem(5), nil))
	})

	t.Run("nil pdu", func(t *testing.T) {
		assert.Equal(t, avdecc.ErrInvalidParameters, m.SendAcmpCommand(h, nil, nil))
	})
}

func TestManagerRecoversDispatchPanic(t *testing.T) {
	pi, err := avdecc.New(panicTransport{}, avdecc.NewOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pi.Close() })

	m := NewManager()
	h := m.Create(pi)

	code := m.SendAemAecpCommand(h, aem(1), func(*protocol.AemAecpdu, avdecc.InterfaceError) {})
	assert.Equal(t, avdecc.ErrInvalidProtocolInterfaceHandle, code)
}

func TestManagerDestroy(t *testing.T) {
	m := NewManager()
	pi, r := newPair(t)
	h := m.Create(pi)

	r.SetDropFilter(func(avdecc.Family, uint16) bool { return true })

	var calls int
	require.Equal(t, avdecc.ErrNoError, m.SendAemAecpCommand(h, aem(1), func(*protocol.AemAecpdu, avdecc.InterfaceError) {
		calls++
	}))
	require.Equal(t, 1, pi.Pending().Aem)

	assert.Equal(t, avdecc.ErrNoError, m.Destroy(h))
	assert.Zero(t, calls, "abandoned commands are not called back")
	assert.Zero(t, pi.Pending().Total())
	assert.True(t, pi.IsClosed())

	assert.Equal(t, avdecc.ErrInvalidProtocolInterfaceHandle, m.Destroy(h))
	assert.Equal(t, avdecc.ErrInvalidProtocolInterfaceHandle, m.SendAemAecpCommand(h, aem(2), nil))
}

func TestManagerCloseAll(t *testing.T) {
	m := NewManager()
	a, _ := newPair(t)
	b, _ := newPair(t)
	m.Create(a)
	m.Create(b)

	m.CloseAll()

	assert.Zero(t, m.Len())
	assert.True(t, a.IsClosed())
	assert.True(t, b.IsClosed())
}
