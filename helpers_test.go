package avdecc

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opd-ai/avdecc/protocol"
	"github.com/opd-ai/avdecc/transport"
	"github.com/stretchr/testify/require"
)

var (
	controllerMAC = net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	entityMAC     = net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02}
)

const (
	controllerID protocol.UniqueIdentifier = 0x0001020304050607
	entityID     protocol.UniqueIdentifier = 0x1011121314151617
)

// mockTimeProvider allows tests to control deadlines deterministically.
type mockTimeProvider struct {
	mu  sync.Mutex
	now time.Time
}

func newMockTimeProvider() *mockTimeProvider {
	return &mockTimeProvider{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *mockTimeProvider) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockTimeProvider) NewTicker(d time.Duration) *time.Ticker {
	return time.NewTicker(d)
}

func (m *mockTimeProvider) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// fakeEntity answers commands the way a cooperative remote entity would.
type fakeEntity struct {
	t          *testing.T
	transport  *transport.SimulatedTransport
	silent     atomic.Bool
	inProgress atomic.Bool
	commands   atomic.Int32
}

func newFakeEntity(t *testing.T, network *transport.SimulatedNetwork) *fakeEntity {
	t.Helper()
	e := &fakeEntity{t: t, transport: network.Endpoint(entityMAC)}
	e.transport.RegisterHandler(protocol.SubtypeACMP, e.handleAcmp)
	e.transport.RegisterHandler(protocol.SubtypeAECP, e.handleAecp)
	t.Cleanup(func() { _ = e.transport.Close() })
	return e
}

func (e *fakeEntity) handleAcmp(data []byte, _ net.Addr) error {
	pdu, err := protocol.ParseAcmpdu(data)
	if err != nil || !pdu.MessageType.IsCommand() {
		return err
	}
	e.commands.Add(1)
	if e.silent.Load() {
		return nil
	}
	resp := *pdu
	resp.MessageType = pdu.MessageType.Response()
	resp.ConnectionCount = 1
	return e.sendAcmp(&resp)
}

func (e *fakeEntity) handleAecp(data []byte, _ net.Addr) error {
	if protocol.IsMvu(data) {
		pdu, err := protocol.ParseMvuAecpdu(data)
		if err != nil || pdu.MessageType != protocol.AecpVendorUniqueCommand {
			return err
		}
		e.commands.Add(1)
		if e.silent.Load() {
			return nil
		}
		resp := *pdu
		resp.MessageType = protocol.AecpVendorUniqueResponse
		return e.sendMvu(&resp)
	}

	pdu, err := protocol.ParseAemAecpdu(data)
	if err != nil || pdu.MessageType != protocol.AecpAemCommand {
		return err
	}
	e.commands.Add(1)
	if e.silent.Load() {
		return nil
	}
	resp := *pdu
	resp.MessageType = protocol.AecpAemResponse
	if e.inProgress.Load() {
		interim := resp
		interim.Status = protocol.AemStatusInProgress
		if err := e.sendAem(&interim); err != nil {
			return err
		}
	}
	return e.sendAem(&resp)
}

func (e *fakeEntity) sendAcmp(pdu *protocol.Acmpdu) error {
	data, err := pdu.Serialize()
	if err != nil {
		return err
	}
	return e.transport.Send(data, nil)
}

func (e *fakeEntity) sendAem(pdu *protocol.AemAecpdu) error {
	data, err := pdu.Serialize()
	if err != nil {
		return err
	}
	return e.transport.Send(data, nil)
}

func (e *fakeEntity) sendMvu(pdu *protocol.MvuAecpdu) error {
	data, err := pdu.Serialize()
	if err != nil {
		return err
	}
	return e.transport.Send(data, nil)
}

// testSetup is a controller and a fake entity on one simulated segment.
type testSetup struct {
	network    *transport.SimulatedNetwork
	endpoint   *transport.SimulatedTransport
	entity     *fakeEntity
	clock      *mockTimeProvider
	controller *ProtocolInterface
}

// newTestSetup builds a setup with a mock clock and no background sweeper.
// configure may adjust the options before the interface is created.
func newTestSetup(t *testing.T, async bool, configure func(*Options)) *testSetup {
	t.Helper()

	network := transport.NewSimulatedNetwork()
	network.SetAsync(async)

	s := &testSetup{
		network:  network,
		endpoint: network.Endpoint(controllerMAC),
		clock:    newMockTimeProvider(),
	}
	s.entity = newFakeEntity(t, network)

	opts := NewOptions()
	opts.EntityID = controllerID
	opts.TimeProvider = s.clock
	opts.SweepInterval = 0
	if configure != nil {
		configure(opts)
	}

	pi, err := New(s.endpoint, opts)
	require.NoError(t, err)
	s.controller = pi
	t.Cleanup(func() { _ = pi.Close() })

	return s
}

func acmpCommand(seq uint16) *protocol.Acmpdu {
	return &protocol.Acmpdu{
		MessageType:        protocol.AcmpConnectRxCommand,
		ControllerEntityID: controllerID,
		TalkerEntityID:     0x2021222324252627,
		ListenerEntityID:   entityID,
		SequenceID:         seq,
	}
}

func aemCommand(seq uint16) *protocol.AemAecpdu {
	return &protocol.AemAecpdu{
		MessageType:        protocol.AecpAemCommand,
		TargetEntityID:     entityID,
		ControllerEntityID: controllerID,
		SequenceID:         seq,
		CommandType:        protocol.AemCommandReadDescriptor,
		Payload:            []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	}
}

func mvuCommand(seq uint16) *protocol.MvuAecpdu {
	return &protocol.MvuAecpdu{
		MessageType:        protocol.AecpVendorUniqueCommand,
		TargetEntityID:     entityID,
		ControllerEntityID: controllerID,
		SequenceID:         seq,
		CommandType:        protocol.MvuCommandGetMilanInfo,
		Payload:            []byte{0x00, 0x00},
	}
}

// resultRecorder captures result callback invocations.
type resultRecorder[R any] struct {
	mu        sync.Mutex
	responses []R
	errs      []error
	ch        chan struct{}
}

func newResultRecorder[R any]() *resultRecorder[R] {
	return &resultRecorder[R]{ch: make(chan struct{}, 1024)}
}

func (r *resultRecorder[R]) callback(response R, err error) {
	r.mu.Lock()
	r.responses = append(r.responses, response)
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *resultRecorder[R]) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func (r *resultRecorder[R]) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result callback")
	}
}

func (r *resultRecorder[R]) last() (R, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.errs)
	return r.responses[n-1], r.errs[n-1]
}
