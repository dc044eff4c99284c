package transport

import (
	"fmt"
	"net"
	"sync"

	"github.com/opd-ai/avdecc/protocol"
	"github.com/sirupsen/logrus"
)

// simulatedInboxSize bounds the frames queued for an asynchronous endpoint.
const simulatedInboxSize = 4096

// SimAddr addresses an endpoint of a SimulatedNetwork.
type SimAddr struct {
	MAC net.HardwareAddr
}

// Network implements net.Addr.
func (a *SimAddr) Network() string { return "avdecc-sim" }

// String implements net.Addr.
func (a *SimAddr) String() string { return a.MAC.String() }

// DeliveryRecord represents a frame offered to an endpoint, for test
// verification.
type DeliveryRecord struct {
	From    string
	To      string
	Subtype protocol.Subtype
	Size    int
	Dropped bool
}

// SimulatedNetwork is an in-memory Ethernet segment. Frames are encoded and
// decoded exactly as on a real link, then handed to every endpoint they are
// addressed to.
type SimulatedNetwork struct {
	mu          sync.RWMutex
	endpoints   map[string]*SimulatedTransport
	async       bool
	deliveryLog []DeliveryRecord
}

// NewSimulatedNetwork creates an empty network. Delivery is synchronous:
// the receiving handler runs inside the sender's Send call.
func NewSimulatedNetwork() *SimulatedNetwork {
	return &SimulatedNetwork{
		endpoints: make(map[string]*SimulatedTransport),
	}
}

// SetAsync switches between synchronous delivery and queued delivery on a
// per-endpoint goroutine.
func (n *SimulatedNetwork) SetAsync(async bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.async = async
}

// Endpoint attaches a new endpoint with the given MAC address.
func (n *SimulatedNetwork) Endpoint(mac net.HardwareAddr) *SimulatedTransport {
	t := &SimulatedTransport{
		network:  n,
		addr:     &SimAddr{MAC: append(net.HardwareAddr(nil), mac...)},
		handlers: newHandlerSet(),
		inbox:    make(chan simulatedFrame, simulatedInboxSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	n.mu.Lock()
	n.endpoints[t.addr.String()] = t
	n.mu.Unlock()

	go t.processInbox()

	logrus.WithFields(logrus.Fields{
		"function": "SimulatedNetwork.Endpoint",
		"mac":      t.addr.String(),
	}).Debug("Simulated endpoint attached")

	return t
}

// Deliveries returns a copy of the delivery log.
func (n *SimulatedNetwork) Deliveries() []DeliveryRecord {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]DeliveryRecord, len(n.deliveryLog))
	copy(out, n.deliveryLog)
	return out
}

// recipients returns the endpoints a frame to dst reaches, excluding the
// sender.
func (n *SimulatedNetwork) recipients(from *SimulatedTransport, dst net.HardwareAddr) ([]*SimulatedTransport, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	var out []*SimulatedTransport
	if dst.String() == protocol.MulticastMAC.String() {
		for _, ep := range n.endpoints {
			if ep != from {
				out = append(out, ep)
			}
		}
		return out, n.async
	}
	if ep, ok := n.endpoints[dst.String()]; ok && ep != from {
		out = append(out, ep)
	}
	return out, n.async
}

func (n *SimulatedNetwork) record(r DeliveryRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.deliveryLog = append(n.deliveryLog, r)
}

func (n *SimulatedNetwork) detach(t *SimulatedTransport) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.endpoints[t.addr.String()] == t {
		delete(n.endpoints, t.addr.String())
	}
}

type simulatedFrame struct {
	data []byte
	from net.Addr
}

// SimulatedTransport is one endpoint of a SimulatedNetwork. It satisfies
// the Transport interface.
type SimulatedTransport struct {
	network  *SimulatedNetwork
	addr     *SimAddr
	handlers *handlerSet
	inbox    chan simulatedFrame
	quit     chan struct{}
	done     chan struct{}

	mu         sync.RWMutex
	sendErr    error
	dropFilter func(pdu []byte) bool
	closed     bool
}

// SetSendError makes every later Send fail with err; nil restores normal
// operation.
func (t *SimulatedTransport) SetSendError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sendErr = err
}

// SetDropFilter installs a predicate over outgoing PDUs; frames for which it
// returns true are sent successfully but never arrive.
func (t *SimulatedTransport) SetDropFilter(filter func(pdu []byte) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dropFilter = filter
}

// RegisterHandler registers a handler for an AVTP subtype.
func (t *SimulatedTransport) RegisterHandler(subtype protocol.Subtype, handler Handler) {
	t.handlers.register(subtype, handler)
}

// Send delivers pdu to addr, which must be nil (multicast) or a *SimAddr.
func (t *SimulatedTransport) Send(pdu []byte, addr net.Addr) error {
	t.mu.RLock()
	closed, sendErr, dropFilter := t.closed, t.sendErr, t.dropFilter
	t.mu.RUnlock()

	if closed {
		return newTransportError("send", addr, ErrTransportClosed)
	}
	if sendErr != nil {
		return newTransportError("send", addr, sendErr)
	}

	dst := protocol.MulticastMAC
	if addr != nil {
		sa, ok := addr.(*SimAddr)
		if !ok {
			return newTransportError("send", addr, fmt.Errorf("%w: %T", ErrUnsupportedAddr, addr))
		}
		dst = sa.MAC
	}

	frame, err := protocol.EncodeFrame(dst, t.addr.MAC, pdu)
	if err != nil {
		return newTransportError("send", addr, err)
	}

	subtype, _ := protocol.PeekSubtype(pdu)
	dropped := dropFilter != nil && dropFilter(pdu)
	recipients, async := t.network.recipients(t, dst)

	for _, ep := range recipients {
		t.network.record(DeliveryRecord{
			From:    t.addr.String(),
			To:      ep.addr.String(),
			Subtype: subtype,
			Size:    len(frame),
			Dropped: dropped,
		})
		if dropped {
			continue
		}
		if async {
			ep.enqueue(frame, t.addr)
		} else {
			ep.handlers.decodeAndDispatch(frame, ep.addr.MAC, t.addr)
		}
	}
	return nil
}

func (t *SimulatedTransport) enqueue(frame []byte, from net.Addr) {
	select {
	case <-t.quit:
	case t.inbox <- simulatedFrame{data: frame, from: from}:
	default:
		logrus.WithFields(logrus.Fields{
			"function": "SimulatedTransport.enqueue",
			"mac":      t.addr.String(),
		}).Warn("Simulated inbox full, dropping frame")
	}
}

func (t *SimulatedTransport) processInbox() {
	defer close(t.done)

	for {
		select {
		case <-t.quit:
			return
		case f := <-t.inbox:
			t.handlers.decodeAndDispatch(f.data, t.addr.MAC, f.from)
		}
	}
}

// Close detaches the endpoint from the network.
func (t *SimulatedTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.network.detach(t)
	close(t.quit)
	<-t.done
	return nil
}

// LocalAddr returns the endpoint's *SimAddr.
func (t *SimulatedTransport) LocalAddr() net.Addr {
	return t.addr
}
