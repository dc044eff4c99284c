// Package transport moves AVDECC control PDUs between entities.
//
// # Architecture
//
// Every implementation satisfies the Transport interface and hands complete
// AVTP control PDUs (control header included, Ethernet header stripped) to
// handlers registered per AVTP subtype:
//
//	type Transport interface {
//	    Send(pdu []byte, addr net.Addr) error
//	    Close() error
//	    LocalAddr() net.Addr
//	    RegisterHandler(subtype protocol.Subtype, handler Handler)
//	}
//
// A nil addr passed to Send means the AVDECC multicast group
// (91:E0:F0:01:00:00). Handlers receive the sender's address and may reply
// to it directly.
//
// # Implementations
//
// UDP Transport:
//
//	t, err := NewUDPTransport(":17221", "239.255.17.22:17221", mac)
//	// Ethernet frames tunnelled in UDP datagrams; works without privileges
//
// Raw Transport (linux):
//
//	t, err := NewRawTransport("eth0")
//	// AF_PACKET socket bound to EtherType 0x22F0
//
// Simulated network:
//
//	n := NewSimulatedNetwork()
//	a := n.Endpoint(macA)
//	b := n.Endpoint(macB)
//	// In-memory hub with drop and send-failure injection for tests
//
// # Dispatch
//
// Handlers run on the transport's receive goroutine, one PDU at a time, so
// an entity sees frames in arrival order. The simulated network can instead
// deliver inside Send, which lets tests reproduce a response that arrives
// before the sender has returned.
//
// # Thread Safety
//
// All transport implementations guard their handler maps with
// sync.RWMutex. Send may be called from any goroutine, including from inside
// a handler.
package transport
