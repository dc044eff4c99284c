package transport

import (
	"net"
	"sync"

	"github.com/opd-ai/avdecc/protocol"
	"github.com/sirupsen/logrus"
)

// Handler is a function that processes an incoming control PDU.
type Handler func(pdu []byte, addr net.Addr) error

// Transport defines the interface for the links AVDECC PDUs travel over.
// This abstraction allows raw Ethernet, UDP tunnelling and the in-memory
// simulation to be used interchangeably by protocol interfaces and entities.
type Transport interface {
	// Send transmits a control PDU. A nil addr targets the AVDECC
	// multicast group.
	Send(pdu []byte, addr net.Addr) error

	// Close shuts down the transport.
	Close() error

	// LocalAddr returns the local address the transport is listening on.
	LocalAddr() net.Addr

	// RegisterHandler registers a handler for an AVTP subtype.
	RegisterHandler(subtype protocol.Subtype, handler Handler)
}

// handlerSet is the subtype dispatch table shared by the implementations.
type handlerSet struct {
	mu       sync.RWMutex
	handlers map[protocol.Subtype]Handler
}

func newHandlerSet() *handlerSet {
	return &handlerSet{handlers: make(map[protocol.Subtype]Handler)}
}

func (s *handlerSet) register(subtype protocol.Subtype, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[subtype] = handler
}

// dispatch finds and executes the handler registered for the PDU's subtype.
func (s *handlerSet) dispatch(pdu []byte, addr net.Addr) {
	subtype, err := protocol.PeekSubtype(pdu)
	if err != nil {
		return
	}

	s.mu.RLock()
	handler, exists := s.handlers[subtype]
	s.mu.RUnlock()

	if !exists {
		return
	}
	if err := handler(pdu, addr); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "dispatch",
			"subtype":  subtype.String(),
			"addr":     addr,
			"error":    err.Error(),
		}).Debug("Handler rejected PDU")
	}
}

// decodeAndDispatch strips the Ethernet header, ignoring frames sent by
// self, and passes the payload on.
func (s *handlerSet) decodeAndDispatch(frame []byte, self net.HardwareAddr, addr net.Addr) {
	f, err := protocol.DecodeFrame(frame)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "decodeAndDispatch",
			"addr":     addr,
			"error":    err.Error(),
		}).Debug("Dropping undecodable frame")
		return
	}
	if self != nil && f.Source.String() == self.String() {
		return
	}
	s.dispatch(f.Payload, addr)
}
