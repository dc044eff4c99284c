package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportClosed indicates a Send on a closed transport
	ErrTransportClosed = errors.New("transport closed")

	// ErrUnsupportedAddr indicates a destination address of the wrong kind
	// for the transport
	ErrUnsupportedAddr = errors.New("unsupported address type")

	// ErrSimulatedFailure is returned by simulated endpoints configured to
	// fail their sends
	ErrSimulatedFailure = errors.New("simulated send failure")
)

// TransportError represents a send or receive failure with its context
type TransportError struct {
	Op   string // operation that caused the error
	Addr string // address if relevant
	Err  error  // underlying error
}

func (e *TransportError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("avdecc transport %s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("avdecc transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// newTransportError creates a new TransportError
func newTransportError(op string, addr fmt.Stringer, err error) *TransportError {
	e := &TransportError{Op: op, Err: err}
	if addr != nil {
		e.Addr = addr.String()
	}
	return e
}
