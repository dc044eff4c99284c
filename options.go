package avdecc

import (
	"time"

	"github.com/opd-ai/avdecc/pending"
	"github.com/opd-ai/avdecc/protocol"
)

// RegistrationOrder selects when a command's correlation entry is stored
// relative to handing the frame to the transport.
type RegistrationOrder uint8

const (
	// RegisterBeforeSend stores the entry first and cancels it if the send
	// fails. A response delivered while Send is still running is matched.
	RegisterBeforeSend RegistrationOrder = iota
	// SendBeforeRegister sends first and stores the entry only after the
	// transport accepted the frame. A response that arrives before the
	// entry exists is dropped as unmatched and the entry waits for expiry.
	SendBeforeRegister
)

func (o RegistrationOrder) String() string {
	switch o {
	case RegisterBeforeSend:
		return "register-before-send"
	case SendBeforeRegister:
		return "send-before-register"
	default:
		return "unknown"
	}
}

// Options contains configuration for a ProtocolInterface.
type Options struct {
	// EntityID identifies the local controller in log output.
	EntityID protocol.UniqueIdentifier

	// Order is the command registration policy.
	Order RegistrationOrder

	// ExpiryEnabled gives every command a deadline and runs the sweepers.
	// When false, entries live until answered or until Close.
	ExpiryEnabled bool

	// AcmpTimeout overrides the per-message-type IEEE 1722.1 ACMP timeouts
	// when positive.
	AcmpTimeout time.Duration
	AemTimeout  time.Duration
	MvuTimeout  time.Duration

	// SweepInterval is how often expired entries are collected.
	SweepInterval time.Duration

	TimeProvider pending.TimeProvider
	Metrics      *pending.Metrics
}

// NewOptions returns the default options: register-before-send with the
// standard command timeouts.
func NewOptions() *Options {
	return &Options{
		Order:         RegisterBeforeSend,
		ExpiryEnabled: true,
		AcmpTimeout:   0, // per message type
		AemTimeout:    protocol.AecpCommandTimeout,
		MvuTimeout:    protocol.AecpCommandTimeout,
		SweepInterval: 50 * time.Millisecond,
	}
}

func (o *Options) acmpTimeout(t protocol.AcmpMessageType) time.Duration {
	if !o.ExpiryEnabled {
		return 0
	}
	if o.AcmpTimeout > 0 {
		return o.AcmpTimeout
	}
	return t.Timeout()
}

func (o *Options) aemTimeout() time.Duration {
	if !o.ExpiryEnabled {
		return 0
	}
	return o.AemTimeout
}

func (o *Options) mvuTimeout() time.Duration {
	if !o.ExpiryEnabled {
		return 0
	}
	return o.MvuTimeout
}
