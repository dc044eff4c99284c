package avdecc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/avdecc/pending"
	"github.com/opd-ai/avdecc/protocol"
	"github.com/opd-ai/avdecc/transport"
	"github.com/sirupsen/logrus"
)

const (
	opSend     = "send"
	opRegister = "register"
	opValidate = "validate"
)

// PendingCounts is the number of outstanding commands per family.
type PendingCounts struct {
	Acmp int
	Aem  int
	Mvu  int
}

// Total returns the sum over all families.
func (c PendingCounts) Total() int {
	return c.Acmp + c.Aem + c.Mvu
}

// ProtocolInterface sends AVDECC commands over a transport and delivers
// each response to the callback registered for it.
type ProtocolInterface struct {
	options   *Options
	transport transport.Transport

	acmp *pending.Table[CorrelationKey, *protocol.Acmpdu]
	aem  *pending.Table[CorrelationKey, *protocol.AemAecpdu]
	mvu  *pending.Table[CorrelationKey, *protocol.MvuAecpdu]

	sequenceID atomic.Uint32

	callbackMu                  sync.RWMutex
	transportErrorCallback      func(err error)
	acmpMessageCallback         func(pdu *protocol.Acmpdu)
	aecpCommandCallback         func(pdu *protocol.AemAecpdu)
	mvuCommandCallback          func(pdu *protocol.MvuAecpdu)
	unsolicitedResponseCallback func(pdu *protocol.AemAecpdu)

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
	cancel    context.CancelFunc
	sweepers  sync.WaitGroup
}

// New creates a protocol interface bound to t. A nil opts uses NewOptions.
//
//export AvdeccNewProtocolInterface
func New(t transport.Transport, opts *Options) (*ProtocolInterface, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameters)
	}
	if opts == nil {
		opts = NewOptions()
	}

	tableOpts := []pending.Option{
		pending.WithTimeProvider(opts.TimeProvider),
		pending.WithMetrics(opts.Metrics),
	}

	ctx, cancel := context.WithCancel(context.Background())

	pi := &ProtocolInterface{
		options:   opts,
		transport: t,
		acmp:      pending.NewTable[CorrelationKey, *protocol.Acmpdu](string(FamilyAcmp), tableOpts...),
		aem:       pending.NewTable[CorrelationKey, *protocol.AemAecpdu](string(FamilyAem), tableOpts...),
		mvu:       pending.NewTable[CorrelationKey, *protocol.MvuAecpdu](string(FamilyMvu), tableOpts...),
		done:      make(chan struct{}),
		cancel:    cancel,
	}

	t.RegisterHandler(protocol.SubtypeACMP, pi.handleAcmp)
	t.RegisterHandler(protocol.SubtypeAECP, pi.handleAecp)

	if opts.ExpiryEnabled && opts.SweepInterval > 0 {
		pi.startSweeper(ctx, pi.acmp.Run)
		pi.startSweeper(ctx, pi.aem.Run)
		pi.startSweeper(ctx, pi.mvu.Run)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "New",
		"entity_id": opts.EntityID.String(),
		"local":     t.LocalAddr(),
		"order":     opts.Order.String(),
		"expiry":    opts.ExpiryEnabled,
	}).Info("Protocol interface created")

	return pi, nil
}

func (pi *ProtocolInterface) startSweeper(ctx context.Context, run func(context.Context, time.Duration)) {
	pi.sweepers.Add(1)
	go func() {
		defer pi.sweepers.Done()
		run(ctx, pi.options.SweepInterval)
	}()
}

// Close stops the sweepers, abandons every outstanding command without
// invoking its callback, and closes the transport. It must not be called
// from a result callback or an observer. Calling it again is a no-op.
//
//export AvdeccProtocolInterfaceClose
func (pi *ProtocolInterface) Close() error {
	var err error
	pi.closeOnce.Do(func() {
		pi.closed.Store(true)
		close(pi.done)
		pi.cancel()
		pi.sweepers.Wait()

		abandoned := pi.acmp.Close() + pi.aem.Close() + pi.mvu.Close()
		err = pi.transport.Close()

		logrus.WithFields(logrus.Fields{
			"function":  "ProtocolInterface.Close",
			"entity_id": pi.options.EntityID.String(),
			"abandoned": abandoned,
		}).Info("Protocol interface closed")
	})
	return err
}

// IsClosed reports whether Close has been called.
func (pi *ProtocolInterface) IsClosed() bool {
	return pi.closed.Load()
}

// Pending returns the number of outstanding commands per family.
func (pi *ProtocolInterface) Pending() PendingCounts {
	return PendingCounts{
		Acmp: pi.acmp.Len(),
		Aem:  pi.aem.Len(),
		Mvu:  pi.mvu.Len(),
	}
}

// NextSequenceID returns the next command sequence ID. Zero is skipped.
func (pi *ProtocolInterface) NextSequenceID() uint16 {
	for {
		if id := uint16(pi.sequenceID.Add(1)); id != 0 {
			return id
		}
	}
}

// Transport returns the transport the interface sends on.
func (pi *ProtocolInterface) Transport() transport.Transport {
	return pi.transport
}

// OnTransportError sets the callback for failed sends.
func (pi *ProtocolInterface) OnTransportError(callback func(err error)) {
	pi.callbackMu.Lock()
	defer pi.callbackMu.Unlock()
	pi.transportErrorCallback = callback
}

// OnAcmpMessage sets the callback for every ACMP PDU received, commands and
// responses alike, whether or not it matched a pending command.
func (pi *ProtocolInterface) OnAcmpMessage(callback func(pdu *protocol.Acmpdu)) {
	pi.callbackMu.Lock()
	defer pi.callbackMu.Unlock()
	pi.acmpMessageCallback = callback
}

// OnAecpCommand sets the callback for received AEM commands.
func (pi *ProtocolInterface) OnAecpCommand(callback func(pdu *protocol.AemAecpdu)) {
	pi.callbackMu.Lock()
	defer pi.callbackMu.Unlock()
	pi.aecpCommandCallback = callback
}

// OnMvuCommand sets the callback for received Milan vendor-unique commands.
func (pi *ProtocolInterface) OnMvuCommand(callback func(pdu *protocol.MvuAecpdu)) {
	pi.callbackMu.Lock()
	defer pi.callbackMu.Unlock()
	pi.mvuCommandCallback = callback
}

// OnAecpUnsolicitedResponse sets the callback for unsolicited AEM
// notifications.
func (pi *ProtocolInterface) OnAecpUnsolicitedResponse(callback func(pdu *protocol.AemAecpdu)) {
	pi.callbackMu.Lock()
	defer pi.callbackMu.Unlock()
	pi.unsolicitedResponseCallback = callback
}

// AcmpMessageObserver returns the callback set by OnAcmpMessage.
func (pi *ProtocolInterface) AcmpMessageObserver() func(pdu *protocol.Acmpdu) {
	pi.callbackMu.RLock()
	defer pi.callbackMu.RUnlock()
	return pi.acmpMessageCallback
}

// AecpCommandObserver returns the callback set by OnAecpCommand.
func (pi *ProtocolInterface) AecpCommandObserver() func(pdu *protocol.AemAecpdu) {
	pi.callbackMu.RLock()
	defer pi.callbackMu.RUnlock()
	return pi.aecpCommandCallback
}

// MvuCommandObserver returns the callback set by OnMvuCommand.
func (pi *ProtocolInterface) MvuCommandObserver() func(pdu *protocol.MvuAecpdu) {
	pi.callbackMu.RLock()
	defer pi.callbackMu.RUnlock()
	return pi.mvuCommandCallback
}

// notify runs an observer callback, containing any panic.
func notify[T any](pi *ProtocolInterface, name string, get func() func(T), arg T) {
	pi.callbackMu.RLock()
	callback := get()
	pi.callbackMu.RUnlock()

	if callback == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"function": "ProtocolInterface.notify",
				"observer": name,
				"panic":    r,
			}).Warn("Observer callback panicked")
		}
	}()
	callback(arg)
}
