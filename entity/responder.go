package entity

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/avdecc"
	"github.com/opd-ai/avdecc/protocol"
	"github.com/sirupsen/logrus"
)

// Options configures a Responder.
type Options struct {
	// EntityID is the entity the responder answers for. The null ID
	// answers every command.
	EntityID protocol.UniqueIdentifier

	// Delay postpones each final response.
	Delay time.Duration

	// InProgress sends an IN_PROGRESS AEM response before the final one.
	InProgress bool

	// ProgressInterval repeats the IN_PROGRESS response while a delayed
	// final response is outstanding. Zero sends it once.
	ProgressInterval time.Duration

	AcmpStatus protocol.AcmpStatus
	AemStatus  protocol.AemStatus
	MvuStatus  uint8
}

// DropFilter decides whether a command goes unanswered.
type DropFilter func(family avdecc.Family, sequenceID uint16) bool

// Stats counts the commands a responder handled.
type Stats struct {
	Acmp    int
	Aem     int
	Mvu     int
	Dropped int
}

// Responder answers commands received on a protocol interface. It takes
// over the interface's ACMP message, AECP command and MVU command
// observers; callbacks installed before NewResponder keep running after the
// responder's own handling.
type Responder struct {
	pi   *avdecc.ProtocolInterface
	opts Options

	mu   sync.RWMutex
	drop DropFilter

	acmp    atomic.Int64
	aem     atomic.Int64
	mvu     atomic.Int64
	dropped atomic.Int64

	closed  atomic.Bool
	delayed sync.WaitGroup
}

// NewResponder attaches a responder to pi. Observers already set with
// OnAcmpMessage, OnAecpCommand or OnMvuCommand are chained behind the
// responder. Setting one of those observers afterwards detaches the
// responder from that family.
func NewResponder(pi *avdecc.ProtocolInterface, opts *Options) *Responder {
	if opts == nil {
		opts = &Options{}
	}

	r := &Responder{pi: pi, opts: *opts}
	pi.OnAcmpMessage(chain(r.handleAcmp, pi.AcmpMessageObserver()))
	pi.OnAecpCommand(chain(r.handleAem, pi.AecpCommandObserver()))
	pi.OnMvuCommand(chain(r.handleMvu, pi.MvuCommandObserver()))

	logrus.WithFields(logrus.Fields{
		"function":    "NewResponder",
		"entity_id":   opts.EntityID.String(),
		"delay":       opts.Delay,
		"in_progress": opts.InProgress,
	}).Info("Responder attached")

	return r
}

// chain returns a callback running handle and then next, if any.
func chain[T any](handle, next func(T)) func(T) {
	if next == nil {
		return handle
	}
	return func(v T) {
		handle(v)
		next(v)
	}
}

// SetDropFilter installs f; nil answers everything.
func (r *Responder) SetDropFilter(f DropFilter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drop = f
}

// Stats returns the number of commands answered per family and dropped.
func (r *Responder) Stats() Stats {
	return Stats{
		Acmp:    int(r.acmp.Load()),
		Aem:     int(r.aem.Load()),
		Mvu:     int(r.mvu.Load()),
		Dropped: int(r.dropped.Load()),
	}
}

// Close stops answering and waits for delayed responses to finish. The
// protocol interface stays open.
func (r *Responder) Close() {
	r.mu.Lock()
	r.closed.Store(true)
	r.mu.Unlock()
	r.delayed.Wait()
}

func (r *Responder) addressed(target protocol.UniqueIdentifier) bool {
	return r.opts.EntityID == protocol.NullUniqueIdentifier || r.opts.EntityID == target
}

func (r *Responder) accept(family avdecc.Family, sequenceID uint16) bool {
	if r.closed.Load() {
		return false
	}

	r.mu.RLock()
	drop := r.drop
	r.mu.RUnlock()

	if drop != nil && drop(family, sequenceID) {
		r.dropped.Add(1)
		logrus.WithFields(logrus.Fields{
			"function":    "Responder.accept",
			"family":      family,
			"sequence_id": sequenceID,
		}).Debug("Dropping command")
		return false
	}
	return true
}

// reply runs send now, or after the configured delay.
func (r *Responder) reply(family avdecc.Family, send func() error) {
	run := func() {
		if r.closed.Load() {
			return
		}
		if err := send(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Responder.reply",
				"family":   family,
				"error":    err.Error(),
			}).Warn("Failed to send response")
		}
	}

	if r.opts.Delay <= 0 {
		run()
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed.Load() {
		return
	}
	r.delayed.Add(1)
	time.AfterFunc(r.opts.Delay, func() {
		defer r.delayed.Done()
		run()
	})
}

// acmpTarget returns the entity an ACMP command is addressed to: the
// talker for TX commands, the listener for RX commands.
func acmpTarget(pdu *protocol.Acmpdu) protocol.UniqueIdentifier {
	switch pdu.MessageType {
	case protocol.AcmpConnectTxCommand, protocol.AcmpDisconnectTxCommand,
		protocol.AcmpGetTxStateCommand, protocol.AcmpGetTxConnectionCommand:
		return pdu.TalkerEntityID
	default:
		return pdu.ListenerEntityID
	}
}

func (r *Responder) handleAcmp(pdu *protocol.Acmpdu) {
	if !pdu.MessageType.IsCommand() || !r.addressed(acmpTarget(pdu)) {
		return
	}
	if !r.accept(avdecc.FamilyAcmp, pdu.SequenceID) {
		return
	}

	resp := *pdu
	resp.MessageType = pdu.MessageType.Response()
	resp.Status = r.opts.AcmpStatus
	if resp.Status == protocol.AcmpStatusSuccess && pdu.MessageType == protocol.AcmpConnectRxCommand {
		resp.ConnectionCount = 1
	}

	r.acmp.Add(1)
	r.reply(avdecc.FamilyAcmp, func() error { return r.pi.SendAcmpResponse(&resp) })
}

func (r *Responder) handleAem(pdu *protocol.AemAecpdu) {
	if !r.addressed(pdu.TargetEntityID) || !r.accept(avdecc.FamilyAem, pdu.SequenceID) {
		return
	}

	resp := *pdu
	resp.MessageType = protocol.AecpAemResponse
	resp.Payload = append([]byte(nil), pdu.Payload...)

	stop := func() {}
	if r.opts.InProgress {
		interim := resp
		interim.Status = protocol.AemStatusInProgress
		r.sendInterim(&interim)
		if r.opts.Delay > 0 && r.opts.ProgressInterval > 0 {
			stop = r.keepAlive(&interim)
		}
	}

	resp.Status = r.opts.AemStatus
	r.aem.Add(1)
	r.reply(avdecc.FamilyAem, func() error {
		stop()
		return r.pi.SendAemAecpResponse(&resp)
	})
}

func (r *Responder) sendInterim(interim *protocol.AemAecpdu) {
	if err := r.pi.SendAemAecpResponse(interim); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Responder.sendInterim",
			"sequence_id": interim.SequenceID,
			"error":       err.Error(),
		}).Warn("Failed to send IN_PROGRESS response")
	}
}

// keepAlive resends interim every ProgressInterval until the returned stop
// function is called. stop returns once no further interim can be sent.
func (r *Responder) keepAlive(interim *protocol.AemAecpdu) func() {
	quit := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(r.opts.ProgressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				if r.closed.Load() {
					return
				}
				r.sendInterim(interim)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			<-exited
		})
	}
}

func (r *Responder) handleMvu(pdu *protocol.MvuAecpdu) {
	if !r.addressed(pdu.TargetEntityID) || !r.accept(avdecc.FamilyMvu, pdu.SequenceID) {
		return
	}

	resp := *pdu
	resp.MessageType = protocol.AecpVendorUniqueResponse
	resp.Status = r.opts.MvuStatus
	resp.Payload = append([]byte(nil), pdu.Payload...)

	r.mvu.Add(1)
	r.reply(avdecc.FamilyMvu, func() error { return r.pi.SendMvuAecpResponse(&resp) })
}
