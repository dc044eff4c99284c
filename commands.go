package avdecc

import (
	"context"
	"fmt"
	"time"

	"github.com/opd-ai/avdecc/pending"
	"github.com/opd-ai/avdecc/protocol"
	"github.com/sirupsen/logrus"
)

// SendAcmpCommand sends an ACMP command and arranges for onResult to be
// called exactly once with the matching response or a timeout. The PDU's
// ControllerEntityID and SequenceID form the correlation key.
//
// A non-nil return means onResult will never be called.
//
//export AvdeccSendAcmpCommand
func (pi *ProtocolInterface) SendAcmpCommand(pdu *protocol.Acmpdu, onResult func(response *protocol.Acmpdu, err error)) error {
	if pdu == nil {
		return newCommandError(FamilyAcmp, opValidate, CorrelationKey{}, ErrInvalidParameters)
	}
	key := CorrelationKey{EntityID: pdu.ControllerEntityID, SequenceID: pdu.SequenceID}
	if !pdu.MessageType.IsCommand() {
		return newCommandError(FamilyAcmp, opValidate, key,
			fmt.Errorf("%w: %s is not a command", ErrInvalidParameters, pdu.MessageType))
	}

	frame, err := pdu.Serialize()
	if err != nil {
		return newCommandError(FamilyAcmp, opValidate, key, fmt.Errorf("%w: %w", ErrInvalidParameters, err))
	}

	// A response with the right key but the wrong type answers some other
	// command and must not complete this one.
	expected := pdu.MessageType.Response()
	accept := func(resp *protocol.Acmpdu) bool {
		return resp != nil && resp.MessageType == expected
	}
	return sendCommand(pi, FamilyAcmp, pi.acmp, key, pi.options.acmpTimeout(pdu.MessageType), accept, frame, onResult)
}

// SendAemAecpCommand sends an AEM command; see SendAcmpCommand.
//
//export AvdeccSendAemAecpCommand
func (pi *ProtocolInterface) SendAemAecpCommand(pdu *protocol.AemAecpdu, onResult func(response *protocol.AemAecpdu, err error)) error {
	if pdu == nil {
		return newCommandError(FamilyAem, opValidate, CorrelationKey{}, ErrInvalidParameters)
	}
	key := CorrelationKey{EntityID: pdu.ControllerEntityID, SequenceID: pdu.SequenceID}
	if pdu.MessageType != protocol.AecpAemCommand {
		return newCommandError(FamilyAem, opValidate, key,
			fmt.Errorf("%w: %s is not a command", ErrInvalidParameters, pdu.MessageType))
	}

	frame, err := pdu.Serialize()
	if err != nil {
		return newCommandError(FamilyAem, opValidate, key, fmt.Errorf("%w: %w", ErrInvalidParameters, err))
	}

	return sendCommand(pi, FamilyAem, pi.aem, key, pi.options.aemTimeout(), nil, frame, onResult)
}

// SendMvuAecpCommand sends a Milan vendor-unique command; see
// SendAcmpCommand.
//
//export AvdeccSendMvuAecpCommand
func (pi *ProtocolInterface) SendMvuAecpCommand(pdu *protocol.MvuAecpdu, onResult func(response *protocol.MvuAecpdu, err error)) error {
	if pdu == nil {
		return newCommandError(FamilyMvu, opValidate, CorrelationKey{}, ErrInvalidParameters)
	}
	key := CorrelationKey{EntityID: pdu.ControllerEntityID, SequenceID: pdu.SequenceID}
	if pdu.MessageType != protocol.AecpVendorUniqueCommand {
		return newCommandError(FamilyMvu, opValidate, key,
			fmt.Errorf("%w: %s is not a command", ErrInvalidParameters, pdu.MessageType))
	}

	frame, err := pdu.Serialize()
	if err != nil {
		return newCommandError(FamilyMvu, opValidate, key, fmt.Errorf("%w: %w", ErrInvalidParameters, err))
	}

	return sendCommand(pi, FamilyMvu, pi.mvu, key, pi.options.mvuTimeout(), nil, frame, onResult)
}

// sendCommand correlates and transmits one command frame following the
// configured registration order. A non-nil accept restricts which responses
// complete the command.
func sendCommand[R any](pi *ProtocolInterface, family Family, table *pending.Table[CorrelationKey, R],
	key CorrelationKey, timeout time.Duration, accept func(R) bool, frame []byte, onResult func(R, error),
) error {
	if pi.closed.Load() {
		return newCommandError(family, opSend, key, ErrInvalidProtocolInterfaceHandle)
	}
	if onResult == nil {
		return newCommandError(family, opRegister, key, classify(pending.ErrNilCallback))
	}

	cb := func(response R, err error) {
		onResult(response, resultError(err))
	}

	switch pi.options.Order {
	case SendBeforeRegister:
		if !key.Valid() {
			return newCommandError(family, opRegister, key,
				classify(fmt.Errorf("%w: %v", pending.ErrInvalidKey, key)))
		}
		if err := pi.transmit(family, key, frame); err != nil {
			return err
		}
		if err := table.TryRegisterMatching(key, cb, timeout, accept); err != nil {
			return newCommandError(family, opRegister, key, classify(err))
		}
		return nil

	default:
		if err := table.TryRegisterMatching(key, cb, timeout, accept); err != nil {
			return newCommandError(family, opRegister, key, classify(err))
		}
		if err := pi.transmit(family, key, frame); err != nil {
			if !table.Cancel(key) {
				// The response raced the failing send and was delivered.
				logrus.WithFields(logrus.Fields{
					"function": "sendCommand",
					"family":   family,
					"key":      key.String(),
					"error":    err.Error(),
				}).Warn("Send failed after the command was already answered")
				return nil
			}
			return err
		}
		return nil
	}
}

// transmit hands a frame to the transport, reporting failures to the
// transport error observer.
func (pi *ProtocolInterface) transmit(family Family, key CorrelationKey, frame []byte) error {
	if err := pi.transport.Send(frame, nil); err != nil {
		cerr := newCommandError(family, opSend, key, err)
		logrus.WithFields(logrus.Fields{
			"function": "ProtocolInterface.transmit",
			"family":   family,
			"key":      key.String(),
			"error":    err.Error(),
		}).Warn("Transport rejected frame")
		notify(pi, "transport_error", func() func(error) { return pi.transportErrorCallback }, error(cerr))
		return cerr
	}
	return nil
}

type commandResult[R any] struct {
	response R
	err      error
}

// awaitCommand sends with send and blocks until the result arrives, ctx is
// done, or the interface is closed. On ctx expiry the pending entry is
// cancelled.
func awaitCommand[R any](ctx context.Context, pi *ProtocolInterface, table *pending.Table[CorrelationKey, R],
	key CorrelationKey, send func(func(R, error)) error,
) (R, error) {
	var zero R
	results := make(chan commandResult[R], 1)

	err := send(func(response R, err error) {
		results <- commandResult[R]{response: response, err: err}
	})
	if err != nil {
		return zero, err
	}

	select {
	case res := <-results:
		return res.response, res.err
	case <-pi.done:
		return zero, ErrInvalidProtocolInterfaceHandle
	case <-ctx.Done():
		if table.Cancel(key) {
			return zero, ctx.Err()
		}
		// Already taken by a resolve or expiry; its result is on the way.
		select {
		case res := <-results:
			return res.response, res.err
		case <-pi.done:
			return zero, ErrInvalidProtocolInterfaceHandle
		}
	}
}

// AcmpCommand sends an ACMP command and waits for its response.
func (pi *ProtocolInterface) AcmpCommand(ctx context.Context, pdu *protocol.Acmpdu) (*protocol.Acmpdu, error) {
	if pdu == nil {
		return nil, newCommandError(FamilyAcmp, opValidate, CorrelationKey{}, ErrInvalidParameters)
	}
	key := CorrelationKey{EntityID: pdu.ControllerEntityID, SequenceID: pdu.SequenceID}
	return awaitCommand(ctx, pi, pi.acmp, key, func(cb func(*protocol.Acmpdu, error)) error {
		return pi.SendAcmpCommand(pdu, cb)
	})
}

// AemAecpCommand sends an AEM command and waits for its final response.
func (pi *ProtocolInterface) AemAecpCommand(ctx context.Context, pdu *protocol.AemAecpdu) (*protocol.AemAecpdu, error) {
	if pdu == nil {
		return nil, newCommandError(FamilyAem, opValidate, CorrelationKey{}, ErrInvalidParameters)
	}
	key := CorrelationKey{EntityID: pdu.ControllerEntityID, SequenceID: pdu.SequenceID}
	return awaitCommand(ctx, pi, pi.aem, key, func(cb func(*protocol.AemAecpdu, error)) error {
		return pi.SendAemAecpCommand(pdu, cb)
	})
}

// MvuAecpCommand sends a Milan vendor-unique command and waits for its
// response.
func (pi *ProtocolInterface) MvuAecpCommand(ctx context.Context, pdu *protocol.MvuAecpdu) (*protocol.MvuAecpdu, error) {
	if pdu == nil {
		return nil, newCommandError(FamilyMvu, opValidate, CorrelationKey{}, ErrInvalidParameters)
	}
	key := CorrelationKey{EntityID: pdu.ControllerEntityID, SequenceID: pdu.SequenceID}
	return awaitCommand(ctx, pi, pi.mvu, key, func(cb func(*protocol.MvuAecpdu, error)) error {
		return pi.SendMvuAecpCommand(pdu, cb)
	})
}

// sendMessage transmits a frame that expects no correlated answer.
func (pi *ProtocolInterface) sendMessage(family Family, key CorrelationKey, frame []byte, err error) error {
	if err != nil {
		return newCommandError(family, opValidate, key, fmt.Errorf("%w: %w", ErrInvalidParameters, err))
	}
	if pi.closed.Load() {
		return newCommandError(family, opSend, key, ErrInvalidProtocolInterfaceHandle)
	}
	return pi.transmit(family, key, frame)
}

// SendAcmpMessage sends any ACMP PDU without tracking a response.
func (pi *ProtocolInterface) SendAcmpMessage(pdu *protocol.Acmpdu) error {
	if pdu == nil {
		return newCommandError(FamilyAcmp, opValidate, CorrelationKey{}, ErrInvalidParameters)
	}
	frame, err := pdu.Serialize()
	return pi.sendMessage(FamilyAcmp, CorrelationKey{EntityID: pdu.ControllerEntityID, SequenceID: pdu.SequenceID}, frame, err)
}

// SendAcmpResponse sends an ACMP response.
func (pi *ProtocolInterface) SendAcmpResponse(pdu *protocol.Acmpdu) error {
	if pdu != nil && !pdu.MessageType.IsResponse() {
		return newCommandError(FamilyAcmp, opValidate, CorrelationKey{},
			fmt.Errorf("%w: %s is not a response", ErrInvalidParameters, pdu.MessageType))
	}
	return pi.SendAcmpMessage(pdu)
}

// SendAemAecpResponse sends an AEM response, solicited or not.
func (pi *ProtocolInterface) SendAemAecpResponse(pdu *protocol.AemAecpdu) error {
	if pdu == nil {
		return newCommandError(FamilyAem, opValidate, CorrelationKey{}, ErrInvalidParameters)
	}
	key := CorrelationKey{EntityID: pdu.ControllerEntityID, SequenceID: pdu.SequenceID}
	if pdu.MessageType != protocol.AecpAemResponse {
		return newCommandError(FamilyAem, opValidate, key,
			fmt.Errorf("%w: %s is not a response", ErrInvalidParameters, pdu.MessageType))
	}
	frame, err := pdu.Serialize()
	return pi.sendMessage(FamilyAem, key, frame, err)
}

// SendMvuAecpResponse sends a Milan vendor-unique response.
func (pi *ProtocolInterface) SendMvuAecpResponse(pdu *protocol.MvuAecpdu) error {
	if pdu == nil {
		return newCommandError(FamilyMvu, opValidate, CorrelationKey{}, ErrInvalidParameters)
	}
	key := CorrelationKey{EntityID: pdu.ControllerEntityID, SequenceID: pdu.SequenceID}
	if pdu.MessageType != protocol.AecpVendorUniqueResponse {
		return newCommandError(FamilyMvu, opValidate, key,
			fmt.Errorf("%w: %s is not a response", ErrInvalidParameters, pdu.MessageType))
	}
	frame, err := pdu.Serialize()
	return pi.sendMessage(FamilyMvu, key, frame, err)
}
