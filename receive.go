package avdecc

import (
	"net"

	"github.com/opd-ai/avdecc/protocol"
	"github.com/sirupsen/logrus"
)

// handleAcmp processes every ACMP PDU the transport receives. Responses
// resolve the pending ACMP command they answer; anything that matches
// nothing is dropped.
func (pi *ProtocolInterface) handleAcmp(data []byte, addr net.Addr) error {
	pdu, err := protocol.ParseAcmpdu(data)
	if err != nil {
		return err
	}

	notify(pi, "acmp_message", func() func(*protocol.Acmpdu) { return pi.acmpMessageCallback }, pdu)

	if !pdu.MessageType.IsResponse() {
		return nil
	}
	key := CorrelationKey{EntityID: pdu.ControllerEntityID, SequenceID: pdu.SequenceID}
	pi.acmp.Resolve(key, pdu, nil)
	return nil
}

// handleAecp routes AECP PDUs by message type. Address access and AVC
// messages are not handled.
func (pi *ProtocolInterface) handleAecp(data []byte, addr net.Addr) error {
	header, err := protocol.ParseAecpHeader(data)
	if err != nil {
		return err
	}

	switch header.MessageType {
	case protocol.AecpAemCommand, protocol.AecpAemResponse:
		pdu, err := protocol.ParseAemAecpdu(data)
		if err != nil {
			return err
		}
		pi.handleAem(pdu)

	case protocol.AecpVendorUniqueCommand, protocol.AecpVendorUniqueResponse:
		if !protocol.IsMvu(data) {
			return nil
		}
		pdu, err := protocol.ParseMvuAecpdu(data)
		if err != nil {
			return err
		}
		pi.handleMvu(pdu)

	default:
		logrus.WithFields(logrus.Fields{
			"function":     "ProtocolInterface.handleAecp",
			"message_type": header.MessageType.String(),
			"addr":         addr,
		}).Debug("Ignoring unsupported AECP message")
	}
	return nil
}

func (pi *ProtocolInterface) handleAem(pdu *protocol.AemAecpdu) {
	if pdu.MessageType == protocol.AecpAemCommand {
		notify(pi, "aecp_command", func() func(*protocol.AemAecpdu) { return pi.aecpCommandCallback }, pdu)
		return
	}

	if pdu.Unsolicited {
		notify(pi, "aecp_unsolicited_response", func() func(*protocol.AemAecpdu) { return pi.unsolicitedResponseCallback }, pdu)
		return
	}

	key := CorrelationKey{EntityID: pdu.ControllerEntityID, SequenceID: pdu.SequenceID}
	if pdu.Status == protocol.AemStatusInProgress {
		// The entity is still working; restart the command's deadline.
		if pi.aem.Extend(key, pi.options.aemTimeout()) {
			logrus.WithFields(logrus.Fields{
				"function":     "ProtocolInterface.handleAem",
				"key":          key.String(),
				"command_type": uint16(pdu.CommandType),
			}).Debug("Command in progress, deadline extended")
		}
		return
	}

	pi.aem.Resolve(key, pdu, nil)
}

func (pi *ProtocolInterface) handleMvu(pdu *protocol.MvuAecpdu) {
	if pdu.MessageType == protocol.AecpVendorUniqueCommand {
		notify(pi, "mvu_command", func() func(*protocol.MvuAecpdu) { return pi.mvuCommandCallback }, pdu)
		return
	}

	key := CorrelationKey{EntityID: pdu.ControllerEntityID, SequenceID: pdu.SequenceID}
	pi.mvu.Resolve(key, pdu, nil)
}
