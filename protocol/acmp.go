package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// AcmpControlDataLength is the control_data_length of every ACMPDU.
const AcmpControlDataLength = 44

// AcmpduLength is the encoded size of an ACMPDU.
const AcmpduLength = ControlHeaderLength + AcmpControlDataLength

// AcmpMessageType identifies an ACMP command or response.
type AcmpMessageType uint8

const (
	AcmpConnectTxCommand AcmpMessageType = iota
	AcmpConnectTxResponse
	AcmpDisconnectTxCommand
	AcmpDisconnectTxResponse
	AcmpGetTxStateCommand
	AcmpGetTxStateResponse
	AcmpConnectRxCommand
	AcmpConnectRxResponse
	AcmpDisconnectRxCommand
	AcmpDisconnectRxResponse
	AcmpGetRxStateCommand
	AcmpGetRxStateResponse
	AcmpGetTxConnectionCommand
	AcmpGetTxConnectionResponse
)

var acmpMessageTypeNames = map[AcmpMessageType]string{
	AcmpConnectTxCommand:        "CONNECT_TX_COMMAND",
	AcmpConnectTxResponse:       "CONNECT_TX_RESPONSE",
	AcmpDisconnectTxCommand:     "DISCONNECT_TX_COMMAND",
	AcmpDisconnectTxResponse:    "DISCONNECT_TX_RESPONSE",
	AcmpGetTxStateCommand:       "GET_TX_STATE_COMMAND",
	AcmpGetTxStateResponse:      "GET_TX_STATE_RESPONSE",
	AcmpConnectRxCommand:        "CONNECT_RX_COMMAND",
	AcmpConnectRxResponse:       "CONNECT_RX_RESPONSE",
	AcmpDisconnectRxCommand:     "DISCONNECT_RX_COMMAND",
	AcmpDisconnectRxResponse:    "DISCONNECT_RX_RESPONSE",
	AcmpGetRxStateCommand:       "GET_RX_STATE_COMMAND",
	AcmpGetRxStateResponse:      "GET_RX_STATE_RESPONSE",
	AcmpGetTxConnectionCommand:  "GET_TX_CONNECTION_COMMAND",
	AcmpGetTxConnectionResponse: "GET_TX_CONNECTION_RESPONSE",
}

func (t AcmpMessageType) String() string {
	if name, ok := acmpMessageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("AcmpMessageType(%d)", uint8(t))
}

// ParseAcmpMessageType looks up a message type by name. The match is case
// insensitive and the _COMMAND suffix may be omitted.
func ParseAcmpMessageType(name string) (AcmpMessageType, error) {
	want := strings.ToUpper(name)
	for t, n := range acmpMessageTypeNames {
		if n == want || (t.IsCommand() && strings.TrimSuffix(n, "_COMMAND") == want) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMessageType, name)
}

// IsCommand reports whether t is one of the defined command types.
func (t AcmpMessageType) IsCommand() bool {
	return t <= AcmpGetTxConnectionCommand && t%2 == 0
}

// IsResponse reports whether t is one of the defined response types.
func (t AcmpMessageType) IsResponse() bool {
	return t <= AcmpGetTxConnectionResponse && t%2 == 1
}

// Response returns the response type paired with command t.
func (t AcmpMessageType) Response() AcmpMessageType {
	return t | 1
}

// acmpTimeouts are the IEEE 1722.1 command timeouts.
var acmpTimeouts = map[AcmpMessageType]time.Duration{
	AcmpConnectTxCommand:       2000 * time.Millisecond,
	AcmpDisconnectTxCommand:    200 * time.Millisecond,
	AcmpGetTxStateCommand:      200 * time.Millisecond,
	AcmpConnectRxCommand:       4500 * time.Millisecond,
	AcmpDisconnectRxCommand:    500 * time.Millisecond,
	AcmpGetRxStateCommand:      200 * time.Millisecond,
	AcmpGetTxConnectionCommand: 200 * time.Millisecond,
}

// Timeout returns the standard response timeout for command t, or zero for
// a non-command.
func (t AcmpMessageType) Timeout() time.Duration {
	return acmpTimeouts[t]
}

// AcmpStatus is the status field of an ACMP response.
type AcmpStatus uint8

const (
	AcmpStatusSuccess                 AcmpStatus = 0
	AcmpStatusListenerUnknownID       AcmpStatus = 1
	AcmpStatusTalkerUnknownID         AcmpStatus = 2
	AcmpStatusTalkerDestMacFail       AcmpStatus = 3
	AcmpStatusTalkerNoStreamIndex     AcmpStatus = 4
	AcmpStatusTalkerNoBandwidth       AcmpStatus = 5
	AcmpStatusTalkerExclusive         AcmpStatus = 6
	AcmpStatusListenerTalkerTimeout   AcmpStatus = 7
	AcmpStatusListenerExclusive       AcmpStatus = 8
	AcmpStatusStateUnavailable        AcmpStatus = 9
	AcmpStatusNotConnected            AcmpStatus = 10
	AcmpStatusNoSuchConnection        AcmpStatus = 11
	AcmpStatusCouldNotSendMessage     AcmpStatus = 12
	AcmpStatusTalkerMisbehaving       AcmpStatus = 13
	AcmpStatusListenerMisbehaving     AcmpStatus = 14
	AcmpStatusControllerNotAuthorized AcmpStatus = 16
	AcmpStatusIncompatibleRequest     AcmpStatus = 17
	AcmpStatusNotSupported            AcmpStatus = 31
)

// Acmpdu is an ACMP command or response.
type Acmpdu struct {
	MessageType        AcmpMessageType
	Status             AcmpStatus
	StreamID           UniqueIdentifier
	ControllerEntityID UniqueIdentifier
	TalkerEntityID     UniqueIdentifier
	ListenerEntityID   UniqueIdentifier
	TalkerUniqueID     uint16
	ListenerUniqueID   uint16
	StreamDestAddress  MacAddress
	ConnectionCount    uint16
	SequenceID         uint16
	Flags              uint16
	StreamVlanID       uint16
}

// Serialize encodes the ACMPDU including its control header.
func (p *Acmpdu) Serialize() ([]byte, error) {
	if p.MessageType > 0x0F {
		return nil, fmt.Errorf("acmp message type %d out of range", p.MessageType)
	}

	data := make([]byte, AcmpduLength)
	h := ControlHeader{
		Subtype:           SubtypeACMP,
		MessageType:       uint8(p.MessageType),
		Status:            uint8(p.Status),
		ControlDataLength: AcmpControlDataLength,
		StreamID:          p.StreamID,
	}
	h.put(data)

	b := data[ControlHeaderLength:]
	binary.BigEndian.PutUint64(b[0:8], uint64(p.ControllerEntityID))
	binary.BigEndian.PutUint64(b[8:16], uint64(p.TalkerEntityID))
	binary.BigEndian.PutUint64(b[16:24], uint64(p.ListenerEntityID))
	binary.BigEndian.PutUint16(b[24:26], p.TalkerUniqueID)
	binary.BigEndian.PutUint16(b[26:28], p.ListenerUniqueID)
	copy(b[28:34], p.StreamDestAddress[:])
	binary.BigEndian.PutUint16(b[34:36], p.ConnectionCount)
	binary.BigEndian.PutUint16(b[36:38], p.SequenceID)
	binary.BigEndian.PutUint16(b[38:40], p.Flags)
	binary.BigEndian.PutUint16(b[40:42], p.StreamVlanID)
	// b[42:44] reserved

	return data, nil
}

// ParseAcmpdu decodes an ACMPDU. Trailing bytes, such as Ethernet padding,
// are ignored.
func ParseAcmpdu(data []byte) (*Acmpdu, error) {
	h, err := parseExpected(data, SubtypeACMP)
	if err != nil {
		return nil, err
	}
	if h.ControlDataLength < AcmpControlDataLength {
		return nil, fmt.Errorf("%w: acmp requires %d, got %d",
			ErrInvalidControlDataLength, AcmpControlDataLength, h.ControlDataLength)
	}

	b := data[ControlHeaderLength:]
	p := &Acmpdu{
		MessageType:        AcmpMessageType(h.MessageType),
		Status:             AcmpStatus(h.Status),
		StreamID:           h.StreamID,
		ControllerEntityID: UniqueIdentifier(binary.BigEndian.Uint64(b[0:8])),
		TalkerEntityID:     UniqueIdentifier(binary.BigEndian.Uint64(b[8:16])),
		ListenerEntityID:   UniqueIdentifier(binary.BigEndian.Uint64(b[16:24])),
		TalkerUniqueID:     binary.BigEndian.Uint16(b[24:26]),
		ListenerUniqueID:   binary.BigEndian.Uint16(b[26:28]),
		ConnectionCount:    binary.BigEndian.Uint16(b[34:36]),
		SequenceID:         binary.BigEndian.Uint16(b[36:38]),
		Flags:              binary.BigEndian.Uint16(b[38:40]),
		StreamVlanID:       binary.BigEndian.Uint16(b[40:42]),
	}
	copy(p.StreamDestAddress[:], b[28:34])

	return p, nil
}
