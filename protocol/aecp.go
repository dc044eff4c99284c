package protocol

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// aecpCommonLength covers controller_entity_id and sequence_id.
	aecpCommonLength = 10

	// AecpMaxControlDataLength is the largest AECP control_data_length.
	AecpMaxControlDataLength = 524

	// AemMaxPayloadLength is the largest AEM command specific data.
	AemMaxPayloadLength = AecpMaxControlDataLength - aecpCommonLength - 2

	// MvuMaxPayloadLength is the largest MVU command specific data.
	MvuMaxPayloadLength = AecpMaxControlDataLength - aecpCommonLength - 6 - 2

	// AecpCommandTimeout is the IEEE 1722.1 AECP response timeout.
	AecpCommandTimeout = 250 * time.Millisecond
)

// MvuProtocolIdentifier is the Milan vendor-unique protocol identifier
// (OUI-36 00-1B-C5-0A-C plus 0x100).
var MvuProtocolIdentifier = [6]byte{0x00, 0x1B, 0xC5, 0x0A, 0xC1, 0x00}

// AecpMessageType identifies an AECP command or response.
type AecpMessageType uint8

const (
	AecpAemCommand            AecpMessageType = 0
	AecpAemResponse           AecpMessageType = 1
	AecpAddressAccessCommand  AecpMessageType = 2
	AecpAddressAccessResponse AecpMessageType = 3
	AecpAvcCommand            AecpMessageType = 4
	AecpAvcResponse           AecpMessageType = 5
	AecpVendorUniqueCommand   AecpMessageType = 6
	AecpVendorUniqueResponse  AecpMessageType = 7
)

func (t AecpMessageType) String() string {
	switch t {
	case AecpAemCommand:
		return "AEM_COMMAND"
	case AecpAemResponse:
		return "AEM_RESPONSE"
	case AecpAddressAccessCommand:
		return "ADDRESS_ACCESS_COMMAND"
	case AecpAddressAccessResponse:
		return "ADDRESS_ACCESS_RESPONSE"
	case AecpAvcCommand:
		return "AVC_COMMAND"
	case AecpAvcResponse:
		return "AVC_RESPONSE"
	case AecpVendorUniqueCommand:
		return "VENDOR_UNIQUE_COMMAND"
	case AecpVendorUniqueResponse:
		return "VENDOR_UNIQUE_RESPONSE"
	default:
		return fmt.Sprintf("AecpMessageType(%d)", uint8(t))
	}
}

// IsResponse reports whether t is a response type.
func (t AecpMessageType) IsResponse() bool {
	return t%2 == 1
}

// AemStatus is the status field of an AEM response.
type AemStatus uint8

const (
	AemStatusSuccess                AemStatus = 0
	AemStatusNotImplemented         AemStatus = 1
	AemStatusNoSuchDescriptor       AemStatus = 2
	AemStatusEntityLocked           AemStatus = 3
	AemStatusEntityAcquired         AemStatus = 4
	AemStatusNotAuthenticated       AemStatus = 5
	AemStatusAuthenticationDisabled AemStatus = 6
	AemStatusBadArguments           AemStatus = 7
	AemStatusNoResources            AemStatus = 8
	AemStatusInProgress             AemStatus = 9
	AemStatusEntityMisbehaving      AemStatus = 10
	AemStatusNotSupported           AemStatus = 11
	AemStatusStreamIsRunning        AemStatus = 12
)

// AemCommandType identifies an AEM command.
type AemCommandType uint16

const (
	AemCommandAcquireEntity                     AemCommandType = 0x0000
	AemCommandLockEntity                        AemCommandType = 0x0001
	AemCommandEntityAvailable                   AemCommandType = 0x0002
	AemCommandControllerAvailable               AemCommandType = 0x0003
	AemCommandReadDescriptor                    AemCommandType = 0x0004
	AemCommandWriteDescriptor                   AemCommandType = 0x0005
	AemCommandSetConfiguration                  AemCommandType = 0x0006
	AemCommandGetConfiguration                  AemCommandType = 0x0007
	AemCommandSetStreamFormat                   AemCommandType = 0x0008
	AemCommandGetStreamFormat                   AemCommandType = 0x0009
	AemCommandSetName                           AemCommandType = 0x0010
	AemCommandGetName                           AemCommandType = 0x0011
	AemCommandStartStreaming                    AemCommandType = 0x0022
	AemCommandStopStreaming                     AemCommandType = 0x0023
	AemCommandRegisterUnsolicitedNotification   AemCommandType = 0x0024
	AemCommandDeregisterUnsolicitedNotification AemCommandType = 0x0025
	AemCommandGetCounters                       AemCommandType = 0x0029
)

// MvuCommandType identifies a Milan vendor-unique command.
type MvuCommandType uint16

const (
	MvuCommandGetMilanInfo           MvuCommandType = 0x0000
	MvuCommandSetSystemUniqueID      MvuCommandType = 0x0001
	MvuCommandGetSystemUniqueID      MvuCommandType = 0x0002
	MvuCommandSetMediaClockReference MvuCommandType = 0x0003
	MvuCommandGetMediaClockReference MvuCommandType = 0x0004
)

// AecpHeader holds the fields common to every AECPDU.
type AecpHeader struct {
	MessageType        AecpMessageType
	Status             uint8
	TargetEntityID     UniqueIdentifier
	ControllerEntityID UniqueIdentifier
	SequenceID         uint16
}

// ParseAecpHeader decodes the common AECPDU fields. It is used by the
// receive path to decide which decoder applies.
func ParseAecpHeader(data []byte) (AecpHeader, error) {
	h, err := parseExpected(data, SubtypeAECP)
	if err != nil {
		return AecpHeader{}, err
	}
	if h.ControlDataLength < aecpCommonLength {
		return AecpHeader{}, fmt.Errorf("%w: aecp requires at least %d, got %d",
			ErrInvalidControlDataLength, aecpCommonLength, h.ControlDataLength)
	}

	b := data[ControlHeaderLength:]
	return AecpHeader{
		MessageType:        AecpMessageType(h.MessageType),
		Status:             h.Status,
		TargetEntityID:     h.StreamID,
		ControllerEntityID: UniqueIdentifier(binary.BigEndian.Uint64(b[0:8])),
		SequenceID:         binary.BigEndian.Uint16(b[8:10]),
	}, nil
}

// IsMvu reports whether a vendor-unique AECPDU carries the Milan protocol
// identifier.
func IsMvu(data []byte) bool {
	const offset = ControlHeaderLength + aecpCommonLength
	if len(data) < offset+len(MvuProtocolIdentifier) {
		return false
	}
	return [6]byte(data[offset:offset+6]) == MvuProtocolIdentifier
}

// putAecpCommon writes the control header and common AECP fields.
func putAecpCommon(data []byte, messageType AecpMessageType, status uint8, target, controller UniqueIdentifier, sequenceID uint16) {
	h := ControlHeader{
		Subtype:           SubtypeAECP,
		MessageType:       uint8(messageType),
		Status:            status,
		ControlDataLength: uint16(len(data) - ControlHeaderLength),
		StreamID:          target,
	}
	h.put(data)

	b := data[ControlHeaderLength:]
	binary.BigEndian.PutUint64(b[0:8], uint64(controller))
	binary.BigEndian.PutUint16(b[8:10], sequenceID)
}

// AemAecpdu is an AEM command or response.
type AemAecpdu struct {
	MessageType        AecpMessageType
	Status             AemStatus
	TargetEntityID     UniqueIdentifier
	ControllerEntityID UniqueIdentifier
	SequenceID         uint16
	Unsolicited        bool
	CommandType        AemCommandType
	Payload            []byte
}

// Serialize encodes the AEM AECPDU including its control header.
func (p *AemAecpdu) Serialize() ([]byte, error) {
	if p.MessageType != AecpAemCommand && p.MessageType != AecpAemResponse {
		return nil, fmt.Errorf("%w: %s", ErrNotAemMessage, p.MessageType)
	}
	if len(p.Payload) > AemMaxPayloadLength {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(p.Payload), AemMaxPayloadLength)
	}

	data := make([]byte, ControlHeaderLength+aecpCommonLength+2+len(p.Payload))
	putAecpCommon(data, p.MessageType, uint8(p.Status), p.TargetEntityID, p.ControllerEntityID, p.SequenceID)

	off := ControlHeaderLength + aecpCommonLength
	commandType := uint16(p.CommandType) & 0x7FFF
	if p.Unsolicited {
		commandType |= 0x8000
	}
	binary.BigEndian.PutUint16(data[off:off+2], commandType)
	copy(data[off+2:], p.Payload)

	return data, nil
}

// ParseAemAecpdu decodes an AEM AECPDU.
func ParseAemAecpdu(data []byte) (*AemAecpdu, error) {
	common, err := ParseAecpHeader(data)
	if err != nil {
		return nil, err
	}
	if common.MessageType != AecpAemCommand && common.MessageType != AecpAemResponse {
		return nil, fmt.Errorf("%w: %s", ErrNotAemMessage, common.MessageType)
	}

	cdl := int(binary.BigEndian.Uint16(data[2:4]) & maxControlDataLength)
	if cdl < aecpCommonLength+2 || cdl > AecpMaxControlDataLength {
		return nil, fmt.Errorf("%w: aem control data length %d", ErrInvalidControlDataLength, cdl)
	}

	off := ControlHeaderLength + aecpCommonLength
	end := ControlHeaderLength + cdl
	commandType := binary.BigEndian.Uint16(data[off : off+2])

	p := &AemAecpdu{
		MessageType:        common.MessageType,
		Status:             AemStatus(common.Status),
		TargetEntityID:     common.TargetEntityID,
		ControllerEntityID: common.ControllerEntityID,
		SequenceID:         common.SequenceID,
		Unsolicited:        commandType&0x8000 != 0,
		CommandType:        AemCommandType(commandType & 0x7FFF),
		Payload:            make([]byte, end-off-2),
	}
	copy(p.Payload, data[off+2:end])

	return p, nil
}

// MvuAecpdu is a Milan vendor-unique command or response.
type MvuAecpdu struct {
	MessageType        AecpMessageType
	Status             uint8
	TargetEntityID     UniqueIdentifier
	ControllerEntityID UniqueIdentifier
	SequenceID         uint16
	CommandType        MvuCommandType
	Payload            []byte
}

// Serialize encodes the MVU AECPDU including its control header.
func (p *MvuAecpdu) Serialize() ([]byte, error) {
	if p.MessageType != AecpVendorUniqueCommand && p.MessageType != AecpVendorUniqueResponse {
		return nil, fmt.Errorf("%w: %s", ErrNotMvuMessage, p.MessageType)
	}
	if len(p.Payload) > MvuMaxPayloadLength {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(p.Payload), MvuMaxPayloadLength)
	}

	data := make([]byte, ControlHeaderLength+aecpCommonLength+6+2+len(p.Payload))
	putAecpCommon(data, p.MessageType, p.Status, p.TargetEntityID, p.ControllerEntityID, p.SequenceID)

	off := ControlHeaderLength + aecpCommonLength
	copy(data[off:off+6], MvuProtocolIdentifier[:])
	binary.BigEndian.PutUint16(data[off+6:off+8], uint16(p.CommandType)&0x7FFF)
	copy(data[off+8:], p.Payload)

	return data, nil
}

// ParseMvuAecpdu decodes a Milan vendor-unique AECPDU.
func ParseMvuAecpdu(data []byte) (*MvuAecpdu, error) {
	common, err := ParseAecpHeader(data)
	if err != nil {
		return nil, err
	}
	if common.MessageType != AecpVendorUniqueCommand && common.MessageType != AecpVendorUniqueResponse {
		return nil, fmt.Errorf("%w: %s", ErrNotMvuMessage, common.MessageType)
	}

	cdl := int(binary.BigEndian.Uint16(data[2:4]) & maxControlDataLength)
	if cdl < aecpCommonLength+8 || cdl > AecpMaxControlDataLength {
		return nil, fmt.Errorf("%w: mvu control data length %d", ErrInvalidControlDataLength, cdl)
	}
	if !IsMvu(data) {
		return nil, fmt.Errorf("%w: protocol identifier % X", ErrNotMvuMessage,
			data[ControlHeaderLength+aecpCommonLength:ControlHeaderLength+aecpCommonLength+6])
	}

	off := ControlHeaderLength + aecpCommonLength + 6
	end := ControlHeaderLength + cdl

	p := &MvuAecpdu{
		MessageType:        common.MessageType,
		Status:             common.Status,
		TargetEntityID:     common.TargetEntityID,
		ControllerEntityID: common.ControllerEntityID,
		SequenceID:         common.SequenceID,
		CommandType:        MvuCommandType(binary.BigEndian.Uint16(data[off:off+2]) & 0x7FFF),
		Payload:            make([]byte, end-off-2),
	}
	copy(p.Payload, data[off+2:end])

	return p, nil
}
