package protocol

import "errors"

var (
	// ErrPacketTooShort indicates data shorter than the fixed fields require
	ErrPacketTooShort = errors.New("packet too short")

	// ErrUnexpectedSubtype indicates a control header with the wrong AVTP subtype
	ErrUnexpectedSubtype = errors.New("unexpected AVTP subtype")

	// ErrInvalidControlDataLength indicates a control_data_length that does
	// not match the message
	ErrInvalidControlDataLength = errors.New("invalid control data length")

	// ErrPayloadTooLarge indicates a command payload beyond the AECP limit
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrNotAemMessage indicates an AECPDU that is not an AEM command or response
	ErrNotAemMessage = errors.New("not an AEM message")

	// ErrNotMvuMessage indicates a vendor-unique AECPDU with a foreign protocol identifier
	ErrNotMvuMessage = errors.New("not a Milan vendor-unique message")

	// ErrUnsupportedEtherType indicates a frame that does not carry AVTP
	ErrUnsupportedEtherType = errors.New("unsupported EtherType")

	// ErrUnknownMessageType indicates a message type name that is not defined
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrInvalidHardwareAddr indicates a MAC address that is not 6 bytes long
	ErrInvalidHardwareAddr = errors.New("invalid hardware address")
)
