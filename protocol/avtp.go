package protocol

import (
	"encoding/binary"
	"fmt"
)

const (
	// ControlHeaderLength is the size of the AVTP control header.
	ControlHeaderLength = 12

	// maxControlDataLength is the largest value of the 11-bit field.
	maxControlDataLength = 0x7FF
)

// ControlHeader is the AVTP control header shared by ADP, AECP and ACMP.
type ControlHeader struct {
	Subtype           Subtype
	MessageType       uint8  // 4 bits
	Status            uint8  // 5 bits
	ControlDataLength uint16 // 11 bits, bytes following StreamID
	StreamID          UniqueIdentifier
}

// put writes h into the first ControlHeaderLength bytes of b.
func (h *ControlHeader) put(b []byte) {
	b[0] = 0x80 | byte(h.Subtype&0x7F) // cd=1
	b[1] = h.MessageType & 0x0F         // sv=0, version=0
	binary.BigEndian.PutUint16(b[2:4], uint16(h.Status&0x1F)<<11|h.ControlDataLength&maxControlDataLength)
	binary.BigEndian.PutUint64(b[4:12], uint64(h.StreamID))
}

// ParseControlHeader decodes the control header at the start of data and
// checks that data holds at least ControlDataLength bytes after it.
func ParseControlHeader(data []byte) (ControlHeader, error) {
	if len(data) < ControlHeaderLength {
		return ControlHeader{}, ErrPacketTooShort
	}

	statusAndLength := binary.BigEndian.Uint16(data[2:4])
	h := ControlHeader{
		Subtype:           Subtype(data[0] & 0x7F),
		MessageType:       data[1] & 0x0F,
		Status:            uint8(statusAndLength >> 11),
		ControlDataLength: statusAndLength & maxControlDataLength,
		StreamID:          UniqueIdentifier(binary.BigEndian.Uint64(data[4:12])),
	}

	if len(data) < ControlHeaderLength+int(h.ControlDataLength) {
		return ControlHeader{}, fmt.Errorf("%w: control data length %d, have %d bytes",
			ErrPacketTooShort, h.ControlDataLength, len(data)-ControlHeaderLength)
	}
	return h, nil
}

// parseExpected decodes the header and verifies the subtype.
func parseExpected(data []byte, subtype Subtype) (ControlHeader, error) {
	h, err := ParseControlHeader(data)
	if err != nil {
		return h, err
	}
	if h.Subtype != subtype {
		return h, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedSubtype, h.Subtype, subtype)
	}
	return h, nil
}
