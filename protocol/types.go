package protocol

import (
	"fmt"
	"net"
	"strconv"
)

// UniqueIdentifier is an EUI-64 identifying an entity or a stream.
type UniqueIdentifier uint64

const (
	// NullUniqueIdentifier is the all-zero identifier.
	NullUniqueIdentifier UniqueIdentifier = 0
	// UninitializedUniqueIdentifier is the all-ones identifier.
	UninitializedUniqueIdentifier UniqueIdentifier = 0xFFFFFFFFFFFFFFFF
)

// IsValid reports whether id is neither the null nor the uninitialized value.
func (id UniqueIdentifier) IsValid() bool {
	return id != NullUniqueIdentifier && id != UninitializedUniqueIdentifier
}

// String formats id the way AVDECC tools print entity IDs.
func (id UniqueIdentifier) String() string {
	return fmt.Sprintf("0x%016X", uint64(id))
}

// ParseUniqueIdentifier parses a hexadecimal identifier with or without a
// 0x prefix.
func ParseUniqueIdentifier(s string) (UniqueIdentifier, error) {
	v, err := strconv.ParseUint(trimHexPrefix(s), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid unique identifier %q: %w", s, err)
	}
	return UniqueIdentifier(v), nil
}

func trimHexPrefix(s string) string {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// MacAddress is a 48-bit Ethernet address carried inside a PDU.
type MacAddress [6]byte

// String returns the colon-separated form.
func (m MacAddress) String() string {
	return net.HardwareAddr(m[:]).String()
}

// HardwareAddr returns a copy of m as a net.HardwareAddr.
func (m MacAddress) HardwareAddr() net.HardwareAddr {
	out := make(net.HardwareAddr, 6)
	copy(out, m[:])
	return out
}

// MacAddressFrom converts a 6-byte hardware address.
func MacAddressFrom(hw net.HardwareAddr) (MacAddress, error) {
	var m MacAddress
	if len(hw) != len(m) {
		return m, fmt.Errorf("%w: %q", ErrInvalidHardwareAddr, hw)
	}
	copy(m[:], hw)
	return m, nil
}

// Subtype identifies the AVTP control protocol of a PDU.
type Subtype uint8

const (
	SubtypeADP  Subtype = 0x7A
	SubtypeAECP Subtype = 0x7B
	SubtypeACMP Subtype = 0x7C
)

func (s Subtype) String() string {
	switch s {
	case SubtypeADP:
		return "ADP"
	case SubtypeAECP:
		return "AECP"
	case SubtypeACMP:
		return "ACMP"
	default:
		return fmt.Sprintf("Subtype(0x%02X)", uint8(s))
	}
}

// PeekSubtype returns the subtype of a control PDU without decoding it.
func PeekSubtype(data []byte) (Subtype, error) {
	if len(data) < 1 {
		return 0, ErrPacketTooShort
	}
	return Subtype(data[0] & 0x7F), nil
}
