package protocol

import (
	"fmt"
	"net"

	"github.com/mdlayher/ethernet"
)

// EtherType is the IEEE 1722 AVTP EtherType.
const EtherType ethernet.EtherType = 0x22F0

// MulticastMAC is the AVDECC destination address used for ADP and ACMP
// (91:E0:F0:01:00:00).
var MulticastMAC = net.HardwareAddr{0x91, 0xE0, 0xF0, 0x01, 0x00, 0x00}

// EncodeFrame wraps a control PDU in an Ethernet frame. Payloads shorter
// than the Ethernet minimum are padded by the encoder; decoders rely on
// control_data_length, not on the frame size.
func EncodeFrame(dst, src net.HardwareAddr, pdu []byte) ([]byte, error) {
	if len(dst) != 6 {
		return nil, fmt.Errorf("%w: destination %q", ErrInvalidHardwareAddr, dst)
	}
	if len(src) != 6 {
		return nil, fmt.Errorf("%w: source %q", ErrInvalidHardwareAddr, src)
	}
	if len(pdu) < ControlHeaderLength {
		return nil, ErrPacketTooShort
	}

	f := &ethernet.Frame{
		Destination: dst,
		Source:      src,
		EtherType:   EtherType,
		Payload:     pdu,
	}
	return f.MarshalBinary()
}

// DecodeFrame parses an Ethernet frame and returns it when it carries AVTP.
func DecodeFrame(b []byte) (*ethernet.Frame, error) {
	var f ethernet.Frame
	if err := f.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("failed to decode ethernet frame: %w", err)
	}
	if f.EtherType != EtherType {
		return nil, fmt.Errorf("%w: %#04x", ErrUnsupportedEtherType, uint16(f.EtherType))
	}
	return &f, nil
}
