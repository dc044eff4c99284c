// Package protocol implements the wire format of the AVDECC control PDUs
// that carry correlated commands: ACMPDUs (stream connection management) and
// AECPDUs in their AEM and Milan vendor-unique (MVU) forms.
//
// Only the fixed header fields are decoded. AEM and MVU command payloads,
// including descriptors, are carried as opaque bytes.
//
// Every control PDU starts with the 12-byte AVTP control header:
//
//	[cd|subtype (1)][sv|version|message_type (1)][status|control_data_length (2)][stream_id (8)]
//
// For ACMP the stream_id field holds the stream ID; for AECP it holds the
// target entity ID. PDUs travel in Ethernet frames with EtherType 0x22F0,
// see EncodeFrame and DecodeFrame.
//
// Example:
//
//	cmd := &protocol.AemAecpdu{
//	    MessageType:        protocol.AecpAemCommand,
//	    TargetEntityID:     target,
//	    ControllerEntityID: controller,
//	    SequenceID:         1,
//	    CommandType:        protocol.AemCommandEntityAvailable,
//	}
//	data, err := cmd.Serialize()
package protocol
