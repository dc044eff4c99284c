package protocol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAemAecpduRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		pdu  *AemAecpdu
	}{
		{
			name: "command without payload",
			pdu: &AemAecpdu{
				MessageType:        AecpAemCommand,
				TargetEntityID:     0x0A0B0C0D0E0F1011,
				ControllerEntityID: 0x0001020304050607,
				SequenceID:         1,
				CommandType:        AemCommandEntityAvailable,
				Payload:            []byte{},
			},
		},
		{
			name: "in progress response",
			pdu: &AemAecpdu{
				MessageType:        AecpAemResponse,
				Status:             AemStatusInProgress,
				TargetEntityID:     0x0A0B0C0D0E0F1011,
				ControllerEntityID: 0x0001020304050607,
				SequenceID:         0xFFFF,
				CommandType:        AemCommandReadDescriptor,
				Payload:            []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00},
			},
		},
		{
			name: "unsolicited notification",
			pdu: &AemAecpdu{
				MessageType:        AecpAemResponse,
				TargetEntityID:     0x0A0B0C0D0E0F1011,
				ControllerEntityID: 0x0001020304050607,
				SequenceID:         42,
				Unsolicited:        true,
				CommandType:        AemCommandSetName,
				Payload:            []byte("name"),
			},
		},
		{
			name: "maximum payload",
			pdu: &AemAecpdu{
				MessageType:        AecpAemCommand,
				TargetEntityID:     0x0A0B0C0D0E0F1011,
				ControllerEntityID: 0x0001020304050607,
				SequenceID:         9,
				CommandType:        AemCommandWriteDescriptor,
				Payload:            make([]byte, AemMaxPayloadLength),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.pdu.Serialize()
			require.NoError(t, err)

			got, err := ParseAemAecpdu(data)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.pdu, got); diff != "" {
				t.Errorf("ParseAemAecpdu mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAemAecpduLayout(t *testing.T) {
	p := &AemAecpdu{
		MessageType:        AecpAemResponse,
		Status:             AemStatusInProgress,
		TargetEntityID:     0x0A0B0C0D0E0F1011,
		ControllerEntityID: 0x0001020304050607,
		SequenceID:         0x1234,
		Unsolicited:        true,
		CommandType:        AemCommandGetCounters,
		Payload:            []byte{0xAA},
	}
	data, err := p.Serialize()
	require.NoError(t, err)
	require.Len(t, data, 25)

	assert.Equal(t, byte(0xFB), data[0])
	assert.Equal(t, byte(AecpAemResponse), data[1])
	// status 9, control_data_length 13
	assert.Equal(t, []byte{0x48, 0x0D}, data[2:4])
	assert.Equal(t, []byte{0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10, 0x11}, data[4:12])
	assert.Equal(t, []byte{0x12, 0x34}, data[20:22])
	assert.Equal(t, []byte{0x80, 0x29}, data[22:24])
}

func TestAemAecpduSerializeErrors(t *testing.T) {
	_, err := (&AemAecpdu{MessageType: AecpVendorUniqueCommand}).Serialize()
	assert.ErrorIs(t, err, ErrNotAemMessage)

	_, err = (&AemAecpdu{
		MessageType: AecpAemCommand,
		Payload:     make([]byte, AemMaxPayloadLength+1),
	}).Serialize()
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestParseAemAecpduErrors(t *testing.T) {
	mvu, err := (&MvuAecpdu{MessageType: AecpVendorUniqueCommand, SequenceID: 1}).Serialize()
	require.NoError(t, err)
	_, err = ParseAemAecpdu(mvu)
	assert.ErrorIs(t, err, ErrNotAemMessage)

	valid, err := (&AemAecpdu{MessageType: AecpAemCommand, SequenceID: 1}).Serialize()
	require.NoError(t, err)

	noCommandType := append([]byte(nil), valid[:ControlHeaderLength+aecpCommonLength]...)
	noCommandType[3] = aecpCommonLength
	_, err = ParseAemAecpdu(noCommandType)
	assert.ErrorIs(t, err, ErrInvalidControlDataLength)

	_, err = ParseAemAecpdu(valid[:len(valid)-1])
	assert.ErrorIs(t, err, ErrPacketTooShort)

	acmp, err := sampleAcmpdu().Serialize()
	require.NoError(t, err)
	_, err = ParseAemAecpdu(acmp)
	assert.ErrorIs(t, err, ErrUnexpectedSubtype)
}

func TestMvuAecpduRoundTrip(t *testing.T) {
	want := &MvuAecpdu{
		MessageType:        AecpVendorUniqueResponse,
		Status:             0,
		TargetEntityID:     0x0A0B0C0D0E0F1011,
		ControllerEntityID: 0x0001020304050607,
		SequenceID:         77,
		CommandType:        MvuCommandGetMilanInfo,
		Payload:            []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00},
	}

	data, err := want.Serialize()
	require.NoError(t, err)
	assert.True(t, IsMvu(data))
	assert.Equal(t, MvuProtocolIdentifier[:], data[22:28])

	got, err := ParseMvuAecpdu(data)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseMvuAecpdu mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMvuAecpduErrors(t *testing.T) {
	valid, err := (&MvuAecpdu{MessageType: AecpVendorUniqueCommand, SequenceID: 3}).Serialize()
	require.NoError(t, err)

	foreign := append([]byte(nil), valid...)
	foreign[22] = 0xFF
	assert.False(t, IsMvu(foreign))
	_, err = ParseMvuAecpdu(foreign)
	assert.ErrorIs(t, err, ErrNotMvuMessage)

	aem, err := (&AemAecpdu{MessageType: AecpAemCommand, SequenceID: 3}).Serialize()
	require.NoError(t, err)
	_, err = ParseMvuAecpdu(aem)
	assert.ErrorIs(t, err, ErrNotMvuMessage)

	_, err = (&MvuAecpdu{
		MessageType: AecpVendorUniqueCommand,
		Payload:     make([]byte, MvuMaxPayloadLength+1),
	}).Serialize()
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestParseAecpHeader(t *testing.T) {
	data, err := (&AemAecpdu{
		MessageType:        AecpAemResponse,
		Status:             AemStatusEntityLocked,
		TargetEntityID:     0x1111,
		ControllerEntityID: 0x2222,
		SequenceID:         5,
	}).Serialize()
	require.NoError(t, err)

	h, err := ParseAecpHeader(data)
	require.NoError(t, err)
	assert.Equal(t, AecpHeader{
		MessageType:        AecpAemResponse,
		Status:             uint8(AemStatusEntityLocked),
		TargetEntityID:     0x1111,
		ControllerEntityID: 0x2222,
		SequenceID:         5,
	}, h)
	assert.True(t, h.MessageType.IsResponse())
	assert.Equal(t, "AEM_RESPONSE", h.MessageType.String())
}
