package commands

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/opd-ai/avdecc/protocol"
)

// entityIDValue is a pflag.Value for hexadecimal entity IDs.
type entityIDValue struct {
	id *protocol.UniqueIdentifier
}

func (v entityIDValue) String() string {
	if v.id == nil {
		return protocol.NullUniqueIdentifier.String()
	}
	return v.id.String()
}

func (v entityIDValue) Set(s string) error {
	id, err := protocol.ParseUniqueIdentifier(s)
	if err != nil {
		return err
	}
	*v.id = id
	return nil
}

func (entityIDValue) Type() string { return "entityID" }

// hexBytesValue is a pflag.Value for payloads given as hex strings.
type hexBytesValue struct {
	b *[]byte
}

func (v hexBytesValue) String() string {
	if v.b == nil {
		return ""
	}
	return hex.EncodeToString(*v.b)
}

func (v hexBytesValue) Set(s string) error {
	s = strings.NewReplacer(":", "", " ", "").Replace(trimHex(s))
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*v.b = b
	return nil
}

func (hexBytesValue) Type() string { return "hex" }

// parseCommandType accepts decimal or 0x-prefixed command types.
func parseCommandType(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func trimHex(s string) string {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
