package avdecc

import (
	"fmt"

	"github.com/opd-ai/avdecc/protocol"
)

// CorrelationKey matches a response to its command: the controller that
// issued it and the sequence ID it carried.
type CorrelationKey struct {
	EntityID   protocol.UniqueIdentifier
	SequenceID uint16
}

// Valid reports whether k may be registered. Sequence ID zero is reserved.
func (k CorrelationKey) Valid() bool {
	return k.SequenceID != 0
}

func (k CorrelationKey) String() string {
	return fmt.Sprintf("%s/%d", k.EntityID, k.SequenceID)
}
