package avdecc

import (
	"context"
	"errors"
	"fmt"

	"github.com/opd-ai/avdecc/pending"
	"github.com/opd-ai/avdecc/transport"
)

// InterfaceError is a protocol interface error code. The zero value means
// no error and is never returned as an error.
type InterfaceError uint8

const (
	ErrNoError                        InterfaceError = 0
	ErrTransportError                 InterfaceError = 1
	ErrTimeout                        InterfaceError = 2
	ErrUnknownRemoteEntity            InterfaceError = 3
	ErrUnknownLocalEntity             InterfaceError = 4
	ErrInvalidEntityType              InterfaceError = 5
	ErrDuplicateLocalEntityID         InterfaceError = 6
	ErrInterfaceNotFound              InterfaceError = 7
	ErrInvalidParameters              InterfaceError = 8
	ErrInterfaceNotSupported          InterfaceError = 9
	ErrMessageNotSupported            InterfaceError = 10
	ErrExecutorNotInitialized         InterfaceError = 11
	ErrInvalidProtocolInterfaceHandle InterfaceError = 98
	ErrInternalError                  InterfaceError = 99
)

var interfaceErrorText = map[InterfaceError]string{
	ErrNoError:                        "no error",
	ErrTransportError:                 "transport error",
	ErrTimeout:                        "timeout",
	ErrUnknownRemoteEntity:            "unknown remote entity",
	ErrUnknownLocalEntity:             "unknown local entity",
	ErrInvalidEntityType:              "invalid entity type",
	ErrDuplicateLocalEntityID:         "duplicate local entity ID",
	ErrInterfaceNotFound:              "interface not found",
	ErrInvalidParameters:              "invalid parameters",
	ErrInterfaceNotSupported:          "interface not supported",
	ErrMessageNotSupported:            "message not supported",
	ErrExecutorNotInitialized:         "executor not initialized",
	ErrInvalidProtocolInterfaceHandle: "invalid protocol interface handle",
	ErrInternalError:                  "internal error",
}

func (e InterfaceError) Error() string {
	if text, ok := interfaceErrorText[e]; ok {
		return text
	}
	return fmt.Sprintf("interface error %d", uint8(e))
}

// ErrorCode maps err to the code reported across the bindings boundary.
func ErrorCode(err error) InterfaceError {
	if err == nil {
		return ErrNoError
	}

	var code InterfaceError
	if errors.As(err, &code) {
		return code
	}

	var te *transport.TransportError
	var ce *CommandError
	switch {
	case errors.Is(err, pending.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, pending.ErrInvalidKey),
		errors.Is(err, pending.ErrDuplicateKey),
		errors.Is(err, pending.ErrNilCallback):
		return ErrInvalidParameters
	case errors.Is(err, pending.ErrTableClosed):
		return ErrInvalidProtocolInterfaceHandle
	case errors.As(err, &te):
		return ErrTransportError
	case errors.As(err, &ce) && ce.Op == opSend:
		return ErrTransportError
	default:
		return ErrInternalError
	}
}

// Family names a command family and its correlation table.
type Family string

const (
	FamilyAcmp Family = "acmp"
	FamilyAem  Family = "aem"
	FamilyMvu  Family = "mvu"
)

// CommandError represents a failed command or message send with its context
type CommandError struct {
	Family Family // command family
	Op     string // operation that failed
	Key    CorrelationKey
	Err    error // underlying error
}

func (e *CommandError) Error() string {
	if e.Key.SequenceID != 0 || e.Key.EntityID != 0 {
		return fmt.Sprintf("avdecc %s %s %s: %v", e.Family, e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("avdecc %s %s: %v", e.Family, e.Op, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// newCommandError creates a new CommandError
func newCommandError(family Family, op string, key CorrelationKey, err error) *CommandError {
	return &CommandError{
		Family: family,
		Op:     op,
		Key:    key,
		Err:    err,
	}
}

// classify turns a table registration error into an interface error that
// still wraps the table's sentinel.
func classify(err error) error {
	switch {
	case errors.Is(err, pending.ErrTableClosed):
		return fmt.Errorf("%w: %w", ErrInvalidProtocolInterfaceHandle, err)
	case errors.Is(err, pending.ErrInvalidKey),
		errors.Is(err, pending.ErrDuplicateKey),
		errors.Is(err, pending.ErrNilCallback):
		return fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	default:
		return err
	}
}

// resultError wraps an error delivered to a result callback so that both
// the interface code and the table sentinel match with errors.Is.
func resultError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pending.ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
