package pending

import "errors"

var (
	// ErrInvalidKey indicates a key that must never be registered, such as
	// one carrying the reserved sequence ID 0.
	ErrInvalidKey = errors.New("invalid correlation key")

	// ErrDuplicateKey indicates the key is already outstanding. This is a
	// sequence ID reuse bug in the layer that assigned it.
	ErrDuplicateKey = errors.New("correlation key already pending")

	// ErrNilCallback indicates a registration without a completion callback.
	ErrNilCallback = errors.New("nil completion callback")

	// ErrTableClosed indicates the table has been torn down.
	ErrTableClosed = errors.New("pending table closed")

	// ErrTimeout is delivered to callbacks whose deadline passed before a
	// response arrived.
	ErrTimeout = errors.New("command timed out")
)
