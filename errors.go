package mtext

import "errors"

// Errors returned by text operations.
var (
	// ErrRange indicates a character position or range outside the text's
	// bounds. The operation leaves the text unchanged.
	ErrRange = errors.New("mtext: position out of range")

	// ErrFormat indicates malformed input to a text-from-data constructor,
	// or a code point a format cannot represent.
	ErrFormat = errors.New("mtext: malformed text data")

	// ErrReadOnly indicates a mutation on a text built over externally
	// owned data.
	ErrReadOnly = errors.New("mtext: text is read-only")

	// ErrDetached indicates an operation on a property that is not
	// attached to the text.
	ErrDetached = errors.New("mtext: property not attached to this text")
)
