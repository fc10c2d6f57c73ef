package decode

import "errors"

// Decode errors. Callers match them with errors.Is; the returned errors wrap
// them with the offending format and dimensions.
var (
	// ErrUnsupportedFormat is returned for codes with no converter.
	ErrUnsupportedFormat = errors.New("unsupported pixel format")
	// ErrTruncatedInput is returned when raw is shorter than the format requires.
	ErrTruncatedInput = errors.New("truncated input")
	// ErrInvalidSize is returned for a zero width or height.
	ErrInvalidSize = errors.New("invalid frame size")
	// ErrAllocationFailure is returned when the output buffer would overflow
	// or exceed the decoder's frame limit.
	ErrAllocationFailure = errors.New("output allocation failed")
	// ErrCorruptFrame is returned when a compressed payload cannot be decoded
	// or decodes to different dimensions.
	ErrCorruptFrame = errors.New("corrupt frame")
)
