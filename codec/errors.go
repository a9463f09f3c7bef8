package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when the input ends in the middle of a tag,
	// a value, or a length-delimited payload.
	ErrTruncated = errors.New("proto: truncated input")
	// ErrInvalidVarint is returned when a varint is longer than ten bytes or
	// overflows 64 bits.
	ErrInvalidVarint = errors.New("proto: invalid varint")
	// ErrInvalidText is returned when a string field does not contain valid
	// UTF-8 and the field requires validation.
	ErrInvalidText = errors.New("proto: string field contains invalid UTF-8")
	// ErrUnexpectedWireType is returned for reserved wire types, invalid field
	// numbers, and group end tags that do not match an open group.
	ErrUnexpectedWireType = errors.New("proto: unexpected wire type")
	// ErrRecursionLimit is returned when nested messages exceed the configured
	// maximum depth.
	ErrRecursionLimit = errors.New("proto: exceeded maximum recursion depth")
)

// DecodeError describes a failure to decode the binary format. Use
// errors.Is with one of the sentinel errors in this package to find
// out what kind of failure it was.
type DecodeError struct {
	// Field is the fully-qualified name of the field being decoded, or
	// empty if the failure happened while reading a tag.
	Field string
	// Offset is the position in the input buffer where the failure was
	// detected.
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v (offset %d)", e.Err, e.Offset)
	}
	return fmt.Sprintf("field %s: %v (offset %d)", e.Field, e.Err, e.Offset)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
