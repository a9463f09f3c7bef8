package dynamic

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch indicates a value whose kind does not match the
	// declared type of the field it is stored in.
	ErrTypeMismatch = errors.New("value does not match field type")
	// ErrUnknownFieldName indicates a field name that the message's type
	// does not declare.
	ErrUnknownFieldName = errors.New("unknown field name")
	// ErrUnknownFieldNumber indicates a field number that the message's
	// type does not declare.
	ErrUnknownFieldNumber = errors.New("unknown field number")
	// ErrFieldNotRepeated indicates a list operation on a field that is
	// singular or a map.
	ErrFieldNotRepeated = errors.New("field is not repeated")
	// ErrFieldNotMap indicates a map operation on a field that is not a map.
	ErrFieldNotMap = errors.New("field is not a map")
	// ErrIndexOutOfRange indicates a list index outside of [0, len).
	ErrIndexOutOfRange = errors.New("index is out of range")
	// ErrWrongMessageType indicates a field descriptor or message value that
	// belongs to a different message type than the one expected.
	ErrWrongMessageType = errors.New("wrong message type")
	// ErrRequiredNotSet is returned by Validate, and by Marshal with
	// MarshalOptions.CheckRequired, when a required field is absent.
	ErrRequiredNotSet = errors.New("required field not set")
)

// FieldError describes a failure to access a field of a message. Use
// errors.Is with one of the sentinel errors of this package to find out
// what kind of failure it was.
type FieldError struct {
	// Message is the fully-qualified name of the message type.
	Message string
	// Field names the field, by name or by number, as the caller gave it.
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %v", e.Message, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func (m *Message) fieldError(field string, err error) *FieldError {
	return &FieldError{Message: m.md.FullName(), Field: field, Err: err}
}

var (
	// ErrUnknownJSONField indicates a JSON property that does not name a
	// field of the message.
	ErrUnknownJSONField = errors.New("unknown field")
	// ErrInvalidEnumName indicates a JSON string that does not name a value
	// of the field's enum type.
	ErrInvalidEnumName = errors.New("invalid enum value name")
	ErrInvalidBase64   = errors.New("invalid base64 data")
	// ErrJSONTypeMismatch indicates a JSON value whose type or range is not
	// valid for the field it is assigned to.
	ErrJSONTypeMismatch = errors.New("JSON value does not match field type")
	// ErrMissingAnyType indicates a google.protobuf.Any whose type URL names
	// a message that is not in the pool, or that has no type URL at all.
	ErrMissingAnyType = errors.New("google.protobuf.Any type not found")
	// ErrDuplicateJSONField indicates that a field, or more than one member
	// of a oneof, appeared more than once in a JSON object.
	ErrDuplicateJSONField = errors.New("field set more than once")
	// ErrInvalidWellKnownValue indicates a well-known type, such as a
	// Timestamp or Duration, whose contents are out of range.
	ErrInvalidWellKnownValue = errors.New("invalid value for well-known type")
	// ErrInvalidJSON indicates input that is not syntactically valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON")
)

// JSONError describes a failure to convert a message to or from JSON.
type JSONError struct {
	// Path locates the offending value, such as "items[2].name". It is
	// empty when the problem is with the top-level value.
	Path string
	Err  error
}

func (e *JSONError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("json: %v", e.Err)
	}
	return fmt.Sprintf("json: %s: %v", e.Path, e.Err)
}

func (e *JSONError) Unwrap() error {
	return e.Err
}

func jsonError(path string, err error) error {
	if err == nil {
		return nil
	}
	var je *JSONError
	if errors.As(err, &je) {
		return err
	}
	return &JSONError{Path: path, Err: err}
}
