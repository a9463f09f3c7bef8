package desc

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateName indicates that two elements share a fully-qualified
	// name, that one file name was registered twice with different contents,
	// or that two extensions of one message use the same number.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrUnresolvedTypeReference indicates that a field type, an extendee,
	// or a method input or output type could not be resolved.
	ErrUnresolvedTypeReference = errors.New("unresolved type reference")
	// ErrUnresolvedImport indicates that a file depends on a file that is
	// neither in the same descriptor set nor already in the pool.
	ErrUnresolvedImport = errors.New("unresolved import")
	// ErrMalformedDescriptor indicates that the descriptor bytes could not be
	// parsed or describe something that is not valid.
	ErrMalformedDescriptor = errors.New("malformed descriptor")
)

// BuildError is returned when a pool cannot be built or extended. Its Kind
// is one of the sentinel errors in this package, so callers can use
// errors.Is to test for a particular failure.
type BuildError struct {
	Kind error
	// File is the name of the file being processed when the error occurred.
	File string
	// Symbol is the fully-qualified name of the element at fault, if any.
	Symbol string
	Detail string
	// Cause is an underlying error, such as a parse failure.
	Cause error
}

func (e *BuildError) Error() string {
	var sb strings.Builder
	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if e.Symbol != "" {
		sb.WriteString(e.Symbol)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.Error())
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *BuildError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func buildErrorf(kind error, file, symbol, format string, args ...any) *BuildError {
	return &BuildError{Kind: kind, File: file, Symbol: symbol, Detail: fmt.Sprintf(format, args...)}
}
