package dynamic

import (
	"bytes"
)

// Equal returns true if the given two dynamic messages have the same type
// and the same field values, including unknown fields. Two nil messages are
// equal; a nil message never equals a non-nil one.
//
// Floating point fields holding NaN compare equal to each other. Unknown
// fields are compared by their raw bytes, in order.
func Equal(a, b *Message) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.md != b.md {
		return false
	}
	if len(a.values) != len(b.values) {
		return false
	}
	for num, av := range a.values {
		bv, ok := b.values[num]
		if !ok || !av.Equal(bv) {
			return false
		}
	}
	var ua, ub []byte
	for _, u := range a.unknown {
		ua = append(ua, u.Raw...)
	}
	for _, u := range b.unknown {
		ub = append(ub, u.Raw...)
	}
	return bytes.Equal(ua, ub)
}
