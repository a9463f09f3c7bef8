// Package codec contains a reader/writer type that assists with encoding
// and decoding protobuf's binary representation.
//
// The Buffer type works in terms of tags, varints, fixed-width values and
// length-delimited payloads. It knows nothing about messages: the dynamic
// package drives it using the kinds declared in a descriptor pool.
package codec

import (
	"errors"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jhump/dynproto/desc"
)

// Buffer is a reader and a writer that wraps a slice of bytes and also
// provides API for decoding and encoding the protobuf binary format.
type Buffer struct {
	buf   []byte
	index int
}

// NewBuffer creates a new buffer with the given slice of bytes as the
// buffer's initial contents.
func NewBuffer(buf []byte) *Buffer {
	return &Buffer{buf: buf}
}

// Reset resets this buffer back to empty. Any subsequent writes/encodes
// to the buffer will allocate a new backing slice of bytes.
func (cb *Buffer) Reset() {
	cb.buf = []byte(nil)
	cb.index = 0
}

// Bytes returns the slice of bytes remaining in the buffer. Note that
// this does not perform a copy: if the contents of the returned slice
// are modified, the modifications will be visible to subsequent reads
// via the buffer.
func (cb *Buffer) Bytes() []byte {
	return cb.buf[cb.index:]
}

// EOF returns true if there are no more bytes remaining to read.
func (cb *Buffer) EOF() bool {
	return cb.index >= len(cb.buf)
}

// Len returns the remaining number of bytes in the buffer.
func (cb *Buffer) Len() int {
	return len(cb.buf) - cb.index
}

// Offset returns the current read position, relative to the start of the
// buffer's contents.
func (cb *Buffer) Offset() int {
	return cb.index
}

// Since returns the bytes consumed between the given offset (which must
// have been obtained from Offset) and the current read position. The
// returned slice aliases the buffer.
func (cb *Buffer) Since(offset int) []byte {
	return cb.buf[offset:cb.index]
}

// Skip attempts to skip the given number of bytes in the input. If
// the input has fewer bytes than the given count, ErrTruncated is returned
// and the buffer is unchanged.
func (cb *Buffer) Skip(count int) error {
	if count < 0 {
		return ErrTruncated
	}
	newIndex := cb.index + count
	if newIndex < cb.index || newIndex > len(cb.buf) {
		return ErrTruncated
	}
	cb.index = newIndex
	return nil
}

// Read implements the io.Reader interface. If there are no bytes
// remaining in the buffer, it will return 0, io.EOF.
func (cb *Buffer) Read(dest []byte) (int, error) {
	if cb.index == len(cb.buf) {
		return 0, io.EOF
	}
	copied := copy(dest, cb.buf[cb.index:])
	cb.index += copied
	return copied, nil
}

var _ io.Reader = (*Buffer)(nil)

// Write implements the io.Writer interface. It always returns
// len(data), nil.
func (cb *Buffer) Write(data []byte) (int, error) {
	cb.buf = append(cb.buf, data...)
	return len(data), nil
}

var _ io.Writer = (*Buffer)(nil)

// parseError converts a negative length reported by protowire into one of
// the sentinel errors of this package.
func parseError(n int, orElse error) error {
	if errors.Is(protowire.ParseError(n), io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return orElse
}

// DecodeVarint reads a varint-encoded integer from the Buffer.
// This is the format for the
// int32, int64, uint32, uint64, bool, and enum
// protocol buffer types.
func (cb *Buffer) DecodeVarint() (uint64, error) {
	v, n := protowire.ConsumeVarint(cb.buf[cb.index:])
	if n < 0 {
		return 0, parseError(n, ErrInvalidVarint)
	}
	cb.index += n
	return v, nil
}

// DecodeTag decodes a field tag and wire type from input. Field numbers
// outside the valid range and the reserved wire types 6 and 7 are
// rejected with ErrUnexpectedWireType.
func (cb *Buffer) DecodeTag() (protowire.Number, protowire.Type, error) {
	start := cb.index
	v, err := cb.DecodeVarint()
	if err != nil {
		return 0, 0, err
	}
	num, wt := protowire.DecodeTag(v)
	if v>>3 > uint64(protowire.MaxValidNumber) || num < protowire.MinValidNumber || wt > protowire.Fixed32Type {
		cb.index = start
		return 0, 0, ErrUnexpectedWireType
	}
	return num, wt, nil
}

// DecodeFixed64 reads a 64-bit integer from the Buffer.
// This is the format for the
// fixed64, sfixed64, and double protocol buffer types.
func (cb *Buffer) DecodeFixed64() (uint64, error) {
	v, n := protowire.ConsumeFixed64(cb.buf[cb.index:])
	if n < 0 {
		return 0, parseError(n, ErrTruncated)
	}
	cb.index += n
	return v, nil
}

// DecodeFixed32 reads a 32-bit integer from the Buffer.
// This is the format for the
// fixed32, sfixed32, and float protocol buffer types.
func (cb *Buffer) DecodeFixed32() (uint32, error) {
	v, n := protowire.ConsumeFixed32(cb.buf[cb.index:])
	if n < 0 {
		return 0, parseError(n, ErrTruncated)
	}
	cb.index += n
	return v, nil
}

// DecodeRawBytes reads a count-delimited byte buffer from the Buffer.
// This is the format used for the bytes protocol buffer
// type and for embedded messages. If alloc is false, the returned slice
// is a view into the buffer's underlying byte slice.
func (cb *Buffer) DecodeRawBytes(alloc bool) ([]byte, error) {
	start := cb.index
	l, err := cb.DecodeVarint()
	if err != nil {
		return nil, err
	}
	if l > uint64(cb.Len()) {
		cb.index = start
		return nil, ErrTruncated
	}
	end := cb.index + int(l)
	buf := cb.buf[cb.index:end]
	cb.index = end
	if !alloc {
		return buf, nil
	}
	return append([]byte(nil), buf...), nil
}

// SkipField skips over the value of a field whose tag (with the given
// number and wire type) has just been read. For groups, this consumes
// everything up to and including the matching end-group tag, which
// correctly handles nested groups.
func (cb *Buffer) SkipField(num protowire.Number, wt protowire.Type) error {
	var open []protowire.Number
	for {
		switch wt {
		case protowire.VarintType:
			if _, err := cb.DecodeVarint(); err != nil {
				return err
			}
		case protowire.Fixed32Type:
			if err := cb.Skip(4); err != nil {
				return err
			}
		case protowire.Fixed64Type:
			if err := cb.Skip(8); err != nil {
				return err
			}
		case protowire.BytesType:
			if _, err := cb.DecodeRawBytes(false); err != nil {
				return err
			}
		case protowire.StartGroupType:
			open = append(open, num)
		case protowire.EndGroupType:
			if len(open) == 0 || open[len(open)-1] != num {
				return ErrUnexpectedWireType
			}
			open = open[:len(open)-1]
		default:
			return ErrUnexpectedWireType
		}
		if len(open) == 0 {
			return nil
		}
		var err error
		if num, wt, err = cb.DecodeTag(); err != nil {
			return err
		}
	}
}

// EncodeVarint writes a varint-encoded integer to the Buffer.
// This is the format for the
// int32, int64, uint32, uint64, bool, and enum
// protocol buffer types.
func (cb *Buffer) EncodeVarint(x uint64) {
	cb.buf = protowire.AppendVarint(cb.buf, x)
}

// EncodeTag encodes the given field number and wire type to the
// buffer. This combines the two values and then writes them as a varint.
func (cb *Buffer) EncodeTag(num protowire.Number, wt protowire.Type) {
	cb.buf = protowire.AppendTag(cb.buf, num, wt)
}

// EncodeFixed64 writes a 64-bit integer to the Buffer.
// This is the format for the
// fixed64, sfixed64, and double protocol buffer types.
func (cb *Buffer) EncodeFixed64(x uint64) {
	cb.buf = protowire.AppendFixed64(cb.buf, x)
}

// EncodeFixed32 writes a 32-bit integer to the Buffer.
// This is the format for the
// fixed32, sfixed32, and float protocol buffer types.
func (cb *Buffer) EncodeFixed32(x uint32) {
	cb.buf = protowire.AppendFixed32(cb.buf, x)
}

// EncodeRawBytes writes a count-delimited byte buffer to the Buffer.
// This is the format used for the bytes protocol buffer
// type and for embedded messages.
func (cb *Buffer) EncodeRawBytes(b []byte) {
	cb.buf = protowire.AppendBytes(cb.buf, b)
}

// EncodeZigZag64 does zig-zag encoding to convert the given
// signed 64-bit integer into a form that can be expressed
// efficiently as a varint, even for negative values.
func EncodeZigZag64(v int64) uint64 {
	return protowire.EncodeZigZag(v)
}

// EncodeZigZag32 does zig-zag encoding to convert the given
// signed 32-bit integer into a form that can be expressed
// efficiently as a varint, even for negative values.
func EncodeZigZag32(v int32) uint64 {
	return uint64((uint32(v) << 1) ^ uint32(v>>31))
}

// DecodeZigZag32 decodes a signed 32-bit integer from the given
// zig-zag encoded value.
func DecodeZigZag32(v uint64) int32 {
	return int32((uint32(v) >> 1) ^ uint32((int32(v&1)<<31)>>31))
}

// DecodeZigZag64 decodes a signed 64-bit integer from the given
// zig-zag encoded value.
func DecodeZigZag64(v uint64) int64 {
	return protowire.DecodeZigZag(v)
}

// WireType returns the wire type used to encode a single, non-packed
// value of the given kind.
func WireType(k desc.Kind) protowire.Type {
	switch k {
	case desc.BoolKind, desc.EnumKind,
		desc.Int32Kind, desc.Sint32Kind, desc.Uint32Kind,
		desc.Int64Kind, desc.Sint64Kind, desc.Uint64Kind:
		return protowire.VarintType
	case desc.Fixed32Kind, desc.Sfixed32Kind, desc.FloatKind:
		return protowire.Fixed32Type
	case desc.Fixed64Kind, desc.Sfixed64Kind, desc.DoubleKind:
		return protowire.Fixed64Type
	case desc.GroupKind:
		return protowire.StartGroupType
	default:
		return protowire.BytesType
	}
}

// IsPackable returns true if repeated values of the given kind may use the
// packed encoding. Only scalar numeric kinds are packable.
func IsPackable(k desc.Kind) bool {
	switch WireType(k) {
	case protowire.VarintType, protowire.Fixed32Type, protowire.Fixed64Type:
		return true
	default:
		return false
	}
}
