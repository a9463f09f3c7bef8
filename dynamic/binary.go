package dynamic

// Binary serialization and de-serialization for dynamic messages

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jhump/dynproto/codec"
	"github.com/jhump/dynproto/desc"
)

// DefaultRecursionLimit is the maximum nesting depth of messages and groups
// accepted when decoding, unless configured otherwise.
const DefaultRecursionLimit = 100

// UnmarshalOptions configures decoding of the binary format.
type UnmarshalOptions struct {
	// RecursionLimit bounds how deeply messages may be nested in the input.
	// Zero means DefaultRecursionLimit.
	RecursionLimit int
	// DiscardUnknown drops fields that the message type does not recognize
	// instead of keeping them for re-encoding.
	DiscardUnknown bool
}

// Unmarshal decodes a new message of the given type from the given bytes.
// If decoding fails, no message is returned.
func Unmarshal(md desc.MessageDescriptor, b []byte) (*Message, error) {
	return UnmarshalOptions{}.Unmarshal(md, b)
}

// Unmarshal decodes a new message of type md using these options.
func (o UnmarshalOptions) Unmarshal(md desc.MessageDescriptor, b []byte) (*Message, error) {
	m := NewMessage(md)
	if err := o.UnmarshalMerge(m, b); err != nil {
		return nil, err
	}
	return m, nil
}

// UnmarshalMerge decodes the given bytes and merges the result into m. If
// decoding fails, m is left unchanged.
func (o UnmarshalOptions) UnmarshalMerge(m *Message, b []byte) error {
	d := decoder{opts: o}
	if d.opts.RecursionLimit <= 0 {
		d.opts.RecursionLimit = DefaultRecursionLimit
	}
	tmp := NewMessage(m.md)
	if err := d.decodeMessage(tmp, codec.NewBuffer(b), 0); err != nil {
		return err
	}
	m.mergeFrom(tmp, false)
	return nil
}

// Unmarshal de-serializes the message from the given bytes, replacing any
// existing contents. If an error is returned, the message is left empty.
func (m *Message) Unmarshal(b []byte) error {
	m.Reset()
	return m.UnmarshalMerge(b)
}

// UnmarshalMerge de-serializes the given bytes and merges them into the
// message: singular scalar fields are overwritten, singular message fields
// are merged recursively, repeated fields are appended to, and map entries
// replace existing entries with the same key. If an error is returned, the
// message is left unchanged.
func (m *Message) UnmarshalMerge(b []byte) error {
	return UnmarshalOptions{}.UnmarshalMerge(m, b)
}

type decoder struct {
	opts  UnmarshalOptions
	depth int
}

// decodeMessage reads fields into m until b is exhausted or, if endGroup
// is non-zero, until the matching end-group tag.
func (d *decoder) decodeMessage(m *Message, b *codec.Buffer, endGroup protowire.Number) error {
	for !b.EOF() {
		start := b.Offset()
		num, wt, err := b.DecodeTag()
		if err != nil {
			return &codec.DecodeError{Offset: start, Err: err}
		}
		if wt == protowire.EndGroupType {
			if endGroup != 0 && num == endGroup {
				return nil
			}
			return &codec.DecodeError{Offset: start, Err: codec.ErrUnexpectedWireType}
		}
		if fd, ok := m.FindFieldDescriptor(int32(num)); ok {
			handled, err := d.decodeField(m, fd, wt, b)
			if err != nil {
				var de *codec.DecodeError
				if errors.As(err, &de) {
					return err
				}
				return &codec.DecodeError{Field: fd.FullName(), Offset: start, Err: err}
			}
			if handled {
				continue
			}
			// wire type does not match the field, so keep it as unknown
		}
		if err := b.SkipField(num, wt); err != nil {
			return &codec.DecodeError{Offset: start, Err: err}
		}
		if !d.opts.DiscardUnknown {
			raw := append([]byte(nil), b.Since(start)...)
			m.unknown = append(m.unknown, UnknownField{Number: num, WireType: wt, Raw: raw})
		}
	}
	if endGroup != 0 {
		return &codec.DecodeError{Offset: b.Offset(), Err: codec.ErrTruncated}
	}
	return nil
}

// decodeField decodes one occurrence of a known field. It returns false,
// without consuming anything, if the wire type is not valid for the field.
func (d *decoder) decodeField(m *Message, fd desc.FieldDescriptor, wt protowire.Type, b *codec.Buffer) (bool, error) {
	kind := fd.Kind()
	expected := codec.WireType(kind)
	switch {
	case fd.IsMap():
		if wt != protowire.BytesType {
			return false, nil
		}
		k, v, err := d.decodeMapEntry(fd, b)
		if err != nil {
			return true, err
		}
		m.putMapEntry(fd, k, v)
		return true, nil

	case fd.IsRepeated():
		if wt == protowire.BytesType && codec.IsPackable(kind) {
			payload, err := b.DecodeRawBytes(false)
			if err != nil {
				return true, err
			}
			pb := codec.NewBuffer(payload)
			for !pb.EOF() {
				v, err := decodeScalar(fd, pb)
				if err != nil {
					return true, err
				}
				m.appendElement(fd, v)
			}
			return true, nil
		}
		if wt != expected {
			return false, nil
		}
		var v Value
		var err error
		if kind.IsMessage() {
			msg := NewMessage(fd.Message())
			err = d.decodeNested(msg, fd, b)
			v = ValueOfMessage(msg)
		} else {
			v, err = decodeScalar(fd, b)
		}
		if err != nil {
			return true, err
		}
		m.appendElement(fd, v)
		return true, nil

	default:
		if wt != expected {
			return false, nil
		}
		if kind.IsMessage() {
			existing, ok := m.values[fd.Number()]
			var msg *Message
			if ok {
				msg = existing.Message()
			} else {
				msg = NewMessage(fd.Message())
			}
			if err := d.decodeNested(msg, fd, b); err != nil {
				return true, err
			}
			m.internalSetField(fd, ValueOfMessage(msg))
			return true, nil
		}
		v, err := decodeScalar(fd, b)
		if err != nil {
			return true, err
		}
		m.internalSetField(fd, v)
		return true, nil
	}
}

// decodeNested decodes a message or group value into msg.
func (d *decoder) decodeNested(msg *Message, fd desc.FieldDescriptor, b *codec.Buffer) error {
	d.depth++
	defer func() { d.depth-- }()
	if d.depth > d.opts.RecursionLimit {
		return codec.ErrRecursionLimit
	}
	if fd.Kind() == desc.GroupKind {
		return d.decodeMessage(msg, b, protowire.Number(fd.Number()))
	}
	payload, err := b.DecodeRawBytes(false)
	if err != nil {
		return err
	}
	return d.decodeMessage(msg, codec.NewBuffer(payload), 0)
}

func (d *decoder) decodeMapEntry(fd desc.FieldDescriptor, b *codec.Buffer) (MapKey, Value, error) {
	entry := NewMessage(fd.Message())
	if err := d.decodeNested(entry, fd, b); err != nil {
		return MapKey{}, Value{}, err
	}
	k := entry.getFieldOrDefault(fd.MapKey())
	v := entry.getFieldOrDefault(fd.MapValue())
	return k.MapKey(), v, nil
}

// decodeScalar decodes a single value of a non-message field.
func decodeScalar(fd desc.FieldDescriptor, b *codec.Buffer) (Value, error) {
	switch fd.Kind() {
	case desc.BoolKind:
		v, err := b.DecodeVarint()
		return ValueOfBool(v != 0), err
	case desc.Int32Kind:
		v, err := b.DecodeVarint()
		return ValueOfInt32(int32(v)), err
	case desc.Sint32Kind:
		v, err := b.DecodeVarint()
		return ValueOfInt32(codec.DecodeZigZag32(v)), err
	case desc.Uint32Kind:
		v, err := b.DecodeVarint()
		return ValueOfUint32(uint32(v)), err
	case desc.Int64Kind:
		v, err := b.DecodeVarint()
		return ValueOfInt64(int64(v)), err
	case desc.Sint64Kind:
		v, err := b.DecodeVarint()
		return ValueOfInt64(codec.DecodeZigZag64(v)), err
	case desc.Uint64Kind:
		v, err := b.DecodeVarint()
		return ValueOfUint64(v), err
	case desc.EnumKind:
		v, err := b.DecodeVarint()
		return ValueOfEnum(int32(v)), err
	case desc.Fixed32Kind:
		v, err := b.DecodeFixed32()
		return ValueOfUint32(v), err
	case desc.Sfixed32Kind:
		v, err := b.DecodeFixed32()
		return ValueOfInt32(int32(v)), err
	case desc.FloatKind:
		v, err := b.DecodeFixed32()
		return ValueOfFloat32(math.Float32frombits(v)), err
	case desc.Fixed64Kind:
		v, err := b.DecodeFixed64()
		return ValueOfUint64(v), err
	case desc.Sfixed64Kind:
		v, err := b.DecodeFixed64()
		return ValueOfInt64(int64(v)), err
	case desc.DoubleKind:
		v, err := b.DecodeFixed64()
		return ValueOfFloat64(math.Float64frombits(v)), err
	case desc.BytesKind:
		v, err := b.DecodeRawBytes(true)
		return ValueOfBytes(v), err
	case desc.StringKind:
		v, err := b.DecodeRawBytes(false)
		if err != nil {
			return Value{}, err
		}
		if fd.ValidatesUTF8() && !utf8.Valid(v) {
			return Value{}, codec.ErrInvalidText
		}
		return ValueOfString(string(v)), nil
	default:
		return Value{}, fmt.Errorf("cannot decode %v as a scalar", fd.Kind())
	}
}

// MarshalOptions configures encoding to the binary format.
type MarshalOptions struct {
	// CheckRequired makes Marshal fail with ErrRequiredNotSet when a
	// required field is absent, as Validate does.
	CheckRequired bool
}

// Marshal serializes the message to the binary format. Fields are written
// in field number order and map entries are sorted by key, so the output
// for a given message is deterministic. Unknown fields are written last,
// byte for byte as they were read. Missing required fields are not an
// error; use Validate or MarshalOptions.CheckRequired for that.
func (m *Message) Marshal() ([]byte, error) {
	return MarshalOptions{}.Marshal(m)
}

// Marshal serializes m to the binary format using these options.
func (o MarshalOptions) Marshal(m *Message) ([]byte, error) {
	if o.CheckRequired {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	var b codec.Buffer
	m.marshal(&b)
	return b.Bytes(), nil
}

func (m *Message) marshal(b *codec.Buffer) {
	for _, num := range m.setNumbers() {
		fd, _ := m.FindFieldDescriptor(num)
		encodeField(b, fd, m.values[num])
	}
	for _, u := range m.unknown {
		_, _ = b.Write(u.Raw)
	}
}

func encodeField(b *codec.Buffer, fd desc.FieldDescriptor, v Value) {
	num := protowire.Number(fd.Number())
	switch {
	case fd.IsMap():
		kfd, vfd := fd.MapKey(), fd.MapValue()
		mp := v.Map()
		for _, k := range sortedKeys(mp) {
			var entry codec.Buffer
			encodeSingle(&entry, kfd, 1, k.Value())
			encodeSingle(&entry, vfd, 2, mp[k])
			b.EncodeTag(num, protowire.BytesType)
			b.EncodeRawBytes(entry.Bytes())
		}
	case fd.IsRepeated():
		list := v.List()
		if fd.IsPacked() && len(list) > 0 {
			var packed codec.Buffer
			for _, e := range list {
				encodeScalar(&packed, fd.Kind(), e)
			}
			b.EncodeTag(num, protowire.BytesType)
			b.EncodeRawBytes(packed.Bytes())
			return
		}
		for _, e := range list {
			encodeSingle(b, fd, num, e)
		}
	default:
		encodeSingle(b, fd, num, v)
	}
}

func encodeSingle(b *codec.Buffer, fd desc.FieldDescriptor, num protowire.Number, v Value) {
	switch fd.Kind() {
	case desc.GroupKind:
		b.EncodeTag(num, protowire.StartGroupType)
		v.Message().marshal(b)
		b.EncodeTag(num, protowire.EndGroupType)
	case desc.MessageKind:
		var nested codec.Buffer
		v.Message().marshal(&nested)
		b.EncodeTag(num, protowire.BytesType)
		b.EncodeRawBytes(nested.Bytes())
	default:
		b.EncodeTag(num, codec.WireType(fd.Kind()))
		encodeScalar(b, fd.Kind(), v)
	}
}

func encodeScalar(b *codec.Buffer, kind desc.Kind, v Value) {
	switch kind {
	case desc.BoolKind:
		if v.Bool() {
			b.EncodeVarint(1)
		} else {
			b.EncodeVarint(0)
		}
	case desc.Int32Kind:
		b.EncodeVarint(uint64(int64(v.Int32())))
	case desc.EnumKind:
		b.EncodeVarint(uint64(int64(v.Enum())))
	case desc.Sint32Kind:
		b.EncodeVarint(codec.EncodeZigZag32(v.Int32()))
	case desc.Uint32Kind:
		b.EncodeVarint(uint64(v.Uint32()))
	case desc.Int64Kind:
		b.EncodeVarint(uint64(v.Int64()))
	case desc.Sint64Kind:
		b.EncodeVarint(codec.EncodeZigZag64(v.Int64()))
	case desc.Uint64Kind:
		b.EncodeVarint(v.Uint64())
	case desc.Fixed32Kind:
		b.EncodeFixed32(v.Uint32())
	case desc.Sfixed32Kind:
		b.EncodeFixed32(uint32(v.Int32()))
	case desc.FloatKind:
		b.EncodeFixed32(math.Float32bits(v.Float32()))
	case desc.Fixed64Kind:
		b.EncodeFixed64(v.Uint64())
	case desc.Sfixed64Kind:
		b.EncodeFixed64(uint64(v.Int64()))
	case desc.DoubleKind:
		b.EncodeFixed64(math.Float64bits(v.Float64()))
	case desc.StringKind:
		b.EncodeRawBytes([]byte(v.String()))
	case desc.BytesKind:
		b.EncodeRawBytes(v.Bytes())
	}
}
