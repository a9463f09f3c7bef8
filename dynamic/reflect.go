package dynamic

import (
	"fmt"

	"google.golang.org/protobuf/proto"

	"github.com/jhump/dynproto/desc"
)

// ReflectMessage is implemented by messages that can describe their own
// type with a descriptor from a pool.
type ReflectMessage interface {
	Descriptor() desc.MessageDescriptor
}

var (
	_ ReflectMessage = (*Message)(nil)
	_ ReflectMessage = (*StaticMessage)(nil)
)

// StaticMessage pairs a generated message with a descriptor for its type,
// so that it can be used wherever a ReflectMessage is accepted.
type StaticMessage struct {
	msg proto.Message
	md  desc.MessageDescriptor
}

// NewStaticMessage wraps the given generated message. Its descriptor is
// loaded from the message's file and that file's imports; loaded pools are
// cached, so wrapping many messages of the same type is cheap.
func NewStaticMessage(msg proto.Message) (*StaticMessage, error) {
	md, err := desc.LoadMessageDescriptorForMessage(msg)
	if err != nil {
		return nil, err
	}
	return &StaticMessage{msg: msg, md: md}, nil
}

// Descriptor returns the descriptor of the wrapped message's type.
func (s *StaticMessage) Descriptor() desc.MessageDescriptor {
	return s.md
}

// Unwrap returns the wrapped generated message.
func (s *StaticMessage) Unwrap() proto.Message {
	return s.msg
}

// AsDynamicMessage returns the given message as a dynamic message. A
// dynamic message is returned as is. Any other message must be able to
// unwrap itself to a generated message, as StaticMessage does, whose
// contents are then copied into a new dynamic message.
func AsDynamicMessage(rm ReflectMessage) (*Message, error) {
	switch u := rm.(type) {
	case *Message:
		return u, nil
	case interface{ Unwrap() proto.Message }:
		m := NewMessage(rm.Descriptor())
		if err := m.ConvertFrom(u.Unwrap()); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to a dynamic message", rm)
	}
}

func (m *Message) checkProtoType(pm proto.Message) error {
	name := string(pm.ProtoReflect().Descriptor().FullName())
	if name != m.md.FullName() {
		return m.fieldError("", fmt.Errorf("%w: %s", ErrWrongMessageType, name))
	}
	return nil
}

// ConvertTo replaces the contents of target with the contents of m. The
// target must have the same fully-qualified type name. Conversion goes
// through the binary format, so fields unknown to target are kept as its
// unknown fields.
func (m *Message) ConvertTo(target proto.Message) error {
	if err := m.checkProtoType(target); err != nil {
		return err
	}
	proto.Reset(target)
	return m.mergeInto(target)
}

// MergeInto merges the contents of m into target, which must have the same
// fully-qualified type name.
func (m *Message) MergeInto(target proto.Message) error {
	if err := m.checkProtoType(target); err != nil {
		return err
	}
	return m.mergeInto(target)
}

func (m *Message) mergeInto(target proto.Message) error {
	b, err := m.Marshal()
	if err != nil {
		return err
	}
	return proto.UnmarshalOptions{Merge: true, AllowPartial: true}.Unmarshal(b, target)
}

// ConvertFrom replaces the contents of m with the contents of src, which
// must have the same fully-qualified type name. If the conversion fails, m
// is left unchanged.
func (m *Message) ConvertFrom(src proto.Message) error {
	if err := m.checkProtoType(src); err != nil {
		return err
	}
	b, err := proto.MarshalOptions{AllowPartial: true}.Marshal(src)
	if err != nil {
		return err
	}
	tmp := NewMessage(m.md)
	if err := tmp.UnmarshalMerge(b); err != nil {
		return err
	}
	*m = *tmp
	return nil
}
