package desc

import (
	"fmt"

	"google.golang.org/protobuf/types/descriptorpb"
)

// Kind indicates the declared type of a field. The numeric values match
// those of google.protobuf.FieldDescriptorProto.Type.
type Kind int8

const (
	DoubleKind   Kind = Kind(descriptorpb.FieldDescriptorProto_TYPE_DOUBLE)
	FloatKind    Kind = Kind(descriptorpb.FieldDescriptorProto_TYPE_FLOAT)
	Int64Kind    Kind = Kind(descriptorpb.FieldDescriptorProto_TYPE_INT64)
	Uint64Kind   Kind = Kind(descriptorpb.FieldDescriptorProto_TYPE_UINT64)
	Int32Kind    Kind = Kind(descriptorpb.FieldDescriptorProto_TYPE_INT32)
	Fixed64Kind  Kind = Kind(descriptorpb.FieldDescriptorProto_TYPE_FIXED64)
	Fixed32Kind  Kind = Kind(descriptorpb.FieldDescriptorProto_TYPE_FIXED32)
	BoolKind     Kind = Kind(descriptorpb.FieldDescriptorProto_TYPE_BOOL)
	StringKind   Kind = Kind(descriptorpb.FieldDescriptorProto_TYPE_STRING)
	GroupKind    Kind = Kind(descriptorpb.FieldDescriptorProto_TYPE_GROUP)
	MessageKind  Kind = Kind(descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	BytesKind    Kind = Kind(descriptorpb.FieldDescriptorProto_TYPE_BYTES)
	Uint32Kind   Kind = Kind(descriptorpb.FieldDescriptorProto_TYPE_UINT32)
	EnumKind     Kind = Kind(descriptorpb.FieldDescriptorProto_TYPE_ENUM)
	Sfixed32Kind Kind = Kind(descriptorpb.FieldDescriptorProto_TYPE_SFIXED32)
	Sfixed64Kind Kind = Kind(descriptorpb.FieldDescriptorProto_TYPE_SFIXED64)
	Sint32Kind   Kind = Kind(descriptorpb.FieldDescriptorProto_TYPE_SINT32)
	Sint64Kind   Kind = Kind(descriptorpb.FieldDescriptorProto_TYPE_SINT64)
)

var kindNames = map[Kind]string{
	DoubleKind:   "double",
	FloatKind:    "float",
	Int64Kind:    "int64",
	Uint64Kind:   "uint64",
	Int32Kind:    "int32",
	Fixed64Kind:  "fixed64",
	Fixed32Kind:  "fixed32",
	BoolKind:     "bool",
	StringKind:   "string",
	GroupKind:    "group",
	MessageKind:  "message",
	BytesKind:    "bytes",
	Uint32Kind:   "uint32",
	EnumKind:     "enum",
	Sfixed32Kind: "sfixed32",
	Sfixed64Kind: "sfixed64",
	Sint32Kind:   "sint32",
	Sint64Kind:   "sint64",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int8(k))
}

// IsValid reports whether k is one of the known kinds.
func (k Kind) IsValid() bool {
	_, ok := kindNames[k]
	return ok
}

// IsMessage is true for MessageKind and GroupKind.
func (k Kind) IsMessage() bool {
	return k == MessageKind || k == GroupKind
}

// Cardinality indicates whether a field is optional, required, or repeated.
type Cardinality int8

const (
	Optional Cardinality = Cardinality(descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL)
	Required Cardinality = Cardinality(descriptorpb.FieldDescriptorProto_LABEL_REQUIRED)
	Repeated Cardinality = Cardinality(descriptorpb.FieldDescriptorProto_LABEL_REPEATED)
)

func (c Cardinality) String() string {
	switch c {
	case Optional:
		return "optional"
	case Required:
		return "required"
	case Repeated:
		return "repeated"
	default:
		return fmt.Sprintf("Cardinality(%d)", int8(c))
	}
}

// Syntax identifies the syntax of the file in which an element was declared.
type Syntax int8

const (
	Proto2 Syntax = iota + 2
	Proto3
	Editions
)

func (s Syntax) String() string {
	switch s {
	case Proto2:
		return "proto2"
	case Proto3:
		return "proto3"
	case Editions:
		return "editions"
	default:
		return fmt.Sprintf("Syntax(%d)", int8(s))
	}
}
