package grpcdynamic

import (
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"

	"github.com/jhump/dynproto/dynamic"
)

// Codec is a gRPC codec for the binary protobuf format that understands
// dynamic messages as well as generated ones. Its name is "proto", so peers
// see ordinary protobuf traffic.
type Codec struct{}

var _ encoding.Codec = Codec{}

func (Codec) Name() string {
	return "proto"
}

func (Codec) Marshal(v any) ([]byte, error) {
	switch v := v.(type) {
	case *dynamic.Message:
		return v.Marshal()
	case proto.Message:
		return proto.Marshal(v)
	case interface{ Unwrap() proto.Message }:
		return proto.Marshal(v.Unwrap())
	default:
		return nil, fmt.Errorf("grpcdynamic: cannot marshal %T", v)
	}
}

func (Codec) Unmarshal(data []byte, v any) error {
	switch v := v.(type) {
	case *dynamic.Message:
		return v.Unmarshal(data)
	case proto.Message:
		return proto.Unmarshal(data, v)
	case interface{ Unwrap() proto.Message }:
		return proto.Unmarshal(data, v.Unwrap())
	default:
		return fmt.Errorf("grpcdynamic: cannot unmarshal into %T", v)
	}
}
