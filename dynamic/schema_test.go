package dynamic_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/jhump/dynproto/desc"
	"github.com/jhump/dynproto/dynamic"
	"github.com/jhump/dynproto/internal/prototest"
)

var schema = map[string]string{
	"dyntest/test.proto": `
		syntax = "proto3";
		package dyntest;

		import "google/protobuf/any.proto";
		import "google/protobuf/duration.proto";
		import "google/protobuf/empty.proto";
		import "google/protobuf/field_mask.proto";
		import "google/protobuf/struct.proto";
		import "google/protobuf/timestamp.proto";
		import "google/protobuf/wrappers.proto";

		message Point {
			int32 x = 1;
			int32 y = 2;
		}

		enum Color {
			COLOR_UNSPECIFIED = 0;
			RED = 1;
			GREEN = 2;
		}

		message Scalars {
			double d = 1;
			float f = 2;
			int32 i32 = 3;
			int64 i64 = 4;
			uint32 u32 = 5;
			uint64 u64 = 6;
			sint32 s32 = 7;
			sint64 s64 = 8;
			fixed32 fx32 = 9;
			fixed64 fx64 = 10;
			sfixed32 sf32 = 11;
			sfixed64 sf64 = 12;
			bool b = 13;
			string s = 14;
			bytes by = 15;
			Color color = 16;
		}

		message Holder {
			string name = 1;
			repeated int32 packed = 2;
			repeated int32 unpacked = 3 [packed = false];
			map<string, Point> points = 4;
			map<int32, string> labels = 5;
			oneof choice {
				string text = 6;
				Point point = 7;
				int64 number = 8;
			}
			optional int32 maybe = 9;
			Holder child = 10;
			repeated Point path = 11;
			Color color = 12;
			repeated string tags = 13;
			string display_name = 14;
		}

		message Wkt {
			google.protobuf.Timestamp ts = 1;
			google.protobuf.Duration dur = 2;
			google.protobuf.Any any = 3;
			google.protobuf.Struct st = 4;
			google.protobuf.Value val = 5;
			google.protobuf.Int64Value i64 = 6;
			google.protobuf.StringValue str = 7;
			google.protobuf.FieldMask mask = 8;
			google.protobuf.Empty empty = 9;
			google.protobuf.BoolValue flag = 10;
		}
	`,
	"dyntest/legacy.proto": `
		syntax = "proto2";
		package dynlegacy;

		message Req {
			required int32 id = 1;
			optional Req child = 2;
			repeated Req items = 3;
			optional string note = 4 [default = "n/a"];
			optional group G = 5 {
				optional int32 v = 1;
			}
			repeated sint32 nums = 6;
			extensions 100 to 200;
		}

		extend Req {
			optional int32 ext_num = 100;
			repeated string ext_tags = 101;
		}
	`,
}

type testSchema struct {
	fds   *descriptorpb.FileDescriptorSet
	pool  *desc.Pool
	files *protoregistry.Files
}

func loadSchema(t *testing.T) *testSchema {
	t.Helper()
	fds := prototest.Compile(t, schema)
	pool, err := desc.BuildFromSet(fds)
	require.NoError(t, err)
	return &testSchema{fds: fds, pool: pool, files: prototest.Files(t, fds)}
}

func (s *testSchema) message(t *testing.T, name string) desc.MessageDescriptor {
	t.Helper()
	md, ok := s.pool.FindMessageByName(name)
	require.True(t, ok, "message %s", name)
	return md
}

func (s *testSchema) newMessage(t *testing.T, name string) *dynamic.Message {
	t.Helper()
	return dynamic.NewMessage(s.message(t, name))
}

// dynamicpb returns an empty message of the named type from the
// protobuf-go runtime, for cross-checking encodings.
func (s *testSchema) dynamicpb(t *testing.T, name string) *dynamicpb.Message {
	t.Helper()
	d, err := s.files.FindDescriptorByName(protoreflect.FullName(name))
	require.NoError(t, err)
	return dynamicpb.NewMessage(d.(protoreflect.MessageDescriptor))
}

func field(t *testing.T, md desc.MessageDescriptor, name string) desc.FieldDescriptor {
	t.Helper()
	fd, ok := md.FindFieldByName(name)
	require.True(t, ok, "field %s.%s", md.FullName(), name)
	return fd
}

func point(t *testing.T, s *testSchema, x, y int32) *dynamic.Message {
	t.Helper()
	p := s.newMessage(t, "dyntest.Point")
	p.SetFieldByName("x", dynamic.ValueOfInt32(x))
	p.SetFieldByName("y", dynamic.ValueOfInt32(y))
	return p
}
