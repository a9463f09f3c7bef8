package desc_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/jhump/dynproto/desc"
	"github.com/jhump/dynproto/internal/prototest"
)

var testSources = map[string]string{
	"test/v1/shop.proto": `
		syntax = "proto3";
		package test.v1;
		import "google/protobuf/timestamp.proto";

		message Order {
			string order_id = 1;
			repeated int32 quantities = 2;
			repeated int32 unpacked = 3 [packed = false];
			map<string, Item> items = 4;
			oneof payment {
				string card = 5;
				string voucher = 6;
			}
			optional int64 note_count = 7;
			google.protobuf.Timestamp created = 8;
			Status status = 9;

			message Item {
				string sku = 1;
				Order parent = 2;
			}
			enum Status {
				STATUS_UNSPECIFIED = 0;
				PAID = 1;
			}
		}

		service Shop {
			rpc Place(Order) returns (Order);
			rpc Watch(Order) returns (stream Order);
			rpc Upload(stream Order) returns (Order);
			rpc Chat(stream Order) returns (stream Order);
		}
	`,
	"legacy.proto": `
		syntax = "proto2";
		package legacy;

		enum Color {
			RED = 0;
			GREEN = 1;
		}
		message Thing {
			required int32 id = 1;
			optional int32 a = 2 [default = -5];
			optional string s = 3 [default = "hi"];
			optional bytes b = 4 [default = "\001x"];
			optional Color c = 5 [default = GREEN];
			optional double d = 6 [default = inf];
			repeated int32 r = 7;
			repeated int32 p = 8 [packed = true];
			optional group Grp = 9 {
				optional int32 g = 1;
			}
			extensions 100 to 199;
		}
		extend Thing {
			optional string label = 100;
		}
	`,
	"editions.proto": `
		edition = "2023";
		package ed;

		message E {
			int32 explicit = 1;
			int32 implicit = 2 [features.field_presence = IMPLICIT];
			repeated int32 packed = 3;
			repeated int32 expanded = 4 [features.repeated_field_encoding = EXPANDED];
			E child = 5 [features.message_encoding = DELIMITED];
			int32 req = 6 [features.field_presence = LEGACY_REQUIRED];
		}
	`,
}

func buildTestPool(t *testing.T) *desc.Pool {
	t.Helper()
	pool, err := desc.Build(prototest.CompileBytes(t, testSources))
	require.NoError(t, err)
	return pool
}

func field(t *testing.T, md desc.MessageDescriptor, name string) desc.FieldDescriptor {
	t.Helper()
	fd, ok := md.FindFieldByName(name)
	require.True(t, ok, "field %s.%s", md.FullName(), name)
	return fd
}

func TestBuild_Proto3(t *testing.T) {
	pool := buildTestPool(t)

	order, ok := pool.FindMessageByName("test.v1.Order")
	require.True(t, ok)
	assert.Equal(t, "Order", order.Name())
	assert.Equal(t, "test/v1/shop.proto", order.File().Name())
	assert.Equal(t, desc.Proto3, order.File().Syntax())
	require.Len(t, order.Fields(), 9)

	// a leading dot is accepted
	same, ok := pool.FindMessageByName(".test.v1.Order")
	require.True(t, ok)
	assert.Equal(t, order, same)

	id := field(t, order, "order_id")
	assert.Equal(t, "orderId", id.JSONName())
	assert.Equal(t, desc.StringKind, id.Kind())
	assert.False(t, id.HasPresence())
	assert.True(t, id.ValidatesUTF8())
	byJSON, ok := order.FindFieldByJSONName("orderId")
	require.True(t, ok)
	assert.Equal(t, id, byJSON)

	assert.True(t, field(t, order, "quantities").IsPacked())
	assert.False(t, field(t, order, "unpacked").IsPacked())

	items := field(t, order, "items")
	assert.True(t, items.IsMap())
	assert.True(t, items.IsRepeated())
	assert.Equal(t, desc.StringKind, items.MapKey().Kind())
	item, ok := pool.FindMessageByName("test.v1.Order.Item")
	require.True(t, ok)
	assert.Equal(t, item, items.MapValue().Message())
	assert.True(t, items.Message().IsMapEntry())
	assert.Equal(t, order, item.ContainingMessage())

	// recursive reference back to the enclosing message
	assert.Equal(t, order, field(t, item, "parent").Message())

	card := field(t, order, "card")
	payment := card.ContainingOneof()
	require.True(t, payment.IsValid())
	assert.Equal(t, "payment", payment.Name())
	assert.False(t, payment.IsSynthetic())
	assert.True(t, card.HasPresence())
	assert.Len(t, payment.Fields(), 2)

	notes := field(t, order, "note_count")
	assert.True(t, notes.ContainingOneof().IsSynthetic())
	assert.True(t, notes.HasPresence())

	created := field(t, order, "created")
	assert.Equal(t, "google.protobuf.Timestamp", created.Message().FullName())
	assert.True(t, created.HasPresence())

	status := field(t, order, "status")
	assert.Equal(t, desc.EnumKind, status.Kind())
	assert.False(t, status.Enum().IsClosed())
	paid, ok := pool.FindEnumValueByName("test.v1.Order.PAID")
	require.True(t, ok)
	assert.Equal(t, int32(1), paid.Number())
	assert.Equal(t, status.Enum(), paid.Enum())
	assert.Equal(t, "STATUS_UNSPECIFIED", status.Enum().DefaultValue().Name())

	byNum, ok := order.FindFieldByNumber(9)
	require.True(t, ok)
	assert.Equal(t, status, byNum)
	_, ok = order.FindFieldByNumber(10)
	assert.False(t, ok)
}

func TestBuild_Services(t *testing.T) {
	pool := buildTestPool(t)
	svc, ok := pool.FindServiceByName("test.v1.Shop")
	require.True(t, ok)
	require.Len(t, svc.Methods(), 4)
	order, _ := pool.FindMessageByName("test.v1.Order")

	testCases := []struct {
		name           string
		client, server bool
	}{
		{"Place", false, false},
		{"Watch", false, true},
		{"Upload", true, false},
		{"Chat", true, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mtd, ok := svc.FindMethodByName(tc.name)
			require.True(t, ok)
			assert.Equal(t, tc.client, mtd.IsClientStreaming())
			assert.Equal(t, tc.server, mtd.IsServerStreaming())
			assert.Equal(t, order, mtd.Input())
			assert.Equal(t, order, mtd.Output())
			assert.Equal(t, svc, mtd.Service())

			byName, ok := pool.FindMethodByName("test.v1.Shop." + tc.name)
			require.True(t, ok)
			assert.Equal(t, mtd, byName)
		})
	}
}

func TestBuild_Proto2(t *testing.T) {
	pool := buildTestPool(t)
	thing, ok := pool.FindMessageByName("legacy.Thing")
	require.True(t, ok)

	id := field(t, thing, "id")
	assert.True(t, id.IsRequired())
	assert.Equal(t, desc.Required, id.Cardinality())
	assert.False(t, id.HasDefault())
	assert.Nil(t, id.Default())

	assert.Equal(t, int32(-5), field(t, thing, "a").Default())
	assert.Equal(t, "hi", field(t, thing, "s").Default())
	assert.Equal(t, []byte{1, 'x'}, field(t, thing, "b").Default())
	assert.Equal(t, int32(1), field(t, thing, "c").Default())
	assert.True(t, field(t, thing, "c").Enum().IsClosed())
	assert.Equal(t, math.Inf(1), field(t, thing, "d").Default())
	assert.True(t, field(t, thing, "a").HasPresence())
	assert.False(t, field(t, thing, "s").ValidatesUTF8())

	assert.False(t, field(t, thing, "r").IsPacked())
	assert.True(t, field(t, thing, "p").IsPacked())

	grp := field(t, thing, "grp")
	assert.Equal(t, desc.GroupKind, grp.Kind())
	assert.Equal(t, "legacy.Thing.Grp", grp.Message().FullName())

	assert.Equal(t, [][2]int32{{100, 200}}, thing.ExtensionRanges())
	assert.True(t, thing.IsExtensionNumber(150))
	assert.False(t, thing.IsExtensionNumber(200))

	label, ok := pool.FindExtensionByNumber("legacy.Thing", 100)
	require.True(t, ok)
	assert.Equal(t, "legacy.label", label.FullName())
	assert.True(t, label.IsExtension())
	assert.Equal(t, thing, label.ContainingMessage())
	assert.Equal(t, []desc.FieldDescriptor{label}, pool.Extensions(thing))
	byName, ok := pool.FindExtensionByName("legacy.label")
	require.True(t, ok)
	assert.Equal(t, label, byName)
	// extensions are not normal fields
	_, ok = pool.FindFieldByName("legacy.label")
	assert.False(t, ok)
}

func TestBuild_Editions(t *testing.T) {
	pool := buildTestPool(t)
	e, ok := pool.FindMessageByName("ed.E")
	require.True(t, ok)
	assert.Equal(t, desc.Editions, e.File().Syntax())

	assert.True(t, field(t, e, "explicit").HasPresence())
	assert.False(t, field(t, e, "implicit").HasPresence())
	assert.True(t, field(t, e, "packed").IsPacked())
	assert.False(t, field(t, e, "expanded").IsPacked())
	assert.Equal(t, desc.GroupKind, field(t, e, "child").Kind())
	assert.True(t, field(t, e, "req").IsRequired())
}

func TestBuild_RoundTrip(t *testing.T) {
	pool := buildTestPool(t)
	b, err := proto.Marshal(pool.AsFileDescriptorSet())
	require.NoError(t, err)
	again, err := desc.Build(b)
	require.NoError(t, err)
	require.Len(t, again.Files(), len(pool.Files()))
	for i, fd := range pool.Files() {
		assert.Equal(t, fd.Name(), again.Files()[i].Name())
		assert.True(t, proto.Equal(fd.AsProto(), again.Files()[i].AsProto()))
	}

	// files come after their dependencies
	seen := map[string]bool{}
	for _, fd := range pool.Files() {
		for _, dep := range fd.Dependencies() {
			assert.True(t, seen[dep.Name()], "%s before %s", dep.Name(), fd.Name())
		}
		seen[fd.Name()] = true
	}
}

func file(name string, deps []string, msgs ...*descriptorpb.DescriptorProto) *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:        proto.String(name),
		Package:     proto.String("x"),
		Dependency:  deps,
		MessageType: msgs,
	}
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func messageField(name string, num int32, typeName string) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(num),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		TypeName: proto.String(typeName),
	}
}

func set(files ...*descriptorpb.FileDescriptorProto) *descriptorpb.FileDescriptorSet {
	return &descriptorpb.FileDescriptorSet{File: files}
}

func scalarField(name string, num int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(num),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func mapEntry(fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	entry := message("KvEntry", fields...)
	entry.Options = &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)}
	return entry
}

// mapHolder returns message M with the given entry nested in it and a field
// kv referring to that entry.
func mapHolder(entry *descriptorpb.DescriptorProto, label descriptorpb.FieldDescriptorProto_Label) *descriptorpb.DescriptorProto {
	kv := messageField("kv", 1, ".x.M.KvEntry")
	kv.Label = label.Enum()
	m := message("M", kv)
	m.NestedType = []*descriptorpb.DescriptorProto{entry}
	return m
}

func TestBuild_Errors(t *testing.T) {
	testCases := []struct {
		name string
		fds  *descriptorpb.FileDescriptorSet
		kind error
	}{
		{
			name: "missing import",
			fds:  set(file("b.proto", []string{"a.proto"}, message("B"))),
			kind: desc.ErrUnresolvedImport,
		},
		{
			name: "unresolved type",
			fds:  set(file("a.proto", nil, message("A", messageField("m", 1, ".x.Missing")))),
			kind: desc.ErrUnresolvedTypeReference,
		},
		{
			name: "duplicate message",
			fds: set(
				file("a.proto", nil, message("A")),
				file("b.proto", nil, message("A")),
			),
			kind: desc.ErrDuplicateName,
		},
		{
			name: "same name different contents",
			fds: set(
				file("a.proto", nil, message("A")),
				file("a.proto", nil, message("B")),
			),
			kind: desc.ErrDuplicateName,
		},
		{
			name: "import cycle",
			fds: set(
				file("a.proto", []string{"b.proto"}, message("A")),
				file("b.proto", []string{"a.proto"}, message("B")),
			),
			kind: desc.ErrMalformedDescriptor,
		},
		{
			name: "map entry without fields",
			fds:  set(file("a.proto", nil, mapHolder(mapEntry(), descriptorpb.FieldDescriptorProto_LABEL_REPEATED))),
			kind: desc.ErrMalformedDescriptor,
		},
		{
			name: "map entry with message key",
			fds: set(file("a.proto", nil, mapHolder(mapEntry(
				messageField("key", 1, ".x.M"),
				scalarField("value", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
			), descriptorpb.FieldDescriptorProto_LABEL_REPEATED))),
			kind: desc.ErrMalformedDescriptor,
		},
		{
			name: "map entry used by singular field",
			fds: set(file("a.proto", nil, mapHolder(mapEntry(
				scalarField("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalarField("value", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
			), descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL))),
			kind: desc.ErrMalformedDescriptor,
		},
		{
			name: "top-level map entry",
			fds: set(file("a.proto", nil, mapEntry(
				scalarField("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalarField("value", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
			))),
			kind: desc.ErrMalformedDescriptor,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pool, err := desc.BuildFromSet(tc.fds)
			require.ErrorIs(t, err, tc.kind)
			require.Nil(t, pool)
			var be *desc.BuildError
			require.True(t, errors.As(err, &be))
			assert.NotEmpty(t, be.File)
		})
	}

	_, err := desc.Build([]byte{0x0a, 0x05})
	require.ErrorIs(t, err, desc.ErrMalformedDescriptor)
}

func TestBuild_HandBuiltMap(t *testing.T) {
	pool, err := desc.BuildFromSet(set(file("a.proto", nil, mapHolder(mapEntry(
		scalarField("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		scalarField("value", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
	), descriptorpb.FieldDescriptorProto_LABEL_REPEATED))))
	require.NoError(t, err)
	m, ok := pool.FindMessageByName("x.M")
	require.True(t, ok)
	kv := field(t, m, "kv")
	assert.True(t, kv.IsMap())
	assert.Equal(t, desc.StringKind, kv.MapKey().Kind())
	assert.Equal(t, desc.Int32Kind, kv.MapValue().Kind())
}

func TestBuild_NameScoping(t *testing.T) {
	outer := func() *descriptorpb.DescriptorProto {
		m := message("Outer")
		m.NestedType = []*descriptorpb.DescriptorProto{message("Inner")}
		return m
	}

	// from N, Outer.Inner finds x.Outer.Inner
	n := message("N", messageField("f", 1, "Outer.Inner"))
	pool, err := desc.BuildFromSet(set(file("a.proto", nil, outer(), n)))
	require.NoError(t, err)
	nd, _ := pool.FindMessageByName("x.N")
	assert.Equal(t, "x.Outer.Inner", field(t, nd, "f").Message().FullName())

	// inside M, Outer binds to M.Outer, which has no Inner, and the search
	// does not continue to the enclosing scope
	m := message("M", messageField("f", 1, "Outer.Inner"))
	m.NestedType = []*descriptorpb.DescriptorProto{message("Outer")}
	_, err = desc.BuildFromSet(set(file("a.proto", nil, outer(), m)))
	require.ErrorIs(t, err, desc.ErrUnresolvedTypeReference)
}

func TestBuild_AnyFileOrder(t *testing.T) {
	pool, err := desc.BuildFromSet(set(
		file("b.proto", []string{"a.proto"}, message("B", messageField("a", 1, "A"))),
		file("a.proto", nil, message("A")),
		// repeated with identical contents
		file("a.proto", nil, message("A")),
	))
	require.NoError(t, err)
	b, _ := pool.FindMessageByName("x.B")
	a, _ := pool.FindMessageByName("x.A")
	assert.Equal(t, a, field(t, b, "a").Message())
	assert.Equal(t, "a.proto", pool.Files()[0].Name())
}

func extension(name string, num int32, extendee string) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(num),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum(),
		Extendee: proto.String(extendee),
	}
}

func extendable(name string) *descriptorpb.DescriptorProto {
	msg := message(name)
	msg.ExtensionRange = []*descriptorpb.DescriptorProto_ExtensionRange{
		{Start: proto.Int32(10), End: proto.Int32(20)},
	}
	return msg
}

func TestBuild_ExtensionErrors(t *testing.T) {
	outOfRange := file("b.proto", []string{"a.proto"})
	outOfRange.Extension = []*descriptorpb.FieldDescriptorProto{extension("e", 5, ".x.A")}
	_, err := desc.BuildFromSet(set(file("a.proto", nil, extendable("A")), outOfRange))
	require.ErrorIs(t, err, desc.ErrMalformedDescriptor)

	dup := file("b.proto", []string{"a.proto"})
	dup.Extension = []*descriptorpb.FieldDescriptorProto{extension("e1", 10, ".x.A"), extension("e2", 10, ".x.A")}
	_, err = desc.BuildFromSet(set(file("a.proto", nil, extendable("A")), dup))
	require.ErrorIs(t, err, desc.ErrDuplicateName)
}

func TestMerge_Atomic(t *testing.T) {
	pool, err := desc.BuildFromSet(set(file("a.proto", nil, extendable("A"))))
	require.NoError(t, err)
	a, _ := pool.FindMessageByName("x.A")

	good := file("c.proto", []string{"a.proto"}, message("C"))
	good.Extension = []*descriptorpb.FieldDescriptorProto{extension("ext", 10, ".x.A")}
	bad := file("d.proto", nil, message("D", messageField("m", 1, ".x.Missing")))
	err = pool.MergeSet(set(good, bad))
	require.ErrorIs(t, err, desc.ErrUnresolvedTypeReference)

	// nothing from the failed merge is visible
	require.Len(t, pool.Files(), 1)
	_, ok := pool.FindFileByName("c.proto")
	assert.False(t, ok)
	_, ok = pool.FindMessageByName("x.C")
	assert.False(t, ok)
	_, ok = pool.FindExtensionByNumber("x.A", 10)
	assert.False(t, ok)
	assert.Empty(t, pool.Extensions(a))

	// the same names can be added afterwards
	b, err := proto.Marshal(set(good))
	require.NoError(t, err)
	require.NoError(t, pool.Merge(b))
	c, ok := pool.FindMessageByName("x.C")
	require.True(t, ok)
	assert.Equal(t, "c.proto", c.File().Name())
	assert.Len(t, pool.Extensions(a), 1)
	// the existing handle is still valid
	assert.Equal(t, "x.A", a.FullName())
}

func TestMerge_DependsOnPool(t *testing.T) {
	pool, err := desc.BuildFromSet(set(file("a.proto", nil, message("A"))))
	require.NoError(t, err)

	err = pool.MergeSet(set(file("b.proto", []string{"a.proto"}, message("B", messageField("a", 1, ".x.A")))))
	require.NoError(t, err)
	b, ok := pool.FindMessageByName("x.B")
	require.True(t, ok)
	a, _ := pool.FindMessageByName("x.A")
	assert.Equal(t, a, field(t, b, "a").Message())
	assert.Equal(t, []desc.FileDescriptor{pool.Files()[0]}, b.File().Dependencies())

	// an identical copy of a file already in the pool is ignored
	require.NoError(t, pool.MergeSet(set(file("a.proto", nil, message("A")))))
	require.Len(t, pool.Files(), 2)

	err = pool.MergeSet(set(file("a.proto", nil, message("Other"))))
	require.ErrorIs(t, err, desc.ErrDuplicateName)
}

func TestPool_ConcurrentReaders(t *testing.T) {
	pool := buildTestPool(t)
	var grp errgroup.Group
	for i := 0; i < 8; i++ {
		grp.Go(func() error {
			for j := 0; j < 100; j++ {
				md, ok := pool.FindMessageByName("test.v1.Order.Item")
				if !ok {
					return errors.New("message not found")
				}
				for _, fd := range md.Fields() {
					if fd.Kind().IsMessage() && fd.Message().FullName() != "test.v1.Order" {
						return errors.New("wrong message type")
					}
				}
				if _, ok := pool.FindExtensionByNumber("legacy.Thing", 100); !ok {
					return errors.New("extension not found")
				}
			}
			return nil
		})
	}
	require.NoError(t, grp.Wait())
}

func TestJSONName(t *testing.T) {
	assert.Equal(t, "fooBar", desc.JSONName("foo_bar"))
	assert.Equal(t, "fooBar", desc.JSONName("fooBar"))
	assert.Equal(t, "foo", desc.JSONName("foo_"))
	assert.Equal(t, "FooBAR", desc.JSONName("Foo_b_a_r"))
}
