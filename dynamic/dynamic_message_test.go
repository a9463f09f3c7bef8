package dynamic_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhump/dynproto/dynamic"
)

func TestMessage_GetSetClear(t *testing.T) {
	s := loadSchema(t)
	m := s.newMessage(t, "dyntest.Holder")
	name := field(t, m.Descriptor(), "name")

	v, ok := m.GetField(name)
	assert.False(t, ok)
	assert.False(t, v.IsValid())
	assert.Equal(t, "", m.GetFieldOrDefault(name).String())
	assert.False(t, m.HasField(name))

	m.SetField(name, dynamic.ValueOfString("widget"))
	v, ok = m.GetFieldByNumber(1)
	require.True(t, ok)
	assert.Equal(t, "widget", v.String())
	assert.True(t, m.HasFieldByName("name"))

	// implicit presence: the zero value is the same as unset
	m.SetFieldByName("name", dynamic.ValueOfString(""))
	assert.False(t, m.HasField(name))

	// explicit presence keeps zero values
	m.SetFieldByName("maybe", dynamic.ValueOfInt32(0))
	assert.True(t, m.HasFieldByName("maybe"))
	m.ClearFieldByName("maybe")
	assert.False(t, m.HasFieldByName("maybe"))

	m.SetFieldByNumber(12, dynamic.ValueOfEnum(2))
	assert.Equal(t, int32(2), m.GetFieldOrDefaultByName("color").Enum())
	// enum numbers without a name are kept
	m.SetFieldByNumber(12, dynamic.ValueOfEnum(42))
	assert.Equal(t, int32(42), m.GetFieldOrDefaultByNumber(12).Enum())

	child := m.GetFieldOrDefaultByName("child").Message()
	assert.Equal(t, "dyntest.Holder", child.Descriptor().FullName())
	assert.False(t, m.HasFieldByName("child"), "default value must not mark the field present")
}

func TestMessage_FindFieldDescriptorByName(t *testing.T) {
	s := loadSchema(t)
	m := s.newMessage(t, "dyntest.Holder")

	byName, ok := m.FindFieldDescriptorByName("display_name")
	require.True(t, ok)
	byJSON, ok := m.FindFieldDescriptorByName("displayName")
	require.True(t, ok)
	assert.Equal(t, byName, byJSON)
	_, ok = m.FindFieldDescriptorByName("nope")
	assert.False(t, ok)

	req := s.newMessage(t, "dynlegacy.Req")
	for _, name := range []string{"[dynlegacy.ext_num]", "(dynlegacy.ext_num)", "dynlegacy.ext_num"} {
		fd, ok := req.FindFieldDescriptorByName(name)
		require.True(t, ok, name)
		assert.Equal(t, int32(100), fd.Number())
		assert.True(t, fd.IsExtension())
	}
	// extensions of other messages are not fields of this one
	_, ok = m.FindFieldDescriptorByName("[dynlegacy.ext_num]")
	assert.False(t, ok)

	fd, ok := req.FindFieldDescriptor(101)
	require.True(t, ok)
	assert.Equal(t, "dynlegacy.ext_tags", fd.FullName())
}

func TestMessage_Oneof(t *testing.T) {
	s := loadSchema(t)
	m := s.newMessage(t, "dyntest.Holder")
	text := field(t, m.Descriptor(), "text")
	number := field(t, m.Descriptor(), "number")
	choice := text.ContainingOneof()

	_, ok := m.WhichOneof(choice)
	assert.False(t, ok)

	m.SetField(text, dynamic.ValueOfString("hello"))
	which, ok := m.WhichOneof(choice)
	require.True(t, ok)
	assert.Equal(t, text, which)

	// setting another member clears the first
	m.SetField(number, dynamic.ValueOfInt64(0))
	which, ok = m.WhichOneof(choice)
	require.True(t, ok)
	assert.Equal(t, number, which)
	assert.False(t, m.HasField(text))
	assert.True(t, m.HasField(number), "oneof members have presence")

	m.SetFieldByName("point", dynamic.ValueOfMessage(point(t, s, 1, 2)))
	assert.False(t, m.HasField(number))
	which, _ = m.WhichOneof(choice)
	assert.Equal(t, "point", which.Name())

	m.ClearFieldByName("point")
	_, ok = m.WhichOneof(choice)
	assert.False(t, ok)

	maybe := field(t, m.Descriptor(), "maybe")
	m.SetField(maybe, dynamic.ValueOfInt32(3))
	which, ok = m.WhichOneof(maybe.ContainingOneof())
	require.True(t, ok)
	assert.Equal(t, maybe, which)

	other := s.newMessage(t, "dyntest.Point")
	_, _, err := other.TryWhichOneof(choice)
	require.ErrorIs(t, err, dynamic.ErrWrongMessageType)
}

func TestMessage_Errors(t *testing.T) {
	s := loadSchema(t)
	m := s.newMessage(t, "dyntest.Holder")

	err := m.TrySetFieldByName("name", dynamic.ValueOfInt32(1))
	require.ErrorIs(t, err, dynamic.ErrTypeMismatch)
	var fe *dynamic.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "dyntest.Holder", fe.Message)
	assert.Equal(t, "name", fe.Field)

	_, _, err = m.TryGetFieldByName("bogus")
	require.ErrorIs(t, err, dynamic.ErrUnknownFieldName)
	_, _, err = m.TryGetFieldByNumber(99)
	require.ErrorIs(t, err, dynamic.ErrUnknownFieldNumber)

	x := field(t, s.message(t, "dyntest.Point"), "x")
	_, _, err = m.TryGetField(x)
	require.ErrorIs(t, err, dynamic.ErrWrongMessageType)

	// message values must have the field's type
	err = m.TrySetFieldByName("child", dynamic.ValueOfMessage(point(t, s, 1, 1)))
	require.ErrorIs(t, err, dynamic.ErrWrongMessageType)

	err = m.TrySetFieldByName("packed", dynamic.ValueOfInt32(1))
	require.ErrorIs(t, err, dynamic.ErrTypeMismatch)
	err = m.TrySetFieldByName("packed", dynamic.ValueOfList([]dynamic.Value{dynamic.ValueOfString("x")}))
	require.ErrorIs(t, err, dynamic.ErrTypeMismatch)
	assert.False(t, m.HasFieldByName("packed"))

	require.Panics(t, func() {
		m.SetFieldByName("bogus", dynamic.ValueOfString("x"))
	})
	require.Panics(t, func() {
		m.GetField(x)
	})
}

func TestMessage_Repeated(t *testing.T) {
	s := loadSchema(t)
	m := s.newMessage(t, "dyntest.Holder")
	packed := field(t, m.Descriptor(), "packed")

	for i := int32(1); i <= 3; i++ {
		m.AddRepeatedField(packed, dynamic.ValueOfInt32(i))
	}
	assert.Equal(t, 3, m.FieldLen(packed))
	assert.Equal(t, int32(2), m.GetRepeatedField(packed, 1).Int32())

	m.SetRepeatedField(packed, 1, dynamic.ValueOfInt32(20))
	assert.Equal(t, int32(20), m.GetRepeatedFieldByNumber(2, 1).Int32())

	_, err := m.TryGetRepeatedField(packed, 3)
	require.ErrorIs(t, err, dynamic.ErrIndexOutOfRange)
	require.ErrorIs(t, m.TrySetRepeatedField(packed, -1, dynamic.ValueOfInt32(0)), dynamic.ErrIndexOutOfRange)
	require.ErrorIs(t, m.TryAddRepeatedField(packed, dynamic.ValueOfInt64(4)), dynamic.ErrTypeMismatch)
	require.ErrorIs(t, m.TryAddRepeatedFieldByNumber(1, dynamic.ValueOfString("x")), dynamic.ErrFieldNotRepeated)
	_, err = m.TryFieldLenByNumber(1)
	require.ErrorIs(t, err, dynamic.ErrFieldNotRepeated)

	list := m.GetFieldOrDefault(packed).List()
	require.Len(t, list, 3)
	assert.Equal(t, []int32{1, 20, 3}, []int32{list[0].Int32(), list[1].Int32(), list[2].Int32()})

	// an empty list clears the field
	m.SetField(packed, dynamic.ValueOfList(nil))
	assert.False(t, m.HasField(packed))
	assert.Equal(t, 0, m.FieldLen(packed))
}

func TestMessage_Map(t *testing.T) {
	s := loadSchema(t)
	m := s.newMessage(t, "dyntest.Holder")
	labels := field(t, m.Descriptor(), "labels")
	one := dynamic.ValueOfInt32(1).MapKey()

	_, ok := m.GetMapField(labels, one)
	assert.False(t, ok)

	m.PutMapField(labels, one, dynamic.ValueOfString("one"))
	m.PutMapFieldByNumber(5, dynamic.ValueOfInt32(2).MapKey(), dynamic.ValueOfString("two"))
	// a second put with the same key replaces the first
	m.PutMapField(labels, one, dynamic.ValueOfString("uno"))
	assert.Equal(t, 2, m.FieldLen(labels))
	v, ok := m.GetMapFieldByNumber(5, one)
	require.True(t, ok)
	assert.Equal(t, "uno", v.String())

	err := m.TryPutMapField(labels, dynamic.ValueOfString("1").MapKey(), dynamic.ValueOfString("x"))
	require.ErrorIs(t, err, dynamic.ErrTypeMismatch)
	err = m.TryPutMapField(labels, one, dynamic.ValueOfInt32(1))
	require.ErrorIs(t, err, dynamic.ErrTypeMismatch)
	err = m.TryPutMapFieldByNumber(2, one, dynamic.ValueOfInt32(1))
	require.ErrorIs(t, err, dynamic.ErrFieldNotMap)

	m.RemoveMapField(labels, one)
	m.RemoveMapFieldByNumber(5, dynamic.ValueOfInt32(2).MapKey())
	assert.False(t, m.HasField(labels))

	points := field(t, m.Descriptor(), "points")
	m.PutMapField(points, dynamic.ValueOfString("origin").MapKey(), dynamic.ValueOfMessage(point(t, s, 0, 0)))
	mp := m.GetFieldOrDefault(points).Map()
	require.Len(t, mp, 1)
	for k, v := range mp {
		assert.Equal(t, "origin", k.String())
		assert.Equal(t, "dyntest.Point", v.Message().Descriptor().FullName())
	}
}

func TestMessage_Defaults(t *testing.T) {
	s := loadSchema(t)
	req := s.newMessage(t, "dynlegacy.Req")
	assert.Equal(t, "n/a", req.GetFieldOrDefaultByName("note").String())
	assert.False(t, req.HasFieldByName("note"))
	assert.Equal(t, int32(0), req.GetFieldOrDefaultByName("id").Int32())
	// proto2 scalars have presence, so zero values stick
	req.SetFieldByName("id", dynamic.ValueOfInt32(0))
	assert.True(t, req.HasFieldByName("id"))

	h := s.newMessage(t, "dyntest.Holder")
	assert.Equal(t, int32(0), h.GetFieldOrDefaultByName("color").Enum())
	assert.Empty(t, h.GetFieldOrDefaultByName("tags").List())
	assert.Empty(t, h.GetFieldOrDefaultByName("labels").Map())
}

func TestMessage_Extensions(t *testing.T) {
	s := loadSchema(t)
	req := s.newMessage(t, "dynlegacy.Req")
	req.SetFieldByName("[dynlegacy.ext_num]", dynamic.ValueOfInt32(5))
	req.AddRepeatedFieldByNumber(101, dynamic.ValueOfString("a"))

	v, ok := req.GetFieldByNumber(100)
	require.True(t, ok)
	assert.Equal(t, int32(5), v.Int32())
	assert.Equal(t, 1, req.FieldLenByNumber(101))

	ext, ok := s.pool.FindExtensionByName("dynlegacy.ext_num")
	require.True(t, ok)
	assert.True(t, req.HasField(ext))
	req.ClearField(ext)
	assert.False(t, req.HasFieldByNumber(100))
}

func TestMessage_CloneResetEqual(t *testing.T) {
	s := loadSchema(t)
	m := s.newMessage(t, "dyntest.Holder")
	m.SetFieldByName("name", dynamic.ValueOfString("a"))
	m.SetFieldByName("text", dynamic.ValueOfString("t"))
	m.AddRepeatedFieldByNumber(11, dynamic.ValueOfMessage(point(t, s, 1, 2)))

	c := m.Clone()
	assert.True(t, dynamic.Equal(m, c))
	c.GetRepeatedFieldByNumber(11, 0).Message().SetFieldByName("x", dynamic.ValueOfInt32(9))
	assert.Equal(t, int32(1), m.GetRepeatedFieldByNumber(11, 0).Message().GetFieldOrDefaultByName("x").Int32())
	assert.False(t, dynamic.Equal(m, c))

	// the clone keeps track of the oneof
	c.SetFieldByName("number", dynamic.ValueOfInt64(1))
	assert.False(t, c.HasFieldByName("text"))
	assert.True(t, m.HasFieldByName("text"))

	c.Reset()
	assert.True(t, dynamic.Equal(c, s.newMessage(t, "dyntest.Holder")))
	assert.False(t, dynamic.Equal(c, s.newMessage(t, "dyntest.Point")))
	assert.False(t, dynamic.Equal(c, nil))
	assert.True(t, dynamic.Equal(nil, nil))
}

func TestMessage_SetFieldCopiesContainers(t *testing.T) {
	s := loadSchema(t)
	m1 := s.newMessage(t, "dyntest.Holder")
	labels := field(t, m1.Descriptor(), "labels")
	packed := field(t, m1.Descriptor(), "packed")
	m1.PutMapField(labels, dynamic.ValueOfInt32(1).MapKey(), dynamic.ValueOfString("a"))
	m1.AddRepeatedField(packed, dynamic.ValueOfInt32(1))

	m2 := s.newMessage(t, "dyntest.Holder")
	v, ok := m1.GetField(labels)
	require.True(t, ok)
	m2.SetField(labels, v)
	l, ok := m1.GetField(packed)
	require.True(t, ok)
	m2.SetField(packed, l)

	m2.PutMapField(labels, dynamic.ValueOfInt32(2).MapKey(), dynamic.ValueOfString("b"))
	m2.AddRepeatedField(packed, dynamic.ValueOfInt32(2))
	m2.SetRepeatedField(packed, 0, dynamic.ValueOfInt32(9))
	assert.Equal(t, 1, m1.FieldLen(labels))
	assert.Equal(t, 1, m1.FieldLen(packed))
	assert.Equal(t, int32(1), m1.GetRepeatedField(packed, 0).Int32())

	m2.RemoveMapField(labels, dynamic.ValueOfInt32(1).MapKey())
	got, ok := m1.GetMapField(labels, dynamic.ValueOfInt32(1).MapKey())
	require.True(t, ok)
	assert.Equal(t, "a", got.String())
	assert.Equal(t, 1, m2.FieldLen(labels))
}

func TestMessage_Validate(t *testing.T) {
	s := loadSchema(t)
	req := s.newMessage(t, "dynlegacy.Req")

	requireMissing := func(path string) {
		t.Helper()
		err := req.Validate()
		require.ErrorIs(t, err, dynamic.ErrRequiredNotSet)
		var fe *dynamic.FieldError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, path, fe.Field)
		_, err = dynamic.MarshalOptions{CheckRequired: true}.Marshal(req)
		require.ErrorIs(t, err, dynamic.ErrRequiredNotSet)
	}

	requireMissing("id")
	req.SetFieldByName("id", dynamic.ValueOfInt32(1))
	require.NoError(t, req.Validate())

	child := s.newMessage(t, "dynlegacy.Req")
	req.SetFieldByName("child", dynamic.ValueOfMessage(child))
	requireMissing("child.id")
	child.SetFieldByName("id", dynamic.ValueOfInt32(2))

	good := s.newMessage(t, "dynlegacy.Req")
	good.SetFieldByName("id", dynamic.ValueOfInt32(3))
	req.AddRepeatedFieldByNumber(3, dynamic.ValueOfMessage(good))
	req.AddRepeatedFieldByNumber(3, dynamic.ValueOfMessage(s.newMessage(t, "dynlegacy.Req")))
	requireMissing("items[1].id")

	b, err := req.Marshal()
	require.NoError(t, err)
	assert.NotEmpty(t, b)
}

func TestValue(t *testing.T) {
	testCases := []struct {
		in   any
		kind dynamic.ValueKind
	}{
		{true, dynamic.BoolValue},
		{int32(-1), dynamic.Int32Value},
		{int64(-1), dynamic.Int64Value},
		{uint32(1), dynamic.Uint32Value},
		{uint64(1), dynamic.Uint64Value},
		{float32(1.5), dynamic.Float32Value},
		{float64(1.5), dynamic.Float64Value},
		{"s", dynamic.StringValue},
		{[]byte("b"), dynamic.BytesValue},
		{[]dynamic.Value{dynamic.ValueOfInt32(1)}, dynamic.ListValue},
		{map[dynamic.MapKey]dynamic.Value{}, dynamic.MapValue},
	}
	for _, tc := range testCases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			v := dynamic.ValueOf(tc.in)
			assert.Equal(t, tc.kind, v.Kind())
			assert.Equal(t, tc.in, v.Interface())
			assert.True(t, v.Equal(dynamic.ValueOf(tc.in)))
		})
	}

	assert.Panics(t, func() { dynamic.ValueOf(1) })
	assert.Panics(t, func() { dynamic.ValueOfString("x").Int32() })
	assert.Panics(t, func() { dynamic.ValueOfFloat64(1).MapKey() })
	assert.False(t, dynamic.Value{}.IsValid())
	assert.Equal(t, "7", dynamic.ValueOfInt64(7).String())

	// NaN equals NaN for the purpose of message comparison
	nan := dynamic.ValueOfFloat64(zero() / zero())
	assert.True(t, nan.Equal(nan))
	assert.False(t, dynamic.ValueOfInt32(1).Equal(dynamic.ValueOfInt64(1)))

	k := dynamic.ValueOfUint64(5).MapKey()
	assert.Equal(t, dynamic.Uint64Value, k.Kind())
	assert.Equal(t, uint64(5), k.Value().Uint64())
}

func zero() float64 { return 0 }
