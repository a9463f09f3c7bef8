// Package dynamic provides an implementation of protocol buffer messages
// whose types are described at runtime by descriptors from a desc.Pool,
// instead of by generated code.
//
// A Message holds only the fields that have been set, keyed by field
// number, plus the raw bytes of any fields it did not recognize while
// decoding. It can be encoded to and decoded from the binary format and the
// canonical JSON format.
//
// Most accessors come in two forms: one that returns an error (named with a
// "Try" prefix) and one that panics instead. The panicking forms are handy
// when the caller knows the field is valid, for example because it came
// from the message's own descriptor.
package dynamic

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jhump/dynproto/desc"
)

// Message is a dynamic protocol buffer message. Instances are not safe for
// concurrent mutation.
type Message struct {
	md      desc.MessageDescriptor
	values  map[int32]Value
	unknown []UnknownField
	// oneof -> number of the member that is set
	oneofs map[desc.OneofDescriptor]int32
}

// UnknownField is a field encountered while decoding whose number the
// message's type does not recognize.
type UnknownField struct {
	Number   protowire.Number
	WireType protowire.Type
	// Raw holds the field's tag followed by its value, exactly as they
	// appeared in the input.
	Raw []byte
}

// NewMessage creates a new, empty message of the given type.
func NewMessage(md desc.MessageDescriptor) *Message {
	if !md.IsValid() {
		panic("dynamic: NewMessage called with invalid message descriptor")
	}
	return &Message{md: md}
}

// Descriptor returns the message's type.
func (m *Message) Descriptor() desc.MessageDescriptor {
	return m.md
}

// FindFieldDescriptor returns the field or extension of this message's
// type with the given number.
func (m *Message) FindFieldDescriptor(num int32) (desc.FieldDescriptor, bool) {
	if fd, ok := m.md.FindFieldByNumber(num); ok {
		return fd, true
	}
	return m.md.FindExtensionByNumber(num)
}

// FindFieldDescriptorByName returns the field with the given name. The
// declared name and the JSON name are both accepted. Extensions are found
// by their fully-qualified name, optionally enclosed in brackets or
// parentheses, as in "[foo.bar.ext]".
func (m *Message) FindFieldDescriptorByName(name string) (desc.FieldDescriptor, bool) {
	if fd, ok := m.md.FindFieldByName(name); ok {
		return fd, true
	}
	if fd, ok := m.md.FindFieldByJSONName(name); ok {
		return fd, true
	}
	extName := name
	if n := len(name); n > 2 && ((name[0] == '[' && name[n-1] == ']') || (name[0] == '(' && name[n-1] == ')')) {
		extName = name[1 : n-1]
	}
	if fd, ok := m.md.Pool().FindExtensionByName(extName); ok && fd.ContainingMessage() == m.md {
		return fd, true
	}
	return desc.FieldDescriptor{}, false
}

func (m *Message) checkField(fd desc.FieldDescriptor) error {
	if !fd.IsValid() {
		return m.fieldError("", ErrUnknownFieldName)
	}
	if fd.ContainingMessage() != m.md {
		return m.fieldError(fd.Name(), fmt.Errorf("%w: field belongs to %s", ErrWrongMessageType, fd.ContainingMessage().FullName()))
	}
	return nil
}

func (m *Message) fieldByNumber(num int32) (desc.FieldDescriptor, error) {
	fd, ok := m.FindFieldDescriptor(num)
	if !ok {
		return desc.FieldDescriptor{}, m.fieldError(strconv.Itoa(int(num)), ErrUnknownFieldNumber)
	}
	return fd, nil
}

func (m *Message) fieldByName(name string) (desc.FieldDescriptor, error) {
	fd, ok := m.FindFieldDescriptorByName(name)
	if !ok {
		return desc.FieldDescriptor{}, m.fieldError(name, ErrUnknownFieldName)
	}
	return fd, nil
}

// GetField returns the value of the given field and whether it is present.
// It panics if the field does not belong to this message's type.
func (m *Message) GetField(fd desc.FieldDescriptor) (Value, bool) {
	v, ok, err := m.TryGetField(fd)
	if err != nil {
		panic(err)
	}
	return v, ok
}

// TryGetField returns the value of the given field and whether it is
// present. Absent fields return an invalid Value and false.
func (m *Message) TryGetField(fd desc.FieldDescriptor) (Value, bool, error) {
	if err := m.checkField(fd); err != nil {
		return Value{}, false, err
	}
	v, ok := m.values[fd.Number()]
	return v, ok, nil
}

// GetFieldByNumber is like GetField, but identifies the field by number.
func (m *Message) GetFieldByNumber(num int32) (Value, bool) {
	v, ok, err := m.TryGetFieldByNumber(num)
	if err != nil {
		panic(err)
	}
	return v, ok
}

// TryGetFieldByNumber is like GetFieldByNumber, but returns an error instead of panicking.
func (m *Message) TryGetFieldByNumber(num int32) (Value, bool, error) {
	fd, err := m.fieldByNumber(num)
	if err != nil {
		return Value{}, false, err
	}
	v, ok := m.values[fd.Number()]
	return v, ok, nil
}

// GetFieldByName is like GetField, but identifies the field by name. The
// name may also be a JSON name or a bracketed extension name.
func (m *Message) GetFieldByName(name string) (Value, bool) {
	v, ok, err := m.TryGetFieldByName(name)
	if err != nil {
		panic(err)
	}
	return v, ok
}

// TryGetFieldByName is like GetFieldByName, but returns an error instead of panicking.
func (m *Message) TryGetFieldByName(name string) (Value, bool, error) {
	fd, err := m.fieldByName(name)
	if err != nil {
		return Value{}, false, err
	}
	v, ok := m.values[fd.Number()]
	return v, ok, nil
}

// GetFieldOrDefault returns the value of the given field, or its default
// if it is absent. The default is the declared default, if any, or else the
// zero value for the field's kind: an empty list or map for repeated
// fields and a new empty message for message fields. Returning a default
// never marks the field as present.
func (m *Message) GetFieldOrDefault(fd desc.FieldDescriptor) Value {
	v, err := m.TryGetFieldOrDefault(fd)
	if err != nil {
		panic(err)
	}
	return v
}

// TryGetFieldOrDefault is like GetFieldOrDefault, but returns an error instead of panicking.
func (m *Message) TryGetFieldOrDefault(fd desc.FieldDescriptor) (Value, error) {
	if err := m.checkField(fd); err != nil {
		return Value{}, err
	}
	return m.getFieldOrDefault(fd), nil
}

// GetFieldOrDefaultByNumber is like GetFieldOrDefault, but identifies the field by number.
func (m *Message) GetFieldOrDefaultByNumber(num int32) Value {
	v, err := m.TryGetFieldOrDefaultByNumber(num)
	if err != nil {
		panic(err)
	}
	return v
}

// TryGetFieldOrDefaultByNumber is like GetFieldOrDefaultByNumber, but returns an error instead of panicking.
func (m *Message) TryGetFieldOrDefaultByNumber(num int32) (Value, error) {
	fd, err := m.fieldByNumber(num)
	if err != nil {
		return Value{}, err
	}
	return m.getFieldOrDefault(fd), nil
}

// GetFieldOrDefaultByName is like GetFieldOrDefault, but identifies the field by name. The
// name may also be a JSON name or a bracketed extension name.
func (m *Message) GetFieldOrDefaultByName(name string) Value {
	v, err := m.TryGetFieldOrDefaultByName(name)
	if err != nil {
		panic(err)
	}
	return v
}

// TryGetFieldOrDefaultByName is like GetFieldOrDefaultByName, but returns an error instead of panicking.
func (m *Message) TryGetFieldOrDefaultByName(name string) (Value, error) {
	fd, err := m.fieldByName(name)
	if err != nil {
		return Value{}, err
	}
	return m.getFieldOrDefault(fd), nil
}

func (m *Message) getFieldOrDefault(fd desc.FieldDescriptor) Value {
	if v, ok := m.values[fd.Number()]; ok {
		return v
	}
	switch {
	case fd.IsMap():
		return ValueOfMap(nil)
	case fd.IsRepeated():
		return ValueOfList(nil)
	default:
		return zeroValue(fd)
	}
}

// HasField returns true if the given field is present.
func (m *Message) HasField(fd desc.FieldDescriptor) bool {
	ok, err := m.TryHasField(fd)
	if err != nil {
		panic(err)
	}
	return ok
}

// TryHasField is like HasField, but returns an error instead of panicking.
func (m *Message) TryHasField(fd desc.FieldDescriptor) (bool, error) {
	if err := m.checkField(fd); err != nil {
		return false, err
	}
	_, ok := m.values[fd.Number()]
	return ok, nil
}

// HasFieldByNumber is like HasField, but identifies the field by number.
func (m *Message) HasFieldByNumber(num int32) bool {
	ok, err := m.TryHasFieldByNumber(num)
	if err != nil {
		panic(err)
	}
	return ok
}

// TryHasFieldByNumber is like HasFieldByNumber, but returns an error instead of panicking.
func (m *Message) TryHasFieldByNumber(num int32) (bool, error) {
	fd, err := m.fieldByNumber(num)
	if err != nil {
		return false, err
	}
	_, ok := m.values[fd.Number()]
	return ok, nil
}

// HasFieldByName is like HasField, but identifies the field by name. The
// name may also be a JSON name or a bracketed extension name.
func (m *Message) HasFieldByName(name string) bool {
	ok, err := m.TryHasFieldByName(name)
	if err != nil {
		panic(err)
	}
	return ok
}

// TryHasFieldByName is like HasFieldByName, but returns an error instead of panicking.
func (m *Message) TryHasFieldByName(name string) (bool, error) {
	fd, err := m.fieldByName(name)
	if err != nil {
		return false, err
	}
	_, ok := m.values[fd.Number()]
	return ok, nil
}

// SetField sets the value of the given field. The value must match the
// field's type: a ListValue for repeated fields, a MapValue for map fields,
// and otherwise a value of the kind that corresponds to the field's kind.
// Setting a member of a oneof clears whichever other member was set.
// Setting a field without presence to its zero value, or a repeated field
// to an empty list, clears it.
func (m *Message) SetField(fd desc.FieldDescriptor, v Value) {
	if err := m.TrySetField(fd, v); err != nil {
		panic(err)
	}
}

// TrySetField is like SetField, but returns an error instead of panicking.
func (m *Message) TrySetField(fd desc.FieldDescriptor, v Value) error {
	if err := m.checkField(fd); err != nil {
		return err
	}
	return m.setField(fd, v)
}

// SetFieldByNumber is like SetField, but identifies the field by number.
func (m *Message) SetFieldByNumber(num int32, v Value) {
	if err := m.TrySetFieldByNumber(num, v); err != nil {
		panic(err)
	}
}

// TrySetFieldByNumber is like SetFieldByNumber, but returns an error instead of panicking.
func (m *Message) TrySetFieldByNumber(num int32, v Value) error {
	fd, err := m.fieldByNumber(num)
	if err != nil {
		return err
	}
	return m.setField(fd, v)
}

// SetFieldByName is like SetField, but identifies the field by name. The
// name may also be a JSON name or a bracketed extension name.
func (m *Message) SetFieldByName(name string, v Value) {
	if err := m.TrySetFieldByName(name, v); err != nil {
		panic(err)
	}
}

// TrySetFieldByName is like SetFieldByName, but returns an error instead of panicking.
func (m *Message) TrySetFieldByName(name string, v Value) error {
	fd, err := m.fieldByName(name)
	if err != nil {
		return err
	}
	return m.setField(fd, v)
}

func (m *Message) setField(fd desc.FieldDescriptor, v Value) error {
	if err := checkFieldValue(fd, v); err != nil {
		return m.fieldError(fd.Name(), err)
	}
	m.internalSetField(fd, copyContainer(v))
	return nil
}

// copyContainer returns v with its list or map copied, so the message does
// not share a container with the caller. Elements are not copied.
func copyContainer(v Value) Value {
	switch v.kind {
	case ListValue:
		return ValueOfList(append([]Value(nil), v.List()...))
	case MapValue:
		mp := make(map[MapKey]Value, len(v.Map()))
		for k, e := range v.Map() {
			mp[k] = e
		}
		return ValueOfMap(mp)
	default:
		return v
	}
}

// internalSetField stores a value that is already known to be valid for
// the field.
func (m *Message) internalSetField(fd desc.FieldDescriptor, v Value) {
	if isEmpty(fd, v) {
		m.clearField(fd)
		return
	}
	if m.values == nil {
		m.values = map[int32]Value{}
	}
	num := fd.Number()
	m.values[num] = v
	if od := fd.ContainingOneof(); od.IsValid() {
		if prev, ok := m.oneofs[od]; ok && prev != num {
			delete(m.values, prev)
		}
		if m.oneofs == nil {
			m.oneofs = map[desc.OneofDescriptor]int32{}
		}
		m.oneofs[od] = num
	}
}

// isEmpty reports whether storing v for fd is the same as clearing it.
func isEmpty(fd desc.FieldDescriptor, v Value) bool {
	switch {
	case fd.IsMap():
		return len(v.Map()) == 0
	case fd.IsRepeated():
		return len(v.List()) == 0
	case fd.HasPresence():
		return false
	default:
		return v.isZero()
	}
}

// ClearField removes the given field, so that it is no longer present.
func (m *Message) ClearField(fd desc.FieldDescriptor) {
	if err := m.TryClearField(fd); err != nil {
		panic(err)
	}
}

// TryClearField is like ClearField, but returns an error instead of panicking.
func (m *Message) TryClearField(fd desc.FieldDescriptor) error {
	if err := m.checkField(fd); err != nil {
		return err
	}
	m.clearField(fd)
	return nil
}

// ClearFieldByNumber is like ClearField, but identifies the field by number.
func (m *Message) ClearFieldByNumber(num int32) {
	if err := m.TryClearFieldByNumber(num); err != nil {
		panic(err)
	}
}

// TryClearFieldByNumber is like ClearFieldByNumber, but returns an error instead of panicking.
func (m *Message) TryClearFieldByNumber(num int32) error {
	fd, err := m.fieldByNumber(num)
	if err != nil {
		return err
	}
	m.clearField(fd)
	return nil
}

// ClearFieldByName is like ClearField, but identifies the field by name. The
// name may also be a JSON name or a bracketed extension name.
func (m *Message) ClearFieldByName(name string) {
	if err := m.TryClearFieldByName(name); err != nil {
		panic(err)
	}
}

// TryClearFieldByName is like ClearFieldByName, but returns an error instead of panicking.
func (m *Message) TryClearFieldByName(name string) error {
	fd, err := m.fieldByName(name)
	if err != nil {
		return err
	}
	m.clearField(fd)
	return nil
}

func (m *Message) clearField(fd desc.FieldDescriptor) {
	num := fd.Number()
	delete(m.values, num)
	if od := fd.ContainingOneof(); od.IsValid() {
		if m.oneofs[od] == num {
			delete(m.oneofs, od)
		}
	}
}

// WhichOneof returns the member of the given oneof that is set, if any.
func (m *Message) WhichOneof(od desc.OneofDescriptor) (desc.FieldDescriptor, bool) {
	fd, ok, err := m.TryWhichOneof(od)
	if err != nil {
		panic(err)
	}
	return fd, ok
}

// TryWhichOneof is like WhichOneof, but returns an error instead of panicking.
func (m *Message) TryWhichOneof(od desc.OneofDescriptor) (desc.FieldDescriptor, bool, error) {
	if !od.IsValid() || od.ContainingMessage() != m.md {
		return desc.FieldDescriptor{}, false, m.fieldError(od.Name(), ErrWrongMessageType)
	}
	num, ok := m.oneofs[od]
	if !ok {
		return desc.FieldDescriptor{}, false, nil
	}
	fd, _ := m.md.FindFieldByNumber(num)
	return fd, true, nil
}

// FieldLen returns the number of elements in the given repeated or map
// field.
func (m *Message) FieldLen(fd desc.FieldDescriptor) int {
	n, err := m.TryFieldLen(fd)
	if err != nil {
		panic(err)
	}
	return n
}

// TryFieldLen is like FieldLen, but returns an error instead of panicking.
func (m *Message) TryFieldLen(fd desc.FieldDescriptor) (int, error) {
	if err := m.checkField(fd); err != nil {
		return 0, err
	}
	return m.fieldLen(fd)
}

// FieldLenByNumber is like FieldLen, but identifies the field by number.
func (m *Message) FieldLenByNumber(num int32) int {
	n, err := m.TryFieldLenByNumber(num)
	if err != nil {
		panic(err)
	}
	return n
}

// TryFieldLenByNumber is like FieldLenByNumber, but returns an error instead of panicking.
func (m *Message) TryFieldLenByNumber(num int32) (int, error) {
	fd, err := m.fieldByNumber(num)
	if err != nil {
		return 0, err
	}
	return m.fieldLen(fd)
}

func (m *Message) fieldLen(fd desc.FieldDescriptor) (int, error) {
	if !fd.IsRepeated() {
		return 0, m.fieldError(fd.Name(), ErrFieldNotRepeated)
	}
	v, ok := m.values[fd.Number()]
	if !ok {
		return 0, nil
	}
	if fd.IsMap() {
		return len(v.Map()), nil
	}
	return len(v.List()), nil
}

// GetRepeatedField returns the element at the given index of a repeated,
// non-map field.
func (m *Message) GetRepeatedField(fd desc.FieldDescriptor, index int) Value {
	v, err := m.TryGetRepeatedField(fd, index)
	if err != nil {
		panic(err)
	}
	return v
}

// TryGetRepeatedField is like GetRepeatedField, but returns an error instead of panicking.
func (m *Message) TryGetRepeatedField(fd desc.FieldDescriptor, index int) (Value, error) {
	if err := m.checkField(fd); err != nil {
		return Value{}, err
	}
	return m.getRepeatedField(fd, index)
}

// GetRepeatedFieldByNumber is like GetRepeatedField, but identifies the field by number.
func (m *Message) GetRepeatedFieldByNumber(num int32, index int) Value {
	v, err := m.TryGetRepeatedFieldByNumber(num, index)
	if err != nil {
		panic(err)
	}
	return v
}

// TryGetRepeatedFieldByNumber is like GetRepeatedFieldByNumber, but returns an error instead of panicking.
func (m *Message) TryGetRepeatedFieldByNumber(num int32, index int) (Value, error) {
	fd, err := m.fieldByNumber(num)
	if err != nil {
		return Value{}, err
	}
	return m.getRepeatedField(fd, index)
}

func (m *Message) getRepeatedField(fd desc.FieldDescriptor, index int) (Value, error) {
	if fd.IsMap() || !fd.IsRepeated() {
		return Value{}, m.fieldError(fd.Name(), ErrFieldNotRepeated)
	}
	l := m.values[fd.Number()]
	var list []Value
	if l.IsValid() {
		list = l.List()
	}
	if index < 0 || index >= len(list) {
		return Value{}, m.fieldError(fd.Name(), ErrIndexOutOfRange)
	}
	return list[index], nil
}

// SetRepeatedField replaces the element at the given index of a repeated,
// non-map field.
func (m *Message) SetRepeatedField(fd desc.FieldDescriptor, index int, v Value) {
	if err := m.TrySetRepeatedField(fd, index, v); err != nil {
		panic(err)
	}
}

// TrySetRepeatedField is like SetRepeatedField, but returns an error instead of panicking.
func (m *Message) TrySetRepeatedField(fd desc.FieldDescriptor, index int, v Value) error {
	if err := m.checkField(fd); err != nil {
		return err
	}
	return m.setRepeatedField(fd, index, v)
}

// SetRepeatedFieldByNumber is like SetRepeatedField, but identifies the field by number.
func (m *Message) SetRepeatedFieldByNumber(num int32, index int, v Value) {
	if err := m.TrySetRepeatedFieldByNumber(num, index, v); err != nil {
		panic(err)
	}
}

// TrySetRepeatedFieldByNumber is like SetRepeatedFieldByNumber, but returns an error instead of panicking.
func (m *Message) TrySetRepeatedFieldByNumber(num int32, index int, v Value) error {
	fd, err := m.fieldByNumber(num)
	if err != nil {
		return err
	}
	return m.setRepeatedField(fd, index, v)
}

func (m *Message) setRepeatedField(fd desc.FieldDescriptor, index int, v Value) error {
	if _, err := m.getRepeatedField(fd, index); err != nil {
		return err
	}
	if err := checkElement(fd, v); err != nil {
		return m.fieldError(fd.Name(), err)
	}
	old := m.values[fd.Number()].List()
	list := make([]Value, len(old))
	copy(list, old)
	list[index] = v
	m.values[fd.Number()] = ValueOfList(list)
	return nil
}

// AddRepeatedField appends an element to a repeated, non-map field.
func (m *Message) AddRepeatedField(fd desc.FieldDescriptor, v Value) {
	if err := m.TryAddRepeatedField(fd, v); err != nil {
		panic(err)
	}
}

// TryAddRepeatedField is like AddRepeatedField, but returns an error instead of panicking.
func (m *Message) TryAddRepeatedField(fd desc.FieldDescriptor, v Value) error {
	if err := m.checkField(fd); err != nil {
		return err
	}
	return m.addRepeatedField(fd, v)
}

// AddRepeatedFieldByNumber is like AddRepeatedField, but identifies the field by number.
func (m *Message) AddRepeatedFieldByNumber(num int32, v Value) {
	if err := m.TryAddRepeatedFieldByNumber(num, v); err != nil {
		panic(err)
	}
}

// TryAddRepeatedFieldByNumber is like AddRepeatedFieldByNumber, but returns an error instead of panicking.
func (m *Message) TryAddRepeatedFieldByNumber(num int32, v Value) error {
	fd, err := m.fieldByNumber(num)
	if err != nil {
		return err
	}
	return m.addRepeatedField(fd, v)
}

func (m *Message) addRepeatedField(fd desc.FieldDescriptor, v Value) error {
	if fd.IsMap() || !fd.IsRepeated() {
		return m.fieldError(fd.Name(), ErrFieldNotRepeated)
	}
	if err := checkElement(fd, v); err != nil {
		return m.fieldError(fd.Name(), err)
	}
	m.appendElement(fd, v)
	return nil
}

func (m *Message) appendElement(fd desc.FieldDescriptor, v Value) {
	var list []Value
	if l, ok := m.values[fd.Number()]; ok {
		list = l.List()
	}
	if m.values == nil {
		m.values = map[int32]Value{}
	}
	m.values[fd.Number()] = ValueOfList(append(list, v))
}

// GetMapField returns the value for the given key in a map field, and
// whether the key is present.
func (m *Message) GetMapField(fd desc.FieldDescriptor, key MapKey) (Value, bool) {
	v, ok, err := m.TryGetMapField(fd, key)
	if err != nil {
		panic(err)
	}
	return v, ok
}

// TryGetMapField is like GetMapField, but returns an error instead of panicking.
func (m *Message) TryGetMapField(fd desc.FieldDescriptor, key MapKey) (Value, bool, error) {
	if err := m.checkField(fd); err != nil {
		return Value{}, false, err
	}
	return m.getMapField(fd, key)
}

// GetMapFieldByNumber is like GetMapField, but identifies the field by number.
func (m *Message) GetMapFieldByNumber(num int32, key MapKey) (Value, bool) {
	v, ok, err := m.TryGetMapFieldByNumber(num, key)
	if err != nil {
		panic(err)
	}
	return v, ok
}

// TryGetMapFieldByNumber is like GetMapFieldByNumber, but returns an error instead of panicking.
func (m *Message) TryGetMapFieldByNumber(num int32, key MapKey) (Value, bool, error) {
	fd, err := m.fieldByNumber(num)
	if err != nil {
		return Value{}, false, err
	}
	return m.getMapField(fd, key)
}

func (m *Message) getMapField(fd desc.FieldDescriptor, key MapKey) (Value, bool, error) {
	if err := m.checkMapKey(fd, key); err != nil {
		return Value{}, false, err
	}
	mp, ok := m.values[fd.Number()]
	if !ok {
		return Value{}, false, nil
	}
	v, ok := mp.Map()[key]
	return v, ok, nil
}

func (m *Message) checkMapKey(fd desc.FieldDescriptor, key MapKey) error {
	if !fd.IsMap() {
		return m.fieldError(fd.Name(), ErrFieldNotMap)
	}
	if want := valueKindFor(fd.MapKey().Kind()); key.kind != want {
		return m.fieldError(fd.Name(), fmt.Errorf("%w: map key should be %v, got %v", ErrTypeMismatch, want, key.kind))
	}
	return nil
}

// PutMapField stores a value for the given key in a map field, replacing
// any value already present for that key.
func (m *Message) PutMapField(fd desc.FieldDescriptor, key MapKey, v Value) {
	if err := m.TryPutMapField(fd, key, v); err != nil {
		panic(err)
	}
}

// TryPutMapField is like PutMapField, but returns an error instead of panicking.
func (m *Message) TryPutMapField(fd desc.FieldDescriptor, key MapKey, v Value) error {
	if err := m.checkField(fd); err != nil {
		return err
	}
	return m.putMapField(fd, key, v)
}

// PutMapFieldByNumber is like PutMapField, but identifies the field by number.
func (m *Message) PutMapFieldByNumber(num int32, key MapKey, v Value) {
	if err := m.TryPutMapFieldByNumber(num, key, v); err != nil {
		panic(err)
	}
}

// TryPutMapFieldByNumber is like PutMapFieldByNumber, but returns an error instead of panicking.
func (m *Message) TryPutMapFieldByNumber(num int32, key MapKey, v Value) error {
	fd, err := m.fieldByNumber(num)
	if err != nil {
		return err
	}
	return m.putMapField(fd, key, v)
}

func (m *Message) putMapField(fd desc.FieldDescriptor, key MapKey, v Value) error {
	if err := m.checkMapKey(fd, key); err != nil {
		return err
	}
	if err := checkElement(fd.MapValue(), v); err != nil {
		return m.fieldError(fd.Name(), err)
	}
	m.putMapEntry(fd, key, v)
	return nil
}

func (m *Message) putMapEntry(fd desc.FieldDescriptor, key MapKey, v Value) {
	var mp map[MapKey]Value
	if existing, ok := m.values[fd.Number()]; ok {
		mp = existing.Map()
	} else {
		mp = map[MapKey]Value{}
		if m.values == nil {
			m.values = map[int32]Value{}
		}
		m.values[fd.Number()] = ValueOfMap(mp)
	}
	mp[key] = v
}

// RemoveMapField removes the given key from a map field.
func (m *Message) RemoveMapField(fd desc.FieldDescriptor, key MapKey) {
	if err := m.TryRemoveMapField(fd, key); err != nil {
		panic(err)
	}
}

// TryRemoveMapField is like RemoveMapField, but returns an error instead of panicking.
func (m *Message) TryRemoveMapField(fd desc.FieldDescriptor, key MapKey) error {
	if err := m.checkField(fd); err != nil {
		return err
	}
	return m.removeMapField(fd, key)
}

// RemoveMapFieldByNumber is like RemoveMapField, but identifies the field by number.
func (m *Message) RemoveMapFieldByNumber(num int32, key MapKey) {
	if err := m.TryRemoveMapFieldByNumber(num, key); err != nil {
		panic(err)
	}
}

// TryRemoveMapFieldByNumber is like RemoveMapFieldByNumber, but returns an error instead of panicking.
func (m *Message) TryRemoveMapFieldByNumber(num int32, key MapKey) error {
	fd, err := m.fieldByNumber(num)
	if err != nil {
		return err
	}
	return m.removeMapField(fd, key)
}

func (m *Message) removeMapField(fd desc.FieldDescriptor, key MapKey) error {
	if err := m.checkMapKey(fd, key); err != nil {
		return err
	}
	existing, ok := m.values[fd.Number()]
	if !ok {
		return nil
	}
	mp := existing.Map()
	delete(mp, key)
	if len(mp) == 0 {
		delete(m.values, fd.Number())
	}
	return nil
}

// checkFieldValue verifies that v may be stored for fd.
func checkFieldValue(fd desc.FieldDescriptor, v Value) error {
	switch {
	case fd.IsMap():
		if v.kind != MapValue {
			return fmt.Errorf("%w: map field needs %v, got %v", ErrTypeMismatch, MapValue, v.kind)
		}
		keyKind := valueKindFor(fd.MapKey().Kind())
		vfd := fd.MapValue()
		for k, e := range v.Map() {
			if k.kind != keyKind {
				return fmt.Errorf("%w: map key should be %v, got %v", ErrTypeMismatch, keyKind, k.kind)
			}
			if err := checkElement(vfd, e); err != nil {
				return err
			}
		}
		return nil
	case fd.IsRepeated():
		if v.kind != ListValue {
			return fmt.Errorf("%w: repeated field needs %v, got %v", ErrTypeMismatch, ListValue, v.kind)
		}
		for _, e := range v.List() {
			if err := checkElement(fd, e); err != nil {
				return err
			}
		}
		return nil
	default:
		return checkElement(fd, v)
	}
}

// checkElement verifies that v is a valid singular value, or list element,
// for fd.
func checkElement(fd desc.FieldDescriptor, v Value) error {
	want := valueKindFor(fd.Kind())
	if v.kind != want {
		return fmt.Errorf("%w: should be %v, got %v", ErrTypeMismatch, want, v.kind)
	}
	if want == MessageValue {
		msg, _ := v.ref.(*Message)
		if msg == nil {
			return fmt.Errorf("%w: message value is nil", ErrTypeMismatch)
		}
		if msg.md != fd.Message() {
			return fmt.Errorf("%w: should be %s, got %s", ErrWrongMessageType, fd.Message().FullName(), msg.md.FullName())
		}
	}
	return nil
}

// UnknownFields returns the fields that were not recognized when this
// message was decoded, in the order they were encountered.
func (m *Message) UnknownFields() []UnknownField {
	if len(m.unknown) == 0 {
		return nil
	}
	return append([]UnknownField(nil), m.unknown...)
}

// ClearUnknownFields discards all unrecognized fields.
func (m *Message) ClearUnknownFields() {
	m.unknown = nil
}

// Reset clears all fields, leaving an empty message of the same type.
func (m *Message) Reset() {
	m.values = nil
	m.unknown = nil
	m.oneofs = nil
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	c := &Message{md: m.md}
	if len(m.values) > 0 {
		c.values = make(map[int32]Value, len(m.values))
		for num, v := range m.values {
			c.values[num] = cloneValue(v)
		}
	}
	for _, u := range m.unknown {
		c.unknown = append(c.unknown, UnknownField{Number: u.Number, WireType: u.WireType, Raw: append([]byte(nil), u.Raw...)})
	}
	if len(m.oneofs) > 0 {
		c.oneofs = make(map[desc.OneofDescriptor]int32, len(m.oneofs))
		for od, num := range m.oneofs {
			c.oneofs[od] = num
		}
	}
	return c
}

func cloneValue(v Value) Value {
	switch v.kind {
	case BytesValue:
		return ValueOfBytes(append([]byte(nil), v.Bytes()...))
	case MessageValue:
		return ValueOfMessage(v.Message().Clone())
	case ListValue:
		l := v.List()
		c := make([]Value, len(l))
		for i, e := range l {
			c[i] = cloneValue(e)
		}
		return ValueOfList(c)
	case MapValue:
		mp := v.Map()
		c := make(map[MapKey]Value, len(mp))
		for k, e := range mp {
			c[k] = cloneValue(e)
		}
		return ValueOfMap(c)
	default:
		return v
	}
}

// setNumbers returns the numbers of all present fields, in ascending order.
func (m *Message) setNumbers() []int32 {
	nums := make([]int32, 0, len(m.values))
	for num := range m.values {
		nums = append(nums, num)
	}
	sort.Slice(nums, func(i, j int) bool {
		return nums[i] < nums[j]
	})
	return nums
}

// Validate checks that all required fields are present, in this message
// and in every message nested within it. The returned error wraps
// ErrRequiredNotSet and names the path to the first missing field.
func (m *Message) Validate() error {
	if path := m.missingRequired(""); path != "" {
		return m.fieldError(path, ErrRequiredNotSet)
	}
	return nil
}

func (m *Message) missingRequired(prefix string) string {
	for _, fd := range m.md.Fields() {
		if fd.IsRequired() {
			if _, ok := m.values[fd.Number()]; !ok {
				return prefix + fd.Name()
			}
		}
	}
	for _, num := range m.setNumbers() {
		fd, _ := m.FindFieldDescriptor(num)
		v := m.values[num]
		name := prefix + fd.Name()
		if fd.IsExtension() {
			name = prefix + "[" + fd.FullName() + "]"
		}
		switch {
		case fd.IsMap():
			if fd.MapValue().Kind().IsMessage() {
				mp := v.Map()
				for _, k := range sortedKeys(mp) {
					if p := mp[k].Message().missingRequired(fmt.Sprintf("%s[%v].", name, k)); p != "" {
						return p
					}
				}
			}
		case fd.Kind().IsMessage() && fd.IsRepeated():
			for i, e := range v.List() {
				if p := e.Message().missingRequired(fmt.Sprintf("%s[%d].", name, i)); p != "" {
					return p
				}
			}
		case fd.Kind().IsMessage():
			if p := v.Message().missingRequired(name + "."); p != "" {
				return p
			}
		}
	}
	return ""
}

// String returns the message in compact JSON form.
func (m *Message) String() string {
	b, err := m.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s: %v>", m.md.FullName(), err)
	}
	return string(b)
}

func fieldPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	if strings.HasPrefix(name, "[") {
		return prefix + name
	}
	return prefix + "." + name
}
