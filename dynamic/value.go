package dynamic

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/jhump/dynproto/desc"
)

// ValueKind identifies which variant a Value holds.
type ValueKind int8

const (
	InvalidValue ValueKind = iota
	BoolValue
	Int32Value
	Int64Value
	Uint32Value
	Uint64Value
	Float32Value
	Float64Value
	StringValue
	BytesValue
	EnumValue
	MessageValue
	ListValue
	MapValue
)

var valueKindNames = [...]string{
	InvalidValue: "invalid",
	BoolValue:    "bool",
	Int32Value:   "int32",
	Int64Value:   "int64",
	Uint32Value:  "uint32",
	Uint64Value:  "uint64",
	Float32Value: "float32",
	Float64Value: "float64",
	StringValue:  "string",
	BytesValue:   "bytes",
	EnumValue:    "enum",
	MessageValue: "message",
	ListValue:    "list",
	MapValue:     "map",
}

func (k ValueKind) String() string {
	if int(k) >= 0 && int(k) < len(valueKindNames) {
		return valueKindNames[k]
	}
	return fmt.Sprintf("ValueKind(%d)", int8(k))
}

// Value is the value of a field. It holds exactly one of the kinds
// enumerated by ValueKind. The zero Value is invalid.
//
// Values of kind ListValue and MapValue are the values of repeated and
// map fields; their elements are never themselves lists or maps. A Value
// shares its underlying bytes or message with whoever created it. Lists
// and maps are copied when set on a message, but their elements are not.
type Value struct {
	kind ValueKind
	// scalar payload: bool as 0/1, signed integers sign-extended,
	// floats as IEEE 754 bits
	num uint64
	str string
	// []byte, *Message, []Value, or map[MapKey]Value
	ref any
}

// ValueOfBool returns a value holding a bool.
func ValueOfBool(v bool) Value {
	if v {
		return Value{kind: BoolValue, num: 1}
	}
	return Value{kind: BoolValue}
}

// ValueOfInt32 returns a value holding an int32.
func ValueOfInt32(v int32) Value {
	return Value{kind: Int32Value, num: uint64(int64(v))}
}

// ValueOfInt64 returns a value holding an int64.
func ValueOfInt64(v int64) Value {
	return Value{kind: Int64Value, num: uint64(v)}
}

// ValueOfUint32 returns a value holding a uint32.
func ValueOfUint32(v uint32) Value {
	return Value{kind: Uint32Value, num: uint64(v)}
}

// ValueOfUint64 returns a value holding a uint64.
func ValueOfUint64(v uint64) Value {
	return Value{kind: Uint64Value, num: v}
}

// ValueOfFloat32 returns a value holding a float32.
func ValueOfFloat32(v float32) Value {
	return Value{kind: Float32Value, num: uint64(math.Float32bits(v))}
}

// ValueOfFloat64 returns a value holding a float64.
func ValueOfFloat64(v float64) Value {
	return Value{kind: Float64Value, num: math.Float64bits(v)}
}

// ValueOfString returns a value holding a string.
func ValueOfString(v string) Value {
	return Value{kind: StringValue, str: v}
}

// ValueOfBytes returns a value holding a byte slice.
func ValueOfBytes(v []byte) Value {
	return Value{kind: BytesValue, ref: v}
}

// ValueOfEnum returns a value holding the given enum number. The number
// need not correspond to a named value of the enum.
func ValueOfEnum(v int32) Value {
	return Value{kind: EnumValue, num: uint64(int64(v))}
}

// ValueOfMessage returns a value holding the given message, which must not
// be nil.
func ValueOfMessage(v *Message) Value {
	return Value{kind: MessageValue, ref: v}
}

// ValueOfList returns a value for a repeated field. Each element must be
// of the field's element kind.
func ValueOfList(v []Value) Value {
	return Value{kind: ListValue, ref: v}
}

// ValueOfMap returns a value for a map field.
func ValueOfMap(v map[MapKey]Value) Value {
	return Value{kind: MapValue, ref: v}
}

// ValueOf returns a Value for the given Go value, which must be one of
// bool, int32, int64, uint32, uint64, float32, float64, string, []byte,
// *Message, []Value, map[MapKey]Value, or a Value. It panics for any other
// type.
func ValueOf(v any) Value {
	switch v := v.(type) {
	case Value:
		return v
	case bool:
		return ValueOfBool(v)
	case int32:
		return ValueOfInt32(v)
	case int64:
		return ValueOfInt64(v)
	case uint32:
		return ValueOfUint32(v)
	case uint64:
		return ValueOfUint64(v)
	case float32:
		return ValueOfFloat32(v)
	case float64:
		return ValueOfFloat64(v)
	case string:
		return ValueOfString(v)
	case []byte:
		return ValueOfBytes(v)
	case *Message:
		return ValueOfMessage(v)
	case []Value:
		return ValueOfList(v)
	case map[MapKey]Value:
		return ValueOfMap(v)
	default:
		panic(fmt.Sprintf("invalid type for dynamic.Value: %T", v))
	}
}

// Kind returns the kind of v.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsValid returns false for the zero Value.
func (v Value) IsValid() bool {
	return v.kind != InvalidValue
}

func (v Value) mustBe(k ValueKind) {
	if v.kind != k {
		panic(fmt.Sprintf("dynamic.Value: %v accessed as %v", v.kind, k))
	}
}

// Bool returns the bool held by v. It panics if v's kind
// is not BoolValue.
func (v Value) Bool() bool {
	v.mustBe(BoolValue)
	return v.num != 0
}

// Int32 returns the int32 held by v. It panics if v's kind
// is not Int32Value.
func (v Value) Int32() int32 {
	v.mustBe(Int32Value)
	return int32(int64(v.num))
}

// Int64 returns the int64 held by v. It panics if v's kind
// is not Int64Value.
func (v Value) Int64() int64 {
	v.mustBe(Int64Value)
	return int64(v.num)
}

// Uint32 returns the uint32 held by v. It panics if v's kind
// is not Uint32Value.
func (v Value) Uint32() uint32 {
	v.mustBe(Uint32Value)
	return uint32(v.num)
}

// Uint64 returns the uint64 held by v. It panics if v's kind
// is not Uint64Value.
func (v Value) Uint64() uint64 {
	v.mustBe(Uint64Value)
	return v.num
}

// Float32 returns the float32 held by v. It panics if v's kind
// is not Float32Value.
func (v Value) Float32() float32 {
	v.mustBe(Float32Value)
	return math.Float32frombits(uint32(v.num))
}

// Float64 returns the float64 held by v. It panics if v's kind
// is not Float64Value.
func (v Value) Float64() float64 {
	v.mustBe(Float64Value)
	return math.Float64frombits(v.num)
}

// String returns the string held by a StringValue. For every other kind it
// returns a formatted representation, so that Value implements
// fmt.Stringer.
func (v Value) String() string {
	if v.kind == StringValue {
		return v.str
	}
	return v.format()
}

// Bytes returns the byte slice held by v. It panics if v's kind
// is not BytesValue.
func (v Value) Bytes() []byte {
	v.mustBe(BytesValue)
	b, _ := v.ref.([]byte)
	return b
}

// Enum returns the enum number held by v. It panics if v's kind
// is not EnumValue.
func (v Value) Enum() int32 {
	v.mustBe(EnumValue)
	return int32(int64(v.num))
}

// Message returns the message held by v. It panics if v's kind
// is not MessageValue.
func (v Value) Message() *Message {
	v.mustBe(MessageValue)
	return v.ref.(*Message)
}

// List returns the list of elements held by v. It panics if v's kind
// is not ListValue.
func (v Value) List() []Value {
	v.mustBe(ListValue)
	l, _ := v.ref.([]Value)
	return l
}

// Map returns the map entries held by v. It panics if v's kind
// is not MapValue.
func (v Value) Map() map[MapKey]Value {
	v.mustBe(MapValue)
	m, _ := v.ref.(map[MapKey]Value)
	return m
}

// Interface returns the value as the Go type that ValueOf accepts for its
// kind. Invalid values return nil.
func (v Value) Interface() any {
	switch v.kind {
	case BoolValue:
		return v.Bool()
	case Int32Value:
		return v.Int32()
	case Int64Value:
		return v.Int64()
	case Uint32Value:
		return v.Uint32()
	case Uint64Value:
		return v.Uint64()
	case Float32Value:
		return v.Float32()
	case Float64Value:
		return v.Float64()
	case StringValue:
		return v.str
	case BytesValue:
		return v.Bytes()
	case EnumValue:
		return v.Enum()
	case MessageValue:
		return v.Message()
	case ListValue:
		return v.List()
	case MapValue:
		return v.Map()
	default:
		return nil
	}
}

// MapKey converts the value to a map key. It panics if the value's kind
// cannot be used as a map key: only bool, integer, and string kinds can.
func (v Value) MapKey() MapKey {
	switch v.kind {
	case BoolValue, Int32Value, Int64Value, Uint32Value, Uint64Value, StringValue:
		return MapKey{kind: v.kind, num: v.num, str: v.str}
	default:
		panic(fmt.Sprintf("dynamic.Value: %v cannot be a map key", v.kind))
	}
}

// Equal reports whether two values are deeply equal. Messages are compared
// with Equal. Floating point NaNs are equal to each other.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case InvalidValue:
		return true
	case Float32Value:
		x, y := v.Float32(), o.Float32()
		if x != x || y != y {
			return x != x && y != y
		}
		return x == y
	case Float64Value:
		x, y := v.Float64(), o.Float64()
		if math.IsNaN(x) || math.IsNaN(y) {
			return math.IsNaN(x) && math.IsNaN(y)
		}
		return x == y
	case StringValue:
		return v.str == o.str
	case BytesValue:
		return bytes.Equal(v.Bytes(), o.Bytes())
	case MessageValue:
		return Equal(v.Message(), o.Message())
	case ListValue:
		a, b := v.List(), o.List()
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case MapValue:
		a, b := v.Map(), o.Map()
		if len(a) != len(b) {
			return false
		}
		for k, av := range a {
			bv, ok := b[k]
			if !ok || !av.Equal(bv) {
				return false
			}
		}
		return true
	default:
		return v.num == o.num
	}
}

func (v Value) format() string {
	switch v.kind {
	case InvalidValue:
		return "<invalid>"
	case BoolValue:
		return strconv.FormatBool(v.Bool())
	case Int32Value, Int64Value, EnumValue:
		return strconv.FormatInt(int64(v.num), 10)
	case Uint32Value, Uint64Value:
		return strconv.FormatUint(v.num, 10)
	case Float32Value:
		return strconv.FormatFloat(float64(v.Float32()), 'g', -1, 32)
	case Float64Value:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case BytesValue:
		return fmt.Sprintf("%q", v.Bytes())
	case MessageValue:
		return v.Message().String()
	case ListValue:
		return fmt.Sprint(v.List())
	case MapValue:
		m := v.Map()
		keys := sortedKeys(m)
		var buf bytes.Buffer
		buf.WriteString("map[")
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(' ')
			}
			fmt.Fprintf(&buf, "%v:%v", k, m[k])
		}
		buf.WriteByte(']')
		return buf.String()
	default:
		return v.str
	}
}

// MapKey is the key of a map field's entry. It is comparable, so it can be
// used as a Go map key. Its zero value is invalid.
type MapKey struct {
	kind ValueKind
	num  uint64
	str  string
}

// Kind returns the kind of the key.
func (k MapKey) Kind() ValueKind {
	return k.kind
}

// Value converts the key back to a Value.
func (k MapKey) Value() Value {
	return Value{kind: k.kind, num: k.num, str: k.str}
}

func (k MapKey) String() string {
	return k.Value().String()
}

// less orders keys the way the deterministic binary encoding and the JSON
// encoding emit them: false before true, integers numerically, strings by
// byte order.
func (k MapKey) less(o MapKey) bool {
	switch k.kind {
	case Int32Value, Int64Value:
		return int64(k.num) < int64(o.num)
	case StringValue:
		return k.str < o.str
	default:
		return k.num < o.num
	}
}

func sortedKeys(m map[MapKey]Value) []MapKey {
	keys := make([]MapKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].less(keys[j])
	})
	return keys
}

// valueKindFor returns the kind of Value used for a single element of a
// field of the given kind.
func valueKindFor(k desc.Kind) ValueKind {
	switch k {
	case desc.BoolKind:
		return BoolValue
	case desc.Int32Kind, desc.Sint32Kind, desc.Sfixed32Kind:
		return Int32Value
	case desc.Int64Kind, desc.Sint64Kind, desc.Sfixed64Kind:
		return Int64Value
	case desc.Uint32Kind, desc.Fixed32Kind:
		return Uint32Value
	case desc.Uint64Kind, desc.Fixed64Kind:
		return Uint64Value
	case desc.FloatKind:
		return Float32Value
	case desc.DoubleKind:
		return Float64Value
	case desc.StringKind:
		return StringValue
	case desc.BytesKind:
		return BytesValue
	case desc.EnumKind:
		return EnumValue
	case desc.MessageKind, desc.GroupKind:
		return MessageValue
	default:
		return InvalidValue
	}
}

// zeroValue returns the default for a single element of the given field:
// the declared default if there is one, else the zero value of its kind.
// Message fields produce a new, empty message.
func zeroValue(fd desc.FieldDescriptor) Value {
	if fd.HasDefault() {
		switch d := fd.Default().(type) {
		case bool:
			return ValueOfBool(d)
		case int32:
			if fd.Kind() == desc.EnumKind {
				return ValueOfEnum(d)
			}
			return ValueOfInt32(d)
		case int64:
			return ValueOfInt64(d)
		case uint32:
			return ValueOfUint32(d)
		case uint64:
			return ValueOfUint64(d)
		case float32:
			return ValueOfFloat32(d)
		case float64:
			return ValueOfFloat64(d)
		case string:
			return ValueOfString(d)
		case []byte:
			return ValueOfBytes(append([]byte(nil), d...))
		}
	}
	switch fd.Kind() {
	case desc.EnumKind:
		return ValueOfEnum(fd.Enum().DefaultValue().Number())
	case desc.MessageKind, desc.GroupKind:
		return ValueOfMessage(NewMessage(fd.Message()))
	case desc.BytesKind:
		return ValueOfBytes(nil)
	default:
		return Value{kind: valueKindFor(fd.Kind())}
	}
}

// isZero reports whether a singular scalar value is the zero value of its
// kind. Negative zero is not zero, matching how it is encoded.
func (v Value) isZero() bool {
	switch v.kind {
	case StringValue:
		return v.str == ""
	case BytesValue:
		return len(v.Bytes()) == 0
	case MessageValue, ListValue, MapValue:
		return false
	default:
		return v.num == 0
	}
}
