package dynamic

// JSON marshalling and unmarshalling for dynamic messages

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/joeycumines/go-utilpkg/jsonenc"

	"github.com/jhump/dynproto/codec"
	"github.com/jhump/dynproto/desc"
)

// MarshalJSONOptions configures conversion of a message to JSON.
type MarshalJSONOptions struct {
	// Indent produces multi-line output, indented two spaces per level.
	Indent bool
	// EmitDefaults includes fields that are not present, using their
	// default values. Unset message fields and unset proto2 scalars are
	// written as null. Unset oneof members and extensions are still
	// omitted.
	EmitDefaults bool
	// UseProtoNames names fields by their declared names instead of their
	// JSON names.
	UseProtoNames bool
	// UseEnumNumbers writes enum values as numbers instead of names.
	UseEnumNumbers bool
}

// MarshalJSON serializes the message to the canonical JSON form for
// protocol buffers. The output is compact.
func (m *Message) MarshalJSON() ([]byte, error) {
	return m.MarshalJSONWithOptions(MarshalJSONOptions{})
}

// MarshalJSONIndent is like MarshalJSON, but the output is indented.
func (m *Message) MarshalJSONIndent() ([]byte, error) {
	return m.MarshalJSONWithOptions(MarshalJSONOptions{Indent: true})
}

// MarshalJSONWithOptions serializes the message to JSON, configured by the
// given options.
func (m *Message) MarshalJSONWithOptions(opts MarshalJSONOptions) ([]byte, error) {
	b := indentBuffer{indent: -1}
	if opts.Indent {
		b.indent = 0
	}
	e := jsonEncoder{b: &b, opts: opts}
	if err := e.marshalMessage(m, ""); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

type jsonEncoder struct {
	b     *indentBuffer
	opts  MarshalJSONOptions
	depth int
}

// enter counts one more level of message nesting, failing past
// DefaultRecursionLimit, the same limit the decoder applies by default.
func (e *jsonEncoder) enter(path string) error {
	e.depth++
	if e.depth > DefaultRecursionLimit {
		return &JSONError{Path: path, Err: codec.ErrRecursionLimit}
	}
	return nil
}

func (e *jsonEncoder) marshalMessage(m *Message, path string) error {
	defer func() { e.depth-- }()
	if err := e.enter(path); err != nil {
		return err
	}
	if handled, err := e.marshalWellKnown(m, path); handled {
		return err
	}
	e.b.WriteByte('{')
	first := true
	if err := e.marshalFields(m, path, &first); err != nil {
		return err
	}
	e.b.close(first, '}')
	return nil
}

// marshalFields writes the fields of m as members of an object that the
// caller has already opened. Regular fields come first in declaration
// order, then extensions sorted by name.
func (e *jsonEncoder) marshalFields(m *Message, path string, first *bool) error {
	for _, fd := range m.md.Fields() {
		v, ok := m.values[fd.Number()]
		if !ok {
			if !e.opts.EmitDefaults || fd.ContainingOneof().IsValid() {
				continue
			}
			v = m.getFieldOrDefault(fd)
			if !fd.IsRepeated() && (fd.Kind().IsMessage() || fd.File().Syntax() == desc.Proto2) {
				v = Value{}
			}
		}
		name := fd.JSONName()
		if e.opts.UseProtoNames {
			name = fd.Name()
		}
		e.b.next(first)
		e.b.writeName(name)
		if err := e.marshalField(fd, v, fieldPath(path, name)); err != nil {
			return err
		}
	}

	var exts []desc.FieldDescriptor
	for num := range m.values {
		if fd, ok := m.md.FindExtensionByNumber(num); ok {
			exts = append(exts, fd)
		}
	}
	sort.Slice(exts, func(i, j int) bool {
		return exts[i].FullName() < exts[j].FullName()
	})
	for _, fd := range exts {
		name := "[" + fd.FullName() + "]"
		e.b.next(first)
		e.b.writeName(name)
		if err := e.marshalField(fd, m.values[fd.Number()], fieldPath(path, name)); err != nil {
			return err
		}
	}
	return nil
}

// marshalField writes a field value. An invalid value is written as null.
func (e *jsonEncoder) marshalField(fd desc.FieldDescriptor, v Value, path string) error {
	switch {
	case !v.IsValid():
		e.b.WriteString("null")
		return nil
	case fd.IsMap():
		vfd := fd.MapValue()
		mp := v.Map()
		e.b.WriteByte('{')
		first := true
		for _, k := range sortedKeys(mp) {
			key := k.String()
			e.b.next(&first)
			e.b.writeName(key)
			if err := e.marshalElement(vfd, mp[k], path+"["+key+"]"); err != nil {
				return err
			}
		}
		e.b.close(first, '}')
		return nil
	case fd.IsRepeated():
		e.b.WriteByte('[')
		first := true
		for i, elem := range v.List() {
			e.b.next(&first)
			if err := e.marshalElement(fd, elem, path+"["+strconv.Itoa(i)+"]"); err != nil {
				return err
			}
		}
		e.b.close(first, ']')
		return nil
	default:
		return e.marshalElement(fd, v, path)
	}
}

func (e *jsonEncoder) marshalElement(fd desc.FieldDescriptor, v Value, path string) error {
	b := e.b
	switch fd.Kind() {
	case desc.MessageKind, desc.GroupKind:
		return e.marshalMessage(v.Message(), path)
	case desc.EnumKind:
		ed := fd.Enum()
		if ed.FullName() == "google.protobuf.NullValue" {
			b.WriteString("null")
			return nil
		}
		if !e.opts.UseEnumNumbers {
			if vd, ok := ed.FindValueByNumber(v.Enum()); ok {
				b.writeString(vd.Name())
				return nil
			}
		}
		b.Write(strconv.AppendInt(b.AvailableBuffer(), int64(v.Enum()), 10))
	case desc.Int32Kind, desc.Sint32Kind, desc.Sfixed32Kind:
		b.Write(strconv.AppendInt(b.AvailableBuffer(), int64(v.Int32()), 10))
	case desc.Uint32Kind, desc.Fixed32Kind:
		b.Write(strconv.AppendUint(b.AvailableBuffer(), uint64(v.Uint32()), 10))
	case desc.Int64Kind, desc.Sint64Kind, desc.Sfixed64Kind:
		b.writeString(strconv.FormatInt(v.Int64(), 10))
	case desc.Uint64Kind, desc.Fixed64Kind:
		b.writeString(strconv.FormatUint(v.Uint64(), 10))
	case desc.FloatKind:
		b.Write(jsonenc.AppendFloat32(b.AvailableBuffer(), v.Float32()))
	case desc.DoubleKind:
		b.Write(jsonenc.AppendFloat64(b.AvailableBuffer(), v.Float64()))
	case desc.BoolKind:
		b.Write(strconv.AppendBool(b.AvailableBuffer(), v.Bool()))
	case desc.StringKind:
		b.writeString(v.String())
	case desc.BytesKind:
		b.writeString(base64.StdEncoding.EncodeToString(v.Bytes()))
	default:
		return &JSONError{Path: path, Err: fmt.Errorf("%w: unsupported kind %v", ErrJSONTypeMismatch, fd.Kind())}
	}
	return nil
}

// UnmarshalJSONOptions configures conversion of JSON to a message.
type UnmarshalJSONOptions struct {
	// DiscardUnknown ignores properties that do not name a field, instead of
	// failing.
	DiscardUnknown bool
	// RecursionLimit bounds how deeply messages may be nested in the input.
	// Zero means DefaultRecursionLimit.
	RecursionLimit int
}

// UnmarshalJSON parses a new message of the given type from JSON.
func UnmarshalJSON(md desc.MessageDescriptor, js []byte) (*Message, error) {
	return UnmarshalJSONOptions{}.Unmarshal(md, js)
}

// Unmarshal parses a new message of type md using these options.
func (o UnmarshalJSONOptions) Unmarshal(md desc.MessageDescriptor, js []byte) (*Message, error) {
	m := NewMessage(md)
	if err := o.UnmarshalMerge(m, js); err != nil {
		return nil, err
	}
	return m, nil
}

// UnmarshalMerge parses the given JSON and merges the result into m. If the
// input is invalid, m is left unchanged.
func (o UnmarshalJSONOptions) UnmarshalMerge(m *Message, js []byte) error {
	d := newJSONDecoder(js, o)
	tmp := NewMessage(m.md)
	if err := d.unmarshalMessage(tmp, ""); err != nil {
		return err
	}
	if _, err := d.r.dec.Token(); err != io.EOF {
		return &JSONError{Err: fmt.Errorf("%w: unexpected data after top-level value", ErrInvalidJSON)}
	}
	m.mergeFrom(tmp, false)
	return nil
}

// UnmarshalJSON de-serializes the message from JSON, replacing its current
// contents. If the input is invalid, m is left unchanged.
func (m *Message) UnmarshalJSON(js []byte) error {
	return m.UnmarshalJSONWithOptions(js, UnmarshalJSONOptions{})
}

// UnmarshalMergeJSON parses the given JSON and merges the result into m.
func (m *Message) UnmarshalMergeJSON(js []byte) error {
	return UnmarshalJSONOptions{}.UnmarshalMerge(m, js)
}

// UnmarshalJSONWithOptions replaces the contents of m with the given JSON,
// parsed with the given options. On failure m is left unchanged.
func (m *Message) UnmarshalJSONWithOptions(js []byte, opts UnmarshalJSONOptions) error {
	tmp := NewMessage(m.md)
	if err := opts.UnmarshalMerge(tmp, js); err != nil {
		return err
	}
	*m = *tmp
	return nil
}

type jsonDecoder struct {
	r     *jsReader
	opts  UnmarshalJSONOptions
	depth int
}

func newJSONDecoder(js []byte, opts UnmarshalJSONOptions) *jsonDecoder {
	if opts.RecursionLimit <= 0 {
		opts.RecursionLimit = DefaultRecursionLimit
	}
	return &jsonDecoder{r: newJSReader(js), opts: opts}
}

func (d *jsonDecoder) unmarshalMessage(m *Message, path string) error {
	d.depth++
	defer func() { d.depth-- }()
	if d.depth > d.opts.RecursionLimit {
		return &JSONError{Path: path, Err: codec.ErrRecursionLimit}
	}
	if handled, err := d.unmarshalWellKnown(m, path); handled {
		return err
	}
	if err := d.r.beginObject(); err != nil {
		return jsonError(path, err)
	}
	return d.unmarshalFields(m, path)
}

// unmarshalFields reads object members into m until the end of the object.
// The object's opening brace must already have been consumed.
func (d *jsonDecoder) unmarshalFields(m *Message, path string) error {
	seen := map[int32]bool{}
	var oneofs map[desc.OneofDescriptor]bool
	for d.r.hasNext() {
		key, err := d.r.nextObjectKey()
		if err != nil {
			return jsonError(path, err)
		}
		fpath := fieldPath(path, key)
		fd, ok := m.FindFieldDescriptorByName(key)
		if !ok {
			if d.opts.DiscardUnknown {
				if err := d.r.skip(); err != nil {
					return jsonError(fpath, err)
				}
				continue
			}
			return &JSONError{Path: fpath, Err: ErrUnknownJSONField}
		}
		if seen[fd.Number()] {
			return &JSONError{Path: fpath, Err: ErrDuplicateJSONField}
		}
		seen[fd.Number()] = true

		t, err := d.r.peek()
		if err != nil {
			return jsonError(fpath, err)
		}
		if t == nil && !acceptsNull(fd) {
			// null is the same as leaving the field out
			_, _ = d.r.poll()
			continue
		}
		if od := fd.ContainingOneof(); od.IsValid() && !od.IsSynthetic() {
			if oneofs[od] {
				return &JSONError{Path: fpath, Err: fmt.Errorf("%w: another member of oneof %s is already set", ErrDuplicateJSONField, od.Name())}
			}
			if oneofs == nil {
				oneofs = map[desc.OneofDescriptor]bool{}
			}
			oneofs[od] = true
		}
		v, err := d.unmarshalField(fd, fpath)
		if err != nil {
			return err
		}
		m.internalSetField(fd, v)
	}
	return jsonError(path, d.r.endObject())
}

// acceptsNull reports whether a JSON null is a real value for the field,
// rather than an indication that the field is absent.
func acceptsNull(fd desc.FieldDescriptor) bool {
	if fd.IsRepeated() {
		return false
	}
	switch fd.Kind() {
	case desc.MessageKind:
		return fd.Message().FullName() == "google.protobuf.Value"
	case desc.EnumKind:
		return fd.Enum().FullName() == "google.protobuf.NullValue"
	}
	return false
}

func (d *jsonDecoder) unmarshalField(fd desc.FieldDescriptor, path string) (Value, error) {
	switch {
	case fd.IsMap():
		if err := d.r.beginObject(); err != nil {
			return Value{}, jsonError(path, err)
		}
		kfd, vfd := fd.MapKey(), fd.MapValue()
		mp := map[MapKey]Value{}
		for d.r.hasNext() {
			ks, err := d.r.nextObjectKey()
			if err != nil {
				return Value{}, jsonError(path, err)
			}
			epath := path + "[" + ks + "]"
			k, err := parseMapKey(kfd, ks)
			if err != nil {
				return Value{}, &JSONError{Path: epath, Err: err}
			}
			if _, dup := mp[k]; dup {
				return Value{}, &JSONError{Path: epath, Err: ErrDuplicateJSONField}
			}
			v, err := d.unmarshalElement(vfd, epath)
			if err != nil {
				return Value{}, err
			}
			mp[k] = v
		}
		if err := d.r.endObject(); err != nil {
			return Value{}, jsonError(path, err)
		}
		return ValueOfMap(mp), nil
	case fd.IsRepeated():
		if err := d.r.beginArray(); err != nil {
			return Value{}, jsonError(path, err)
		}
		var list []Value
		for d.r.hasNext() {
			v, err := d.unmarshalElement(fd, path+"["+strconv.Itoa(len(list))+"]")
			if err != nil {
				return Value{}, err
			}
			list = append(list, v)
		}
		if err := d.r.endArray(); err != nil {
			return Value{}, jsonError(path, err)
		}
		return ValueOfList(list), nil
	default:
		return d.unmarshalElement(fd, path)
	}
}

func parseMapKey(kfd desc.FieldDescriptor, s string) (MapKey, error) {
	var v Value
	var err error
	switch kfd.Kind() {
	case desc.StringKind:
		v = ValueOfString(s)
	case desc.BoolKind:
		var b bool
		b, err = strconv.ParseBool(s)
		if s != "true" && s != "false" {
			err = strconv.ErrSyntax
		}
		v = ValueOfBool(b)
	case desc.Int32Kind, desc.Sint32Kind, desc.Sfixed32Kind:
		var i int64
		i, err = strconv.ParseInt(s, 10, 32)
		v = ValueOfInt32(int32(i))
	case desc.Int64Kind, desc.Sint64Kind, desc.Sfixed64Kind:
		var i int64
		i, err = strconv.ParseInt(s, 10, 64)
		v = ValueOfInt64(i)
	case desc.Uint32Kind, desc.Fixed32Kind:
		var u uint64
		u, err = strconv.ParseUint(s, 10, 32)
		v = ValueOfUint32(uint32(u))
	case desc.Uint64Kind, desc.Fixed64Kind:
		var u uint64
		u, err = strconv.ParseUint(s, 10, 64)
		v = ValueOfUint64(u)
	default:
		err = fmt.Errorf("invalid map key kind %v", kfd.Kind())
	}
	if err != nil {
		return MapKey{}, fmt.Errorf("%w: invalid %v map key %q", ErrJSONTypeMismatch, kfd.Kind(), s)
	}
	return v.MapKey(), nil
}

func (d *jsonDecoder) unmarshalElement(fd desc.FieldDescriptor, path string) (Value, error) {
	if fd.Kind().IsMessage() {
		msg := NewMessage(fd.Message())
		if err := d.unmarshalMessage(msg, path); err != nil {
			return Value{}, err
		}
		return ValueOfMessage(msg), nil
	}
	t, err := d.r.poll()
	if err != nil {
		return Value{}, jsonError(path, err)
	}
	v, err := scalarFromJSON(fd, t)
	if err != nil {
		return Value{}, &JSONError{Path: path, Err: err}
	}
	return v, nil
}

// scalarFromJSON converts a single JSON token to a value of the field's
// kind. The field must not have message kind.
func scalarFromJSON(fd desc.FieldDescriptor, t json.Token) (Value, error) {
	kind := fd.Kind()
	mismatch := func() (Value, error) {
		return Value{}, fmt.Errorf("%w: %v is not a valid %v", ErrJSONTypeMismatch, describeToken(t), kind)
	}
	switch kind {
	case desc.EnumKind:
		ed := fd.Enum()
		switch t := t.(type) {
		case nil:
			if ed.FullName() == "google.protobuf.NullValue" {
				return ValueOfEnum(0), nil
			}
		case string:
			if vd, ok := ed.FindValueByName(t); ok {
				return ValueOfEnum(vd.Number()), nil
			}
			return Value{}, fmt.Errorf("%w: %q is not a value of %s", ErrInvalidEnumName, t, ed.FullName())
		case json.Number:
			if i, err := parseJSONInt(string(t), 32); err == nil {
				return ValueOfEnum(int32(i)), nil
			}
		}
		return mismatch()
	case desc.BoolKind:
		if b, ok := t.(bool); ok {
			return ValueOfBool(b), nil
		}
		return mismatch()
	case desc.StringKind:
		if s, ok := t.(string); ok {
			return ValueOfString(s), nil
		}
		return mismatch()
	case desc.BytesKind:
		s, ok := t.(string)
		if !ok {
			return mismatch()
		}
		b, err := decodeBase64(s)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
		}
		return ValueOfBytes(b), nil
	}

	// numeric kinds accept both numbers and strings
	var s string
	switch t := t.(type) {
	case json.Number:
		s = string(t)
	case string:
		s = t
	default:
		return mismatch()
	}
	switch kind {
	case desc.Int32Kind, desc.Sint32Kind, desc.Sfixed32Kind:
		if i, err := parseJSONInt(s, 32); err == nil {
			return ValueOfInt32(int32(i)), nil
		}
	case desc.Int64Kind, desc.Sint64Kind, desc.Sfixed64Kind:
		if i, err := parseJSONInt(s, 64); err == nil {
			return ValueOfInt64(i), nil
		}
	case desc.Uint32Kind, desc.Fixed32Kind:
		if u, err := parseJSONUint(s, 32); err == nil {
			return ValueOfUint32(uint32(u)), nil
		}
	case desc.Uint64Kind, desc.Fixed64Kind:
		if u, err := parseJSONUint(s, 64); err == nil {
			return ValueOfUint64(u), nil
		}
	case desc.FloatKind:
		if f, err := parseJSONFloat(s, 32); err == nil {
			return ValueOfFloat32(float32(f)), nil
		}
	case desc.DoubleKind:
		if f, err := parseJSONFloat(s, 64); err == nil {
			return ValueOfFloat64(f), nil
		}
	}
	return mismatch()
}

// parseJSONInt parses an integer that may be written with a fraction or
// exponent, as in "1e3", as long as its value is integral.
func parseJSONInt(s string, bits int) (int64, error) {
	if i, err := strconv.ParseInt(s, 10, bits); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, strconv.ErrSyntax
	}
	limit := math.Ldexp(1, bits-1)
	if f < -limit || f >= limit {
		return 0, strconv.ErrRange
	}
	return int64(f), nil
}

func parseJSONUint(s string, bits int) (uint64, error) {
	if u, err := strconv.ParseUint(s, 10, bits); err == nil {
		return u, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, strconv.ErrSyntax
	}
	if f < 0 || f >= math.Ldexp(1, bits) {
		return 0, strconv.ErrRange
	}
	return uint64(f), nil
}

func parseJSONFloat(s string, bits int) (float64, error) {
	switch s {
	case "NaN":
		return math.NaN(), nil
	case "Infinity":
		return math.Inf(1), nil
	case "-Infinity":
		return math.Inf(-1), nil
	}
	if s == "" || strings.TrimSpace(s) != s {
		return 0, strconv.ErrSyntax
	}
	f, err := strconv.ParseFloat(s, bits)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) {
		// "Inf" and friends are not JSON
		return 0, strconv.ErrSyntax
	}
	return f, nil
}

// decodeBase64 accepts the standard and URL-safe alphabets, with or
// without padding.
func decodeBase64(s string) ([]byte, error) {
	enc := base64.StdEncoding
	if strings.ContainsAny(s, "-_") {
		enc = base64.URLEncoding
	}
	if len(s)%4 != 0 {
		enc = enc.WithPadding(base64.NoPadding)
	}
	return enc.DecodeString(s)
}

func describeToken(t json.Token) string {
	switch t := t.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(t)
	case json.Delim:
		switch t {
		case '{', '}':
			return "object"
		default:
			return "array"
		}
	default:
		return fmt.Sprintf("%v", t)
	}
}

// jsReader is a token-level JSON reader with one token of look-ahead.
type jsReader struct {
	dec     *json.Decoder
	current json.Token
	peeked  bool
}

func newJSReader(js []byte) *jsReader {
	r := &jsReader{dec: json.NewDecoder(bytes.NewReader(js))}
	r.dec.UseNumber()
	return r
}

func (r *jsReader) hasNext() bool {
	if r.peeked {
		t := r.current
		return t != json.Delim('}') && t != json.Delim(']')
	}
	return r.dec.More()
}

func (r *jsReader) peek() (json.Token, error) {
	if r.peeked {
		return r.current, nil
	}
	t, err := r.token()
	if err != nil {
		return nil, err
	}
	r.peeked = true
	r.current = t
	return t, nil
}

func (r *jsReader) poll() (json.Token, error) {
	if r.peeked {
		ret := r.current
		r.current = nil
		r.peeked = false
		return ret, nil
	}
	return r.token()
}

func (r *jsReader) token() (json.Token, error) {
	t, err := r.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return t, nil
}

func (r *jsReader) beginObject() error {
	return r.expectDelim('{', "object")
}

func (r *jsReader) endObject() error {
	return r.expectDelim('}', "end of object")
}

func (r *jsReader) beginArray() error {
	return r.expectDelim('[', "array")
}

func (r *jsReader) endArray() error {
	return r.expectDelim(']', "end of array")
}

func (r *jsReader) expectDelim(d json.Delim, expected string) error {
	t, err := r.poll()
	if err != nil {
		return err
	}
	if t != d {
		return fmt.Errorf("%w: expecting %s, got %s", ErrJSONTypeMismatch, expected, describeToken(t))
	}
	return nil
}

func (r *jsReader) nextObjectKey() (string, error) {
	return r.nextString()
}

func (r *jsReader) nextString() (string, error) {
	t, err := r.poll()
	if err != nil {
		return "", err
	}
	s, ok := t.(string)
	if !ok {
		return "", fmt.Errorf("%w: expecting string, got %s", ErrJSONTypeMismatch, describeToken(t))
	}
	return s, nil
}

func (r *jsReader) skip() error {
	t, err := r.poll()
	if err != nil {
		return err
	}
	switch t {
	case json.Delim('['):
		for r.hasNext() {
			if err := r.skip(); err != nil {
				return err
			}
		}
		return r.endArray()
	case json.Delim('{'):
		for r.hasNext() {
			// key, then value
			if _, err := r.poll(); err != nil {
				return err
			}
			if err := r.skip(); err != nil {
				return err
			}
		}
		return r.endObject()
	}
	return nil
}

// readRaw consumes the next value and returns it re-encoded as compact
// JSON.
func (r *jsReader) readRaw() ([]byte, error) {
	var b []byte
	err := r.appendRaw(&b)
	return b, err
}

func (r *jsReader) appendRaw(b *[]byte) error {
	t, err := r.poll()
	if err != nil {
		return err
	}
	switch t := t.(type) {
	case nil:
		*b = append(*b, "null"...)
	case bool:
		*b = strconv.AppendBool(*b, t)
	case json.Number:
		*b = append(*b, t...)
	case string:
		*b = jsonenc.AppendString(*b, t)
	case json.Delim:
		switch t {
		case '[':
			*b = append(*b, '[')
			for i := 0; r.hasNext(); i++ {
				if i > 0 {
					*b = append(*b, ',')
				}
				if err := r.appendRaw(b); err != nil {
					return err
				}
			}
			if err := r.endArray(); err != nil {
				return err
			}
			*b = append(*b, ']')
		case '{':
			*b = append(*b, '{')
			for i := 0; r.hasNext(); i++ {
				if i > 0 {
					*b = append(*b, ',')
				}
				key, err := r.nextObjectKey()
				if err != nil {
					return err
				}
				*b = append(jsonenc.AppendString(*b, key), ':')
				if err := r.appendRaw(b); err != nil {
					return err
				}
			}
			if err := r.endObject(); err != nil {
				return err
			}
			*b = append(*b, '}')
		default:
			return fmt.Errorf("%w: unexpected %v", ErrInvalidJSON, t)
		}
	}
	return nil
}
