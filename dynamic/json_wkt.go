package dynamic

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/joeycumines/go-utilpkg/jsonenc"

	"github.com/jhump/dynproto/desc"
)

const (
	// 0001-01-01T00:00:00Z and 9999-12-31T23:59:59Z
	minTimestampSeconds = -62135596800
	maxTimestampSeconds = 253402300799
	// roughly 10,000 years
	maxDurationSeconds = 315576000000
)

// wellKnownJSON is the set of types whose JSON form is not an object of
// their fields. Inside an Any, such types are written under a "value" key.
var wellKnownJSON = map[string]bool{
	"google.protobuf.Any":         true,
	"google.protobuf.Timestamp":   true,
	"google.protobuf.Duration":    true,
	"google.protobuf.DoubleValue": true,
	"google.protobuf.FloatValue":  true,
	"google.protobuf.Int64Value":  true,
	"google.protobuf.UInt64Value": true,
	"google.protobuf.Int32Value":  true,
	"google.protobuf.UInt32Value": true,
	"google.protobuf.BoolValue":   true,
	"google.protobuf.StringValue": true,
	"google.protobuf.BytesValue":  true,
	"google.protobuf.Struct":      true,
	"google.protobuf.ListValue":   true,
	"google.protobuf.Value":       true,
	"google.protobuf.FieldMask":   true,
	"google.protobuf.Empty":       true,
}

func isWrapper(name string) bool {
	return strings.HasPrefix(name, "google.protobuf.") && strings.HasSuffix(name, "Value") &&
		name != "google.protobuf.Value" && name != "google.protobuf.ListValue" && wellKnownJSON[name]
}

// wktFields looks up the given field numbers of m's type. It reports false
// if any is missing, in which case the type is handled like any other.
func wktFields(m *Message, nums ...int32) ([]desc.FieldDescriptor, bool) {
	fds := make([]desc.FieldDescriptor, len(nums))
	for i, num := range nums {
		fd, ok := m.md.FindFieldByNumber(num)
		if !ok {
			return nil, false
		}
		fds[i] = fd
	}
	return fds, true
}

func wktError(path string, format string, args ...any) error {
	return &JSONError{Path: path, Err: fmt.Errorf("%w: "+format, append([]any{ErrInvalidWellKnownValue}, args...)...)}
}

func (e *jsonEncoder) marshalWellKnown(m *Message, path string) (bool, error) {
	name := m.md.FullName()
	if !wellKnownJSON[name] {
		return false, nil
	}
	switch {
	case name == "google.protobuf.Any":
		fds, ok := wktFields(m, 1, 2)
		if !ok {
			return false, nil
		}
		return true, e.marshalAny(m, fds[0], fds[1], path)
	case name == "google.protobuf.Timestamp":
		fds, ok := wktFields(m, 1, 2)
		if !ok {
			return false, nil
		}
		secs, nanos := m.getFieldOrDefault(fds[0]).Int64(), m.getFieldOrDefault(fds[1]).Int32()
		if secs < minTimestampSeconds || secs > maxTimestampSeconds || nanos < 0 || nanos >= 1e9 {
			return true, wktError(path, "timestamp seconds=%d nanos=%d is out of range", secs, nanos)
		}
		t := time.Unix(secs, int64(nanos)).UTC()
		e.b.writeString(t.Format("2006-01-02T15:04:05") + fractionalSeconds(nanos) + "Z")
		return true, nil
	case name == "google.protobuf.Duration":
		fds, ok := wktFields(m, 1, 2)
		if !ok {
			return false, nil
		}
		secs, nanos := m.getFieldOrDefault(fds[0]).Int64(), m.getFieldOrDefault(fds[1]).Int32()
		if secs < -maxDurationSeconds || secs > maxDurationSeconds || nanos <= -1e9 || nanos >= 1e9 ||
			(secs > 0 && nanos < 0) || (secs < 0 && nanos > 0) {
			return true, wktError(path, "duration seconds=%d nanos=%d is out of range", secs, nanos)
		}
		sign := ""
		if secs < 0 || nanos < 0 {
			sign = "-"
			secs, nanos = -secs, -nanos
		}
		e.b.writeString(sign + strconv.FormatInt(secs, 10) + fractionalSeconds(nanos) + "s")
		return true, nil
	case isWrapper(name), name == "google.protobuf.Struct", name == "google.protobuf.ListValue":
		fds, ok := wktFields(m, 1)
		if !ok {
			return false, nil
		}
		return true, e.marshalField(fds[0], m.getFieldOrDefault(fds[0]), path)
	case name == "google.protobuf.Value":
		var od desc.OneofDescriptor
		if oneofs := m.md.Oneofs(); len(oneofs) == 1 {
			od = oneofs[0]
		} else {
			return false, nil
		}
		fd, ok := m.WhichOneof(od)
		if !ok {
			return true, wktError(path, "google.protobuf.Value has no kind set")
		}
		v := m.values[fd.Number()]
		if fd.Kind() == desc.DoubleKind {
			if f := v.Float64(); math.IsNaN(f) || math.IsInf(f, 0) {
				return true, wktError(path, "google.protobuf.Value cannot hold %v", f)
			}
		}
		return true, e.marshalElement(fd, v, path)
	case name == "google.protobuf.FieldMask":
		fds, ok := wktFields(m, 1)
		if !ok {
			return false, nil
		}
		paths := m.getFieldOrDefault(fds[0]).List()
		strs := make([]string, len(paths))
		for i, p := range paths {
			s, ok := snakeToCamel(p.String())
			if !ok {
				return true, wktError(path, "field mask path %q cannot be written as JSON", p.String())
			}
			strs[i] = s
		}
		e.b.writeString(strings.Join(strs, ","))
		return true, nil
	}
	// Empty
	return false, nil
}

func (e *jsonEncoder) marshalAny(m *Message, typeFd, valueFd desc.FieldDescriptor, path string) error {
	typeURL := m.getFieldOrDefault(typeFd).String()
	value := m.getFieldOrDefault(valueFd).Bytes()
	if typeURL == "" && len(value) == 0 {
		e.b.WriteString("{}")
		return nil
	}
	md, err := resolveAny(m.md.Pool(), typeURL)
	if err != nil {
		return &JSONError{Path: path, Err: err}
	}
	// the payload sits one level below m, and its own nested messages
	// below that
	limit := DefaultRecursionLimit - e.depth - 1
	if limit < 1 {
		limit = 1
	}
	inner, err := UnmarshalOptions{RecursionLimit: limit}.Unmarshal(md, value)
	if err != nil {
		return &JSONError{Path: path, Err: err}
	}
	e.b.WriteByte('{')
	first := true
	e.b.next(&first)
	e.b.writeName("@type")
	e.b.writeString(typeURL)
	if wellKnownJSON[md.FullName()] {
		e.b.next(&first)
		e.b.writeName("value")
		if err := e.marshalMessage(inner, fieldPath(path, "value")); err != nil {
			return err
		}
	} else {
		defer func() { e.depth-- }()
		if err := e.enter(path); err != nil {
			return err
		}
		if err := e.marshalFields(inner, path, &first); err != nil {
			return err
		}
	}
	e.b.close(first, '}')
	return nil
}

// resolveAny finds the message type named by the last path component of
// an Any's type URL.
func resolveAny(pool *desc.Pool, typeURL string) (desc.MessageDescriptor, error) {
	name := typeURL[strings.LastIndexByte(typeURL, '/')+1:]
	if name == "" {
		return desc.MessageDescriptor{}, fmt.Errorf("%w: invalid type URL %q", ErrMissingAnyType, typeURL)
	}
	md, ok := pool.FindMessageByName(name)
	if !ok {
		return desc.MessageDescriptor{}, fmt.Errorf("%w: %s", ErrMissingAnyType, name)
	}
	return md, nil
}

// fractionalSeconds formats nanos as a fraction with 0, 3, 6, or 9 digits.
func fractionalSeconds(nanos int32) string {
	switch {
	case nanos == 0:
		return ""
	case nanos%1e6 == 0:
		return fmt.Sprintf(".%03d", nanos/1e6)
	case nanos%1e3 == 0:
		return fmt.Sprintf(".%06d", nanos/1e3)
	default:
		return fmt.Sprintf(".%09d", nanos)
	}
}

func (d *jsonDecoder) unmarshalWellKnown(m *Message, path string) (bool, error) {
	name := m.md.FullName()
	if !wellKnownJSON[name] {
		return false, nil
	}
	switch {
	case name == "google.protobuf.Any":
		fds, ok := wktFields(m, 1, 2)
		if !ok {
			return false, nil
		}
		return true, d.unmarshalAny(m, fds[0], fds[1], path)
	case name == "google.protobuf.Timestamp", name == "google.protobuf.Duration":
		fds, ok := wktFields(m, 1, 2)
		if !ok {
			return false, nil
		}
		s, err := d.r.nextString()
		if err != nil {
			return true, jsonError(path, err)
		}
		var secs int64
		var nanos int32
		if name == "google.protobuf.Timestamp" {
			secs, nanos, err = parseTimestamp(s)
		} else {
			secs, nanos, err = parseDuration(s)
		}
		if err != nil {
			return true, &JSONError{Path: path, Err: err}
		}
		m.internalSetField(fds[0], ValueOfInt64(secs))
		m.internalSetField(fds[1], ValueOfInt32(nanos))
		return true, nil
	case isWrapper(name), name == "google.protobuf.Struct", name == "google.protobuf.ListValue":
		fds, ok := wktFields(m, 1)
		if !ok {
			return false, nil
		}
		v, err := d.unmarshalField(fds[0], path)
		if err != nil {
			return true, err
		}
		m.internalSetField(fds[0], v)
		return true, nil
	case name == "google.protobuf.Value":
		fds, ok := wktFields(m, 1, 2, 3, 4, 5, 6)
		if !ok {
			return false, nil
		}
		return true, d.unmarshalValue(m, fds, path)
	case name == "google.protobuf.FieldMask":
		fds, ok := wktFields(m, 1)
		if !ok {
			return false, nil
		}
		s, err := d.r.nextString()
		if err != nil {
			return true, jsonError(path, err)
		}
		var paths []Value
		if s != "" {
			for _, p := range strings.Split(s, ",") {
				snake, ok := camelToSnake(p)
				if !ok {
					return true, wktError(path, "invalid field mask path %q", p)
				}
				paths = append(paths, ValueOfString(snake))
			}
		}
		m.internalSetField(fds[0], ValueOfList(paths))
		return true, nil
	}
	return false, nil
}

// unmarshalValue reads any JSON value into a google.protobuf.Value, whose
// fields are null_value, number_value, string_value, bool_value,
// struct_value, and list_value, in that order.
func (d *jsonDecoder) unmarshalValue(m *Message, fds []desc.FieldDescriptor, path string) error {
	t, err := d.r.peek()
	if err != nil {
		return jsonError(path, err)
	}
	var fd desc.FieldDescriptor
	var v Value
	switch t := t.(type) {
	case nil:
		fd, v = fds[0], ValueOfEnum(0)
	case json.Number:
		f, err := parseJSONFloat(string(t), 64)
		if err != nil {
			return &JSONError{Path: path, Err: fmt.Errorf("%w: invalid number %s", ErrJSONTypeMismatch, t)}
		}
		fd, v = fds[1], ValueOfFloat64(f)
	case string:
		fd, v = fds[2], ValueOfString(t)
	case bool:
		fd, v = fds[3], ValueOfBool(t)
	case json.Delim:
		if t == '{' {
			fd = fds[4]
		} else {
			fd = fds[5]
		}
		v, err = d.unmarshalElement(fd, path)
		if err != nil {
			return err
		}
		m.internalSetField(fd, v)
		return nil
	}
	_, _ = d.r.poll()
	m.internalSetField(fd, v)
	return nil
}

type rawMember struct {
	key string
	raw []byte
}

func (d *jsonDecoder) unmarshalAny(m *Message, typeFd, valueFd desc.FieldDescriptor, path string) error {
	if err := d.r.beginObject(); err != nil {
		return jsonError(path, err)
	}
	var members []rawMember
	var typeURL string
	var hasType bool
	for d.r.hasNext() {
		key, err := d.r.nextObjectKey()
		if err != nil {
			return jsonError(path, err)
		}
		if key == "@type" {
			if hasType {
				return &JSONError{Path: fieldPath(path, key), Err: ErrDuplicateJSONField}
			}
			if typeURL, err = d.r.nextString(); err != nil {
				return jsonError(fieldPath(path, key), err)
			}
			hasType = true
			continue
		}
		raw, err := d.r.readRaw()
		if err != nil {
			return jsonError(fieldPath(path, key), err)
		}
		members = append(members, rawMember{key: key, raw: raw})
	}
	if err := d.r.endObject(); err != nil {
		return jsonError(path, err)
	}
	if !hasType {
		if len(members) == 0 {
			return nil
		}
		return &JSONError{Path: path, Err: fmt.Errorf("%w: missing @type", ErrMissingAnyType)}
	}
	md, err := resolveAny(m.md.Pool(), typeURL)
	if err != nil {
		return &JSONError{Path: path, Err: err}
	}

	inner := NewMessage(md)
	sub := &jsonDecoder{opts: d.opts, depth: d.depth}
	if wellKnownJSON[md.FullName()] {
		var value []byte
		for _, mem := range members {
			if mem.key != "value" {
				if d.opts.DiscardUnknown {
					continue
				}
				return &JSONError{Path: fieldPath(path, mem.key), Err: ErrUnknownJSONField}
			}
			value = mem.raw
		}
		if value == nil {
			return &JSONError{Path: path, Err: fmt.Errorf("%w: missing value for %s", ErrJSONTypeMismatch, md.FullName())}
		}
		sub.r = newJSReader(value)
		err = sub.unmarshalMessage(inner, fieldPath(path, "value"))
	} else {
		obj := []byte{'{'}
		for i, mem := range members {
			if i > 0 {
				obj = append(obj, ',')
			}
			obj = append(jsonenc.AppendString(obj, mem.key), ':')
			obj = append(obj, mem.raw...)
		}
		obj = append(obj, '}')
		sub.r = newJSReader(obj)
		err = sub.unmarshalMessage(inner, path)
	}
	if err != nil {
		return err
	}
	b, err := inner.Marshal()
	if err != nil {
		return &JSONError{Path: path, Err: err}
	}
	m.internalSetField(typeFd, ValueOfString(typeURL))
	m.internalSetField(valueFd, ValueOfBytes(b))
	return nil
}

func parseTimestamp(s string) (int64, int32, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil || strings.ContainsAny(s, "tz") {
		return 0, 0, fmt.Errorf("%w: invalid timestamp %q", ErrInvalidWellKnownValue, s)
	}
	secs := t.Unix()
	if secs < minTimestampSeconds || secs > maxTimestampSeconds {
		return 0, 0, fmt.Errorf("%w: timestamp %q is out of range", ErrInvalidWellKnownValue, s)
	}
	return secs, int32(t.Nanosecond()), nil
}

func parseDuration(s string) (int64, int32, error) {
	invalid := fmt.Errorf("%w: invalid duration %q", ErrInvalidWellKnownValue, s)
	str, ok := strings.CutSuffix(s, "s")
	if !ok {
		return 0, 0, invalid
	}
	neg := strings.HasPrefix(str, "-")
	if neg {
		str = str[1:]
	}
	whole, frac, hasFrac := strings.Cut(str, ".")
	if !isDigits(whole) || (hasFrac && (!isDigits(frac) || len(frac) > 9)) {
		return 0, 0, invalid
	}
	secs, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || secs > maxDurationSeconds {
		return 0, 0, invalid
	}
	var nanos int64
	if hasFrac {
		nanos, _ = strconv.ParseInt(frac+strings.Repeat("0", 9-len(frac)), 10, 32)
	}
	if neg {
		secs, nanos = -secs, -nanos
	}
	return secs, int32(nanos), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// snakeToCamel converts a field mask path to its JSON form. It reports
// false if the path could not be converted back unchanged.
func snakeToCamel(s string) (string, bool) {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			return "", false
		case c == '_':
			if i+1 >= len(s) || s[i+1] < 'a' || s[i+1] > 'z' {
				return "", false
			}
			i++
			sb.WriteByte(s[i] - 'a' + 'A')
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), true
}

func camelToSnake(s string) (string, bool) {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_':
			return "", false
		case c >= 'A' && c <= 'Z':
			sb.WriteByte('_')
			sb.WriteByte(c - 'A' + 'a')
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), true
}
