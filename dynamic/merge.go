package dynamic

import (
	"fmt"
)

// MergeFrom merges the fields of src into m. Both messages must have the
// same type. Singular scalar fields present in src overwrite those in m,
// singular message fields are merged recursively, repeated fields are
// appended, and map entries in src replace entries in m with the same key.
// Unknown fields of src are appended to those of m. Values are copied, so
// later changes to src do not affect m.
func (m *Message) MergeFrom(src *Message) error {
	if src.md != m.md {
		return m.fieldError("", fmt.Errorf("%w: cannot merge %s", ErrWrongMessageType, src.md.FullName()))
	}
	m.mergeFrom(src, true)
	return nil
}

// mergeFrom does the work of MergeFrom. If clone is false, values are moved
// from src rather than copied, so src must be discarded afterwards.
func (m *Message) mergeFrom(src *Message, clone bool) {
	cp := func(v Value) Value {
		if clone {
			return cloneValue(v)
		}
		return v
	}
	for _, num := range src.setNumbers() {
		fd, ok := m.FindFieldDescriptor(num)
		if !ok {
			continue
		}
		v := src.values[num]
		switch {
		case fd.IsMap():
			for k, e := range v.Map() {
				m.putMapEntry(fd, k, cp(e))
			}
		case fd.IsRepeated():
			var list []Value
			if existing, ok := m.values[num]; ok {
				list = existing.List()
			}
			for _, e := range v.List() {
				list = append(list, cp(e))
			}
			m.internalSetField(fd, ValueOfList(list))
		case fd.Kind().IsMessage():
			if existing, ok := m.values[num]; ok {
				existing.Message().mergeFrom(v.Message(), clone)
			} else {
				m.internalSetField(fd, cp(v))
			}
		default:
			m.internalSetField(fd, cp(v))
		}
	}
	for _, u := range src.unknown {
		if clone {
			u.Raw = append([]byte(nil), u.Raw...)
		}
		m.unknown = append(m.unknown, u)
	}
}
