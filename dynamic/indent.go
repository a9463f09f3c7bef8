package dynamic

import (
	"bytes"

	"github.com/joeycumines/go-utilpkg/jsonenc"
)

// indentBuffer accumulates JSON output. A negative indent produces compact
// output; otherwise each nesting level is indented by two spaces.
type indentBuffer struct {
	bytes.Buffer
	indent int
}

func (b *indentBuffer) start() {
	if b.indent >= 0 {
		b.indent++
		b.newLine()
	}
}

func (b *indentBuffer) sep() {
	if b.indent >= 0 {
		b.WriteString(": ")
	} else {
		b.WriteByte(':')
	}
}

func (b *indentBuffer) end() {
	if b.indent >= 0 {
		b.indent--
		b.newLine()
	}
}

// next is called before each member of an object or array. The first call
// opens a nesting level; later ones write the separating comma.
func (b *indentBuffer) next(first *bool) {
	if *first {
		*first = false
		b.start()
		return
	}
	b.WriteByte(',')
	if b.indent >= 0 {
		b.newLine()
	}
}

// close ends an object or array that next may or may not have opened.
func (b *indentBuffer) close(first bool, delim byte) {
	if !first {
		b.end()
	}
	b.WriteByte(delim)
}

func (b *indentBuffer) newLine() {
	b.WriteByte('\n')
	for i := 0; i < b.indent; i++ {
		b.WriteString("  ")
	}
}

func (b *indentBuffer) writeString(s string) {
	b.Write(jsonenc.AppendString(b.AvailableBuffer(), s))
}

func (b *indentBuffer) writeName(name string) {
	b.writeString(name)
	b.sep()
}
