package desc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Build parses the given bytes, which must be a serialized
// google.protobuf.FileDescriptorSet, and returns a pool containing all of
// its files. The set must be self-contained: every file's dependencies must
// also be in the set. Files may appear in any order.
func Build(b []byte) (*Pool, error) {
	p := NewPool()
	if err := p.Merge(b); err != nil {
		return nil, err
	}
	return p, nil
}

// BuildFromSet is like Build, but accepts an already parsed descriptor set.
// The pool retains references to the descriptor protos in fds, so they must
// not be modified afterwards.
func BuildFromSet(fds *descriptorpb.FileDescriptorSet) (*Pool, error) {
	p := NewPool()
	if err := p.MergeSet(fds); err != nil {
		return nil, err
	}
	return p, nil
}

// Merge adds the files in the given serialized file descriptor set to the
// pool. Every dependency of a file in the set must either be in the set or
// already be in the pool; otherwise an error wrapping ErrUnresolvedImport is
// returned. Files already in the pool with identical contents are skipped.
//
// If an error is returned, the pool is left unchanged.
func (p *Pool) Merge(b []byte) error {
	var fds descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(b, &fds); err != nil {
		return &BuildError{Kind: ErrMalformedDescriptor, Detail: "could not parse file descriptor set", Cause: err}
	}
	return p.MergeSet(&fds)
}

// MergeSet is like Merge, but accepts an already parsed descriptor set.
func (p *Pool) MergeSet(fds *descriptorpb.FileDescriptorSet) error {
	l := &linker{
		pool:      p,
		mark:      p.mark(),
		set:       map[string]*descriptorpb.FileDescriptorProto{},
		state:     map[string]linkState{},
		extsByMsg: map[int]int{},
	}
	if err := l.link(fds.GetFile()); err != nil {
		l.rollback()
		return err
	}
	return nil
}

type poolMark struct {
	files, messages, fields, oneofs, enums, enumValues, services, methods int
}

func (p *Pool) mark() poolMark {
	return poolMark{
		files:      len(p.files),
		messages:   len(p.messages),
		fields:     len(p.fields),
		oneofs:     len(p.oneofs),
		enums:      len(p.enums),
		enumValues: len(p.enumValues),
		services:   len(p.services),
		methods:    len(p.methods),
	}
}

type linkState int8

const (
	unvisited linkState = iota
	visiting
	linked
)

// linker adds the files of one descriptor set to a pool. It records
// everything it adds so that a failure can be undone.
type linker struct {
	pool  *Pool
	mark  poolMark
	set   map[string]*descriptorpb.FileDescriptorProto
	state map[string]linkState

	symbols   []string
	fileNames []string
	exts      []extKey
	extsByMsg map[int]int
}

func (l *linker) link(files []*descriptorpb.FileDescriptorProto) error {
	for _, fd := range files {
		name := fd.GetName()
		if name == "" {
			return buildErrorf(ErrMalformedDescriptor, "", "", "file descriptor has no name")
		}
		if existing, ok := l.set[name]; ok {
			if !proto.Equal(existing, fd) {
				return buildErrorf(ErrDuplicateName, name, "", "file appears more than once in descriptor set with different contents")
			}
			continue
		}
		l.set[name] = fd
	}
	for _, fd := range files {
		if err := l.visit(fd.GetName(), ""); err != nil {
			return err
		}
	}

	p := l.pool
	for i := l.mark.fields; i < len(p.fields); i++ {
		if err := l.resolveField(i); err != nil {
			return err
		}
	}
	for i := l.mark.methods; i < len(p.methods); i++ {
		if err := l.resolveMethod(i); err != nil {
			return err
		}
	}
	return nil
}

func (l *linker) rollback() {
	p := l.pool
	m := l.mark
	p.files = p.files[:m.files]
	p.messages = p.messages[:m.messages]
	p.fields = p.fields[:m.fields]
	p.oneofs = p.oneofs[:m.oneofs]
	p.enums = p.enums[:m.enums]
	p.enumValues = p.enumValues[:m.enumValues]
	p.services = p.services[:m.services]
	p.methods = p.methods[:m.methods]
	for _, name := range l.symbols {
		delete(p.symbols, name)
	}
	for _, name := range l.fileNames {
		delete(p.fileNames, name)
	}
	for _, key := range l.exts {
		delete(p.extensions, key)
	}
	for msg, n := range l.extsByMsg {
		if n == 0 {
			delete(p.extsByMsg, msg)
		} else {
			p.extsByMsg[msg] = p.extsByMsg[msg][:n]
		}
	}
}

func (l *linker) visit(name, importer string) error {
	switch l.state[name] {
	case linked:
		return nil
	case visiting:
		return buildErrorf(ErrMalformedDescriptor, importer, "", "import cycle involving %q", name)
	}
	p := l.pool
	fd, inSet := l.set[name]
	if idx, ok := p.fileNames[name]; ok {
		// present before this merge started
		if inSet && !proto.Equal(p.files[idx].proto, fd) {
			return buildErrorf(ErrDuplicateName, name, "", "a different file with this name is already in the pool")
		}
		l.state[name] = linked
		return nil
	}
	if !inSet {
		return buildErrorf(ErrUnresolvedImport, importer, "", "dependency %q is neither in the descriptor set nor in the pool", name)
	}
	l.state[name] = visiting
	for _, dep := range fd.GetDependency() {
		if err := l.visit(dep, name); err != nil {
			return err
		}
	}
	l.state[name] = linked
	return l.declareFile(fd)
}

func (l *linker) addSymbol(file int, name string, sym symbol) error {
	p := l.pool
	if existing, ok := p.symbols[name]; ok {
		if existing.kind == packageSymbol && sym.kind == packageSymbol {
			return nil
		}
		return buildErrorf(ErrDuplicateName, p.files[file].proto.GetName(), name, "already defined as %v", existing.kind)
	}
	p.symbols[name] = sym
	l.symbols = append(l.symbols, name)
	return nil
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

func parentScope(scope string) string {
	if i := strings.LastIndexByte(scope, '.'); i >= 0 {
		return scope[:i]
	}
	return ""
}

func (l *linker) declareFile(fd *descriptorpb.FileDescriptorProto) error {
	p := l.pool
	name := fd.GetName()
	var syntax Syntax
	switch fd.GetSyntax() {
	case "", "proto2":
		syntax = Proto2
	case "proto3":
		syntax = Proto3
	case "editions":
		syntax = Editions
	default:
		return buildErrorf(ErrMalformedDescriptor, name, "", "unknown syntax %q", fd.GetSyntax())
	}
	feats := syntaxDefaults(syntax)
	if syntax == Editions {
		feats = feats.merge(fd.GetOptions().GetFeatures())
	}

	fi := len(p.files)
	deps := make([]int, len(fd.GetDependency()))
	for i, dep := range fd.GetDependency() {
		deps[i] = p.fileNames[dep]
	}
	p.files = append(p.files, fileRecord{proto: fd, syntax: syntax, features: feats, deps: deps})
	p.fileNames[name] = fi
	l.fileNames = append(l.fileNames, name)

	pkg := fd.GetPackage()
	if pkg != "" {
		parts := strings.Split(pkg, ".")
		for i := range parts {
			if err := l.addSymbol(fi, strings.Join(parts[:i+1], "."), symbol{kind: packageSymbol}); err != nil {
				return err
			}
		}
	}

	for _, md := range fd.GetMessageType() {
		mi, err := l.declareMessage(fi, -1, pkg, md, feats)
		if err != nil {
			return err
		}
		p.files[fi].messages = append(p.files[fi].messages, mi)
	}
	for _, ed := range fd.GetEnumType() {
		ei, err := l.declareEnum(fi, -1, pkg, ed, feats)
		if err != nil {
			return err
		}
		p.files[fi].enums = append(p.files[fi].enums, ei)
	}
	for _, ext := range fd.GetExtension() {
		xi, err := l.declareField(fi, -1, pkg, ext, feats, -1, 0)
		if err != nil {
			return err
		}
		p.files[fi].extensions = append(p.files[fi].extensions, xi)
	}
	for _, sd := range fd.GetService() {
		si, err := l.declareService(fi, pkg, sd)
		if err != nil {
			return err
		}
		p.files[fi].services = append(p.files[fi].services, si)
	}
	return nil
}

func (l *linker) declareMessage(fi, parent int, scope string, md *descriptorpb.DescriptorProto, parentFeats features) (int, error) {
	p := l.pool
	if md.GetName() == "" {
		return 0, buildErrorf(ErrMalformedDescriptor, p.files[fi].proto.GetName(), scope, "message has no name")
	}
	fullName := qualify(scope, md.GetName())
	feats := parentFeats
	if p.files[fi].syntax == Editions {
		feats = feats.merge(md.GetOptions().GetFeatures())
	}
	mi := len(p.messages)
	p.messages = append(p.messages, messageRecord{
		proto:      md,
		fullName:   fullName,
		file:       fi,
		parent:     parent,
		features:   feats,
		mapEntry:   md.GetOptions().GetMapEntry(),
		byNumber:   map[int32]int{},
		byName:     map[string]int{},
		byJSONName: map[string]int{},
	})
	if err := l.addSymbol(fi, fullName, symbol{kind: messageSymbol, index: mi}); err != nil {
		return 0, err
	}

	for _, nested := range md.GetNestedType() {
		ni, err := l.declareMessage(fi, mi, fullName, nested, feats)
		if err != nil {
			return 0, err
		}
		p.messages[mi].messages = append(p.messages[mi].messages, ni)
	}
	for _, ed := range md.GetEnumType() {
		ei, err := l.declareEnum(fi, mi, fullName, ed, feats)
		if err != nil {
			return 0, err
		}
		p.messages[mi].enums = append(p.messages[mi].enums, ei)
	}
	oneofBase := len(p.oneofs)
	for _, od := range md.GetOneofDecl() {
		oi := len(p.oneofs)
		oneofName := qualify(fullName, od.GetName())
		p.oneofs = append(p.oneofs, oneofRecord{proto: od, fullName: oneofName, message: mi})
		if err := l.addSymbol(fi, oneofName, symbol{kind: oneofSymbol, index: oi}); err != nil {
			return 0, err
		}
		p.messages[mi].oneofs = append(p.messages[mi].oneofs, oi)
	}
	for _, fld := range md.GetField() {
		if fld.GetExtendee() != "" {
			return 0, buildErrorf(ErrMalformedDescriptor, p.files[fi].proto.GetName(), qualify(fullName, fld.GetName()), "normal field must not have an extendee")
		}
		xi, err := l.declareField(fi, mi, fullName, fld, feats, oneofBase, len(md.GetOneofDecl()))
		if err != nil {
			return 0, err
		}
		rec := &p.messages[mi]
		num := fld.GetNumber()
		if other, dup := rec.byNumber[num]; dup {
			return 0, buildErrorf(ErrMalformedDescriptor, p.files[fi].proto.GetName(), fullName,
				"fields %s and %s both use number %d", p.fields[other].proto.GetName(), fld.GetName(), num)
		}
		rec.fields = append(rec.fields, xi)
		rec.byNumber[num] = xi
		rec.byName[fld.GetName()] = xi
		if _, exists := rec.byJSONName[p.fields[xi].jsonName]; !exists {
			rec.byJSONName[p.fields[xi].jsonName] = xi
		}
	}
	for _, ext := range md.GetExtension() {
		xi, err := l.declareField(fi, mi, fullName, ext, feats, -1, 0)
		if err != nil {
			return 0, err
		}
		p.messages[mi].extensions = append(p.messages[mi].extensions, xi)
	}
	if p.messages[mi].mapEntry {
		if err := checkMapEntry(parent, md); err != nil {
			return 0, buildErrorf(ErrMalformedDescriptor, p.files[fi].proto.GetName(), fullName, "invalid map entry: %v", err)
		}
	}
	return mi, nil
}

// checkMapEntry verifies the shape of a message marked as a map entry: it is
// nested in another message and has only an optional key field numbered 1,
// of a scalar key type, and an optional value field numbered 2.
func checkMapEntry(parent int, md *descriptorpb.DescriptorProto) error {
	if parent < 0 {
		return errors.New("must be nested in a message")
	}
	if len(md.GetField()) != 2 || len(md.GetOneofDecl()) > 0 || len(md.GetExtension()) > 0 || len(md.GetExtensionRange()) > 0 {
		return errors.New("must have exactly a key and a value field")
	}
	var key, value *descriptorpb.FieldDescriptorProto
	for _, fld := range md.GetField() {
		switch fld.GetNumber() {
		case 1:
			key = fld
		case 2:
			value = fld
		}
	}
	if key == nil || value == nil {
		return errors.New("key must be field 1 and value field 2")
	}
	if key.GetLabel() != descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL || value.GetLabel() != descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL {
		return errors.New("key and value must be optional")
	}
	switch key.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_INT32, descriptorpb.FieldDescriptorProto_TYPE_INT64,
		descriptorpb.FieldDescriptorProto_TYPE_UINT32, descriptorpb.FieldDescriptorProto_TYPE_UINT64,
		descriptorpb.FieldDescriptorProto_TYPE_SINT32, descriptorpb.FieldDescriptorProto_TYPE_SINT64,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED32, descriptorpb.FieldDescriptorProto_TYPE_FIXED64,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED32, descriptorpb.FieldDescriptorProto_TYPE_SFIXED64,
		descriptorpb.FieldDescriptorProto_TYPE_BOOL, descriptorpb.FieldDescriptorProto_TYPE_STRING:
		return nil
	default:
		return fmt.Errorf("%s cannot be a map key type", key.GetType())
	}
}

func (l *linker) declareField(fi, parent int, scope string, fld *descriptorpb.FieldDescriptorProto, parentFeats features, oneofBase, oneofCount int) (int, error) {
	p := l.pool
	fileName := p.files[fi].proto.GetName()
	fullName := qualify(scope, fld.GetName())
	if fld.GetName() == "" {
		return 0, buildErrorf(ErrMalformedDescriptor, fileName, scope, "field has no name")
	}
	if fld.GetNumber() <= 0 || fld.GetNumber() > maxFieldNumber {
		return 0, buildErrorf(ErrMalformedDescriptor, fileName, fullName, "invalid field number %d", fld.GetNumber())
	}
	feats := parentFeats
	if p.files[fi].syntax == Editions {
		feats = feats.merge(fld.GetOptions().GetFeatures())
	}
	jsonName := fld.GetJsonName()
	if jsonName == "" {
		jsonName = JSONName(fld.GetName())
	}
	xi := len(p.fields)
	rec := fieldRecord{
		proto:       fld,
		fullName:    fullName,
		jsonName:    jsonName,
		file:        fi,
		parent:      parent,
		extendee:    -1,
		oneof:       -1,
		typeIndex:   -1,
		cardinality: Cardinality(fld.GetLabel()),
		features:    feats,
	}
	if fld.Type != nil {
		rec.kind = Kind(fld.GetType())
	}
	if fld.OneofIndex != nil {
		idx := int(fld.GetOneofIndex())
		if oneofBase < 0 || idx < 0 || idx >= oneofCount {
			return 0, buildErrorf(ErrMalformedDescriptor, fileName, fullName, "invalid oneof index %d", idx)
		}
		rec.oneof = oneofBase + idx
		p.oneofs[rec.oneof].fields = append(p.oneofs[rec.oneof].fields, xi)
		if fld.GetProto3Optional() {
			p.oneofs[rec.oneof].synthetic = true
		}
	}
	p.fields = append(p.fields, rec)
	if err := l.addSymbol(fi, fullName, symbol{kind: fieldSymbol, index: xi}); err != nil {
		return 0, err
	}
	return xi, nil
}

func (l *linker) declareEnum(fi, parent int, scope string, ed *descriptorpb.EnumDescriptorProto, parentFeats features) (int, error) {
	p := l.pool
	fileName := p.files[fi].proto.GetName()
	if ed.GetName() == "" {
		return 0, buildErrorf(ErrMalformedDescriptor, fileName, scope, "enum has no name")
	}
	if len(ed.GetValue()) == 0 {
		return 0, buildErrorf(ErrMalformedDescriptor, fileName, qualify(scope, ed.GetName()), "enum has no values")
	}
	fullName := qualify(scope, ed.GetName())
	feats := parentFeats
	if p.files[fi].syntax == Editions {
		feats = feats.merge(ed.GetOptions().GetFeatures())
	}
	ei := len(p.enums)
	p.enums = append(p.enums, enumRecord{
		proto:    ed,
		fullName: fullName,
		file:     fi,
		parent:   parent,
		closed:   feats.enumType == descriptorpb.FeatureSet_CLOSED,
		byNumber: map[int32]int{},
		byName:   map[string]int{},
	})
	if err := l.addSymbol(fi, fullName, symbol{kind: enumSymbol, index: ei}); err != nil {
		return 0, err
	}
	for _, vd := range ed.GetValue() {
		vi := len(p.enumValues)
		// enum values are siblings of their enum, not children
		valueName := qualify(scope, vd.GetName())
		p.enumValues = append(p.enumValues, enumValueRecord{proto: vd, fullName: valueName, enum: ei})
		if err := l.addSymbol(fi, valueName, symbol{kind: enumValueSymbol, index: vi}); err != nil {
			return 0, err
		}
		rec := &p.enums[ei]
		rec.values = append(rec.values, vi)
		rec.byName[vd.GetName()] = vi
		if _, exists := rec.byNumber[vd.GetNumber()]; !exists {
			rec.byNumber[vd.GetNumber()] = vi
		}
	}
	return ei, nil
}

func (l *linker) declareService(fi int, scope string, sd *descriptorpb.ServiceDescriptorProto) (int, error) {
	p := l.pool
	if sd.GetName() == "" {
		return 0, buildErrorf(ErrMalformedDescriptor, p.files[fi].proto.GetName(), scope, "service has no name")
	}
	fullName := qualify(scope, sd.GetName())
	si := len(p.services)
	p.services = append(p.services, serviceRecord{proto: sd, fullName: fullName, file: fi, byName: map[string]int{}})
	if err := l.addSymbol(fi, fullName, symbol{kind: serviceSymbol, index: si}); err != nil {
		return 0, err
	}
	for _, mtd := range sd.GetMethod() {
		mi := len(p.methods)
		methodName := qualify(fullName, mtd.GetName())
		p.methods = append(p.methods, methodRecord{proto: mtd, fullName: methodName, service: si, input: -1, output: -1})
		if err := l.addSymbol(fi, methodName, symbol{kind: methodSymbol, index: mi}); err != nil {
			return 0, err
		}
		p.services[si].methods = append(p.services[si].methods, mi)
		p.services[si].byName[mtd.GetName()] = mi
	}
	return si, nil
}

// resolve finds the element that the given type reference refers to when it
// appears in the given scope. Fully-qualified references start with a dot.
// Relative references are looked up in the scope and then in each
// enclosing scope, as protoc does.
func (p *Pool) resolve(scope, ref string, accept func(symbolKind) bool) (symbol, bool) {
	if strings.HasPrefix(ref, ".") {
		sym, ok := p.symbols[ref[1:]]
		return sym, ok && accept(sym.kind)
	}
	first, rest := ref, ""
	if i := strings.IndexByte(ref, '.'); i >= 0 {
		first, rest = ref[:i], ref[i:]
	}
	for {
		candidate := qualify(scope, first)
		if sym, ok := p.symbols[candidate]; ok {
			if rest == "" {
				if accept(sym.kind) {
					return sym, true
				}
			} else if isAggregate(sym.kind) {
				// the first component binds here, so the rest must too
				full, ok := p.symbols[candidate+rest]
				return full, ok && accept(full.kind)
			}
		}
		if scope == "" {
			return symbol{}, false
		}
		scope = parentScope(scope)
	}
}

func isAggregate(k symbolKind) bool {
	return k == packageSymbol || k == messageSymbol || k == enumSymbol || k == serviceSymbol
}

func isType(k symbolKind) bool {
	return k == messageSymbol || k == enumSymbol
}

func isMessage(k symbolKind) bool {
	return k == messageSymbol
}

func (p *Pool) scopeOf(rec *fieldRecord) string {
	if rec.parent >= 0 {
		return p.messages[rec.parent].fullName
	}
	return p.files[rec.file].proto.GetPackage()
}

func (l *linker) resolveField(xi int) error {
	p := l.pool
	rec := &p.fields[xi]
	fld := rec.proto
	fileName := p.files[rec.file].proto.GetName()
	scope := p.scopeOf(rec)

	if tn := fld.GetTypeName(); tn != "" {
		sym, ok := p.resolve(scope, tn, isType)
		if !ok {
			return buildErrorf(ErrUnresolvedTypeReference, fileName, rec.fullName, "type %q not found", tn)
		}
		switch sym.kind {
		case messageSymbol:
			if rec.kind == 0 {
				rec.kind = MessageKind
			} else if !rec.kind.IsMessage() {
				return buildErrorf(ErrUnresolvedTypeReference, fileName, rec.fullName, "%q is a message but field type is %v", tn, rec.kind)
			}
		case enumSymbol:
			if rec.kind == 0 {
				rec.kind = EnumKind
			} else if rec.kind != EnumKind {
				return buildErrorf(ErrUnresolvedTypeReference, fileName, rec.fullName, "%q is an enum but field type is %v", tn, rec.kind)
			}
		}
		rec.typeIndex = sym.index
		if sym.kind == messageSymbol && p.messages[sym.index].mapEntry {
			entry := &p.messages[sym.index]
			if rec.cardinality != Repeated || rec.kind != MessageKind || fld.GetExtendee() != "" || entry.parent != rec.parent {
				return buildErrorf(ErrMalformedDescriptor, fileName, rec.fullName,
					"map entry %s may only be used by a repeated field of its enclosing message", entry.fullName)
			}
		}
	} else if rec.kind == 0 || rec.kind.IsMessage() || rec.kind == EnumKind {
		return buildErrorf(ErrMalformedDescriptor, fileName, rec.fullName, "field has no type name")
	}
	if !rec.kind.IsValid() {
		return buildErrorf(ErrMalformedDescriptor, fileName, rec.fullName, "invalid field type %d", int(rec.kind))
	}

	if ext := fld.GetExtendee(); ext != "" {
		sym, ok := p.resolve(scope, ext, isMessage)
		if !ok {
			return buildErrorf(ErrUnresolvedTypeReference, fileName, rec.fullName, "extended message %q not found", ext)
		}
		target := &p.messages[sym.index]
		if !inRanges(target.proto.GetExtensionRange(), fld.GetNumber()) {
			return buildErrorf(ErrMalformedDescriptor, fileName, rec.fullName,
				"%s does not declare %d as an extension number", target.fullName, fld.GetNumber())
		}
		key := extKey{message: sym.index, number: fld.GetNumber()}
		if other, exists := p.extensions[key]; exists {
			return buildErrorf(ErrDuplicateName, fileName, rec.fullName,
				"extension number %d of %s is already used by %s", fld.GetNumber(), target.fullName, p.fields[other].fullName)
		}
		rec.extendee = sym.index
		p.extensions[key] = xi
		l.exts = append(l.exts, key)
		if _, noted := l.extsByMsg[sym.index]; !noted {
			l.extsByMsg[sym.index] = len(p.extsByMsg[sym.index])
		}
		p.extsByMsg[sym.index] = append(p.extsByMsg[sym.index], xi)
	}

	syntax := p.files[rec.file].syntax
	f := rec.features
	if rec.cardinality == 0 {
		rec.cardinality = Optional
	}
	if syntax == Editions && rec.cardinality == Optional && f.presence == descriptorpb.FeatureSet_LEGACY_REQUIRED {
		rec.cardinality = Required
	}
	isMap := rec.cardinality == Repeated && rec.kind == MessageKind && p.messages[rec.typeIndex].mapEntry
	if syntax == Editions && rec.kind == MessageKind && !isMap && f.encoding == descriptorpb.FeatureSet_DELIMITED {
		rec.kind = GroupKind
	}
	if rec.cardinality == Repeated && packable(rec.kind) {
		if opts := fld.GetOptions(); opts != nil && opts.Packed != nil {
			rec.packed = opts.GetPacked()
		} else {
			rec.packed = f.repeated == descriptorpb.FeatureSet_PACKED
		}
	}
	switch {
	case rec.cardinality == Repeated:
		rec.presence = false
	case rec.kind.IsMessage(), rec.oneof >= 0, rec.extendee >= 0, fld.GetProto3Optional():
		rec.presence = true
	default:
		rec.presence = f.presence != descriptorpb.FeatureSet_IMPLICIT
	}
	rec.validateUTF8 = rec.kind == StringKind && f.utf8 == descriptorpb.FeatureSet_VERIFY

	if fld.DefaultValue != nil {
		v, err := p.parseDefault(rec, fld.GetDefaultValue())
		if err != nil {
			return &BuildError{Kind: ErrMalformedDescriptor, File: fileName, Symbol: rec.fullName, Detail: "invalid default value", Cause: err}
		}
		rec.hasDefault = true
		rec.defaultValue = v
	}
	return nil
}

func (l *linker) resolveMethod(mi int) error {
	p := l.pool
	rec := &p.methods[mi]
	svc := &p.services[rec.service]
	fileName := p.files[svc.file].proto.GetName()
	in, ok := p.resolve(svc.fullName, rec.proto.GetInputType(), isMessage)
	if !ok {
		return buildErrorf(ErrUnresolvedTypeReference, fileName, rec.fullName, "input type %q not found", rec.proto.GetInputType())
	}
	out, ok := p.resolve(svc.fullName, rec.proto.GetOutputType(), isMessage)
	if !ok {
		return buildErrorf(ErrUnresolvedTypeReference, fileName, rec.fullName, "output type %q not found", rec.proto.GetOutputType())
	}
	rec.input = in.index
	rec.output = out.index
	return nil
}

const maxFieldNumber = 1<<29 - 1

func inRanges(ranges []*descriptorpb.DescriptorProto_ExtensionRange, num int32) bool {
	for _, r := range ranges {
		if num >= r.GetStart() && num < r.GetEnd() {
			return true
		}
	}
	return false
}

func packable(k Kind) bool {
	switch k {
	case StringKind, BytesKind, MessageKind, GroupKind:
		return false
	default:
		return true
	}
}

// JSONName computes the default JSON name for a field with the given
// name: underscores are removed and the letter following each underscore
// is capitalized.
func JSONName(name string) string {
	var sb strings.Builder
	upper := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_':
			upper = true
		case upper && 'a' <= c && c <= 'z':
			sb.WriteByte(c - 'a' + 'A')
			upper = false
		default:
			sb.WriteByte(c)
			upper = false
		}
	}
	return sb.String()
}

func (p *Pool) parseDefault(rec *fieldRecord, s string) (any, error) {
	switch rec.kind {
	case BoolKind:
		switch s {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a bool", s)
	case Int32Kind, Sint32Kind, Sfixed32Kind:
		v, err := parseInt(s, 32)
		return int32(v), err
	case Int64Kind, Sint64Kind, Sfixed64Kind:
		return parseInt(s, 64)
	case Uint32Kind, Fixed32Kind:
		v, err := parseUint(s, 32)
		return uint32(v), err
	case Uint64Kind, Fixed64Kind:
		return parseUint(s, 64)
	case FloatKind:
		v, err := parseFloat(s, 32)
		return float32(v), err
	case DoubleKind:
		return parseFloat(s, 64)
	case StringKind:
		return s, nil
	case BytesKind:
		return unescapeBytes(s)
	case EnumKind:
		vi, ok := p.enums[rec.typeIndex].byName[s]
		if !ok {
			return nil, fmt.Errorf("enum %s has no value named %q", p.enums[rec.typeIndex].fullName, s)
		}
		return p.enumValues[vi].proto.GetNumber(), nil
	default:
		return nil, fmt.Errorf("%v fields cannot have a default value", rec.kind)
	}
}

func parseInt(s string, bits int) (int64, error) {
	v, err := strconv.ParseInt(s, 10, bits)
	if err != nil {
		return strconv.ParseInt(s, 0, bits)
	}
	return v, nil
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return strconv.ParseUint(s, 0, bits)
	}
	return v, nil
}

func parseFloat(s string, bits int) (float64, error) {
	switch s {
	case "inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	case "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, bits)
}

// unescapeBytes decodes the C-style escaping that protoc uses for default
// values of bytes fields.
func unescapeBytes(s string) ([]byte, error) {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b = append(b, c)
			continue
		}
		i++
		if i >= len(s) {
			return nil, fmt.Errorf("invalid escape at end of %q", s)
		}
		switch c = s[i]; c {
		case 'a':
			b = append(b, '\a')
		case 'b':
			b = append(b, '\b')
		case 'f':
			b = append(b, '\f')
		case 'n':
			b = append(b, '\n')
		case 'r':
			b = append(b, '\r')
		case 't':
			b = append(b, '\t')
		case 'v':
			b = append(b, '\v')
		case '\\', '\'', '"', '?':
			b = append(b, c)
		case 'x', 'X':
			j := i + 1
			for j < len(s) && j < i+3 && isHex(s[j]) {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("invalid hex escape in %q", s)
			}
			v, _ := strconv.ParseUint(s[i+1:j], 16, 8)
			b = append(b, byte(v))
			i = j - 1
		default:
			if c < '0' || c > '7' {
				return nil, fmt.Errorf("invalid escape \\%c in %q", c, s)
			}
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			v, err := strconv.ParseUint(s[i:j], 8, 16)
			if err != nil || v > 0xff {
				return nil, fmt.Errorf("invalid octal escape in %q", s)
			}
			b = append(b, byte(v))
			i = j - 1
		}
	}
	return b, nil
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
