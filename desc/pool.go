package desc

import (
	"google.golang.org/protobuf/types/descriptorpb"
)

type symbolKind int8

const (
	packageSymbol symbolKind = iota + 1
	messageSymbol
	fieldSymbol
	oneofSymbol
	enumSymbol
	enumValueSymbol
	serviceSymbol
	methodSymbol
)

func (k symbolKind) String() string {
	switch k {
	case packageSymbol:
		return "package"
	case messageSymbol:
		return "message"
	case fieldSymbol:
		return "field"
	case oneofSymbol:
		return "oneof"
	case enumSymbol:
		return "enum"
	case enumValueSymbol:
		return "enum value"
	case serviceSymbol:
		return "service"
	case methodSymbol:
		return "method"
	default:
		return "symbol"
	}
}

type symbol struct {
	kind  symbolKind
	index int
}

type extKey struct {
	message int
	number  int32
}

// Records below live in the pool's arena slices. Every cross reference is
// an index into one of those slices, never a pointer, so that recursive
// and mutually recursive types are trivially representable.

type fileRecord struct {
	proto      *descriptorpb.FileDescriptorProto
	syntax     Syntax
	features   features
	deps       []int
	messages   []int
	enums      []int
	extensions []int
	services   []int
}

type messageRecord struct {
	proto      *descriptorpb.DescriptorProto
	fullName   string
	file       int
	parent     int
	features   features
	mapEntry   bool
	fields     []int
	byNumber   map[int32]int
	byName     map[string]int
	byJSONName map[string]int
	oneofs     []int
	messages   []int
	enums      []int
	extensions []int
}

type fieldRecord struct {
	proto        *descriptorpb.FieldDescriptorProto
	fullName     string
	jsonName     string
	file         int
	parent       int
	extendee     int
	oneof        int
	typeIndex    int
	kind         Kind
	cardinality  Cardinality
	features     features
	packed       bool
	presence     bool
	validateUTF8 bool
	hasDefault   bool
	defaultValue any
}

type oneofRecord struct {
	proto     *descriptorpb.OneofDescriptorProto
	fullName  string
	message   int
	fields    []int
	synthetic bool
}

type enumRecord struct {
	proto    *descriptorpb.EnumDescriptorProto
	fullName string
	file     int
	parent   int
	closed   bool
	values   []int
	byNumber map[int32]int
	byName   map[string]int
}

type enumValueRecord struct {
	proto    *descriptorpb.EnumValueDescriptorProto
	fullName string
	enum     int
}

type serviceRecord struct {
	proto    *descriptorpb.ServiceDescriptorProto
	fullName string
	file     int
	methods  []int
	byName   map[string]int
}

type methodRecord struct {
	proto    *descriptorpb.MethodDescriptorProto
	fullName string
	service  int
	input    int
	output   int
}

// Pool is an arena of descriptors built from one or more serialized
// google.protobuf.FileDescriptorSet messages. All elements are addressed by
// stable index and by fully-qualified name.
//
// Once built, a pool is immutable and may be read concurrently from any
// number of goroutines. Merge mutates the pool, so it must not be called
// concurrently with any other use of the pool or of descriptors obtained
// from it.
type Pool struct {
	files      []fileRecord
	messages   []messageRecord
	fields     []fieldRecord
	oneofs     []oneofRecord
	enums      []enumRecord
	enumValues []enumValueRecord
	services   []serviceRecord
	methods    []methodRecord

	symbols    map[string]symbol
	fileNames  map[string]int
	extensions map[extKey]int
	extsByMsg  map[int][]int
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{
		symbols:    map[string]symbol{},
		fileNames:  map[string]int{},
		extensions: map[extKey]int{},
		extsByMsg:  map[int][]int{},
	}
}

func (p *Pool) lookup(name string, kind symbolKind) (int, bool) {
	if len(name) > 0 && name[0] == '.' {
		name = name[1:]
	}
	sym, ok := p.symbols[name]
	if !ok || sym.kind != kind {
		return 0, false
	}
	return sym.index, true
}

// FindFileByName returns the file with the given name (path), such as
// "google/protobuf/any.proto".
func (p *Pool) FindFileByName(name string) (FileDescriptor, bool) {
	i, ok := p.fileNames[name]
	if !ok {
		return FileDescriptor{}, false
	}
	return FileDescriptor{pool: p, index: i}, true
}

// FindMessageByName returns the message with the given fully-qualified
// name. A leading dot is allowed but not required.
func (p *Pool) FindMessageByName(name string) (MessageDescriptor, bool) {
	i, ok := p.lookup(name, messageSymbol)
	if !ok {
		return MessageDescriptor{}, false
	}
	return MessageDescriptor{pool: p, index: i}, true
}

// FindEnumByName returns the enum with the given fully-qualified name.
func (p *Pool) FindEnumByName(name string) (EnumDescriptor, bool) {
	i, ok := p.lookup(name, enumSymbol)
	if !ok {
		return EnumDescriptor{}, false
	}
	return EnumDescriptor{pool: p, index: i}, true
}

// FindEnumValueByName returns the enum value with the given fully-qualified
// name. Note that enum values are scoped as siblings of their enum, so the
// value RED of enum foo.Color is named "foo.RED".
func (p *Pool) FindEnumValueByName(name string) (EnumValueDescriptor, bool) {
	i, ok := p.lookup(name, enumValueSymbol)
	if !ok {
		return EnumValueDescriptor{}, false
	}
	return EnumValueDescriptor{pool: p, index: i}, true
}

// FindFieldByName returns the normal field with the given fully-qualified
// name. Extensions are not returned; use FindExtensionByName for those.
func (p *Pool) FindFieldByName(name string) (FieldDescriptor, bool) {
	i, ok := p.lookup(name, fieldSymbol)
	if !ok || p.fields[i].extendee >= 0 {
		return FieldDescriptor{}, false
	}
	return FieldDescriptor{pool: p, index: i}, true
}

// FindExtensionByName returns the extension with the given fully-qualified
// name.
func (p *Pool) FindExtensionByName(name string) (FieldDescriptor, bool) {
	i, ok := p.lookup(name, fieldSymbol)
	if !ok || p.fields[i].extendee < 0 {
		return FieldDescriptor{}, false
	}
	return FieldDescriptor{pool: p, index: i}, true
}

// FindExtensionByNumber returns the extension of the named message that
// has the given field number.
func (p *Pool) FindExtensionByNumber(extendee string, number int32) (FieldDescriptor, bool) {
	mi, ok := p.lookup(extendee, messageSymbol)
	if !ok {
		return FieldDescriptor{}, false
	}
	fi, ok := p.extensions[extKey{message: mi, number: number}]
	if !ok {
		return FieldDescriptor{}, false
	}
	return FieldDescriptor{pool: p, index: fi}, true
}

// Extensions returns all extensions in the pool that extend the given
// message, in the order they were added to the pool.
func (p *Pool) Extensions(extendee MessageDescriptor) []FieldDescriptor {
	if extendee.pool != p {
		return nil
	}
	return p.fieldHandles(p.extsByMsg[extendee.index])
}

// FindOneofByName returns the oneof with the given fully-qualified name.
func (p *Pool) FindOneofByName(name string) (OneofDescriptor, bool) {
	i, ok := p.lookup(name, oneofSymbol)
	if !ok {
		return OneofDescriptor{}, false
	}
	return OneofDescriptor{pool: p, index: i}, true
}

// FindServiceByName returns the service with the given fully-qualified name.
func (p *Pool) FindServiceByName(name string) (ServiceDescriptor, bool) {
	i, ok := p.lookup(name, serviceSymbol)
	if !ok {
		return ServiceDescriptor{}, false
	}
	return ServiceDescriptor{pool: p, index: i}, true
}

// FindMethodByName returns the method with the given fully-qualified name,
// such as "foo.bar.SearchService.Search".
func (p *Pool) FindMethodByName(name string) (MethodDescriptor, bool) {
	i, ok := p.lookup(name, methodSymbol)
	if !ok {
		return MethodDescriptor{}, false
	}
	return MethodDescriptor{pool: p, index: i}, true
}

// Files returns all files in the pool. Every file appears after all of
// its dependencies.
func (p *Pool) Files() []FileDescriptor {
	fds := make([]FileDescriptor, len(p.files))
	for i := range p.files {
		fds[i] = FileDescriptor{pool: p, index: i}
	}
	return fds
}

// AsFileDescriptorSet returns the contents of the pool as a file descriptor
// set, in dependency order. The returned set shares the pool's underlying
// descriptor protos, which must not be modified.
func (p *Pool) AsFileDescriptorSet() *descriptorpb.FileDescriptorSet {
	fds := &descriptorpb.FileDescriptorSet{File: make([]*descriptorpb.FileDescriptorProto, len(p.files))}
	for i := range p.files {
		fds.File[i] = p.files[i].proto
	}
	return fds
}

func (p *Pool) fieldHandles(indices []int) []FieldDescriptor {
	if len(indices) == 0 {
		return nil
	}
	fds := make([]FieldDescriptor, len(indices))
	for i, idx := range indices {
		fds[i] = FieldDescriptor{pool: p, index: idx}
	}
	return fds
}

func (p *Pool) messageHandles(indices []int) []MessageDescriptor {
	if len(indices) == 0 {
		return nil
	}
	mds := make([]MessageDescriptor, len(indices))
	for i, idx := range indices {
		mds[i] = MessageDescriptor{pool: p, index: idx}
	}
	return mds
}

func (p *Pool) enumHandles(indices []int) []EnumDescriptor {
	if len(indices) == 0 {
		return nil
	}
	eds := make([]EnumDescriptor, len(indices))
	for i, idx := range indices {
		eds[i] = EnumDescriptor{pool: p, index: idx}
	}
	return eds
}
