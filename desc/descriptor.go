// Package desc contains a pool of protobuf descriptors that is built from
// serialized google.protobuf.FileDescriptorSet messages, along with handle
// types for navigating the elements in the pool.
//
// The pool stores every element in an arena and every cross reference as an
// index into that arena. Handles such as MessageDescriptor and
// FieldDescriptor are small values that pair a pool with an index, so they
// are cheap to copy and comparable with ==. Recursive and mutually recursive
// message types need no special treatment: following a field to its message
// type simply produces another handle.
//
// The zero value of every handle type is invalid. Calling methods other than
// IsValid on an invalid handle panics.
package desc

import (
	"fmt"

	"google.golang.org/protobuf/types/descriptorpb"
)

// FileDescriptor describes a proto source file.
type FileDescriptor struct {
	pool  *Pool
	index int
}

func (fd FileDescriptor) rec() *fileRecord {
	return &fd.pool.files[fd.index]
}

// IsValid returns false for the zero value.
func (fd FileDescriptor) IsValid() bool {
	return fd.pool != nil
}

// Pool returns the pool that contains this file.
func (fd FileDescriptor) Pool() *Pool {
	return fd.pool
}

// Name returns the path of the file, such as "foo/bar/baz.proto".
func (fd FileDescriptor) Name() string {
	return fd.rec().proto.GetName()
}

// Package returns the package declared in the file, which may be empty.
func (fd FileDescriptor) Package() string {
	return fd.rec().proto.GetPackage()
}

// Syntax returns the syntax of the file.
func (fd FileDescriptor) Syntax() Syntax {
	return fd.rec().syntax
}

// Dependencies returns the files imported by this file.
func (fd FileDescriptor) Dependencies() []FileDescriptor {
	deps := fd.rec().deps
	if len(deps) == 0 {
		return nil
	}
	res := make([]FileDescriptor, len(deps))
	for i, d := range deps {
		res[i] = FileDescriptor{pool: fd.pool, index: d}
	}
	return res
}

// Messages returns the top-level messages declared in the file.
func (fd FileDescriptor) Messages() []MessageDescriptor {
	return fd.pool.messageHandles(fd.rec().messages)
}

// Enums returns the top-level enums declared in the file.
func (fd FileDescriptor) Enums() []EnumDescriptor {
	return fd.pool.enumHandles(fd.rec().enums)
}

// Extensions returns the top-level extensions declared in the file.
func (fd FileDescriptor) Extensions() []FieldDescriptor {
	return fd.pool.fieldHandles(fd.rec().extensions)
}

// Services returns the services declared in the file.
func (fd FileDescriptor) Services() []ServiceDescriptor {
	svcs := fd.rec().services
	if len(svcs) == 0 {
		return nil
	}
	res := make([]ServiceDescriptor, len(svcs))
	for i, s := range svcs {
		res[i] = ServiceDescriptor{pool: fd.pool, index: s}
	}
	return res
}

// AsProto returns the underlying descriptor proto. It must not be modified.
func (fd FileDescriptor) AsProto() *descriptorpb.FileDescriptorProto {
	return fd.rec().proto
}

func (fd FileDescriptor) String() string {
	if !fd.IsValid() {
		return "<invalid file>"
	}
	return fd.Name()
}

// MessageDescriptor describes a protocol buffer message.
type MessageDescriptor struct {
	pool  *Pool
	index int
}

func (md MessageDescriptor) rec() *messageRecord {
	return &md.pool.messages[md.index]
}

// IsValid returns false for the zero value.
func (md MessageDescriptor) IsValid() bool {
	return md.pool != nil
}

// Pool returns the pool that contains this message.
func (md MessageDescriptor) Pool() *Pool {
	return md.pool
}

// Name returns the simple name of the message, without any package or
// enclosing message names.
func (md MessageDescriptor) Name() string {
	return md.rec().proto.GetName()
}

// FullName returns the fully-qualified name of the message, such as
// "foo.bar.Outer.Inner". There is no leading dot.
func (md MessageDescriptor) FullName() string {
	return md.rec().fullName
}

// File returns the file in which the message was declared.
func (md MessageDescriptor) File() FileDescriptor {
	return FileDescriptor{pool: md.pool, index: md.rec().file}
}

// ContainingMessage returns the enclosing message, if this is a nested
// message. For top-level messages it returns an invalid handle.
func (md MessageDescriptor) ContainingMessage() MessageDescriptor {
	if p := md.rec().parent; p >= 0 {
		return MessageDescriptor{pool: md.pool, index: p}
	}
	return MessageDescriptor{}
}

// IsMapEntry returns true if this is a synthetic message that represents
// the entries of a map field.
func (md MessageDescriptor) IsMapEntry() bool {
	return md.rec().mapEntry
}

// Fields returns the normal (non-extension) fields of the message, in the
// order they were declared.
func (md MessageDescriptor) Fields() []FieldDescriptor {
	return md.pool.fieldHandles(md.rec().fields)
}

// FindFieldByNumber returns the normal field with the given number.
// Extensions are not returned; use FindExtensionByNumber for those.
func (md MessageDescriptor) FindFieldByNumber(num int32) (FieldDescriptor, bool) {
	i, ok := md.rec().byNumber[num]
	if !ok {
		return FieldDescriptor{}, false
	}
	return FieldDescriptor{pool: md.pool, index: i}, true
}

// FindFieldByName returns the normal field with the given declared name.
func (md MessageDescriptor) FindFieldByName(name string) (FieldDescriptor, bool) {
	i, ok := md.rec().byName[name]
	if !ok {
		return FieldDescriptor{}, false
	}
	return FieldDescriptor{pool: md.pool, index: i}, true
}

// FindFieldByJSONName returns the normal field with the given JSON name.
func (md MessageDescriptor) FindFieldByJSONName(name string) (FieldDescriptor, bool) {
	i, ok := md.rec().byJSONName[name]
	if !ok {
		return FieldDescriptor{}, false
	}
	return FieldDescriptor{pool: md.pool, index: i}, true
}

// Oneofs returns the oneofs of the message, including synthetic oneofs
// created for proto3 optional fields.
func (md MessageDescriptor) Oneofs() []OneofDescriptor {
	oos := md.rec().oneofs
	if len(oos) == 0 {
		return nil
	}
	res := make([]OneofDescriptor, len(oos))
	for i, o := range oos {
		res[i] = OneofDescriptor{pool: md.pool, index: o}
	}
	return res
}

// NestedMessages returns the messages declared inside this message.
func (md MessageDescriptor) NestedMessages() []MessageDescriptor {
	return md.pool.messageHandles(md.rec().messages)
}

// NestedEnums returns the enums declared inside this message.
func (md MessageDescriptor) NestedEnums() []EnumDescriptor {
	return md.pool.enumHandles(md.rec().enums)
}

// NestedExtensions returns the extensions declared inside this message.
// These may extend any message, not necessarily this one.
func (md MessageDescriptor) NestedExtensions() []FieldDescriptor {
	return md.pool.fieldHandles(md.rec().extensions)
}

// ExtensionRanges returns the ranges of field numbers reserved for
// extensions. Each range is a half-open interval [start, end).
func (md MessageDescriptor) ExtensionRanges() [][2]int32 {
	ranges := md.rec().proto.GetExtensionRange()
	if len(ranges) == 0 {
		return nil
	}
	res := make([][2]int32, len(ranges))
	for i, r := range ranges {
		res[i] = [2]int32{r.GetStart(), r.GetEnd()}
	}
	return res
}

// IsExtensionNumber returns true if the given number is in one of the
// message's extension ranges.
func (md MessageDescriptor) IsExtensionNumber(num int32) bool {
	return inRanges(md.rec().proto.GetExtensionRange(), num)
}

// Extensions returns all extensions of this message known to the pool.
func (md MessageDescriptor) Extensions() []FieldDescriptor {
	return md.pool.Extensions(md)
}

// FindExtensionByNumber returns the extension of this message with the
// given number, if the pool has one.
func (md MessageDescriptor) FindExtensionByNumber(num int32) (FieldDescriptor, bool) {
	i, ok := md.pool.extensions[extKey{message: md.index, number: num}]
	if !ok {
		return FieldDescriptor{}, false
	}
	return FieldDescriptor{pool: md.pool, index: i}, true
}

// AsProto returns the underlying descriptor proto. It must not be modified.
func (md MessageDescriptor) AsProto() *descriptorpb.DescriptorProto {
	return md.rec().proto
}

func (md MessageDescriptor) String() string {
	if !md.IsValid() {
		return "<invalid message>"
	}
	return md.FullName()
}

// FieldDescriptor describes a field or an extension.
type FieldDescriptor struct {
	pool  *Pool
	index int
}

func (fd FieldDescriptor) rec() *fieldRecord {
	return &fd.pool.fields[fd.index]
}

// IsValid returns false for the zero value.
func (fd FieldDescriptor) IsValid() bool {
	return fd.pool != nil
}

// Name returns the declared name of the field.
func (fd FieldDescriptor) Name() string {
	return fd.rec().proto.GetName()
}

// FullName returns the fully-qualified name of the field. For extensions,
// this is scoped by where the extension was declared, not by the message
// it extends.
func (fd FieldDescriptor) FullName() string {
	return fd.rec().fullName
}

// JSONName returns the name used for the field in the JSON format, which is
// the json_name option if present or else the lower camel case form of the
// declared name.
func (fd FieldDescriptor) JSONName() string {
	return fd.rec().jsonName
}

// Number returns the field's number.
func (fd FieldDescriptor) Number() int32 {
	return fd.rec().proto.GetNumber()
}

// Kind returns the field's type. Fields of delimited-encoded messages in
// editions files report GroupKind.
func (fd FieldDescriptor) Kind() Kind {
	return fd.rec().kind
}

// Cardinality returns whether the field is optional, required, or repeated.
func (fd FieldDescriptor) Cardinality() Cardinality {
	return fd.rec().cardinality
}

// File returns the file in which the field was declared.
func (fd FieldDescriptor) File() FileDescriptor {
	return FileDescriptor{pool: fd.pool, index: fd.rec().file}
}

// IsRepeated returns true for repeated fields, including map fields.
func (fd FieldDescriptor) IsRepeated() bool {
	return fd.rec().cardinality == Repeated
}

// IsRequired returns true for proto2 required fields and for editions
// fields with LEGACY_REQUIRED presence.
func (fd FieldDescriptor) IsRequired() bool {
	return fd.rec().cardinality == Required
}

// IsMap returns true if this is a map field: a repeated field whose
// message type is a map entry.
func (fd FieldDescriptor) IsMap() bool {
	r := fd.rec()
	return r.cardinality == Repeated && r.kind == MessageKind && fd.pool.messages[r.typeIndex].mapEntry
}

// IsPacked returns true if this repeated field uses the packed encoding
// when serialized. Decoding accepts both encodings regardless.
func (fd FieldDescriptor) IsPacked() bool {
	return fd.rec().packed
}

// HasPresence returns true if the field distinguishes between being unset
// and being set to its default value. Repeated fields never have presence.
func (fd FieldDescriptor) HasPresence() bool {
	return fd.rec().presence
}

// ValidatesUTF8 returns true for string fields whose contents must be
// valid UTF-8.
func (fd FieldDescriptor) ValidatesUTF8() bool {
	return fd.rec().validateUTF8
}

// IsExtension returns true if this field is an extension.
func (fd FieldDescriptor) IsExtension() bool {
	return fd.rec().extendee >= 0
}

// ContainingMessage returns the message that this field belongs to. For
// extensions, that is the extended message.
func (fd FieldDescriptor) ContainingMessage() MessageDescriptor {
	r := fd.rec()
	if r.extendee >= 0 {
		return MessageDescriptor{pool: fd.pool, index: r.extendee}
	}
	return MessageDescriptor{pool: fd.pool, index: r.parent}
}

// ContainingOneof returns the oneof to which this field belongs, or an
// invalid handle if it does not belong to one.
func (fd FieldDescriptor) ContainingOneof() OneofDescriptor {
	if o := fd.rec().oneof; o >= 0 {
		return OneofDescriptor{pool: fd.pool, index: o}
	}
	return OneofDescriptor{}
}

// Message returns the field's message type, or an invalid handle if the
// field's kind is not a message or group.
func (fd FieldDescriptor) Message() MessageDescriptor {
	r := fd.rec()
	if !r.kind.IsMessage() {
		return MessageDescriptor{}
	}
	return MessageDescriptor{pool: fd.pool, index: r.typeIndex}
}

// Enum returns the field's enum type, or an invalid handle if the field's
// kind is not an enum.
func (fd FieldDescriptor) Enum() EnumDescriptor {
	r := fd.rec()
	if r.kind != EnumKind {
		return EnumDescriptor{}
	}
	return EnumDescriptor{pool: fd.pool, index: r.typeIndex}
}

// MapKey returns the key field of a map field's entry message.
func (fd FieldDescriptor) MapKey() FieldDescriptor {
	if !fd.IsMap() {
		return FieldDescriptor{}
	}
	k, _ := fd.Message().FindFieldByNumber(1)
	return k
}

// MapValue returns the value field of a map field's entry message.
func (fd FieldDescriptor) MapValue() FieldDescriptor {
	if !fd.IsMap() {
		return FieldDescriptor{}
	}
	v, _ := fd.Message().FindFieldByNumber(2)
	return v
}

// HasDefault returns true if the field declares an explicit default.
func (fd FieldDescriptor) HasDefault() bool {
	return fd.rec().hasDefault
}

// Default returns the field's explicit default, parsed into the Go type
// for its kind: bool, int32, int64, uint32, uint64, float32, float64,
// string or []byte. Enum defaults are returned as the int32 number of the
// named value. If the field has no explicit default, nil is returned.
func (fd FieldDescriptor) Default() any {
	return fd.rec().defaultValue
}

// AsProto returns the underlying descriptor proto. It must not be modified.
func (fd FieldDescriptor) AsProto() *descriptorpb.FieldDescriptorProto {
	return fd.rec().proto
}

func (fd FieldDescriptor) String() string {
	if !fd.IsValid() {
		return "<invalid field>"
	}
	return fmt.Sprintf("%s (%d, %v)", fd.FullName(), fd.Number(), fd.Kind())
}

// OneofDescriptor describes a oneof in a message.
type OneofDescriptor struct {
	pool  *Pool
	index int
}

func (od OneofDescriptor) rec() *oneofRecord {
	return &od.pool.oneofs[od.index]
}

// IsValid returns false for the zero value.
func (od OneofDescriptor) IsValid() bool {
	return od.pool != nil
}

// Name returns the simple, unqualified name of the oneof.
func (od OneofDescriptor) Name() string {
	return od.rec().proto.GetName()
}

// FullName returns the fully-qualified name of the oneof, without a leading dot.
func (od OneofDescriptor) FullName() string {
	return od.rec().fullName
}

// Fields returns the members of the oneof.
func (od OneofDescriptor) Fields() []FieldDescriptor {
	return od.pool.fieldHandles(od.rec().fields)
}

// ContainingMessage returns the message that declares the oneof.
func (od OneofDescriptor) ContainingMessage() MessageDescriptor {
	return MessageDescriptor{pool: od.pool, index: od.rec().message}
}

// IsSynthetic returns true for the single-field oneofs that protoc
// generates for proto3 optional fields.
func (od OneofDescriptor) IsSynthetic() bool {
	return od.rec().synthetic
}

// AsProto returns the descriptor proto from which the oneof was built.
func (od OneofDescriptor) AsProto() *descriptorpb.OneofDescriptorProto {
	return od.rec().proto
}

func (od OneofDescriptor) String() string {
	if !od.IsValid() {
		return "<invalid oneof>"
	}
	return od.FullName()
}

// EnumDescriptor describes an enum type.
type EnumDescriptor struct {
	pool  *Pool
	index int
}

func (ed EnumDescriptor) rec() *enumRecord {
	return &ed.pool.enums[ed.index]
}

// IsValid returns false for the zero value.
func (ed EnumDescriptor) IsValid() bool {
	return ed.pool != nil
}

// Name returns the simple, unqualified name of the enum.
func (ed EnumDescriptor) Name() string {
	return ed.rec().proto.GetName()
}

// FullName returns the fully-qualified name of the enum, without a leading dot.
func (ed EnumDescriptor) FullName() string {
	return ed.rec().fullName
}

// File returns the file in which the enum is declared.
func (ed EnumDescriptor) File() FileDescriptor {
	return FileDescriptor{pool: ed.pool, index: ed.rec().file}
}

// IsClosed returns true for enums that only accept declared values, such
// as proto2 enums.
func (ed EnumDescriptor) IsClosed() bool {
	return ed.rec().closed
}

// Values returns the enum's values in declaration order.
func (ed EnumDescriptor) Values() []EnumValueDescriptor {
	vals := ed.rec().values
	res := make([]EnumValueDescriptor, len(vals))
	for i, v := range vals {
		res[i] = EnumValueDescriptor{pool: ed.pool, index: v}
	}
	return res
}

// FindValueByName returns the value with the given simple name.
func (ed EnumDescriptor) FindValueByName(name string) (EnumValueDescriptor, bool) {
	i, ok := ed.rec().byName[name]
	if !ok {
		return EnumValueDescriptor{}, false
	}
	return EnumValueDescriptor{pool: ed.pool, index: i}, true
}

// FindValueByNumber returns the first declared value with the given number.
// Enums that allow aliases may have more than one.
func (ed EnumDescriptor) FindValueByNumber(num int32) (EnumValueDescriptor, bool) {
	i, ok := ed.rec().byNumber[num]
	if !ok {
		return EnumValueDescriptor{}, false
	}
	return EnumValueDescriptor{pool: ed.pool, index: i}, true
}

// DefaultValue returns the enum's first declared value, which is the
// default for fields of this type.
func (ed EnumDescriptor) DefaultValue() EnumValueDescriptor {
	return EnumValueDescriptor{pool: ed.pool, index: ed.rec().values[0]}
}

// AsProto returns the descriptor proto from which the enum was built.
func (ed EnumDescriptor) AsProto() *descriptorpb.EnumDescriptorProto {
	return ed.rec().proto
}

func (ed EnumDescriptor) String() string {
	if !ed.IsValid() {
		return "<invalid enum>"
	}
	return ed.FullName()
}

// EnumValueDescriptor describes one value of an enum.
type EnumValueDescriptor struct {
	pool  *Pool
	index int
}

func (vd EnumValueDescriptor) rec() *enumValueRecord {
	return &vd.pool.enumValues[vd.index]
}

// IsValid returns false for the zero value.
func (vd EnumValueDescriptor) IsValid() bool {
	return vd.pool != nil
}

// Name returns the simple, unqualified name of the enum value.
func (vd EnumValueDescriptor) Name() string {
	return vd.rec().proto.GetName()
}

// FullName returns the value's fully-qualified name. Enum values are
// siblings of their enum, so this is the enum's scope plus the value name.
func (vd EnumValueDescriptor) FullName() string {
	return vd.rec().fullName
}

// Number returns the numeric value of the enum value.
func (vd EnumValueDescriptor) Number() int32 {
	return vd.rec().proto.GetNumber()
}

// Enum returns the enum that declares the value.
func (vd EnumValueDescriptor) Enum() EnumDescriptor {
	return EnumDescriptor{pool: vd.pool, index: vd.rec().enum}
}

// AsProto returns the descriptor proto from which the enum value was built.
func (vd EnumValueDescriptor) AsProto() *descriptorpb.EnumValueDescriptorProto {
	return vd.rec().proto
}

func (vd EnumValueDescriptor) String() string {
	if !vd.IsValid() {
		return "<invalid enum value>"
	}
	return vd.FullName()
}

// ServiceDescriptor describes an RPC service.
type ServiceDescriptor struct {
	pool  *Pool
	index int
}

func (sd ServiceDescriptor) rec() *serviceRecord {
	return &sd.pool.services[sd.index]
}

// IsValid returns false for the zero value.
func (sd ServiceDescriptor) IsValid() bool {
	return sd.pool != nil
}

// Name returns the simple, unqualified name of the service.
func (sd ServiceDescriptor) Name() string {
	return sd.rec().proto.GetName()
}

// FullName returns the fully-qualified name of the service, without a leading dot.
func (sd ServiceDescriptor) FullName() string {
	return sd.rec().fullName
}

// File returns the file in which the service is declared.
func (sd ServiceDescriptor) File() FileDescriptor {
	return FileDescriptor{pool: sd.pool, index: sd.rec().file}
}

// Methods returns the service's methods in declaration order.
func (sd ServiceDescriptor) Methods() []MethodDescriptor {
	mtds := sd.rec().methods
	if len(mtds) == 0 {
		return nil
	}
	res := make([]MethodDescriptor, len(mtds))
	for i, m := range mtds {
		res[i] = MethodDescriptor{pool: sd.pool, index: m}
	}
	return res
}

// FindMethodByName returns the method with the given simple name.
func (sd ServiceDescriptor) FindMethodByName(name string) (MethodDescriptor, bool) {
	i, ok := sd.rec().byName[name]
	if !ok {
		return MethodDescriptor{}, false
	}
	return MethodDescriptor{pool: sd.pool, index: i}, true
}

// AsProto returns the descriptor proto from which the service was built.
func (sd ServiceDescriptor) AsProto() *descriptorpb.ServiceDescriptorProto {
	return sd.rec().proto
}

func (sd ServiceDescriptor) String() string {
	if !sd.IsValid() {
		return "<invalid service>"
	}
	return sd.FullName()
}

// MethodDescriptor describes an RPC method.
type MethodDescriptor struct {
	pool  *Pool
	index int
}

func (mtd MethodDescriptor) rec() *methodRecord {
	return &mtd.pool.methods[mtd.index]
}

// IsValid returns false for the zero value.
func (mtd MethodDescriptor) IsValid() bool {
	return mtd.pool != nil
}

// Name returns the simple, unqualified name of the method.
func (mtd MethodDescriptor) Name() string {
	return mtd.rec().proto.GetName()
}

// FullName returns the method's fully-qualified name, such as
// "foo.bar.SearchService.Search".
func (mtd MethodDescriptor) FullName() string {
	return mtd.rec().fullName
}

// Service returns the service that declares the method.
func (mtd MethodDescriptor) Service() ServiceDescriptor {
	return ServiceDescriptor{pool: mtd.pool, index: mtd.rec().service}
}

// Input returns the method's request message type.
func (mtd MethodDescriptor) Input() MessageDescriptor {
	return MessageDescriptor{pool: mtd.pool, index: mtd.rec().input}
}

// Output returns the method's response message type.
func (mtd MethodDescriptor) Output() MessageDescriptor {
	return MessageDescriptor{pool: mtd.pool, index: mtd.rec().output}
}

// IsClientStreaming returns true if the client sends a stream of requests.
func (mtd MethodDescriptor) IsClientStreaming() bool {
	return mtd.rec().proto.GetClientStreaming()
}

// IsServerStreaming returns true if the server sends a stream of responses.
func (mtd MethodDescriptor) IsServerStreaming() bool {
	return mtd.rec().proto.GetServerStreaming()
}

// AsProto returns the descriptor proto from which the method was built.
func (mtd MethodDescriptor) AsProto() *descriptorpb.MethodDescriptorProto {
	return mtd.rec().proto
}

func (mtd MethodDescriptor) String() string {
	if !mtd.IsValid() {
		return "<invalid method>"
	}
	return mtd.FullName()
}
