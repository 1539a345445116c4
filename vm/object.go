package vm

import (
	"unsafe"
)

// ObjectType holds the variant and modifier flags of a heap object.
type ObjectType uint8

// Variants occupy the low bits; DatatypeNoInst and Static are orthogonal
// modifiers.
const (
	TypeInstance ObjectType = 0x00
	TypeArray    ObjectType = 0x01
	TypeTrue     ObjectType = 0x02
	TypeFalse    ObjectType = 0x04
	TypeBool     ObjectType = TypeTrue | TypeFalse
	TypeString   ObjectType = 0x08
	TypeDatatype ObjectType = 0x10

	// TypeDatatypeNoInst marks a datatype singleton that cannot be
	// instantiated (the built-in type markers).
	TypeDatatypeNoInst ObjectType = 0x20

	// TypeStatic objects are never collected.
	TypeStatic ObjectType = 0x80

	typeModifiers = TypeDatatypeNoInst | TypeStatic
)

// GCStatus is collector bookkeeping stored in every object header.
type GCStatus uint8

const (
	Marked         GCStatus = 0x01
	NewlyAllocated GCStatus = 0x02
)

// cellWidth is the byte width of one Cell in an object payload.
const cellWidth = 8

// Object is a heap allocation: a small header followed by a payload whose
// interpretation depends on the variant.
//
// The payload is a single word-aligned buffer. Array and Instance objects
// read it as a run of Cells; String and Datatype objects view it as bytes.
// Size is the payload length in bytes and is always a multiple of cellWidth
// for Array and Instance objects.
type Object struct {
	Type     ObjectType
	GCStatus GCStatus
	Size     uint32

	data []Cell
}

// newObject allocates a zeroed payload large enough for size bytes.
func newObject(typ ObjectType, size uint32) *Object {
	return &Object{
		Type: typ,
		Size: size,
		data: make([]Cell, (size+cellWidth-1)/cellWidth),
	}
}

// kind returns the variant with modifiers stripped.
func (o *Object) kind() ObjectType {
	return o.Type &^ typeModifiers
}

// ---------------------------------------------------------------------------
// Variant predicates
// ---------------------------------------------------------------------------

// IsInstance returns true for datatype instances.
func (o *Object) IsInstance() bool { return o.kind() == TypeInstance }

// IsArray returns true for arrays.
func (o *Object) IsArray() bool { return o.kind() == TypeArray }

// IsBool returns true for the boolean singletons.
func (o *Object) IsBool() bool {
	k := o.kind()
	return k == TypeTrue || k == TypeFalse
}

// IsTrue returns true for the True singleton.
func (o *Object) IsTrue() bool { return o.kind() == TypeTrue }

// IsFalse returns true for the False singleton.
func (o *Object) IsFalse() bool { return o.kind() == TypeFalse }

// IsString returns true for strings.
func (o *Object) IsString() bool { return o.kind() == TypeString }

// IsDatatype returns true for datatype descriptors and built-in type markers.
func (o *Object) IsDatatype() bool { return o.kind() == TypeDatatype }

// IsStatic returns true for objects that are never collected.
func (o *Object) IsStatic() bool { return o.Type&TypeStatic != 0 }

// CanInstantiate returns true for datatypes that may be passed to MakeInstance.
func (o *Object) CanInstantiate() bool {
	return o.IsDatatype() && o.Type&TypeDatatypeNoInst == 0
}

// HasChildren returns true if the payload is a run of Cells the collector
// must walk.
func (o *Object) HasChildren() bool {
	return o.kind() <= TypeArray
}

// ---------------------------------------------------------------------------
// Array / Instance payload
// ---------------------------------------------------------------------------

// Children returns the payload as Cells. The slice aliases the object, so
// writes through it are visible to every holder of the object.
// Panics if the object has no children.
func (o *Object) Children() []Cell {
	if !o.HasChildren() {
		panic("Object.Children: object has no children")
	}
	return o.data[:o.Size/cellWidth]
}

// ---------------------------------------------------------------------------
// Byte views (String / Datatype payload)
// ---------------------------------------------------------------------------

// payloadBytes views the whole payload buffer as bytes.
func (o *Object) payloadBytes() []byte {
	if len(o.data) == 0 {
		return nil
	}
	p := (*byte)(unsafe.Pointer(unsafe.SliceData(o.data)))
	return unsafe.Slice(p, len(o.data)*cellWidth)[:o.Size]
}

// Bytes returns the string payload without its NUL terminator.
// Panics if the object is not a string.
func (o *Object) Bytes() []byte {
	if !o.IsString() {
		panic("Object.Bytes: not a string")
	}
	b := o.payloadBytes()
	return b[:len(b)-1]
}

// Text returns the string payload as a Go string sharing the object's
// storage. String objects are immutable, so the view stays valid.
func (o *Object) Text() string {
	b := o.Bytes()
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// ---------------------------------------------------------------------------
// Datatype descriptor
// ---------------------------------------------------------------------------
//
// Layout of a datatype payload (all in one buffer):
//
//	word 0            field count
//	words 1..count    views: offset<<32 | length, offsets in payload bytes
//	remaining bytes   field names, each followed by a NUL

// datatypeSize returns the payload size needed to describe names.
func datatypeSize(names []string) uint32 {
	size := cellWidth
	for _, name := range names {
		size += cellWidth + len(name) + 1
	}
	return uint32(size)
}

// initDatatype writes a descriptor for names into o. Every view points into
// o's own buffer, never into the caller's strings.
func (o *Object) initDatatype(names []string) {
	o.data[0] = Cell(len(names))
	buf := o.payloadBytes()
	off := cellWidth * (1 + len(names))
	for i, name := range names {
		n := copy(buf[off:], name)
		buf[off+n] = 0
		o.data[1+i] = Cell(uint64(off)<<32 | uint64(n))
		off += n + 1
	}
}

// FieldCount returns the number of fields a datatype declares. Built-in
// type markers carry no descriptor and report zero.
func (o *Object) FieldCount() int {
	if !o.IsDatatype() {
		panic("Object.FieldCount: not a datatype")
	}
	if len(o.data) == 0 {
		return 0
	}
	return int(o.data[0])
}

// Field returns the name of field i.
func (o *Object) Field(i int) string {
	if i < 0 || i >= o.FieldCount() {
		panic("Object.Field: index out of range")
	}
	view := uint64(o.data[1+i])
	off, n := view>>32, view&0xFFFFFFFF
	if n == 0 {
		return ""
	}
	buf := o.payloadBytes()
	return unsafe.String(&buf[off], int(n))
}

// Fields returns all field names in declaration order.
func (o *Object) Fields() []string {
	names := make([]string, o.FieldCount())
	for i := range names {
		names[i] = o.Field(i)
	}
	return names
}
