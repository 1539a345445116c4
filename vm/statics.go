package vm

// ---------------------------------------------------------------------------
// Static objects: process-wide singletons
// ---------------------------------------------------------------------------
//
// The boolean singletons and the built-in datatype markers occupy the first
// handle slots. Their Cells are compile-time constants and their objects are
// built once during package initialization, before any State exists. They
// never enter a GC's object table, so no collection can free them and no
// traversal writes to them.

const (
	staticTrue uint64 = iota + 1
	staticFalse
	staticTypeType
	staticIntType
	staticBoolType
	staticStringType
	staticArrayType

	// firstHeapSlot is the first handle slot a GC hands out.
	firstHeapSlot
)

// Boolean singletons.
const (
	True  Cell = Cell(staticTrue << 1)
	False Cell = Cell(staticFalse << 1)
)

// Built-in datatype markers.
const (
	TypeType   Cell = Cell(staticTypeType << 1)
	IntType    Cell = Cell(staticIntType << 1)
	BoolType   Cell = Cell(staticBoolType << 1)
	StringType Cell = Cell(staticStringType << 1)
	ArrayType  Cell = Cell(staticArrayType << 1)
)

const builtinDatatype = TypeDatatype | TypeDatatypeNoInst | TypeStatic

var staticTable = [firstHeapSlot]*Object{
	staticTrue:       {Type: TypeTrue | TypeStatic},
	staticFalse:      {Type: TypeFalse | TypeStatic},
	staticTypeType:   {Type: builtinDatatype},
	staticIntType:    {Type: builtinDatatype},
	staticBoolType:   {Type: builtinDatatype},
	staticStringType: {Type: builtinDatatype},
	staticArrayType:  {Type: builtinDatatype},
}

var staticNames = [firstHeapSlot]string{
	staticTrue:       "true",
	staticFalse:      "false",
	staticTypeType:   "Type",
	staticIntType:    "Int",
	staticBoolType:   "Bool",
	staticStringType: "String",
	staticArrayType:  "Array",
}

// IsStatic returns true if c is one of the static singletons.
func (c Cell) IsStatic() bool {
	return c.IsObject() && c.Handle() < firstHeapSlot
}

// FromBool returns the boolean singleton for b.
func FromBool(b bool) Cell {
	if b {
		return True
	}
	return False
}

// StaticName returns the debug name of a static singleton, or "" if c is
// not static.
func StaticName(c Cell) string {
	if !c.IsStatic() {
		return ""
	}
	return staticNames[c.Handle()]
}
