package vm

import "fmt"

// Cell is the universal runtime value: a single 64-bit word acting as a
// discriminated reference.
//
// Encoding scheme:
//   - Nil:     the zero word
//   - Integer: odd word, (n << 1) | 1, decoded with an arithmetic shift
//   - Object:  even, non-zero word holding a heap handle (slot << 1)
//
// Object words are handles into a GC's object table (or the static table),
// never raw Go addresses. The low bit alone decides integer versus object,
// and no handle is ever odd.
type Cell uint64

// Nil is the null/absent value.
const Nil Cell = 0

// Fixnum range (63-bit signed).
const (
	MaxFixnum int64 = (1 << 62) - 1
	MinFixnum int64 = -(1 << 62)
)

// ---------------------------------------------------------------------------
// Predicates
// ---------------------------------------------------------------------------

// IsNil returns true if c is the nil value.
func (c Cell) IsNil() bool {
	return c == Nil
}

// IsInteger returns true if c is an inline fixnum.
func (c Cell) IsInteger() bool {
	return c&1 == 1
}

// IsObject returns true if c refers to a heap or static object.
func (c Cell) IsObject() bool {
	return c != Nil && c&1 == 0
}

// ---------------------------------------------------------------------------
// Fixnum operations
// ---------------------------------------------------------------------------

// Fixnum returns the integer payload of c.
// Panics if c is not an integer.
func (c Cell) Fixnum() int64 {
	if !c.IsInteger() {
		panic("Cell.Fixnum: not an integer")
	}
	return int64(c) >> 1
}

// FromFixnum creates an integer Cell.
// Panics if n is outside the fixnum range.
func FromFixnum(n int64) Cell {
	if n > MaxFixnum || n < MinFixnum {
		panic("FromFixnum: value out of range")
	}
	return Cell(uint64(n)<<1 | 1)
}

// TryFromFixnum creates an integer Cell, returning false if n is out of range.
func TryFromFixnum(n int64) (Cell, bool) {
	if n > MaxFixnum || n < MinFixnum {
		return Nil, false
	}
	return Cell(uint64(n)<<1 | 1), true
}

// ---------------------------------------------------------------------------
// Handle operations
// ---------------------------------------------------------------------------

// Handle returns the object slot referenced by c.
// Panics if c is not an object.
func (c Cell) Handle() uint64 {
	if !c.IsObject() {
		panic("Cell.Handle: not an object")
	}
	return uint64(c) >> 1
}

// FromHandle creates an object Cell for the given slot. Slot 0 is reserved
// so that no object Cell equals Nil.
func FromHandle(slot uint64) Cell {
	if slot == 0 {
		panic("FromHandle: slot 0 is reserved")
	}
	return Cell(slot << 1)
}

// ---------------------------------------------------------------------------
// Debugging
// ---------------------------------------------------------------------------

// String returns a short debug form. Object cells print their handle since
// the owning heap is not known here.
func (c Cell) String() string {
	switch {
	case c.IsNil():
		return "nil"
	case c.IsInteger():
		return fmt.Sprintf("%d", c.Fixnum())
	case c == True:
		return "true"
	case c == False:
		return "false"
	default:
		return fmt.Sprintf("#<object %d>", c.Handle())
	}
}
