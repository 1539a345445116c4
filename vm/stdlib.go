package vm

// ---------------------------------------------------------------------------
// Standard library natives
// ---------------------------------------------------------------------------

// Results outside the fixnum range are reported as nil, the same as
// non-integer operands.

func procAdd(_ *State, args []Cell) Cell {
	if !args[0].IsInteger() || !args[1].IsInteger() {
		return Nil
	}
	c, _ := TryFromFixnum(args[0].Fixnum() + args[1].Fixnum())
	return c
}

func procSub(_ *State, args []Cell) Cell {
	if !args[0].IsInteger() || !args[1].IsInteger() {
		return Nil
	}
	c, _ := TryFromFixnum(args[0].Fixnum() - args[1].Fixnum())
	return c
}

func procLess(_ *State, args []Cell) Cell {
	if !args[0].IsInteger() || !args[1].IsInteger() {
		return Nil
	}
	return FromBool(args[0].Fixnum() < args[1].Fixnum())
}

// LoadStdLib registers the standard natives.
func (e *Environment) LoadStdLib() {
	e.ImplFunction("+", 2).Native = procAdd
	e.ImplFunction("-", 2).Native = procSub
	e.ImplFunction("<", 2).Native = procLess
}
