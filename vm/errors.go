package vm

import "fmt"

// DispatchError reports that no implementation of a function accepts the
// call-site argument count.
type DispatchError struct {
	Function string
	ArgCount int
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("no matching implementation of function `%s' with %d argument(s)", e.Function, e.ArgCount)
}

// MissingImplementationError reports an implementation with neither a
// native entry point nor bytecode.
type MissingImplementationError struct {
	Function string
	ArgCount int
}

func (e *MissingImplementationError) Error() string {
	return fmt.Sprintf("missing implementation of function `%s' with %d argument(s)", e.Function, e.ArgCount)
}

// StackOverflowError reports that nested program execution exceeded the
// State's depth limit.
type StackOverflowError struct {
	Depth int
}

func (e *StackOverflowError) Error() string {
	return fmt.Sprintf("stack overflow: execution depth %d", e.Depth)
}

// UnknownOpcodeError reports an opcode the interpreter does not implement.
type UnknownOpcodeError struct {
	Program string
	IP      int
	Op      Opcode
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("%s: unknown opcode 0x%02X at %d", e.Program, byte(e.Op), e.IP)
}

// ProgramError reports a malformed program.
type ProgramError struct {
	Program string
	IP      int // -1 when the problem is not tied to one instruction
	Reason  string
}

func (e *ProgramError) Error() string {
	if e.IP < 0 {
		return fmt.Sprintf("%s: %s", e.Program, e.Reason)
	}
	return fmt.Sprintf("%s: instruction %d: %s", e.Program, e.IP, e.Reason)
}

// OutOfMemoryError is the panic value raised when an allocation would
// exceed the heap limit. It is fatal and not returned as an error.
type OutOfMemoryError struct {
	Requested uint64
	Live      uint64
	Limit     uint64
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf("out of memory: requested %d bytes with %d live, limit %d", e.Requested, e.Live, e.Limit)
}
