package vm

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode identifies an instruction. The interpreter is accumulator based:
// every instruction reads or writes the accumulator (tmp below).
type Opcode byte

const (
	OpFxn    Opcode = 0x00 // fxn #n              [ tmp <- n ]
	OpLoad   Opcode = 0x01 // lod rs              [ tmp <- rs ]
	OpStore  Opcode = 0x02 // sto rd              [ rd <- tmp ]
	OpCall   Opcode = 0x03 // call F (rk..rk+n)   [ tmp <- F(rk .. rk+n) ]
	OpTail   Opcode = 0x04 // tcall F (rk..rk+n)  [ tmp <- F(rk .. rk+n); return tmp ]
	OpReturn Opcode = 0x05 // ret                 [ return tmp ]
	OpJump   Opcode = 0x06 // jmp Lk              [ goto Lk ]
	OpBranch Opcode = 0x07 // br Lk               [ if tmp is false { goto Lk } ]
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name     string // mnemonic used by the disassembler
	Operands int    // number of operands
	Terminal bool   // control never falls through to the next instruction
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpFxn:    {"fxn", 1, false},
	OpLoad:   {"lod", 1, false},
	OpStore:  {"sto", 1, false},
	OpCall:   {"call", 3, false},
	OpTail:   {"tcall", 3, true},
	OpReturn: {"ret", 0, true},
	OpJump:   {"jmp", 1, true},
	OpBranch: {"br", 1, false},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Valid returns true if op is implemented by the interpreter.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

func (op Opcode) String() string {
	return op.Info().Name
}

// ---------------------------------------------------------------------------
// Instruction
// ---------------------------------------------------------------------------

// Instruction is one decoded bytecode instruction. Only the operands used
// by Op are meaningful.
type Instruction struct {
	Op Opcode

	N   int64 // OpFxn constant
	Reg int   // OpLoad source / OpStore destination
	Loc int   // OpJump / OpBranch target

	Fn       *Function // OpCall / OpTail
	FirstReg int
	Argc     int
}

// Fxn loads the integer constant n into the accumulator.
func Fxn(n int64) Instruction {
	return Instruction{Op: OpFxn, N: n}
}

// Load copies register src into the accumulator.
func Load(src int) Instruction {
	return Instruction{Op: OpLoad, Reg: src}
}

// Store copies the accumulator into register dst.
func Store(dst int) Instruction {
	return Instruction{Op: OpStore, Reg: dst}
}

// Call calls fn with registers [firstReg, firstReg+argc).
func Call(fn *Function, firstReg, argc int) Instruction {
	return Instruction{Op: OpCall, Fn: fn, FirstReg: firstReg, Argc: argc}
}

// TailCall calls fn with registers [firstReg, firstReg+argc) and returns
// its result.
func TailCall(fn *Function, firstReg, argc int) Instruction {
	return Instruction{Op: OpTail, Fn: fn, FirstReg: firstReg, Argc: argc}
}

// Jump continues execution at loc.
func Jump(loc int) Instruction {
	return Instruction{Op: OpJump, Loc: loc}
}

// Branch continues execution at loc if the accumulator is False.
func Branch(loc int) Instruction {
	return Instruction{Op: OpBranch, Loc: loc}
}

// Ret returns the accumulator.
func Ret() Instruction {
	return Instruction{Op: OpReturn}
}

// String disassembles the instruction.
func (ins Instruction) String() string {
	switch ins.Op {
	case OpFxn:
		return fmt.Sprintf("fxn #%d", ins.N)
	case OpLoad, OpStore:
		return fmt.Sprintf("%s r%d", ins.Op, ins.Reg)
	case OpCall, OpTail:
		name := "<nil>"
		if ins.Fn != nil {
			name = ins.Fn.Name
		}
		if ins.Argc == 0 {
			return fmt.Sprintf("%s %s ()", ins.Op, name)
		}
		return fmt.Sprintf("%s %s (r%d..r%d)", ins.Op, name, ins.FirstReg, ins.FirstReg+ins.Argc-1)
	case OpJump, OpBranch:
		return fmt.Sprintf("%s L%d", ins.Op, ins.Loc)
	default:
		return ins.Op.String()
	}
}
