package vm

import (
	"fmt"
	"strings"
)

// Program is a compiled routine: a flat instruction sequence plus the size
// of its register frame. The first ArgCount registers receive the caller's
// arguments; the rest start as nil.
type Program struct {
	Name         string
	ArgCount     int
	RegCount     int
	Instructions []Instruction
}

// NewProgram creates an empty program taking argc arguments, with a frame
// just large enough to hold them.
func NewProgram(argc int) *Program {
	return &Program{
		ArgCount: argc,
		RegCount: argc,
	}
}

// Emit appends an instruction and returns its index.
func (p *Program) Emit(ins Instruction) int {
	p.Instructions = append(p.Instructions, ins)
	return len(p.Instructions) - 1
}

// displayName is used in errors.
func (p *Program) displayName() string {
	if p.Name == "" {
		return "<program>"
	}
	return p.Name
}

// Validate checks that every register index and jump target is in range,
// every call names a function and has a window inside the frame, every
// constant is a fixnum, and execution cannot run past the last instruction.
func (p *Program) Validate() error {
	fail := func(ip int, format string, args ...any) error {
		return &ProgramError{Program: p.displayName(), IP: ip, Reason: fmt.Sprintf(format, args...)}
	}

	if p.ArgCount < 0 || p.RegCount < p.ArgCount {
		return fail(-1, "bad frame: %d argument(s), %d register(s)", p.ArgCount, p.RegCount)
	}
	if len(p.Instructions) == 0 {
		return fail(-1, "no instructions")
	}

	for ip, ins := range p.Instructions {
		switch ins.Op {
		case OpFxn:
			if ins.N > MaxFixnum || ins.N < MinFixnum {
				return fail(ip, "constant %d out of fixnum range", ins.N)
			}
		case OpLoad, OpStore:
			if ins.Reg < 0 || ins.Reg >= p.RegCount {
				return fail(ip, "register r%d out of range", ins.Reg)
			}
		case OpCall, OpTail:
			if ins.Fn == nil {
				return fail(ip, "call without function")
			}
			if ins.Argc < 0 || ins.FirstReg < 0 || ins.FirstReg+ins.Argc > p.RegCount {
				return fail(ip, "argument window r%d+%d out of range", ins.FirstReg, ins.Argc)
			}
		case OpJump, OpBranch:
			if ins.Loc < 0 || ins.Loc >= len(p.Instructions) {
				return fail(ip, "jump target L%d out of range", ins.Loc)
			}
		case OpReturn:
		default:
			return fail(ip, "unknown opcode 0x%02X", byte(ins.Op))
		}
	}

	if last := p.Instructions[len(p.Instructions)-1]; !last.Op.Info().Terminal {
		return fail(len(p.Instructions)-1, "execution can run past the last instruction")
	}
	return nil
}

// Disassemble returns a listing of the program, one instruction per line.
func (p *Program) Disassemble() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (args=%d regs=%d)\n", p.displayName(), p.ArgCount, p.RegCount)
	for ip, ins := range p.Instructions {
		fmt.Fprintf(&sb, "L%-4d %s\n", ip, ins)
	}
	return sb.String()
}
