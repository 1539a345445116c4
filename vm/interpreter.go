package vm

import (
	"context"
	"fmt"
)

// ---------------------------------------------------------------------------
// Interpreter: accumulator/register bytecode loop
// ---------------------------------------------------------------------------

// Execute runs p on state with the given arguments and returns the
// accumulator when the program returns. Called from inside a running
// execution, it keeps that execution's context.
func (p *Program) Execute(state *State, argv []Cell) (Cell, error) {
	ctx := state.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return p.ExecuteContext(ctx, state, argv)
}

// ExecuteContext is Execute with cancellation. The context is checked at
// every call and every backward jump, and is inherited by every program the
// execution calls.
func (p *Program) ExecuteContext(ctx context.Context, state *State, argv []Cell) (Cell, error) {
	prev := state.ctx
	state.ctx = ctx
	defer func() { state.ctx = prev }()
	return p.execute(state, argv)
}

// execute allocates a register frame, registers it as a root, and runs the
// loop. A tail call into another program replaces the frame in place.
func (p *Program) execute(state *State, argv []Cell) (Cell, error) {
	if state.Depth() >= state.maxDepth {
		return Nil, &StackOverflowError{Depth: state.Depth()}
	}
	if len(argv) < p.ArgCount {
		return Nil, &ProgramError{Program: p.displayName(), IP: -1,
			Reason: fmt.Sprintf("expected %d argument(s), got %d", p.ArgCount, len(argv))}
	}

	regs := make([]Cell, p.RegCount)
	copy(regs, argv[:p.ArgCount])
	state.pushFrame(regs)
	defer state.popFrame()

	prog := p
	acc := Nil
	ip := 0
	for {
		if ip < 0 || ip >= len(prog.Instructions) {
			return Nil, &ProgramError{Program: prog.displayName(), IP: ip,
				Reason: "execution ran past the last instruction"}
		}
		ins := &prog.Instructions[ip]
		ip++

		switch ins.Op {
		case OpFxn:
			acc = FromFixnum(ins.N)

		case OpLoad:
			acc = regs[ins.Reg]

		case OpStore:
			regs[ins.Reg] = acc

		case OpCall, OpTail:
			if err := state.safePoint(); err != nil {
				return Nil, prog.wrap(err)
			}
			impl, err := ins.Fn.Lookup(ins.Argc)
			if err != nil {
				return Nil, prog.wrap(err)
			}
			args := regs[ins.FirstReg : ins.FirstReg+ins.Argc]

			if ins.Op == OpTail && impl.Native == nil {
				next, err := impl.resolve(state)
				if err != nil {
					return Nil, prog.wrap(err)
				}
				if next != nil {
					if len(args) < next.ArgCount {
						return Nil, prog.wrap(&ProgramError{Program: next.displayName(), IP: -1,
							Reason: fmt.Sprintf("expected %d argument(s), got %d", next.ArgCount, len(args))})
					}
					// Reuse this activation: the callee's frame replaces ours.
					newRegs := make([]Cell, next.RegCount)
					copy(newRegs, args[:next.ArgCount])
					regs = newRegs
					state.replaceFrame(regs)
					prog, acc, ip = next, Nil, 0
					continue
				}
			}

			acc, err = impl.Call(state, args)
			if err != nil {
				return Nil, prog.wrap(err)
			}
			if ins.Op == OpTail {
				return acc, nil
			}

		case OpJump:
			if ins.Loc < ip {
				if err := state.cancelled(); err != nil {
					return Nil, prog.wrap(err)
				}
			}
			ip = ins.Loc

		case OpBranch:
			if acc == False {
				if ins.Loc < ip {
					if err := state.cancelled(); err != nil {
						return Nil, prog.wrap(err)
					}
				}
				ip = ins.Loc
			}

		case OpReturn:
			return acc, nil

		default:
			if state.lenientOpcodes {
				return acc, nil
			}
			return Nil, &UnknownOpcodeError{Program: prog.displayName(), IP: ip - 1, Op: ins.Op}
		}
	}
}

// wrap prefixes err with the program name so failures read as a call trace.
func (p *Program) wrap(err error) error {
	return fmt.Errorf("%s: %w", p.displayName(), err)
}
