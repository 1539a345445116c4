package vm

import "fmt"

// NativeFn is the signature of a native implementation. args holds exactly
// the declared number of Cells and aliases the caller's registers; a native
// must not retain it. A native that allocates and then calls back into the
// interpreter must Pin the objects it still needs, since calls are
// collection points.
type NativeFn func(state *State, args []Cell) Cell

// FunctionDefn is a function definition produced by the front end that has
// not been compiled yet. The runtime treats it as opaque.
type FunctionDefn interface {
	Name() string
}

// Compiler turns pending definitions into programs. A host installs one on
// a State with WithCompiler.
type Compiler interface {
	Compile(state *State, defn FunctionDefn) (*Program, error)
}

// ---------------------------------------------------------------------------
// Function: a named overload set
// ---------------------------------------------------------------------------

// Function is a named set of implementations, selected by argument count.
type Function struct {
	Name            string
	Implementations []*FunctionImpl
}

// Lookup returns the first implementation whose declared arity equals argc.
func (fn *Function) Lookup(argc int) (*FunctionImpl, error) {
	for _, impl := range fn.Implementations {
		if impl.ArgCount == argc {
			return impl, nil
		}
	}
	return nil, &DispatchError{Function: fn.Name, ArgCount: argc}
}

// ---------------------------------------------------------------------------
// FunctionImpl: one overload
// ---------------------------------------------------------------------------

// FunctionImpl is one implementation of a Function. At most one of Native,
// Program or ToBeCompiled is expected to be set; ToBeCompiled is replaced
// by Program the first time the implementation is called.
type FunctionImpl struct {
	ArgCount     int
	Native       NativeFn
	Program      *Program
	ToBeCompiled FunctionDefn

	owner *Function
}

func (impl *FunctionImpl) name() string {
	if impl.owner == nil {
		return "?"
	}
	return impl.owner.Name
}

// resolve returns the bytecode for a non-native implementation, compiling
// a pending definition if the State has a Compiler. It returns nil when no
// bytecode is available.
func (impl *FunctionImpl) resolve(state *State) (*Program, error) {
	if impl.Program != nil || impl.ToBeCompiled == nil || state.compiler == nil {
		return impl.Program, nil
	}

	defn := impl.ToBeCompiled
	prog, err := state.compiler.Compile(state, defn)
	if err != nil {
		return nil, fmt.Errorf("compiling `%s' with %d argument(s): %w", impl.name(), impl.ArgCount, err)
	}
	if prog.Name == "" {
		prog.Name = defn.Name()
	}
	impl.Program = prog
	impl.ToBeCompiled = nil
	log.Infof("compiled `%s' with %d argument(s)", impl.name(), impl.ArgCount)
	return prog, nil
}

// Call invokes the implementation: the native entry point if present,
// otherwise its bytecode.
func (impl *FunctionImpl) Call(state *State, args []Cell) (Cell, error) {
	if impl.Native != nil {
		return impl.Native(state, args), nil
	}

	prog, err := impl.resolve(state)
	if err != nil {
		return Nil, err
	}
	if prog == nil {
		return Nil, &MissingImplementationError{Function: impl.name(), ArgCount: impl.ArgCount}
	}
	return prog.execute(state, args)
}
