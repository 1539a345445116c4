package vm

import "github.com/google/btree"

// Environment maps names to Functions. Functions are created on first
// lookup-with-create and live as long as the Environment.
type Environment struct {
	functions *btree.BTreeG[*Function]
}

func lessFunction(a, b *Function) bool {
	return a.Name < b.Name
}

// NewEnvironment creates an empty function table.
func NewEnvironment() *Environment {
	return &Environment{
		functions: btree.NewG(16, lessFunction),
	}
}

// GetFunction returns the Function called name. If there is none and
// create is set, a new empty Function is inserted and returned; otherwise
// nil is returned.
func (e *Environment) GetFunction(name string, create bool) *Function {
	if fn, ok := e.functions.Get(&Function{Name: name}); ok {
		return fn
	}
	if !create {
		return nil
	}
	fn := &Function{Name: name}
	e.functions.ReplaceOrInsert(fn)
	return fn
}

// ImplFunction appends a new implementation with the given arity to the
// Function called name, creating the Function if needed. The caller fills in
// the native entry point, program or pending definition.
func (e *Environment) ImplFunction(name string, argc int) *FunctionImpl {
	fn := e.GetFunction(name, true)
	impl := &FunctionImpl{ArgCount: argc, owner: fn}
	fn.Implementations = append(fn.Implementations, impl)
	return impl
}

// Functions returns every Function ordered by name.
func (e *Environment) Functions() []*Function {
	fns := make([]*Function, 0, e.functions.Len())
	e.functions.Ascend(func(fn *Function) bool {
		fns = append(fns, fn)
		return true
	})
	return fns
}

// Len returns the number of Functions.
func (e *Environment) Len() int {
	return e.functions.Len()
}
