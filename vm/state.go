package vm

import (
	"context"

	"github.com/google/uuid"
)

// DefaultMaxDepth is the default limit on nested program executions.
const DefaultMaxDepth = 10000

// State is the root execution context of a runtime session. It owns one
// Environment, pre-seeded with the standard library, and one GC.
//
// A State is not safe for concurrent use; see Worker and Pool.
type State struct {
	ID  uuid.UUID
	Env *Environment
	GC  *GC

	frames [][]Cell // register frames of active executions, innermost last
	pins   map[Cell]int

	compiler       Compiler
	maxDepth       int
	lenientOpcodes bool
	ctx            context.Context
}

// Option configures a State.
type Option func(*State)

// WithThreshold sets the GC allocation threshold in bytes.
func WithThreshold(bytes uint64) Option {
	return func(s *State) { s.GC.SetThreshold(bytes) }
}

// WithHeapLimit sets the GC heap limit in bytes.
func WithHeapLimit(bytes uint64) Option {
	return func(s *State) { s.GC.SetHeapLimit(bytes) }
}

// WithMaxDepth sets the nested execution limit.
func WithMaxDepth(depth int) Option {
	return func(s *State) { s.maxDepth = depth }
}

// WithLenientOpcodes makes unknown opcodes end execution like Return
// instead of failing.
func WithLenientOpcodes(lenient bool) Option {
	return func(s *State) { s.lenientOpcodes = lenient }
}

// WithCompiler installs the compiler used for pending definitions.
func WithCompiler(c Compiler) Option {
	return func(s *State) { s.compiler = c }
}

// NewState creates a State with a fresh heap and the standard library.
func NewState(opts ...Option) *State {
	s := &State{
		ID:       uuid.New(),
		Env:      NewEnvironment(),
		GC:       NewGC(),
		pins:     make(map[Cell]int),
		maxDepth: DefaultMaxDepth,
	}
	s.Env.LoadStdLib()
	for _, opt := range opts {
		opt(s)
	}
	log.Debugf("state %s created", s.ID)
	return s
}

// Collect runs a full collection of the State's heap.
func (s *State) Collect() *CollectStats {
	return s.GC.Collect(s)
}

// ---------------------------------------------------------------------------
// Roots
// ---------------------------------------------------------------------------

// Pin keeps c alive across collections until a matching Unpin. Hosts and
// natives use it for values held outside any register frame.
func (s *State) Pin(c Cell) {
	if c.IsObject() {
		s.pins[c]++
	}
}

// Unpin releases one Pin of c.
func (s *State) Unpin(c Cell) {
	if n, ok := s.pins[c]; ok {
		if n <= 1 {
			delete(s.pins, c)
		} else {
			s.pins[c] = n - 1
		}
	}
}

// ForEachRoot calls fn for every register of every active frame and every
// pinned value.
func (s *State) ForEachRoot(fn func(Cell)) {
	for _, regs := range s.frames {
		for _, c := range regs {
			fn(c)
		}
	}
	for c := range s.pins {
		fn(c)
	}
}

// Depth returns the number of active program executions.
func (s *State) Depth() int {
	return len(s.frames)
}

func (s *State) pushFrame(regs []Cell) {
	s.frames = append(s.frames, regs)
}

func (s *State) replaceFrame(regs []Cell) {
	s.frames[len(s.frames)-1] = regs
}

func (s *State) popFrame() {
	s.frames[len(s.frames)-1] = nil
	s.frames = s.frames[:len(s.frames)-1]
}

// cancelled reports the error of the active context, if any.
func (s *State) cancelled() error {
	if s.ctx == nil {
		return nil
	}
	return s.ctx.Err()
}

// safePoint runs before a call, where the accumulator holds no live value:
// it reports cancellation and collects if the heap asks for it.
func (s *State) safePoint() error {
	if err := s.cancelled(); err != nil {
		return err
	}
	if s.GC.ShouldCollect() {
		s.GC.Collect(s)
	}
	return nil
}
