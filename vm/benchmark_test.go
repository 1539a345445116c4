package vm

import (
	"testing"
)

// =============================================================================
// Interpreter dispatch overhead
// =============================================================================

// BenchmarkFxnStore measures the cost of the non-calling instructions.
func BenchmarkFxnStore(b *testing.B) {
	s := NewState()
	p := NewProgram(0)
	p.RegCount = 1
	for i := 0; i < 100; i++ {
		p.Emit(Fxn(int64(i)))
		p.Emit(Store(0))
		p.Emit(Load(0))
	}
	p.Emit(Ret())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Execute(s, nil)
	}
}

// BenchmarkNativeCall measures a call into the standard `+'.
func BenchmarkNativeCall(b *testing.B) {
	s := NewState()
	plus := s.Env.GetFunction("+", false)
	p := NewProgram(0)
	p.RegCount = 2
	p.Emit(Fxn(1))
	p.Emit(Store(0))
	p.Emit(Fxn(2))
	p.Emit(Store(1))
	for i := 0; i < 100; i++ {
		p.Emit(Call(plus, 0, 2))
	}
	p.Emit(Ret())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Execute(s, nil)
	}
}

// BenchmarkTailLoop measures a 1000-iteration self tail-call loop.
func BenchmarkTailLoop(b *testing.B) {
	s := NewState()
	p := loopProgram(s)
	argv := []Cell{FromFixnum(1000)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Execute(s, argv); err != nil {
			b.Fatal(err)
		}
	}
}

// =============================================================================
// Allocation and collection
// =============================================================================

func BenchmarkMakeArray(b *testing.B) {
	gc := NewGC()
	gc.SetThreshold(0)
	for i := 0; i < b.N; i++ {
		gc.MakeArray(8)
		if i%4096 == 0 {
			gc.Collect(nil)
		}
	}
}

// BenchmarkCollect measures a collection over a 1000-element rooted list.
func BenchmarkCollect(b *testing.B) {
	s := NewState(WithThreshold(0))
	head := Nil
	for i := 0; i < 1000; i++ {
		node := s.GC.MakeArray(2)
		children := s.GC.Deref(node).Children()
		children[0] = FromFixnum(int64(i))
		children[1] = head
		head = node
	}
	s.Pin(head)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Collect()
	}
}
