package vm

import (
	"testing"
)

// ---------------------------------------------------------------------------
// Traverse tests
// ---------------------------------------------------------------------------

func TestTraverseMarksReachable(t *testing.T) {
	gc := NewGC()
	inner := gc.MakeArray(1)
	outer := gc.MakeArray(2)
	gc.Deref(outer).Children()[0] = inner
	gc.Deref(outer).Children()[1] = gc.MakeStringFrom("leaf")
	unreachable := gc.MakeArray(0)

	if n := gc.Traverse(outer); n != 3 {
		t.Errorf("Traverse marked %d objects, want 3", n)
	}
	if gc.Deref(inner).GCStatus&Marked == 0 {
		t.Error("inner array should be marked")
	}
	if gc.Deref(unreachable).GCStatus&Marked != 0 {
		t.Error("unreachable array should not be marked")
	}
	if n := gc.Traverse(outer); n != 0 {
		t.Errorf("second Traverse marked %d objects, want 0", n)
	}
}

func TestTraverseTerminatesOnCycle(t *testing.T) {
	gc := NewGC()
	dt := gc.MakeDatatype([]string{"items"})
	arr := gc.MakeArray(1)
	inst := gc.MakeInstance(dt, []Cell{arr})
	gc.Deref(arr).Children()[0] = inst // inst -> arr -> inst

	if n := gc.Traverse(inst); n != 3 {
		t.Errorf("Traverse marked %d objects, want 3 (instance, datatype, array)", n)
	}
}

func TestTraverseSkipsNonObjects(t *testing.T) {
	gc := NewGC()
	for _, c := range []Cell{Nil, FromFixnum(7), True, IntType} {
		if n := gc.Traverse(c); n != 0 {
			t.Errorf("Traverse(%v) marked %d objects, want 0", c, n)
		}
	}
	if gc.Deref(True).GCStatus != 0 {
		t.Error("static objects should never be marked")
	}
}

// ---------------------------------------------------------------------------
// Collect tests
// ---------------------------------------------------------------------------

func TestCollectEmptyRootsFreesEverything(t *testing.T) {
	s := NewState()
	gc := s.GC
	for i := 0; i < 10; i++ {
		gc.MakeArray(i)
		gc.MakeStringFrom("garbage")
	}
	gc.MakeInstance(gc.MakeDatatype([]string{"f"}), []Cell{Nil})

	stats := s.Collect()
	if stats.Freed != 22 {
		t.Errorf("Freed = %d, want 22", stats.Freed)
	}
	if gc.Live() != 0 || gc.BytesLive() != 0 {
		t.Errorf("after collect: %d live objects, %d bytes", gc.Live(), gc.BytesLive())
	}
}

func TestCollectPreservesStatics(t *testing.T) {
	s := NewState()
	before := []*Object{s.GC.Deref(True), s.GC.Deref(False), s.GC.Deref(IntType)}

	for i := 0; i < 5; i++ {
		s.GC.MakeArray(3)
		s.Collect()
	}

	after := []*Object{s.GC.Deref(True), s.GC.Deref(False), s.GC.Deref(IntType)}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("static object %d changed identity across collections", i)
		}
	}
	if !s.GC.Deref(True).IsBool() {
		t.Error("True should still be a bool")
	}
}

func TestCollectKeepsFrameRoots(t *testing.T) {
	s := NewState()
	gc := s.GC
	kept := gc.MakeArray(1)
	child := gc.MakeStringFrom("child")
	gc.Deref(kept).Children()[0] = child
	garbage := gc.MakeArray(4)

	s.pushFrame([]Cell{kept, FromFixnum(1)})
	stats := s.Collect()
	s.popFrame()

	if stats.Freed != 1 {
		t.Errorf("Freed = %d, want 1", stats.Freed)
	}
	if stats.Marked != 2 {
		t.Errorf("Marked = %d, want 2", stats.Marked)
	}
	if gc.Deref(child).Text() != "child" {
		t.Error("child of a root should survive")
	}
	defer func() {
		if recover() == nil {
			t.Error("Deref of a freed object should panic")
		}
	}()
	gc.Deref(garbage)
}

func TestCollectKeepsPinned(t *testing.T) {
	s := NewState()
	c := s.GC.MakeStringFrom("pinned")
	s.Pin(c)
	s.Pin(c)

	s.Collect()
	if s.GC.Live() != 1 {
		t.Fatalf("pinned object was collected")
	}

	s.Unpin(c)
	s.Collect()
	if s.GC.Live() != 1 {
		t.Fatalf("object pinned twice should survive one Unpin")
	}

	s.Unpin(c)
	s.Collect()
	if s.GC.Live() != 0 {
		t.Errorf("unpinned object should be collected, %d live", s.GC.Live())
	}
}

func TestCollectClearsNewlyAllocated(t *testing.T) {
	s := NewState()
	c := s.GC.MakeArray(0)
	s.Pin(c)
	s.Collect()
	if got := s.GC.Deref(c).GCStatus; got&NewlyAllocated != 0 {
		t.Errorf("GCStatus = %v, NewlyAllocated should be cleared on survivors", got)
	}
}

func TestFreedSlotsAreReused(t *testing.T) {
	s := NewState()
	a := s.GC.MakeArray(0)
	s.Collect()
	b := s.GC.MakeArray(0)
	if a != b {
		t.Errorf("freed handle %v not reused, got %v", a, b)
	}
}

func TestCollectStats(t *testing.T) {
	s := NewState()
	if s.GC.LastStats() != nil {
		t.Error("LastStats should be nil before the first collection")
	}
	s.GC.MakeArray(2)
	s.Collect()
	s.Collect()

	if s.GC.CollectCount() != 2 {
		t.Errorf("CollectCount = %d, want 2", s.GC.CollectCount())
	}
	stats := s.GC.LastStats()
	if stats == nil || stats.Freed != 0 || stats.Live != 0 {
		t.Errorf("LastStats = %+v, want an empty second collection", stats)
	}
}

// ---------------------------------------------------------------------------
// Threshold and limit tests
// ---------------------------------------------------------------------------

func TestShouldCollect(t *testing.T) {
	gc := NewGC()
	gc.SetThreshold(64)
	if gc.ShouldCollect() {
		t.Fatal("fresh heap should not ask for collection")
	}
	gc.MakeArray(16) // 8 + 128 bytes
	if !gc.ShouldCollect() {
		t.Fatal("heap past its threshold should ask for collection")
	}
	gc.Collect(nil)
	if gc.ShouldCollect() {
		t.Error("collection should reset the allocation counter")
	}

	gc.SetThreshold(0)
	gc.MakeArray(1000)
	if gc.ShouldCollect() {
		t.Error("threshold 0 disables automatic collection")
	}
}

func TestHeapLimitPanics(t *testing.T) {
	gc := NewGC()
	gc.SetHeapLimit(256)
	gc.MakeArray(10)

	defer func() {
		r := recover()
		if _, ok := r.(*OutOfMemoryError); !ok {
			t.Errorf("recovered %v, want *OutOfMemoryError", r)
		}
	}()
	gc.MakeArray(100)
}
