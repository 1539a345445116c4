package vm

import (
	"fmt"
	"math"
	"time"

	units "github.com/docker/go-units"
)

// ---------------------------------------------------------------------------
// GC: allocator and mark-and-sweep collector
// ---------------------------------------------------------------------------

// objectHeaderSize is the accounted size of an object header.
const objectHeaderSize = 8

// DefaultThreshold is the number of bytes allocated between automatic
// collections.
const DefaultThreshold = 4 << 20

// GC owns every non-static object of one State. Objects are addressed by
// handle slots; freed slots are recycled through a free list.
type GC struct {
	objects []*Object // indexed by slot - firstHeapSlot
	free    []uint64

	live      int
	bytesLive uint64
	sinceLast uint64 // bytes allocated since the last collection
	threshold uint64
	heapLimit uint64

	markStack []Cell

	collectCount uint64
	lastStats    *CollectStats
}

// NewGC creates an empty heap with the default collection threshold and no
// heap limit.
func NewGC() *GC {
	return &GC{threshold: DefaultThreshold}
}

// SetThreshold sets how many bytes may be allocated before ShouldCollect
// reports true. Zero disables automatic collection.
func (gc *GC) SetThreshold(bytes uint64) {
	gc.threshold = bytes
}

// SetHeapLimit caps the live heap size. Zero means unlimited.
func (gc *GC) SetHeapLimit(bytes uint64) {
	gc.heapLimit = bytes
}

// ShouldCollect returns true once the allocation threshold has been crossed.
func (gc *GC) ShouldCollect() bool {
	return gc.threshold > 0 && gc.sinceLast >= gc.threshold
}

// Live returns the number of live heap objects.
func (gc *GC) Live() int {
	return gc.live
}

// BytesLive returns the accounted size of all live heap objects.
func (gc *GC) BytesLive() uint64 {
	return gc.bytesLive
}

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

// alloc creates an object and assigns it a handle.
// Panics with *OutOfMemoryError when the heap limit would be exceeded.
func (gc *GC) alloc(typ ObjectType, size uint64) (Cell, *Object) {
	if size > math.MaxUint32 {
		panic(&OutOfMemoryError{Requested: size, Live: gc.bytesLive, Limit: math.MaxUint32})
	}
	accounted := objectHeaderSize + (size+cellWidth-1)/cellWidth*cellWidth
	if gc.heapLimit > 0 && gc.bytesLive+accounted > gc.heapLimit {
		panic(&OutOfMemoryError{Requested: accounted, Live: gc.bytesLive, Limit: gc.heapLimit})
	}

	obj := newObject(typ, uint32(size))
	obj.GCStatus = NewlyAllocated

	var slot uint64
	if n := len(gc.free); n > 0 {
		slot = gc.free[n-1]
		gc.free = gc.free[:n-1]
		gc.objects[slot-firstHeapSlot] = obj
	} else {
		slot = firstHeapSlot + uint64(len(gc.objects))
		gc.objects = append(gc.objects, obj)
	}

	gc.live++
	gc.bytesLive += accounted
	gc.sinceLast += accounted
	return FromHandle(slot), obj
}

// MakeArray allocates an array of n nil Cells.
func (gc *GC) MakeArray(n int) Cell {
	if n < 0 {
		panic("GC.MakeArray: negative length")
	}
	c, _ := gc.alloc(TypeArray, uint64(n)*cellWidth)
	return c
}

// MakeString allocates a string holding a copy of b. The stored payload has
// a trailing NUL that is not part of the string.
func (gc *GC) MakeString(b []byte) Cell {
	c, obj := gc.alloc(TypeString, uint64(len(b))+1)
	buf := obj.payloadBytes()
	copy(buf, b)
	buf[len(b)] = 0
	return c
}

// MakeStringFrom allocates a string holding a copy of s.
func (gc *GC) MakeStringFrom(s string) Cell {
	return gc.MakeString([]byte(s))
}

// MakeDatatype allocates a datatype descriptor with the given field names.
// The names are copied into the descriptor's own storage.
func (gc *GC) MakeDatatype(names []string) Cell {
	c, obj := gc.alloc(TypeDatatype, uint64(datatypeSize(names)))
	obj.initDatatype(names)
	return c
}

// MakeInstance allocates an instance of dt. Slot 0 holds dt; the remaining
// slots are copied verbatim from argv, which must hold at least as many
// Cells as dt has fields.
// Panics if dt is not an instantiable datatype.
func (gc *GC) MakeInstance(dt Cell, argv []Cell) Cell {
	if !dt.IsObject() {
		panic("GC.MakeInstance: datatype is not an object")
	}
	desc := gc.Deref(dt)
	if !desc.CanInstantiate() {
		panic("GC.MakeInstance: datatype cannot be instantiated")
	}
	n := desc.FieldCount()
	if len(argv) < n {
		panic(fmt.Sprintf("GC.MakeInstance: need %d field values, got %d", n, len(argv)))
	}

	c, obj := gc.alloc(TypeInstance, uint64(n+1)*cellWidth)
	children := obj.Children()
	children[0] = dt
	copy(children[1:], argv[:n])
	return c
}

// ---------------------------------------------------------------------------
// Handle resolution
// ---------------------------------------------------------------------------

// Deref returns the object c refers to.
// Panics if c is not an object or refers to a freed slot.
func (gc *GC) Deref(c Cell) *Object {
	slot := c.Handle()
	if slot < firstHeapSlot {
		return staticTable[slot]
	}
	i := slot - firstHeapSlot
	if i >= uint64(len(gc.objects)) || gc.objects[i] == nil {
		panic(fmt.Sprintf("GC.Deref: dangling handle %d", slot))
	}
	return gc.objects[i]
}

// TypeOf returns the datatype of c: Nil for nil, the built-in marker for
// integers, arrays, booleans, strings and datatypes, and element 0 for
// instances.
func (gc *GC) TypeOf(c Cell) Cell {
	switch {
	case c.IsNil():
		return Nil
	case c.IsInteger():
		return IntType
	}

	obj := gc.Deref(c)
	switch obj.kind() {
	case TypeArray:
		return ArrayType
	case TypeTrue, TypeFalse:
		return BoolType
	case TypeString:
		return StringType
	case TypeDatatype:
		return TypeType
	default:
		return obj.Children()[0]
	}
}

// ---------------------------------------------------------------------------
// Collection
// ---------------------------------------------------------------------------

// Traverse marks every heap object reachable from root and returns how many
// objects it newly marked. Already-marked objects end the walk along that
// path, so cycles terminate. Static objects are never marked.
func (gc *GC) Traverse(root Cell) int {
	marked := 0
	stack := append(gc.markStack[:0], root)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !c.IsObject() || c.IsStatic() {
			continue
		}

		obj := gc.Deref(c)
		if obj.GCStatus&Marked != 0 {
			continue
		}
		obj.GCStatus = Marked
		marked++

		if obj.HasChildren() {
			children := obj.Children()
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		}
	}
	gc.markStack = stack[:0]
	return marked
}

// Collect clears every mark, traverses from each root of state, and frees
// every heap object left unmarked.
func (gc *GC) Collect(state *State) *CollectStats {
	start := time.Now()
	stats := &CollectStats{Timestamp: start}

	for _, obj := range gc.objects {
		if obj != nil {
			obj.GCStatus &^= Marked
		}
	}

	if state != nil {
		state.ForEachRoot(func(c Cell) {
			stats.Marked += gc.Traverse(c)
		})
	}

	for i, obj := range gc.objects {
		if obj == nil || obj.GCStatus&Marked != 0 {
			continue
		}
		size := objectHeaderSize + uint64(len(obj.data))*cellWidth
		gc.objects[i] = nil
		gc.free = append(gc.free, firstHeapSlot+uint64(i))
		gc.live--
		gc.bytesLive -= size
		stats.Freed++
		stats.BytesFreed += size
	}

	gc.sinceLast = 0
	stats.Live = gc.live
	stats.BytesLive = gc.bytesLive
	stats.Duration = time.Since(start)

	gc.collectCount++
	gc.lastStats = stats

	log.Debugf("gc: freed %d objects (%s), %d live (%s) in %s",
		stats.Freed, units.BytesSize(float64(stats.BytesFreed)),
		stats.Live, units.BytesSize(float64(stats.BytesLive)), stats.Duration)
	return stats
}
