package vm

import (
	"bytes"
	"testing"
)

// ---------------------------------------------------------------------------
// Allocation tests
// ---------------------------------------------------------------------------

func TestMakeArray(t *testing.T) {
	gc := NewGC()
	for _, n := range []int{0, 1, 5, 100} {
		c := gc.MakeArray(n)
		obj := gc.Deref(c)
		if !obj.IsArray() || !obj.HasChildren() {
			t.Fatalf("MakeArray(%d) is not an array with children", n)
		}
		if obj.GCStatus != NewlyAllocated {
			t.Errorf("MakeArray(%d).GCStatus = %v, want NewlyAllocated", n, obj.GCStatus)
		}
		children := obj.Children()
		if len(children) != n {
			t.Fatalf("MakeArray(%d) has %d children", n, len(children))
		}
		for i, child := range children {
			if !child.IsNil() {
				t.Errorf("MakeArray(%d)[%d] = %v, want nil", n, i, child)
			}
		}
		if obj.Size%cellWidth != 0 {
			t.Errorf("array size %d is not a multiple of the cell width", obj.Size)
		}
	}
}

func TestMakeString(t *testing.T) {
	gc := NewGC()
	tests := [][]byte{
		{},
		[]byte("hello"),
		[]byte("with\x00nul\x00inside"),
		bytes.Repeat([]byte("abcdefg"), 33),
	}

	for _, in := range tests {
		c := gc.MakeString(in)
		obj := gc.Deref(c)
		if !obj.IsString() {
			t.Fatalf("MakeString(%q) is not a string", in)
		}
		if obj.HasChildren() {
			t.Errorf("string should not have children")
		}
		if !bytes.Equal(obj.Bytes(), in) {
			t.Errorf("Bytes() = %q, want %q", obj.Bytes(), in)
		}
		if obj.Text() != string(in) {
			t.Errorf("Text() = %q, want %q", obj.Text(), in)
		}
		if int(obj.Size) != len(in)+1 {
			t.Errorf("Size = %d, want %d (terminator included)", obj.Size, len(in)+1)
		}
		if term := obj.payloadBytes()[len(in)]; term != 0 {
			t.Errorf("terminator = %#x, want 0", term)
		}
	}
}

func TestMakeStringCopiesInput(t *testing.T) {
	gc := NewGC()
	buf := []byte("abc")
	c := gc.MakeString(buf)
	buf[0] = 'z'
	if got := gc.Deref(c).Text(); got != "abc" {
		t.Errorf("string changed with caller buffer: %q", got)
	}
}

func TestMakeDatatype(t *testing.T) {
	gc := NewGC()
	names := []string{"a", "b"}
	dt := gc.MakeDatatype(names)
	obj := gc.Deref(dt)

	if !obj.IsDatatype() || !obj.CanInstantiate() {
		t.Fatal("MakeDatatype should produce an instantiable datatype")
	}
	if obj.FieldCount() != 2 {
		t.Fatalf("FieldCount() = %d, want 2", obj.FieldCount())
	}
	if obj.Field(0) != "a" || obj.Field(1) != "b" {
		t.Errorf("Fields() = %v, want [a b]", obj.Fields())
	}
}

func TestMakeDatatypeOwnsNames(t *testing.T) {
	gc := NewGC()
	raw := []byte("alpha")
	names := []string{string(raw), "", "gamma"}
	dt := gc.MakeDatatype(names)

	raw[0] = 'X'
	names[0] = "changed"
	names[2] = "also changed"

	got := gc.Deref(dt).Fields()
	want := []string{"alpha", "", "gamma"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMakeInstance(t *testing.T) {
	gc := NewGC()
	dt := gc.MakeDatatype([]string{"x", "y", "z"})
	argv := []Cell{FromFixnum(1), gc.MakeStringFrom("two"), Nil}
	inst := gc.MakeInstance(dt, argv)

	obj := gc.Deref(inst)
	if !obj.IsInstance() {
		t.Fatal("MakeInstance should produce an instance")
	}
	children := obj.Children()
	if len(children) != 4 {
		t.Fatalf("instance has %d children, want 4", len(children))
	}
	if children[0] != dt {
		t.Errorf("children[0] = %v, want datatype %v", children[0], dt)
	}
	for i, want := range argv {
		if children[i+1] != want {
			t.Errorf("children[%d] = %v, want %v", i+1, children[i+1], want)
		}
	}
	if gc.TypeOf(inst) != dt {
		t.Errorf("TypeOf(instance) = %v, want %v", gc.TypeOf(inst), dt)
	}
}

func TestMakeInstanceRejectsBuiltinTypes(t *testing.T) {
	gc := NewGC()
	defer func() {
		if recover() == nil {
			t.Error("instantiating a built-in type marker should panic")
		}
	}()
	gc.MakeInstance(IntType, nil)
}

func TestMakeInstanceShortArgv(t *testing.T) {
	gc := NewGC()
	dt := gc.MakeDatatype([]string{"x", "y"})
	defer func() {
		if recover() == nil {
			t.Error("MakeInstance with too few values should panic")
		}
	}()
	gc.MakeInstance(dt, []Cell{Nil})
}

// ---------------------------------------------------------------------------
// Type tests
// ---------------------------------------------------------------------------

func TestTypeOf(t *testing.T) {
	gc := NewGC()
	tests := []struct {
		name string
		c    Cell
		want Cell
	}{
		{"nil", Nil, Nil},
		{"integer", FromFixnum(3), IntType},
		{"array", gc.MakeArray(2), ArrayType},
		{"true", True, BoolType},
		{"false", False, BoolType},
		{"string", gc.MakeStringFrom("s"), StringType},
		{"datatype", gc.MakeDatatype(nil), TypeType},
		{"marker", IntType, TypeType},
	}
	for _, tt := range tests {
		if got := gc.TypeOf(tt.c); got != tt.want {
			t.Errorf("TypeOf(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestStaticObjects(t *testing.T) {
	gc := NewGC()
	for _, c := range []Cell{True, False, TypeType, IntType, BoolType, StringType, ArrayType} {
		if !c.IsStatic() {
			t.Errorf("%s should be static", StaticName(c))
		}
		if !gc.Deref(c).IsStatic() {
			t.Errorf("%s object should carry the Static flag", StaticName(c))
		}
	}
	if !gc.Deref(True).IsBool() || !gc.Deref(False).IsBool() {
		t.Error("boolean singletons should be bools")
	}
	if !gc.Deref(True).IsTrue() || gc.Deref(True).IsFalse() || !gc.Deref(False).IsFalse() {
		t.Error("True and False should be distinguishable")
	}
	if gc.Deref(IntType).CanInstantiate() {
		t.Error("built-in markers cannot be instantiated")
	}
	if c := gc.MakeArray(0); c.IsStatic() {
		t.Error("heap objects are never static")
	}
}

func TestChildrenPanicsOnString(t *testing.T) {
	gc := NewGC()
	obj := gc.Deref(gc.MakeStringFrom("x"))
	defer func() {
		if recover() == nil {
			t.Error("Children on a string should panic")
		}
	}()
	obj.Children()
}
