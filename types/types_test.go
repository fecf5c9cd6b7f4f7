package types

import "testing"

func TestArraySizeIsElementSizeTimesSpan(t *testing.T) {
	idx := NewSubRange(IntegerType, 1, 3)
	a := NewArray(idx, IntegerType)
	if a.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", a.Size())
	}
	if a.Kind() != Array {
		t.Fatalf("Kind() = %v, want Array", a.Kind())
	}
}

func TestNestedArraySizeIsProductOfDimensions(t *testing.T) {
	// array[1..3, 1..4] of integer, desugared as array[1..3] of array[1..4] of integer.
	inner := NewArray(NewSubRange(IntegerType, 1, 4), IntegerType)
	outer := NewArray(NewSubRange(IntegerType, 1, 3), inner)
	if inner.Size() != 4 {
		t.Fatalf("inner Size() = %d, want 4", inner.Size())
	}
	if outer.Size() != 12 {
		t.Fatalf("outer Size() = %d, want 12", outer.Size())
	}
	if outer.Base != inner {
		t.Fatalf("outer.Base is not the inner array type")
	}
}

func TestArrayOfRecordSizeMultipliesElementSize(t *testing.T) {
	point := NewRecord([]Field{
		{Name: "x", Type: IntegerType},
		{Name: "y", Type: IntegerType},
	})
	a := NewArray(NewSubRange(IntegerType, 1, 3), point)
	if a.Size() != 6 {
		t.Fatalf("Size() = %d, want 6 (3 elements * 2 fields)", a.Size())
	}
}

func TestRecordSizeIsSumOfFieldSizes(t *testing.T) {
	r := NewRecord([]Field{
		{Name: "x", Type: IntegerType},
		{Name: "y", Type: RealType},
	})
	if r.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", r.Size())
	}
	off, ft, ok := r.FieldOffset("y")
	if !ok || off != 1 || ft != RealType {
		t.Fatalf("FieldOffset(y) = %d, %v, %v, want 1, RealType, true", off, ft, ok)
	}
}

func TestPointerSizeIsOneRegardlessOfPointee(t *testing.T) {
	rec := NewRecord([]Field{{Name: "x", Type: IntegerType}, {Name: "y", Type: IntegerType}})
	p := NewPointer(rec)
	if p.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", p.Size())
	}
	if p.Base != rec {
		t.Fatalf("Base is not the pointee record type")
	}
}

func TestPointerPlaceholderAllowsSelfReferentialRecord(t *testing.T) {
	ph := NewPointerPlaceholder()
	node := NewRecord([]Field{
		{Name: "value", Type: IntegerType},
		{Name: "next", Type: ph},
	})
	ph.SetBase(node)

	if ph.Base != node {
		t.Fatalf("placeholder's Base was not installed")
	}
	_, ft, ok := node.FieldOffset("next")
	if !ok || ft != ph {
		t.Fatalf("FieldOffset(next) = %v, %v, want ph, true", ft, ok)
	}
}

func TestBoundsForPlainIntegerIsNotMeaningful(t *testing.T) {
	// Integer's zero-value Range is a documented non-signal, not a real
	// [0,0] bound -- callers needing PRED/SUCC limits for a plain Integer
	// must special-case it rather than trust Bounds() here.
	b := IntegerType.Bounds()
	if b.Min != 0 || b.Max != 0 {
		t.Fatalf("IntegerType.Bounds() = %+v, want the documented zero value", b)
	}
}

func TestBoundsForSubRangeIsItsOwnRange(t *testing.T) {
	sr := NewSubRange(IntegerType, 1, 5)
	b := sr.Bounds()
	if b.Min != 1 || b.Max != 5 {
		t.Fatalf("Bounds() = %+v, want {1,5}", b)
	}
	if !sr.IsOrdinal() {
		t.Fatalf("SubRange should be ordinal")
	}
}

func TestEnumerationBoundsAndIndex(t *testing.T) {
	e := NewEnumeration([]string{"red", "green", "blue"})
	b := e.Bounds()
	if b.Min != 0 || b.Max != 2 {
		t.Fatalf("Bounds() = %+v, want {0,2}", b)
	}
	idx, ok := e.EnumIndex("green")
	if !ok || idx != 1 {
		t.Fatalf("EnumIndex(green) = %d, %v, want 1, true", idx, ok)
	}
	if _, ok := e.EnumIndex("purple"); ok {
		t.Fatalf("EnumIndex(purple) unexpectedly found")
	}
}

func TestEqualStructuralComparison(t *testing.T) {
	a := NewArray(NewSubRange(IntegerType, 1, 3), IntegerType)
	b := NewArray(NewSubRange(IntegerType, 1, 3), IntegerType)
	c := NewArray(NewSubRange(IntegerType, 1, 4), IntegerType)
	if !Equal(a, b) {
		t.Fatalf("structurally identical arrays should be Equal")
	}
	if Equal(a, c) {
		t.Fatalf("arrays with different bounds should not be Equal")
	}
}
