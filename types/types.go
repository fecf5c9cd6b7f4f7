// Package types implements the P language's type descriptor graph:
// scalars, subranges, arrays, records, pointers and enumerations.
//
// A *Type is immutable once published, with one exception: a Pointer type
// is built in two phases so that a record can contain a pointer to itself
// (or to a type that mutually refers back to it) without a true reference
// cycle in the builder -- an empty pointer placeholder is created first and
// its Base is installed once the pointee is finalized.
package types

import "fmt"

// Kind identifies which shape of type a Type describes.
type Kind uint8

const (
	Integer Kind = iota
	Real
	Boolean
	Character
	Array
	Record
	Enumeration
	Pointer
	SubRange
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Real:
		return "real"
	case Boolean:
		return "boolean"
	case Character:
		return "char"
	case Array:
		return "array"
	case Record:
		return "record"
	case Enumeration:
		return "enumeration"
	case Pointer:
		return "pointer"
	case SubRange:
		return "subrange"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Range describes an inclusive [Min,Max] bound used by ordinals and by
// array index types.
type Range struct {
	Min, Max int64
}

// Span returns the number of values in the range.
func (r Range) Span() int64 {
	if r.Max < r.Min {
		return 0
	}
	return r.Max - r.Min + 1
}

// Field is a (name, type) pair used by Record and Enumeration types.
type Field struct {
	Name string
	Type *Type
}

// Type is an immutable type descriptor. Build one with the New* helpers;
// never mutate Type fields after construction except through SetBase on a
// pointer placeholder created by NewPointerPlaceholder.
type Type struct {
	kind Kind
	size int // size in Datums

	// Index is the array index type (Array only).
	Index *Type
	// Base is the element type (Array), the pointee type (Pointer), or the
	// underlying ordinal type (SubRange).
	Base *Type
	// Range is populated for SubRange, and for Array (a copy of its index
	// type's bounds).
	Range Range
	// Fields is populated for Record (field list) and Enumeration
	// (ordered list of named constants, each sized 1).
	Fields []Field
}

// Kind returns the type's kind.
func (t *Type) Kind() Kind { return t.kind }

// Size returns the type's size in Datums.
func (t *Type) Size() int { return t.size }

// IsOrdinal reports whether values of this type have a total order and a
// predecessor/successor relation: Integer, Boolean, Character, Enumeration
// and SubRange all qualify.
func (t *Type) IsOrdinal() bool {
	switch t.kind {
	case Integer, Boolean, Character, Enumeration, SubRange:
		return true
	default:
		return false
	}
}

// Bounds returns the ordinal bounds of the type: for a SubRange, its own
// Range; for an Enumeration, 0..len(Fields)-1; for Boolean, 0..1; for
// Character, 0..255. For Integer it returns the zero Range {0,0}, which is
// not a meaningful bound, so callers that need one (PRED/SUCC on a plain
// Integer) should treat it as unbounded by using math.MinInt64/MaxInt64
// instead of calling Bounds.
func (t *Type) Bounds() Range {
	switch t.kind {
	case SubRange:
		return t.Range
	case Enumeration:
		return Range{Min: 0, Max: int64(len(t.Fields)) - 1}
	case Boolean:
		return Range{Min: 0, Max: 1}
	case Character:
		return Range{Min: 0, Max: 255}
	default:
		return t.Range
	}
}

var (
	IntegerType   = &Type{kind: Integer, size: 1}
	RealType      = &Type{kind: Real, size: 1}
	BooleanType   = &Type{kind: Boolean, size: 1}
	CharacterType = &Type{kind: Character, size: 1}
)

// NewSubRange creates a subrange type over base (an ordinal type) bounded
// by [min,max].
func NewSubRange(base *Type, min, max int64) *Type {
	return &Type{kind: SubRange, size: 1, Base: base, Range: Range{Min: min, Max: max}}
}

// NewArray creates an array type with the given index type (itself
// ordinal, usually a SubRange) and element type.
func NewArray(index, elem *Type) *Type {
	span := index.Bounds().Span()
	return &Type{
		kind:  Array,
		size:  elem.Size() * int(span),
		Index: index,
		Base:  elem,
		Range: index.Bounds(),
	}
}

// NewRecord creates a record type from an ordered field list; size is the
// sum of the field sizes.
func NewRecord(fields []Field) *Type {
	size := 0
	for _, f := range fields {
		size += f.Type.Size()
	}
	return &Type{kind: Record, size: size, Fields: fields}
}

// NewEnumeration creates an enumeration type from an ordered list of
// constant names, each occupying one Datum and ordered 0..n-1.
func NewEnumeration(names []string) *Type {
	fields := make([]Field, len(names))
	for i, n := range names {
		fields[i] = Field{Name: n, Type: IntegerType}
	}
	return &Type{kind: Enumeration, size: 1, Fields: fields}
}

// FieldOffset returns the Datum offset of the named field within a record,
// and the field's type. ok is false if the field does not exist.
func (t *Type) FieldOffset(name string) (offset int, field *Type, ok bool) {
	off := 0
	for _, f := range t.Fields {
		if f.Name == name {
			return off, f.Type, true
		}
		off += f.Type.Size()
	}
	return 0, nil, false
}

// EnumIndex returns the ordinal index of a named enumeration constant.
func (t *Type) EnumIndex(name string) (int64, bool) {
	for i, f := range t.Fields {
		if f.Name == name {
			return int64(i), true
		}
	}
	return 0, false
}

// NewPointerPlaceholder creates a pointer type whose Base is not yet
// known. Call SetBase once the pointee type is finalized, so that a
// record type can hold a pointer to itself.
func NewPointerPlaceholder() *Type {
	return &Type{kind: Pointer, size: 1}
}

// SetBase installs the pointee type of a pointer placeholder. It may be
// called exactly once; calling it on a non-pointer or a pointer whose
// Base is already set is a programming error and panics.
func (t *Type) SetBase(base *Type) {
	if t.kind != Pointer {
		panic("types: SetBase called on a non-pointer type")
	}
	if t.Base != nil {
		panic("types: pointer base already set")
	}
	t.Base = base
}

// NewPointer creates a fully-formed pointer type in one step, for the
// common case where the pointee is already known.
func NewPointer(base *Type) *Type {
	p := NewPointerPlaceholder()
	p.SetBase(base)
	return p
}

// Equal reports whether two types describe the same shape. Named types
// are compared structurally here; the symbol table is what gives two
// structurally-identical declarations distinct identities when the
// language requires it (it doesn't, for P).
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case SubRange:
		return a.Range == b.Range && Equal(a.Base, b.Base)
	case Array:
		return Equal(a.Index, b.Index) && Equal(a.Base, b.Base)
	case Pointer:
		return Equal(a.Base, b.Base)
	case Record:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name || !Equal(a.Fields[i].Type, b.Fields[i].Type) {
				return false
			}
		}
		return true
	case Enumeration:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// CommonOrdinalBase returns the ordinal type at the bottom of a chain of
// SubRanges -- e.g. for "1..5" over Integer, it returns IntegerType.
func (t *Type) CommonOrdinalBase() *Type {
	for t.kind == SubRange {
		t = t.Base
	}
	return t
}

func (t *Type) String() string {
	switch t.kind {
	case SubRange:
		return fmt.Sprintf("%d..%d", t.Range.Min, t.Range.Max)
	case Array:
		return fmt.Sprintf("array[%s] of %s", t.Index, t.Base)
	case Pointer:
		if t.Base == nil {
			return "^<incomplete>"
		}
		return "^" + t.Base.String()
	case Record:
		return "record"
	case Enumeration:
		return "enumeration"
	default:
		return t.kind.String()
	}
}
