// Package symtab implements the P compiler's symbol table: a multimap from
// identifier to SymValue that keeps one entry per (name, level) pair and
// resolves a bare lookup to whichever entry has the greatest level not
// exceeding the current scope -- the mechanism by which an inner block's
// declarations shadow an outer one's.
//
// Implemented as a flat slice scanned linearly rather than a stack of
// per-level maps, because the compiler needs to see sibling declarations
// within the same block immediately (mutual recursion between two
// procedures declared back to back) which a push/pop-scope map stack
// does not give for free.
package symtab

import "fmt"

// Kind identifies what a SymValue denotes.
type Kind uint8

const (
	Constant Kind = iota
	Variable
	TypeName
	Procedure
	Function
)

func (k Kind) String() string {
	switch k {
	case Constant:
		return "constant"
	case Variable:
		return "variable"
	case TypeName:
		return "type"
	case Procedure:
		return "procedure"
	case Function:
		return "function"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Value is the interpretation-dependent payload of a SymValue: a constant
// literal, a variable's frame offset, or a subroutine's code entry
// address. It is always an int64 here; constants additionally carry a
// kind tag via Type so the compiler knows whether to treat Value as an
// integer bit pattern or (via math.Float64frombits, at the call site) a
// real.
type Value = int64

// TypeRef is the minimal interface the compiler's own *types.Type
// satisfies; symtab doesn't import the types package to avoid a cycle --
// instead SymValue.Type is declared as `any` and the compiler type-asserts
// it back to *types.Type. This keeps symtab reusable and dependency-free.
type TypeRef = any

// Param describes one formal parameter's type, in declaration order.
type Param struct {
	Name string
	Type TypeRef
}

// SymValue is the payload stored for one identifier at one lexical level.
type SymValue struct {
	Name   string
	Kind   Kind
	Level  int
	Value  Value
	Type   TypeRef
	Params []Param
}

// entry pairs a SymValue with its insertion sequence number. Lookup does
// not consult seq: the Redefined check keeps at most one entry per level,
// so there is no tie to break. EqualRange returns entries in the order
// they are stored, which is insertion order.
type entry struct {
	val SymValue
	seq int
}

// ErrRedefined is returned by Insert when an entry already exists for the
// given (name, level) pair.
type ErrRedefined struct {
	Name  string
	Level int
}

func (e *ErrRedefined) Error() string {
	return fmt.Sprintf("%s redefined at level %d", e.Name, e.Level)
}

// Table is a multimap symbol table. The zero value is ready to use.
type Table struct {
	entries map[string][]entry
	seq     int
}

// New returns an empty symbol table.
func New() *Table {
	return &Table{entries: make(map[string][]entry)}
}

// Insert adds a new entry for name at sv.Level. It returns *ErrRedefined
// if an entry already exists at that exact level; the table is unchanged
// in that case.
func (t *Table) Insert(name string, sv SymValue) error {
	if t.entries == nil {
		t.entries = make(map[string][]entry)
	}
	for _, e := range t.entries[name] {
		if e.val.Level == sv.Level {
			return &ErrRedefined{Name: name, Level: sv.Level}
		}
	}
	sv.Name = name
	t.seq++
	t.entries[name] = append(t.entries[name], entry{val: sv, seq: t.seq})
	return nil
}

// Lookup returns the entry for name with the greatest level not exceeding
// maxLevel, i.e. the shadowing entry visible from a scope at maxLevel.
// ok is false if no entry is visible.
func (t *Table) Lookup(name string, maxLevel int) (SymValue, bool) {
	best := -1
	var found SymValue
	ok := false
	for _, e := range t.entries[name] {
		if e.val.Level <= maxLevel && e.val.Level > best {
			best = e.val.Level
			found = e.val
			ok = true
		}
	}
	return found, ok
}

// LookupAny returns the entry for name with the greatest level overall,
// ignoring the caller's scope. Used by the compiler to resolve named
// constants in subrange bounds, where no scope level is passed in.
func (t *Table) LookupAny(name string) (SymValue, bool) {
	best := -1
	var found SymValue
	ok := false
	for _, e := range t.entries[name] {
		if e.val.Level > best {
			best = e.val.Level
			found = e.val
			ok = true
		}
	}
	return found, ok
}

// EqualRange returns every entry sharing name, across all levels, in
// insertion order.
func (t *Table) EqualRange(name string) []SymValue {
	es := t.entries[name]
	out := make([]SymValue, len(es))
	for i, e := range es {
		out[i] = e.val
	}
	return out
}

// SetValue updates the Value of the entry for (name, level) in place.
// Used for the two-phase declaration of a procedure/function: the symbol
// is inserted with a placeholder Value before its body is compiled, then
// patched with the real code entry address as soon as that address is
// known -- before the body's statements are compiled, so a recursive call
// within them gets the real address.
// ok is false if no such entry exists.
func (t *Table) SetValue(name string, level int, val Value) bool {
	es := t.entries[name]
	for i := range es {
		if es[i].val.Level == level {
			es[i].val.Value = val
			return true
		}
	}
	return false
}

// Purge removes every entry whose level equals level. Called on block
// exit to restore the enclosing scope's view of any shadowed names.
func (t *Table) Purge(level int) {
	for name, es := range t.entries {
		kept := es[:0]
		for _, e := range es {
			if e.val.Level != level {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(t.entries, name)
		} else {
			t.entries[name] = kept
		}
	}
}

// Len returns the total number of entries across all names and levels.
// Exposed for tests asserting purge invariants.
func (t *Table) Len() int {
	n := 0
	for _, es := range t.entries {
		n += len(es)
	}
	return n
}
