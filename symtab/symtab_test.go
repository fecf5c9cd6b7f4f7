package symtab

import "testing"

func TestPurgeRemovesOnlyThatLevel(t *testing.T) {
	tbl := New()
	mustInsert(t, tbl, "x", SymValue{Kind: Variable, Level: 0, Value: 1})
	mustInsert(t, tbl, "y", SymValue{Kind: Variable, Level: 1, Value: 2})
	mustInsert(t, tbl, "z", SymValue{Kind: Variable, Level: 1, Value: 3})

	before := tbl.Len()
	tbl.Purge(1)

	if tbl.Len() != before-2 {
		t.Fatalf("Len() = %d, want %d", tbl.Len(), before-2)
	}
	if _, ok := tbl.Lookup("y", 1); ok {
		t.Fatalf("y still visible after purging level 1")
	}
	if _, ok := tbl.Lookup("z", 1); ok {
		t.Fatalf("z still visible after purging level 1")
	}
	sv, ok := tbl.Lookup("x", 1)
	if !ok || sv.Value != 1 {
		t.Fatalf("x (level 0) was disturbed by purging level 1: %+v, ok=%v", sv, ok)
	}
}

func TestPurgeOnlyAffectsNamedLevel(t *testing.T) {
	tbl := New()
	mustInsert(t, tbl, "a", SymValue{Kind: Variable, Level: 0})
	mustInsert(t, tbl, "b", SymValue{Kind: Variable, Level: 2})

	tbl.Purge(1)

	if _, ok := tbl.Lookup("a", 2); !ok {
		t.Fatalf("level 0 entry removed by purging an unrelated level")
	}
	if _, ok := tbl.Lookup("b", 2); !ok {
		t.Fatalf("level 2 entry removed by purging an unrelated level")
	}
}

func TestInsertRedefinedAtSameLevel(t *testing.T) {
	tbl := New()
	mustInsert(t, tbl, "x", SymValue{Kind: Variable, Level: 0})

	err := tbl.Insert("x", SymValue{Kind: Variable, Level: 0})
	if err == nil {
		t.Fatalf("expected ErrRedefined, got nil")
	}
	if _, ok := err.(*ErrRedefined); !ok {
		t.Fatalf("error = %T(%v), want *ErrRedefined", err, err)
	}
}

func TestInsertSameNameDifferentLevelsIsShadowingNotRedefinition(t *testing.T) {
	tbl := New()
	mustInsert(t, tbl, "x", SymValue{Kind: Variable, Level: 0, Value: 10})
	if err := tbl.Insert("x", SymValue{Kind: Variable, Level: 1, Value: 20}); err != nil {
		t.Fatalf("unexpected error inserting shadowing entry: %v", err)
	}

	sv, ok := tbl.Lookup("x", 1)
	if !ok || sv.Value != 20 {
		t.Fatalf("Lookup(x, 1) = %+v, ok=%v, want the level-1 shadowing entry", sv, ok)
	}
	sv, ok = tbl.Lookup("x", 0)
	if !ok || sv.Value != 10 {
		t.Fatalf("Lookup(x, 0) = %+v, ok=%v, want the level-0 entry", sv, ok)
	}
}

func TestLookupResolvesNearestEnclosingLevel(t *testing.T) {
	tbl := New()
	mustInsert(t, tbl, "x", SymValue{Kind: Variable, Level: 0, Value: 1})
	mustInsert(t, tbl, "x", SymValue{Kind: Variable, Level: 2, Value: 2})

	sv, ok := tbl.Lookup("x", 3)
	if !ok || sv.Value != 2 {
		t.Fatalf("Lookup(x, 3) = %+v, ok=%v, want the level-2 entry (nearest enclosing)", sv, ok)
	}

	sv, ok = tbl.Lookup("x", 1)
	if !ok || sv.Value != 1 {
		t.Fatalf("Lookup(x, 1) = %+v, ok=%v, want the level-0 entry, level 2 is not enclosing", sv, ok)
	}
}

func TestSetValuePatchesInPlace(t *testing.T) {
	tbl := New()
	mustInsert(t, tbl, "fact", SymValue{Kind: Function, Level: 0, Value: -1})

	if !tbl.SetValue("fact", 0, 42) {
		t.Fatalf("SetValue reported no matching entry")
	}
	sv, ok := tbl.Lookup("fact", 0)
	if !ok || sv.Value != 42 {
		t.Fatalf("Lookup(fact, 0) = %+v, ok=%v, want Value=42", sv, ok)
	}
}

func mustInsert(t *testing.T, tbl *Table, name string, sv SymValue) {
	t.Helper()
	if err := tbl.Insert(name, sv); err != nil {
		t.Fatalf("Insert(%q, %+v) failed: %v", name, sv, err)
	}
}
