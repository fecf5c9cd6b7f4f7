package bytecode

import (
	"testing"

	"github.com/slowlysurly/p/datum"
)

func sampleProgram() *Program {
	p := NewProgram()
	p.PatchEntry(2)
	p.Emit(NewInstr(ENTER, 0, datum.Int(1)))
	p.Emit(NewInstr(PUSHVAR, 0, datum.Int(4)))
	p.Emit(WithAddr(PUSH, 10))
	p.Emit(WithAddr(ASSIGN, 1))
	p.Emit(WithAddr(PUSH, 3))
	p.Emit(Simple(ITOR))
	p.Emit(WithAddr(RET, 0))
	p.AddConst("hello")
	return p
}

func TestDisassembleRoundTrip(t *testing.T) {
	p := sampleProgram()
	want := p.Disassemble()

	encoded := p.Serialize()
	decoded, err := Deserialize(encoded)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	got := decoded.Disassemble()
	if got != want {
		t.Fatalf("disasm(assemble(code)) != canonical(code)\nwant:\n%s\ngot:\n%s", want, got)
	}
	if decoded.Entry != p.Entry {
		t.Fatalf("entry mismatch: want %d got %d", p.Entry, decoded.Entry)
	}
	if len(decoded.Consts) != 1 || decoded.Consts[0] != "hello" {
		t.Fatalf("consts mismatch: %#v", decoded.Consts)
	}
}

func TestSerializeRealDatum(t *testing.T) {
	p := NewProgram()
	p.Emit(WithAddr(LLIMIT, 0))
	p.Code[len(p.Code)-1].Addr = datum.Real(3.5)

	decoded, err := Deserialize(p.Serialize())
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	got := decoded.Code[len(decoded.Code)-1].Addr
	if !got.IsReal() || got.Float64() != 3.5 {
		t.Fatalf("real datum round-trip failed: got %#v", got)
	}
}

func TestOpcodeString(t *testing.T) {
	if NEG.String() != "neg" {
		t.Errorf("NEG.String() = %q, want %q", NEG.String(), "neg")
	}
	if HALT.String() != "halt" {
		t.Errorf("HALT.String() = %q, want %q", HALT.String(), "halt")
	}
	unknown := OpCode(200)
	if unknown.Valid() {
		t.Errorf("OpCode(200) unexpectedly valid")
	}
}

func TestNewProgramPrelude(t *testing.T) {
	p := NewProgram()
	if len(p.Code) != 2 {
		t.Fatalf("expected prelude of 2 instructions, got %d", len(p.Code))
	}
	if p.Code[0].Op != CALL || p.Code[1].Op != HALT {
		t.Fatalf("prelude mismatch: %v", p.Code)
	}
	p.PatchEntry(5)
	if p.Code[0].Addr.Int64() != 5 {
		t.Fatalf("PatchEntry did not patch CALL addr: %v", p.Code[0])
	}
}

func TestAddConstInterns(t *testing.T) {
	p := NewProgram()
	a := p.AddConst("x")
	b := p.AddConst("y")
	c := p.AddConst("x")
	if a != c {
		t.Errorf("AddConst did not intern duplicate: %d != %d", a, c)
	}
	if a == b {
		t.Errorf("AddConst collapsed distinct constants")
	}
}
