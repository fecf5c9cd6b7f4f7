package machine

import (
	"bytes"
	"testing"

	"github.com/slowlysurly/p/datum"
	"github.com/slowlysurly/p/pkg/bytecode"
)

// buildFactorial builds a program computing 10! iteratively into a global
// variable at address FrameSize+0 and halting, exercising CALL/ENTER/RET,
// PUSHVAR/EVAL/ASSIGN, JUMP/JNEQ, and the ADD/MUL arithmetic opcodes.
func buildFactorial() *bytecode.Program {
	p := bytecode.NewProgram()
	// globals: [0]=result, [1]=i
	resultAddr := int64(FrameSize + 0)
	iAddr := int64(FrameSize + 1)

	p.PatchEntry(p.PC())
	p.Emit(bytecode.NewInstr(bytecode.ENTER, 0, datum.Int(2)))

	// result := 1
	p.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(resultAddr)))
	p.Emit(bytecode.WithAddr(bytecode.PUSH, 1))
	p.Emit(bytecode.WithAddr(bytecode.ASSIGN, 1))

	// i := 1
	p.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(iAddr)))
	p.Emit(bytecode.WithAddr(bytecode.PUSH, 1))
	p.Emit(bytecode.WithAddr(bytecode.ASSIGN, 1))

	loopStart := p.PC()
	// push (i <= 10)
	p.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(iAddr)))
	p.Emit(bytecode.WithAddr(bytecode.EVAL, 1))
	p.Emit(bytecode.WithAddr(bytecode.PUSH, 10))
	p.Emit(bytecode.Simple(bytecode.LTE))
	jneq := p.Emit(bytecode.WithAddr(bytecode.JNEQ, 0))

	// result := result * i
	p.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(resultAddr)))
	p.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(resultAddr)))
	p.Emit(bytecode.WithAddr(bytecode.EVAL, 1))
	p.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(iAddr)))
	p.Emit(bytecode.WithAddr(bytecode.EVAL, 1))
	p.Emit(bytecode.Simple(bytecode.MUL))
	p.Emit(bytecode.WithAddr(bytecode.ASSIGN, 1))

	// i := i + 1
	p.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(iAddr)))
	p.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(iAddr)))
	p.Emit(bytecode.WithAddr(bytecode.EVAL, 1))
	p.Emit(bytecode.WithAddr(bytecode.PUSH, 1))
	p.Emit(bytecode.Simple(bytecode.ADD))
	p.Emit(bytecode.WithAddr(bytecode.ASSIGN, 1))

	p.Emit(bytecode.WithAddr(bytecode.JUMP, int64(loopStart)))

	exit := p.PC()
	p.Patch(jneq, int64(exit))
	p.Emit(bytecode.WithAddr(bytecode.RET, 0))
	return p
}

func TestFactorial(t *testing.T) {
	p := buildFactorial()
	m := New(DefaultStackSize, DefaultHeapSize)
	m.Load(p)
	if r := m.Run(); r != Halted {
		t.Fatalf("run: %v", r)
	}
	got := m.StackValue(FrameSize + 0)
	if got.Int64() != 3628800 {
		t.Fatalf("10! = %v, want 3628800", got)
	}
}

func TestWhileSum(t *testing.T) {
	p := bytecode.NewProgram()
	sAddr := int64(FrameSize + 0)
	iAddr := int64(FrameSize + 1)

	p.PatchEntry(p.PC())
	p.Emit(bytecode.NewInstr(bytecode.ENTER, 0, datum.Int(2)))

	p.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(sAddr)))
	p.Emit(bytecode.WithAddr(bytecode.PUSH, 0))
	p.Emit(bytecode.WithAddr(bytecode.ASSIGN, 1))
	p.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(iAddr)))
	p.Emit(bytecode.WithAddr(bytecode.PUSH, 1))
	p.Emit(bytecode.WithAddr(bytecode.ASSIGN, 1))

	loopStart := p.PC()
	p.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(iAddr)))
	p.Emit(bytecode.WithAddr(bytecode.EVAL, 1))
	p.Emit(bytecode.WithAddr(bytecode.PUSH, 10))
	p.Emit(bytecode.Simple(bytecode.LTE))
	jneq := p.Emit(bytecode.WithAddr(bytecode.JNEQ, 0))

	p.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(sAddr)))
	p.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(sAddr)))
	p.Emit(bytecode.WithAddr(bytecode.EVAL, 1))
	p.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(iAddr)))
	p.Emit(bytecode.WithAddr(bytecode.EVAL, 1))
	p.Emit(bytecode.Simple(bytecode.ADD))
	p.Emit(bytecode.WithAddr(bytecode.ASSIGN, 1))

	p.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(iAddr)))
	p.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(iAddr)))
	p.Emit(bytecode.WithAddr(bytecode.EVAL, 1))
	p.Emit(bytecode.WithAddr(bytecode.PUSH, 1))
	p.Emit(bytecode.Simple(bytecode.ADD))
	p.Emit(bytecode.WithAddr(bytecode.ASSIGN, 1))

	p.Emit(bytecode.WithAddr(bytecode.JUMP, int64(loopStart)))
	exit := p.PC()
	p.Patch(jneq, int64(exit))
	p.Emit(bytecode.WithAddr(bytecode.RET, 0))

	m := New(DefaultStackSize, DefaultHeapSize)
	m.Load(p)
	if r := m.Run(); r != Halted {
		t.Fatalf("run: %v", r)
	}
	if s := m.StackValue(int(sAddr)).Int64(); s != 55 {
		t.Fatalf("s = %d, want 55", s)
	}
	if i := m.StackValue(int(iAddr)).Int64(); i != 11 {
		t.Fatalf("i = %d, want 11", i)
	}
}

func TestSubrangeViolation(t *testing.T) {
	p := bytecode.NewProgram()
	xAddr := int64(FrameSize + 0)
	p.PatchEntry(p.PC())
	p.Emit(bytecode.NewInstr(bytecode.ENTER, 0, datum.Int(1)))
	p.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(xAddr)))
	p.Emit(bytecode.WithAddr(bytecode.PUSH, 6))
	p.Emit(bytecode.WithAddr(bytecode.LLIMIT, 1))
	p.Emit(bytecode.WithAddr(bytecode.ULIMIT, 5))
	p.Emit(bytecode.WithAddr(bytecode.ASSIGN, 1))
	p.Emit(bytecode.WithAddr(bytecode.RET, 0))

	m := New(DefaultStackSize, DefaultHeapSize)
	m.Load(p)
	if r := m.Run(); r != OutOfRange {
		t.Fatalf("run: got %v, want OutOfRange", r)
	}
}

func TestHeapRoundTrip(t *testing.T) {
	m := New(DefaultStackSize, DefaultHeapSize)
	before := m.heap.Snapshot()

	p := bytecode.NewProgram()
	p.PatchEntry(p.PC())
	p.Emit(bytecode.WithAddr(bytecode.PUSH, 4))
	p.Emit(bytecode.Simple(bytecode.NEW))
	p.Emit(bytecode.Simple(bytecode.DISPOSE))
	p.Emit(bytecode.WithAddr(bytecode.RET, 0))
	m.Load(p)

	// NEW leaves the address on top of the stack, where DISPOSE pops it
	// from, so the two ops run back to back in this raw test.
	if r := m.Step(); r != Success { // CALL (prelude)
		t.Fatalf("call: %v", r)
	}
	if r := m.Step(); r != Success { // PUSH 4
		t.Fatalf("push: %v", r)
	}
	if r := m.Step(); r != Success { // NEW
		t.Fatalf("new: %v", r)
	}
	if r := m.Step(); r != Success { // DISPOSE
		t.Fatalf("dispose: %v", r)
	}

	after := m.heap.Snapshot()
	if len(before) != len(after) {
		t.Fatalf("free list changed shape: %v -> %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("free list mismatch at %d: %v != %v", i, before[i], after[i])
		}
	}
}

func TestWriteFormatsInSourceOrder(t *testing.T) {
	p := bytecode.NewProgram()
	p.PatchEntry(p.PC())
	p.Emit(bytecode.WithAddr(bytecode.PUSH, 1))
	p.Emit(bytecode.WithAddr(bytecode.PUSH, 0))
	p.Emit(bytecode.WithAddr(bytecode.PUSH, 0))
	p.Emit(bytecode.WithAddr(bytecode.PUSH, 2))
	p.Emit(bytecode.WithAddr(bytecode.PUSH, 0))
	p.Emit(bytecode.WithAddr(bytecode.PUSH, 0))
	p.Emit(bytecode.WithAddr(bytecode.PUSH, 2)) // argument count
	p.Emit(bytecode.Simple(bytecode.WRITELN))
	p.Emit(bytecode.WithAddr(bytecode.RET, 0))

	var buf bytes.Buffer
	m := New(DefaultStackSize, DefaultHeapSize)
	m.Out = &buf
	m.Load(p)
	if r := m.Run(); r != Halted {
		t.Fatalf("run: %v", r)
	}
	if buf.String() != "12\n" {
		t.Fatalf("write output = %q, want %q", buf.String(), "12\n")
	}
}
