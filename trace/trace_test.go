package trace

import (
	"path/filepath"
	"testing"

	"github.com/slowlysurly/p/datum"
	"github.com/slowlysurly/p/machine"
	"github.com/slowlysurly/p/pkg/bytecode"
)

func TestSessionRecordsMutations(t *testing.T) {
	xAddr := int64(machine.FrameSize)

	p := bytecode.NewProgram()
	p.PatchEntry(p.PC())
	p.Emit(bytecode.NewInstr(bytecode.ENTER, 0, datum.Int(1)))
	p.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(xAddr)))
	p.Emit(bytecode.WithAddr(bytecode.PUSH, 7))
	p.Emit(bytecode.WithAddr(bytecode.ASSIGN, 1))
	p.Emit(bytecode.WithAddr(bytecode.RET, 0))

	m := machine.New(machine.DefaultStackSize, machine.DefaultHeapSize)
	m.Load(p)

	sess := NewSession()
	sess.Attach(m)

	if r := m.Run(); r != machine.Halted {
		t.Fatalf("run: %v", r)
	}
	if len(sess.Events) != 1 {
		t.Fatalf("events = %d, want 1", len(sess.Events))
	}
	if int64(sess.Events[0].Addr) != xAddr {
		t.Errorf("event addr = %d, want %d", sess.Events[0].Addr, xAddr)
	}
}

func TestSessionRoundTripThroughFile(t *testing.T) {
	sess := NewSession()
	sess.Events = []Event{{PC: 1, Op: int(bytecode.ASSIGN), Addr: 4, Cycle: 3}}

	path := filepath.Join(t.TempDir(), "run.trace")
	if err := sess.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.ID != sess.ID {
		t.Errorf("id = %q, want %q", got.ID, sess.ID)
	}
	if len(got.Events) != 1 || got.Events[0] != sess.Events[0] {
		t.Errorf("events = %v, want %v", got.Events, sess.Events)
	}
}
