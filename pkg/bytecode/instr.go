package bytecode

import (
	"fmt"

	"github.com/slowlysurly/p/datum"
)

// Instr is a single P-machine instruction: an opcode plus a static
// nesting-level distance and an instruction-specific addr operand. addr's
// meaning depends on op: an immediate constant (PUSH), a frame offset
// (PUSHVAR), a code address (CALL/JUMP/JNEQ), or a pop/element count
// (POP/EVAL/ASSIGN/RET/RETF). WRITE/WRITELN take their item count from
// the stack, not from addr.
type Instr struct {
	Op    OpCode
	Level int8
	Addr  datum.Datum
}

// NewInstr constructs an instruction from its components.
func NewInstr(op OpCode, level int8, addr datum.Datum) Instr {
	return Instr{Op: op, Level: level, Addr: addr}
}

// Simple constructs a level-less, addr-less instruction (the common case
// for arithmetic, comparison and stack-manipulation opcodes).
func Simple(op OpCode) Instr {
	return Instr{Op: op, Addr: datum.Int(0)}
}

// WithAddr constructs an instruction with only an addr operand.
func WithAddr(op OpCode, addr int64) Instr {
	return Instr{Op: op, Addr: datum.Int(addr)}
}

// String renders a single instruction the way the disassembler's per-line
// format does, without a location prefix.
func (in Instr) String() string {
	switch in.Op {
	case CALL, PUSHVAR:
		return fmt.Sprintf("%-8s %d, %s", in.Op, in.Level, in.Addr)
	case PUSH:
		return fmt.Sprintf("%-8s %s", in.Op, in.Addr)
	case JUMP, JNEQ, POP, ENTER, RET, RETF, EVAL, ASSIGN, COPY, PRED, SUCC, LLIMIT, ULIMIT:
		return fmt.Sprintf("%-8s %s", in.Op, in.Addr)
	default:
		return in.Op.String()
	}
}

// InstrVector is an ordered sequence of instructions indexed by program
// counter.
type InstrVector []Instr

// Program is the compiler's output: the instruction stream, the string
// constant pool holding the string literals of write/writeln argument
// lists, and the entry address that PC 0's CALL was patched to.
type Program struct {
	Code   InstrVector
	Consts []string
	Entry  int
}

// NewProgram returns an empty program with the mandatory prelude
// (CALL 0,0 at PC 0, HALT at PC 1) already emitted; the compiler patches
// the CALL's addr once the main block's entry point is known.
func NewProgram() *Program {
	p := &Program{}
	p.Code = append(p.Code, NewInstr(CALL, 0, datum.Int(0)))
	p.Code = append(p.Code, Simple(HALT))
	return p
}

// Emit appends an instruction and returns its PC.
func (p *Program) Emit(in Instr) int {
	pc := len(p.Code)
	p.Code = append(p.Code, in)
	return pc
}

// PC returns the program counter that the next Emit call will use.
func (p *Program) PC() int { return len(p.Code) }

// Patch overwrites the Addr of the instruction at pc. Used for
// backpatching jump targets once they become known.
func (p *Program) Patch(pc int, addr int64) {
	p.Code[pc].Addr = datum.Int(addr)
}

// PatchEntry sets the prelude CALL's target to the main block's entry
// address.
func (p *Program) PatchEntry(entry int) {
	p.Entry = entry
	p.Patch(0, int64(entry))
}

// AddConst interns a string constant, returning its index. Used for the
// string literals in write/writeln argument lists.
func (p *Program) AddConst(s string) int {
	for i, c := range p.Consts {
		if c == s {
			return i
		}
	}
	idx := len(p.Consts)
	p.Consts = append(p.Consts, s)
	return idx
}
