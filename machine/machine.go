// Package machine implements the P-machine: a stack-oriented bytecode
// interpreter with activation frames addressable by (level, offset), a
// static-link calling convention, and an explicit-alloc/explicit-free
// heap (FreeStore).
//
// Follows a classic fetch/increment-pc/switch-on-opcode dispatch loop
// with an optional per-instruction trace hook, and the PL/0-derived
// interpreter tradition's opcode semantics.
package machine

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/slowlysurly/p/datum"
	"github.com/slowlysurly/p/pkg/bytecode"
)

// Frame offsets within an activation frame, relative to fp.
const (
	FrameBase   = 0 // static link: base(lvl) of the lexically enclosing routine
	FrameOldFp  = 1 // saved caller fp
	FrameRetAddr = 2 // return pc
	FrameRetVal = 3 // reserved function return-value slot
	FrameSize   = 4
)

const (
	DefaultStackSize = 1024
	DefaultHeapSize  = 3 * 1024
)

// Mutation records one store into the data segment, for the optional
// execution trace (package trace). PC is the instruction that caused
// the write, Addr the effective address written, Cycle the machine cycle
// count at the time.
type Mutation struct {
	PC    int
	Op    bytecode.OpCode
	Addr  int
	Cycle int
}

// Machine is the P-machine. Construct with New, Load a program, then Run
// or single-step with Step.
type Machine struct {
	code   bytecode.InstrVector
	consts []string

	data []datum.Datum // [0,stackSize) stack, [stackSize,stackSize+heapSize) heap
	heap *FreeStore

	stackSize int
	heapSize  int

	pc, prevPc int
	fp, sp     int
	ir         bytecode.Instr
	ncycles    int

	Trace  bool
	Out    io.Writer
	OnMutate func(Mutation)
}

// New constructs a machine with the given stack and heap sizes, in
// Datums.
func New(stackSize, heapSize int) *Machine {
	m := &Machine{
		stackSize: stackSize,
		heapSize:  heapSize,
		data:      make([]datum.Datum, stackSize+heapSize),
		heap:      NewFreeStore(stackSize, heapSize),
		Out:       os.Stdout,
	}
	return m
}

// Load installs a compiled program and resets all registers.
func (m *Machine) Load(p *bytecode.Program) {
	m.code = p.Code
	m.consts = p.Consts
	m.reset()
}

func (m *Machine) reset() {
	for i := range m.data {
		m.data[i] = datum.Int(0)
	}
	m.heap = NewFreeStore(m.stackSize, m.heapSize)
	m.pc = 0
	m.prevPc = 0
	m.fp = 0
	m.sp = 0
	m.ncycles = 0
}

// Cycles returns the number of instructions executed since the last
// Load/reset.
func (m *Machine) Cycles() int { return m.ncycles }

// StackValue returns the Datum at an absolute stack/heap address, for
// tests and for the driver to read final variable values after a run.
func (m *Machine) StackValue(addr int) datum.Datum { return m.data[addr] }

// Run executes instructions until HALT, an error Result, or an attempt to
// fetch past the end of the loaded code.
func (m *Machine) Run() Result {
	for {
		r := m.Step()
		if r != Success {
			return r
		}
	}
}

// Step executes exactly one instruction and returns Success to continue,
// Halted on HALT, or an error Result.
func (m *Machine) Step() Result {
	if m.pc < 0 || m.pc >= len(m.code) {
		return BadFetch
	}
	m.prevPc = m.pc
	m.ir = m.code[m.pc]
	m.pc++
	m.ncycles++

	if m.Trace {
		fmt.Fprintf(m.Out, "[%04d] %-22s sp=%d fp=%d\n", m.prevPc, m.ir.String(), m.sp, m.fp)
	}

	return m.dispatch(m.ir)
}

func (m *Machine) dispatch(in bytecode.Instr) Result {
	switch in.Op {
	case bytecode.HALT:
		return Halted

	case bytecode.NEG:
		return m.unary(func(x datum.Datum) (datum.Datum, Result) { return x.Neg(), Success })
	case bytecode.ABS:
		return m.unary(func(x datum.Datum) (datum.Datum, Result) {
			if x.IsInteger() {
				if x.Int64() < 0 {
					return x.Neg(), Success
				}
				return x, Success
			}
			return datum.Real(math.Abs(x.Float64())), Success
		})
	case bytecode.SQR:
		return m.unary(func(x datum.Datum) (datum.Datum, Result) { return x.Mul(x), Success })
	case bytecode.DUP:
		if m.sp < 1 {
			return StackUnderflow
		}
		return m.pushChecked(m.data[m.sp-1])

	case bytecode.ITOR:
		return m.itor()
	case bytecode.ITOR2:
		return m.itor2()
	case bytecode.ROUND:
		return m.realUnary(func(f float64) datum.Datum { return datum.Int(int64(math.Round(f))) })
	case bytecode.TRUNC:
		return m.realUnary(func(f float64) datum.Datum { return datum.Int(int64(math.Trunc(f))) })
	case bytecode.ATAN:
		return m.realUnary(func(f float64) datum.Datum { return datum.Real(math.Atan(f)) })
	case bytecode.EXP:
		return m.realUnary(func(f float64) datum.Datum { return datum.Real(math.Exp(f)) })
	case bytecode.LOG:
		return m.realUnary(func(f float64) datum.Datum { return datum.Real(math.Log(f)) })
	case bytecode.SIN:
		return m.realUnary(func(f float64) datum.Datum { return datum.Real(math.Sin(f)) })
	case bytecode.SQRT:
		return m.realUnary(func(f float64) datum.Datum { return datum.Real(math.Sqrt(f)) })

	case bytecode.ODD:
		return m.intUnary(func(n int64) datum.Datum { return boolDatum(n%2 != 0) })

	case bytecode.PRED:
		return m.predSucc(in.Addr.Ordinal(), -1, true)
	case bytecode.SUCC:
		return m.predSucc(in.Addr.Ordinal(), 1, false)

	case bytecode.WRITE:
		return m.write(false)
	case bytecode.WRITELN:
		return m.write(true)

	case bytecode.NEW:
		return m.new_()
	case bytecode.DISPOSE:
		return m.dispose()

	case bytecode.ADD:
		return m.binNumeric(func(l, r datum.Datum) datum.Datum { return l.Add(r) })
	case bytecode.SUB:
		return m.binNumeric(func(l, r datum.Datum) datum.Datum { return l.Sub(r) })
	case bytecode.MUL:
		return m.binNumeric(func(l, r datum.Datum) datum.Datum { return l.Mul(r) })
	case bytecode.DIV:
		return m.div()
	case bytecode.REM:
		return m.rem()

	case bytecode.LT:
		return m.compare(func(c int) bool { return c < 0 })
	case bytecode.LTE:
		return m.compare(func(c int) bool { return c <= 0 })
	case bytecode.EQU:
		return m.compare(func(c int) bool { return c == 0 })
	case bytecode.GTE:
		return m.compare(func(c int) bool { return c >= 0 })
	case bytecode.GT:
		return m.compare(func(c int) bool { return c > 0 })
	case bytecode.NEQU:
		return m.compare(func(c int) bool { return c != 0 })

	case bytecode.LOR:
		return m.boolBin(func(a, b bool) bool { return a || b })
	case bytecode.LAND:
		return m.boolBin(func(a, b bool) bool { return a && b })
	case bytecode.LNOT:
		return m.intUnary(func(n int64) datum.Datum { return boolDatum(n == 0) })

	case bytecode.POP:
		n := int(in.Addr.Ordinal())
		if m.sp < n {
			return StackUnderflow
		}
		m.sp -= n
		return Success

	case bytecode.PUSH:
		return m.pushChecked(in.Addr)

	case bytecode.PUSHVAR:
		return m.pushVar(int(in.Level), int(in.Addr.Ordinal()))

	case bytecode.EVAL:
		return m.eval(int(in.Addr.Ordinal()))

	case bytecode.ASSIGN:
		return m.assign(int(in.Addr.Ordinal()))

	case bytecode.COPY:
		return m.copyN(int(in.Addr.Ordinal()))

	case bytecode.CALL:
		return m.call(in.Level, int(in.Addr.Ordinal()))

	case bytecode.ENTER:
		return m.enter(int(in.Addr.Ordinal()))

	case bytecode.RET:
		return m.ret(int(in.Addr.Ordinal()))
	case bytecode.RETF:
		return m.retf(int(in.Addr.Ordinal()))

	case bytecode.JUMP:
		m.pc = int(in.Addr.Ordinal())
		return Success
	case bytecode.JNEQ:
		if m.sp < 1 {
			return StackUnderflow
		}
		m.sp--
		cond := m.data[m.sp]
		if cond.Ordinal() == 0 {
			m.pc = int(in.Addr.Ordinal())
		}
		return Success

	case bytecode.LLIMIT:
		if m.sp < 1 {
			return StackUnderflow
		}
		if m.data[m.sp-1].Ordinal() < in.Addr.Ordinal() {
			return OutOfRange
		}
		return Success
	case bytecode.ULIMIT:
		if m.sp < 1 {
			return StackUnderflow
		}
		if m.data[m.sp-1].Ordinal() > in.Addr.Ordinal() {
			return OutOfRange
		}
		return Success

	default:
		return UnknownInstr
	}
}

func boolDatum(b bool) datum.Datum {
	if b {
		return datum.Int(1)
	}
	return datum.Int(0)
}

// --- stack primitives -------------------------------------------------

func (m *Machine) pushChecked(d datum.Datum) Result {
	if m.sp >= m.stackSize {
		return StackOverflow
	}
	m.data[m.sp] = d
	m.sp++
	return Success
}

func (m *Machine) popChecked() (datum.Datum, Result) {
	if m.sp < 1 {
		return datum.Datum{}, StackUnderflow
	}
	m.sp--
	return m.data[m.sp], Success
}

func (m *Machine) rangeOK(addr, n int) bool {
	return addr >= 0 && n >= 0 && addr+n <= m.stackSize+m.heapSize
}

func (m *Machine) markMutation(addr int) {
	if m.OnMutate != nil {
		m.OnMutate(Mutation{PC: m.prevPc, Op: m.ir.Op, Addr: addr, Cycle: m.ncycles})
	}
}

// --- unary helpers ------------------------------------------------------

func (m *Machine) unary(f func(datum.Datum) (datum.Datum, Result)) Result {
	x, r := m.popChecked()
	if r != Success {
		return r
	}
	v, r := f(x)
	if r != Success {
		return r
	}
	return m.pushChecked(v)
}

func (m *Machine) realUnary(f func(float64) datum.Datum) Result {
	x, r := m.popChecked()
	if r != Success {
		return r
	}
	if !x.IsReal() {
		return BadDataType
	}
	return m.pushChecked(f(x.Float64()))
}

func (m *Machine) intUnary(f func(int64) datum.Datum) Result {
	x, r := m.popChecked()
	if r != Success {
		return r
	}
	if !x.IsInteger() {
		return BadDataType
	}
	return m.pushChecked(f(x.Int64()))
}

func (m *Machine) itor() Result {
	x, r := m.popChecked()
	if r != Success {
		return r
	}
	if !x.IsInteger() {
		return BadDataType
	}
	return m.pushChecked(datum.Real(x.AsFloat64()))
}

func (m *Machine) itor2() Result {
	rhs, r := m.popChecked()
	if r != Success {
		return r
	}
	lhs, r := m.popChecked()
	if r != Success {
		return r
	}
	if !lhs.IsInteger() {
		return BadDataType
	}
	if r := m.pushChecked(datum.Real(lhs.AsFloat64())); r != Success {
		return r
	}
	return m.pushChecked(rhs)
}

func (m *Machine) predSucc(limit int64, delta int64, isPred bool) Result {
	x, r := m.popChecked()
	if r != Success {
		return r
	}
	if !x.IsInteger() {
		return BadDataType
	}
	old := x.Int64()
	if isPred && old <= limit {
		return OutOfRange
	}
	if !isPred && old >= limit {
		return OutOfRange
	}
	return m.pushChecked(datum.Int(old + delta))
}

// --- binary helpers -------------------------------------------------------

func (m *Machine) binNumeric(f func(l, r datum.Datum) datum.Datum) Result {
	rhs, res := m.popChecked()
	if res != Success {
		return res
	}
	lhs, res := m.popChecked()
	if res != Success {
		return res
	}
	if lhs.Kind() != rhs.Kind() {
		return BadDataType
	}
	return m.pushChecked(f(lhs, rhs))
}

func (m *Machine) div() Result {
	rhs, res := m.popChecked()
	if res != Success {
		return res
	}
	lhs, res := m.popChecked()
	if res != Success {
		return res
	}
	if lhs.Kind() != rhs.Kind() {
		return BadDataType
	}
	if rhs.IsZero() {
		return DivideByZero
	}
	return m.pushChecked(lhs.Div(rhs))
}

func (m *Machine) rem() Result {
	rhs, res := m.popChecked()
	if res != Success {
		return res
	}
	lhs, res := m.popChecked()
	if res != Success {
		return res
	}
	if !lhs.IsInteger() || !rhs.IsInteger() {
		return BadDataType
	}
	if rhs.IsZero() {
		return DivideByZero
	}
	return m.pushChecked(lhs.Rem(rhs))
}

func (m *Machine) compare(keep func(int) bool) Result {
	rhs, res := m.popChecked()
	if res != Success {
		return res
	}
	lhs, res := m.popChecked()
	if res != Success {
		return res
	}
	if lhs.Kind() != rhs.Kind() {
		return BadDataType
	}
	return m.pushChecked(boolDatum(keep(lhs.Cmp(rhs))))
}

func (m *Machine) boolBin(f func(a, b bool) bool) Result {
	rhs, res := m.popChecked()
	if res != Success {
		return res
	}
	lhs, res := m.popChecked()
	if res != Success {
		return res
	}
	if !lhs.IsInteger() || !rhs.IsInteger() {
		return BadDataType
	}
	return m.pushChecked(boolDatum(f(lhs.Int64() != 0, rhs.Int64() != 0)))
}

// --- memory ---------------------------------------------------------------

func (m *Machine) base(lvl int) int {
	b := m.fp
	for i := 0; i < lvl; i++ {
		b = int(m.data[b+FrameBase].Int64())
	}
	return b
}

func (m *Machine) pushVar(lvl, off int) Result {
	addr := m.base(lvl) + off
	return m.pushChecked(datum.Int(int64(addr)))
}

func (m *Machine) eval(k int) Result {
	a, res := m.popChecked()
	if res != Success {
		return res
	}
	addr := int(a.Ordinal())
	if !m.rangeOK(addr, k) {
		return OutOfRange
	}
	for i := 0; i < k; i++ {
		if res := m.pushChecked(m.data[addr+i]); res != Success {
			return res
		}
	}
	return Success
}

func (m *Machine) assign(k int) Result {
	if m.sp < k+1 {
		return StackUnderflow
	}
	addrIdx := m.sp - k - 1
	addr := int(m.data[addrIdx].Ordinal())
	if !m.rangeOK(addr, k) {
		return OutOfRange
	}
	for i := 0; i < k; i++ {
		m.data[addr+i] = m.data[addrIdx+1+i]
	}
	m.markMutation(addr)
	m.sp = addrIdx
	return Success
}

func (m *Machine) copyN(k int) Result {
	dest, res := m.popChecked()
	if res != Success {
		return res
	}
	src, res := m.popChecked()
	if res != Success {
		return res
	}
	d, s := int(dest.Ordinal()), int(src.Ordinal())
	if !m.rangeOK(d, k) || !m.rangeOK(s, k) {
		return OutOfRange
	}
	copy(m.data[d:d+k], m.data[s:s+k])
	m.markMutation(d)
	return Success
}

// --- dynamic memory ---------------------------------------------------------

func (m *Machine) new_() Result {
	n, res := m.popChecked()
	if res != Success {
		return res
	}
	addr := m.heap.Alloc(int(n.Ordinal()))
	return m.pushChecked(datum.Int(int64(addr)))
}

func (m *Machine) dispose() Result {
	a, res := m.popChecked()
	if res != Success {
		return res
	}
	if !m.heap.Free(int(a.Ordinal())) {
		return FreeStoreError
	}
	return Success
}

// --- control transfer -------------------------------------------------------

func (m *Machine) call(level int8, entry int) Result {
	staticLink := m.base(int(level))
	frameStart := m.sp

	if res := m.pushChecked(datum.Int(int64(staticLink))); res != Success {
		return res
	}
	if res := m.pushChecked(datum.Int(int64(m.fp))); res != Success {
		return res
	}
	if res := m.pushChecked(datum.Int(int64(m.pc))); res != Success {
		return res
	}
	if res := m.pushChecked(datum.Int(0)); res != Success { // FrameRetVal, zeroed
		return res
	}

	m.fp = frameStart
	m.pc = entry
	return Success
}

func (m *Machine) enter(n int) Result {
	for i := 0; i < n; i++ {
		if res := m.pushChecked(datum.Int(0)); res != Success {
			return res
		}
	}
	return Success
}

func (m *Machine) ret(n int) Result {
	if m.fp+FrameRetAddr >= m.stackSize {
		return StackOverflow
	}
	retAddr := int(m.data[m.fp+FrameRetAddr].Int64())
	oldFp := int(m.data[m.fp+FrameOldFp].Int64())

	m.sp = m.fp // discard frame header + locals + evaluation residue
	if m.sp < n {
		return StackUnderflow
	}
	m.sp -= n // pop the n parameters the caller pushed
	m.fp = oldFp
	m.pc = retAddr
	return Success
}

func (m *Machine) retf(n int) Result {
	if m.fp+FrameRetVal >= m.stackSize {
		return StackOverflow
	}
	val := m.data[m.fp+FrameRetVal]
	retAddr := int(m.data[m.fp+FrameRetAddr].Int64())
	oldFp := int(m.data[m.fp+FrameOldFp].Int64())

	if m.fp < n {
		return StackUnderflow
	}
	m.sp = m.fp - n
	m.fp = oldFp
	m.pc = retAddr
	return m.pushChecked(val)
}

// --- I/O --------------------------------------------------------------------

// stringConstWidth is the sentinel width value marking a WRITE/WRITELN
// item whose val is a string-constant-pool index rather than a printable
// Datum. The compiler and machine agree on this convention since string
// literals have no runtime Datum representation of their own.
const stringConstWidth = -1

type writeItem struct {
	val   datum.Datum
	width int
	prec  int
}

func (m *Machine) write(newline bool) Result {
	nD, res := m.popChecked()
	if res != Success {
		return res
	}
	n := int(nD.Ordinal())
	if n < 0 {
		return OutOfRange
	}
	items := make([]writeItem, n)
	for i := n - 1; i >= 0; i-- {
		prec, res := m.popChecked()
		if res != Success {
			return res
		}
		width, res := m.popChecked()
		if res != Success {
			return res
		}
		val, res := m.popChecked()
		if res != Success {
			return res
		}
		items[i] = writeItem{val: val, width: int(width.Ordinal()), prec: int(prec.Ordinal())}
	}
	for _, it := range items {
		if it.width == stringConstWidth {
			idx := int(it.val.Ordinal())
			if idx < 0 || idx >= len(m.consts) {
				return OutOfRange
			}
			fmt.Fprint(m.Out, m.consts[idx])
			continue
		}
		fmt.Fprint(m.Out, formatDatum(it.val, it.width, it.prec))
	}
	if newline {
		fmt.Fprintln(m.Out)
	}
	return Success
}

func formatDatum(d datum.Datum, width, prec int) string {
	if d.IsReal() {
		p := prec
		if p == 0 {
			p = 6
		}
		s := fmt.Sprintf("%.*f", p, d.Float64())
		if width > 0 {
			return fmt.Sprintf("%*s", width, s)
		}
		return s
	}
	s := fmt.Sprintf("%d", d.Int64())
	if width > 0 {
		return fmt.Sprintf("%*s", width, s)
	}
	return s
}
