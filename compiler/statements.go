package compiler

import (
	"math"

	"github.com/slowlysurly/p/datum"
	"github.com/slowlysurly/p/lexer"
	"github.com/slowlysurly/p/machine"
	"github.com/slowlysurly/p/pkg/bytecode"
	"github.com/slowlysurly/p/symtab"
	"github.com/slowlysurly/p/types"
)

func (c *Compiler) parseCompoundStatement(level int) {
	c.expect(lexer.KwBegin, "'begin'")
	c.parseStatement(level)
	for c.accept(lexer.Semicolon) {
		c.parseStatement(level)
	}
	c.expect(lexer.KwEnd, "'end'")
}

func (c *Compiler) parseStatement(level int) {
	switch {
	case c.at(lexer.KwBegin):
		c.parseCompoundStatement(level)

	case c.at(lexer.KwIf):
		c.parseIfStatement(level)

	case c.at(lexer.KwWhile):
		c.parseWhileStatement(level)

	case c.at(lexer.KwRepeat):
		c.parseRepeatStatement(level)

	case c.at(lexer.KwFor):
		c.parseForStatement(level)

	case c.at(lexer.Ident):
		c.parseIdentStatement(level)

	default:
		// empty statement
	}
}

func (c *Compiler) parseIdentStatement(level int) {
	name := c.cur.Text
	switch name {
	case "write", "Write", "WRITE":
		c.advance()
		c.parseWriteArgs(level, false)
		return
	case "writeln", "Writeln", "WriteLn", "WRITELN":
		c.advance()
		c.parseWriteArgs(level, true)
		return
	}

	sv, ok := c.syms.Lookup(name, level)
	if !ok {
		c.errorf(c.cur.Line, "undeclared identifier %q", name)
		c.advance()
		return
	}

	switch sv.Kind {
	case symtab.Procedure:
		c.advance()
		c.compileCall(level, sv)
	case symtab.Function:
		c.advance()
		if c.at(lexer.Assign) {
			c.compileFunctionResultAssignment(level, sv)
		} else {
			c.compileCall(level, sv)
			c.prog.Emit(bytecode.WithAddr(bytecode.POP, 1))
		}
	case symtab.Variable:
		c.compileAssignment(level, name)
	default:
		c.errorf(c.cur.Line, "%q cannot be used as a statement", name)
		c.advance()
	}
}

// compileFunctionResultAssignment compiles "<funcname> := <expr>" inside a
// function's own body -- the idiom for setting its return value -- by
// writing directly into the current frame's reserved FrameRetVal slot
// rather than treating the name as a call.
func (c *Compiler) compileFunctionResultAssignment(level int, sv symtab.SymValue) {
	c.advance() // ':='
	c.prog.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(int64(machine.FrameRetVal))))
	rt, _ := sv.Type.(*types.Type)
	et := c.parseExpression(level)

	if rt != nil && et != nil && rt.Kind() != et.Kind() {
		if rt.Kind() == types.Real && et.Kind() == types.Integer {
			c.prog.Emit(bytecode.Simple(bytecode.ITOR))
		} else if !(rt.IsOrdinal() && et.Kind() == types.Integer) {
			c.errorf(c.cur.Line, "cannot assign %s to %s", et, rt)
		}
	}

	if hasBoundedRange(rt) {
		b := rt.Bounds()
		c.prog.Emit(bytecode.WithAddr(bytecode.LLIMIT, b.Min))
		c.prog.Emit(bytecode.WithAddr(bytecode.ULIMIT, b.Max))
	}

	size := 1
	if rt != nil {
		size = rt.Size()
	}
	c.prog.Emit(bytecode.WithAddr(bytecode.ASSIGN, int64(size)))
}

// hasBoundedRange reports whether t's Bounds() are a real, checkable
// range rather than plain Integer's meaningless {0,0} (see
// (*types.Type).Bounds's doc comment) -- SubRange, Enumeration, Boolean
// and Character all carry a genuine range to enforce on assignment.
func hasBoundedRange(t *types.Type) bool {
	return t != nil && t.IsOrdinal() && t.Kind() != types.Integer
}

// compileAssignment compiles "<designator> := <expr>", including the
// subrange range-checks and numeric promotion the designator's resolved
// type requires.
func (c *Compiler) compileAssignment(level int, name string) {
	dt := c.compileDesignatorAddress(level, name)
	c.expect(lexer.Assign, "':=' in assignment")
	et := c.parseExpression(level)

	if dt != nil && et != nil && dt.Kind() != et.Kind() {
		if dt.Kind() == types.Real && et.Kind() == types.Integer {
			c.prog.Emit(bytecode.Simple(bytecode.ITOR))
		} else if dt.IsOrdinal() && et.Kind() == types.Integer {
			// ordinal target, bare integer source: no conversion needed,
			// range is checked below
		} else {
			c.errorf(c.cur.Line, "cannot assign %s to %s", et, dt)
		}
	}

	if hasBoundedRange(dt) {
		b := dt.Bounds()
		c.prog.Emit(bytecode.WithAddr(bytecode.LLIMIT, b.Min))
		c.prog.Emit(bytecode.WithAddr(bytecode.ULIMIT, b.Max))
	}

	size := 1
	if dt != nil {
		size = dt.Size()
	}
	c.prog.Emit(bytecode.WithAddr(bytecode.ASSIGN, int64(size)))
}

// compileCall pushes actual parameters (by value, in source order) and
// emits the CALL; it returns the callee's declared result type (nil for
// a procedure).
func (c *Compiler) compileCall(level int, sv symtab.SymValue) *types.Type {
	var args []*types.Type
	if c.accept(lexer.LParen) {
		if !c.at(lexer.RParen) {
			args = append(args, c.parseExpression(level))
			for c.accept(lexer.Comma) {
				args = append(args, c.parseExpression(level))
			}
		}
		c.expect(lexer.RParen, "')' closing argument list")
	}
	if len(args) != len(sv.Params) {
		c.errorf(c.cur.Line, "%q expects %d argument(s), got %d", sv.Name, len(sv.Params), len(args))
	}
	levelDiff := level - sv.Level
	c.prog.Emit(bytecode.NewInstr(bytecode.CALL, int8(levelDiff), datum.Int(sv.Value)))
	if sv.Kind == symtab.Function {
		if t, ok := sv.Type.(*types.Type); ok {
			return t
		}
	}
	return nil
}

func (c *Compiler) parseWriteArgs(level int, newline bool) {
	n := 0
	if c.accept(lexer.LParen) {
		if !c.at(lexer.RParen) {
			n += c.parseWriteArg(level)
			for c.accept(lexer.Comma) {
				n += c.parseWriteArg(level)
			}
		}
		c.expect(lexer.RParen, "')' closing write argument list")
	}
	c.prog.Emit(bytecode.WithAddr(bytecode.PUSH, int64(n)))
	if newline {
		c.prog.Emit(bytecode.Simple(bytecode.WRITELN))
	} else {
		c.prog.Emit(bytecode.Simple(bytecode.WRITE))
	}
}

// parseWriteArg compiles one write-list element (value[:width[:prec]]) as
// a (value, width, prec) triple and returns 1 (the item count it
// contributed), per the stack convention WRITE/WRITELN read back.
func (c *Compiler) parseWriteArg(level int) int {
	if c.at(lexer.StringLit) {
		idx := c.prog.AddConst(c.cur.Text)
		c.advance()
		c.prog.Emit(bytecode.WithAddr(bytecode.PUSH, int64(idx)))
		c.prog.Emit(bytecode.WithAddr(bytecode.PUSH, -1)) // stringConstWidth sentinel
		c.prog.Emit(bytecode.WithAddr(bytecode.PUSH, 0))
		return 1
	}

	c.parseExpression(level)
	width, prec := int64(0), int64(0)
	if c.accept(lexer.Colon) {
		width = c.parseIntConstExpr()
		if c.accept(lexer.Colon) {
			prec = c.parseIntConstExpr()
		}
	}
	c.prog.Emit(bytecode.WithAddr(bytecode.PUSH, width))
	c.prog.Emit(bytecode.WithAddr(bytecode.PUSH, prec))
	return 1
}

func (c *Compiler) parseIfStatement(level int) {
	c.expect(lexer.KwIf, "'if'")
	c.parseExpression(level)
	c.expect(lexer.KwThen, "'then'")
	jneq := c.prog.Emit(bytecode.WithAddr(bytecode.JNEQ, 0))
	c.parseStatement(level)
	if c.accept(lexer.KwElse) {
		jump := c.prog.Emit(bytecode.WithAddr(bytecode.JUMP, 0))
		c.prog.Patch(jneq, int64(c.prog.PC()))
		c.parseStatement(level)
		c.prog.Patch(jump, int64(c.prog.PC()))
	} else {
		c.prog.Patch(jneq, int64(c.prog.PC()))
	}
}

func (c *Compiler) parseWhileStatement(level int) {
	c.expect(lexer.KwWhile, "'while'")
	top := c.prog.PC()
	c.parseExpression(level)
	c.expect(lexer.KwDo, "'do'")
	jneq := c.prog.Emit(bytecode.WithAddr(bytecode.JNEQ, 0))
	c.parseStatement(level)
	c.prog.Emit(bytecode.WithAddr(bytecode.JUMP, int64(top)))
	c.prog.Patch(jneq, int64(c.prog.PC()))
}

func (c *Compiler) parseRepeatStatement(level int) {
	c.expect(lexer.KwRepeat, "'repeat'")
	top := c.prog.PC()
	c.parseStatement(level)
	for c.accept(lexer.Semicolon) {
		c.parseStatement(level)
	}
	c.expect(lexer.KwUntil, "'until'")
	c.parseExpression(level)
	c.prog.Emit(bytecode.WithAddr(bytecode.JNEQ, int64(top)))
}

// parseForStatement compiles "for v := e1 to|downto e2 do stmt". The
// upper/lower bound e2 is evaluated once, into a compiler-reserved stack
// temp (c.tempOff) that outlives the loop body, so it isn't re-evaluated
// (and any side effects it might have aren't repeated) on every
// iteration.
func (c *Compiler) parseForStatement(level int) {
	c.expect(lexer.KwFor, "'for'")
	name := c.expect(lexer.Ident, "loop variable").Text
	sv, ok := c.syms.Lookup(name, level)
	if !ok || sv.Kind != symtab.Variable {
		c.errorf(c.cur.Line, "%q is not a variable", name)
	}
	levelDiff := level - sv.Level

	c.expect(lexer.Assign, "':=' in for statement")
	c.prog.Emit(bytecode.NewInstr(bytecode.PUSHVAR, int8(levelDiff), datum.Int(sv.Value)))
	c.parseExpression(level)
	c.prog.Emit(bytecode.WithAddr(bytecode.ASSIGN, 1))

	downto := c.at(lexer.KwDownto)
	if downto {
		c.advance()
	} else {
		c.expect(lexer.KwTo, "'to' or 'downto'")
	}

	// At statement level the evaluation stack is empty, so the bound's
	// value, left pushed, sits exactly at frame offset boundAddr until the
	// POP after the loop.
	boundAddr := c.tempOff
	c.tempOff++
	c.parseExpression(level)

	top := c.prog.PC()
	c.prog.Emit(bytecode.NewInstr(bytecode.PUSHVAR, int8(levelDiff), datum.Int(sv.Value)))
	c.prog.Emit(bytecode.WithAddr(bytecode.EVAL, 1))
	c.prog.Emit(bytecode.NewInstr(bytecode.PUSHVAR, 0, datum.Int(int64(boundAddr))))
	c.prog.Emit(bytecode.WithAddr(bytecode.EVAL, 1))
	if downto {
		c.prog.Emit(bytecode.Simple(bytecode.GTE))
	} else {
		c.prog.Emit(bytecode.Simple(bytecode.LTE))
	}
	jneq := c.prog.Emit(bytecode.WithAddr(bytecode.JNEQ, 0))

	c.expect(lexer.KwDo, "'do'")
	c.parseStatement(level)

	c.prog.Emit(bytecode.NewInstr(bytecode.PUSHVAR, int8(levelDiff), datum.Int(sv.Value)))
	c.prog.Emit(bytecode.NewInstr(bytecode.PUSHVAR, int8(levelDiff), datum.Int(sv.Value)))
	c.prog.Emit(bytecode.WithAddr(bytecode.EVAL, 1))
	// The loop variable is plain Integer here, not a subrange, so its
	// PRED/SUCC limit is deliberately unbounded -- IntegerType.Bounds()
	// returns the meaningless {0,0} (see its doc comment), which would
	// wrongly clip the loop to non-positive values.
	if downto {
		c.prog.Emit(bytecode.WithAddr(bytecode.PRED, math.MinInt64))
	} else {
		c.prog.Emit(bytecode.WithAddr(bytecode.SUCC, math.MaxInt64))
	}
	c.prog.Emit(bytecode.WithAddr(bytecode.ASSIGN, 1))
	c.prog.Emit(bytecode.WithAddr(bytecode.JUMP, int64(top)))
	c.prog.Patch(jneq, int64(c.prog.PC()))
	c.prog.Emit(bytecode.WithAddr(bytecode.POP, 1)) // discard the bound

	c.tempOff = boundAddr
}
