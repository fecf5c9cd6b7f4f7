package compiler

import (
	"math"

	"github.com/slowlysurly/p/datum"
	"github.com/slowlysurly/p/lexer"
	"github.com/slowlysurly/p/pkg/bytecode"
	"github.com/slowlysurly/p/symtab"
	"github.com/slowlysurly/p/types"
)

// parseExpression compiles "simpleExpr [relop simpleExpr]" and returns
// the resulting value's type (Boolean if a relational operator was
// present).
func (c *Compiler) parseExpression(level int) *types.Type {
	lt := c.parseSimpleExpr(level)
	op, isRel := c.relOp()
	if !isRel {
		return lt
	}
	c.advance()
	rt := c.parseSimpleExpr(level)
	c.promote(lt, rt)
	c.prog.Emit(bytecode.Simple(op))
	return types.BooleanType
}

func (c *Compiler) relOp() (bytecode.OpCode, bool) {
	switch c.cur.Kind {
	case lexer.Equal:
		return bytecode.EQU, true
	case lexer.NotEqual:
		return bytecode.NEQU, true
	case lexer.Less:
		return bytecode.LT, true
	case lexer.LessEq:
		return bytecode.LTE, true
	case lexer.Greater:
		return bytecode.GT, true
	case lexer.GreaterEq:
		return bytecode.GTE, true
	default:
		return 0, false
	}
}

// promote emits the explicit widening conversion required when one
// operand is Integer and the other Real; mismatches between any other
// pair of kinds are a compile error. Integer-vs-integer or real-vs-real
// need no conversion.
func (c *Compiler) promote(lt, rt *types.Type) {
	if lt == nil || rt == nil || lt.Kind() == rt.Kind() {
		return
	}
	switch {
	case lt.Kind() == types.Real && rt.Kind() == types.Integer:
		c.prog.Emit(bytecode.Simple(bytecode.ITOR)) // promote top (rhs)
	case lt.Kind() == types.Integer && rt.Kind() == types.Real:
		c.prog.Emit(bytecode.Simple(bytecode.ITOR2)) // promote second-from-top (lhs)
	default:
		c.errorf(c.cur.Line, "incompatible binary types %s and %s", lt, rt)
	}
}

func (c *Compiler) parseSimpleExpr(level int) *types.Type {
	neg := false
	if c.at(lexer.Plus) {
		c.advance()
	} else if c.at(lexer.Minus) {
		neg = true
		c.advance()
	}
	t := c.parseTerm(level)
	if neg {
		c.prog.Emit(bytecode.Simple(bytecode.NEG))
	}
	for {
		switch {
		case c.at(lexer.Plus):
			c.advance()
			rt := c.parseTerm(level)
			c.promote(t, rt)
			c.prog.Emit(bytecode.Simple(bytecode.ADD))
			t = widened(t, rt)
		case c.at(lexer.Minus):
			c.advance()
			rt := c.parseTerm(level)
			c.promote(t, rt)
			c.prog.Emit(bytecode.Simple(bytecode.SUB))
			t = widened(t, rt)
		case c.at(lexer.KwOr):
			c.advance()
			c.parseTerm(level)
			c.prog.Emit(bytecode.Simple(bytecode.LOR))
			t = types.BooleanType
		default:
			return t
		}
	}
}

func widened(a, b *types.Type) *types.Type {
	if a != nil && a.Kind() == types.Real {
		return a
	}
	if b != nil && b.Kind() == types.Real {
		return b
	}
	return a
}

func (c *Compiler) parseTerm(level int) *types.Type {
	t := c.parseFactor(level)
	for {
		switch {
		case c.at(lexer.Star):
			c.advance()
			rt := c.parseFactor(level)
			c.promote(t, rt)
			c.prog.Emit(bytecode.Simple(bytecode.MUL))
			t = widened(t, rt)
		case c.at(lexer.Slash):
			c.advance()
			rt := c.parseFactor(level)
			c.promote(t, rt)
			c.prog.Emit(bytecode.Simple(bytecode.DIV))
			t = widened(t, rt)
		case c.at(lexer.KwDiv):
			c.advance()
			c.parseFactor(level)
			c.prog.Emit(bytecode.Simple(bytecode.DIV))
		case c.at(lexer.KwMod):
			c.advance()
			c.parseFactor(level)
			c.prog.Emit(bytecode.Simple(bytecode.REM))
		case c.at(lexer.KwAnd):
			c.advance()
			c.parseFactor(level)
			c.prog.Emit(bytecode.Simple(bytecode.LAND))
			t = types.BooleanType
		default:
			return t
		}
	}
}

func (c *Compiler) parseFactor(level int) *types.Type {
	switch {
	case c.at(lexer.IntLit):
		v := c.cur.IntVal
		c.advance()
		c.prog.Emit(bytecode.WithAddr(bytecode.PUSH, v))
		return types.IntegerType

	case c.at(lexer.RealLit):
		v := c.cur.RealVal
		c.advance()
		in := bytecode.Simple(bytecode.PUSH)
		in.Addr = datum.Real(v)
		c.prog.Emit(in)
		return types.RealType

	case c.at(lexer.KwTrue):
		c.advance()
		c.prog.Emit(bytecode.WithAddr(bytecode.PUSH, 1))
		return types.BooleanType

	case c.at(lexer.KwFalse):
		c.advance()
		c.prog.Emit(bytecode.WithAddr(bytecode.PUSH, 0))
		return types.BooleanType

	case c.at(lexer.StringLit) && len(c.cur.Text) == 1:
		r := []rune(c.cur.Text)[0]
		c.advance()
		c.prog.Emit(bytecode.WithAddr(bytecode.PUSH, int64(r)))
		return types.CharacterType

	case c.at(lexer.StringLit) && len([]rune(c.cur.Text)) > 1:
		// A longer string pushes each character in order, typed as an
		// array of char indexed 0..n-1.
		rs := []rune(c.cur.Text)
		c.advance()
		for _, r := range rs {
			c.prog.Emit(bytecode.WithAddr(bytecode.PUSH, int64(r)))
		}
		return types.NewArray(types.NewSubRange(types.IntegerType, 0, int64(len(rs)-1)), types.CharacterType)

	case c.at(lexer.KwNot):
		c.advance()
		c.parseFactor(level)
		c.prog.Emit(bytecode.Simple(bytecode.LNOT))
		return types.BooleanType

	case c.at(lexer.LParen):
		c.advance()
		t := c.parseExpression(level)
		c.expect(lexer.RParen, "')' closing parenthesized expression")
		return t

	case c.at(lexer.Ident):
		return c.parseIdentFactor(level)

	default:
		c.errorf(c.cur.Line, "expected an expression, found %s", c.cur)
		c.advance()
		return types.IntegerType
	}
}

func (c *Compiler) parseIdentFactor(level int) *types.Type {
	name := c.cur.Text
	if t, ok := builtinFuncs[name]; ok {
		c.advance()
		return c.compileBuiltin(level, name, t)
	}

	sv, ok := c.syms.Lookup(name, level)
	if !ok {
		c.errorf(c.cur.Line, "undeclared identifier %q", name)
		c.advance()
		return types.IntegerType
	}

	switch sv.Kind {
	case symtab.Constant:
		c.advance()
		t, _ := sv.Type.(*types.Type)
		in := bytecode.Simple(bytecode.PUSH)
		if t != nil && t.Kind() == types.Real {
			in.Addr = datum.Real(math.Float64frombits(uint64(sv.Value)))
		} else {
			in.Addr = datum.Int(sv.Value)
		}
		c.prog.Emit(in)
		return t

	case symtab.Function:
		c.advance()
		return c.compileCall(level, sv)

	case symtab.Variable:
		t := c.compileDesignatorAddress(level, name)
		size := 1
		if t != nil {
			size = t.Size()
		}
		c.prog.Emit(bytecode.WithAddr(bytecode.EVAL, int64(size)))
		return t

	default:
		c.errorf(c.cur.Line, "%q cannot be used in an expression", name)
		c.advance()
		return types.IntegerType
	}
}

// compileDesignatorAddress compiles "name {'[' expr ']' | '.' ident |
// '^'}" leaving the final target's address on the stack, and returns its
// resolved type. The caller decides whether to EVAL (read) or ASSIGN
// (write) that address.
func (c *Compiler) compileDesignatorAddress(level int, name string) *types.Type {
	sv, ok := c.syms.Lookup(name, level)
	c.advance()
	if !ok || sv.Kind != symtab.Variable {
		c.errorf(c.cur.Line, "%q is not a variable", name)
		return types.IntegerType
	}
	levelDiff := level - sv.Level
	c.prog.Emit(bytecode.NewInstr(bytecode.PUSHVAR, int8(levelDiff), datum.Int(sv.Value)))
	t, _ := sv.Type.(*types.Type)

	for {
		switch {
		case c.at(lexer.LBracket):
			c.advance()
			// A single "[...]" carries one index per array dimension,
			// separated by commas -- walk down Base one dimension at a
			// time, in declaration order, same as a chain of single-index
			// "[i][j]" accesses would.
			for {
				if t == nil || t.Kind() != types.Array {
					c.errorf(c.cur.Line, "%q is not an array", name)
				}
				c.parseExpression(level)
				if t != nil && t.Kind() == types.Array {
					b := t.Index.Bounds()
					c.prog.Emit(bytecode.WithAddr(bytecode.LLIMIT, b.Min))
					c.prog.Emit(bytecode.WithAddr(bytecode.ULIMIT, b.Max))
					c.prog.Emit(bytecode.WithAddr(bytecode.PUSH, int64(t.Base.Size())))
					c.prog.Emit(bytecode.Simple(bytecode.MUL))
					c.prog.Emit(bytecode.WithAddr(bytecode.PUSH, b.Min))
					c.prog.Emit(bytecode.Simple(bytecode.SUB))
					c.prog.Emit(bytecode.Simple(bytecode.ADD))
					t = t.Base
				}
				if !c.accept(lexer.Comma) {
					break
				}
			}
			c.expect(lexer.RBracket, "']' closing array index")

		case c.at(lexer.Period):
			c.advance()
			fname := c.expect(lexer.Ident, "a field name").Text
			if t == nil || t.Kind() != types.Record {
				c.errorf(c.cur.Line, "%q is not a record", name)
				continue
			}
			off, ft, ok := t.FieldOffset(fname)
			if !ok {
				c.errorf(c.cur.Line, "no field %q", fname)
				continue
			}
			if off != 0 {
				c.prog.Emit(bytecode.WithAddr(bytecode.PUSH, int64(off)))
				c.prog.Emit(bytecode.Simple(bytecode.ADD))
			}
			t = ft

		case c.at(lexer.Caret):
			c.advance()
			if t == nil || t.Kind() != types.Pointer {
				c.errorf(c.cur.Line, "%q is not a pointer", name)
				continue
			}
			c.prog.Emit(bytecode.WithAddr(bytecode.EVAL, 1))
			t = t.Base

		default:
			return t
		}
	}
}
