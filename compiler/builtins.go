package compiler

import (
	"math"

	"github.com/slowlysurly/p/lexer"
	"github.com/slowlysurly/p/pkg/bytecode"
	"github.com/slowlysurly/p/types"
)

// builtinKind classifies how a predeclared function's argument and
// result types relate.
type builtinKind int

const (
	realToInt  builtinKind = iota // round, trunc: real -> integer
	realToReal                    // sin, sqrt, exp, log, atan: real -> real
	sameType                      // abs, sqr: preserves the argument's type
	intToBool                     // odd: integer -> boolean
	ordToOrd                      // pred, succ: ordinal -> same ordinal, range-checked
	ordToInt                      // ord: ordinal -> integer, no-op at runtime
)

var builtinFuncs = map[string]builtinKind{
	"round": realToInt, "trunc": realToInt,
	"sin": realToReal, "sqrt": realToReal, "exp": realToReal, "log": realToReal, "atan": realToReal,
	"abs": sameType, "sqr": sameType,
	"odd": intToBool,
	"pred": ordToOrd, "succ": ordToOrd,
	"ord": ordToInt,
}

// compileBuiltin compiles a call to one of the predeclared functions
// above: "name(arg)".
func (c *Compiler) compileBuiltin(level int, name string, kind builtinKind) *types.Type {
	c.expect(lexer.LParen, "'(' after "+name)
	argType := c.parseExpression(level)
	c.expect(lexer.RParen, "')' closing "+name+" argument")

	switch kind {
	case realToInt:
		if argType != nil && argType.Kind() != types.Real {
			c.errorf(c.cur.Line, "%s expects a real argument", name)
		}
		if name == "round" {
			c.prog.Emit(bytecode.Simple(bytecode.ROUND))
		} else {
			c.prog.Emit(bytecode.Simple(bytecode.TRUNC))
		}
		return types.IntegerType

	case realToReal:
		if argType != nil && argType.Kind() != types.Real {
			c.errorf(c.cur.Line, "%s expects a real argument", name)
		}
		c.prog.Emit(bytecode.Simple(builtinOp[name]))
		return types.RealType

	case sameType:
		c.prog.Emit(bytecode.Simple(builtinOp[name]))
		return argType

	case intToBool:
		if argType != nil && argType.Kind() != types.Integer {
			c.errorf(c.cur.Line, "odd expects an integer argument")
		}
		c.prog.Emit(bytecode.Simple(bytecode.ODD))
		return types.BooleanType

	case ordToOrd:
		if argType == nil || !argType.IsOrdinal() {
			c.errorf(c.cur.Line, "%s expects an ordinal argument", name)
			return types.IntegerType
		}
		// Plain Integer's Bounds() is the meaningless {0,0} (see its doc
		// comment) -- only subranges/enumerations/booleans/characters have
		// a real ordinal range to clip against.
		lo, hi := int64(math.MinInt64), int64(math.MaxInt64)
		if argType.Kind() != types.Integer {
			b := argType.Bounds()
			lo, hi = b.Min, b.Max
		}
		if name == "pred" {
			c.prog.Emit(bytecode.WithAddr(bytecode.PRED, lo))
		} else {
			c.prog.Emit(bytecode.WithAddr(bytecode.SUCC, hi))
		}
		return argType

	case ordToInt:
		if argType == nil || !argType.IsOrdinal() {
			c.errorf(c.cur.Line, "ord expects an ordinal argument")
		}
		return types.IntegerType

	default:
		return types.IntegerType
	}
}

var builtinOp = map[string]bytecode.OpCode{
	"sin": bytecode.SIN, "sqrt": bytecode.SQRT, "exp": bytecode.EXP,
	"log": bytecode.LOG, "atan": bytecode.ATAN, "abs": bytecode.ABS, "sqr": bytecode.SQR,
}
