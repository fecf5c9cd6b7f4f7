// Package compiler implements a single-pass recursive-descent compiler
// for P: it walks source text exactly once, emitting bytecode as it
// recognizes each construct rather than building an intermediate AST,
// in the tradition of the PL/0 family of compilers this language
// descends from.
//
// Uses accept/expect token helpers and an accumulated-never-fatal error
// list, emitting directly to the stack machine's instruction stream
// rather than building message-send codegen for an object VM.
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

// Compiler holds all state for a single compilation run: the token
// stream, the program being built, the symbol table, and the
// accumulated diagnostics. A Compiler is single-use; call Compile once.
type Compiler struct {
	ts   *lexer.TokenStream
	cur  lexer.Token
	prog *bytecode.Program
	syms *symtab.Table

	// tempOff is the frame offset of the next unused Datum slot above the
	// current block's locals, for compiler-generated temporaries (the for
	// statement's evaluated loop-bound) that must outlive a single
	// expression but don't belong to any declared variable.
	tempOff int

	diags []Diagnostic

	// progName is the identifier declared in the source's "program"
	// header, or "" if the header was omitted. Used to prefix diagnostics.
	progName string
}

// New creates a compiler for the given source text.
func New(src string) *Compiler {
	c := &Compiler{
		ts:   lexer.NewTokenStream(src),
		prog: bytecode.NewProgram(),
		syms: symtab.New(),
	}
	c.advance()
	return c
}

// Diagnostics returns every accumulated compile-time error, in the order
// encountered.
func (c *Compiler) Diagnostics() []Diagnostic { return c.diags }

// ProgramName returns the identifier declared in the source's "program"
// header, or "" if the header was omitted.
func (c *Compiler) ProgramName() string { return c.progName }

// Program returns the compiled program. Only meaningful if Diagnostics
// is empty; a program compiled with errors may still be syntactically
// complete bytecode but its semantics are not guaranteed.
func (c *Compiler) Program() *bytecode.Program { return c.prog }

// Compile parses and compiles a complete program: an optional "program"
// header, a level-0 block, and a terminating period.
func (c *Compiler) Compile() *bytecode.Program {
	if c.at(lexer.KwProgram) {
		c.advance()
		c.progName = c.expect(lexer.Ident, "program name").Text
		c.expect(lexer.Semicolon, "';' after program name")
	}
	entry, _ := c.parseBlock(0, 0)
	c.prog.PatchEntry(entry)
	c.expect(lexer.Period, "'.' terminating the program")
	return c.prog
}

// --- token plumbing -----------------------------------------------------

func (c *Compiler) advance() {
	c.cur = c.ts.Next()
}

func (c *Compiler) at(k lexer.Kind) bool { return c.cur.Kind == k }

func (c *Compiler) accept(k lexer.Kind) bool {
	if c.cur.Kind == k {
		c.advance()
		return true
	}
	return false
}

func (c *Compiler) expect(k lexer.Kind, what string) lexer.Token {
	t := c.cur
	if c.cur.Kind != k {
		c.errorf(c.cur.Line, "expected %s, found %s", what, c.cur)
		return t
	}
	c.advance()
	return t
}

// --- blocks and declarations ---------------------------------------------

// parseBlock compiles one lexical block -- the declarations (const, type,
// var, procedure/function) followed by the block's own compound
// statement -- and returns the code address at which execution of this
// block begins (after every nested procedure/function body has already
// been emitted) along with the number of local Datum slots it reserves.
func (c *Compiler) parseBlock(level int, paramCount int) (entryPC, nLocals int) {
	localOff := machine.FrameSize

	if c.accept(lexer.KwConst) {
		c.parseConstDecls(level)
	}
	if c.accept(lexer.KwType) {
		c.parseTypeDecls(level)
	}
	if c.accept(lexer.KwVar) {
		localOff = c.parseVarDecls(level, localOff)
	}

	for c.at(lexer.KwProcedure) || c.at(lexer.KwFunction) {
		c.parseSubroutineDecl(level)
	}

	entryPC = c.prog.PC()
	nLocals = localOff - machine.FrameSize
	if nLocals > 0 {
		c.prog.Emit(bytecode.NewInstr(bytecode.ENTER, 0, datum.Int(int64(nLocals))))
	}
	c.tempOff = machine.FrameSize + nLocals

	c.parseCompoundStatement(level)

	if level == 0 {
		c.prog.Emit(bytecode.WithAddr(bytecode.RET, int64(paramCount)))
	}

	c.syms.Purge(level)
	return entryPC, nLocals
}

func (c *Compiler) parseConstDecls(level int) {
	for {
		name := c.expect(lexer.Ident, "constant name").Text
		c.expect(lexer.Equal, "'=' in constant declaration")
		val, typ := c.parseConstLiteral()
		if err := c.syms.Insert(name, symtab.SymValue{Kind: symtab.Constant, Level: level, Value: val, Type: typ}); err != nil {
			c.errorf(c.cur.Line, "%v", err)
		}
		c.expect(lexer.Semicolon, "';' after constant declaration")
		if !c.at(lexer.Ident) {
			break
		}
	}
}

// parseConstLiteral parses a (possibly negated) numeric, boolean, or
// character literal and returns its bit-packed Value plus its type.
func (c *Compiler) parseConstLiteral() (int64, *types.Type) {
	neg := c.accept(lexer.Minus)
	switch {
	case c.at(lexer.IntLit):
		n := c.cur.IntVal
		c.advance()
		if neg {
			n = -n
		}
		return n, types.IntegerType
	case c.at(lexer.RealLit):
		f := c.cur.RealVal
		c.advance()
		if neg {
			f = -f
		}
		return int64(math.Float64bits(f)), types.RealType
	case c.at(lexer.KwTrue):
		c.advance()
		return 1, types.BooleanType
	case c.at(lexer.KwFalse):
		c.advance()
		return 0, types.BooleanType
	case c.at(lexer.StringLit) && len(c.cur.Text) == 1:
		r := []rune(c.cur.Text)[0]
		c.advance()
		return int64(r), types.CharacterType
	default:
		c.errorf(c.cur.Line, "expected a constant literal, found %s", c.cur)
		c.advance()
		return 0, types.IntegerType
	}
}

func (c *Compiler) parseTypeDecls(level int) {
	for c.at(lexer.Ident) {
		name := c.cur.Text
		c.advance()
		c.expect(lexer.Equal, "'=' in type declaration")
		t := c.parseTypeSpec(level)
		if err := c.syms.Insert(name, symtab.SymValue{Kind: symtab.TypeName, Level: level, Type: t}); err != nil {
			c.errorf(c.cur.Line, "%v", err)
		}
		c.expect(lexer.Semicolon, "';' after type declaration")
	}
}

// parseTypeSpec parses a type denoter: a named type, array, record,
// enumeration, subrange, or pointer.
func (c *Compiler) parseTypeSpec(level int) *types.Type {
	switch {
	case c.at(lexer.KwArray):
		c.advance()
		c.expect(lexer.LBracket, "'[' after array")
		dims := c.parseArrayIndexList()
		c.expect(lexer.RBracket, "']' closing array index")
		c.expect(lexer.KwOf, "'of' after array index range")
		elem := c.parseTypeSpec(level)
		t := elem
		for i := len(dims) - 1; i >= 0; i-- {
			t = types.NewArray(dims[i], t)
		}
		return t

	case c.at(lexer.KwRecord):
		c.advance()
		var fields []types.Field
		for !c.at(lexer.KwEnd) && !c.at(lexer.EOF) {
			names := c.parseIdentList()
			c.expect(lexer.Colon, "':' in record field declaration")
			ft := c.parseTypeSpec(level)
			for _, n := range names {
				fields = append(fields, types.Field{Name: n, Type: ft})
			}
			if !c.accept(lexer.Semicolon) {
				break
			}
		}
		c.expect(lexer.KwEnd, "'end' closing record")
		return types.NewRecord(fields)

	case c.at(lexer.Caret):
		c.advance()
		placeholder := types.NewPointerPlaceholder()
		base := c.parseTypeSpec(level)
		placeholder.SetBase(base)
		return placeholder

	case c.at(lexer.LParen):
		c.advance()
		names := c.parseIdentList()
		c.expect(lexer.RParen, "')' closing enumeration")
		t := types.NewEnumeration(names)
		for i, n := range names {
			c.syms.Insert(n, symtab.SymValue{Kind: symtab.Constant, Level: level, Value: int64(i), Type: types.IntegerType})
		}
		return t

	case c.at(lexer.Ident):
		name := c.cur.Text
		c.advance()
		if c.at(lexer.DotDot) {
			lo, ok := c.constIntByName(name)
			if !ok {
				lo = 0
			}
			c.advance()
			hi := c.parseIntConstExpr()
			return types.NewSubRange(types.IntegerType, lo, hi)
		}
		return c.resolveNamedType(name, level)

	case c.at(lexer.IntLit):
		lo := c.parseIntConstExpr()
		c.expect(lexer.DotDot, "'..' in subrange type")
		hi := c.parseIntConstExpr()
		return types.NewSubRange(types.IntegerType, lo, hi)

	default:
		c.errorf(c.cur.Line, "expected a type, found %s", c.cur)
		c.advance()
		return types.IntegerType
	}
}

func (c *Compiler) resolveNamedType(name string, level int) *types.Type {
	switch name {
	case "integer":
		return types.IntegerType
	case "real":
		return types.RealType
	case "boolean":
		return types.BooleanType
	case "char":
		return types.CharacterType
	}
	sv, ok := c.syms.Lookup(name, level)
	if !ok || sv.Kind != symtab.TypeName {
		c.errorf(c.cur.Line, "%q is not a known type", name)
		return types.IntegerType
	}
	return sv.Type.(*types.Type)
}

func (c *Compiler) constIntByName(name string) (int64, bool) {
	sv, ok := c.syms.LookupAny(name)
	if !ok || sv.Kind != symtab.Constant {
		return 0, false
	}
	return sv.Value, true
}

func (c *Compiler) parseIntConstExpr() int64 {
	neg := c.accept(lexer.Minus)
	if c.at(lexer.Ident) {
		n, ok := c.constIntByName(c.cur.Text)
		c.advance()
		if !ok {
			c.errorf(c.cur.Line, "expected an integer constant")
		}
		if neg {
			n = -n
		}
		return n
	}
	n := c.expect(lexer.IntLit, "an integer literal").IntVal
	if neg {
		n = -n
	}
	return n
}

// parseArrayIndexList parses a "simple-type-list": one or more
// comma-separated lo..hi subranges, one per array dimension, as in
// "array[1..3, 1..4] of integer". The dimensions are returned outermost
// first, matching declaration order.
func (c *Compiler) parseArrayIndexList() []*types.Type {
	var dims []*types.Type
	for {
		lo := c.parseIntConstExpr()
		c.expect(lexer.DotDot, "'..' in array index range")
		hi := c.parseIntConstExpr()
		dims = append(dims, types.NewSubRange(types.IntegerType, lo, hi))
		if !c.accept(lexer.Comma) {
			break
		}
	}
	return dims
}

func (c *Compiler) parseIdentList() []string {
	var names []string
	names = append(names, c.expect(lexer.Ident, "an identifier").Text)
	for c.accept(lexer.Comma) {
		names = append(names, c.expect(lexer.Ident, "an identifier").Text)
	}
	return names
}

func (c *Compiler) parseVarDecls(level int, localOff int) int {
	for c.at(lexer.Ident) {
		names := c.parseIdentList()
		c.expect(lexer.Colon, "':' in variable declaration")
		t := c.parseTypeSpec(level)
		for _, n := range names {
			if err := c.syms.Insert(n, symtab.SymValue{Kind: symtab.Variable, Level: level, Value: int64(localOff), Type: t}); err != nil {
				c.errorf(c.cur.Line, "%v", err)
			}
			localOff += t.Size()
		}
		c.expect(lexer.Semicolon, "';' after variable declaration")
	}
	return localOff
}

// parseSubroutineDecl compiles one procedure or function declaration: its
// header, a two-phase symbol insertion (so a recursive self-call
// resolves before the body is known), the nested block, and the patch-up
// of the symbol's code entry address once that's known.
func (c *Compiler) parseSubroutineDecl(level int) {
	isFunc := c.at(lexer.KwFunction)
	c.advance()
	name := c.expect(lexer.Ident, "a procedure/function name").Text

	params := c.parseFormalParams(level + 1)

	var retType *types.Type
	if isFunc {
		c.expect(lexer.Colon, "':' before function result type")
		retType = c.parseTypeSpec(level)
	}
	c.expect(lexer.Semicolon, "';' after subroutine header")

	kind := symtab.Procedure
	if isFunc {
		kind = symtab.Function
	}
	symParams := make([]symtab.Param, len(params))
	for i, p := range params {
		symParams[i] = symtab.Param{Name: p.name, Type: p.typ}
	}
	if err := c.syms.Insert(name, symtab.SymValue{
		Kind: kind, Level: level, Type: retType, Params: symParams,
	}); err != nil {
		c.errorf(c.cur.Line, "%v", err)
	}

	for i, p := range params {
		off := int64(i - len(params))
		c.syms.Insert(p.name, symtab.SymValue{Kind: symtab.Variable, Level: level + 1, Value: off, Type: p.typ})
	}

	entry, _ := c.parseBlockBody(level+1, len(params), isFunc, name, level)
	c.syms.SetValue(name, level, int64(entry))
	c.expect(lexer.Semicolon, "';' after subroutine body")
}

type formalParam struct {
	name string
	typ  *types.Type
}

func (c *Compiler) parseFormalParams(level int) []formalParam {
	var params []formalParam
	if !c.accept(lexer.LParen) {
		return params
	}
	if !c.at(lexer.RParen) {
		for {
			names := c.parseIdentList()
			c.expect(lexer.Colon, "':' in parameter declaration")
			t := c.parseTypeSpec(level)
			for _, n := range names {
				params = append(params, formalParam{name: n, typ: t})
			}
			if !c.accept(lexer.Semicolon) {
				break
			}
		}
	}
	c.expect(lexer.RParen, "')' closing parameter list")
	return params
}

// parseBlockBody is parseBlock's body shared by nested subroutines: it
// differs only in that the subroutine returns via RET/RETF with its
// parameter count rather than unconditionally via RET 0. selfName/
// selfLevel identify this subroutine's own symtab entry so its code
// entry address can be patched in *before* its statements are compiled
// -- otherwise a recursive self-call compiled within its own body would
// bake in the placeholder address instead of the real one.
func (c *Compiler) parseBlockBody(level, paramCount int, isFunc bool, selfName string, selfLevel int) (entryPC, nLocals int) {
	localOff := machine.FrameSize

	if c.accept(lexer.KwConst) {
		c.parseConstDecls(level)
	}
	if c.accept(lexer.KwType) {
		c.parseTypeDecls(level)
	}
	if c.accept(lexer.KwVar) {
		localOff = c.parseVarDecls(level, localOff)
	}
	for c.at(lexer.KwProcedure) || c.at(lexer.KwFunction) {
		c.parseSubroutineDecl(level)
	}

	entryPC = c.prog.PC()
	c.syms.SetValue(selfName, selfLevel, int64(entryPC))
	nLocals = localOff - machine.FrameSize
	if nLocals > 0 {
		c.prog.Emit(bytecode.NewInstr(bytecode.ENTER, 0, datum.Int(int64(nLocals))))
	}
	c.tempOff = machine.FrameSize + nLocals

	c.parseCompoundStatement(level)

	if isFunc {
		c.prog.Emit(bytecode.WithAddr(bytecode.RETF, int64(paramCount)))
	} else {
		c.prog.Emit(bytecode.WithAddr(bytecode.RET, int64(paramCount)))
	}

	c.syms.Purge(level)
	return entryPC, nLocals
}

