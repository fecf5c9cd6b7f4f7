package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a canonical, column-aligned listing of the
// program's code section, one line per instruction, PC-prefixed. It is
// the left-hand side of testable property 6 (disasm(assemble(code)) ==
// canonical(code)): any Program built purely from Emit/Patch calls with
// the same instruction sequence renders identically here regardless of
// how it was constructed or round-tripped through Serialize/Deserialize.
func (p *Program) Disassemble() string {
	var sb strings.Builder
	for pc, in := range p.Code {
		fmt.Fprintf(&sb, "%4d: %s\n", pc, in.String())
	}
	return sb.String()
}

// DisassembleWithConsts appends a constant-pool listing after the code,
// for the CLI's -disasm listing.
func (p *Program) DisassembleWithConsts() string {
	var sb strings.Builder
	sb.WriteString(p.Disassemble())
	if len(p.Consts) > 0 {
		sb.WriteString("; constants:\n")
		for i, s := range p.Consts {
			fmt.Fprintf(&sb, ";   [%d] %q\n", i, s)
		}
	}
	return sb.String()
}
