package compiler

import "fmt"

// Diagnostic is one accumulated compile-time error. Compilation never
// stops at the first one; the driver reports the whole list.
type Diagnostic struct {
	Line    int
	Message string
}

// String renders a diagnostic as "progName: <msg> near line <n>", the
// message format printed by the compiler driver.
func (d Diagnostic) String(progName string) string {
	return fmt.Sprintf("%s: %s near line %d", progName, d.Message, d.Line)
}

func (c *Compiler) errorf(line int, format string, args ...interface{}) {
	c.diags = append(c.diags, Diagnostic{Line: line, Message: fmt.Sprintf(format, args...)})
}
