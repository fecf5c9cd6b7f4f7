// Package report prints compiler diagnostics, runtime errors, and
// bytecode listings to the console, colored via pterm.
//
// Uses a tag-then-message banner style: a colored background block
// naming the message kind, followed by the message itself in the
// matching foreground color.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"

	"github.com/slowlysurly/p/compiler"
	"github.com/slowlysurly/p/machine"
	"github.com/slowlysurly/p/pkg/bytecode"
)

var (
	errorStyleBG = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	errorFG      = pterm.FgRed
	warnStyleBG  = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	warnFG       = pterm.FgYellow
	infoFG       = pterm.FgLightGreen
)

// Diagnostics prints every compile-time diagnostic to w, one per line, in
// the "tag then message" banner style. progName prefixes each message
// ("progName: <msg> near line <n>"). It returns the number of diagnostics
// printed, for use as a process exit code.
func Diagnostics(w io.Writer, progName string, diags []compiler.Diagnostic) int {
	for _, d := range diags {
		fmt.Fprint(w, errorStyleBG.Sprint(" compile error "))
		fmt.Fprintln(w, errorFG.Sprint(" "+d.String(progName)))
	}
	return len(diags)
}

// RuntimeError prints a machine.Result that halted a run for any reason
// other than normal completion.
func RuntimeError(w io.Writer, r machine.Result) {
	fmt.Fprint(w, errorStyleBG.Sprint(" runtime error "))
	fmt.Fprintln(w, errorFG.Sprint(" "+r.String()))
}

// Success prints a one-line confirmation that a run completed normally.
func Success(w io.Writer, cycles int) {
	fmt.Fprintln(w, infoFG.Sprint(fmt.Sprintf("ok (%d cycles)", cycles)))
}

// Disassembly prints a program's bytecode listing, optionally including
// its string constant pool, to w.
func Disassembly(w io.Writer, prog *bytecode.Program, withConsts bool) {
	if withConsts {
		fmt.Fprint(w, prog.DisassembleWithConsts())
	} else {
		fmt.Fprint(w, prog.Disassemble())
	}
}

// Warnf prints a warning message in the same banner style.
func Warnf(format string, args ...interface{}) {
	warnStyleBG.Print(" warning ")
	warnFG.Println(" " + fmt.Sprintf(format, args...))
}

// Fatalf prints a fatal error banner and exits the process with status 2,
// for errors that leave the tool with nothing useful left to do.
func Fatalf(format string, args ...interface{}) {
	fmt.Fprint(os.Stderr, errorStyleBG.Sprint(" fatal "))
	fmt.Fprintln(os.Stderr, errorFG.Sprint(" "+fmt.Sprintf(format, args...)))
	os.Exit(2)
}
