// Command p compiles and runs P programs.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/slowlysurly/p/compiler"
	"github.com/slowlysurly/p/config"
	"github.com/slowlysurly/p/machine"
	"github.com/slowlysurly/p/report"
	"github.com/slowlysurly/p/trace"
)

// runtimeErrorExitCode is returned when compilation succeeds but the
// program halts abnormally (anything but machine.Halted); it is kept
// distinct from a compile-error count, which is always a small number of
// diagnostics and collides with this only by the coincidence of a source
// file having exactly this many errors.
const runtimeErrorExitCode = 70

func main() {
	help := flag.Bool("?", false, "show usage and exit")
	verbose := flag.Bool("v", false, "verbose output")
	flag.BoolVar(verbose, "verbose", false, "verbose output")
	version := flag.Bool("V", false, "print version and exit")
	flag.BoolVar(version, "version", false, "print version and exit")
	disasm := flag.Bool("disasm", false, "print the compiled bytecode listing before running")
	tracePath := flag.String("trace", "", "record an execution trace to this file")
	configDir := flag.String("config", "", "directory to search for p.toml (defaults to the source file's directory)")
	stackSize := flag.Int("stack-size", 0, "override the P-machine's data stack size in Datums")
	heapSize := flag.Int("heap-size", 0, "override the P-machine's heap size in Datums")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: p [options] <source.p | ->\n\n")
		fmt.Fprintf(os.Stderr, "Compiles and runs a P program.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  p factorial.p              # compile and run\n")
		fmt.Fprintf(os.Stderr, "  p -disasm factorial.p      # also print the bytecode listing\n")
		fmt.Fprintf(os.Stderr, "  p -trace run.trace fib.p   # record an execution trace\n")
		fmt.Fprintf(os.Stderr, "  cat fib.p | p -             # read source from stdin\n")
	}
	flag.Parse()

	if *help {
		flag.Usage()
		os.Exit(0)
	}

	if *version {
		fmt.Println("p 0.1.0")
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) != 1 {
		flag.Usage()
		os.Exit(2)
	}

	src, err := readSource(args[0])
	if err != nil {
		report.Fatalf("%v", err)
	}

	dir := *configDir
	if dir == "" {
		dir = sourceDir(args[0])
	}
	cfg, err := config.FindAndLoad(dir)
	if err != nil {
		report.Fatalf("%v", err)
	}
	if *stackSize > 0 {
		cfg.Run.StackSize = *stackSize
	}
	if *heapSize > 0 {
		cfg.Run.HeapSize = *heapSize
	}

	c := compiler.New(src)
	prog := c.Compile()

	progName := c.ProgramName()
	if progName == "" {
		progName = progNameFromPath(args[0])
	}

	if n := report.Diagnostics(os.Stderr, progName, c.Diagnostics()); n > 0 {
		os.Exit(n)
	}

	if *disasm {
		report.Disassembly(os.Stdout, prog, true)
	}

	// The config file sets the defaults for -verbose and -trace; the CLI
	// flags only ever add to them, never suppress a config-enabled one.
	verboseEnabled := *verbose || cfg.Verbose
	effectiveTracePath := *tracePath
	if effectiveTracePath == "" && cfg.Trace.Enabled {
		effectiveTracePath = cfg.Trace.Output
	}

	if verboseEnabled {
		fmt.Fprintf(os.Stderr, "stack: %s, heap: %s\n",
			humanize.Bytes(uint64(cfg.Run.StackSize)*8),
			humanize.Bytes(uint64(cfg.Run.HeapSize)*8))
	}

	m := machine.New(cfg.Run.StackSize, cfg.Run.HeapSize)
	m.Load(prog)
	m.Out = os.Stdout

	var sess *trace.Session
	if effectiveTracePath != "" {
		sess = trace.NewSession()
		sess.Attach(m)
	}

	result := m.Run()

	if sess != nil {
		if err := sess.WriteFile(effectiveTracePath); err != nil {
			report.Warnf("%v", err)
		}
	}

	if result != machine.Halted {
		report.RuntimeError(os.Stderr, result)
		os.Exit(runtimeErrorExitCode)
	}

	if verboseEnabled {
		report.Success(os.Stderr, m.Cycles())
	}
}

// progNameFromPath derives a diagnostic prefix from the source path when
// the program itself carries no "program" header: the file's base name
// without its extension, or "stdin" when reading from "-".
func progNameFromPath(path string) string {
	if path == "-" {
		return "stdin"
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func readSource(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func sourceDir(path string) string {
	if path == "-" {
		wd, err := os.Getwd()
		if err != nil {
			return "."
		}
		return wd
	}
	return filepath.Dir(path)
}
