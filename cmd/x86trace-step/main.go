// Command x86trace-step is an interactive, terminal-driven stepper over
// a single debug-JSON instruction stream: step one instruction at a
// time, set breakpoints, inspect the call stack, and copy register
// state to the system clipboard.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"golang.design/x/clipboard"
	"golang.org/x/term"

	"github.com/otley-labs/x86trace/vm"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: x86trace-step program.json\n\nInteractively steps through a debug-JSON instruction stream.\n\nCommands:\n  step, continue, break <cond>, bt [depth], copy, regs, quit\n")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "x86trace-step: %v\n", err)
		os.Exit(1)
	}
	var prog vm.Program
	if err := json.Unmarshal(data, &prog); err != nil {
		fmt.Fprintf(os.Stderr, "x86trace-step: parsing %s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}

	copyFn := clipboardCopier()
	stepper := NewStepper(prog, os.Stdout, copyFn)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "x86trace-step: failed to set raw mode, falling back to line mode: %v\n", err)
		} else {
			defer term.Restore(int(os.Stdin.Fd()), oldState)
		}
	}

	stepper.Run(lineReader(os.Stdin))
}

// clipboardCopier returns a CopyFunc backed by golang.design/x/clipboard,
// or nil if the clipboard package fails to initialize (e.g. headless
// CI), in which case the REPL prints register dumps instead of copying.
func clipboardCopier() CopyFunc {
	if err := clipboard.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "x86trace-step: clipboard unavailable: %v\n", err)
		return nil
	}
	return func(text string) error {
		clipboard.Write(clipboard.FmtText, []byte(text))
		return nil
	}
}
