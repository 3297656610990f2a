// repl.go - command loop for the interactive stepper, grounded on the
// monitor's command-parsing shape: a command name plus whitespace-split
// arguments, dispatched by a simple switch.
package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/otley-labs/x86trace/internal/backtrace"
	"github.com/otley-labs/x86trace/internal/breakpoint"
	"github.com/otley-labs/x86trace/internal/luacond"
	"github.com/otley-labs/x86trace/vm"
)

// Command is a parsed REPL input line: a lowercased name plus its
// remaining whitespace-split arguments.
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits a raw input line into a Command.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	if input == "" {
		return Command{}
	}
	parts := strings.Fields(input)
	return Command{Name: strings.ToLower(parts[0]), Args: parts[1:]}
}

// CopyFunc copies text to the system clipboard. Abstracted so the REPL
// can be tested without a real clipboard backend.
type CopyFunc func(text string) error

// Stepper drives a vm.Program one instruction at a time, maintaining a
// running CPUState and exposing breakpoints, Lua predicates, and
// backtraces over the resulting snapshot stream.
type Stepper struct {
	prog        vm.Program
	state       *vm.CPUState
	pc          int
	step        int
	snapshots   []vm.Snapshot
	breakConds  map[int]*breakpoint.Condition
	breakPreds  map[int]*luacond.Predicate
	nextBreakID int
	copy        CopyFunc
	out         io.Writer
}

// NewStepper creates a Stepper positioned before the first instruction
// of prog.
func NewStepper(prog vm.Program, out io.Writer, copy CopyFunc) *Stepper {
	s := &Stepper{
		prog:       prog,
		state:      vm.NewCPUState(),
		breakConds: make(map[int]*breakpoint.Condition),
		breakPreds: make(map[int]*luacond.Predicate),
		copy:       copy,
		out:        out,
	}
	for i, inst := range prog.Instructions {
		asm := strings.TrimSpace(inst.Assembly)
		if strings.HasSuffix(asm, ":") {
			s.state.Labels[strings.TrimSuffix(asm, ":")] = i
		}
	}
	return s
}

// Done reports whether the stepper has run past the last instruction.
func (s *Stepper) Done() bool {
	return s.pc >= len(s.prog.Instructions)
}

// StepOnce executes exactly one instruction (skipping label-only lines)
// and records its snapshot, reusing vm's single-instruction semantics so
// stepping and batch Run never disagree.
func (s *Stepper) StepOnce() (vm.Snapshot, bool) {
	for !s.Done() {
		inst := s.prog.Instructions[s.pc]
		asm := strings.TrimSpace(inst.Assembly)
		if strings.HasSuffix(asm, ":") {
			s.pc++
			continue
		}
		snap := vm.StepOne(s.state, s.prog.Instructions, &s.pc, inst, s.step)
		s.step++
		s.snapshots = append(s.snapshots, snap)
		return snap, true
	}
	return vm.Snapshot{}, false
}

// RunToBreakpoint steps until a registered condition or predicate fires,
// or the program ends, and returns the snapshot that satisfied it (or
// the last snapshot produced if the program simply ended).
func (s *Stepper) RunToBreakpoint() (vm.Snapshot, bool) {
	var last vm.Snapshot
	for {
		snap, ok := s.StepOnce()
		if !ok {
			return last, false
		}
		last = snap
		if s.breakpointFires(snap) {
			return snap, true
		}
	}
}

func (s *Stepper) breakpointFires(snap vm.Snapshot) bool {
	for _, cond := range s.breakConds {
		if breakpoint.Eval(cond, snap) {
			return true
		}
	}
	for _, pred := range s.breakPreds {
		if ok, err := pred.Eval(snap); err == nil && ok {
			return true
		}
	}
	return false
}

// AddCondition registers a breakpoint.Condition and returns its id.
func (s *Stepper) AddCondition(cond *breakpoint.Condition) int {
	s.nextBreakID++
	s.breakConds[s.nextBreakID] = cond
	return s.nextBreakID
}

// AddPredicate registers a Lua predicate and returns its id.
func (s *Stepper) AddPredicate(pred *luacond.Predicate) int {
	s.nextBreakID++
	s.breakPreds[s.nextBreakID] = pred
	return s.nextBreakID
}

// Backtrace returns up to depth return-address frames from the current
// stack pointer.
func (s *Stepper) Backtrace(depth int) []uint64 {
	return backtrace.Walk(s.state, depth)
}

// Run drives the REPL loop, reading commands from in and writing
// responses to s.out, until the "quit" command or EOF.
func (s *Stepper) Run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(s.out, "x86trace-step: type 'help' for commands")
	for scanner.Scan() {
		cmd := ParseCommand(scanner.Text())
		if cmd.Name == "" {
			continue
		}
		if !s.dispatch(cmd) {
			return
		}
	}
}

func (s *Stepper) dispatch(cmd Command) bool {
	switch cmd.Name {
	case "step", "s":
		snap, ok := s.StepOnce()
		if !ok {
			fmt.Fprintln(s.out, "program finished")
			return true
		}
		s.printSnapshot(snap)

	case "continue", "c":
		snap, hit := s.RunToBreakpoint()
		s.printSnapshot(snap)
		if hit {
			fmt.Fprintln(s.out, "breakpoint hit")
		} else {
			fmt.Fprintln(s.out, "program finished")
		}

	case "break", "b":
		if len(cmd.Args) == 0 {
			fmt.Fprintln(s.out, "usage: break <condition>")
			return true
		}
		expr := strings.Join(cmd.Args, " ")
		s.setBreakpoint(expr)

	case "bt":
		depth := 8
		if len(cmd.Args) > 0 {
			if n, err := strconv.Atoi(cmd.Args[0]); err == nil {
				depth = n
			}
		}
		frames := s.Backtrace(depth)
		for i, addr := range frames {
			fmt.Fprintf(s.out, "#%d 0x%x\n", i, addr)
		}

	case "copy":
		s.copyRegisters()

	case "regs":
		s.printRegisters()

	case "help":
		fmt.Fprintln(s.out, "commands: step, continue, break <cond>, bt [depth], copy, regs, quit")

	case "quit", "q":
		return false

	default:
		fmt.Fprintf(s.out, "unknown command: %s\n", cmd.Name)
	}
	return true
}

// setBreakpoint tries the structured breakpoint.Parse grammar first and
// falls back to a Lua predicate for anything that grammar rejects, so a
// user can write either "rax==5" or a richer expression like
// "zf and rax > 10".
func (s *Stepper) setBreakpoint(expr string) {
	if cond, err := breakpoint.Parse(expr); err == nil {
		id := s.AddCondition(cond)
		fmt.Fprintf(s.out, "breakpoint %d: %s\n", id, breakpoint.Format(cond))
		return
	}
	pred := luacond.Compile(expr)
	id := s.AddPredicate(pred)
	fmt.Fprintf(s.out, "breakpoint %d (lua): %s\n", id, expr)
}

func (s *Stepper) copyRegisters() {
	var b strings.Builder
	snap := vm.TakeSnapshot(s.state, vm.InstructionMeta{}, s.step)
	regNames := make([]string, 0, len(snap.Registers))
	for name := range snap.Registers {
		regNames = append(regNames, name)
	}
	sort.Strings(regNames)
	for _, name := range regNames {
		fmt.Fprintf(&b, "%s=%s\n", name, snap.Registers[name].Hex)
	}
	if s.copy == nil {
		fmt.Fprint(s.out, b.String())
		return
	}
	if err := s.copy(b.String()); err != nil {
		fmt.Fprintf(s.out, "copy failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, "registers copied to clipboard")
}

func (s *Stepper) printSnapshot(snap vm.Snapshot) {
	fmt.Fprintf(s.out, "[%d] %s  zf=%v sf=%v cf=%v\n", snap.Step, snap.Instruction.Assembly, snap.Flags.ZF, snap.Flags.SF, snap.Flags.CF)
}

func (s *Stepper) printRegisters() {
	snap := vm.TakeSnapshot(s.state, vm.InstructionMeta{}, s.step)
	names := make([]string, 0, len(snap.Registers))
	for name := range snap.Registers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(s.out, "%-4s %s\n", name, snap.Registers[name].Hex)
	}
}
