// driver.go - sequences instructions, resolves labels, collects snapshots (C5)

package vm

import (
	"log"
	"strings"
)

// DefaultMaxSteps is the step budget Run uses when the caller passes 0.
const DefaultMaxSteps = 1000

// Run executes prog's instruction stream against a fresh CPUState and
// returns the ordered snapshot sequence. Given identical input and
// maxSteps the result is byte-for-byte reproducible (spec §6): register
// iteration is fixed, stack entries are sorted, and nothing
// nondeterministic is consulted.
func Run(prog Program, maxSteps int) []Snapshot {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	instructions := prog.Instructions
	state := NewCPUState()

	for i, inst := range instructions {
		asm := strings.TrimSpace(inst.Assembly)
		if strings.HasSuffix(asm, ":") {
			state.Labels[strings.TrimSuffix(asm, ":")] = i
		}
	}

	snapshots := make([]Snapshot, 0, len(instructions)+1)
	if len(instructions) > 0 {
		first := instructions[0]
		snapshots = append(snapshots, TakeSnapshot(state, InstructionMeta{
			ID:         -1,
			Assembly:   "INIT",
			SourceLine: first.SourceLine,
			Line:       first.Line,
		}, 0))
	}

	pc := 0
	steps := 0
	for pc < len(instructions) && steps < maxSteps {
		inst := instructions[pc]
		asm := strings.TrimSpace(inst.Assembly)

		if strings.HasSuffix(asm, ":") {
			pc++
			continue
		}

		transfer := executeOne(state, pc, asm)
		snapshots = append(snapshots, TakeSnapshot(state, InstructionMeta{
			ID:         inst.ID,
			Assembly:   asm,
			SourceLine: inst.SourceLine,
			Line:       inst.Line,
		}, 0))
		steps++

		next, terminate := advancePC(state, instructions, pc, transfer)
		if terminate {
			steps = maxSteps
			continue
		}
		pc = next
	}

	for i := range snapshots {
		snapshots[i].Step = i
	}
	return snapshots
}

// executeOne dispatches a single instruction, containing both unknown
// mnemonics and a panic from a handler's arithmetic as a logged
// Continue, matching spec §4.4/§7: single-instruction failure never
// aborts the trace.
func executeOne(state *CPUState, pc int, asm string) (t Transfer) {
	mnemonic, operands := SplitInstruction(asm)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("vm: instruction %d (%s) failed: %v", pc, asm, r)
			t = Transfer{Kind: TransferContinue}
		}
	}()

	transfer, recognized := Execute(state, mnemonic, operands)
	if !recognized {
		log.Printf("vm: unrecognized mnemonic %q at instruction %d", mnemonic, pc)
		return Transfer{Kind: TransferContinue}
	}
	return transfer
}

// advancePC computes the next program counter for a just-executed
// transfer. terminate reports a clean end of execution (returning past
// the top of an empty call stack) that the caller should treat as
// "stop stepping" rather than a pc value to resume from.
func advancePC(state *CPUState, instructions []Instruction, pc int, transfer Transfer) (next int, terminate bool) {
	switch transfer.Kind {
	case TransferCall:
		state.Push(uint64(pc + 1))
		if target, ok := resolveTarget(state, instructions, transfer); ok {
			return target, false
		}
		return pc + 1, false

	case TransferJump:
		if ShouldJump(transfer.Jump, state.Flags) {
			if target, ok := resolveTarget(state, instructions, transfer); ok {
				return target, false
			}
		}
		return pc + 1, false

	case TransferRet:
		if state.ReadReg("rsp") >= StackBase {
			return pc, true // empty stack: terminate cleanly
		}
		ret := state.Pop()
		if ret < uint64(len(instructions)) {
			return int(ret), false
		}
		return pc, true // return address past the program: terminate cleanly

	default:
		return pc + 1, false
	}
}

// StepOne executes exactly one non-label instruction and advances *pc in
// place, reusing the same transfer-resolution logic Run uses so manual
// stepping (e.g. an interactive debugger) never disagrees with a batch
// Run over the same program. On a terminating ret, *pc is left at
// len(instructions) so the caller's own "done" check sees the program as
// finished.
func StepOne(state *CPUState, instructions []Instruction, pc *int, inst Instruction, step int) Snapshot {
	asm := strings.TrimSpace(inst.Assembly)
	transfer := executeOne(state, *pc, asm)
	snap := TakeSnapshot(state, InstructionMeta{
		ID:         inst.ID,
		Assembly:   asm,
		SourceLine: inst.SourceLine,
		Line:       inst.Line,
	}, step)

	next, terminate := advancePC(state, instructions, *pc, transfer)
	if terminate {
		*pc = len(instructions)
	} else {
		*pc = next
	}
	return snap
}

// resolveTarget turns a call/jump target operand into an instruction
// index. It first checks the label table (already stripped of a
// trailing colon); if that misses — the target's text differs from the
// pre-pass's stripped-colon form — it falls back to a linear rescan
// (spec's "label resolution fallback", kept to preserve behavior on
// inputs where the two don't agree).
func resolveTarget(state *CPUState, instructions []Instruction, transfer Transfer) (int, bool) {
	if !transfer.HasTarget {
		return 0, false
	}
	name := targetName(transfer.Target)
	if name == "" {
		return 0, false
	}
	if idx, ok := state.Labels[name]; ok {
		return idx, true
	}
	for i, inst := range instructions {
		asm := strings.TrimSuffix(strings.TrimSpace(inst.Assembly), ":")
		if asm == name {
			return i, true
		}
	}
	return 0, false
}

func targetName(op Operand) string {
	switch op.Kind {
	case OperandLabel:
		return op.Label
	case OperandUnknown:
		return op.Raw
	case OperandReg:
		return op.Reg
	default:
		return ""
	}
}
