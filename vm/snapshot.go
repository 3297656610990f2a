// snapshot.go - serializing CPU state plus instruction provenance (C6)

package vm

import (
	"fmt"
	"sort"
)

// allRegisterNames is the fixed register iteration order the
// snapshotter uses: the sixteen 64-bit GPRs, then the four 32-bit
// aliases. Combined with encoding/json's alphabetical map-key
// ordering, this is what makes the emitted trace byte-for-byte
// reproducible (spec §6).
var allRegisterNames = append(append([]string{}, reg64Names...), reg32AliasNames...)

// RegisterValue is one register's value in both hex and signed-decimal form.
type RegisterValue struct {
	Hex     string `json:"hex"`
	Decimal int64  `json:"decimal"`
}

// StackEntry is one populated stack slot.
type StackEntry struct {
	Address string `json:"address"`
	Value   string `json:"value"`
}

// InstructionMeta is the provenance carried alongside each snapshot:
// the executed instruction's opaque id, trimmed assembly text, and
// source-line bookkeeping.
type InstructionMeta struct {
	ID         any    `json:"id"`
	Assembly   string `json:"assembly"`
	SourceLine int    `json:"sourceLine"`
	Line       int    `json:"line"`
}

// Snapshot is a point-in-time record of CPUState plus the instruction
// that produced it.
type Snapshot struct {
	Step        int                      `json:"step"`
	Instruction InstructionMeta          `json:"instruction"`
	Registers   map[string]RegisterValue `json:"registers"`
	Stack       []StackEntry             `json:"stack"`
	Flags       Flags                    `json:"flags"`
}

// maxStackEntries bounds the stack window a snapshot reports (spec §3).
const maxStackEntries = 32

// TakeSnapshot captures s's current registers, flags, and a bounded
// window of stack memory alongside inst's provenance. step is assigned
// by the caller once the full sequence is known.
func TakeSnapshot(s *CPUState, inst InstructionMeta, step int) Snapshot {
	registers := make(map[string]RegisterValue, len(allRegisterNames))
	for _, name := range allRegisterNames {
		v := s.ReadReg(name)
		registers[name] = RegisterValue{
			Hex:     fmt.Sprintf("0x%x", v),
			Decimal: int64(v),
		}
	}

	addrs := make([]uint64, 0, len(s.Stack))
	for addr := range s.Stack {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	if len(addrs) > maxStackEntries {
		addrs = addrs[:maxStackEntries]
	}

	stack := make([]StackEntry, 0, len(addrs))
	for _, addr := range addrs {
		stack = append(stack, StackEntry{
			Address: fmt.Sprintf("0x%x", addr),
			Value:   fmt.Sprintf("0x%x", s.Stack[addr]),
		})
	}

	return Snapshot{
		Step:        step,
		Instruction: inst,
		Registers:   registers,
		Stack:       stack,
		Flags:       s.Flags,
	}
}
