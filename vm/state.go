// state.go - CPU state: register file, flags, sparse stack, label table (C2)

package vm

const (
	u64Mask = ^uint64(0)

	// StackBase is the initial value of rsp and the sentinel "empty
	// stack" value ret compares against.
	StackBase uint64 = 0x7fffffffe000
)

// reg64Names is the fixed order of the sixteen 64-bit GPRs; the
// snapshotter follows it with reg32AliasNames, the four 32-bit aliases.
var reg64Names = []string{
	"rax", "rbx", "rcx", "rdx", "rsi", "rdi", "rbp", "rsp",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

var reg32AliasNames = []string{"eax", "ebx", "ecx", "edx"}

var reg64Index = buildIndex(reg64Names)

// reg32Aliases maps a 32-bit alias name to the 64-bit register it views.
var reg32Aliases = map[string]string{
	"eax": "rax",
	"ebx": "rbx",
	"ecx": "rcx",
	"edx": "rdx",
}

func buildIndex(names []string) map[string]int {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[n] = i
	}
	return idx
}

// Flags holds the three boolean condition flags this model tracks.
// CF is declared here but, per spec, never assigned by any instruction.
type Flags struct {
	ZF bool
	SF bool
	CF bool
}

// CPUState is the mutable machine state C4's instruction semantics
// operate on. It is created once per Run call and discarded afterward;
// nothing about it is safe for concurrent mutation from multiple
// goroutines (Run never needs that: §5 is single-threaded per call).
type CPUState struct {
	regs  [16]uint64
	Flags Flags
	Stack map[uint64]uint64
	// Labels maps a label name (no trailing colon) to its instruction
	// index, populated once by the driver's pre-pass.
	Labels map[string]int
}

// NewCPUState returns a CPUState with rsp initialized to StackBase and
// every other register, flag, and stack slot zeroed.
func NewCPUState() *CPUState {
	s := &CPUState{
		Stack:  make(map[uint64]uint64),
		Labels: make(map[string]int),
	}
	s.regs[reg64Index["rsp"]] = StackBase
	return s
}

// ReadReg returns a register's value. 64-bit names return the stored
// value; the four 32-bit aliases return the zero-extended low 32 bits
// of their underlying 64-bit register. Any other name reads as 0.
func (s *CPUState) ReadReg(name string) uint64 {
	if i, ok := reg64Index[name]; ok {
		return s.regs[i]
	}
	if target, ok := reg32Aliases[name]; ok {
		return s.regs[reg64Index[target]] & 0xFFFFFFFF
	}
	return 0
}

// WriteReg stores value into a register. A 64-bit name is masked to 64
// bits. A 32-bit alias writes its low 32 bits into the low 32 bits of
// the underlying 64-bit register while preserving the high 32 bits —
// intentionally NOT the zero-extending behavior of real x86-64 (see
// spec §9 open question 2). Any other name is a silent no-op.
func (s *CPUState) WriteReg(name string, value uint64) {
	if i, ok := reg64Index[name]; ok {
		s.regs[i] = value & u64Mask
		return
	}
	if target, ok := reg32Aliases[name]; ok {
		i := reg64Index[target]
		s.regs[i] = (s.regs[i] &^ 0xFFFFFFFF) | (value & 0xFFFFFFFF)
	}
}

// Push decrements rsp by 8 and stores value (masked to 64 bits) there.
func (s *CPUState) Push(value uint64) {
	rsp := s.ReadReg("rsp") - 8
	s.WriteReg("rsp", rsp)
	s.Stack[rsp] = value & u64Mask
}

// Pop reads the word at rsp (0 if absent), removes it, and advances rsp
// by 8.
func (s *CPUState) Pop() uint64 {
	rsp := s.ReadReg("rsp")
	value := s.Stack[rsp]
	delete(s.Stack, rsp)
	s.WriteReg("rsp", rsp+8)
	return value
}

// ReadMem reads the 64-bit word at base+disp from the sparse stack map,
// returning 0 for an address that has never been written.
func (s *CPUState) ReadMem(base string, disp int64) uint64 {
	addr := s.effectiveAddr(base, disp)
	return s.Stack[addr]
}

// WriteMem stores value (masked to 64 bits) at base+disp.
func (s *CPUState) WriteMem(base string, disp int64, value uint64) {
	addr := s.effectiveAddr(base, disp)
	s.Stack[addr] = value & u64Mask
}

func (s *CPUState) effectiveAddr(base string, disp int64) uint64 {
	return uint64(int64(s.ReadReg(base)) + disp)
}
