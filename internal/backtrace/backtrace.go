// Package backtrace walks rsp upward through a vm.CPUState's stack to
// recover a chain of call return addresses, for the debugger's "bt"
// command.
package backtrace

import "github.com/otley-labs/x86trace/vm"

// Walk reads up to depth consecutive 8-byte stack slots starting at
// rsp's current value and returns them as a return-address chain,
// oldest call last. It stops early if a slot was never written.
func Walk(s *vm.CPUState, depth int) []uint64 {
	sp := s.ReadReg("rsp")
	frames := make([]uint64, 0, depth)
	for i := 0; i < depth; i++ {
		word, ok := s.Stack[sp]
		if !ok {
			break
		}
		frames = append(frames, word)
		sp += 8
	}
	return frames
}
