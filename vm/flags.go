// flags.go - flag derivation from an arithmetic/logic result (C3)

package vm

// UpdateFlags derives ZF and SF from result masked to width bits (64 when
// width is 0 or 64). CF is never touched here — no instruction in this
// model assigns it (spec §9 open question 1): the signed jump predicates
// (jl/jge/jg/jle) therefore always observe CF==0.
func (s *CPUState) UpdateFlags(result uint64, width int) {
	mask := u64Mask
	signBit := uint(63)
	if width > 0 && width < 64 {
		mask = (uint64(1) << uint(width)) - 1
		signBit = uint(width - 1)
	}
	masked := result & mask

	s.Flags.ZF = masked == 0
	s.Flags.SF = (masked>>signBit)&1 != 0
}
