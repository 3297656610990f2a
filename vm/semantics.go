// semantics.go - per-mnemonic instruction effects on CPUState (C4)

package vm

import (
	"fmt"
	"strings"
)

// TransferKind identifies how the driver should move the program counter
// after an instruction executes. Semantics never touch pc directly —
// they hand the driver a token and let it own pc (spec §9).
type TransferKind int

const (
	TransferContinue TransferKind = iota
	TransferCall
	TransferRet
	TransferJump
)

// Transfer is returned by Execute to tell the driver how to update pc.
type Transfer struct {
	Kind      TransferKind
	Target    Operand // meaningful when HasTarget is true
	HasTarget bool
	Jump      string // conditional mnemonic (je, jl, ...) for TransferJump
}

// SplitInstruction splits a trimmed assembly line into its mnemonic and
// parsed operand list.
func SplitInstruction(line string) (mnemonic string, operands []Operand) {
	fields := strings.SplitN(line, " ", 2)
	mnemonic = strings.ToLower(strings.TrimSpace(fields[0]))
	if len(fields) < 2 {
		return mnemonic, nil
	}
	for _, raw := range strings.Split(fields[1], ",") {
		operands = append(operands, ParseOperand(strings.TrimSpace(raw)))
	}
	return mnemonic, operands
}

// value reads an operand's current value. Reading an Unknown or a Label
// operand that isn't present in the label table yields 0.
func value(s *CPUState, op Operand) uint64 {
	switch op.Kind {
	case OperandReg:
		return s.ReadReg(op.Reg)
	case OperandImm:
		return uint64(op.Imm)
	case OperandMem:
		return s.ReadMem(op.Reg, op.Disp)
	case OperandLabel:
		if idx, ok := s.Labels[op.Label]; ok {
			return uint64(idx)
		}
		return 0
	default:
		return 0
	}
}

// setValue writes to an operand. Writing to an Imm, Label, or Unknown
// operand is a silent no-op.
func setValue(s *CPUState, op Operand, v uint64) {
	switch op.Kind {
	case OperandReg:
		s.WriteReg(op.Reg, v)
	case OperandMem:
		s.WriteMem(op.Reg, op.Disp, v)
	}
}

// Execute runs mnemonic against operands, mutating s, and returns the
// transfer token describing how the driver should move pc next. Unknown
// mnemonics are logged (by the caller, via the returned ok flag) and
// treated as Continue, matching spec §4.4/§7.
func Execute(s *CPUState, mnemonic string, operands []Operand) (t Transfer, recognized bool) {
	recognized = true

	switch mnemonic {
	case "mov":
		if len(operands) == 2 {
			setValue(s, operands[0], value(s, operands[1]))
		}

	case "lea":
		if len(operands) == 2 && operands[1].Kind == OperandMem {
			addr := s.ReadReg(operands[1].Reg) + uint64(operands[1].Disp)
			setValue(s, operands[0], addr)
		}

	case "add":
		if len(operands) == 2 {
			a, b := value(s, operands[0]), value(s, operands[1])
			result := a + b
			setValue(s, operands[0], result)
			s.UpdateFlags(result, 64)
		}

	case "sub":
		if len(operands) == 2 {
			a, b := value(s, operands[0]), value(s, operands[1])
			result := a - b
			setValue(s, operands[0], result)
			s.UpdateFlags(result, 64)
		}

	case "imul":
		if len(operands) == 2 {
			a, b := value(s, operands[0]), value(s, operands[1])
			result := a * b
			setValue(s, operands[0], result)
			s.UpdateFlags(result, 64)
		}

	case "mul":
		if len(operands) == 1 {
			a := s.ReadReg("rax")
			b := value(s, operands[0])
			hi, lo := mul128(a, b)
			s.WriteReg("rax", lo)
			s.WriteReg("rdx", hi)
			// Flags derive from lo alone (the masked value that lands in
			// rax), matching update_flags's default size=64 — hi/rdx is
			// never inspected, per spec §9 open question 3.
			s.UpdateFlags(lo, 64)
		}

	case "idiv", "div":
		if len(operands) == 1 {
			divisor := value(s, operands[0])
			if divisor != 0 {
				dividend := s.ReadReg("rax")
				s.WriteReg("rax", dividend/divisor)
				s.WriteReg("rdx", dividend%divisor)
			}
		}

	case "inc":
		if len(operands) == 1 {
			result := value(s, operands[0]) + 1
			setValue(s, operands[0], result)
			s.UpdateFlags(result, 64)
		}

	case "dec":
		if len(operands) == 1 {
			result := value(s, operands[0]) - 1
			setValue(s, operands[0], result)
			s.UpdateFlags(result, 64)
		}

	case "neg":
		if len(operands) == 1 {
			result := -value(s, operands[0])
			setValue(s, operands[0], result)
			s.UpdateFlags(result, 64)
		}

	case "and":
		if len(operands) == 2 {
			result := value(s, operands[0]) & value(s, operands[1])
			setValue(s, operands[0], result)
			s.UpdateFlags(result, 64)
		}

	case "or":
		if len(operands) == 2 {
			result := value(s, operands[0]) | value(s, operands[1])
			setValue(s, operands[0], result)
			s.UpdateFlags(result, 64)
		}

	case "xor":
		if len(operands) == 2 {
			result := value(s, operands[0]) ^ value(s, operands[1])
			setValue(s, operands[0], result)
			s.UpdateFlags(result, 64)
		}

	case "not":
		if len(operands) == 1 {
			result := ^value(s, operands[0])
			setValue(s, operands[0], result)
			s.UpdateFlags(result, 64)
		}

	case "shl", "sal":
		if len(operands) == 2 {
			result := value(s, operands[0]) << value(s, operands[1])
			setValue(s, operands[0], result)
			s.UpdateFlags(result, 64)
		}

	case "shr":
		if len(operands) == 2 {
			result := value(s, operands[0]) >> value(s, operands[1])
			setValue(s, operands[0], result)
			s.UpdateFlags(result, 64)
		}

	case "cmp":
		if len(operands) == 2 {
			result := value(s, operands[0]) - value(s, operands[1])
			s.UpdateFlags(result, 64)
		}

	case "test":
		if len(operands) == 2 {
			result := value(s, operands[0]) & value(s, operands[1])
			s.UpdateFlags(result, 64)
		}

	case "push":
		if len(operands) == 1 {
			s.Push(value(s, operands[0]))
		}

	case "pop":
		if len(operands) == 1 {
			setValue(s, operands[0], s.Pop())
		}

	case "nop":
		// no effect

	case "leave":
		s.WriteReg("rsp", s.ReadReg("rbp"))
		s.WriteReg("rbp", s.Pop())

	case "call":
		if len(operands) == 1 {
			t = Transfer{Kind: TransferCall, Target: operands[0], HasTarget: true}
		}

	case "ret":
		t = Transfer{Kind: TransferRet}

	case "jmp", "je", "jne", "jl", "jg", "jle", "jge", "jz", "jnz":
		t = Transfer{Kind: TransferJump, Jump: mnemonic}
		if len(operands) > 0 {
			t.Target = operands[0]
			t.HasTarget = true
		}

	default:
		recognized = false
	}

	return t, recognized
}

// mul128 returns the high and low 64-bit halves of the unsigned 128-bit
// product a*b.
func mul128(a, b uint64) (hi, lo uint64) {
	const mask32 = 0xFFFFFFFF
	aLo, aHi := a&mask32, a>>32
	bLo, bHi := b&mask32, b>>32

	lowProduct := aLo * bLo
	mid1 := aHi * bLo
	mid2 := aLo * bHi
	highProduct := aHi * bHi

	var carry uint64
	midSum := mid1 + mid2
	if midSum < mid1 {
		carry = 1 << 32
	}

	lo = lowProduct + (midSum << 32)
	if lo < lowProduct {
		carry++
	}
	hi = highProduct + (midSum >> 32) + carry
	return hi, lo
}

// ShouldJump evaluates a conditional jump's predicate against s's flags.
// Because CF is never written by any instruction in this model, jl/jge/
// jg/jle always observe CF==0 (spec §4.5, §9 open question 1).
func ShouldJump(kind string, f Flags) bool {
	switch kind {
	case "jmp":
		return true
	case "je", "jz":
		return f.ZF
	case "jne", "jnz":
		return !f.ZF
	case "jl":
		return f.SF != f.CF
	case "jge":
		return f.SF == f.CF
	case "jg":
		return !f.ZF && f.SF == f.CF
	case "jle":
		return f.ZF || f.SF != f.CF
	default:
		panic(fmt.Sprintf("vm: unknown jump kind %q", kind))
	}
}
