// operand.go - textual operand classification (C1)

package vm

import (
	"regexp"
	"strconv"
	"strings"
)

// OperandKind identifies which variant of Operand is populated.
type OperandKind int

const (
	OperandReg OperandKind = iota
	OperandImm
	OperandMem
	OperandLabel
	OperandUnknown
)

// Operand is a tagged value produced by ParseOperand. Exactly the fields
// relevant to Kind are meaningful; the rest are zero.
type Operand struct {
	Kind OperandKind

	Reg string // OperandReg, OperandMem (base register)

	Imm int64 // OperandImm

	Disp int64 // OperandMem

	Label string // OperandLabel

	Raw string // OperandUnknown: original text
}

var memPattern = regexp.MustCompile(`\[([^\]]+)\]`)

// ParseOperand classifies a single textual operand (whitespace already
// stripped by the caller) into a tagged Operand. It never fails: text it
// cannot otherwise classify becomes OperandUnknown.
func ParseOperand(text string) Operand {
	text = strings.TrimSpace(text)

	if isRegisterName(text) {
		return Operand{Kind: OperandReg, Reg: text}
	}

	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		if v, err := strconv.ParseInt(text[2:], 16, 64); err == nil {
			return Operand{Kind: OperandImm, Imm: v}
		}
	} else if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return Operand{Kind: OperandImm, Imm: v}
	}

	if m := memPattern.FindStringSubmatch(text); m != nil {
		base, disp := parseMemExpr(m[1])
		return Operand{Kind: OperandMem, Reg: base, Disp: disp}
	}

	if strings.HasPrefix(text, ".L") || strings.HasSuffix(text, ":") {
		return Operand{Kind: OperandLabel, Label: strings.TrimSuffix(text, ":")}
	}

	return Operand{Kind: OperandUnknown, Raw: text}
}

// parseMemExpr splits the inside of "[...]" on the first '+' or '-',
// matching the source's simple splitter: only base+displacement is
// supported, indexed/scaled forms are not.
func parseMemExpr(expr string) (base string, disp int64) {
	plusIdx := strings.Index(expr, "+")
	minusIdx := strings.Index(expr, "-")

	switch {
	case plusIdx >= 0 && (minusIdx < 0 || plusIdx < minusIdx):
		base = strings.TrimSpace(expr[:plusIdx])
		disp = parseDispRadix(strings.TrimSpace(expr[plusIdx+1:]))
	case minusIdx >= 0:
		base = strings.TrimSpace(expr[:minusIdx])
		disp = -parseDispRadix(strings.TrimSpace(expr[minusIdx+1:]))
	default:
		base = strings.TrimSpace(expr)
		disp = 0
	}
	return base, disp
}

// parseDispRadix parses a displacement token with radix auto-detection:
// a "0x"/"0X" prefix means hex, otherwise decimal. Unparseable text
// yields 0, matching the parser's never-fail contract.
func parseDispRadix(tok string) int64 {
	if tok == "" {
		return 0
	}
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		v, _ := strconv.ParseInt(tok[2:], 16, 64)
		return v
	}
	v, _ := strconv.ParseInt(tok, 10, 64)
	return v
}

func isRegisterName(name string) bool {
	if _, ok := reg64Index[name]; ok {
		return true
	}
	_, ok := reg32Aliases[name]
	return ok
}
