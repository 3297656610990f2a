// Package breakpoint parses and evaluates simple conditional-breakpoint
// expressions against a vm.Snapshot: register comparisons, flag checks,
// and step thresholds.
package breakpoint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/otley-labs/x86trace/vm"
)

// Op identifies a comparison operator.
type Op int

const (
	OpEqual Op = iota
	OpNotEqual
	OpLess
	OpGreater
	OpLessEqual
	OpGreaterEqual
)

// Source identifies which part of a snapshot a Condition reads.
type Source int

const (
	SourceRegister Source = iota
	SourceFlag
	SourceStep
)

// Condition is a single parsed breakpoint predicate of the form
// "<lhs><op><value>", e.g. "rax==0x10", "zf==1", "step>=5".
type Condition struct {
	Source  Source
	Reg     string
	Flag    string
	Op      Op
	Value   int64
}

var operators = []string{"==", "!=", "<=", ">=", "<", ">"}

var flagNames = map[string]bool{"zf": true, "sf": true, "cf": true}

// Parse parses text into a Condition. An empty condition is rejected;
// callers treat a nil *Condition (never produced here) as unconditional.
func Parse(text string) (*Condition, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("breakpoint: empty condition")
	}

	var opStr string
	var opIdx int
	for _, candidate := range operators {
		if idx := strings.Index(text, candidate); idx >= 0 {
			opStr, opIdx = candidate, idx
			break
		}
	}
	if opStr == "" {
		return nil, fmt.Errorf("breakpoint: no operator in %q (use ==, !=, <, >, <=, >=)", text)
	}

	lhs := strings.TrimSpace(text[:opIdx])
	rhs := strings.TrimSpace(text[opIdx+len(opStr):])

	value, err := parseValue(rhs)
	if err != nil {
		return nil, fmt.Errorf("breakpoint: invalid value %q: %w", rhs, err)
	}

	op := parseOp(opStr)
	lower := strings.ToLower(lhs)

	switch {
	case lower == "step":
		return &Condition{Source: SourceStep, Op: op, Value: value}, nil
	case flagNames[lower]:
		return &Condition{Source: SourceFlag, Flag: lower, Op: op, Value: value}, nil
	default:
		if vm.ParseOperand(lower).Kind != vm.OperandReg {
			return nil, fmt.Errorf("breakpoint: unknown register %q", lhs)
		}
		return &Condition{Source: SourceRegister, Reg: lower, Op: op, Value: value}, nil
	}
}

func parseOp(s string) Op {
	switch s {
	case "==":
		return OpEqual
	case "!=":
		return OpNotEqual
	case "<":
		return OpLess
	case ">":
		return OpGreater
	case "<=":
		return OpLessEqual
	default:
		return OpGreaterEqual
	}
}

func parseValue(tok string) (int64, error) {
	if tok == "true" {
		return 1, nil
	}
	if tok == "false" {
		return 0, nil
	}
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		v, err := strconv.ParseInt(tok[2:], 16, 64)
		return v, err
	}
	return strconv.ParseInt(tok, 10, 64)
}

// Eval reports whether c holds against snap. A nil Condition is
// unconditional and always holds.
func Eval(c *Condition, snap vm.Snapshot) bool {
	if c == nil {
		return true
	}

	var actual int64
	switch c.Source {
	case SourceRegister:
		reg, ok := snap.Registers[c.Reg]
		if !ok {
			return false
		}
		actual = reg.Decimal
	case SourceFlag:
		actual = boolToInt(flagValue(snap.Flags, c.Flag))
	case SourceStep:
		actual = int64(snap.Step)
	}

	return compare(actual, c.Op, c.Value)
}

func flagValue(f vm.Flags, name string) bool {
	switch name {
	case "zf":
		return f.ZF
	case "sf":
		return f.SF
	case "cf":
		return f.CF
	default:
		return false
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func compare(actual int64, op Op, expected int64) bool {
	switch op {
	case OpEqual:
		return actual == expected
	case OpNotEqual:
		return actual != expected
	case OpLess:
		return actual < expected
	case OpGreater:
		return actual > expected
	case OpLessEqual:
		return actual <= expected
	case OpGreaterEqual:
		return actual >= expected
	default:
		return false
	}
}

// Format renders c back into its textual form, mainly for echoing a
// breakpoint back to the user after it is set.
func Format(c *Condition) string {
	if c == nil {
		return ""
	}
	var lhs string
	switch c.Source {
	case SourceRegister:
		lhs = c.Reg
	case SourceFlag:
		lhs = c.Flag
	case SourceStep:
		lhs = "step"
	}
	return fmt.Sprintf("%s%s%d", lhs, opString(c.Op), c.Value)
}

func opString(op Op) string {
	switch op {
	case OpEqual:
		return "=="
	case OpNotEqual:
		return "!="
	case OpLess:
		return "<"
	case OpGreater:
		return ">"
	case OpLessEqual:
		return "<="
	default:
		return ">="
	}
}
