package vm

import "testing"

func programOf(lines ...string) Program {
	instructions := make([]Instruction, len(lines))
	for i, line := range lines {
		instructions[i] = Instruction{Assembly: line, SourceLine: i + 1, Line: i + 1}
	}
	return Program{Instructions: instructions}
}

func lastReg(snaps []Snapshot, name string) RegisterValue {
	return snaps[len(snaps)-1].Registers[name]
}

// S1: immediate into register.
func TestScenario_ImmediateIntoRegister(t *testing.T) {
	snaps := Run(programOf("mov rax, 5"), 0)
	last := snaps[len(snaps)-1]
	if rax := lastReg(snaps, "rax"); rax.Hex != "0x5" || rax.Decimal != 5 {
		t.Errorf("rax = %+v, want hex=0x5 decimal=5", rax)
	}
	if last.Flags != (Flags{}) {
		t.Errorf("flags = %+v, want all zero", last.Flags)
	}
	if len(last.Stack) != 0 {
		t.Errorf("stack = %+v, want empty", last.Stack)
	}
}

// S2: arithmetic and flags.
func TestScenario_ArithmeticAndFlags(t *testing.T) {
	snaps := Run(programOf("mov rax, 10", "sub rax, 10"), 0)
	last := snaps[len(snaps)-1]
	if rax := lastReg(snaps, "rax"); rax.Decimal != 0 {
		t.Errorf("rax.decimal = %d, want 0", rax.Decimal)
	}
	if !last.Flags.ZF || last.Flags.SF {
		t.Errorf("flags = %+v, want ZF=1 SF=0", last.Flags)
	}
}

// S3: negative result sign flag.
func TestScenario_NegativeResultSignFlag(t *testing.T) {
	snaps := Run(programOf("mov rax, 1", "sub rax, 5"), 0)
	last := snaps[len(snaps)-1]
	rax := lastReg(snaps, "rax")
	if rax.Hex != "0xfffffffffffffffc" || rax.Decimal != -4 {
		t.Errorf("rax = %+v, want hex=0xfffffffffffffffc decimal=-4", rax)
	}
	if last.Flags.ZF || !last.Flags.SF {
		t.Errorf("flags = %+v, want ZF=0 SF=1", last.Flags)
	}
}

// S4: push/pop round trip.
func TestScenario_PushPopRoundTrip(t *testing.T) {
	snaps := Run(programOf("mov rax, 42", "push rax", "mov rax, 0", "pop rbx"), 0)
	last := snaps[len(snaps)-1]
	if rbx := lastReg(snaps, "rbx"); rbx.Decimal != 42 {
		t.Errorf("rbx.decimal = %d, want 42", rbx.Decimal)
	}
	if rax := lastReg(snaps, "rax"); rax.Decimal != 0 {
		t.Errorf("rax.decimal = %d, want 0", rax.Decimal)
	}
	if rsp := lastReg(snaps, "rsp"); rsp.Hex != "0x7fffffffe000" {
		t.Errorf("rsp.hex = %s, want 0x7fffffffe000", rsp.Hex)
	}
	if len(last.Stack) != 0 {
		t.Errorf("stack = %+v, want empty window", last.Stack)
	}
}

// S5: conditional jump taken.
func TestScenario_ConditionalJumpTaken(t *testing.T) {
	snaps := Run(programOf(
		"mov rax, 3",
		"cmp rax, 3",
		"je .Leq",
		"mov rax, 99",
		".Leq:",
		"mov rbx, 7",
	), 0)
	last := snaps[len(snaps)-1]
	if rax := lastReg(snaps, "rax"); rax.Decimal != 3 {
		t.Errorf("rax.decimal = %d, want 3 (mov rax, 99 must be skipped)", rax.Decimal)
	}
	if rbx := lastReg(snaps, "rbx"); rbx.Decimal != 7 {
		t.Errorf("rbx.decimal = %d, want 7", rbx.Decimal)
	}
	if !last.Flags.ZF {
		t.Errorf("flags.ZF = false, want true")
	}
}

// S6: call/ret.
func TestScenario_CallRet(t *testing.T) {
	snaps := Run(programOf(
		"mov rax, 0",
		"call .Lf",
		"mov rbx, 2",
		"jmp .Lend",
		".Lf:",
		"mov rax, 1",
		"ret",
		".Lend:",
		"nop",
	), 0)
	if rax := lastReg(snaps, "rax"); rax.Decimal != 1 {
		t.Errorf("rax.decimal = %d, want 1", rax.Decimal)
	}
	if rbx := lastReg(snaps, "rbx"); rbx.Decimal != 2 {
		t.Errorf("rbx.decimal = %d, want 2", rbx.Decimal)
	}
	if rsp := lastReg(snaps, "rsp"); rsp.Hex != "0x7fffffffe000" {
		t.Errorf("rsp.hex = %s, want 0x7fffffffe000 (return address popped)", rsp.Hex)
	}
}

func TestRun_EmptyProgram(t *testing.T) {
	snaps := Run(Program{}, 0)
	if len(snaps) != 0 {
		t.Errorf("len(snaps) = %d, want 0", len(snaps))
	}
}

func TestRun_InitSnapshot(t *testing.T) {
	snaps := Run(programOf("mov rax, 1"), 0)
	if len(snaps) != 2 {
		t.Fatalf("len(snaps) = %d, want 2 (INIT + one executed)", len(snaps))
	}
	init := snaps[0]
	if init.Instruction.ID != -1 || init.Instruction.Assembly != "INIT" {
		t.Errorf("init snapshot instruction = %+v, want id=-1 assembly=INIT", init.Instruction)
	}
	if init.Step != 0 {
		t.Errorf("init snapshot step = %d, want 0", init.Step)
	}
}

func TestRun_StepBudget(t *testing.T) {
	snaps := Run(programOf(
		"loop:",
		"inc rax",
		"jmp loop",
	), 5)
	if len(snaps) > 6 { // INIT + at most 5 executed steps
		t.Errorf("len(snaps) = %d, want <= 6", len(snaps))
	}
	for i, s := range snaps {
		if s.Step != i {
			t.Errorf("snaps[%d].Step = %d, want %d", i, s.Step, i)
		}
	}
}

func TestRun_LabelPrepass(t *testing.T) {
	snaps := Run(programOf(
		"jmp target",
		"mov rax, 99",
		"target:",
		"mov rbx, 1",
	), 0)
	if rax := lastReg(snaps, "rax"); rax.Decimal != 0 {
		t.Errorf("rax.decimal = %d, want 0 (mov rax, 99 must be jumped over)", rax.Decimal)
	}
	if rbx := lastReg(snaps, "rbx"); rbx.Decimal != 1 {
		t.Errorf("rbx.decimal = %d, want 1", rbx.Decimal)
	}
}

func TestRun_UnresolvedCallFallsThrough(t *testing.T) {
	snaps := Run(programOf("call .Lmissing", "mov rax, 9"), 0)
	last := snaps[len(snaps)-1]
	if rax := lastReg(snaps, "rax"); rax.Decimal != 9 {
		t.Errorf("rax.decimal = %d, want 9 (unresolved call falls through)", rax.Decimal)
	}
	_ = last
}

func TestRun_RetWithEmptyStackTerminates(t *testing.T) {
	snaps := Run(programOf("ret", "mov rax, 9"), 0)
	if rax := lastReg(snaps, "rax"); rax.Decimal != 0 {
		t.Errorf("rax.decimal = %d, want 0 (ret on empty stack terminates before the next mov)", rax.Decimal)
	}
}
