package luacond

import (
	"testing"

	"github.com/otley-labs/x86trace/vm"
)

func snapshotWith(rax int64, zf bool, step int) vm.Snapshot {
	return vm.Snapshot{
		Step:      step,
		Registers: map[string]vm.RegisterValue{"rax": {Decimal: rax}},
		Flags:     vm.Flags{ZF: zf},
	}
}

func TestEval_RegisterComparison(t *testing.T) {
	p := Compile("rax == 42")
	ok, err := p.Eval(snapshotWith(42, false, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected predicate to hold for rax==42")
	}

	ok, err = p.Eval(snapshotWith(41, false, 0))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected predicate not to hold for rax==41")
	}
}

func TestEval_FlagAndCompoundExpression(t *testing.T) {
	p := Compile("zf and rax > 10")
	ok, err := p.Eval(snapshotWith(20, true, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected compound predicate to hold")
	}

	ok, err = p.Eval(snapshotWith(20, false, 0))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected compound predicate to fail when zf is false")
	}
}

func TestEval_StepGlobal(t *testing.T) {
	p := Compile("step >= 3")
	ok, err := p.Eval(snapshotWith(0, false, 3))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected step predicate to hold at step 3")
	}
}

func TestEval_SyntaxErrorSurfaces(t *testing.T) {
	p := Compile("this is not lua ===")
	if _, err := p.Eval(snapshotWith(0, false, 0)); err == nil {
		t.Error("expected a syntax error from an invalid script")
	}
}

func TestEval_IndependentAcrossCalls(t *testing.T) {
	// Each Eval call runs in a fresh Lua state, so the same compiled
	// Predicate must react to whatever snapshot it is given rather than
	// memoizing the first snapshot's globals.
	p := Compile("rax == 5")
	for _, v := range []int64{1, 0, 5} {
		ok, err := p.Eval(snapshotWith(v, false, 0))
		if err != nil {
			t.Fatal(err)
		}
		if ok != (v == 5) {
			t.Errorf("rax=%d: predicate = %v, want %v", v, ok, v == 5)
		}
	}
}
