package vm

import (
	"math/rand"
	"testing"
)

// TestProperty_AliasWritePreservesHighDword is invariant 4 run over a
// spread of random values instead of one fixed example.
func TestProperty_AliasWritePreservesHighDword(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		high := r.Uint64() & 0xFFFFFFFF00000000
		low := r.Uint64() & 0x00000000FFFFFFFF
		s := NewCPUState()
		s.WriteReg("rax", high)
		s.WriteReg("eax", low)
		if got, want := s.ReadReg("rax"), high|low; got != want {
			t.Fatalf("rax = 0x%x, want 0x%x (high=0x%x low=0x%x)", got, want, high, low)
		}
	}
}

// TestProperty_PushPopRoundTrip is invariants 2 and 3: any sequence of
// pushes followed by pops in reverse order returns exactly what was pushed,
// and rsp returns to its starting value.
func TestProperty_PushPopRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for trial := 0; trial < 100; trial++ {
		s := NewCPUState()
		before := s.ReadReg("rsp")
		n := r.Intn(20) + 1
		values := make([]uint64, n)
		for i := range values {
			values[i] = r.Uint64()
			s.Push(values[i])
		}
		if got, want := s.ReadReg("rsp"), before-uint64(8*n); got != want {
			t.Fatalf("rsp after %d pushes = 0x%x, want 0x%x", n, got, want)
		}
		for i := n - 1; i >= 0; i-- {
			if got := s.Pop(); got != values[i] {
				t.Fatalf("pop %d = %d, want %d", i, got, values[i])
			}
		}
		if got := s.ReadReg("rsp"); got != before {
			t.Fatalf("rsp after round trip = 0x%x, want 0x%x", got, before)
		}
	}
}

// TestProperty_XorSelfAlwaysZeroesAndSetsZF is invariant 5 over random
// starting values.
func TestProperty_XorSelfAlwaysZeroesAndSetsZF(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		s := NewCPUState()
		s.WriteReg("rax", r.Uint64())
		run(t, s, "xor rax, rax")
		if s.ReadReg("rax") != 0 {
			t.Fatalf("rax = %d, want 0", s.ReadReg("rax"))
		}
		if !s.Flags.ZF || s.Flags.SF {
			t.Fatalf("flags = %+v, want ZF=true SF=false", s.Flags)
		}
	}
}

// TestProperty_CmpMatchesSubFlagsWithoutWriting is invariant 6 over random
// operand pairs: cmp and the equivalent sub always agree on ZF and SF, and
// cmp never writes its destination.
func TestProperty_CmpMatchesSubFlagsWithoutWriting(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	for i := 0; i < 200; i++ {
		a := r.Uint64()
		b := r.Uint64()

		left := NewCPUState()
		left.WriteReg("rax", a)
		left.WriteReg("rbx", b)
		run(t, left, "cmp rax, rbx")

		right := NewCPUState()
		right.WriteReg("rax", a)
		right.WriteReg("rbx", b)
		run(t, right, "sub rax, rbx")

		if left.Flags != right.Flags {
			t.Fatalf("a=%d b=%d: cmp flags %+v != sub flags %+v", a, b, left.Flags, right.Flags)
		}
		if left.ReadReg("rax") != a {
			t.Fatalf("cmp must not write rax, got %d want %d", left.ReadReg("rax"), a)
		}
	}
}

// TestProperty_RegisterValuesStayWithin64Bits is invariant 1: no sequence
// of arithmetic ever produces a register value outside uint64 range
// (trivially true in Go, but confirms masking in UpdateFlags/semantics
// never panics or leaves an invalid width).
func TestProperty_RegisterValuesStayWithin64Bits(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	mnemonics := []string{"add", "sub", "and", "or", "xor"}
	for i := 0; i < 200; i++ {
		s := NewCPUState()
		s.WriteReg("rax", r.Uint64())
		s.WriteReg("rbx", r.Uint64())
		m := mnemonics[r.Intn(len(mnemonics))]
		run(t, s, m+" rax, rbx")
		// No explicit bound check needed: ReadReg's type is uint64, so any
		// value returned is already within range. This test exists to
		// confirm semantics.go never panics across the operator set.
		_ = s.ReadReg("rax")
	}
}

// TestProperty_SnapshotStepsAreSequential is the step-ordering invariant
// from the driver: regardless of program shape, snapshot Step fields are
// exactly 0..len(snapshots)-1 in order.
func TestProperty_SnapshotStepsAreSequential(t *testing.T) {
	r := rand.New(rand.NewSource(6))
	pool := []string{"nop", "mov rax, 1", "add rax, rbx", "inc rax", "push rax", "pop rbx"}
	for trial := 0; trial < 30; trial++ {
		n := r.Intn(15) + 1
		lines := make([]string, n)
		for i := range lines {
			lines[i] = pool[r.Intn(len(pool))]
		}
		snaps := Run(programOf(lines...), 0)
		for i, snap := range snaps {
			if snap.Step != i {
				t.Fatalf("trial %d: snaps[%d].Step = %d, want %d", trial, i, snap.Step, i)
			}
		}
	}
}

// TestProperty_SnapshotStackNeverExceedsWindow is the bound from spec §3:
// no snapshot ever reports more than maxStackEntries stack entries no
// matter how many pushes precede it.
func TestProperty_SnapshotStackNeverExceedsWindow(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	n := r.Intn(50) + maxStackEntries
	lines := make([]string, 0, n+1)
	lines = append(lines, "mov rax, 1")
	for i := 0; i < n; i++ {
		lines = append(lines, "push rax")
	}
	snaps := Run(programOf(lines...), 0)
	for _, snap := range snaps {
		if len(snap.Stack) > maxStackEntries {
			t.Fatalf("snapshot reports %d stack entries, want <= %d", len(snap.Stack), maxStackEntries)
		}
	}
}
