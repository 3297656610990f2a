// Package luacond evaluates Lua-scripted breakpoint predicates over a
// vm.Snapshot. A predicate is a single Lua expression (it is run as
// "return <expr>", so statement blocks are not accepted) that sees the
// snapshot's registers and flags as globals and must produce a boolean.
package luacond

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/otley-labs/x86trace/vm"
)

// Predicate is a Lua boolean expression, reusable across many snapshots.
// The script is kept as text and parsed afresh on every Eval.
type Predicate struct {
	script string
}

// Compile wraps script for later evaluation. script must be a Lua
// expression; Compile does not execute it, so a syntax error only
// surfaces on the first Eval call.
func Compile(script string) *Predicate {
	return &Predicate{script: script}
}

// Eval runs p against snap in a fresh Lua state and reports whether the
// script evaluated to a truthy value. Registers are exposed as globals
// named by their lowercase x86 name (rax, ebx, ...) holding the signed
// decimal value; flags are exposed as zf, sf, cf booleans; the current
// step count is exposed as step.
func (p *Predicate) Eval(snap vm.Snapshot) (bool, error) {
	L := lua.NewState()
	defer L.Close()

	for name, reg := range snap.Registers {
		L.SetGlobal(name, lua.LNumber(reg.Decimal))
	}
	L.SetGlobal("zf", lua.LBool(snap.Flags.ZF))
	L.SetGlobal("sf", lua.LBool(snap.Flags.SF))
	L.SetGlobal("cf", lua.LBool(snap.Flags.CF))
	L.SetGlobal("step", lua.LNumber(snap.Step))

	chunk := "return " + p.script
	if err := L.DoString(chunk); err != nil {
		return false, fmt.Errorf("luacond: %w", err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret), nil
}
