package wasm

import (
	"fmt"
	"math"
)

// GlobalInstance is a runtime cell holding a ValueType-typed value and a
// mutability flag (spec.md §3). Val holds the full 64-bit representation
// regardless of the logical width (an f32 is stored in the low 32 bits).
type GlobalInstance struct {
	Type GlobalType
	Val  uint64
	// ValHi holds the high 64 bits for v128-typed globals; unused otherwise.
	ValHi uint64
}

// Get returns the raw 64-bit value, matching api.Global.Get's encoding.
func (g *GlobalInstance) Get() uint64 { return g.Val }

// Set stores v, without checking mutability — callers (store/instance
// binding, globals.set opcode) are responsible for rejecting writes to an
// immutable global before calling this (ErrImmutableGlobal, spec.md §4.2).
func (g *GlobalInstance) Set(v uint64) { g.Val = v }

func (g *GlobalInstance) String() string {
	switch g.Type.ValType {
	case ValueTypeF32:
		return fmt.Sprintf("global(%f)", math.Float32frombits(uint32(g.Val)))
	case ValueTypeF64:
		return fmt.Sprintf("global(%f)", math.Float64frombits(g.Val))
	default:
		return fmt.Sprintf("global(%d)", g.Val)
	}
}
