// Package jit is the Tier 3 ARM64 native-code accelerator (spec.md
// §4.5-§4.7). It is never the module's configured wasm.Engine: the
// interpreter (internal/interpreter) owns compilation and execution for
// every function, and is the only engine internal/wasm's Store talks to
// directly. A function's hotness instead drives promotion out-of-band —
// wasm.Store.RequestPromotion is a func field rather than an Engine method
// precisely so internal/wasm (and internal/interpreter) never import this
// package; the root-level runtime wires RequestPromotion to Compile and
// stashes a successful result on FunctionInstance.JIT, and routes a call
// through Call instead of the interpreter whenever that field is set.
package jit

import "github.com/zwasm/zwasm/internal/regir"

// Compile attempts to turn an already-lowered RegFunc into native code.
// Reports (nil, false) when the arch-specific backend can't handle it
// (calls, floats, globals, tables, bulk-memory, br_table — see DESIGN.md);
// the caller keeps running that function on the interpreter.
func Compile(rf *regir.RegFunc) (*Code, bool) {
	return tryCompileNative(rf)
}
