//go:build arm64

package jit

import "unsafe"

// invokeNative enters a compiled native blob at addr with the C-ABI-ish
// contract spec.md §4.6 describes, narrowed to this tier's scope (no vm/
// instance pointers — see DESIGN.md): regs is the register window's base
// address, memBase/memLen describe linear memory 0 (nil/0 when the
// function never touches memory). Returns 0 on success or a trap ordinal
// (wasm.ErrorKind.TrapOrdinal).
func invokeNative(addr uintptr, regs unsafe.Pointer, memBase unsafe.Pointer, memLen uint64) uint64 {
	return invokeNativeAsm(addr, regs, memBase, memLen)
}

// invokeNativeAsm is implemented in trampoline_arm64.s: it loads regs,
// memBase and memLen into R0-R2, puts addr in R16 and calls it with BL (R16).
func invokeNativeAsm(addr uintptr, regs unsafe.Pointer, memBase unsafe.Pointer, memLen uint64) uint64
