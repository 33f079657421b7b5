package wasi

import (
	"crypto/rand"

	"github.com/zwasm/zwasm/internal/wasm"
)

// randomGet fills args[0]..args[0]+args[1] with cryptographically random
// bytes (crypto/rand, matching the teacher's own choice over math/rand for
// WASI randomness). Never capability-gated: the WASI spec does not treat
// entropy as a sandboxable resource, and spec.md §3 Capabilities lists only
// read/write/env/path/fd.
func randomGet(vm *wasm.VMContext, args []uint64, results []uint64) *wasm.WasmError {
	bufPtr, bufLen := uint32(args[0]), uint32(args[1])
	mem := vm.Instance.Memory()
	if mem == nil {
		return wasm.NewError(wasm.ErrTrap, "wasi: module declares no memory")
	}
	buf := make([]byte, bufLen)
	if _, err := rand.Read(buf); err != nil {
		return ok(results, ErrnoIo)
	}
	if !mem.Write(bufPtr, buf) {
		return wasm.NewError(wasm.ErrTrap, "wasi: random_get buffer out of bounds")
	}
	return ok(results, ErrnoSuccess)
}
