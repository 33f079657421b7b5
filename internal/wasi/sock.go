package wasi

import "github.com/zwasm/zwasm/internal/wasm"

// sockAccept is gated by AllowFD (the closest capability this model has to
// a networking gate — spec.md §3 Capabilities names no separate
// allow_net). Sockets are not implemented: this always reports ErrnoNotsup,
// matching pathOpen's stance that real I/O backends are sysfs's job.
func sockAccept(vm *wasm.VMContext, args []uint64, results []uint64) *wasm.WasmError {
	if !vm.Instance.Capabilities.AllowFD {
		return denied(results)
	}
	return ok(results, ErrnoNotsup)
}
