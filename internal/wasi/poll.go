package wasi

import "github.com/zwasm/zwasm/internal/wasm"

// pollOneoff is gated by AllowFD (polling only makes sense over
// descriptors); this runtime has no event-loop to poll against, so it
// always reports zero ready events rather than trapping, matching the WASI
// spec's "may return spuriously with nevents=0" allowance.
func pollOneoff(vm *wasm.VMContext, args []uint64, results []uint64) *wasm.WasmError {
	if !vm.Instance.Capabilities.AllowFD {
		return denied(results)
	}
	nEventsPtr := uint32(args[3])
	mem := vm.Instance.Memory()
	if mem == nil {
		return wasm.NewError(wasm.ErrTrap, "wasi: module declares no memory")
	}
	if !mem.WriteUint32Le(nEventsPtr, 0) {
		return wasm.NewError(wasm.ErrTrap, "wasi: poll_oneoff nevents out of bounds")
	}
	return ok(results, ErrnoSuccess)
}
