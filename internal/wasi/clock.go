package wasi

import (
	"time"

	"github.com/zwasm/zwasm/internal/wasm"
)

// Clock ids per the WASI snapshot-preview1 spec.
const (
	clockRealtime  = 0
	clockMonotonic = 1
)

// clockTimeGet writes a nanosecond timestamp to the pointer in args[2].
// Never capability-gated — wall-clock reads are not a sandboxed resource
// under this runtime's Capabilities model (spec.md §3 only names
// read/write/env/path/fd).
func clockTimeGet(vm *wasm.VMContext, args []uint64, results []uint64) *wasm.WasmError {
	id, resultPtr := uint32(args[0]), uint32(args[2])
	mem := vm.Instance.Memory()
	if mem == nil {
		return wasm.NewError(wasm.ErrTrap, "wasi: module declares no memory")
	}
	var now int64
	switch id {
	case clockRealtime:
		now = time.Now().UnixNano()
	case clockMonotonic:
		now = int64(time.Since(processStart))
	default:
		return ok(results, ErrnoInval)
	}
	if !mem.WriteUint64Le(resultPtr, uint64(now)) {
		return wasm.NewError(wasm.ErrTrap, "wasi: clock_time_get result out of bounds")
	}
	return ok(results, ErrnoSuccess)
}

// clockResGet reports 1ns resolution for either clock, matching the
// teacher's own Go-runtime-backed clock implementation.
func clockResGet(vm *wasm.VMContext, args []uint64, results []uint64) *wasm.WasmError {
	resultPtr := uint32(args[1])
	mem := vm.Instance.Memory()
	if mem == nil {
		return wasm.NewError(wasm.ErrTrap, "wasi: module declares no memory")
	}
	if !mem.WriteUint64Le(resultPtr, 1) {
		return wasm.NewError(wasm.ErrTrap, "wasi: clock_res_get result out of bounds")
	}
	return ok(results, ErrnoSuccess)
}

var processStart = time.Now()
