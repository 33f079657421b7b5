package wasi

import "github.com/zwasm/zwasm/internal/wasm"

// procExit raises a distinguished Trap carrying the exit code, which the
// outermost invoker (cmd/zwasm) checks to override the default exit status
// (spec.md §7 "WASI proc_exit stores its argument in the VM and then raises
// a Trap"). Never capability-gated: exiting needs no host resource.
func procExit(vm *wasm.VMContext, args []uint64, results []uint64) *wasm.WasmError {
	code := uint32(args[0])
	vm.Instance.CloseWithExitCode(code)
	return wasm.NewError(wasm.ErrTrap, "proc_exit")
}

// argsGet/argsSizesGet expose the CLI's positional ARGS (spec.md §6 CLI
// surface `run ... FILE.wasm [ARGS...]`), gated by nothing — args are
// supplied explicitly by the embedder, not read from the OS.
func (m *Module) argsGet(vm *wasm.VMContext, args []uint64, results []uint64) *wasm.WasmError {
	argvPtr, argvBufPtr := uint32(args[0]), uint32(args[1])
	mem := vm.Instance.Memory()
	if mem == nil {
		return wasm.NewError(wasm.ErrTrap, "wasi: module declares no memory")
	}
	bufPos := argvBufPtr
	for i, a := range m.Args {
		if !mem.WriteUint32Le(argvPtr+uint32(i*4), bufPos) {
			return wasm.NewError(wasm.ErrTrap, "wasi: args_get argv out of bounds")
		}
		if !mem.Write(bufPos, append([]byte(a), 0)) {
			return wasm.NewError(wasm.ErrTrap, "wasi: args_get argv_buf out of bounds")
		}
		bufPos += uint32(len(a)) + 1
	}
	return ok(results, ErrnoSuccess)
}

func (m *Module) argsSizesGet(vm *wasm.VMContext, args []uint64, results []uint64) *wasm.WasmError {
	countPtr, bufSizePtr := uint32(args[0]), uint32(args[1])
	mem := vm.Instance.Memory()
	if mem == nil {
		return wasm.NewError(wasm.ErrTrap, "wasi: module declares no memory")
	}
	var bufSize uint32
	for _, a := range m.Args {
		bufSize += uint32(len(a)) + 1
	}
	if !mem.WriteUint32Le(countPtr, uint32(len(m.Args))) || !mem.WriteUint32Le(bufSizePtr, bufSize) {
		return wasm.NewError(wasm.ErrTrap, "wasi: args_sizes_get out of bounds")
	}
	return ok(results, ErrnoSuccess)
}

// environGet/environSizesGet expose only what `--env K=V` populated
// (spec.md §6 Environment: "No environment variables are consulted by the
// core"), gated by Capabilities.AllowEnv.
func (m *Module) environGet(vm *wasm.VMContext, args []uint64, results []uint64) *wasm.WasmError {
	if !vm.Instance.Capabilities.AllowEnv {
		return denied(results)
	}
	environPtr, environBufPtr := uint32(args[0]), uint32(args[1])
	mem := vm.Instance.Memory()
	if mem == nil {
		return wasm.NewError(wasm.ErrTrap, "wasi: module declares no memory")
	}
	bufPos := environBufPtr
	for i, e := range m.Env {
		if !mem.WriteUint32Le(environPtr+uint32(i*4), bufPos) {
			return wasm.NewError(wasm.ErrTrap, "wasi: environ_get environ out of bounds")
		}
		if !mem.Write(bufPos, append([]byte(e), 0)) {
			return wasm.NewError(wasm.ErrTrap, "wasi: environ_get environ_buf out of bounds")
		}
		bufPos += uint32(len(e)) + 1
	}
	return ok(results, ErrnoSuccess)
}

func (m *Module) environSizesGet(vm *wasm.VMContext, args []uint64, results []uint64) *wasm.WasmError {
	if !vm.Instance.Capabilities.AllowEnv {
		return denied(results)
	}
	countPtr, bufSizePtr := uint32(args[0]), uint32(args[1])
	mem := vm.Instance.Memory()
	if mem == nil {
		return wasm.NewError(wasm.ErrTrap, "wasi: module declares no memory")
	}
	var bufSize uint32
	for _, e := range m.Env {
		bufSize += uint32(len(e)) + 1
	}
	if !mem.WriteUint32Le(countPtr, uint32(len(m.Env))) || !mem.WriteUint32Le(bufSizePtr, bufSize) {
		return wasm.NewError(wasm.ErrTrap, "wasi: environ_sizes_get out of bounds")
	}
	return ok(results, ErrnoSuccess)
}
