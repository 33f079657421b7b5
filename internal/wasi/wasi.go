// Package wasi is the capability-gated WASI snapshot-preview1 host-call ABI
// (spec.md §1 "specified only via interface", §6 Host-call ABI, §3
// Capabilities). One file per syscall family, following the teacher's own
// imports/wasi_snapshot_preview1 layout of one file per function group. Each
// function here is a wasm.HostFunc: reads typed args, consults
// Capabilities, does the one-line OS call, writes a WASI errno into
// results[0]. Actual file-descriptor bookkeeping, directory preopens, and
// socket implementations are the external collaborator spec.md §1 carves
// out (internal/sysfs in the teacher's tree) — these dispatchers are
// intentionally thin, matching how thin the teacher's own
// wasi_snapshot_preview1 dispatch layer is relative to internal/sysfs.
package wasi

import "github.com/zwasm/zwasm/internal/wasm"

// Errno is a WASI snapshot-preview1 error code, returned as a Wasm i32
// result rather than a trap (spec.md §6: "Traps only for ABI misuse ...
// not for ordinary I/O errors").
type Errno = uint32

const (
	ErrnoSuccess Errno = 0
	ErrnoAcces   Errno = 2  // permission denied — used for capability-gate failures
	ErrnoBadf    Errno = 8
	ErrnoFault   Errno = 21
	ErrnoInval   Errno = 28
	ErrnoIo      Errno = 29
	ErrnoNotsup  Errno = 58
)

// Module is the set of registered WASI host functions plus the Capabilities
// they consult, ready to be added as imports under the "wasi_snapshot_preview1"
// module name (spec.md §6).
type Module struct {
	Env  []string // "K=V" pairs populated only by the CLI's --env flag (spec.md §6 Environment)
	Args []string
}

// HostFuncs returns the name -> HostFunc table for this WASI module,
// suitable for registering as imports on a host Instance before linking
// guest modules against it.
func (m *Module) HostFuncs() map[string]wasm.HostFunc {
	return map[string]wasm.HostFunc{
		"args_get":             m.argsGet,
		"args_sizes_get":       m.argsSizesGet,
		"environ_get":          m.environGet,
		"environ_sizes_get":    m.environSizesGet,
		"clock_time_get":       clockTimeGet,
		"clock_res_get":        clockResGet,
		"random_get":           randomGet,
		"proc_exit":            procExit,
		"fd_read":              fdRead,
		"fd_write":             fdWrite,
		"fd_close":             fdClose,
		"fd_seek":              fdSeek,
		"path_open":            pathOpen,
		"poll_oneoff":          pollOneoff,
		"sock_accept":          sockAccept,
	}
}

// denied writes ErrnoAcces into results[0] and returns success (a denial is
// a normal WASI errno, never a trap — spec.md §8 property 6, §3
// Capabilities: "fail ... without reaching the operating system").
func denied(results []uint64) *wasm.WasmError {
	results[0] = uint64(ErrnoAcces)
	return nil
}

func ok(results []uint64, errno Errno) *wasm.WasmError {
	results[0] = uint64(errno)
	return nil
}

// readMemArg validates that off..off+size lies within vm's first memory,
// returning the backing slice or an ABI-misuse trap (a malformed iovec,
// spec.md §6, is the one case that traps rather than returning an errno).
func readMemArg(vm *wasm.VMContext, off, size uint32) ([]byte, *wasm.WasmError) {
	mem := vm.Instance.Memory()
	if mem == nil {
		return nil, wasm.NewError(wasm.ErrTrap, "wasi: module declares no memory")
	}
	b, ok := mem.Read(off, size)
	if !ok {
		return nil, wasm.NewError(wasm.ErrTrap, "wasi: malformed pointer/length argument")
	}
	return b, nil
}
