package wasi

import (
	"os"

	"github.com/zwasm/zwasm/internal/wasm"
)

// fdRead gathers one or more iovecs (ptr,len pairs at args[1]) and reads
// from the host fd args[0] into them, gated by AllowRead and AllowFD
// (spec.md §3 Capabilities, §8 property 6: "every read-style WASI call
// returns the capability-denied errno without touching the host file
// system"). Only stdin (fd 0) is wired to a real os.File; any other fd
// returns ErrnoBadf since directory/file-descriptor bookkeeping is
// internal/sysfs's job, explicitly out of scope here (spec.md §1).
func fdRead(vm *wasm.VMContext, args []uint64, results []uint64) *wasm.WasmError {
	if !vm.Instance.Capabilities.AllowRead || !vm.Instance.Capabilities.AllowFD {
		return denied(results)
	}
	fd, iovsPtr, iovsLen, nreadPtr := uint32(args[0]), uint32(args[1]), uint32(args[2]), uint32(args[3])
	if fd != 0 {
		return ok(results, ErrnoBadf)
	}
	mem := vm.Instance.Memory()
	if mem == nil {
		return wasm.NewError(wasm.ErrTrap, "wasi: module declares no memory")
	}
	var total uint32
	for i := uint32(0); i < iovsLen; i++ {
		ptr, ok1 := mem.ReadUint32Le(iovsPtr + i*8)
		length, ok2 := mem.ReadUint32Le(iovsPtr + i*8 + 4)
		if !ok1 || !ok2 {
			return wasm.NewError(wasm.ErrTrap, "wasi: fd_read malformed iovec")
		}
		buf := make([]byte, length)
		n, _ := os.Stdin.Read(buf)
		if n > 0 && !mem.Write(ptr, buf[:n]) {
			return wasm.NewError(wasm.ErrTrap, "wasi: fd_read iovec buffer out of bounds")
		}
		total += uint32(n)
		if n < int(length) {
			break
		}
	}
	if !mem.WriteUint32Le(nreadPtr, total) {
		return wasm.NewError(wasm.ErrTrap, "wasi: fd_read nread out of bounds")
	}
	return ok(results, ErrnoSuccess)
}

// fdWrite is the write-side mirror of fdRead, gated by AllowWrite and
// AllowFD, wired only to fd 1 (stdout) and fd 2 (stderr).
func fdWrite(vm *wasm.VMContext, args []uint64, results []uint64) *wasm.WasmError {
	if !vm.Instance.Capabilities.AllowWrite || !vm.Instance.Capabilities.AllowFD {
		return denied(results)
	}
	fd, iovsPtr, iovsLen, nwrittenPtr := uint32(args[0]), uint32(args[1]), uint32(args[2]), uint32(args[3])
	var w *os.File
	switch fd {
	case 1:
		w = os.Stdout
	case 2:
		w = os.Stderr
	default:
		return ok(results, ErrnoBadf)
	}
	mem := vm.Instance.Memory()
	if mem == nil {
		return wasm.NewError(wasm.ErrTrap, "wasi: module declares no memory")
	}
	var total uint32
	for i := uint32(0); i < iovsLen; i++ {
		ptr, ok1 := mem.ReadUint32Le(iovsPtr + i*8)
		length, ok2 := mem.ReadUint32Le(iovsPtr + i*8 + 4)
		if !ok1 || !ok2 {
			return wasm.NewError(wasm.ErrTrap, "wasi: fd_write malformed iovec")
		}
		data, readOk := mem.Read(ptr, length)
		if !readOk {
			return wasm.NewError(wasm.ErrTrap, "wasi: fd_write iovec buffer out of bounds")
		}
		n, err := w.Write(data)
		total += uint32(n)
		if err != nil {
			return ok(results, ErrnoIo)
		}
	}
	if !mem.WriteUint32Le(nwrittenPtr, total) {
		return wasm.NewError(wasm.ErrTrap, "wasi: fd_write nwritten out of bounds")
	}
	return ok(results, ErrnoSuccess)
}

// fdClose is gated only by AllowFD: closing fd 0-2 is a no-op here since
// they are process-owned, not instance-owned.
func fdClose(vm *wasm.VMContext, args []uint64, results []uint64) *wasm.WasmError {
	if !vm.Instance.Capabilities.AllowFD {
		return denied(results)
	}
	return ok(results, ErrnoSuccess)
}

// fdSeek is unsupported without a real fd table; returns ErrnoBadf for any
// fd, gated by AllowFD so a denied capability is reported first.
func fdSeek(vm *wasm.VMContext, args []uint64, results []uint64) *wasm.WasmError {
	if !vm.Instance.Capabilities.AllowFD {
		return denied(results)
	}
	return ok(results, ErrnoBadf)
}

// pathOpen is the sole path-resolving syscall wired here; gated by
// AllowPath, it always reports ErrnoNotsup since a real filesystem view is
// internal/sysfs's responsibility (spec.md §1 external collaborator list).
func pathOpen(vm *wasm.VMContext, args []uint64, results []uint64) *wasm.WasmError {
	if !vm.Instance.Capabilities.AllowPath {
		return denied(results)
	}
	return ok(results, ErrnoNotsup)
}
