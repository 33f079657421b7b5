//go:build !arm64

package jit

import "unsafe"

// invokeNative is unreachable off arm64: tryCompileNative (compile_other.go)
// never produces a *Code on this build, so the native call in code.go is
// never reached. Defined anyway so the package builds on any
// architecture.
func invokeNative(addr uintptr, regs unsafe.Pointer, memBase unsafe.Pointer, memLen uint64) uint64 {
	panic("jit: invokeNative called on a build with no native backend")
}
