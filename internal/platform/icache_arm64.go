//go:build arm64

package platform

import "unsafe"

// FlushInstructionCache invalidates the instruction cache over mem's range
// so the core doesn't execute stale bytes left by the RW code copy. Linux
// arm64 requires this after every W^X flip (spec.md §4.5 "Instruction cache
// flush... mandatory after mprotect(R|X)").
func FlushInstructionCache(mem []byte) {
	if len(mem) == 0 {
		return
	}
	clearCache(unsafe.Pointer(&mem[0]), unsafe.Pointer(&mem[len(mem)-1]))
}

// clearCache is implemented in icache_arm64.s, which issues the DC CVAU and
// IC IVAU maintenance instructions itself and calls nothing else.
func clearCache(start, end unsafe.Pointer)
