// Package platform isolates the handful of OS-specific primitives the JIT
// tier needs: executable code-segment allocation (spec.md §4.5 step 9, W^X
// discipline) and the instruction-cache flush after it. It reserves no guard
// pages and installs no signal handler.
// Grounded on moby-moby's container/cgroup memory-management code, the only
// pack example reaching for unix.Mmap/unix.Mprotect/unix.Mlock directly
// rather than through a higher-level wrapper.
package platform

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// CodeSegment is an mmap'd region backing one JIT-compiled function's native
// code. It starts RW so the emitted bytes can be copied in, then is flipped
// to RX and never written again (W^X discipline never allows RWX).
type CodeSegment struct {
	mem []byte
}

// MmapCodeSegment reserves a RW anonymous mapping sized to hold code, copies
// code into it, and returns the W^X-disciplined segment. The caller must
// call RemapCodeSegment to flip it executable before taking its address.
func MmapCodeSegment(code []byte) (*CodeSegment, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("platform: empty code segment")
	}
	size := pageAlign(len(code))
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("platform: mmap code segment: %w", err)
	}
	copy(mem, code)
	return &CodeSegment{mem: mem}, nil
}

// RemapCodeSegment flips the segment from RW to RX (spec.md §4.5 step 9's
// "W^X discipline"), then flushes the instruction cache so the CPU doesn't
// execute stale cache lines left over from the RW copy.
func RemapCodeSegment(seg *CodeSegment) error {
	if err := unix.Mprotect(seg.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("platform: mprotect RX: %w", err)
	}
	FlushInstructionCache(seg.mem)
	return nil
}

// Addr returns the executable entry address of the segment, valid only
// after RemapCodeSegment has succeeded.
func (s *CodeSegment) Addr() uintptr {
	return uintptr(unsafe.Pointer(&s.mem[0]))
}

// Len reports the segment's mapped size in bytes (page-rounded, not the
// original code length).
func (s *CodeSegment) Len() int { return len(s.mem) }

// MunmapCodeSegment releases the mapping. internal/jit never calls it, so a
// compiled function's code stays mapped for the life of the process.
func MunmapCodeSegment(seg *CodeSegment) error {
	if err := unix.Munmap(seg.mem); err != nil {
		return fmt.Errorf("platform: munmap code segment: %w", err)
	}
	seg.mem = nil
	return nil
}

func pageAlign(n int) int {
	pageSize := unix.Getpagesize()
	if n%pageSize == 0 {
		return n
	}
	return (n/pageSize + 1) * pageSize
}
