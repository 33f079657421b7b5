package wasm

import (
	"encoding/binary"
	"math"
)

const (
	// MemoryPageSizeInBits is log2(MemoryPageSize).
	MemoryPageSizeInBits = 16
	// MemoryPageSize is the number of bytes per Wasm linear-memory page.
	MemoryPageSize = uint32(1) << MemoryPageSizeInBits
	// MemoryMaxPages is the hard ceiling on pages absent an explicit max or
	// --max-memory override: 2^16 pages * 65536 bytes = 4 GiB, the largest a
	// 32-bit linear memory can address.
	MemoryMaxPages = uint32(1) << MemoryPageSizeInBits

	// guardZoneBytes is the size of the optional virtual reservation beyond
	// committed pages when guard-page mode is enabled (spec.md §3, §4.7):
	// a full 4 GiB so no 32-bit offset + 32-bit static operand can ever
	// address past the reservation.
	guardZoneBytes = uint64(1) << 32
)

// MemoryPagesToBytesNum converts a page count to a byte count.
func MemoryPagesToBytesNum(pages uint32) uint64 { return uint64(pages) * uint64(MemoryPageSize) }

func memoryBytesNumToPages(bytesNum uint64) uint32 { return uint32(bytesNum / uint64(MemoryPageSize)) }

// LinearMemory is the mutable byte buffer backing one Wasm memory instance
// (spec.md §3). Growth is atomic: either Grow's new page count holds, or the
// memory is left completely unchanged.
type LinearMemory struct {
	Buffer []byte
	Min    uint32
	Max    *uint32 // nil means MemoryMaxPages (or the --max-memory ceiling, enforced by the Store)
	Cap    uint32  // enforced ceiling (min of spec Max and the embedder's --max-memory pages); 0 means MemoryMaxPages

	// GuardPages reports whether Buffer sits inside a guard-zone reservation.
	// Nothing sets it: internal/platform makes no such reservation and
	// installs no SIGSEGV handler, so every memory access is bounds-checked.
	GuardPages bool
}

// PageSize returns the current size in pages.
func (m *LinearMemory) PageSize() uint32 { return memoryBytesNumToPages(uint64(len(m.Buffer))) }

// SizeInBytes returns the current size in bytes ("committed_bytes" in
// spec.md §3).
func (m *LinearMemory) SizeInBytes() uint64 { return uint64(len(m.Buffer)) }

// maxPages resolves the effective growth ceiling: the tightest of the
// module's declared Max, the embedder's Cap, and MemoryMaxPages (spec.md §9
// open question: "memory.grow past --max-memory enforces the ceiling before
// any OS allocation" — decided here, see DESIGN.md).
func (m *LinearMemory) maxPages() uint32 {
	max := MemoryMaxPages
	if m.Max != nil && *m.Max < max {
		max = *m.Max
	}
	if m.Cap != 0 && m.Cap < max {
		max = m.Cap
	}
	return max
}

// Grow implements the memory.grow instruction: attempts to add delta pages,
// returning the previous page count, or -1 (as uint32, i.e. 0xffffffff) if
// the request would exceed the ceiling. On failure the memory is byte-for-
// byte unchanged (atomicity invariant, spec.md §3).
func (m *LinearMemory) Grow(delta uint32) uint32 {
	current := m.PageSize()
	if delta == 0 {
		return current
	}
	max := m.maxPages()
	newPages := current + delta
	if newPages < current || newPages > max { // overflow or past ceiling
		return math.MaxUint32
	}
	// append rather than a fresh make+copy so small grows reuse capacity
	// when the backing array already has room, same trick the teacher's
	// memory instance uses for repeated growth in a loop.
	m.Buffer = append(m.Buffer, make([]byte, MemoryPagesToBytesNum(delta))...)
	return current
}

// inBounds reports whether [offset, offset+size) lies entirely within the
// committed buffer.
func (m *LinearMemory) inBounds(offset uint32, size uint64) bool {
	if uint64(offset)+size > uint64(len(m.Buffer)) {
		return false
	}
	return true
}

// ReadByte reads one byte at offset, the second return is false if offset is
// at or past the end of the committed buffer.
func (m *LinearMemory) ReadByte(offset uint32) (byte, bool) {
	if !m.inBounds(offset, 1) {
		return 0, false
	}
	return m.Buffer[offset], true
}

// WriteByte writes one byte at offset; false if out of bounds.
func (m *LinearMemory) WriteByte(offset uint32, v byte) bool {
	if !m.inBounds(offset, 1) {
		return false
	}
	m.Buffer[offset] = v
	return true
}

// ReadUint16Le reads a little-endian u16 at offset.
func (m *LinearMemory) ReadUint16Le(offset uint32) (uint16, bool) {
	if !m.inBounds(offset, 2) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(m.Buffer[offset:]), true
}

// WriteUint16Le writes a little-endian u16 at offset.
func (m *LinearMemory) WriteUint16Le(offset uint32, v uint16) bool {
	if !m.inBounds(offset, 2) {
		return false
	}
	binary.LittleEndian.PutUint16(m.Buffer[offset:], v)
	return true
}

// ReadUint32Le reads a little-endian u32 at offset.
func (m *LinearMemory) ReadUint32Le(offset uint32) (uint32, bool) {
	if !m.inBounds(offset, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.Buffer[offset:]), true
}

// WriteUint32Le writes a little-endian u32 at offset.
func (m *LinearMemory) WriteUint32Le(offset uint32, v uint32) bool {
	if !m.inBounds(offset, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.Buffer[offset:], v)
	return true
}

// ReadUint64Le reads a little-endian u64 at offset.
func (m *LinearMemory) ReadUint64Le(offset uint32) (uint64, bool) {
	if !m.inBounds(offset, 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(m.Buffer[offset:]), true
}

// WriteUint64Le writes a little-endian u64 at offset.
func (m *LinearMemory) WriteUint64Le(offset uint32, v uint64) bool {
	if !m.inBounds(offset, 8) {
		return false
	}
	binary.LittleEndian.PutUint64(m.Buffer[offset:], v)
	return true
}

// Read copies size bytes starting at offset into a fresh slice; ok is false
// (and the slice nil) if out of bounds.
func (m *LinearMemory) Read(offset, size uint32) ([]byte, bool) {
	if !m.inBounds(offset, uint64(size)) {
		return nil, false
	}
	out := make([]byte, size)
	copy(out, m.Buffer[offset:offset+size])
	return out, true
}

// Write copies data into the buffer at offset; false if out of bounds.
func (m *LinearMemory) Write(offset uint32, data []byte) bool {
	if !m.inBounds(offset, uint64(len(data))) {
		return false
	}
	copy(m.Buffer[offset:], data)
	return true
}

// Fill implements memory.fill: writes size copies of v starting at offset.
func (m *LinearMemory) Fill(offset uint32, v byte, size uint32) bool {
	if !m.inBounds(offset, uint64(size)) {
		return false
	}
	dst := m.Buffer[offset : offset+size]
	for i := range dst {
		dst[i] = v
	}
	return true
}

// Copy implements memory.copy: copies size bytes from src to dst, correctly
// handling overlap the way Go's builtin copy does.
func (m *LinearMemory) Copy(dst, src, size uint32) bool {
	if !m.inBounds(src, uint64(size)) || !m.inBounds(dst, uint64(size)) {
		return false
	}
	copy(m.Buffer[dst:dst+size], m.Buffer[src:src+size])
	return true
}

// Init implements memory.init: copies size bytes from a data segment's bytes
// at segment offset src into this memory at dst.
func (m *LinearMemory) Init(data []byte, dst, src, size uint32) bool {
	if uint64(src)+uint64(size) > uint64(len(data)) {
		return false
	}
	if !m.inBounds(dst, uint64(size)) {
		return false
	}
	copy(m.Buffer[dst:dst+size], data[src:src+size])
	return true
}
