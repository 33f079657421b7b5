package wasm

// Table is an ordered sequence of reference cells typed by a single
// RefType, with min/optional-max lengths (spec.md §3).
type Table struct {
	References []uintptr // raw references; 0 denotes ref.null
	Type       RefType
	Min        uint32
	Max        *uint32
}

// maxLen resolves the effective growth ceiling, defaulting to the largest
// value a uint32 length can hold when the module declares no Max.
func (t *Table) maxLen() uint32 {
	if t.Max != nil {
		return *t.Max
	}
	return ^uint32(0)
}

// Len returns the current number of table elements.
func (t *Table) Len() int { return len(t.References) }

// Grow implements table.grow: appends delta copies of initValue, returning the
// previous length, or -1 (as uint32) if that would exceed the ceiling. Left
// unchanged on failure, mirroring LinearMemory.Grow's atomicity.
func (t *Table) Grow(delta uint32, initValue uintptr) uint32 {
	current := uint32(len(t.References))
	if delta == 0 {
		return current
	}
	newLen := current + delta
	if newLen < current || newLen > t.maxLen() {
		return ^uint32(0)
	}
	grown := make([]uintptr, delta)
	for i := range grown {
		grown[i] = initValue
	}
	t.References = append(t.References, grown...)
	return current
}

// Get returns the reference at idx, or ok=false if idx is out of bounds —
// callers convert that into ErrUndefinedElement (spec.md §7).
func (t *Table) Get(idx uint32) (uintptr, bool) {
	if idx >= uint32(len(t.References)) {
		return 0, false
	}
	return t.References[idx], true
}

// Set writes ref at idx; false if out of bounds.
func (t *Table) Set(idx uint32, ref uintptr) bool {
	if idx >= uint32(len(t.References)) {
		return false
	}
	t.References[idx] = ref
	return true
}

// Init implements table.init / the active-element-segment instantiation
// step: copies size entries from init (resolved function indices encoded as
// uintptr function-table addresses by the caller) into this table at dst.
func (t *Table) Init(init []uintptr, dst, src, size uint32) bool {
	if uint64(src)+uint64(size) > uint64(len(init)) {
		return false
	}
	if uint64(dst)+uint64(size) > uint64(len(t.References)) {
		return false
	}
	copy(t.References[dst:dst+size], init[src:src+size])
	return true
}

// Copy implements table.copy.
func (t *Table) Copy(dst, src, size uint32) bool {
	if uint64(src)+uint64(size) > uint64(len(t.References)) || uint64(dst)+uint64(size) > uint64(len(t.References)) {
		return false
	}
	copy(t.References[dst:dst+size], t.References[src:src+size])
	return true
}

// Fill implements table.fill.
func (t *Table) Fill(offset uint32, ref uintptr, size uint32) bool {
	if uint64(offset)+uint64(size) > uint64(len(t.References)) {
		return false
	}
	dst := t.References[offset : offset+size]
	for i := range dst {
		dst[i] = ref
	}
	return true
}
