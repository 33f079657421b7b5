package jit

import (
	"unsafe"

	"github.com/zwasm/zwasm/internal/platform"
	"github.com/zwasm/zwasm/internal/regir"
	"github.com/zwasm/zwasm/internal/wasm"
)

// reservedSlots mirrors internal/interpreter's own constant: the four
// register-stack slots the full spec.md §4.5 step 6 prologue dedicates to
// cached memory base/size and vm/instance pointers. This tier's native code never populates
// them (see DESIGN.md — eligible functions never call out or touch a
// global), but both tiers must agree on the reservation so a single
// vm.RegStack window means the same thing no matter which tier owns it.
const reservedSlots = 4

// Code is a compiled native function: an executable blob plus the RegFunc
// metadata needed to size and interpret its register window.
type Code struct {
	seg       *platform.CodeSegment
	rf        *regir.RegFunc
	hasMemory bool
}

// Call runs a jit.Code, sharing vm.RegStack's windowing convention with
// internal/interpreter's runFrame so either tier can own a given call frame
// without the caller needing to know which one it got.
func Call(vm *wasm.VMContext, fn *wasm.FunctionInstance, code *Code, args []uint64) ([]uint64, *wasm.WasmError) {
	rf := code.rf
	needed := uint32(rf.RegCount) + reservedSlots
	base := vm.RegPtr
	if uint64(base)+uint64(needed) > uint64(len(vm.RegStack)) {
		return nil, wasm.Trap(wasm.ErrStackOverflow)
	}
	vm.RegPtr = base + needed
	defer func() { vm.RegPtr = base }()

	regs := vm.RegStack[base : base+needed]
	copy(regs[:len(args)], args)
	for i := len(args); i < int(rf.LocalCount); i++ {
		regs[i] = 0
	}

	var memBase unsafe.Pointer
	var memLen uint64
	if code.hasMemory {
		m := vm.Instance.MemoryAt(0)
		if m == nil {
			return nil, wasm.NewError(wasm.ErrUnknownMemory, "jit: function requires linear memory but instance has none")
		}
		memLen = m.SizeInBytes()
		if memLen > 0 {
			memBase = unsafe.Pointer(&m.Buffer[0])
		}
	}

	ordinal := invokeNative(code.seg.Addr(), unsafe.Pointer(&regs[0]), memBase, memLen)
	if ordinal != 0 {
		return nil, wasm.Trap(wasm.TrapOrdinalToKind(ordinal))
	}

	results := make([]uint64, rf.NumResults)
	copy(results, regs[rf.LocalCount:int(rf.LocalCount)+len(results)])
	return results, nil
}
