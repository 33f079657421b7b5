package interpreter

import (
	"math"

	"github.com/zwasm/zwasm/internal/regir"
	"github.com/zwasm/zwasm/internal/wasm"
)

var loadOpcodes = map[wasm.Opcode]bool{
	wasm.OpcodeI32Load: true, wasm.OpcodeI64Load: true, wasm.OpcodeF32Load: true, wasm.OpcodeF64Load: true,
	wasm.OpcodeI32Load8S: true, wasm.OpcodeI32Load8U: true, wasm.OpcodeI32Load16S: true, wasm.OpcodeI32Load16U: true,
	wasm.OpcodeI64Load8S: true, wasm.OpcodeI64Load8U: true, wasm.OpcodeI64Load16S: true, wasm.OpcodeI64Load16U: true,
	wasm.OpcodeI64Load32S: true, wasm.OpcodeI64Load32U: true,
}

var storeOpcodes = map[wasm.Opcode]bool{
	wasm.OpcodeI32Store: true, wasm.OpcodeI64Store: true, wasm.OpcodeF32Store: true, wasm.OpcodeF64Store: true,
	wasm.OpcodeI32Store8: true, wasm.OpcodeI32Store16: true,
	wasm.OpcodeI64Store8: true, wasm.OpcodeI64Store16: true, wasm.OpcodeI64Store32: true,
}

func isLoadOpcode(op wasm.Opcode) bool  { return loadOpcodes[op] }
func isStoreOpcode(op wasm.Opcode) bool { return storeOpcodes[op] }

// effectiveAddr adds the dynamic address register to the instruction's
// static offset as a 64-bit sum before truncating to the u32 LinearMemory
// accessors expect, so an i32 addr + u32 offset overflow traps instead of
// silently wrapping into an in-bounds access.
func effectiveAddr(regs []uint64, instr regir.RegInstr) (uint32, bool) {
	ea := uint64(uint32(regs[instr.Rs1])) + uint64(instr.Operand)
	if ea > math.MaxUint32 {
		return 0, false
	}
	return uint32(ea), true
}

func execLoad(vm *wasm.VMContext, regs []uint64, instr regir.RegInstr) *wasm.WasmError {
	m := vm.Instance.MemoryAt(0)
	addr, ok := effectiveAddr(regs, instr)
	if !ok {
		return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
	}

	switch instr.Op {
	case wasm.OpcodeI32Load, wasm.OpcodeF32Load:
		v, ok := m.ReadUint32Le(addr)
		if !ok {
			return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
		}
		regs[instr.Rd] = uint64(v)
	case wasm.OpcodeI64Load, wasm.OpcodeF64Load:
		v, ok := m.ReadUint64Le(addr)
		if !ok {
			return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
		}
		regs[instr.Rd] = v
	case wasm.OpcodeI32Load8S:
		v, ok := m.ReadByte(addr)
		if !ok {
			return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
		}
		regs[instr.Rd] = uint64(uint32(int32(int8(v))))
	case wasm.OpcodeI32Load8U:
		v, ok := m.ReadByte(addr)
		if !ok {
			return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
		}
		regs[instr.Rd] = uint64(v)
	case wasm.OpcodeI32Load16S:
		v, ok := m.ReadUint16Le(addr)
		if !ok {
			return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
		}
		regs[instr.Rd] = uint64(uint32(int32(int16(v))))
	case wasm.OpcodeI32Load16U:
		v, ok := m.ReadUint16Le(addr)
		if !ok {
			return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
		}
		regs[instr.Rd] = uint64(v)
	case wasm.OpcodeI64Load8S:
		v, ok := m.ReadByte(addr)
		if !ok {
			return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
		}
		regs[instr.Rd] = uint64(int64(int8(v)))
	case wasm.OpcodeI64Load8U:
		v, ok := m.ReadByte(addr)
		if !ok {
			return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
		}
		regs[instr.Rd] = uint64(v)
	case wasm.OpcodeI64Load16S:
		v, ok := m.ReadUint16Le(addr)
		if !ok {
			return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
		}
		regs[instr.Rd] = uint64(int64(int16(v)))
	case wasm.OpcodeI64Load16U:
		v, ok := m.ReadUint16Le(addr)
		if !ok {
			return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
		}
		regs[instr.Rd] = uint64(v)
	case wasm.OpcodeI64Load32S:
		v, ok := m.ReadUint32Le(addr)
		if !ok {
			return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
		}
		regs[instr.Rd] = uint64(int64(int32(v)))
	case wasm.OpcodeI64Load32U:
		v, ok := m.ReadUint32Le(addr)
		if !ok {
			return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
		}
		regs[instr.Rd] = uint64(v)
	}
	return nil
}

func execStore(vm *wasm.VMContext, regs []uint64, instr regir.RegInstr) *wasm.WasmError {
	m := vm.Instance.MemoryAt(0)
	addr, ok := effectiveAddr(regs, instr)
	if !ok {
		return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
	}
	// stores repurpose Rd to carry the value register (see internal/regir's
	// step.go comment on the same convention).
	val := regs[instr.Rd]

	var stored bool
	switch instr.Op {
	case wasm.OpcodeI32Store, wasm.OpcodeF32Store:
		stored = m.WriteUint32Le(addr, uint32(val))
	case wasm.OpcodeI64Store, wasm.OpcodeF64Store:
		stored = m.WriteUint64Le(addr, val)
	case wasm.OpcodeI32Store8, wasm.OpcodeI64Store8:
		stored = m.WriteByte(addr, byte(val))
	case wasm.OpcodeI32Store16, wasm.OpcodeI64Store16:
		stored = m.WriteUint16Le(addr, uint16(val))
	case wasm.OpcodeI64Store32:
		stored = m.WriteUint32Le(addr, uint32(val))
	}
	if !stored {
		return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
	}
	return nil
}
