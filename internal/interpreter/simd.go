package interpreter

import (
	"github.com/zwasm/zwasm/internal/regir"
	"github.com/zwasm/zwasm/internal/wasm"
)

// execSIMD implements the narrowed v128 subset this runtime supports (see
// internal/wasm/validator's stepSIMD for the matching validation-time list
// and internal/regir's stepSIMD for the matching lowering). A v128 value
// occupies two consecutive registers, Rd/Rd+1 holding the low and high 64
// bits; each holds two i32 lanes packed 32 bits apiece.
func execSIMD(vm *wasm.VMContext, regs []uint64, instr regir.RegInstr) *wasm.WasmError {
	switch instr.Op {
	case wasm.OpcodeV128Load:
		m := vm.Instance.MemoryAt(0)
		addr, ok := effectiveAddr(regs, instr)
		if !ok {
			return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
		}
		lo, ok := m.ReadUint64Le(addr)
		if !ok {
			return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
		}
		hi, ok := m.ReadUint64Le(addr + 8)
		if !ok {
			return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
		}
		regs[instr.Rd] = lo
		regs[instr.Rd+1] = hi
		return nil
	case wasm.OpcodeV128Store:
		m := vm.Instance.MemoryAt(0)
		addr, ok := effectiveAddr(regs, instr)
		if !ok {
			return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
		}
		val := instr.Rd // value register base, same store convention as execStore
		if !m.WriteUint64Le(addr, regs[val]) || !m.WriteUint64Le(addr+8, regs[val+1]) {
			return wasm.Trap(wasm.ErrOutOfBoundsMemoryAccess)
		}
		return nil
	case wasm.OpcodeI32x4Splat:
		lane := uint64(uint32(regs[instr.Rs1]))
		regs[instr.Rd] = lane | lane<<32
		regs[instr.Rd+1] = lane | lane<<32
		return nil
	case wasm.OpcodeI32x4ExtractLane:
		lane := uint32(instr.Operand)
		regs[instr.Rd] = uint64(readI32x4Lane(regs, instr.Rs1, lane))
		return nil
	case wasm.OpcodeI32x4ReplaceLane:
		lane := uint32(instr.Operand) >> 8
		lo, hi := regs[instr.Rs1], regs[instr.Rs1+1]
		lo, hi = writeI32x4Lane(lo, hi, lane, uint32(regs[instr.Rs2()]))
		regs[instr.Rd] = lo
		regs[instr.Rd+1] = hi
		return nil

	case wasm.OpcodeI32x4Add, wasm.OpcodeI32x4Sub, wasm.OpcodeI32x4Mul:
		var lo, hi uint64
		for lane := uint32(0); lane < 4; lane++ {
			a := readI32x4Lane(regs, instr.Rs1, lane)
			b := readI32x4Lane(regs, instr.Rs2(), lane)
			var r uint32
			switch instr.Op {
			case wasm.OpcodeI32x4Add:
				r = a + b
			case wasm.OpcodeI32x4Sub:
				r = a - b
			default:
				r = a * b
			}
			lo, hi = writeI32x4Lane(lo, hi, lane, r)
		}
		regs[instr.Rd] = lo
		regs[instr.Rd+1] = hi
		return nil
	}
	return wasm.Trap(wasm.ErrIllegalOpcode)
}

func readI32x4Lane(regs []uint64, base uint8, lane uint32) uint32 {
	if lane < 2 {
		return uint32(regs[base] >> (32 * lane))
	}
	return uint32(regs[base+1] >> (32 * (lane - 2)))
}

func writeI32x4Lane(lo, hi uint64, lane uint32, v uint32) (uint64, uint64) {
	if lane < 2 {
		shift := 32 * lane
		lo = (lo &^ (uint64(0xffffffff) << shift)) | uint64(v)<<shift
		return lo, hi
	}
	shift := 32 * (lane - 2)
	hi = (hi &^ (uint64(0xffffffff) << shift)) | uint64(v)<<shift
	return lo, hi
}
