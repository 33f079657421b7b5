package interpreter

import (
	"fmt"

	"github.com/zwasm/zwasm/internal/regir"
	"github.com/zwasm/zwasm/internal/wasm"
)

// runFrame reserves this call's register window out of vm.RegStack, copies
// args into it, walks rf.Code to completion, and copies the function's
// result registers (the fixed slots right after the locals, spec.md §4.3
// "the outer frame's result registers are allocated immediately after
// locals") into results. reg_ptr is always restored on exit, trap or not
// (spec.md §4.4 "RAII-style on all exit paths").
func (e *Engine) runFrame(vm *wasm.VMContext, fn *wasm.FunctionInstance, rf *regir.RegFunc, args, results []uint64) *wasm.WasmError {
	needed := uint32(rf.RegCount) + reservedSlots
	base := vm.RegPtr
	if uint64(base)+uint64(needed) > uint64(len(vm.RegStack)) {
		return wasm.Trap(wasm.ErrStackOverflow)
	}
	vm.RegPtr = base + needed
	defer func() { vm.RegPtr = base }()

	regs := vm.RegStack[base : base+needed]
	copy(regs[:len(args)], args)
	for i := len(args); i < int(rf.LocalCount); i++ {
		regs[i] = 0
	}

	code := rf.Code
	pc := 0
	backEdges := uint32(0)
	promoted := false

	for pc < len(code) {
		instr := code[pc]

		if trapErr := consumeFuel(vm); trapErr != nil {
			return trapErr
		}
		profileOp(vm, instr.Op)
		traceOp(vm, fn, pc, instr)

		switch instr.Op {
		case regir.OpNop, wasm.OpcodeNop:
			// a data word trailing a call, or an explicit nop; never reached
			// as a standalone dispatch target since calls skip over their
			// own data words explicitly (see calls.go).
		case regir.OpUnreachable:
			return trapCtx(wasm.ErrUnreachable, fn, pc)
		case regir.OpReturn:
			copy(results, regs[rf.LocalCount:int(rf.LocalCount)+len(results)])
			return nil

		case regir.OpMove:
			regs[instr.Rd] = regs[instr.Rs1]
		case wasm.OpcodeI32Const:
			regs[instr.Rd] = uint64(instr.Operand)
		case regir.OpConstI64:
			regs[instr.Rd] = rf.Pool64[instr.Operand]
		case wasm.OpcodeF32Const:
			regs[instr.Rd] = uint64(instr.Operand)
		case wasm.OpcodeF64Const:
			regs[instr.Rd] = rf.Pool64[instr.Operand]
		case wasm.OpcodeV128Const:
			regs[instr.Rd] = rf.Pool64[instr.Operand]
			regs[instr.Rd+1] = rf.Pool64[instr.Operand+1]

		case regir.OpJump:
			target := int(instr.Operand)
			if target <= pc {
				backEdges++
				maybePromoteOnBackEdge(vm, fn, &backEdges, &promoted)
			}
			pc = target
			continue
		case regir.OpBrIfZ:
			if regs[instr.Rs1] == 0 {
				target := int(instr.Operand)
				if target <= pc {
					backEdges++
					maybePromoteOnBackEdge(vm, fn, &backEdges, &promoted)
				}
				pc = target
				continue
			}
		case regir.OpBrIfNZ:
			if regs[instr.Rs1] != 0 {
				target := int(instr.Operand)
				if target <= pc {
					backEdges++
					maybePromoteOnBackEdge(vm, fn, &backEdges, &promoted)
				}
				pc = target
				continue
			}
		case regir.OpBrTable:
			idx := uint32(regs[instr.Rs1])
			base := instr.Operand
			count := uint32(rf.Pool64[base])
			var target int
			if idx < count {
				target = int(rf.Pool64[base+1+idx])
			} else {
				target = int(rf.Pool64[base+1+count])
			}
			if target <= pc {
				backEdges++
				maybePromoteOnBackEdge(vm, fn, &backEdges, &promoted)
			}
			pc = target
			continue

		case regir.OpSelect:
			v2reg := uint8(instr.Operand)
			condReg := uint8(instr.Operand >> 8)
			if regs[condReg] != 0 {
				regs[instr.Rd] = regs[instr.Rs1]
			} else {
				regs[instr.Rd] = regs[v2reg]
			}

		case wasm.OpcodeGlobalGet:
			g := vm.Instance.GlobalAt(instr.Operand)
			regs[instr.Rd] = g.Get()
		case wasm.OpcodeGlobalSet:
			g := vm.Instance.GlobalAt(instr.Operand)
			g.Set(regs[instr.Rs1])

		case wasm.OpcodeTableGet:
			t := vm.Instance.TableAt(instr.Operand)
			ref, ok := t.Get(uint32(regs[instr.Rs1]))
			if !ok {
				return trapCtx(wasm.ErrUndefinedElement, fn, pc)
			}
			regs[instr.Rd] = uint64(ref)
		case wasm.OpcodeTableSet:
			t := vm.Instance.TableAt(instr.Operand)
			if !t.Set(uint32(regs[instr.Rs1]), uintptr(regs[instr.Rd])) {
				return trapCtx(wasm.ErrUndefinedElement, fn, pc)
			}
		case wasm.OpcodeTableGrow:
			tableIdx := instr.Operand >> 8
			initValReg := uint8(instr.Operand)
			t := vm.Instance.TableAt(tableIdx)
			regs[instr.Rd] = uint64(t.Grow(uint32(regs[instr.Rs1]), uintptr(regs[initValReg])))
		case wasm.OpcodeTableSize:
			t := vm.Instance.TableAt(instr.Operand)
			regs[instr.Rd] = uint64(t.Len())
		case wasm.OpcodeTableCopy:
			t := vm.Instance.TableAt(0)
			n := uint32(regs[instr.Rs2()])
			if !t.Copy(uint32(regs[instr.Rd]), uint32(regs[instr.Rs1]), n) {
				return trapCtx(wasm.ErrOutOfBoundsMemoryAccess, fn, pc)
			}
		case wasm.OpcodeTableFill:
			t := vm.Instance.TableAt(0)
			n := uint32(regs[instr.Rs2()])
			if !t.Fill(uint32(regs[instr.Rd]), uintptr(regs[instr.Rs1]), n) {
				return trapCtx(wasm.ErrOutOfBoundsMemoryAccess, fn, pc)
			}
		case wasm.OpcodeTableInit:
			segIdx := instr.Operand >> 8
			n := uint32(regs[uint8(instr.Operand)])
			t := vm.Instance.TableAt(0)
			seg := vm.Instance.ElementInstances[segIdx]
			if !t.Init(seg, uint32(regs[instr.Rd]), uint32(regs[instr.Rs1]), n) {
				return trapCtx(wasm.ErrOutOfBoundsMemoryAccess, fn, pc)
			}
		case wasm.OpcodeElemDrop:
			vm.Instance.ElementInstances[instr.Operand] = nil

		case wasm.OpcodeMemorySize:
			m := vm.Instance.MemoryAt(0)
			regs[instr.Rd] = uint64(m.PageSize())
		case wasm.OpcodeMemoryGrow:
			m := vm.Instance.MemoryAt(0)
			regs[instr.Rd] = uint64(m.Grow(uint32(regs[instr.Rs1])))
		case wasm.OpcodeMemoryCopy:
			m := vm.Instance.MemoryAt(0)
			n := uint32(regs[instr.Rs2()])
			if !m.Copy(uint32(regs[instr.Rd]), uint32(regs[instr.Rs1]), n) {
				return trapCtx(wasm.ErrOutOfBoundsMemoryAccess, fn, pc)
			}
		case wasm.OpcodeMemoryFill:
			m := vm.Instance.MemoryAt(0)
			n := uint32(regs[instr.Rs2()])
			if !m.Fill(uint32(regs[instr.Rd]), byte(regs[instr.Rs1]), n) {
				return trapCtx(wasm.ErrOutOfBoundsMemoryAccess, fn, pc)
			}
		case wasm.OpcodeMemoryInit:
			segIdx := instr.Operand >> 8
			n := uint32(regs[uint8(instr.Operand)])
			m := vm.Instance.MemoryAt(0)
			data := vm.Instance.DataInstances[segIdx]
			if !m.Init(data, uint32(regs[instr.Rd]), uint32(regs[instr.Rs1]), n) {
				return trapCtx(wasm.ErrOutOfBoundsMemoryAccess, fn, pc)
			}
		case wasm.OpcodeDataDrop:
			vm.Instance.DataInstances[instr.Operand] = nil

		case wasm.OpcodeRefNull:
			regs[instr.Rd] = 0
		case wasm.OpcodeRefFunc:
			regs[instr.Rd] = uint64(vm.Instance.FuncAddrs[instr.Operand])
		case wasm.OpcodeRefIsNull:
			if regs[instr.Rs1] == 0 {
				regs[instr.Rd] = 1
			} else {
				regs[instr.Rd] = 0
			}
		case wasm.OpcodeI32Eqz:
			if uint32(regs[instr.Rs1]) == 0 {
				regs[instr.Rd] = 1
			} else {
				regs[instr.Rd] = 0
			}

		case regir.OpCall:
			if trapErr := e.dispatchCall(vm, fn, rf, regs, code, &pc, instr); trapErr != nil {
				return trapErr
			}
			pc++
			continue
		case regir.OpCallIndirect:
			if trapErr := e.dispatchCallIndirect(vm, fn, rf, regs, code, &pc, instr); trapErr != nil {
				return trapErr
			}
			pc++
			continue

		default:
			if isLoadOpcode(instr.Op) {
				if trapErr := execLoad(vm, regs, instr); trapErr != nil {
					return trapCtxWrap(trapErr, fn, pc)
				}
				break
			}
			if isStoreOpcode(instr.Op) {
				if trapErr := execStore(vm, regs, instr); trapErr != nil {
					return trapCtxWrap(trapErr, fn, pc)
				}
				break
			}
			if real, ok := fusedRealOpcode(instr.Op); ok {
				v, trapErr := evalI32Binary(real, int32(uint32(regs[instr.Rs1])), int32(instr.Operand))
				if trapErr != nil {
					return trapCtxWrap(trapErr, fn, pc)
				}
				regs[instr.Rd] = v
				break
			}
			if isI32BinaryOpcode(instr.Op) {
				v, trapErr := evalI32Binary(instr.Op, int32(uint32(regs[instr.Rs1])), int32(uint32(regs[instr.Rs2()])))
				if trapErr != nil {
					return trapCtxWrap(trapErr, fn, pc)
				}
				regs[instr.Rd] = v
				break
			}
			if isI64BinaryOpcode(instr.Op) {
				v, trapErr := evalI64Binary(instr.Op, int64(regs[instr.Rs1]), int64(regs[instr.Rs2()]))
				if trapErr != nil {
					return trapCtxWrap(trapErr, fn, pc)
				}
				regs[instr.Rd] = v
				break
			}
			if isF32BinaryOpcode(instr.Op) {
				v, trapErr := evalF32Binary(instr.Op, uint32(regs[instr.Rs1]), uint32(regs[instr.Rs2()]))
				if trapErr != nil {
					return trapCtxWrap(trapErr, fn, pc)
				}
				regs[instr.Rd] = v
				break
			}
			if isF64BinaryOpcode(instr.Op) {
				v, trapErr := evalF64Binary(instr.Op, regs[instr.Rs1], regs[instr.Rs2()])
				if trapErr != nil {
					return trapCtxWrap(trapErr, fn, pc)
				}
				regs[instr.Rd] = v
				break
			}
			if isF32UnaryOpcode(instr.Op) {
				v, trapErr := evalF32Unary(instr.Op, uint32(regs[instr.Rs1]))
				if trapErr != nil {
					return trapCtxWrap(trapErr, fn, pc)
				}
				regs[instr.Rd] = v
				break
			}
			if isF64UnaryOpcode(instr.Op) {
				v, trapErr := evalF64Unary(instr.Op, regs[instr.Rs1])
				if trapErr != nil {
					return trapCtxWrap(trapErr, fn, pc)
				}
				regs[instr.Rd] = v
				break
			}
			if instr.Op == wasm.OpcodeI64Eqz {
				regs[instr.Rd] = boolU64(regs[instr.Rs1] == 0)
				break
			}
			if isConversionOpcode(instr.Op) {
				v, trapErr := evalConversion(instr.Op, regs[instr.Rs1])
				if trapErr != nil {
					return trapCtxWrap(trapErr, fn, pc)
				}
				regs[instr.Rd] = v
				break
			}
			if isSignExtendOpcode(instr.Op) {
				regs[instr.Rd] = evalSignExtend(instr.Op, regs[instr.Rs1])
				break
			}
			if isSatTruncOpcode(instr.Op) {
				regs[instr.Rd] = evalSatTrunc(instr.Op, regs[instr.Rs1])
				break
			}
			if instr.Op >= wasm.OpcodeSIMDPrefixBase {
				if trapErr := execSIMD(vm, regs, instr); trapErr != nil {
					return trapCtxWrap(trapErr, fn, pc)
				}
				break
			}
			return trapCtx(wasm.ErrIllegalOpcode, fn, pc)
		}
		pc++
	}

	// a validated function body always ends with OpReturn (see regir's End
	// handling for the outer frame); falling off the end is unreachable for
	// validator-approved input.
	return wasm.NewError(wasm.ErrInvalidFunctionBody, fmt.Sprintf("function[%d]: fell off the end of the code without a return", fn.Idx))
}

func maybePromoteOnBackEdge(vm *wasm.VMContext, fn *wasm.FunctionInstance, backEdges *uint32, promoted *bool) {
	if *promoted || *backEdges < BackEdgeThreshold || vm.Store.RequestPromotion == nil {
		return
	}
	*promoted = true
	vm.Store.RequestPromotion(fn)
}

func trapCtx(kind wasm.ErrorKind, fn *wasm.FunctionInstance, pc int) *wasm.WasmError {
	return wasm.NewError(kind, fmt.Sprintf("function[%d] pc=%d", fn.Idx, pc))
}

func trapCtxWrap(err *wasm.WasmError, fn *wasm.FunctionInstance, pc int) *wasm.WasmError {
	return wasm.NewError(err.Kind, fmt.Sprintf("function[%d] pc=%d", fn.Idx, pc))
}
