package interpreter

import (
	"github.com/zwasm/zwasm/internal/regir"
	"github.com/zwasm/zwasm/internal/wasm"
)

// readArgWords decodes the argument-register list for a call or
// call_indirect instruction at code[pc] (spec.md §4.3 "Calls"): when
// firstFromRs1 is true the primary instruction's Rs1 already holds arg 0
// (a direct call, whose Rs1 is otherwise unused), otherwise every argument —
// including the first — lives in the trailing OpNop data words (call
// indirect, whose Rs1 holds the table element-index register instead). Each
// data word packs up to four register indices: Rd, Rs1, and the two bytes
// of Operand. Returns the argument registers in original left-to-right
// order and how many trailing data words were consumed.
func readArgWords(code []regir.RegInstr, pc int, rs1 uint8, nargs int, firstFromRs1 bool) (argRegs []uint8, wordsConsumed int) {
	argRegs = make([]uint8, 0, nargs)
	remaining := nargs
	if firstFromRs1 && remaining > 0 {
		argRegs = append(argRegs, rs1)
		remaining--
	}
	widx := pc + 1
	for remaining > 0 {
		w := code[widx]
		vals := [4]uint8{w.Rd, w.Rs1, uint8(w.Operand), uint8(w.Operand >> 8)}
		take := remaining
		if take > 4 {
			take = 4
		}
		argRegs = append(argRegs, vals[:take]...)
		remaining -= take
		widx++
	}
	return argRegs, widx - (pc + 1)
}

// dispatchCall handles a direct wasm.OpcodeCall: resolves the callee,
// gathers its argument registers, recurses through Engine.Call (which
// itself saves/restores vm.RegPtr), and scatters the results into the
// caller's contiguous result registers starting at instr.Rd.
func (e *Engine) dispatchCall(vm *wasm.VMContext, caller *wasm.FunctionInstance, rf *regir.RegFunc, regs []uint64, code []regir.RegInstr, pc *int, instr regir.RegInstr) *wasm.WasmError {
	callee := vm.Instance.FuncAt(instr.Operand)
	if callee == nil {
		return trapCtx(wasm.ErrUnknownFunction, caller, *pc)
	}
	nargs := len(callee.Type.Params)
	argRegs, words := readArgWords(code, *pc, instr.Rs1, nargs, true)
	*pc += words

	args := make([]uint64, nargs)
	for i, r := range argRegs {
		args[i] = regs[r]
	}

	results, err := e.Call(vm, callee, args)
	if err != nil {
		return err
	}
	for i, v := range results {
		regs[instr.Rd+uint8(i)] = v
	}
	return nil
}

// dispatchCallIndirect handles wasm.OpcodeCallIndirect: resolves the table
// element, checks the runtime signature against the declared type index,
// then proceeds exactly like a direct call.
func (e *Engine) dispatchCallIndirect(vm *wasm.VMContext, caller *wasm.FunctionInstance, rf *regir.RegFunc, regs []uint64, code []regir.RegInstr, pc *int, instr regir.RegInstr) *wasm.WasmError {
	typeIdx := instr.Operand >> 16
	tableIdx := instr.Operand & 0xffff
	elemIdx := uint32(regs[instr.Rs1])

	t := vm.Instance.TableAt(tableIdx)
	ref, ok := t.Get(elemIdx)
	if !ok {
		return trapCtx(wasm.ErrUndefinedElement, caller, *pc)
	}
	if ref == 0 {
		return trapCtx(wasm.ErrUndefinedElement, caller, *pc)
	}

	callee := vm.Store.Funcs[ref]
	declaredType := vm.Instance.Module.TypeSection[typeIdx]
	if !callee.Type.EqualsSignature(declaredType.Params, declaredType.Results) {
		return trapCtx(wasm.ErrMismatchedSignatures, caller, *pc)
	}

	nargs := len(callee.Type.Params)
	argRegs, words := readArgWords(code, *pc, instr.Rs1, nargs, false)
	*pc += words

	args := make([]uint64, nargs)
	for i, r := range argRegs {
		args[i] = regs[r]
	}

	results, err := e.Call(vm, callee, args)
	if err != nil {
		return err
	}
	for i, v := range results {
		regs[instr.Rd+uint8(i)] = v
	}
	return nil
}
