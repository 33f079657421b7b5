// Package interpreter is the Tier 2 execution engine (spec.md §4.4): a
// direct-threaded switch over RegInstr that shares its register-stack model
// with the Tier 3 JIT so either tier can call into the other without an ABI
// adapter. Grounded on the teacher's internal/engine/interpreter (the
// callEngine/frame-stack/opcode-switch shape) and on bassosimone-risc32's
// fetch-decode-execute loop for the flat-register-file, bounds-checked-memory
// texture of exec.go.
package interpreter

import (
	"fmt"

	"github.com/zwasm/zwasm/internal/regir"
	"github.com/zwasm/zwasm/internal/wasm"
)

// HotThreshold is the call-count value that requests JIT promotion of a
// function record (spec.md §4.4 Hotness, "nominally 10").
const HotThreshold = 10

// BackEdgeThreshold is the loop-iteration count that requests on-stack
// promotion of the enclosing function (spec.md §4.4, "nominally 1000").
const BackEdgeThreshold = 1000

// reservedSlots mirrors the four register-stack slots the JIT prologue
// reserves for cached memory base/size and vm/instance pointers (spec.md
// §4.5 step 6); the
// interpreter doesn't need physical storage there, but keeps the reservation
// so a frame's slot math is identical across tiers sharing one reg_stack.
const reservedSlots = 4

// Engine implements wasm.Engine for the register-interpreter tier: it lowers
// each function body to RegIR once (CompileFunction) and walks it directly
// on every Call.
type Engine struct{}

// New returns a ready-to-use interpreter engine.
func New() *Engine { return &Engine{} }

// CompileFunction implements wasm.Engine: translate a validated function
// body into its RegFunc, stored on FunctionInstance.RegFunc by the caller.
func (e *Engine) CompileFunction(mod *wasm.Module, typ *wasm.FunctionType, code *wasm.Code) (interface{}, error) {
	return regir.Lower(mod, typ, code)
}

// Call implements wasm.Engine: dispatches to a host function or walks the
// callee's RegFunc to completion, filling and returning results.
func (e *Engine) Call(vm *wasm.VMContext, fn *wasm.FunctionInstance, args []uint64) ([]uint64, *wasm.WasmError) {
	if fn.Kind == wasm.FunctionKindHost {
		results := make([]uint64, len(fn.Type.Results))
		if err := fn.Host(vm, args, results); err != nil {
			return nil, err
		}
		return results, nil
	}

	fn.CallCount++
	if fn.CallCount == HotThreshold && vm.Store.RequestPromotion != nil {
		vm.Store.RequestPromotion(fn)
	}

	rf, ok := fn.RegFunc.(*regir.RegFunc)
	if !ok || rf == nil {
		return nil, wasm.NewError(wasm.ErrInvalidFunctionBody, fmt.Sprintf("function[%d]: no compiled RegFunc", fn.Idx))
	}
	if len(args) != len(fn.Type.Params) {
		return nil, wasm.NewError(wasm.ErrTypeMismatch, fmt.Sprintf("function[%d]: expected %d args, got %d", fn.Idx, len(fn.Type.Params), len(args)))
	}

	results := make([]uint64, len(fn.Type.Results))
	if err := e.runFrame(vm, fn, rf, args, results); err != nil {
		return nil, err
	}
	return results, nil
}
