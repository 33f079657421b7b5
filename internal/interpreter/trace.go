package interpreter

import (
	"github.com/sirupsen/logrus"

	"github.com/zwasm/zwasm/internal/regir"
	"github.com/zwasm/zwasm/internal/wasm"
)

// consumeFuel decrements the per-VM fuel counter once per executed
// instruction (spec.md §4.4 Metering). A nil Fuel means unmetered execution;
// checking the pointer rather than a bool keeps the hot path to a single
// nil-check when metering is off.
func consumeFuel(vm *wasm.VMContext) *wasm.WasmError {
	if vm.Fuel == nil {
		return nil
	}
	if *vm.Fuel == 0 {
		return wasm.Trap(wasm.ErrOutOfFuel)
	}
	*vm.Fuel--
	return nil
}

// profileOp tallies one more execution of op when profiling is enabled.
func profileOp(vm *wasm.VMContext, op regir.Op) {
	if vm.Profile == nil {
		return
	}
	vm.Profile.OpCounts[uint16(op)]++
}

const traceCategoryInterpreter = "interpreter"

// traceOp emits one trace line per instruction when the "interpreter"
// category is enabled, gated behind two nil checks so tracing costs nothing
// when unconfigured.
func traceOp(vm *wasm.VMContext, fn *wasm.FunctionInstance, pc int, instr regir.RegInstr) {
	if vm.Trace == nil || vm.Trace.Logger == nil {
		return
	}
	if !traceCategoryEnabled(vm.Trace.Categories, traceCategoryInterpreter) {
		return
	}
	vm.Trace.Logger.Tracef("function[%d] pc=%d op=%#x rd=%d rs1=%d operand=%d",
		fn.Idx, pc, uint16(instr.Op), instr.Rd, instr.Rs1, instr.Operand)
}

func traceCategoryEnabled(categories []string, want string) bool {
	for _, c := range categories {
		if c == want {
			return true
		}
	}
	return false
}

// LogrusTraceLogger adapts a logrus.FieldLogger to wasm.TraceLogger, the
// concrete sink SPEC_FULL.md's domain stack names for --trace output.
type LogrusTraceLogger struct {
	Logger logrus.FieldLogger
}

func (l LogrusTraceLogger) Tracef(format string, args ...interface{}) {
	l.Logger.Tracef(format, args...)
}
