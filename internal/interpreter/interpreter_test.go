package interpreter_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zwasm/zwasm/internal/interpreter"
	"github.com/zwasm/zwasm/internal/wasm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fnType(params, results []wasm.ValueType) *wasm.FunctionType {
	return &wasm.FunctionType{Params: params, Results: results}
}

func i32() []wasm.ValueType { return []wasm.ValueType{wasm.ValueTypeI32} }

// uleb128 encodes v as unsigned LEB128, for instruction fields (offsets,
// indices) too large to write as a single literal byte by hand.
func uleb128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			return out
		}
	}
}

func instantiate(t *testing.T, mod *wasm.Module) (*wasm.Store, *wasm.Instance) {
	t.Helper()
	mod.BuildImportCounts()
	s, ns := wasm.NewStore(wasm.FeatureWasm1_0)
	eng := interpreter.New()
	inst, err := s.Instantiate(ns, eng, mod, wasm.InstantiateConfig{Name: "m"})
	require.Nil(t, err)
	return s, inst
}

func callExport(t *testing.T, s *wasm.Store, inst *wasm.Instance, name string, args ...uint64) ([]uint64, *wasm.WasmError) {
	t.Helper()
	exp := inst.Export(name)
	require.NotNil(t, exp)
	fn := inst.FuncAt(exp.FuncIdx)
	require.NotNil(t, fn)
	vm := wasm.NewVMContext(s, inst)
	eng := interpreter.New()
	return eng.Call(vm, fn, args)
}

func TestCall_ConstAdd(t *testing.T) {
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{fnType(nil, i32())},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{{Body: []byte{
			byte(wasm.OpcodeI32Const), 0x02,
			byte(wasm.OpcodeI32Const), 0x03,
			byte(wasm.OpcodeI32Add),
			byte(wasm.OpcodeEnd),
		}}},
		ExportSection: []*wasm.Export{{Type: wasm.ExternTypeFunc, Name: "add", Index: 0}},
	}
	s, inst := instantiate(t, mod)

	results, trapErr := callExport(t, s, inst, "add")
	require.Nil(t, trapErr)
	require.Equal(t, []uint64{5}, results)
}

func TestCall_LocalGetAddsImmediate(t *testing.T) {
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{fnType(i32(), i32())},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{{Body: []byte{
			byte(wasm.OpcodeLocalGet), 0x00,
			byte(wasm.OpcodeI32Const), 0x07,
			byte(wasm.OpcodeI32Add),
			byte(wasm.OpcodeEnd),
		}}},
		ExportSection: []*wasm.Export{{Type: wasm.ExternTypeFunc, Name: "add7", Index: 0}},
	}
	s, inst := instantiate(t, mod)

	results, trapErr := callExport(t, s, inst, "add7", 35)
	require.Nil(t, trapErr)
	require.Equal(t, []uint64{42}, results)
}

func TestCall_DirectCallForwardsArgsAndResult(t *testing.T) {
	addType := fnType(append(i32(), i32()...), i32())
	callerType := fnType(nil, i32())
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{addType, callerType},
		FunctionSection: []wasm.Index{0, 1},
		CodeSection: []*wasm.Code{
			{Body: []byte{
				byte(wasm.OpcodeLocalGet), 0x00,
				byte(wasm.OpcodeLocalGet), 0x01,
				byte(wasm.OpcodeI32Add),
				byte(wasm.OpcodeEnd),
			}},
			{Body: []byte{
				byte(wasm.OpcodeI32Const), 0x14,
				byte(wasm.OpcodeI32Const), 0x1c,
				byte(wasm.OpcodeCall), 0x00,
				byte(wasm.OpcodeEnd),
			}},
		},
		ExportSection: []*wasm.Export{{Type: wasm.ExternTypeFunc, Name: "caller", Index: 1}},
	}
	s, inst := instantiate(t, mod)

	results, trapErr := callExport(t, s, inst, "caller")
	require.Nil(t, trapErr)
	require.Equal(t, []uint64{0x14 + 0x1c}, results)
}

func TestCall_CallIndirectViaTable(t *testing.T) {
	addType := fnType(append(i32(), i32()...), i32())
	callerType := fnType(nil, i32())
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{addType, callerType},
		FunctionSection: []wasm.Index{0, 1},
		TableSection:    []*wasm.TableType{{ElemType: wasm.RefType{Kind: wasm.ValueTypeFuncref}, Limits: wasm.Limits{Min: 1}}},
		ElementSection: []*wasm.ElementSegment{{
			TableIndex: 0,
			OffsetExpr: wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: []byte{0x00}},
			Init:       []wasm.Index{0},
			Mode:       wasm.ElementModeActive,
		}},
		CodeSection: []*wasm.Code{
			{Body: []byte{
				byte(wasm.OpcodeLocalGet), 0x00,
				byte(wasm.OpcodeLocalGet), 0x01,
				byte(wasm.OpcodeI32Add),
				byte(wasm.OpcodeEnd),
			}},
			{Body: []byte{
				byte(wasm.OpcodeI32Const), 0x05,
				byte(wasm.OpcodeI32Const), 0x06,
				byte(wasm.OpcodeI32Const), 0x00, // table element index
				byte(wasm.OpcodeCallIndirect), 0x00, 0x00, // type index 0, table index 0
				byte(wasm.OpcodeEnd),
			}},
		},
		ExportSection: []*wasm.Export{{Type: wasm.ExternTypeFunc, Name: "caller", Index: 1}},
	}
	s, inst := instantiate(t, mod)

	results, trapErr := callExport(t, s, inst, "caller")
	require.Nil(t, trapErr)
	require.Equal(t, []uint64{11}, results)
}

func TestCall_CallIndirectUndefinedElementTraps(t *testing.T) {
	callerType := fnType(nil, i32())
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{callerType},
		FunctionSection: []wasm.Index{0},
		TableSection:    []*wasm.TableType{{ElemType: wasm.RefType{Kind: wasm.ValueTypeFuncref}, Limits: wasm.Limits{Min: 1}}},
		CodeSection: []*wasm.Code{
			{Body: []byte{
				byte(wasm.OpcodeI32Const), 0x00, // table element index; never populated
				byte(wasm.OpcodeCallIndirect), 0x00, 0x00,
				byte(wasm.OpcodeEnd),
			}},
		},
		ExportSection: []*wasm.Export{{Type: wasm.ExternTypeFunc, Name: "caller", Index: 0}},
	}
	s, inst := instantiate(t, mod)

	_, trapErr := callExport(t, s, inst, "caller")
	require.NotNil(t, trapErr)
	require.Equal(t, wasm.ErrUndefinedElement, trapErr.Kind)
}

func TestCall_DivisionByZeroTraps(t *testing.T) {
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{fnType(nil, i32())},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{{Body: []byte{
			byte(wasm.OpcodeI32Const), 0x01,
			byte(wasm.OpcodeI32Const), 0x00,
			byte(wasm.OpcodeI32DivS),
			byte(wasm.OpcodeEnd),
		}}},
		ExportSection: []*wasm.Export{{Type: wasm.ExternTypeFunc, Name: "divz", Index: 0}},
	}
	s, inst := instantiate(t, mod)

	_, trapErr := callExport(t, s, inst, "divz")
	require.NotNil(t, trapErr)
	require.Equal(t, wasm.ErrDivisionByZero, trapErr.Kind)
}

// countdownBody wraps the loop in an enclosing block so br_if's depth-1 exit
// targets the block's end rather than the function's implicit outer frame
// (branching straight out of a function via br/br_if, as opposed to an
// explicit return, isn't exercised here).
func countdownBody() []byte {
	return []byte{
		byte(wasm.OpcodeBlock), 0x40,
		byte(wasm.OpcodeLoop), 0x40,
		byte(wasm.OpcodeLocalGet), 0x00,
		byte(wasm.OpcodeI32Eqz),
		byte(wasm.OpcodeBrIf), 0x01, // exit to the enclosing block once local0 hits zero
		byte(wasm.OpcodeLocalGet), 0x00,
		byte(wasm.OpcodeI32Const), 0x01,
		byte(wasm.OpcodeI32Sub),
		byte(wasm.OpcodeLocalSet), 0x00,
		byte(wasm.OpcodeBr), 0x00, // back to the loop start
		byte(wasm.OpcodeEnd), // end loop
		byte(wasm.OpcodeEnd), // end block
		byte(wasm.OpcodeLocalGet), 0x00,
		byte(wasm.OpcodeEnd), // end function
	}
}

func TestCall_LoopCountsDownToZero(t *testing.T) {
	// local 0 is the loop counter, seeded from the argument: while local0 != 0,
	// decrement and branch back to the loop start; returns 0.
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{fnType(i32(), i32())},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{Body: countdownBody()}},
		ExportSection:   []*wasm.Export{{Type: wasm.ExternTypeFunc, Name: "countdown", Index: 0}},
	}
	s, inst := instantiate(t, mod)

	results, trapErr := callExport(t, s, inst, "countdown", 2000)
	require.Nil(t, trapErr)
	require.Equal(t, []uint64{0}, results)
}

func TestCall_LoopBackEdgeRequestsPromotion(t *testing.T) {
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{fnType(i32(), i32())},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{Body: countdownBody()}},
		ExportSection:   []*wasm.Export{{Type: wasm.ExternTypeFunc, Name: "countdown", Index: 0}},
	}
	mod.BuildImportCounts()
	s, ns := wasm.NewStore(wasm.FeatureWasm1_0)
	eng := interpreter.New()
	inst, err := s.Instantiate(ns, eng, mod, wasm.InstantiateConfig{Name: "m"})
	require.Nil(t, err)

	var promoted []wasm.Index
	s.RequestPromotion = func(fn *wasm.FunctionInstance) { promoted = append(promoted, fn.Idx) }

	exp := inst.Export("countdown")
	fn := inst.FuncAt(exp.FuncIdx)
	vm := wasm.NewVMContext(s, inst)
	_, trapErr := eng.Call(vm, fn, []uint64{interpreter.BackEdgeThreshold + 10})
	require.Nil(t, trapErr)
	require.Contains(t, promoted, fn.Idx)
}

func TestCall_MemoryFillThenLoad(t *testing.T) {
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{fnType(nil, i32())},
		FunctionSection: []wasm.Index{0},
		MemorySection:   []*wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		CodeSection: []*wasm.Code{{Body: []byte{
			byte(wasm.OpcodeI32Const), 0x00, // dst
			byte(wasm.OpcodeI32Const), 0x2a, // value
			byte(wasm.OpcodeI32Const), 0x04, // size
			wasm.FCPrefixByte, 0x0b, // memory.fill
			byte(wasm.OpcodeI32Const), 0x00,
			byte(wasm.OpcodeI32Load8U), 0x00, 0x00,
			byte(wasm.OpcodeEnd),
		}}},
		ExportSection: []*wasm.Export{{Type: wasm.ExternTypeFunc, Name: "fill", Index: 0}},
	}
	s, inst := instantiate(t, mod)

	results, trapErr := callExport(t, s, inst, "fill")
	require.Nil(t, trapErr)
	require.Equal(t, []uint64{0x2a}, results)
}

func TestCall_OutOfBoundsMemoryAccessTraps(t *testing.T) {
	body := []byte{byte(wasm.OpcodeI32Const), 0x00}
	body = append(body, byte(wasm.OpcodeI32Load))
	body = append(body, 0x00)                      // align hint
	body = append(body, uleb128(wasm.MemoryPageSize)...) // offset past the single page
	body = append(body, byte(wasm.OpcodeEnd))

	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{fnType(nil, i32())},
		FunctionSection: []wasm.Index{0},
		MemorySection:   []*wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		CodeSection:     []*wasm.Code{{Body: body}},
		ExportSection:   []*wasm.Export{{Type: wasm.ExternTypeFunc, Name: "oob", Index: 0}},
	}
	s, inst := instantiate(t, mod)

	_, trapErr := callExport(t, s, inst, "oob")
	require.NotNil(t, trapErr)
	require.Equal(t, wasm.ErrOutOfBoundsMemoryAccess, trapErr.Kind)
}

func TestCall_GlobalGetSet(t *testing.T) {
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{fnType(nil, i32())},
		FunctionSection: []wasm.Index{0},
		GlobalSection: []*wasm.Global{{
			Type: wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: true},
			Init: wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: []byte{0x09}},
		}},
		CodeSection: []*wasm.Code{{Body: []byte{
			byte(wasm.OpcodeGlobalGet), 0x00,
			byte(wasm.OpcodeI32Const), 0x01,
			byte(wasm.OpcodeI32Add),
			byte(wasm.OpcodeGlobalSet), 0x00,
			byte(wasm.OpcodeGlobalGet), 0x00,
			byte(wasm.OpcodeEnd),
		}}},
		ExportSection: []*wasm.Export{{Type: wasm.ExternTypeFunc, Name: "incr", Index: 0}},
	}
	s, inst := instantiate(t, mod)

	results, trapErr := callExport(t, s, inst, "incr")
	require.Nil(t, trapErr)
	require.Equal(t, []uint64{10}, results)
}

func TestCall_HostFunctionImport(t *testing.T) {
	hostType := fnType(i32(), i32())
	mod := &wasm.Module{
		TypeSection: []*wasm.FunctionType{hostType},
		ImportSection: []*wasm.Import{
			{Type: wasm.ExternTypeFunc, Module: "env", Name: "double", DescFunc: 0},
		},
		FunctionSection: nil,
		ExportSection:   []*wasm.Export{{Type: wasm.ExternTypeFunc, Name: "double", Index: 0}},
	}
	mod.BuildImportCounts()

	s, ns := wasm.NewStore(wasm.FeatureWasm1_0)
	eng := interpreter.New()

	// Register a host function directly in the Store and wrap it in a
	// hand-built Instance exporting it as "env.double", rather than round
	// tripping it through Store.Instantiate (which only ever compiles Wasm
	// function bodies out of a CodeSection, never host functions).
	hostFn := &wasm.FunctionInstance{
		Kind: wasm.FunctionKindHost,
		Type: hostType,
		Host: func(vm *wasm.VMContext, args []uint64, results []uint64) *wasm.WasmError {
			results[0] = args[0] * 2
			return nil
		},
	}
	idx := s.AddFunc(hostFn)
	envInst := &wasm.Instance{
		Name:      "env",
		FuncAddrs: []wasm.Index{idx},
		Exports: map[string]*wasm.ExportInstance{
			"double": {Type: wasm.ExternTypeFunc, FuncIdx: 0},
		},
	}
	require.Nil(t, ns.Register("env", envInst))

	inst, err := s.Instantiate(ns, eng, mod, wasm.InstantiateConfig{Name: "m"})
	require.Nil(t, err)

	results, trapErr := callExport(t, s, inst, "double", 21)
	require.Nil(t, trapErr)
	require.Equal(t, []uint64{42}, results)
}
