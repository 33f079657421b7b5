package jit_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zwasm/zwasm/internal/interpreter"
	"github.com/zwasm/zwasm/internal/jit"
	"github.com/zwasm/zwasm/internal/regir"
	"github.com/zwasm/zwasm/internal/wasm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fnType(params, results []wasm.ValueType) *wasm.FunctionType {
	return &wasm.FunctionType{Params: params, Results: results}
}

func i32() []wasm.ValueType { return []wasm.ValueType{wasm.ValueTypeI32} }

// lowerFunc decodes a single-function module's body straight to its RegFunc,
// the same lowering both tiers consume (see internal/regir).
func lowerFunc(t *testing.T, typ *wasm.FunctionType, body []byte) *regir.RegFunc {
	t.Helper()
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{typ},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{Body: body}},
	}
	mod.BuildImportCounts()
	rf, err := regir.Lower(mod, typ, mod.CodeSection[0])
	require.Nil(t, err)
	return rf
}

func TestCompile_EligibleStraightLineFunctionRunsNatively(t *testing.T) {
	if runtime.GOARCH != "arm64" {
		t.Skip("native codegen is arm64-only")
	}

	rf := lowerFunc(t, fnType(append(i32(), i32()...), i32()), []byte{
		byte(wasm.OpcodeLocalGet), 0x00,
		byte(wasm.OpcodeLocalGet), 0x01,
		byte(wasm.OpcodeI32Add),
		byte(wasm.OpcodeEnd),
	})

	code, ok := jit.Compile(rf)
	require.True(t, ok)
	require.NotNil(t, code)

	s, ns := wasm.NewStore(wasm.FeatureWasm1_0)
	inst, err := s.Instantiate(ns, interpreter.New(), &wasm.Module{
		TypeSection:     []*wasm.FunctionType{fnType(append(i32(), i32()...), i32())},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{{Body: []byte{
			byte(wasm.OpcodeLocalGet), 0x00,
			byte(wasm.OpcodeLocalGet), 0x01,
			byte(wasm.OpcodeI32Add),
			byte(wasm.OpcodeEnd),
		}}},
		ExportSection: []*wasm.Export{{Type: wasm.ExternTypeFunc, Name: "add", Index: 0}},
	}, wasm.InstantiateConfig{Name: "m"})
	require.Nil(t, err)

	fn := inst.FuncAt(inst.Export("add").FuncIdx)
	vm := wasm.NewVMContext(s, inst)

	results, trapErr := jit.Call(vm, fn, code, []uint64{19, 23})
	require.Nil(t, trapErr)
	require.Equal(t, []uint64{42}, results)
}

func TestCompile_DivisionByZeroTraps(t *testing.T) {
	if runtime.GOARCH != "arm64" {
		t.Skip("native codegen is arm64-only")
	}

	typ := fnType(append(i32(), i32()...), i32())
	body := []byte{
		byte(wasm.OpcodeLocalGet), 0x00,
		byte(wasm.OpcodeLocalGet), 0x01,
		byte(wasm.OpcodeI32DivS),
		byte(wasm.OpcodeEnd),
	}
	rf := lowerFunc(t, typ, body)
	code, ok := jit.Compile(rf)
	require.True(t, ok)

	s, ns := wasm.NewStore(wasm.FeatureWasm1_0)
	inst, err := s.Instantiate(ns, interpreter.New(), &wasm.Module{
		TypeSection:     []*wasm.FunctionType{typ},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{Body: body}},
		ExportSection:   []*wasm.Export{{Type: wasm.ExternTypeFunc, Name: "div", Index: 0}},
	}, wasm.InstantiateConfig{Name: "m"})
	require.Nil(t, err)

	fn := inst.FuncAt(inst.Export("div").FuncIdx)
	vm := wasm.NewVMContext(s, inst)

	_, trapErr := jit.Call(vm, fn, code, []uint64{7, 0})
	require.NotNil(t, trapErr)
	require.Equal(t, wasm.ErrDivisionByZero, trapErr.Kind)
}

func TestCompile_RejectsCallBearingFunctions(t *testing.T) {
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
	}
	mod.BuildImportCounts()
	rf, err := regir.Lower(mod, callerType, mod.CodeSection[1])
	require.Nil(t, err)

	code, ok := jit.Compile(rf)
	require.False(t, ok)
	require.Nil(t, code)
}

func TestCompile_RejectsFloatFunctions(t *testing.T) {
	f32 := []wasm.ValueType{wasm.ValueTypeF32}
	typ := fnType(nil, f32)
	rf := lowerFunc(t, typ, []byte{
		byte(wasm.OpcodeF32Const), 0x00, 0x00, 0x80, 0x3f,
		byte(wasm.OpcodeEnd),
	})

	code, ok := jit.Compile(rf)
	require.False(t, ok)
	require.Nil(t, code)
}
