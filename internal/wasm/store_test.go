package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeEngine compiles nothing and records every Call, standing in for
// internal/interpreter/internal/jit in tests that only exercise Store
// bookkeeping (import resolution, segment application, export wiring).
type fakeEngine struct {
	calls []Index
}

func (e *fakeEngine) CompileFunction(mod *Module, typ *FunctionType, code *Code) (interface{}, error) {
	return code, nil
}

func (e *fakeEngine) Call(vm *VMContext, fn *FunctionInstance, args []uint64) ([]uint64, *WasmError) {
	e.calls = append(e.calls, fn.Idx)
	return nil, nil
}

func emptyType() *FunctionType { return &FunctionType{} }

func TestStore_InstantiateNoImports(t *testing.T) {
	mod := &Module{
		TypeSection:     []*FunctionType{emptyType()},
		FunctionSection: []Index{0},
		CodeSection:     []*Code{{Body: []byte{byte(OpcodeEnd)}}},
		MemorySection:   []*MemoryType{{Limits: Limits{Min: 1}}},
		ExportSection:   []*Export{{Type: ExternTypeFunc, Name: "run", Index: 0}},
	}
	mod.BuildImportCounts()

	s, ns := NewStore(FeatureWasm1_0)
	eng := &fakeEngine{}
	inst, err := s.Instantiate(ns, eng, mod, InstantiateConfig{Name: "main"})
	require.Nil(t, err)
	require.NotNil(t, inst)

	require.Len(t, s.Funcs, 1)
	require.Len(t, s.Memories, 1)
	require.Equal(t, uint32(1), s.Memories[0].PageSize())

	exp := inst.Export("run")
	require.NotNil(t, exp)
	require.Equal(t, ExternTypeFunc, exp.Type)

	got, ok := ns.Module("main")
	require.True(t, ok)
	require.Same(t, inst, got)
}

func TestStore_InstantiateWithImportsAndStart(t *testing.T) {
	s, ns := NewStore(FeatureWasm1_0)
	eng := &fakeEngine{}

	provider := &Module{
		TypeSection:     []*FunctionType{emptyType()},
		FunctionSection: []Index{0},
		CodeSection:     []*Code{{Body: []byte{byte(OpcodeEnd)}}},
		ExportSection:   []*Export{{Type: ExternTypeFunc, Name: "start_fn", Index: 0}},
	}
	provider.BuildImportCounts()
	providerInst, err := s.Instantiate(ns, eng, provider, InstantiateConfig{Name: "env"})
	require.Nil(t, err)
	require.NotNil(t, providerInst)

	startIdx := Index(0)
	consumer := &Module{
		TypeSection: []*FunctionType{emptyType()},
		ImportSection: []*Import{
			{Type: ExternTypeFunc, Module: "env", Name: "start_fn", DescFunc: 0},
		},
		StartSection: &startIdx,
	}
	consumer.BuildImportCounts()

	consumerInst, err := s.Instantiate(ns, eng, consumer, InstantiateConfig{Name: "consumer"})
	require.Nil(t, err)
	require.NotNil(t, consumerInst)
	require.Len(t, consumerInst.FuncAddrs, 1)
	require.Equal(t, []Index{0}, eng.calls)
}

func TestStore_InstantiateMissingImport(t *testing.T) {
	s, ns := NewStore(FeatureWasm1_0)
	eng := &fakeEngine{}

	mod := &Module{
		TypeSection: []*FunctionType{emptyType()},
		ImportSection: []*Import{
			{Type: ExternTypeFunc, Module: "env", Name: "missing", DescFunc: 0},
		},
	}
	mod.BuildImportCounts()

	_, err := s.Instantiate(ns, eng, mod, InstantiateConfig{Name: "m"})
	require.NotNil(t, err)
	require.Equal(t, ErrImportNotFound, err.Kind)
}

func TestStore_InstantiateActiveDataSegment(t *testing.T) {
	s, ns := NewStore(FeatureWasm1_0)
	eng := &fakeEngine{}

	mod := &Module{
		TypeSection:   []*FunctionType{},
		MemorySection: []*MemoryType{{Limits: Limits{Min: 1}}},
		DataSection: []*DataSegment{
			{
				MemoryIndex: 0,
				OffsetExpr:  ConstantExpression{Opcode: OpcodeI32Const, Data: []byte{0x04}},
				Init:        []byte{1, 2, 3},
			},
		},
	}
	mod.BuildImportCounts()

	inst, err := s.Instantiate(ns, eng, mod, InstantiateConfig{Name: "datamod"})
	require.Nil(t, err)

	mem := inst.Memory()
	b, ok := mem.Read(4, 3)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, b)
}
