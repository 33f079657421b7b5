package regir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zwasm/zwasm/internal/wasm"
)

func fn(params, results []wasm.ValueType) *wasm.FunctionType {
	return &wasm.FunctionType{Params: params, Results: results}
}

func code(body []byte, locals ...wasm.ValueType) *wasm.Code {
	return &wasm.Code{LocalTypes: locals, Body: body}
}

func emptyModule() *wasm.Module {
	mod := &wasm.Module{}
	mod.BuildImportCounts()
	return mod
}

func TestLower_I32ConstAdd(t *testing.T) {
	typ := fn(nil, []wasm.ValueType{wasm.ValueTypeI32})
	body := []byte{
		byte(wasm.OpcodeI32Const), 0x01,
		byte(wasm.OpcodeI32Const), 0x02,
		byte(wasm.OpcodeI32Add),
		byte(wasm.OpcodeEnd),
	}
	rf, err := Lower(emptyModule(), typ, code(body))
	require.NoError(t, err)
	require.NotEmpty(t, rf.Code)
	last := rf.Code[len(rf.Code)-1]
	require.Equal(t, OpReturn, last.Op)
}

func TestLower_LocalFusionElidesConst(t *testing.T) {
	// local.get 0; i32.const 5; i32.add -- should fuse into OpAddImmI32 and
	// drop the dead i32.const instruction entirely.
	typ := fn([]wasm.ValueType{wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32})
	body := []byte{
		byte(wasm.OpcodeLocalGet), 0x00,
		byte(wasm.OpcodeI32Const), 0x05,
		byte(wasm.OpcodeI32Add),
		byte(wasm.OpcodeEnd),
	}
	rf, err := Lower(emptyModule(), typ, code(body))
	require.NoError(t, err)

	foundFused := false
	foundConst := false
	for _, ins := range rf.Code {
		if ins.Op == OpAddImmI32 {
			foundFused = true
			require.EqualValues(t, 5, ins.Operand)
		}
		if ins.Op == wasm.OpcodeI32Const {
			foundConst = true
		}
	}
	require.True(t, foundFused)
	require.False(t, foundConst)
}

func TestLower_LocalSetMaterializesAlias(t *testing.T) {
	// local.get 0 (push alias); local.set 0 with a new value must not
	// retroactively change the already-pushed alias, so the aliasing entry
	// is materialized into a fresh register first.
	typ := fn([]wasm.ValueType{wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32})
	body := []byte{
		byte(wasm.OpcodeLocalGet), 0x00,
		byte(wasm.OpcodeI32Const), 0x09,
		byte(wasm.OpcodeLocalSet), 0x00,
		byte(wasm.OpcodeLocalGet), 0x00,
		byte(wasm.OpcodeEnd),
	}
	rf, err := Lower(emptyModule(), typ, code(body))
	require.NoError(t, err)

	moveCount := 0
	for _, ins := range rf.Code {
		if ins.Op == OpMove {
			moveCount++
		}
	}
	require.GreaterOrEqual(t, moveCount, 1)
	require.Greater(t, rf.RegCount, uint8(1))
}

func TestLower_IfElseBothArmsMoveIntoSharedResultRegister(t *testing.T) {
	typ := fn(nil, []wasm.ValueType{wasm.ValueTypeI32})
	body := []byte{
		byte(wasm.OpcodeI32Const), 0x01,
		byte(wasm.OpcodeIf), 0x7f,
		byte(wasm.OpcodeI32Const), 0x02,
		byte(wasm.OpcodeElse),
		byte(wasm.OpcodeI32Const), 0x03,
		byte(wasm.OpcodeEnd),
		byte(wasm.OpcodeEnd),
	}
	rf, err := Lower(emptyModule(), typ, code(body))
	require.NoError(t, err)
	require.NotEmpty(t, rf.Code)
}

func TestLower_LoopBranchTargetsLoopStart(t *testing.T) {
	typ := fn(nil, nil)
	body := []byte{
		byte(wasm.OpcodeLoop), 0x40,
		byte(wasm.OpcodeI32Const), 0x00,
		byte(wasm.OpcodeBrIf), 0x00,
		byte(wasm.OpcodeEnd),
		byte(wasm.OpcodeEnd),
	}
	rf, err := Lower(emptyModule(), typ, code(body))
	require.NoError(t, err)

	var brIf *RegInstr
	for i := range rf.Code {
		if rf.Code[i].Op == OpBrIfNZ {
			brIf = &rf.Code[i]
		}
	}
	require.NotNil(t, brIf)
	require.Equal(t, uint32(0), brIf.Operand)
}

func TestLower_CallPacksArguments(t *testing.T) {
	callee := fn([]wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32})
	caller := fn(nil, []wasm.ValueType{wasm.ValueTypeI32})
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{callee},
		FunctionSection: []wasm.Index{0, 0},
	}
	mod.BuildImportCounts()

	body := []byte{
		byte(wasm.OpcodeI32Const), 0x01,
		byte(wasm.OpcodeI32Const), 0x02,
		byte(wasm.OpcodeI32Const), 0x03,
		byte(wasm.OpcodeI32Const), 0x04,
		byte(wasm.OpcodeI32Const), 0x05,
		byte(wasm.OpcodeCall), 0x00,
		byte(wasm.OpcodeEnd),
	}
	rf, err := Lower(mod, caller, code(body))
	require.NoError(t, err)

	callIdx := -1
	for i, ins := range rf.Code {
		if ins.Op == OpCall {
			callIdx = i
		}
	}
	require.GreaterOrEqual(t, callIdx, 0)
	require.Less(t, callIdx+1, len(rf.Code))
	require.Equal(t, OpNop, rf.Code[callIdx+1].Op)
}
