package validator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zwasm/zwasm/internal/wasm"
)

func fn(results []wasm.ValueType) *wasm.FunctionType { return &wasm.FunctionType{Results: results} }

func moduleWithFunc(typ *wasm.FunctionType, body []byte, locals ...wasm.ValueType) *wasm.Module {
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{typ},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{LocalTypes: locals, Body: body}},
		MemorySection:   []*wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
	}
	mod.BuildImportCounts()
	return mod
}

func TestValidateModule_ValidFunctionBodies(t *testing.T) {
	tests := []struct {
		name   string
		typ    *wasm.FunctionType
		body   []byte
		locals []wasm.ValueType
	}{
		{
			name: "empty void function",
			typ:  fn(nil),
			body: []byte{byte(wasm.OpcodeEnd)},
		},
		{
			name: "i32 const result",
			typ:  fn([]wasm.ValueType{wasm.ValueTypeI32}),
			body: []byte{byte(wasm.OpcodeI32Const), 0x05, byte(wasm.OpcodeEnd)},
		},
		{
			name: "local.get local.set roundtrip",
			typ:  fn([]wasm.ValueType{wasm.ValueTypeI32}),
			body: []byte{
				byte(wasm.OpcodeLocalGet), 0x00,
				byte(wasm.OpcodeLocalSet), 0x01,
				byte(wasm.OpcodeLocalGet), 0x01,
				byte(wasm.OpcodeEnd),
			},
			locals: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32},
		},
		{
			name: "i32.add",
			typ:  fn([]wasm.ValueType{wasm.ValueTypeI32}),
			body: []byte{
				byte(wasm.OpcodeI32Const), 0x01,
				byte(wasm.OpcodeI32Const), 0x02,
				byte(wasm.OpcodeI32Add),
				byte(wasm.OpcodeEnd),
			},
		},
		{
			name: "block with i32 result",
			typ:  fn([]wasm.ValueType{wasm.ValueTypeI32}),
			body: []byte{
				byte(wasm.OpcodeBlock), 0x7f, // blocktype i32
				byte(wasm.OpcodeI32Const), 0x09,
				byte(wasm.OpcodeEnd), // end block
				byte(wasm.OpcodeEnd), // end function
			},
		},
		{
			name: "if/else both branches produce i32",
			typ:  fn([]wasm.ValueType{wasm.ValueTypeI32}),
			body: []byte{
				byte(wasm.OpcodeI32Const), 0x01,
				byte(wasm.OpcodeIf), 0x7f,
				byte(wasm.OpcodeI32Const), 0x02,
				byte(wasm.OpcodeElse),
				byte(wasm.OpcodeI32Const), 0x03,
				byte(wasm.OpcodeEnd), // end if
				byte(wasm.OpcodeEnd), // end function
			},
		},
		{
			name: "br_if back to the loop start",
			typ:  fn(nil),
			body: []byte{
				byte(wasm.OpcodeLoop), 0x40,
				byte(wasm.OpcodeI32Const), 0x00,
				byte(wasm.OpcodeBrIf), 0x00,
				byte(wasm.OpcodeEnd), // end loop
				byte(wasm.OpcodeEnd), // end function
			},
		},
		{
			name: "unreachable makes the rest of the block polymorphic",
			typ:  fn([]wasm.ValueType{wasm.ValueTypeI32}),
			body: []byte{
				byte(wasm.OpcodeUnreachable),
				byte(wasm.OpcodeI32Add), // would underflow if checked strictly
				byte(wasm.OpcodeEnd),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := moduleWithFunc(tt.typ, tt.body, tt.locals...)
			err := ValidateModule(mod, wasm.FeatureAll)
			require.Nil(t, err, "%v", err)
		})
	}
}

func TestValidateModule_RejectsInvalidFunctionBodies(t *testing.T) {
	tests := []struct {
		name string
		typ  *wasm.FunctionType
		body []byte
	}{
		{
			name: "type mismatch on add operands",
			typ:  fn([]wasm.ValueType{wasm.ValueTypeI32}),
			body: []byte{
				byte(wasm.OpcodeI64Const), 0x01,
				byte(wasm.OpcodeI32Const), 0x02,
				byte(wasm.OpcodeI32Add),
				byte(wasm.OpcodeEnd),
			},
		},
		{
			name: "operand stack underflow",
			typ:  fn([]wasm.ValueType{wasm.ValueTypeI32}),
			body: []byte{byte(wasm.OpcodeI32Add), byte(wasm.OpcodeEnd)},
		},
		{
			name: "missing result value",
			typ:  fn([]wasm.ValueType{wasm.ValueTypeI32}),
			body: []byte{byte(wasm.OpcodeEnd)},
		},
		{
			name: "branch depth out of range",
			typ:  fn(nil),
			body: []byte{
				byte(wasm.OpcodeI32Const), 0x00,
				byte(wasm.OpcodeBrIf), 0x05,
				byte(wasm.OpcodeEnd),
			},
		},
		{
			name: "unknown local",
			typ:  fn(nil),
			body: []byte{byte(wasm.OpcodeLocalGet), 0x00, byte(wasm.OpcodeEnd)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := moduleWithFunc(tt.typ, tt.body)
			err := ValidateModule(mod, wasm.FeatureAll)
			require.NotNil(t, err)
		})
	}
}

func TestValidateModule_GlobalInitMustBeConstant(t *testing.T) {
	mod := &wasm.Module{
		GlobalSection: []*wasm.Global{
			{
				Type: wasm.GlobalType{ValType: wasm.ValueTypeI32},
				Init: wasm.ConstantExpression{Opcode: wasm.OpcodeLocalGet, Data: []byte{0x00}},
			},
		},
	}
	mod.BuildImportCounts()
	err := ValidateModule(mod, wasm.FeatureAll)
	require.NotNil(t, err)
	require.Equal(t, wasm.ErrConstantExprRequired, err.Kind)
}

func TestValidateModule_GlobalInitTypeMismatch(t *testing.T) {
	mod := &wasm.Module{
		GlobalSection: []*wasm.Global{
			{
				Type: wasm.GlobalType{ValType: wasm.ValueTypeI64},
				Init: wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: []byte{0x01}},
			},
		},
	}
	mod.BuildImportCounts()
	err := ValidateModule(mod, wasm.FeatureAll)
	require.NotNil(t, err)
}

func TestValidateModule_DataCountRequiredForMemoryInit(t *testing.T) {
	body := []byte{
		byte(wasm.OpcodeI32Const), 0x00,
		byte(wasm.OpcodeI32Const), 0x00,
		byte(wasm.OpcodeI32Const), 0x00,
		wasm.FCPrefixByte, 0x08, 0x00, 0x00, // memory.init 0 0
		byte(wasm.OpcodeEnd),
	}
	mod := moduleWithFunc(fn(nil), body)
	err := ValidateModule(mod, wasm.FeatureAll)
	require.NotNil(t, err)
	require.Equal(t, wasm.ErrDataCountRequired, err.Kind)
}

func TestValidateModule_BulkMemoryRequiresFeature(t *testing.T) {
	body := []byte{
		byte(wasm.OpcodeI32Const), 0x00,
		byte(wasm.OpcodeI32Const), 0x00,
		byte(wasm.OpcodeI32Const), 0x00,
		wasm.FCPrefixByte, 0x0b, // memory.fill
		byte(wasm.OpcodeEnd),
	}
	mod := moduleWithFunc(fn(nil), body)
	err := ValidateModule(mod, wasm.FeatureWasm1_0)
	require.NotNil(t, err)
}

func TestValidateModule_CallIndirectChecksSignature(t *testing.T) {
	calleeType := fn([]wasm.ValueType{wasm.ValueTypeI32})
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{calleeType},
		FunctionSection: []wasm.Index{0},
		TableSection: []*wasm.TableType{
			{ElemType: wasm.RefType{Kind: wasm.ValueTypeFuncref}, Limits: wasm.Limits{Min: 1}},
		},
		CodeSection: []*wasm.Code{
			{Body: []byte{byte(wasm.OpcodeI32Const), 0x05, byte(wasm.OpcodeEnd)}},
			{
				Body: []byte{
					byte(wasm.OpcodeI32Const), 0x00, // table index operand
					byte(wasm.OpcodeCallIndirect), 0x00, 0x00,
					byte(wasm.OpcodeEnd),
				},
			},
		},
	}
	mod.FunctionSection = append(mod.FunctionSection, 0)
	mod.BuildImportCounts()
	err := ValidateModule(mod, wasm.FeatureAll)
	require.Nil(t, err, "%v", err)
}
