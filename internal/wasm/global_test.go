package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zwasm/zwasm/api"
)

func TestGlobalInstance(t *testing.T) {
	tests := []struct {
		name       string
		global     *GlobalInstance
		expectType ValueType
		expectStr  string
	}{
		{
			name:       "i32",
			global:     &GlobalInstance{Type: GlobalType{ValType: ValueTypeI32}, Val: 1},
			expectType: ValueTypeI32,
			expectStr:  "global(1)",
		},
		{
			name:       "i64",
			global:     &GlobalInstance{Type: GlobalType{ValType: ValueTypeI64}, Val: 1},
			expectType: ValueTypeI64,
			expectStr:  "global(1)",
		},
		{
			name:       "f32",
			global:     &GlobalInstance{Type: GlobalType{ValType: ValueTypeF32}, Val: uint64(api.EncodeF32(1.0))},
			expectType: ValueTypeF32,
			expectStr:  "global(1.000000)",
		},
		{
			name:       "f64",
			global:     &GlobalInstance{Type: GlobalType{ValType: ValueTypeF64}, Val: api.EncodeF64(1.0)},
			expectType: ValueTypeF64,
			expectStr:  "global(1.000000)",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expectType, tc.global.Type.ValType)
			require.Equal(t, tc.expectStr, tc.global.String())
		})
	}
}

func TestGlobalInstance_SetMutable(t *testing.T) {
	g := &GlobalInstance{Type: GlobalType{ValType: ValueTypeI32, Mutable: true}, Val: 1}
	g.Set(42)
	require.Equal(t, uint64(42), g.Get())
}
