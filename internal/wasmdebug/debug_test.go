package wasmdebug

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zwasm/zwasm/internal/wasm"
)

func TestFuncName(t *testing.T) {
	require.Equal(t, "mod.$3", FuncName("mod", "", 3))
	require.Equal(t, "mod.add", FuncName("mod", "add", 3))
}

func TestFormatError(t *testing.T) {
	err := wasm.NewError(wasm.ErrDivisionByZero, "function[0]")
	require.Equal(t, "error: run: function[0]: DivisionByZero", FormatError("run", err))
}
