package main

import (
	"github.com/fatih/color"

	"github.com/zwasm/zwasm/internal/wasm"
)

// asWasmError unwraps the concrete *wasm.WasmError from an error interface
// returned by the zwasm package's public API, falling back to a generic
// Trap-kind wrapper for anything else (defensive only — every error this
// CLI sees originates from internal/wasm's own error-kind taxonomy).
func asWasmError(err error) *wasm.WasmError {
	if werr, ok := err.(*wasm.WasmError); ok {
		return werr
	}
	return wasm.WrapError(wasm.ErrTrap, "", err)
}

var (
	colorBold  = color.New(color.Bold)
	colorFaint = color.New(color.Faint)
)
