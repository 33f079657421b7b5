// Package wasmdebug formats traps and function identifiers for
// human-readable output (spec.md §7 "a human-readable description"),
// mirroring the teacher's own internal/wasmdebug package.
package wasmdebug

import (
	"fmt"

	"github.com/zwasm/zwasm/internal/wasm"
)

// FuncName formats a module/function name pair for error context, falling
// back to a positional "$idx" when funcName is empty (anonymous local
// function, e.g. no "name" custom section).
func FuncName(moduleName, funcName string, funcIdx uint32) string {
	if funcName == "" {
		funcName = fmt.Sprintf("$%d", funcIdx)
	}
	return fmt.Sprintf("%s.%s", moduleName, funcName)
}

// FormatError renders a *wasm.WasmError the way the CLI prints it to
// stderr (spec.md §7 "error: <context>: <kind>").
func FormatError(context string, err *wasm.WasmError) string {
	if context == "" {
		return err.Error()
	}
	return fmt.Sprintf("error: %s: %s", context, err.Error())
}
