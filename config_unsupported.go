//go:build !arm64

package zwasm

// CompilerSupported returns whether the compiler is supported in this environment.
const CompilerSupported = false

// NewRuntimeConfig returns NewRuntimeConfigInterpreter on GOARCH values
// without a JIT backend (spec.md §4.5 is ARM64-only).
func NewRuntimeConfig() RuntimeConfig {
	return NewRuntimeConfigInterpreter()
}
