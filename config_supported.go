// Note: the JIT backend this runtime carries (spec.md §4.5) is ARM64-only
// (see the internal/jit section of DESIGN.md) — narrower than the
// teacher's own amd64+arm64 compiler support. Other GOARCH values fall back
// to the interpreter-only default via config_unsupported.go.
//go:build arm64

package zwasm

// CompilerSupported reports whether the compiler (JIT) tier is available on
// this GOARCH.
const CompilerSupported = true

// NewRuntimeConfig returns NewRuntimeConfigCompiler.
func NewRuntimeConfig() RuntimeConfig {
	return NewRuntimeConfigCompiler()
}
