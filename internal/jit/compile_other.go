//go:build !arm64

package jit

import "github.com/zwasm/zwasm/internal/regir"

// tryCompileNative has no backend outside arm64 (spec.md §4.5 is ARM64-only);
// every function falls back to the interpreter on this build.
func tryCompileNative(rf *regir.RegFunc) (*Code, bool) {
	return nil, false
}
