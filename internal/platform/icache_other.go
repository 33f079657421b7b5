//go:build !arm64

package platform

// FlushInstructionCache is a no-op off arm64: internal/jit's native backend
// is ARM64-only (spec.md §4.5), so this build only exists to let
// internal/platform's tests and internal/jit's interpreter-fallback path
// compile on a development machine of any architecture.
func FlushInstructionCache(mem []byte) {}
