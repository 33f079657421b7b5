package zwasm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zwasm/zwasm/internal/compilationcache"
)

// emptyModule is the smallest legal Wasm binary: the header with no
// sections. Good enough to exercise CompileModule's decode/validate/cache
// plumbing without hand-encoding a function body.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestRuntime_CompileModule(t *testing.T) {
	rt := NewRuntime(NewRuntimeConfigInterpreter())
	compiled, err := rt.CompileModule(emptyModule)
	require.NoError(t, err)
	require.NotNil(t, compiled)

	def := compiled.Definitions()
	require.Empty(t, def.Functions)
	require.Empty(t, def.Memories)
}

func TestRuntime_CompileModule_RejectsBadMagic(t *testing.T) {
	rt := NewRuntime(NewRuntimeConfigInterpreter())
	_, err := rt.CompileModule([]byte{0, 0, 0, 0, 1, 0, 0, 0})
	require.Error(t, err)
}

func TestRuntime_CompileModule_WithCompilationCache(t *testing.T) {
	dir := t.TempDir()
	ctx := context.WithValue(context.Background(), compilationcache.FileCachePathKey{}, dir)
	cache := compilationcache.NewFileCache(ctx)
	require.NotNil(t, cache)

	cfg := NewRuntimeConfigInterpreter().WithCompilationCache(cache)
	rt := NewRuntime(cfg)

	_, err := rt.CompileModule(emptyModule)
	require.NoError(t, err)

	// Second call on identical bytes should hit the cache and still succeed.
	compiled, err := rt.CompileModule(emptyModule)
	require.NoError(t, err)
	require.NotNil(t, compiled)
}

func TestRuntime_InstantiateModule_EmptyModule(t *testing.T) {
	rt := NewRuntime(NewRuntimeConfigInterpreter())
	compiled, err := rt.CompileModule(emptyModule)
	require.NoError(t, err)

	mod, err := rt.InstantiateModule(compiled, ModuleConfig{Name: "empty"})
	require.NoError(t, err)
	require.Nil(t, mod.ExportedFunction("missing"))

	_, ok := mod.ExportedGlobal("missing")
	require.False(t, ok)
}
