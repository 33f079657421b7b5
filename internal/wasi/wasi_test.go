package wasi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zwasm/zwasm/internal/wasm"
)

func newTestVM(t *testing.T, caps wasm.Capabilities) *wasm.VMContext {
	t.Helper()
	store, _ := wasm.NewStore(wasm.FeatureAll)
	memIdx := store.AddMemory(&wasm.LinearMemory{Buffer: make([]byte, wasm.MemoryPageSize)})
	inst := &wasm.Instance{
		Store:        store,
		MemAddrs:     []wasm.Index{memIdx},
		Exports:      map[string]*wasm.ExportInstance{},
		Capabilities: caps,
	}
	return wasm.NewVMContext(store, inst)
}

func TestFdRead_DeniedWithoutCapability(t *testing.T) {
	vm := newTestVM(t, wasm.Capabilities{})
	results := make([]uint64, 1)
	err := fdRead(vm, []uint64{0, 0, 0, 0}, results)
	require.Nil(t, err)
	require.Equal(t, uint64(ErrnoAcces), results[0])
}

func TestFdWrite_Stdout(t *testing.T) {
	vm := newTestVM(t, wasm.Capabilities{AllowWrite: true, AllowFD: true})
	mem := vm.Instance.Memory()
	msg := []byte("hi")
	require.True(t, mem.Write(100, msg))
	require.True(t, mem.WriteUint32Le(0, 100))            // iov.ptr
	require.True(t, mem.WriteUint32Le(4, uint32(len(msg)))) // iov.len

	results := make([]uint64, 1)
	err := fdWrite(vm, []uint64{1, 0, 1, 200}, results)
	require.Nil(t, err)
	require.Equal(t, uint64(ErrnoSuccess), results[0])
	n, ok := mem.ReadUint32Le(200)
	require.True(t, ok)
	require.Equal(t, uint32(len(msg)), n)
}

func TestRandomGet_FillsBuffer(t *testing.T) {
	vm := newTestVM(t, wasm.Capabilities{})
	results := make([]uint64, 1)
	err := randomGet(vm, []uint64{0, 16}, results)
	require.Nil(t, err)
	require.Equal(t, uint64(ErrnoSuccess), results[0])
}

func TestModule_ArgsGetRoundTrip(t *testing.T) {
	m := &Module{Args: []string{"a", "bc"}}
	vm := newTestVM(t, wasm.Capabilities{})

	sizes := make([]uint64, 1)
	require.Nil(t, m.argsSizesGet(vm, []uint64{0, 8}, sizes))
	mem := vm.Instance.Memory()
	count, _ := mem.ReadUint32Le(0)
	require.Equal(t, uint32(2), count)

	results := make([]uint64, 1)
	require.Nil(t, m.argsGet(vm, []uint64{16, 32}, results))
	require.Equal(t, uint64(ErrnoSuccess), results[0])
	off0, _ := mem.ReadUint32Le(16)
	require.Equal(t, uint32(32), off0)
}

func TestEnvironGet_DeniedWithoutCapability(t *testing.T) {
	m := &Module{Env: []string{"K=V"}}
	vm := newTestVM(t, wasm.Capabilities{})
	results := make([]uint64, 1)
	require.Nil(t, m.environGet(vm, []uint64{0, 0}, results))
	require.Equal(t, uint64(ErrnoAcces), results[0])
}
