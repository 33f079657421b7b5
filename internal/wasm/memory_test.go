package wasm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryPageConsts(t *testing.T) {
	require.Equal(t, MemoryPageSize, uint32(1)<<MemoryPageSizeInBits)
	require.Equal(t, MemoryPageSize, MemoryMaxPages)
	require.Equal(t, MemoryPageSize, uint32(1<<16))
}

func TestMemoryPagesToBytesNum(t *testing.T) {
	for _, numPage := range []uint32{0, 1, 5, 10} {
		require.Equal(t, uint64(numPage)*uint64(MemoryPageSize), MemoryPagesToBytesNum(numPage))
	}
}

func TestLinearMemory_Grow_PageSize(t *testing.T) {
	t.Run("with max", func(t *testing.T) {
		max := uint32(10)
		m := &LinearMemory{Max: &max, Buffer: make([]byte, 0)}
		require.Equal(t, uint32(0), m.Grow(5))
		require.Equal(t, uint32(5), m.PageSize())
		// Zero page grow is well defined and returns the current size.
		require.Equal(t, uint32(5), m.Grow(0))
		require.Equal(t, uint32(5), m.PageSize())
		require.Equal(t, uint32(5), m.Grow(4))
		require.Equal(t, uint32(9), m.PageSize())
		// Growing two more pages would exceed max=10.
		require.Equal(t, uint32(math.MaxUint32), m.Grow(2))
		require.Equal(t, uint32(9), m.PageSize())
		// But growing exactly to the max still succeeds.
		require.Equal(t, uint32(9), m.Grow(1))
		require.Equal(t, max, m.PageSize())
	})
	t.Run("without max", func(t *testing.T) {
		m := &LinearMemory{Buffer: make([]byte, 0)}
		require.Equal(t, uint32(0), m.Grow(1))
		require.Equal(t, uint32(1), m.PageSize())
		require.Equal(t, uint32(math.MaxUint32), m.Grow(MemoryMaxPages))
		require.Equal(t, uint32(1), m.PageSize())
	})
	t.Run("cap tighter than max", func(t *testing.T) {
		max := uint32(20)
		m := &LinearMemory{Max: &max, Cap: 3, Buffer: make([]byte, 0)}
		require.Equal(t, uint32(0), m.Grow(3))
		require.Equal(t, uint32(math.MaxUint32), m.Grow(1))
	})
}

func TestLinearMemory_ReadWriteByte(t *testing.T) {
	m := &LinearMemory{Buffer: []byte{0, 0, 0, 0, 0, 0, 0, 16}}
	v, ok := m.ReadByte(7)
	require.True(t, ok)
	require.Equal(t, byte(16), v)

	_, ok = m.ReadByte(8)
	require.False(t, ok)

	require.True(t, m.WriteByte(0, 99))
	require.Equal(t, byte(99), m.Buffer[0])
	require.False(t, m.WriteByte(8, 1))
}

func TestLinearMemory_ReadWriteUint32Le(t *testing.T) {
	m := &LinearMemory{Buffer: []byte{0, 0, 0, 0, 16, 0, 0, 0}}
	v, ok := m.ReadUint32Le(4)
	require.True(t, ok)
	require.Equal(t, uint32(16), v)

	_, ok = m.ReadUint32Le(5)
	require.False(t, ok)

	w := &LinearMemory{Buffer: make([]byte, 8)}
	require.True(t, w.WriteUint32Le(4, 16))
	require.Equal(t, []byte{0, 0, 0, 0, 16, 0, 0, 0}, w.Buffer)
	require.False(t, w.WriteUint32Le(5, 16))
}

func TestLinearMemory_BoundsAtCommittedEdge(t *testing.T) {
	m := &LinearMemory{Buffer: make([]byte, MemoryPageSize)}
	m.Buffer[MemoryPageSize-1] = 7
	v, ok := m.ReadByte(MemoryPageSize - 1)
	require.True(t, ok)
	require.Equal(t, byte(7), v)

	_, ok = m.ReadByte(MemoryPageSize)
	require.False(t, ok)
}

func TestLinearMemory_FillCopyInit(t *testing.T) {
	m := &LinearMemory{Buffer: make([]byte, 16)}
	require.True(t, m.Fill(0, 0xab, 4))
	require.Equal(t, []byte{0xab, 0xab, 0xab, 0xab}, m.Buffer[:4])

	require.True(t, m.Copy(8, 0, 4))
	require.Equal(t, m.Buffer[:4], m.Buffer[8:12])

	require.False(t, m.Fill(15, 1, 2))
	require.False(t, m.Copy(15, 0, 2))

	seg := []byte{1, 2, 3, 4}
	require.True(t, m.Init(seg, 0, 1, 2))
	require.Equal(t, []byte{2, 3}, m.Buffer[:2])
	require.False(t, m.Init(seg, 0, 3, 2))
}
