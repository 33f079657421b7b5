package platform

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMmapCodeSegment_RejectsEmpty(t *testing.T) {
	_, err := MmapCodeSegment(nil)
	require.Error(t, err)
}

func TestMmapCodeSegment_RoundTrip(t *testing.T) {
	code := make([]byte, 37) // deliberately not page-aligned
	for i := range code {
		code[i] = byte(i)
	}

	seg, err := MmapCodeSegment(code)
	require.NoError(t, err)
	require.True(t, seg.Len() >= len(code))

	require.NoError(t, RemapCodeSegment(seg))
	require.NoError(t, MunmapCodeSegment(seg))
}

func TestFlushInstructionCache_EmptyIsNoop(t *testing.T) {
	FlushInstructionCache(nil)
}
