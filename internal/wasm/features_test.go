package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatures_ZeroIsInvalid(t *testing.T) {
	f := Features(0)
	f = f.Set(0, true)
	require.False(t, f.Get(0))
}

func TestFeatures_SetGet(t *testing.T) {
	for _, tc := range []Features{1, FeatureSIMD, 1 << 63} {
		f := Features(0)
		require.False(t, f.Get(tc))
		f = f.Set(tc, true)
		require.True(t, f.Get(tc))
		f = f.Set(tc, false)
		require.False(t, f.Get(tc))
	}
}

func TestFeatures_String(t *testing.T) {
	require.Equal(t, "", Features(0).String())
	require.Equal(t, "mutable-global", FeatureMutableGlobal.String())
	require.Equal(t, "mutable-global,simd", (FeatureMutableGlobal | FeatureSIMD).String())
}
