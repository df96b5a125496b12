package heaputils_test

import (
	"testing"

	"github.com/heapkit/microheap/heaputils"
	"github.com/stretchr/testify/require"
)

func TestCheckPow2(t *testing.T) {
	require.NoError(t, heaputils.CheckPow2(1, "Size"))
	require.NoError(t, heaputils.CheckPow2(2, "Size"))
	require.NoError(t, heaputils.CheckPow2(64, "Size"))
	require.NoError(t, heaputils.CheckPow2(uint(32768), "Size"))

	err := heaputils.CheckPow2(12, "BlockSize")
	require.ErrorIs(t, err, heaputils.PowerOfTwoError)
	require.ErrorContains(t, err, "BlockSize is 12")

	// Zero has no set bit, so it is not a power of two.
	require.ErrorIs(t, heaputils.CheckPow2(0, "Size"), heaputils.PowerOfTwoError)
}

func TestAlignUp(t *testing.T) {
	require.Equal(t, 0, heaputils.AlignUp(0, 8))
	require.Equal(t, 8, heaputils.AlignUp(1, 8))
	require.Equal(t, 8, heaputils.AlignUp(8, 8))
	require.Equal(t, 16, heaputils.AlignUp(9, 8))
	require.Equal(t, 256, heaputils.AlignUp(129, 128))
}

func TestAlignDown(t *testing.T) {
	require.Equal(t, 0, heaputils.AlignDown(0, 8))
	require.Equal(t, 0, heaputils.AlignDown(7, 8))
	require.Equal(t, 8, heaputils.AlignDown(8, 8))
	require.Equal(t, 8, heaputils.AlignDown(15, 8))
	require.Equal(t, 128, heaputils.AlignDown(255, 128))
}
