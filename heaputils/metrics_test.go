package heaputils_test

import (
	"testing"

	"github.com/heapkit/microheap/heaputils"
	"github.com/stretchr/testify/require"
)

func TestMetricsAddRuns(t *testing.T) {
	var metrics heaputils.Metrics
	metrics.Clear()

	metrics.AddUsedRun(3)
	metrics.AddFreeRun(4)
	metrics.AddFreeRun(2)

	require.Equal(t, heaputils.Metrics{
		TotalEntries:      3,
		UsedEntries:       1,
		FreeEntries:       2,
		TotalBlocks:       9,
		UsedBlocks:        3,
		FreeBlocks:        6,
		FreeBlocksSquared: 20,
		MaxFreeContiguous: 4,
	}, metrics)

	metrics.Clear()
	require.Equal(t, heaputils.Metrics{}, metrics)
}

func TestMetricsAddMetrics(t *testing.T) {
	var left heaputils.Metrics
	left.Clear()
	left.AddUsedRun(5)
	left.AddFreeRun(2)

	var right heaputils.Metrics
	right.Clear()
	right.AddFreeRun(7)
	right.AddUsedRun(1)

	left.AddMetrics(&right)

	require.Equal(t, heaputils.Metrics{
		TotalEntries:      4,
		UsedEntries:       2,
		FreeEntries:       2,
		TotalBlocks:       15,
		UsedBlocks:        6,
		FreeBlocks:        9,
		FreeBlocksSquared: 53,
		MaxFreeContiguous: 7,
	}, left)
}

func TestUsageMetric(t *testing.T) {
	require.Equal(t, 0, heaputils.UsageMetric(0, 14))
	require.Equal(t, 40, heaputils.UsageMetric(4, 10))
	require.Equal(t, 700, heaputils.UsageMetric(7, 1))

	// With nothing free the ratio has no meaningful value.
	require.Equal(t, -1, heaputils.UsageMetric(14, 0))
}

func TestFragmentationMetric(t *testing.T) {
	// One contiguous run, no matter its size, is no fragmentation.
	require.Equal(t, 0, heaputils.FragmentationMetric(14, 196))
	require.Equal(t, 0, heaputils.FragmentationMetric(1, 1))

	// Two three-block holes.
	require.Equal(t, 34, heaputils.FragmentationMetric(6, 18))

	// Six scattered single blocks.
	require.Equal(t, 67, heaputils.FragmentationMetric(6, 6))

	// An exhausted heap is not fragmented, just full.
	require.Equal(t, 0, heaputils.FragmentationMetric(0, 0))
}

func TestMetricsMethodsDelegate(t *testing.T) {
	metrics := heaputils.Metrics{
		UsedBlocks:        4,
		FreeBlocks:        10,
		FreeBlocksSquared: 100,
	}

	require.Equal(t, 40, metrics.UsageMetric())
	require.Equal(t, 0, metrics.FragmentationMetric())
}
