//go:build heap_first_fit

package arena_test

import (
	"testing"

	"github.com/heapkit/microheap/arena"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestHeapFitPolicy(t *testing.T) {
	require.Equal(t, "first-fit", arena.FitPolicy)
}

func TestHeapAcquirePicksFirstHole(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, heap := readyHeap(t, 16, arena.CreateOptions{BlockSize: 16})

	bigHole, err := heap.Acquire(76)
	require.NoError(t, err)
	_, err = heap.Acquire(8)
	require.NoError(t, err)
	smallHole, err := heap.Acquire(24)
	require.NoError(t, err)
	_, err = heap.Acquire(8)
	require.NoError(t, err)

	// Free the small hole first so the big one sits at the head of the
	// free list, in front of it and the five-block tail.
	heap.Release(smallHole)
	heap.Release(bigHole)

	// A two-block request takes the first fitting run in list order: the
	// five-block hole at the head, not the snug two-block one behind it.
	p, err := heap.Acquire(24)
	require.NoError(t, err)
	require.Equal(t, bigHole, p)

	// The three surplus blocks stay free where the hole was split.
	require.Equal(t, 160, heap.FreeHeapSize())
	require.Equal(t, 80, heap.MaxFreeRunSize())
}
