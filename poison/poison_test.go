package poison_test

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/heapkit/microheap/arena"
	"github.com/heapkit/microheap/poison"
	"github.com/heapkit/microheap/poison/mock_poison"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/exp/slog"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func readyPoisonedHeap(t *testing.T, onCorruption func(err error)) ([]byte, *arena.Heap, *poison.Heap) {
	buf := make([]byte, 256)
	inner, err := arena.New(quietLogger(), buf, arena.CreateOptions{
		BlockSize:    16,
		OnCorruption: onCorruption,
	})
	require.NoError(t, err)

	return buf, inner, poison.Wrap(quietLogger(), inner)
}

// fencedRegion builds the raw bytes of a healthy poisoned allocation holding
// size caller bytes, the way fence lays them out.
func fencedRegion(size int) []byte {
	region := make([]byte, size+10)
	binary.LittleEndian.PutUint16(region, uint16(size+10))
	for i := 2; i < 6; i++ {
		region[i] = poison.PoisonByte
	}
	for i := size + 6; i < size+10; i++ {
		region[i] = poison.PoisonByte
	}
	return region
}

func TestPoisonAcquireRoundTrip(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	buf, inner, heap := readyPoisonedHeap(t, nil)

	p, err := heap.Acquire(12)
	require.NoError(t, err)
	require.Equal(t, arena.Pointer(26), p)

	// The caller's view is sized exactly as requested.
	payload := heap.Bytes(p)
	require.Len(t, payload, 12)
	fillPattern(payload, 0x10)

	// Behind the scenes: a length prefix counting the whole poisoned
	// region, then a guard fence on each side of the caller's bytes.
	require.Equal(t, uint16(22), binary.LittleEndian.Uint16(buf[20:22]))
	for _, i := range []int{22, 23, 24, 25, 38, 39, 40, 41} {
		require.Equalf(t, poison.PoisonByte, buf[i], "guard byte %d", i)
	}
	requirePattern(t, buf[26:38], 0x10)

	require.True(t, heap.CheckCorruption())

	heap.Release(p)
	require.True(t, inner.IsEmpty())
}

func TestPoisonAcquireValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, inner, heap := readyPoisonedHeap(t, nil)

	p, err := heap.Acquire(0)
	require.NoError(t, err)
	require.Equal(t, arena.NullPointer, p)
	require.True(t, inner.IsEmpty())

	_, err = heap.Acquire(-1)
	require.ErrorContains(t, err, "negative")
}

func TestPoisonAcquireOversize(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, heap := readyPoisonedHeap(t, nil)

	_, err := heap.Acquire(poison.MaxAllocationSize + 1)
	require.ErrorIs(t, err, poison.OversizeError)

	_, err = heap.AcquireZeroed(poison.MaxAllocationSize+1, 1)
	require.ErrorIs(t, err, poison.OversizeError)

	_, err = heap.Resize(arena.NullPointer, poison.MaxAllocationSize+1)
	require.ErrorIs(t, err, poison.OversizeError)

	// At the ceiling the request is legal, just far too big for this
	// particular heap.
	_, err = heap.Acquire(poison.MaxAllocationSize)
	require.ErrorIs(t, err, arena.OutOfMemoryError)
}

func TestPoisonDetectsTrailingFenceDamage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var reported error
	buf, inner, heap := readyPoisonedHeap(t, func(err error) { reported = err })

	p, err := heap.Acquire(12)
	require.NoError(t, err)

	// Write one byte past the caller's region, as an off-by-one overflow
	// would.
	buf[38] = 0x00

	require.False(t, heap.CheckCorruption())
	require.ErrorContains(t, reported, "after the allocation")

	// The damage is reported, but the memory still comes back.
	heap.Release(p)
	require.True(t, inner.IsEmpty())
}

func TestPoisonReleaseReportsDamageBeforeFreeing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var reported error
	buf, inner, heap := readyPoisonedHeap(t, func(err error) { reported = err })

	p, err := heap.Acquire(10)
	require.NoError(t, err)

	// Smash a single trailing guard byte, then release without any sweep
	// in between: the release itself must surface the damage.
	buf[int(p)+10] = 0x00

	heap.Release(p)
	require.ErrorContains(t, reported, "after the allocation")
	require.True(t, inner.IsEmpty())
}

func TestPoisonDetectsLeadingFenceDamage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var reported error
	buf, inner, heap := readyPoisonedHeap(t, func(err error) { reported = err })

	p, err := heap.Acquire(12)
	require.NoError(t, err)

	buf[25] = 0x00

	require.False(t, heap.CheckCorruption())
	require.ErrorContains(t, reported, "before the allocation")

	heap.Release(p)
	require.True(t, inner.IsEmpty())
}

func TestPoisonDetectsCorruptLengthPrefix(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var reported error
	buf, _, heap := readyPoisonedHeap(t, func(err error) { reported = err })

	p, err := heap.Acquire(12)
	require.NoError(t, err)

	binary.LittleEndian.PutUint16(buf[20:22], 60000)

	require.False(t, heap.CheckCorruption())
	require.ErrorContains(t, reported, "corrupt length prefix")

	// Bytes cannot trust the prefix to find the caller's region anymore.
	require.Nil(t, heap.Bytes(p))
}

func TestPoisonCheckCorruptionSkipsFreeRuns(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, heap := readyPoisonedHeap(t, nil)

	first, err := heap.Acquire(12)
	require.NoError(t, err)
	second, err := heap.Acquire(12)
	require.NoError(t, err)

	// Releasing leaves stale fence bytes in the hole; they must not be
	// mistaken for a live allocation's fences.
	heap.Release(first)

	require.True(t, heap.CheckCorruption())
	heap.Release(second)
}

func TestPoisonAcquireZeroed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, heap := readyPoisonedHeap(t, nil)

	// Dirty a region, free it, and take it back zeroed.
	p, err := heap.Acquire(24)
	require.NoError(t, err)
	fillPattern(heap.Bytes(p), 0xee)
	heap.Release(p)

	zeroed, err := heap.AcquireZeroed(6, 4)
	require.NoError(t, err)
	require.Equal(t, p, zeroed)

	payload := heap.Bytes(zeroed)
	require.Len(t, payload, 24)
	for i, b := range payload {
		require.Zerof(t, b, "byte %d should have been zeroed", i)
	}

	require.True(t, heap.CheckCorruption())
}

func TestPoisonAcquireZeroedValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, inner, heap := readyPoisonedHeap(t, nil)

	p, err := heap.AcquireZeroed(0, 8)
	require.NoError(t, err)
	require.Equal(t, arena.NullPointer, p)
	require.True(t, inner.IsEmpty())

	_, err = heap.AcquireZeroed(-1, 8)
	require.ErrorContains(t, err, "negative")

	const half = 1 << 62
	_, err = heap.AcquireZeroed(half, 4)
	require.ErrorContains(t, err, "overflow")
}

func TestPoisonResizePreservesDataAndFences(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, inner, heap := readyPoisonedHeap(t, nil)

	p, err := heap.Acquire(12)
	require.NoError(t, err)
	fillPattern(heap.Bytes(p), 0x20)

	grown, err := heap.Resize(p, 100)
	require.NoError(t, err)
	require.Len(t, heap.Bytes(grown), 100)
	requirePattern(t, heap.Bytes(grown)[:12], 0x20)
	require.True(t, heap.CheckCorruption())

	shrunk, err := heap.Resize(grown, 4)
	require.NoError(t, err)
	require.Len(t, heap.Bytes(shrunk), 4)
	requirePattern(t, heap.Bytes(shrunk), 0x20)
	require.True(t, heap.CheckCorruption())

	heap.Release(shrunk)
	require.True(t, inner.IsEmpty())
}

func TestPoisonResizeMovesBoxedInAllocation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, inner, heap := readyPoisonedHeap(t, nil)

	before, err := heap.Acquire(2)
	require.NoError(t, err)
	p, err := heap.Acquire(2)
	require.NoError(t, err)
	after, err := heap.Acquire(2)
	require.NoError(t, err)
	fillPattern(heap.Bytes(p), 0x30)

	resized, err := heap.Resize(p, 30)
	require.NoError(t, err)
	require.NotEqual(t, p, resized)
	requirePattern(t, heap.Bytes(resized)[:2], 0x30)
	require.True(t, heap.CheckCorruption())

	heap.Release(before)
	heap.Release(after)
	heap.Release(resized)
	require.True(t, inner.IsEmpty())
}

func TestPoisonResizeNullAndZero(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, inner, heap := readyPoisonedHeap(t, nil)

	p, err := heap.Resize(arena.NullPointer, 12)
	require.NoError(t, err)
	require.NotEqual(t, arena.NullPointer, p)
	require.Len(t, heap.Bytes(p), 12)

	gone, err := heap.Resize(p, 0)
	require.NoError(t, err)
	require.Equal(t, arena.NullPointer, gone)
	require.True(t, inner.IsEmpty())
}

func TestPoisonReleaseNull(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, inner, heap := readyPoisonedHeap(t, nil)

	heap.Release(arena.NullPointer)
	require.True(t, inner.IsEmpty())
}

func TestPoisonInner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, inner, heap := readyPoisonedHeap(t, nil)

	require.Same(t, inner, heap.Inner())
}

func TestPoisonAcquireForwardsOverheadToInner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockHeap := mock_poison.NewMockBlockHeap(ctrl)
	heap := poison.Wrap(quietLogger(), mockHeap)

	backing := make([]byte, 28)
	mockHeap.EXPECT().Acquire(22).Return(arena.Pointer(100), nil)
	mockHeap.EXPECT().Bytes(arena.Pointer(100)).Return(backing)

	p, err := heap.Acquire(12)
	require.NoError(t, err)
	require.Equal(t, arena.Pointer(106), p)

	require.Equal(t, uint16(22), binary.LittleEndian.Uint16(backing))
	for i := 2; i < 6; i++ {
		require.Equal(t, poison.PoisonByte, backing[i])
	}
	for i := 18; i < 22; i++ {
		require.Equal(t, poison.PoisonByte, backing[i])
	}
}

func TestPoisonAcquirePassesInnerErrorThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockHeap := mock_poison.NewMockBlockHeap(ctrl)
	heap := poison.Wrap(quietLogger(), mockHeap)

	mockHeap.EXPECT().Acquire(18).Return(arena.NullPointer, arena.OutOfMemoryError)

	_, err := heap.Acquire(8)
	require.ErrorIs(t, err, arena.OutOfMemoryError)
}

func TestPoisonReleaseForwardsRawPointer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockHeap := mock_poison.NewMockBlockHeap(ctrl)
	heap := poison.Wrap(quietLogger(), mockHeap)

	mockHeap.EXPECT().Bytes(arena.Pointer(94)).Return(fencedRegion(8))
	mockHeap.EXPECT().Release(arena.Pointer(94))

	heap.Release(arena.Pointer(100))
}

func TestPoisonReleaseReportsSmashedFence(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockHeap := mock_poison.NewMockBlockHeap(ctrl)
	heap := poison.Wrap(quietLogger(), mockHeap)

	region := fencedRegion(8)
	region[16] = 0x00

	mockHeap.EXPECT().Bytes(arena.Pointer(94)).Return(region)
	mockHeap.EXPECT().ReportCorruption(gomock.Any())
	mockHeap.EXPECT().Release(arena.Pointer(94))

	heap.Release(arena.Pointer(100))
}

func fillPattern(payload []byte, seed byte) {
	for i := range payload {
		payload[i] = seed + byte(i)
	}
}

func requirePattern(t *testing.T, payload []byte, seed byte) {
	for i := range payload {
		require.Equalf(t, seed+byte(i), payload[i], "payload byte %d was not preserved", i)
	}
}
