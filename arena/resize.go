package arena

import (
	"github.com/heapkit/microheap/heaputils"
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
)

// Resize grows or shrinks the allocation starting at p to size bytes,
// preserving its payload up to the smaller of the old and new sizes. The
// allocation is kept in place whenever its own run plus adjacent free runs
// can hold the new size; only when that fails does the payload move to a
// fresh allocation, so the returned Pointer may differ from p.
//
// Resize(NullPointer, size) behaves like Acquire(size), and Resize(p, 0)
// behaves like Release(p) and returns NullPointer. When the heap cannot
// satisfy a grow request at all, OutOfMemoryError is returned and the
// original allocation remains live and untouched.
func (h *Heap) Resize(p Pointer, size int) (Pointer, error) {
	if size < 0 {
		return NullPointer, errors.Errorf("requested size %d is negative", size)
	}
	if p == NullPointer {
		return h.Acquire(size)
	}
	if size == 0 {
		h.Release(p)
		return NullPointer, nil
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	needed := h.sizeToBlocks(size)
	c := h.blockForPointer(p)
	runSize := h.runBlocks(c)
	payloadBytes := int(runSize)*h.blockSize - headerSize

	// Measure the free runs on either side. A zero width means the
	// neighbor is live and cannot be grown into.
	var nextRun, prevRun uint16
	next := h.nextIndex(c)
	if h.isFree(next) {
		nextRun = h.runBlocks(next)
	}
	prev := h.prevIndex(c)
	if h.isFree(prev) {
		prevRun = c - prev
	}

	h.logger.Debug("resizing an allocation",
		slog.Int("offset", int(p)),
		slog.Int("size", size),
		slog.Int("neededBlocks", int(needed)),
		slog.Int("runBlocks", int(runSize)),
		slog.Int("prevFreeBlocks", int(prevRun)),
		slog.Int("nextFreeBlocks", int(nextRun)),
	)

	switch {
	case runSize >= needed:
		// The run is already big enough: any surplus is trimmed below.

	case runSize+nextRun == needed:
		// Growing into the next free run fits exactly, which is worth
		// taking even when merging down might also work, because it
		// avoids moving the payload.
		h.assimilateUp(c)
		runSize += nextRun

	case prevRun == 0 && runSize+nextRun >= needed:
		// Growing into the next free run fits with room to spare.
		h.assimilateUp(c)
		runSize += nextRun

	case prevRun+runSize >= needed:
		// Growing down into the previous free run fits. The payload
		// slides down to the merged run's start.
		h.disconnectFromFreeList(prev)
		c = h.assimilateDown(c, 0)
		h.relocate(p, c, payloadBytes)
		p = h.pointerForBlock(c)
		runSize += prevRun

	case prevRun+runSize+nextRun >= needed:
		// Only both neighbors together can hold the new size.
		h.assimilateUp(c)
		h.disconnectFromFreeList(prev)
		c = h.assimilateDown(c, 0)
		h.relocate(p, c, payloadBytes)
		p = h.pointerForBlock(c)
		runSize += prevRun + nextRun

	default:
		// Nothing adjacent helps: move the payload to a fresh
		// allocation. On failure the original stays live.
		newP, err := h.acquireBlocks(size)
		if err != nil {
			h.logger.Debug("resize could not find room to grow, the allocation is unchanged",
				slog.Int("offset", int(p)),
				slog.Int("size", size),
			)
			return NullPointer, err
		}

		h.relocate(p, h.blockForPointer(newP), payloadBytes)
		h.releaseBlocks(p)

		p = newP
		c = h.blockForPointer(p)
		runSize = needed
	}

	if runSize > needed {
		// Split off the surplus and free it.
		h.splitBlock(c, needed, 0)
		h.releaseBlocks(h.pointerForBlock(c + needed))
	}

	heaputils.DebugValidate(h)
	return p, nil
}

// relocate slides payloadBytes bytes of payload from old down to the start of
// the run at c, for the resize cases that merge an allocation into a free
// predecessor. The regions may overlap.
func (h *Heap) relocate(old Pointer, c uint16, payloadBytes int) {
	newP := h.pointerForBlock(c)
	copy(h.arena[int(newP):int(newP)+payloadBytes], h.arena[int(old):int(old)+payloadBytes])
	h.moveUserData(old, newP)
}
