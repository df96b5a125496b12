package arena

import (
	"github.com/heapkit/microheap/heaputils"
)

// Release returns the allocation starting at p to the free pool, merging it
// with either neighbor run that is already free so that adjacent free runs
// never coexist. Releasing NullPointer is a no-op.
//
// p must be the payload start of a live allocation. Releasing anything else,
// or releasing the same allocation twice, corrupts the heap.
func (h *Heap) Release(p Pointer) {
	if p == NullPointer {
		h.logger.Debug("release of the null pointer, nothing to do")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.releaseBlocks(p)
	heaputils.DebugValidate(h)
}

// releaseBlocks frees the run holding p. The caller must hold the heap lock.
func (h *Heap) releaseBlocks(p Pointer) {
	c := h.blockForPointer(p)
	h.userData.Delete(p)

	// Try merging with the next run, then the previous one. A free
	// predecessor absorbs this run and keeps its own place on the free
	// list; otherwise this run is inserted at the head.
	h.assimilateUp(c)

	if h.isFree(h.prevIndex(c)) {
		c = h.assimilateDown(c, freeListMask)
	} else {
		h.metricAddRun(c)
		h.insertFreeHead(c)
	}
}
