package arena

// metricAddRun and metricRemoveRun keep the inline free tallies in step with
// the free list. Disconnecting a block from the free list is metric-neutral;
// only the call sites that change how many blocks are free touch these.

func (h *Heap) metricAddRun(c uint16) {
	if !h.inlineMetrics {
		return
	}

	blocks := int(h.runBlocks(c))
	h.freeBlocks += blocks
	h.freeBlocksSquared += int64(blocks) * int64(blocks)
}

func (h *Heap) metricRemoveRun(c uint16) {
	if !h.inlineMetrics {
		return
	}

	blocks := int(h.runBlocks(c))
	h.freeBlocks -= blocks
	h.freeBlocksSquared -= int64(blocks) * int64(blocks)
}

// splitBlock splits the run starting at c so that its first blocks blocks
// become a run of their own. The suffix run keeps c's place in the used list
// and carries freeMask; the caller is responsible for its free-list links.
func (h *Heap) splitBlock(c uint16, blocks uint16, freeMask uint16) {
	suffix := c + blocks
	next := h.nextIndex(c) & blockNumberMask

	h.setNextIndex(suffix, next|freeMask)
	h.setPrevIndex(suffix, c)

	h.setPrevIndex(next, suffix)
	h.setNextIndex(c, suffix)
}

// disconnectFromFreeList unlinks c from the free list and clears its free flag.
func (h *Heap) disconnectFromFreeList(c uint16) {
	h.setNextFree(h.prevFree(c), h.nextFree(c))
	h.setPrevFree(h.nextFree(c), h.prevFree(c))

	h.setNextIndex(c, h.nextIndex(c)&^freeListMask)
}

// insertFreeHead links c in at the head of the free list and flags it free.
func (h *Heap) insertFreeHead(c uint16) {
	h.setPrevFree(h.nextFree(0), c)
	h.setNextFree(c, h.nextFree(0))
	h.setPrevFree(c, 0)
	h.setNextFree(0, c)

	h.setNextIndex(c, h.nextIndex(c)|freeListMask)
}

// assimilateUp merges the next run into the run starting at c when that next
// run is free. c must not be flagged free.
func (h *Heap) assimilateUp(c uint16) {
	next := h.nextIndex(c)
	if !h.isFree(next) {
		return
	}

	h.metricRemoveRun(next)
	h.disconnectFromFreeList(next)

	newNext := h.nextIndex(next) & blockNumberMask
	h.setPrevIndex(newNext, c)
	h.setNextIndex(c, newNext)
}

// assimilateDown merges the run starting at c into its predecessor, which the
// caller has already determined to be free, and returns the predecessor's
// index. The merged run carries freeMask, and the tallies are updated to
// match: pass freeListMask when the result stays on the free list, 0 when it
// is being claimed for an allocation.
func (h *Heap) assimilateDown(c uint16, freeMask uint16) uint16 {
	prev := h.prevIndex(c)
	next := h.nextIndex(c) & blockNumberMask

	h.metricRemoveRun(prev)

	h.setNextIndex(prev, next|freeMask)
	h.setPrevIndex(next, prev)

	if freeMask != 0 {
		h.metricAddRun(prev)
	}

	return prev
}
