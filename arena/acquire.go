package arena

import (
	"github.com/heapkit/microheap/heaputils"
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
)

// Acquire reserves size bytes and returns a Pointer to the start of the
// payload. A request of zero bytes reserves nothing and returns NullPointer
// with no error. When no free run is large enough, the heap is left untouched
// and OutOfMemoryError is returned.
func (h *Heap) Acquire(size int) (Pointer, error) {
	if size < 0 {
		return NullPointer, errors.Errorf("requested size %d is negative", size)
	}
	if size == 0 {
		h.logger.Debug("acquire of zero bytes, nothing to do")
		return NullPointer, nil
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	p, err := h.acquireBlocks(size)
	if err != nil {
		return NullPointer, err
	}

	heaputils.DebugValidate(h)
	return p, nil
}

// AcquireZeroed reserves room for count items of itemSize bytes each and
// zeroes all count*itemSize bytes of it. Aside from the zeroing it behaves
// exactly like Acquire.
func (h *Heap) AcquireZeroed(count int, itemSize int) (Pointer, error) {
	if count < 0 || itemSize < 0 {
		return NullPointer, errors.Errorf("requested %d items of size %d, neither may be negative", count, itemSize)
	}
	size := count * itemSize
	if count != 0 && size/count != itemSize {
		return NullPointer, errors.Errorf("%d items of size %d overflow the size of an allocation", count, itemSize)
	}

	p, err := h.Acquire(size)
	if err != nil || p == NullPointer {
		return NullPointer, err
	}

	payload := h.Bytes(p)[:size]
	for i := range payload {
		payload[i] = 0
	}

	return p, nil
}

// acquireBlocks finds a free run for a request of size bytes and carves the
// allocation out of it. The caller must hold the heap lock.
func (h *Heap) acquireBlocks(size int) (Pointer, error) {
	blocks := h.sizeToBlocks(size)

	cf := h.findFreeRun(blocks)
	if cf == 0 {
		h.logger.Debug("no free run can hold the requested allocation",
			slog.Int("size", size),
			slog.Int("blocks", int(blocks)),
		)
		return NullPointer, OutOfMemoryError
	}

	h.metricRemoveRun(cf)

	if h.runBlocks(cf) == blocks {
		// Exact fit
		h.disconnectFromFreeList(cf)
	} else {
		// Split the allocation off the front of the run and leave the
		// remainder in cf's old place on the free list
		h.splitBlock(cf, blocks, freeListMask)

		suffix := cf + blocks
		h.setNextFree(h.prevFree(cf), suffix)
		h.setPrevFree(suffix, h.prevFree(cf))
		h.setPrevFree(h.nextFree(cf), suffix)
		h.setNextFree(suffix, h.nextFree(cf))

		h.metricAddRun(suffix)
	}

	return h.pointerForBlock(cf), nil
}
