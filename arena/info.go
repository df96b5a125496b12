package arena

import (
	"github.com/heapkit/microheap/heaputils"
	"golang.org/x/exp/slog"
)

// forEachRun walks the used list from the first real block to the tail
// sentinel, calling visit with each run's start index and width. The two
// sentinel blocks are not visited. The caller must hold the heap lock.
func (h *Heap) forEachRun(visit func(c uint16, blocks uint16) bool) {
	for c := h.nextIndex(0) & blockNumberMask; h.nextIndex(c)&blockNumberMask != 0; c = h.nextIndex(c) & blockNumberMask {
		if !visit(c, h.runBlocks(c)) {
			return
		}
	}
}

// Metrics walks the heap and returns occupancy tallies for it.
func (h *Heap) Metrics() heaputils.Metrics {
	var metrics heaputils.Metrics
	metrics.Clear()
	h.AddMetrics(&metrics)
	return metrics
}

// AddMetrics walks the heap and sums its occupancy tallies into metrics.
func (h *Heap) AddMetrics(metrics *heaputils.Metrics) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	h.forEachRun(func(c uint16, blocks uint16) bool {
		if h.isFree(c) {
			metrics.AddFreeRun(int(blocks))
		} else {
			metrics.AddUsedRun(int(blocks))
		}
		return true
	})
}

// FreeHeapSize returns the number of free bytes in the heap, counting each
// free run's full width. It answers from the inline tallies when the heap was
// created with HeapInlineMetrics and walks the heap otherwise.
//
// A successful Acquire of FreeHeapSize bytes is not implied: the free space
// may be split across runs, and each run loses header bytes to bookkeeping.
func (h *Heap) FreeHeapSize() int {
	if h.inlineMetrics {
		h.mutex.RLock()
		defer h.mutex.RUnlock()
		return h.freeBlocks * h.blockSize
	}

	metrics := h.Metrics()
	return metrics.FreeBlocks * h.blockSize
}

// MaxFreeRunSize walks the heap and returns the width in bytes of the largest
// free run, the upper bound on what a single Acquire could claim before
// header overhead.
func (h *Heap) MaxFreeRunSize() int {
	metrics := h.Metrics()
	return metrics.MaxFreeContiguous * h.blockSize
}

// UsageMetric scores heap pressure as the truncated percentage ratio of used
// to free blocks, or -1 when no blocks are free. It answers from the inline
// tallies when the heap was created with HeapInlineMetrics and walks the heap
// otherwise.
func (h *Heap) UsageMetric() int {
	if h.inlineMetrics {
		h.mutex.RLock()
		defer h.mutex.RUnlock()
		return heaputils.UsageMetric(int(h.blockCount)-2-h.freeBlocks, h.freeBlocks)
	}

	metrics := h.Metrics()
	return metrics.UsageMetric()
}

// FragmentationMetric scores how badly the heap's free space is broken up,
// from 0 for a single contiguous free run to 100. It answers from the inline
// tallies when the heap was created with HeapInlineMetrics and walks the heap
// otherwise.
func (h *Heap) FragmentationMetric() int {
	if h.inlineMetrics {
		h.mutex.RLock()
		defer h.mutex.RUnlock()
		return heaputils.FragmentationMetric(h.freeBlocks, h.freeBlocksSquared)
	}

	metrics := h.Metrics()
	return metrics.FragmentationMetric()
}

// Allocated walks the heap and reports whether p is the payload start of a
// live allocation.
func (h *Heap) Allocated(p Pointer) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return h.liveAllocationAt(p)
}

// VisitAllRuns walks the heap in address order and calls visit once per run,
// live and free alike. payload covers the run's body and aliases the heap's
// backing buffer; userData is whatever SetUserData attached to a live run,
// or nil. Returning an error stops the walk and returns that error.
//
// The heap lock is held for the whole walk, so visit must not call back into
// this heap.
func (h *Heap) VisitAllRuns(visit func(p Pointer, payload []byte, userData any, free bool) error) error {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	var visitErr error
	h.forEachRun(func(c uint16, blocks uint16) bool {
		p := h.pointerForBlock(c)
		payload := h.arena[int(p) : h.blockOffset(c)+int(blocks)*h.blockSize]
		userData, _ := h.userData.Get(p)

		visitErr = visit(p, payload, userData, h.isFree(c))
		return visitErr == nil
	})

	return visitErr
}

// DebugLogAllAllocations calls logFunc for each live allocation in the heap.
// It is a diagnostic aid for tracking down unreleased memory.
func (h *Heap) DebugLogAllAllocations(logger *slog.Logger, logFunc func(log *slog.Logger, p Pointer, size int, userData any)) {
	_ = h.VisitAllRuns(func(p Pointer, payload []byte, userData any, free bool) error {
		if !free {
			logFunc(logger, p, len(payload), userData)
		}
		return nil
	})
}
