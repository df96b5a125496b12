//go:build !heap_first_fit

package arena

// FitPolicy names the free-run selection strategy compiled into this package.
const FitPolicy = "best-fit"

// findFreeRun returns the block index of the free run that should serve a
// request of the given block count, or 0 when no free run is large enough.
//
// Best fit walks the entire free list and picks the smallest run that still
// fits, trading search time for less fragmentation. Ties go to the run
// nearest the head of the free list, which is the one freed most recently.
func (h *Heap) findFreeRun(blocks uint16) uint16 {
	var best uint16
	var bestSize uint16

	for cf := h.nextFree(0); cf != 0; cf = h.nextFree(cf) {
		size := h.runBlocks(cf)
		if size >= blocks && (best == 0 || size < bestSize) {
			best = cf
			bestSize = size
		}
	}

	return best
}
