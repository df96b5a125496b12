//go:build heap_first_fit

package arena

// FitPolicy names the free-run selection strategy compiled into this package.
const FitPolicy = "first-fit"

// findFreeRun returns the block index of the free run that should serve a
// request of the given block count, or 0 when no free run is large enough.
//
// First fit takes the first run that fits, trading extra fragmentation for a
// shorter search.
func (h *Heap) findFreeRun(blocks uint16) uint16 {
	for cf := h.nextFree(0); cf != 0; cf = h.nextFree(cf) {
		if h.runBlocks(cf) >= blocks {
			return cf
		}
	}

	return 0
}
