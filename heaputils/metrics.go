package heaputils

import "math"

// Metrics contains tallies describing the occupancy of a heap at a single moment
// in time. Anchor and sentinel blocks are not counted; every number covers real
// runs only.
type Metrics struct {
	// TotalEntries is the number of runs in the heap, both live and free
	TotalEntries int
	// UsedEntries is the number of live allocations
	UsedEntries int
	// FreeEntries is the number of free runs
	FreeEntries int

	// TotalBlocks is the number of blocks covered by runs of either kind
	TotalBlocks int
	// UsedBlocks is the number of blocks covered by live allocations
	UsedBlocks int
	// FreeBlocks is the number of blocks covered by free runs
	FreeBlocks int

	// FreeBlocksSquared accumulates the square of each free run's block count,
	// which feeds the fragmentation metric
	FreeBlocksSquared int64
	// MaxFreeContiguous is the block count of the largest free run
	MaxFreeContiguous int
}

// Clear resets all tallies to zero so the Metrics can be reused.
func (m *Metrics) Clear() {
	m.TotalEntries = 0
	m.UsedEntries = 0
	m.FreeEntries = 0
	m.TotalBlocks = 0
	m.UsedBlocks = 0
	m.FreeBlocks = 0
	m.FreeBlocksSquared = 0
	m.MaxFreeContiguous = 0
}

// AddUsedRun includes a single live allocation of the given block count in the tallies.
func (m *Metrics) AddUsedRun(blocks int) {
	m.TotalEntries++
	m.UsedEntries++
	m.TotalBlocks += blocks
	m.UsedBlocks += blocks
}

// AddFreeRun includes a single free run of the given block count in the tallies.
func (m *Metrics) AddFreeRun(blocks int) {
	m.TotalEntries++
	m.FreeEntries++
	m.TotalBlocks += blocks
	m.FreeBlocks += blocks
	m.FreeBlocksSquared += int64(blocks) * int64(blocks)

	if blocks > m.MaxFreeContiguous {
		m.MaxFreeContiguous = blocks
	}
}

// AddMetrics sums another set of tallies into this one.
func (m *Metrics) AddMetrics(other *Metrics) {
	m.TotalEntries += other.TotalEntries
	m.UsedEntries += other.UsedEntries
	m.FreeEntries += other.FreeEntries
	m.TotalBlocks += other.TotalBlocks
	m.UsedBlocks += other.UsedBlocks
	m.FreeBlocks += other.FreeBlocks
	m.FreeBlocksSquared += other.FreeBlocksSquared

	if other.MaxFreeContiguous > m.MaxFreeContiguous {
		m.MaxFreeContiguous = other.MaxFreeContiguous
	}
}

// UsageMetric scores heap pressure from these tallies.
func (m *Metrics) UsageMetric() int {
	return UsageMetric(m.UsedBlocks, m.FreeBlocks)
}

// FragmentationMetric scores free-space fragmentation from these tallies.
func (m *Metrics) FragmentationMetric() int {
	return FragmentationMetric(m.FreeBlocks, m.FreeBlocksSquared)
}

// UsageMetric is the ratio of used to free blocks, expressed as a truncated
// percentage. A fully exhausted heap returns -1 because the ratio has no
// meaningful value there.
func UsageMetric(usedBlocks, freeBlocks int) int {
	if freeBlocks == 0 {
		return -1
	}

	return usedBlocks * 100 / freeBlocks
}

// FragmentationMetric scores how badly the free space is broken up, from 0
// (one contiguous free run) to 100. It compares the root of the summed
// squares of the free run sizes against the free block total, so many small
// runs score high and a few large runs score low. An exhausted heap scores 0.
func FragmentationMetric(freeBlocks int, freeBlocksSquared int64) int {
	if freeBlocks == 0 {
		return 0
	}

	return 100 - int(math.Sqrt(float64(freeBlocksSquared)))*100/freeBlocks
}
