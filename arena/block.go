package arena

import (
	"encoding/binary"

	"github.com/heapkit/microheap/heaputils"
)

// Heap bookkeeping lives inside the arena itself. Every block begins with a
// four-byte header holding two little-endian block indexes: the index of the
// block starting the next run and the index of the block starting the
// previous one. Those chains are the used list. The top bit of the next
// index marks the run free; the remaining 15 bits are the index proper,
// which is what caps a heap at 32768 blocks.
//
// Free runs additionally reuse their first four body bytes as a second index
// pair linking them into the free list, whose anchor is block 0. Block 0 and
// the final block never leave the chains, acting as boundary sentinels so
// that every real run has a neighbor on both sides.

// Pointer addresses an allocation as a byte offset from the start of the
// heap's backing buffer. The zero value is NullPointer and never addresses a
// live allocation.
type Pointer uint32

// NullPointer is the Pointer equivalent of nil.
const NullPointer Pointer = 0

const (
	// DefaultBlockSize is the block size used when CreateOptions does not provide one.
	DefaultBlockSize = 8
	// MinBlockSize is the smallest legal block size. A free block's header and free-list
	// links together occupy eight bytes, so blocks cannot be any smaller.
	MinBlockSize = 8
)

const (
	headerSize = 4

	freeListMask    uint16 = 0x8000
	blockNumberMask uint16 = 0x7fff

	maxRunBlocks  = 0x7fff
	maxHeapBlocks = 1 << 15
	minHeapBlocks = 3
)

func (h *Heap) blockOffset(c uint16) int {
	return int(c) * h.blockSize
}

func (h *Heap) nextIndex(c uint16) uint16 {
	return binary.LittleEndian.Uint16(h.arena[h.blockOffset(c):])
}

func (h *Heap) setNextIndex(c uint16, to uint16) {
	binary.LittleEndian.PutUint16(h.arena[h.blockOffset(c):], to)
}

func (h *Heap) prevIndex(c uint16) uint16 {
	return binary.LittleEndian.Uint16(h.arena[h.blockOffset(c)+2:])
}

func (h *Heap) setPrevIndex(c uint16, to uint16) {
	binary.LittleEndian.PutUint16(h.arena[h.blockOffset(c)+2:], to)
}

func (h *Heap) nextFree(c uint16) uint16 {
	return binary.LittleEndian.Uint16(h.arena[h.blockOffset(c)+4:])
}

func (h *Heap) setNextFree(c uint16, to uint16) {
	binary.LittleEndian.PutUint16(h.arena[h.blockOffset(c)+4:], to)
}

func (h *Heap) prevFree(c uint16) uint16 {
	return binary.LittleEndian.Uint16(h.arena[h.blockOffset(c)+6:])
}

func (h *Heap) setPrevFree(c uint16, to uint16) {
	binary.LittleEndian.PutUint16(h.arena[h.blockOffset(c)+6:], to)
}

func (h *Heap) isFree(c uint16) bool {
	return h.nextIndex(c)&freeListMask != 0
}

// runBlocks is the number of blocks in the run starting at c.
func (h *Heap) runBlocks(c uint16) uint16 {
	return h.nextIndex(c)&blockNumberMask - c
}

func (h *Heap) blockForPointer(p Pointer) uint16 {
	return uint16(heaputils.AlignDown(int(p), uint(h.blockSize)) / h.blockSize)
}

func (h *Heap) pointerForBlock(c uint16) Pointer {
	return Pointer(h.blockOffset(c) + headerSize)
}

// sizeToBlocks converts a request of size bytes into a block count. The
// first block loses four bytes of body to its header; later blocks in the
// run contribute their full width because their headers are overwritten by
// payload.
func (h *Heap) sizeToBlocks(size int) uint16 {
	body := h.blockSize - headerSize
	if size <= body {
		return 1
	}

	size -= body
	if size > (maxRunBlocks-1)*h.blockSize {
		return maxRunBlocks
	}

	return uint16(1 + heaputils.AlignUp(size, uint(h.blockSize))/h.blockSize)
}
