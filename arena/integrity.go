package arena

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
)

// Validate re-derives the heap's structural invariants from the raw block
// headers and returns an error describing the first violation found, or nil
// when the heap is intact. It proves that the free list is a well-formed
// chain of mutually-linked blocks, that the used list ascends with matching
// forward and backward links, and that every block's free flag agrees with
// its free list membership.
//
// Validate briefly marks the previous-index words of free blocks while it
// cross-checks the two lists, so it must not run while any other goroutine
// is touching the heap. CheckIntegrity wraps it with the heap lock; most
// callers want that instead.
func (h *Heap) Validate() error {
	// Pass one: follow the free list, proving each link is in range and
	// mutual, and mark every free block's previous-index word so the
	// second pass can match flags against actual membership. The step
	// bound keeps a corrupt cycle from walking forever.
	prev := uint16(0)
	steps := 0
	for {
		cur := h.nextFree(prev)
		if cur >= h.blockCount {
			return errors.Errorf("the free list points from block %d to block %d, past the end of the %d-block heap", prev, cur, h.blockCount)
		}
		if cur == 0 {
			break
		}
		if steps++; steps > int(h.blockCount) {
			return errors.Errorf("the free list is longer than the heap's %d blocks, so it must cycle", h.blockCount)
		}
		if h.prevFree(cur) != prev {
			return errors.Errorf("free links don't match: block %d lists %d next, but block %d lists %d previous", prev, cur, cur, h.prevFree(cur))
		}

		h.setPrevIndex(cur, h.prevIndex(cur)|freeListMask)
		prev = cur
	}

	// Pass two: follow the block chain, consuming the marks. The chain
	// must ascend, so it cannot cycle once that check holds.
	prev = 0
	for {
		cur := h.nextIndex(prev) & blockNumberMask
		if cur >= h.blockCount {
			return errors.Errorf("block %d points to block %d, past the end of the %d-block heap", prev, cur, h.blockCount)
		}
		if cur == 0 {
			break
		}

		if h.nextIndex(cur)&freeListMask != h.prevIndex(cur)&freeListMask {
			return errors.Errorf("the free flag of block %d does not agree with its free list membership", cur)
		}
		if cur <= prev {
			return errors.Errorf("block %d points to block %d, but the block chain must ascend", prev, cur)
		}

		h.setPrevIndex(cur, h.prevIndex(cur)&blockNumberMask)
		if h.prevIndex(cur) != prev {
			return errors.Errorf("block links don't match: block %d lists %d next, but block %d lists %d previous", prev, cur, cur, h.prevIndex(cur))
		}

		prev = cur
	}

	if h.inlineMetrics {
		return h.validateInlineMetrics()
	}

	return nil
}

// validateInlineMetrics proves the running tallies agree with a fresh walk.
func (h *Heap) validateInlineMetrics() error {
	freeBlocks := 0
	freeBlocksSquared := int64(0)
	h.forEachRun(func(c uint16, blocks uint16) bool {
		if h.isFree(c) {
			freeBlocks += int(blocks)
			freeBlocksSquared += int64(blocks) * int64(blocks)
		}
		return true
	})

	if freeBlocks != h.freeBlocks {
		return errors.Errorf("the inline tally holds %d free blocks, but the heap holds %d", h.freeBlocks, freeBlocks)
	}
	if freeBlocksSquared != h.freeBlocksSquared {
		return errors.Errorf("the inline squared tally holds %d, but the heap's free runs sum to %d", h.freeBlocksSquared, freeBlocksSquared)
	}

	return nil
}

// CheckIntegrity validates the heap under the heap lock and reports whether
// it is intact. Damage is logged and handed to the OnCorruption callback
// provided at creation, if any.
//
// A heap that fails CheckIntegrity is not safe to keep allocating from. The
// marks Validate was making when it found the damage may still be set, so a
// failed check can itself leave flags altered; that is acceptable because
// recovery means abandoning the heap or reinitializing it with Clear.
func (h *Heap) CheckIntegrity() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	err := h.Validate()
	if err == nil {
		return true
	}

	h.logger.LogAttrs(context.Background(), slog.LevelError, "[HEAP CORRUPTION] the heap failed its integrity check",
		slog.Any("error", err),
	)
	h.ReportCorruption(err)
	return false
}

// ReportCorruption forwards err to the OnCorruption callback provided at
// creation, if any. Layers that wrap the heap and run their own consistency
// checks use it to surface the damage they find through the same channel as
// CheckIntegrity.
func (h *Heap) ReportCorruption(err error) {
	if h.onCorruption != nil {
		h.onCorruption(err)
	}
}
