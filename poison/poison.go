// Package poison layers guard-fence corruption tracking over an arena heap.
// Every allocation is padded with a length prefix and two fences filled with
// a known byte pattern:
//
//	[2-byte length][4 guard bytes][caller bytes][4 guard bytes]
//
// The length prefix counts the whole poisoned region so the trailing fence
// can be found again later. A caller that writes outside its allocation
// tramples a fence, and the damage is detected and reported the next time
// that allocation is released, resized, or swept by CheckCorruption.
package poison

import (
	"context"
	"encoding/binary"
	"math"

	cerrors "github.com/cockroachdb/errors"
	"github.com/heapkit/microheap/arena"
	"golang.org/x/exp/slog"
)

// PoisonByte is the value guard fences are filled with.
const PoisonByte byte = 0xa5

const (
	lenPrefixSize = 2
	fenceSize     = 4

	// overheadSize is what a poisoned allocation adds to the caller's size.
	overheadSize = lenPrefixSize + 2*fenceSize
	// interiorOffset is the distance from a run's payload start to the
	// pointer the caller sees.
	interiorOffset = lenPrefixSize + fenceSize
)

// MaxAllocationSize is the largest caller size a poisoned heap can serve; the
// two-byte length prefix cannot describe anything wider.
const MaxAllocationSize = math.MaxUint16 - overheadSize

// OversizeError is the error returned from Acquire, AcquireZeroed, or Resize when
// the requested size exceeds MaxAllocationSize.
var OversizeError error = cerrors.New("the allocation is too large for a poisoned heap")

var errFenceViolation = cerrors.New("a guard fence was overwritten")

// BlockHeap is the allocator surface the poisoned wrapper builds on. It is
// implemented by arena.Heap.
type BlockHeap interface {
	Acquire(size int) (arena.Pointer, error)
	Resize(p arena.Pointer, size int) (arena.Pointer, error)
	Release(p arena.Pointer)
	Bytes(p arena.Pointer) []byte
	VisitAllRuns(visit func(p arena.Pointer, payload []byte, userData any, free bool) error) error
	ReportCorruption(err error)
}

var _ BlockHeap = &arena.Heap{}

// Heap wraps a BlockHeap so that every allocation carries guard fences. It
// exposes the same allocate, resize, and release surface as arena.Heap, so a
// consumer can switch between the two with a build flag or a constructor
// argument and nothing else.
//
// All allocations in the wrapped heap must be made through this wrapper;
// fence validation misreads runs that were acquired directly.
type Heap struct {
	logger *slog.Logger
	inner  BlockHeap
}

// Wrap layers fence tracking over heap.
func Wrap(logger *slog.Logger, heap BlockHeap) *Heap {
	return &Heap{
		logger: logger,
		inner:  heap,
	}
}

// Inner returns the wrapped heap for read-only diagnostics such as metrics
// and the detailed JSON map. Allocating or releasing through it directly
// would leave runs without fences and break validation.
func (h *Heap) Inner() BlockHeap {
	return h.inner
}

// Acquire reserves size bytes with guard fences around them and returns a
// Pointer to the caller's region. A request of zero bytes reserves nothing
// and returns NullPointer with no error.
func (h *Heap) Acquire(size int) (arena.Pointer, error) {
	if size < 0 {
		return arena.NullPointer, cerrors.Newf("requested size %d is negative", size)
	}
	if size == 0 {
		return arena.NullPointer, nil
	}
	if size > MaxAllocationSize {
		return arena.NullPointer, cerrors.Wrapf(OversizeError, "requested %d bytes, but the ceiling is %d", size, MaxAllocationSize)
	}

	poisonedSize := size + overheadSize
	raw, err := h.inner.Acquire(poisonedSize)
	if err != nil {
		return arena.NullPointer, err
	}

	return h.fence(raw, poisonedSize), nil
}

// AcquireZeroed reserves room for count items of itemSize bytes each, zeroed,
// with guard fences around them. Aside from the fences it behaves exactly
// like arena.Heap.AcquireZeroed.
func (h *Heap) AcquireZeroed(count int, itemSize int) (arena.Pointer, error) {
	if count < 0 || itemSize < 0 {
		return arena.NullPointer, cerrors.Newf("requested %d items of size %d, neither may be negative", count, itemSize)
	}
	size := count * itemSize
	if count != 0 && size/count != itemSize {
		return arena.NullPointer, cerrors.Newf("%d items of size %d overflow the size of an allocation", count, itemSize)
	}
	if size == 0 {
		return arena.NullPointer, nil
	}
	if size > MaxAllocationSize {
		return arena.NullPointer, cerrors.Wrapf(OversizeError, "requested %d bytes, but the ceiling is %d", size, MaxAllocationSize)
	}

	poisonedSize := size + overheadSize
	raw, err := h.inner.Acquire(poisonedSize)
	if err != nil {
		return arena.NullPointer, err
	}

	payload := h.inner.Bytes(raw)[:poisonedSize]
	for i := range payload {
		payload[i] = 0
	}

	return h.fence(raw, poisonedSize), nil
}

// Resize grows or shrinks the allocation at p to size bytes, preserving the
// caller's bytes and rebuilding the fences around the new region. It follows
// the same contract as arena.Heap.Resize, including that the returned Pointer
// may differ from p. Both allocations' fences are validated along the way and
// any damage is reported.
func (h *Heap) Resize(p arena.Pointer, size int) (arena.Pointer, error) {
	if size < 0 {
		return arena.NullPointer, cerrors.Newf("requested size %d is negative", size)
	}
	if size > MaxAllocationSize {
		return arena.NullPointer, cerrors.Wrapf(OversizeError, "requested %d bytes, but the ceiling is %d", size, MaxAllocationSize)
	}

	raw := h.unfence(p)

	poisonedSize := size
	if size > 0 {
		poisonedSize = size + overheadSize
	}

	newRaw, err := h.inner.Resize(raw, poisonedSize)
	if err != nil || newRaw == arena.NullPointer {
		return arena.NullPointer, err
	}

	return h.fence(newRaw, poisonedSize), nil
}

// Release validates the allocation's guard fences, reports any damage, and
// releases the allocation regardless: a trampled fence is worth knowing
// about, but never worth leaking the memory over. Releasing NullPointer is a
// no-op.
func (h *Heap) Release(p arena.Pointer) {
	h.inner.Release(h.unfence(p))
}

// Bytes returns the caller's region of the allocation at p, sized exactly as
// requested rather than rounded up to the allocation's capacity; the bytes
// beyond it belong to the trailing fence. If the allocation's fences turn out
// to be damaged, the damage is reported and nil is returned.
func (h *Heap) Bytes(p arena.Pointer) []byte {
	if p == arena.NullPointer {
		return nil
	}

	raw := p - interiorOffset
	payload := h.inner.Bytes(raw)
	if !h.checkPayload(payload, int(raw)) {
		return nil
	}

	poisonedSize := int(binary.LittleEndian.Uint16(payload))
	return payload[interiorOffset : poisonedSize-fenceSize]
}

// CheckCorruption walks every live allocation in the wrapped heap and
// validates its guard fences, reporting the first trampled fence it finds.
// It returns true when every fence is intact.
func (h *Heap) CheckCorruption() bool {
	err := h.inner.VisitAllRuns(func(p arena.Pointer, payload []byte, _ any, free bool) error {
		if free {
			return nil
		}
		if !h.checkPayload(payload, int(p)) {
			return errFenceViolation
		}
		return nil
	})

	return err == nil
}

// fence writes the length prefix and both guard fences into the run starting
// at raw and returns the pointer the caller sees.
func (h *Heap) fence(raw arena.Pointer, poisonedSize int) arena.Pointer {
	payload := h.inner.Bytes(raw)

	binary.LittleEndian.PutUint16(payload, uint16(poisonedSize))
	fill(payload[lenPrefixSize:interiorOffset])
	fill(payload[poisonedSize-fenceSize : poisonedSize])

	return raw + interiorOffset
}

// unfence converts a caller's Pointer back to the raw run start, validating
// the fences on the way through. Damage is reported but does not stop the
// caller's operation.
func (h *Heap) unfence(p arena.Pointer) arena.Pointer {
	if p == arena.NullPointer {
		return arena.NullPointer
	}

	raw := p - interiorOffset
	h.checkPayload(h.inner.Bytes(raw), int(raw))
	return raw
}

// checkPayload validates the fences of the poisoned allocation occupying
// payload, which starts at offset in the heap.
func (h *Heap) checkPayload(payload []byte, offset int) bool {
	poisonedSize := int(binary.LittleEndian.Uint16(payload))
	if poisonedSize < overheadSize || poisonedSize > len(payload) {
		h.report(offset, cerrors.Newf("the allocation at offset %d has a corrupt length prefix of %d", offset, poisonedSize))
		return false
	}

	if !allPoison(payload[lenPrefixSize:interiorOffset]) {
		h.report(offset, cerrors.Newf("the guard bytes before the allocation at offset %d were overwritten", offset))
		return false
	}
	if !allPoison(payload[poisonedSize-fenceSize : poisonedSize]) {
		h.report(offset, cerrors.Newf("the guard bytes after the allocation at offset %d were overwritten", offset))
		return false
	}

	return true
}

func (h *Heap) report(offset int, err error) {
	h.logger.LogAttrs(context.Background(), slog.LevelError, "[POISON] heap corruption detected",
		slog.Int("offset", offset),
		slog.Any("error", err),
	)
	h.inner.ReportCorruption(err)
}

func fill(fence []byte) {
	for i := range fence {
		fence[i] = PoisonByte
	}
}

func allPoison(fence []byte) bool {
	for _, b := range fence {
		if b != PoisonByte {
			return false
		}
	}
	return true
}
