package arena

import (
	"context"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/heapkit/microheap/heaputils"
	"github.com/heapkit/microheap/internal/utils"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific heap behaviors to activate or deactivate
type CreateFlags int32

var createFlagsMapping = heaputils.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	createFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return createFlagsMapping.FlagsToString(f)
}

const (
	// HeapExternallySynchronized ensures that this heap will not be synchronized
	// internally. The consumer must guarantee the heap is used from only one thread
	// at a time or is synchronized by some other mechanism, but performance may
	// improve because internal mutexes are not used.
	HeapExternallySynchronized CreateFlags = 1 << iota
	// HeapInlineMetrics maintains the free-block tallies as allocations are made and
	// released, so that FreeHeapSize, UsageMetric, and FragmentationMetric answer
	// from counters instead of walking the heap. Walk-based queries such as Metrics
	// are unaffected.
	HeapInlineMetrics
)

func init() {
	HeapExternallySynchronized.Register("HeapExternallySynchronized")
	HeapInlineMetrics.Register("HeapInlineMetrics")
}

// CreateOptions contains optional settings when creating a heap
type CreateOptions struct {
	// BlockSize is the width in bytes of a single heap block, the granularity at
	// which the heap hands out memory. It must be a power of two no smaller than
	// MinBlockSize. Leaving it zero selects DefaultBlockSize.
	//
	// Small blocks waste less memory on small allocations; large blocks let a
	// buffer of the same size hold more total bytes, since a heap cannot exceed
	// 32768 blocks.
	BlockSize int

	// Flags indicates specific heap behaviors to activate or deactivate
	Flags CreateFlags

	// OnCorruption, when provided, is invoked with a diagnostic error whenever
	// damage to the heap's bookkeeping is detected, by CheckIntegrity or by a
	// wrapping layer that performs its own checks. The callback runs on the
	// goroutine that detected the damage and must not call back into the heap.
	OnCorruption func(err error)
}

// Heap is a fixed-capacity allocator that parcels out a single caller-provided
// byte buffer as numbered fixed-size blocks. All bookkeeping lives inside the
// buffer, so the heap itself stays a few words wide no matter how large the
// buffer is.
//
// Heap methods are safe for concurrent use unless HeapExternallySynchronized
// was set at creation.
type Heap struct {
	logger *slog.Logger
	mutex  utils.OptionalRWMutex

	arena      []byte
	blockSize  int
	blockCount uint16

	onCorruption func(err error)

	inlineMetrics     bool
	freeBlocks        int
	freeBlocksSquared int64

	userData *swiss.Map[Pointer, any]
}

var _ heaputils.Validatable = &Heap{}

// New creates a Heap that manages buf. The heap takes ownership of the buffer:
// the caller must not read or write it except through the returned Heap. Bytes
// beyond the last whole block are ignored.
func New(logger *slog.Logger, buf []byte, options CreateOptions) (*Heap, error) {
	blockSize := options.BlockSize
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	if blockSize < MinBlockSize {
		return nil, cerrors.Newf("options.BlockSize is %d, but blocks cannot be smaller than %d bytes", blockSize, MinBlockSize)
	}
	err := heaputils.CheckPow2(blockSize, "options.BlockSize")
	if err != nil {
		return nil, err
	}

	if len(buf) == 0 {
		return nil, cerrors.New("no backing buffer was provided for the heap")
	}

	blockCount := len(buf) / blockSize
	if blockCount < minHeapBlocks {
		return nil, cerrors.Newf("a %d-byte buffer holds %d blocks of %d bytes, but a heap needs at least %d", len(buf), blockCount, blockSize, minHeapBlocks)
	}
	if blockCount > maxHeapBlocks {
		return nil, cerrors.Newf("a %d-byte buffer holds %d blocks of %d bytes, but block indexes only reach %d", len(buf), blockCount, blockSize, maxHeapBlocks)
	}

	heap := &Heap{
		logger: logger,

		arena:      buf,
		blockSize:  blockSize,
		blockCount: uint16(blockCount),

		onCorruption: options.OnCorruption,

		inlineMetrics: options.Flags&HeapInlineMetrics != 0,

		userData: swiss.NewMap[Pointer, any](42),
	}
	heap.mutex.UseMutex = options.Flags&HeapExternallySynchronized == 0
	heap.initArena()

	logger.Debug("created a new heap",
		slog.Int("blockSize", blockSize),
		slog.Int("blockCount", blockCount),
		slog.String("flags", options.Flags.String()),
	)

	return heap, nil
}

// initArena lays down the empty-heap skeleton: block 0 anchors both lists and
// points at block 1, which is a single free run spanning everything up to the
// final block, the tail sentinel.
func (h *Heap) initArena() {
	for i := range h.arena {
		h.arena[i] = 0
	}

	last := h.blockCount - 1

	h.setNextIndex(0, 1)
	h.setNextFree(0, 1)
	h.setPrevFree(0, 1)

	h.setNextIndex(1, last|freeListMask)
	h.setPrevIndex(last, 1)

	if h.inlineMetrics {
		h.freeBlocks = int(h.blockCount) - 2
		h.freeBlocksSquared = int64(h.freeBlocks) * int64(h.freeBlocks)
	}
}

// Size returns the number of bytes under heap management, including the
// blocks consumed by headers and sentinels.
func (h *Heap) Size() int {
	return int(h.blockCount) * h.blockSize
}

// BlockSize returns the width in bytes of a single heap block.
func (h *Heap) BlockSize() int {
	return h.blockSize
}

// BlockCount returns the number of blocks under heap management, including
// the two sentinel blocks.
func (h *Heap) BlockCount() int {
	return int(h.blockCount)
}

// IsEmpty returns true if the heap has no live allocations.
func (h *Heap) IsEmpty() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	first := h.nextIndex(0) & blockNumberMask
	return first == 1 && h.isFree(1) && h.nextIndex(1)&blockNumberMask == h.blockCount-1
}

// Clear releases every live allocation at once and restores the heap to its
// freshly-created state. All outstanding Pointers become invalid.
func (h *Heap) Clear() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.initArena()
	h.userData = swiss.NewMap[Pointer, any](42)

	h.logger.Debug("cleared the heap", slog.Int("blockCount", int(h.blockCount)))
}

// Destroy ends the heap's ownership of its backing buffer. If any allocations
// are still live, each one is logged and an error is returned without
// releasing the buffer. Destroy must only be called once.
func (h *Heap) Destroy() error {
	if h.arena == nil {
		panic("attempting to destroy a heap that no longer owns a backing buffer")
	}

	if !h.IsEmpty() {
		h.logUnreleasedMemory()
		return cerrors.New("some allocations were not released before the destruction of this heap")
	}

	h.arena = nil
	h.userData = nil
	return nil
}

func (h *Heap) logUnreleasedMemory() {
	_ = h.VisitAllRuns(func(p Pointer, payload []byte, userData any, free bool) error {
		if free {
			return nil
		}

		h.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
			slog.Int("offset", int(p)),
			slog.Int("size", len(payload)),
			slog.Any("userData", userData),
		)
		return nil
	})
}

// Bytes returns the payload of the live allocation starting at p. The slice
// aliases the heap's backing buffer and is valid until the allocation is
// released, resized, or the heap is cleared. Its length is the allocation's
// full capacity, which may exceed the size originally requested.
func (h *Heap) Bytes(p Pointer) []byte {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	c := h.blockForPointer(p)
	end := h.blockOffset(c) + int(h.runBlocks(c))*h.blockSize
	return h.arena[int(p):end]
}
