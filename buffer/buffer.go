// Package buffer implements the frame ring allocator for camera
// acquisition.
//
// One contiguous block backs the whole queue: the block is sized for
// queueLength frame slots, each rounded up to an 8-byte boundary so the
// device can DMA into them at full rate. The block is reused verbatim
// across acquisitions as long as the required size does not change, which
// keeps repeated start/stop cycles with unchanged geometry free of large
// allocations.
package buffer

import (
	"errors"
	"fmt"
	"math"
	"unsafe"
)

// Align is the slot alignment in bytes. Frame buffers must start on this
// boundary for best DMA performance.
const Align = 8

// ErrAllocation indicates the requested ring geometry cannot be
// represented (size arithmetic overflow or non-positive inputs).
var ErrAllocation = errors.New("frame ring allocation failure")

// roundUp rounds n up to the next multiple of align.
func roundUp(n, align int) int {
	return ((n + align - 1) / align) * align
}

// Required returns the total block size in bytes for queueLength slots of
// frameSize bytes each: alignment slack plus the aligned slot stride times
// the slot count.
func Required(frameSize, queueLength int) (int, error) {
	if frameSize <= 0 || queueLength < 1 {
		return 0, fmt.Errorf("%w: frame size %d, queue length %d",
			ErrAllocation, frameSize, queueLength)
	}
	if frameSize > math.MaxInt-(Align-1) {
		return 0, fmt.Errorf("%w: frame size %d overflows", ErrAllocation, frameSize)
	}
	stride := roundUp(frameSize, Align)
	if stride > (math.MaxInt-(Align-1))/queueLength {
		return 0, fmt.Errorf("%w: %d slots of %d bytes overflow",
			ErrAllocation, queueLength, frameSize)
	}
	return (Align - 1) + stride*queueLength, nil
}

// Block is a contiguous run of memory cut into equal, aligned frame slots.
// It is created by New and laid out for one (frameSize, queueLength) pair;
// Relayout re-cuts the same memory for a new pair of identical total size.
type Block struct {
	data       []byte
	slotSize   int // bytes handed to the device per slot
	slotStride int // slotSize rounded up to Align
	slots      int
	first      int // offset of the first aligned slot within data
}

// New allocates a block sized exactly for the given ring geometry.
func New(frameSize, queueLength int) (*Block, error) {
	size, err := Required(frameSize, queueLength)
	if err != nil {
		return nil, err
	}
	b := &Block{data: make([]byte, size)}
	b.layout(frameSize, queueLength)
	return b, nil
}

// layout computes the slot geometry over the current backing memory. The
// first slot starts at the block's base address rounded up to Align, so
// the offset depends on where the runtime placed the allocation.
func (b *Block) layout(frameSize, queueLength int) {
	base := uintptr(unsafe.Pointer(unsafe.SliceData(b.data)))
	b.first = int((Align - base%Align) % Align)
	b.slotSize = frameSize
	b.slotStride = roundUp(frameSize, Align)
	b.slots = queueLength
}

// Fits reports whether the block's memory can be reused verbatim for the
// given ring geometry, i.e. the required size equals the current size.
func (b *Block) Fits(frameSize, queueLength int) bool {
	if b == nil || b.data == nil {
		return false
	}
	size, err := Required(frameSize, queueLength)
	return err == nil && size == len(b.data)
}

// Relayout re-cuts the existing memory for a new ring geometry. The
// geometry must fit the current allocation exactly; callers check Fits
// first and allocate a fresh block otherwise.
func (b *Block) Relayout(frameSize, queueLength int) error {
	if !b.Fits(frameSize, queueLength) {
		return fmt.Errorf("%w: block of %d bytes cannot hold %d slots of %d bytes",
			ErrAllocation, b.Size(), queueLength, frameSize)
	}
	b.layout(frameSize, queueLength)
	return nil
}

// Size returns the total block size in bytes, zero after Release.
func (b *Block) Size() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Slots returns the number of frame slots in the current layout.
func (b *Block) Slots() int {
	if b == nil {
		return 0
	}
	return b.slots
}

// SlotSize returns the per-slot payload size in bytes.
func (b *Block) SlotSize() int {
	if b == nil {
		return 0
	}
	return b.slotSize
}

// SlotStride returns the distance between consecutive slot starts.
func (b *Block) SlotStride() int {
	if b == nil {
		return 0
	}
	return b.slotStride
}

// Base returns the address of the block's memory, for introspection and
// diagnostics. Zero after Release.
func (b *Block) Base() uintptr {
	if b == nil || b.data == nil {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(b.data)))
}

// Slot returns the i-th frame slot. The slice is capped at the slot
// payload size so a device write past it would be caught by bounds checks
// in pure-Go drivers.
func (b *Block) Slot(i int) []byte {
	if i < 0 || i >= b.slots {
		panic(fmt.Sprintf("buffer: slot %d out of range [0,%d)", i, b.slots))
	}
	off := b.first + i*b.slotStride
	return b.data[off : off+b.slotSize : off+b.slotSize]
}

// Location describes where a device-returned frame pointer falls within
// the block, for the diagnostic checks done after every wait.
type Location struct {
	Inside  bool // address lies within the block's slot region
	Aligned bool // address coincides with a slot start
	Slot    int  // slot index, valid only when Aligned
}

// Locate maps a frame slice returned by the device back onto the slot
// layout. Frames are matched by address, not by slice identity, because
// the device layer may rebuild slice headers around the same memory.
func (b *Block) Locate(frame []byte) Location {
	if b == nil || b.data == nil || len(frame) == 0 {
		return Location{}
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(frame)))
	start := b.Base() + uintptr(b.first)
	end := b.Base() + uintptr(len(b.data))
	if addr < start || addr >= end {
		return Location{}
	}
	off := int(addr - start)
	if off%b.slotStride != 0 || off/b.slotStride >= b.slots {
		return Location{Inside: true}
	}
	return Location{Inside: true, Aligned: true, Slot: off / b.slotStride}
}

// Release drops the backing memory. Layout bookkeeping is cleared before
// the data reference so an interrupted release can never leave the block
// describing memory it no longer holds. Safe on nil.
func (b *Block) Release() {
	if b == nil {
		return
	}
	b.slotSize = 0
	b.slotStride = 0
	b.slots = 0
	b.first = 0
	b.data = nil
}
