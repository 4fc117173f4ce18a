// Package pmm manages physical memory frames. Memory is split into contiguous
// frame pools that allocate single frames or runs of contiguous frames and
// track them in a 2-bit-per-frame bitmap. A Registry links all pools so a
// frame can be released knowing only its number.
package pmm

import (
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"
)

const (
	// FramesPerInfoFrame is the number of frame states that fit in a
	// single bitmap (info) frame.
	FramesPerInfoFrame = uint32(mm.PageSize) * framesPerByte

	// MaxFrames is the largest pool size; it covers the full 32-bit
	// physical address space. Pools whose bitmap is self-hosted are further
	// limited to FramesPerInfoFrame frames.
	MaxFrames = uint32(1 << 20)
)

var (
	// ErrPoolExhausted is returned when a pool cannot satisfy an
	// allocation because it lacks a long enough run of free frames.
	ErrPoolExhausted = &kernel.Error{Module: "pmm", Message: "not enough contiguous frames available"}

	// ErrFrameNotFound is returned when releasing a frame that is not
	// managed by any registered pool.
	ErrFrameNotFound = &kernel.Error{Module: "pmm", Message: "frame not found in any pool"}

	// ErrNotSequenceHead is returned when releasing a frame that does not
	// start an allocated run.
	ErrNotSequenceHead = &kernel.Error{Module: "pmm", Message: "frame is not the head of a sequence"}

	errEmptyPool         = &kernel.Error{Module: "pmm", Message: "frame pool must contain at least one frame"}
	errPoolTooLarge      = &kernel.Error{Module: "pmm", Message: "frame count exceeds the bitmap capacity"}
	errOverlappingPool   = &kernel.Error{Module: "pmm", Message: "frame pool overlaps a registered pool"}
	errRegistryFull      = &kernel.Error{Module: "pmm", Message: "frame pool registry is full"}
	errInvalidFrameCount = &kernel.Error{Module: "pmm", Message: "frame count must be greater than zero"}
	errRangeOutsidePool  = &kernel.Error{Module: "pmm", Message: "frame range is not managed by this pool"}
	errRangeNotFree      = &kernel.Error{Module: "pmm", Message: "frame range contains allocated frames"}
)

// InfoFramesNeeded returns the number of frames required to hold the bitmap
// of a pool with frameCount frames.
func InfoFramesNeeded(frameCount uint32) uint32 {
	var (
		bits             = uint64(frameCount) * bitsPerFrame
		bitsPerInfoFrame = uint64(mm.PageSize) * 8
	)

	return uint32((bits + bitsPerInfoFrame - 1) / bitsPerInfoFrame)
}
