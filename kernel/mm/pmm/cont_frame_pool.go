package pmm

import (
	"unsafe"

	"github.com/tshree19/CSCE611-OS-FALL2022/kernel"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/kfmt"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"
)

var (
	// bitmapPtrFn returns a pointer to the physical address holding a pool
	// bitmap. It is used by tests to back bitmaps with regular slices.
	bitmapPtrFn = mm.Ptr

	// memsetFn is used by tests and is automatically inlined by the compiler.
	memsetFn = kernel.Memset
)

// ContFramePool manages a contiguous range of physical frames and hands out
// runs of contiguous frames from it.
//
// The state of every frame is kept in a bitmap (see FrameState). The length
// of an allocated run is not stored anywhere: a run is a HeadOfSequence frame
// followed by zero or more Used frames and ends at the next Free,
// HeadOfSequence or Inaccessible frame or at the end of the pool. Releasing a
// run scans forward from its head to recover the length.
type ContFramePool struct {
	// baseFrame is the absolute number of the first frame in the pool.
	// Bitmap entry i corresponds to frame (baseFrame + i).
	baseFrame mm.Frame

	// frameCount is the number of frames managed by the pool.
	frameCount uint32

	// infoFrame is the first frame of an externally hosted bitmap or 0 if
	// the bitmap lives in the pool's first frame.
	infoFrame mm.Frame

	// freeCount always equals the number of Free frames in the bitmap.
	freeCount uint32

	bitmap []byte
}

// Init sets up a pool managing frameCount frames starting at baseFrame and
// appends it to reg.
//
// If infoFrame is 0 the bitmap is stored in the first frame of the pool which
// is marked Used and never handed out. Otherwise the bitmap is stored starting
// at infoFrame; callers size it with InfoFramesNeeded and must keep those
// frames out of every pool (e.g. by allocating them from another pool).
func (p *ContFramePool) Init(reg *Registry, baseFrame mm.Frame, frameCount uint32, infoFrame mm.Frame) *kernel.Error {
	switch {
	case frameCount == 0:
		return errEmptyPool
	case frameCount > MaxFrames:
		return errPoolTooLarge
	case infoFrame == 0 && frameCount > FramesPerInfoFrame:
		return errPoolTooLarge
	}

	if err := reg.add(p, baseFrame, frameCount); err != nil {
		return err
	}

	p.baseFrame = baseFrame
	p.frameCount = frameCount
	p.infoFrame = infoFrame

	bitmapFrame := infoFrame
	if infoFrame == 0 {
		bitmapFrame = baseFrame
	}

	// Free is encoded as 0 so clearing the bitmap marks every frame free
	bitmapLen := uintptr((frameCount + framesPerByte - 1) / framesPerByte)
	bitmapPtr := bitmapPtrFn(bitmapFrame.Address())
	memsetFn(uintptr(bitmapPtr), 0, bitmapLen)
	p.bitmap = unsafe.Slice((*byte)(bitmapPtr), bitmapLen)
	p.freeCount = frameCount

	// The first frame holds the bitmap itself
	if infoFrame == 0 {
		setState(p.bitmap, 0, Used)
		p.freeCount--
	}

	kfmt.Printf("[pmm] frame pool initialized: frames %d-%d, %d free\n", uintptr(baseFrame), uintptr(baseFrame)+uintptr(frameCount)-1, p.freeCount)
	return nil
}

// BaseFrame returns the first frame managed by the pool.
func (p *ContFramePool) BaseFrame() mm.Frame { return p.baseFrame }

// FrameCount returns the number of frames managed by the pool.
func (p *ContFramePool) FrameCount() uint32 { return p.frameCount }

// InfoFrame returns the frame holding an externally hosted bitmap or 0.
func (p *ContFramePool) InfoFrame() mm.Frame { return p.infoFrame }

// FreeFrames returns the number of free frames in the pool.
func (p *ContFramePool) FreeFrames() uint32 { return p.freeCount }

// Contains returns true if frame is managed by this pool.
func (p *ContFramePool) Contains(frame mm.Frame) bool {
	return frame >= p.baseFrame && frame-p.baseFrame < mm.Frame(p.frameCount)
}

// State returns the state of an absolute frame number.
func (p *ContFramePool) State(frame mm.Frame) (FrameState, *kernel.Error) {
	if !p.Contains(frame) {
		return Inaccessible, errRangeOutsidePool
	}

	return getState(p.bitmap, uint32(frame-p.baseFrame)), nil
}

// Count scans the bitmap and returns the number of frames in state s.
func (p *ContFramePool) Count(s FrameState) uint32 {
	var count uint32
	for index := uint32(0); index < p.frameCount; index++ {
		if getState(p.bitmap, index) == s {
			count++
		}
	}
	return count
}

// AllocFrames reserves a run of n contiguous frames and returns the number of
// its first frame. The pool is scanned in ascending order and the first run
// of n free frames is used. ErrPoolExhausted is returned, and no frame state
// changes, if no such run exists.
func (p *ContFramePool) AllocFrames(n uint32) (mm.Frame, *kernel.Error) {
	switch {
	case n == 0:
		return mm.InvalidFrame, errInvalidFrameCount
	case n > p.freeCount:
		return mm.InvalidFrame, ErrPoolExhausted
	}

	var runStart, runLen uint32
	for index := uint32(0); index < p.frameCount; index++ {
		if getState(p.bitmap, index) != Free {
			runLen = 0
			continue
		}

		if runLen == 0 {
			runStart = index
		}

		if runLen++; runLen == n {
			p.markRun(runStart, n, Used)
			return p.baseFrame + mm.Frame(runStart), nil
		}
	}

	kfmt.Printf("[pmm] not enough contiguous frames available (requested %d, free %d)\n", n, p.freeCount)
	return mm.InvalidFrame, ErrPoolExhausted
}

// MarkInaccessible withdraws the n frames starting at the absolute frame
// baseFrame from allocation. The first frame becomes HeadOfSequence and the
// rest Inaccessible. The range must be managed by this pool and be free.
func (p *ContFramePool) MarkInaccessible(baseFrame mm.Frame, n uint32) *kernel.Error {
	if n == 0 {
		return errInvalidFrameCount
	}

	if !p.Contains(baseFrame) {
		return errRangeOutsidePool
	}

	// Compare lengths instead of end frames; baseFrame+n may wrap
	start := uint32(baseFrame - p.baseFrame)
	if n > p.frameCount-start {
		return errRangeOutsidePool
	}

	for index := start; index < start+n; index++ {
		if getState(p.bitmap, index) != Free {
			return errRangeNotFree
		}
	}

	p.markRun(start, n, Inaccessible)
	return nil
}

// markRun flags the run [start, start+n) as allocated. The first frame is
// marked HeadOfSequence and the rest use the supplied state.
func (p *ContFramePool) markRun(start, n uint32, state FrameState) {
	setState(p.bitmap, start, HeadOfSequence)
	for index := start + 1; index < start+n; index++ {
		setState(p.bitmap, index, state)
	}
	p.freeCount -= n
}

// releaseRun frees the run whose head is at offset index.
func (p *ContFramePool) releaseRun(index uint32) *kernel.Error {
	if getState(p.bitmap, index) != HeadOfSequence {
		return ErrNotSequenceHead
	}

	setState(p.bitmap, index, Free)
	p.freeCount++

	for index++; index < p.frameCount && getState(p.bitmap, index) == Used; index++ {
		setState(p.bitmap, index, Free)
		p.freeCount++
	}

	return nil
}
