package pmm

import (
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/kfmt"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"
)

// MaxPools is the number of frame pools a Registry can track.
const MaxPools = 8

// Registry keeps the frame pools of the system in creation order and resolves
// a frame number back to the pool that owns it. Pools register themselves
// when initialized.
type Registry struct {
	pools     [MaxPools]*ContFramePool
	poolCount int
}

// add appends p, which is about to manage frameCount frames starting at
// baseFrame, to the registry. Nothing is modified if an error is returned.
func (r *Registry) add(p *ContFramePool, baseFrame mm.Frame, frameCount uint32) *kernel.Error {
	if r.poolCount == MaxPools {
		return errRegistryFull
	}

	for i := 0; i < r.poolCount; i++ {
		other := r.pools[i]
		if baseFrame < other.baseFrame+mm.Frame(other.frameCount) && other.baseFrame < baseFrame+mm.Frame(frameCount) {
			return errOverlappingPool
		}
	}

	r.pools[r.poolCount] = p
	r.poolCount++
	return nil
}

// Len returns the number of registered pools.
func (r *Registry) Len() int { return r.poolCount }

// Pool returns the i-th registered pool.
func (r *Registry) Pool(i int) *ContFramePool { return r.pools[i] }

// PoolFor returns the pool whose range contains frame.
func (r *Registry) PoolFor(frame mm.Frame) (*ContFramePool, *kernel.Error) {
	for i := 0; i < r.poolCount; i++ {
		if r.pools[i].Contains(frame) {
			return r.pools[i], nil
		}
	}

	return nil, ErrFrameNotFound
}

// ReleaseFrames releases the run of frames that starts at frame, whichever
// pool it was allocated from. The frame must be the head of an allocated run;
// every Used frame following it is released as well.
//
// Releasing an unknown frame or a frame that does not start a run is a caller
// bug: a diagnostic is printed, the error returned and no state changes.
func (r *Registry) ReleaseFrames(frame mm.Frame) *kernel.Error {
	pool, err := r.PoolFor(frame)
	if err != nil {
		kfmt.Printf("[pmm] frame %d not found in any pool; cannot release\n", uintptr(frame))
		return err
	}

	if err = pool.releaseRun(uint32(frame - pool.baseFrame)); err != nil {
		kfmt.Printf("[pmm] frame %d is not the head of a sequence; cannot release\n", uintptr(frame))
		return err
	}

	return nil
}
