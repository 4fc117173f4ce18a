package pmm

// FrameState describes the allocation state of a physical frame. Each state
// is encoded with 2 bits in a pool's bitmap.
type FrameState uint8

const (
	// Free frames can be handed out by AllocFrames.
	Free FrameState = iota

	// Used frames are allocated and follow a HeadOfSequence frame.
	Used

	// HeadOfSequence marks the first frame of an allocated run. It is the
	// only valid argument for a release.
	HeadOfSequence

	// Inaccessible frames are permanently withdrawn from allocation.
	Inaccessible
)

const (
	// bitsPerFrame is the bitmap width of a single frame state.
	bitsPerFrame = 2

	// framesPerByte is the number of frame states packed in a bitmap byte.
	framesPerByte = 8 / bitsPerFrame

	stateMask = byte(1<<bitsPerFrame - 1)
)

// String returns the name of the frame state.
func (s FrameState) String() string {
	switch s {
	case Free:
		return "free"
	case Used:
		return "used"
	case HeadOfSequence:
		return "head-of-sequence"
	case Inaccessible:
		return "inaccessible"
	default:
		return "invalid"
	}
}

// getState decodes the state of the frame at offset index. Frame i lives in
// byte i/4; the least significant bit pair holds the lowest frame.
func getState(bitmap []byte, index uint32) FrameState {
	shift := (index % framesPerByte) * bitsPerFrame
	return FrameState((bitmap[index/framesPerByte] >> shift) & stateMask)
}

// setState encodes state for the frame at offset index.
func setState(bitmap []byte, index uint32, state FrameState) {
	var (
		block = index / framesPerByte
		shift = (index % framesPerByte) * bitsPerFrame
	)

	bitmap[block] = (bitmap[block] &^ (stateMask << shift)) | (byte(state) << shift)
}
