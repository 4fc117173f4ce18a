package pmm

import "testing"

func TestBitmapEncoding(t *testing.T) {
	bitmap := make([]byte, 2)

	setState(bitmap, 0, HeadOfSequence)
	setState(bitmap, 1, Used)
	setState(bitmap, 2, Free)
	setState(bitmap, 3, Inaccessible)
	setState(bitmap, 5, HeadOfSequence)

	// frame 0 -> bits 0-1, frame 1 -> bits 2-3, ...
	if exp, got := byte(0x2|0x1<<2|0x0<<4|0x3<<6), bitmap[0]; got != exp {
		t.Fatalf("expected first bitmap byte to be 0x%x; got 0x%x", exp, got)
	}

	if exp, got := byte(0x2<<2), bitmap[1]; got != exp {
		t.Fatalf("expected second bitmap byte to be 0x%x; got 0x%x", exp, got)
	}

	expStates := []FrameState{HeadOfSequence, Used, Free, Inaccessible, Free, HeadOfSequence, Free, Free}
	for index, exp := range expStates {
		if got := getState(bitmap, uint32(index)); got != exp {
			t.Errorf("expected frame %d state to be %s; got %s", index, exp, got)
		}
	}

	// Overwriting a state must not disturb its neighbours
	setState(bitmap, 1, Free)
	for index, exp := range []FrameState{HeadOfSequence, Free, Free, Inaccessible} {
		if got := getState(bitmap, uint32(index)); got != exp {
			t.Errorf("after overwrite: expected frame %d state to be %s; got %s", index, exp, got)
		}
	}
}

func TestFrameStateString(t *testing.T) {
	specs := []struct {
		state FrameState
		exp   string
	}{
		{Free, "free"},
		{Used, "used"},
		{HeadOfSequence, "head-of-sequence"},
		{Inaccessible, "inaccessible"},
		{FrameState(42), "invalid"},
	}

	for _, spec := range specs {
		if got := spec.state.String(); got != spec.exp {
			t.Errorf("expected state %d to stringify as %q; got %q", spec.state, spec.exp, got)
		}
	}
}
