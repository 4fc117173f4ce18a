// Package mm contains the types shared by the physical (pmm) and virtual
// (vmm) memory managers.
package mm

import "unsafe"

const (
	// PageShift is equal to log2(PageSize). This constant is used when we
	// need to convert a physical address to a frame number (shift right by
	// PageShift) and vice-versa.
	PageShift = uintptr(12)

	// PageSize defines the system's page (and frame) size in bytes.
	PageSize = uintptr(1 << PageShift)

	// Kb and Mb are handy multipliers for expressing memory layouts.
	Kb = uintptr(1024)
	Mb = 1024 * Kb
)

// Frame describes a physical memory page index.
type Frame uintptr

// InvalidFrame is returned by frame allocators together with an error when
// they fail to reserve the requested frames.
const InvalidFrame = ^Frame(0)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical memory address pointed to by this Frame.
func (f Frame) Address() uintptr {
	return uintptr(f) << PageShift
}

// FrameFromAddress returns the Frame that contains physAddr.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame((physAddr &^ (PageSize - 1)) >> PageShift)
}

// Page describes a virtual memory page index.
type Page uintptr

// Address returns the virtual address pointed to by this Page.
func (p Page) Address() uintptr {
	return uintptr(p) << PageShift
}

// PageFromAddress returns the Page that contains virtAddr.
func PageFromAddress(virtAddr uintptr) Page {
	return Page((virtAddr &^ (PageSize - 1)) >> PageShift)
}

// PointerResolverFn converts a kernel address into a pointer that can be
// dereferenced by the running code.
type PointerResolverFn func(addr uintptr) unsafe.Pointer

var (
	// identityResolver is used by the kernel build; addresses are
	// dereferenced as is and translated by the MMU.
	identityResolver = func(addr uintptr) unsafe.Pointer {
		return unsafe.Pointer(addr)
	}

	resolver PointerResolverFn = identityResolver
)

// SetPointerResolver installs the function used by Ptr. Hosted tools that
// back kernel addresses with simulated RAM install their own resolver;
// passing nil restores the identity resolver.
func SetPointerResolver(fn PointerResolverFn) {
	if fn == nil {
		fn = identityResolver
	}
	resolver = fn
}

// Ptr returns a pointer to the memory at addr. Bitmaps, page directories and
// page tables are all accessed through Ptr.
func Ptr(addr uintptr) unsafe.Pointer {
	return resolver(addr)
}
