package vmm

import "github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"

// PageTableEntryFlag describes a flag that can be applied to a page directory
// or page table entry.
type PageTableEntryFlag uint32

const (
	// FlagPresent is set when the entry points to a frame in memory.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW is set if the page can be written to.
	FlagRW
)

// ptePhysPageMask extracts the frame address from an entry (bits 12-31).
const ptePhysPageMask = uint32(0xFFFFF000)

// pageTableEntry describes a page directory or page table entry. These entries
// encode a physical frame address and a set of flags.
type pageTableEntry uint32

// HasFlags returns true if this entry has all the input flags set.
func (pte pageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uint32(pte) & uint32(flags)) == uint32(flags)
}

// SetFlags sets the input list of flags to the page table entry.
func (pte *pageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = (pageTableEntry)(uint32(*pte) | uint32(flags))
}

// ClearFlags unsets the input list of flags from the page table entry.
func (pte *pageTableEntry) ClearFlags(flags PageTableEntryFlag) {
	*pte = (pageTableEntry)(uint32(*pte) &^ uint32(flags))
}

// Frame returns the physical page frame that this page table entry points to.
func (pte pageTableEntry) Frame() mm.Frame {
	return mm.Frame((uint32(pte) & ptePhysPageMask) >> mm.PageShift)
}

// SetFrame updates the page table entry to point the the given physical frame.
func (pte *pageTableEntry) SetFrame(frame mm.Frame) {
	*pte = (pageTableEntry)((uint32(*pte) &^ ptePhysPageMask) | uint32(frame.Address()))
}

// entryAt returns the entry stored at addr.
func entryAt(addr uintptr) *pageTableEntry {
	return (*pageTableEntry)(ptePtrFn(addr))
}

// install points the entry at frame and marks it present and writable.
func (pte *pageTableEntry) install(frame mm.Frame) {
	*pte = 0
	pte.SetFrame(frame)
	pte.SetFlags(FlagPresent | FlagRW)
}
