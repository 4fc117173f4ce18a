package vmm

const (
	// dirWindowAddr is the virtual address of the active page directory.
	// Both of its table indices are 1023 so the MMU follows the recursive
	// entry twice and lands on the directory.
	dirWindowAddr = uintptr(0xFFFFF000)

	// tableWindowAddr is the virtual address where the page tables of the
	// active directory are mapped. Table i lives at tableWindowAddr + i*4K.
	tableWindowAddr = uintptr(0xFFC00000)

	dirIndexShift   = 22
	tableIndexShift = 12
	indexMask       = entriesPerTable - 1
)

// DirIndex selects one of the 1024 entries of a page directory (virtual
// address bits 22-31).
type DirIndex uint32

// TableIndex selects one of the 1024 entries of a page table (virtual address
// bits 12-21).
type TableIndex uint32

// EntryAddr is the virtual address of a directory or table entry inside the
// recursive window.
type EntryAddr uintptr

// DirIndexOf returns the directory index for virtAddr.
func DirIndexOf(virtAddr uintptr) DirIndex {
	return DirIndex((virtAddr >> dirIndexShift) & indexMask)
}

// TableIndexOf returns the page table index for virtAddr.
func TableIndexOf(virtAddr uintptr) TableIndex {
	return TableIndex((virtAddr >> tableIndexShift) & indexMask)
}

// DirEntryAddr returns the address of the active directory entry covering
// virtAddr: 0xFFFFF000 | (virtAddr >> 22) << 2.
func DirEntryAddr(virtAddr uintptr) EntryAddr {
	return EntryAddr(dirWindowAddr | uintptr(DirIndexOf(virtAddr))<<entryShift)
}

// TableEntryAddr returns the address of the active table entry mapping
// virtAddr: 0xFFC00000 | (virtAddr >> 12) << 2. The containing table must be
// present.
func TableEntryAddr(virtAddr uintptr) EntryAddr {
	return EntryAddr(tableWindowAddr | (virtAddr>>tableIndexShift)<<entryShift)
}

// TableAddr returns the address of the page table installed in directory
// entry index.
func TableAddr(index DirIndex) uintptr {
	return tableWindowAddr | uintptr(index)<<tableIndexShift
}
