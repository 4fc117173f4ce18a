package vmm

import (
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/kfmt"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"
)

// PageTable describes an address space: a page directory whose last entry
// maps the directory itself and the regions that may be demand paged.
type PageTable struct {
	paging   *Paging
	dirFrame mm.Frame

	regions     [MaxRegions]Region
	regionCount int
}

// DirectoryFrame returns the frame that holds the page directory.
func (pt *PageTable) DirectoryFrame() mm.Frame { return pt.dirFrame }

// Load points the MMU at this page table and makes it the table consulted by
// the page fault handler.
func (pt *PageTable) Load() {
	switchPDTFn(pt.dirFrame.Address())
	pt.paging.active = pt

	kfmt.Printf("[vmm] loaded page table\n")
}

// RegisterRegion adds r to the regions whose addresses may be demand paged.
// Once MaxRegions regions have been registered further regions are ignored.
func (pt *PageTable) RegisterRegion(r Region) {
	if pt.regionCount == MaxRegions {
		kfmt.Printf("[vmm] region table is full (%d regions); ignoring region\n", MaxRegions)
		return
	}

	pt.regions[pt.regionCount] = r
	pt.regionCount++
}

// Regions returns the number of registered regions.
func (pt *PageTable) Regions() int { return pt.regionCount }

// isLegitimate returns true if virtAddr belongs to a registered region. All
// addresses are legitimate until the first region is registered.
func (pt *PageTable) isLegitimate(virtAddr uintptr) bool {
	if pt.regionCount == 0 {
		return true
	}

	for i := 0; i < pt.regionCount; i++ {
		if pt.regions[i].Contains(virtAddr) {
			return true
		}
	}

	return false
}

// FreePage releases the frame backing page and marks its table entry as not
// present. The entry keeps its RW flag so that a later access faults the
// page back in. Pages that are not mapped are left alone. If this is the
// active table the TLB is flushed by reloading CR3 in either case.
func (pt *PageTable) FreePage(page mm.Page) *kernel.Error {
	pte, err := pt.tableEntryFor(page.Address())
	if err == ErrInactiveTable {
		return err
	}

	if err == nil && pte.HasFlags(FlagPresent) {
		if err = pt.paging.registry.ReleaseFrames(pte.Frame()); err == nil {
			*pte = pageTableEntry(FlagRW)
		}
	} else {
		err = nil
	}

	if pt.paging.active == pt {
		switchPDTFn(pt.dirFrame.Address())
	}

	return err
}

// Translate returns the physical address that corresponds to virtAddr or
// ErrInvalidMapping if virtAddr is not mapped.
func (pt *PageTable) Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	pte, err := pt.tableEntryFor(virtAddr)
	if err != nil {
		return 0, err
	}

	if !pte.HasFlags(FlagPresent) {
		return 0, ErrInvalidMapping
	}

	return pte.Frame().Address() + (virtAddr & (mm.PageSize - 1)), nil
}

// dirEntryFor returns the directory entry covering virtAddr. Before
// translation is enabled the directory is accessed through its physical
// address and afterwards through the recursive window, which only exposes the
// active table.
func (pt *PageTable) dirEntryFor(virtAddr uintptr) (*pageTableEntry, *kernel.Error) {
	if !pt.paging.enabled {
		return entryAt(pt.dirFrame.Address() + uintptr(DirIndexOf(virtAddr))<<entryShift), nil
	}

	if pt.paging.active != pt {
		return nil, ErrInactiveTable
	}

	return entryAt(uintptr(DirEntryAddr(virtAddr))), nil
}

// tableEntryFor returns the page table entry mapping virtAddr or
// ErrInvalidMapping if the page table covering virtAddr is not present.
func (pt *PageTable) tableEntryFor(virtAddr uintptr) (*pageTableEntry, *kernel.Error) {
	pde, err := pt.dirEntryFor(virtAddr)
	if err != nil {
		return nil, err
	}

	if !pde.HasFlags(FlagPresent) {
		return nil, ErrInvalidMapping
	}

	if !pt.paging.enabled {
		return entryAt(pde.Frame().Address() + uintptr(TableIndexOf(virtAddr))<<entryShift), nil
	}

	return entryAt(uintptr(TableEntryAddr(virtAddr))), nil
}
