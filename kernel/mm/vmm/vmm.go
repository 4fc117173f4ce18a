// Package vmm implements two-level paging for 32-bit x86 with 4K pages.
//
// Every page directory maps itself through its last entry. With that
// recursive mapping in place the MMU exposes the active directory at
// 0xFFFFF000 and all of its page tables in the 4M window starting at
// 0xFFC00000, so the kernel can edit any translation structure of the active
// address space without mapping it first. Pages outside the shared region are
// populated lazily by the page fault handler.
package vmm

import (
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/cpu"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"
)

var (
	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	ptePtrFn    = mm.Ptr
	readCR0Fn   = cpu.ReadCR0
	writeCR0Fn  = cpu.WriteCR0
	readCR2Fn   = cpu.ReadCR2
	switchPDTFn = cpu.SwitchPDT
	memsetFn    = kernel.Memset

	// ErrInvalidMapping is returned when trying to lookup a virtual memory
	// address that is not yet mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	// ErrInactiveTable is returned when accessing the entries of a page
	// table that is not loaded while translation is enabled.
	ErrInactiveTable = &kernel.Error{Module: "vmm", Message: "page table is not active"}

	errIllegitimateAccess = &kernel.Error{Module: "vmm", Message: "access outside of every registered region"}
	errNoActiveTable      = &kernel.Error{Module: "vmm", Message: "page fault without an active page table"}
	errPagingNotReady     = &kernel.Error{Module: "vmm", Message: "paging has not been initialized"}
	errTranslationEnabled = &kernel.Error{Module: "vmm", Message: "page tables must be constructed before translation is enabled"}
	errSharedSize         = &kernel.Error{Module: "vmm", Message: "shared region must be page aligned and fit in a single page table"}
)

const (
	// MaxRegions is the number of regions that can be registered with a
	// page table.
	MaxRegions = 10

	// entriesPerTable is the number of 32-bit entries in a page directory
	// or a page table.
	entriesPerTable = 1024

	// recursiveEntry is the directory entry that maps the directory itself.
	recursiveEntry = DirIndex(entriesPerTable - 1)

	// entryShift is equal to log2 of the page table entry size.
	entryShift = 2

	// tableSpan is the amount of memory mapped by a single page table.
	tableSpan = entriesPerTable * mm.PageSize
)
