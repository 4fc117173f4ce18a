package vmm

import (
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/cpu"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/gate"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/kfmt"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm/pmm"
)

// Paging holds the state shared by all page tables: the frame pools that back
// translation structures and demand-paged memory, the size of the identity
// mapped region shared by every address space and the currently active page
// table.
type Paging struct {
	registry    *pmm.Registry
	kernelPool  *pmm.ContFramePool
	processPool *pmm.ContFramePool
	sharedSize  uintptr

	// active is the table consulted by the page fault handler.
	active  *PageTable
	enabled bool
}

// Init configures the paging system. Page tables constructed afterwards
// identity map the first sharedSize bytes of memory; directories, tables and
// demand-paged frames are allocated from processPool and released through
// reg.
func (p *Paging) Init(reg *pmm.Registry, kernelPool, processPool *pmm.ContFramePool, sharedSize uintptr) *kernel.Error {
	if sharedSize == 0 || sharedSize > tableSpan || sharedSize&(mm.PageSize-1) != 0 {
		return errSharedSize
	}

	p.registry = reg
	p.kernelPool = kernelPool
	p.processPool = processPool
	p.sharedSize = sharedSize
	p.active = nil
	p.enabled = false

	kfmt.Printf("[vmm] paging initialized (shared region: %d KB)\n", sharedSize/mm.Kb)
	return nil
}

// NewPageTable allocates a page directory and the page table for the shared
// region from the process pool and sets them up inside pt:
//
//   - the shared region is identity mapped (present, RW)
//   - the remaining directory entries are marked RW but not present
//   - the last directory entry maps the directory itself.
//
// Page tables must be constructed while translation is disabled as the frames
// are written through their physical addresses. The new table becomes the
// active table; Load must still be called to point the MMU at it.
func (p *Paging) NewPageTable(pt *PageTable) *kernel.Error {
	switch {
	case p.processPool == nil:
		return errPagingNotReady
	case p.enabled:
		return errTranslationEnabled
	}

	dirFrame, err := p.processPool.AllocFrames(1)
	if err != nil {
		return err
	}

	tableFrame, err := p.processPool.AllocFrames(1)
	if err != nil {
		_ = p.registry.ReleaseFrames(dirFrame)
		return err
	}

	var (
		dirAddr      = dirFrame.Address()
		tableAddr    = tableFrame.Address()
		sharedFrames = p.sharedSize >> mm.PageShift
	)

	memsetFn(uintptr(ptePtrFn(dirAddr)), 0, mm.PageSize)
	memsetFn(uintptr(ptePtrFn(tableAddr)), 0, mm.PageSize)

	for index := uintptr(0); index < sharedFrames; index++ {
		entryAt(tableAddr + index<<entryShift).install(mm.Frame(index))
	}

	entryAt(dirAddr).install(tableFrame)
	for index := uintptr(1); index < entriesPerTable; index++ {
		entryAt(dirAddr + index<<entryShift).SetFlags(FlagRW)
	}
	entryAt(dirAddr + uintptr(recursiveEntry)<<entryShift).install(dirFrame)

	*pt = PageTable{paging: p, dirFrame: dirFrame}
	p.active = pt

	kfmt.Printf("[vmm] constructed page table (directory at frame %d)\n", uintptr(dirFrame))
	return nil
}

// EnableTranslation turns on paging by setting the PG bit in CR0. The
// active page table must have been loaded first.
func (p *Paging) EnableTranslation() {
	writeCR0Fn(readCR0Fn() | cpu.CR0PagingBit)
	p.enabled = true

	kfmt.Printf("[vmm] enabled paging\n")
}

// Enabled returns true if translation has been enabled.
func (p *Paging) Enabled() bool { return p.enabled }

// Active returns the page table consulted by the page fault handler.
func (p *Paging) Active() *PageTable { return p.active }

// InstallFaultHandler registers the paging system as the page fault handler
// in d.
func (p *Paging) InstallFaultHandler(d *gate.Dispatcher) {
	d.HandleInterrupt(gate.PageFaultException, p)
}

// KernelPool returns the pool backing kernel memory.
func (p *Paging) KernelPool() *pmm.ContFramePool { return p.kernelPool }

// ProcessPool returns the pool backing page tables and demand-paged memory.
func (p *Paging) ProcessPool() *pmm.ContFramePool { return p.processPool }
