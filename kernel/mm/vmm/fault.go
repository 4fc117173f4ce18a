package vmm

import (
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/gate"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/kfmt"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"
)

// HandleInterrupt services page faults for the active page table. The
// faulting page is backed by a new frame from the process pool; if the page
// table covering it is missing, a frame for the table is allocated and
// installed first. Faults on addresses outside the registered regions and
// allocation failures cannot be recovered from and cause a kernel panic.
func (p *Paging) HandleInterrupt(regs *gate.Registers) {
	var (
		faultAddress = uintptr(readCR2Fn())
		pt           = p.active
	)

	if pt == nil {
		nonRecoverablePageFault(faultAddress, regs, errNoActiveTable)
		return
	}

	if !pt.isLegitimate(faultAddress) {
		nonRecoverablePageFault(faultAddress, regs, errIllegitimateAccess)
		return
	}

	pde := entryAt(uintptr(DirEntryAddr(faultAddress)))
	if !pde.HasFlags(FlagPresent) {
		tableFrame, err := p.processPool.AllocFrames(1)
		if err != nil {
			nonRecoverablePageFault(faultAddress, regs, err)
			return
		}

		// Once installed, the new table shows up in the recursive window
		pde.install(tableFrame)
		memsetFn(uintptr(ptePtrFn(TableAddr(DirIndexOf(faultAddress)))), 0, mm.PageSize)
	}

	pageFrame, err := p.processPool.AllocFrames(1)
	if err != nil {
		nonRecoverablePageFault(faultAddress, regs, err)
		return
	}

	entryAt(uintptr(TableEntryAddr(faultAddress))).install(pageFrame)
}

func nonRecoverablePageFault(faultAddress uintptr, regs *gate.Registers, err *kernel.Error) {
	kfmt.Printf("\nPage fault while accessing address: 0x%8x\nReason: ", faultAddress)
	switch {
	case err == errIllegitimateAccess:
		kfmt.Printf("address is not part of any registered region")
	case err == errNoActiveTable:
		kfmt.Printf("no page table has been loaded")
	default:
		kfmt.Printf("could not back page: %s", err.Message)
	}

	kfmt.Printf(" (")
	switch {
	case regs.Info&1 != 0:
		kfmt.Printf("page protection violation")
	case regs.Info&2 != 0:
		kfmt.Printf("write to non-present page")
	default:
		kfmt.Printf("read from non-present page")
	}
	kfmt.Printf(")\n\nRegisters:\n")
	regs.DumpTo(kfmt.GetOutputSink())

	panic(err)
}
