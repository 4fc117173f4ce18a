package vmm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tshree19/CSCE611-OS-FALL2022/kernel"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/gate"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/kfmt"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm/pmm"
)

func TestPageFaultWithMissingTable(t *testing.T) {
	var (
		m  = newTestMachine(t, 64)
		pt PageTable
	)

	m.boot(&pt)

	const virtAddr = uintptr(0x00400000)
	var (
		freeBefore = m.processPool.FreeFrames()
		lastBefore = m.dirEntry(&pt, recursiveEntry)
		// frames are handed out first-fit after the directory and the
		// shared table
		tableFrame = mm.Frame(1026)
		pageFrame  = mm.Frame(1027)
	)

	m.fill(tableFrame, 0xaa)
	m.fault(virtAddr + 0x10)

	if got := freeBefore - m.processPool.FreeFrames(); got != 2 {
		t.Fatalf("expected fault to allocate a table and a page frame; allocated %d frames", got)
	}

	pde := m.dirEntry(&pt, DirIndexOf(virtAddr))
	if !pde.HasFlags(FlagPresent|FlagRW) || pde.Frame() != tableFrame {
		t.Fatalf("expected directory entry to map the new table at frame %d; got 0x%x", tableFrame, pde)
	}

	if m.dirEntry(&pt, recursiveEntry) != lastBefore {
		t.Fatal("expected the recursive directory entry to remain untouched")
	}

	for index := uintptr(1); index < entriesPerTable; index++ {
		if pte := m.physEntry(tableFrame.Address() + index<<entryShift); pte != 0 {
			t.Fatalf("expected new table entry %d to be cleared; got 0x%x", index, pte)
		}
	}

	pte := m.physEntry(tableFrame.Address())
	if !pte.HasFlags(FlagPresent|FlagRW) || pte.Frame() != pageFrame {
		t.Fatalf("expected faulting page to be backed by frame %d; got 0x%x", pageFrame, pte)
	}

	if got, err := pt.Translate(virtAddr + 0x10); err != nil || got != pageFrame.Address()+0x10 {
		t.Fatalf("expected 0x%x to translate to 0x%x; got 0x%x, %v", virtAddr+0x10, pageFrame.Address()+0x10, got, err)
	}

	// The page is now accessible
	*(*byte)(m.resolve(virtAddr + 0x10)) = 42
	if got := (*[mm.PageSize]byte)(m.phys(pageFrame.Address()))[0x10]; got != 42 {
		t.Fatalf("expected write to land in frame %d", pageFrame)
	}
}

func TestPageFaultWithPresentTable(t *testing.T) {
	var (
		m  = newTestMachine(t, 64)
		pt PageTable
	)

	m.boot(&pt)

	const virtAddr = uintptr(0x00800000)
	m.fault(virtAddr)

	freeBefore := m.processPool.FreeFrames()
	m.fault(virtAddr + mm.PageSize)

	if got := freeBefore - m.processPool.FreeFrames(); got != 1 {
		t.Fatalf("expected fault to allocate a single page frame; allocated %d frames", got)
	}

	first, err := pt.Translate(virtAddr)
	if err != nil {
		t.Fatal(err)
	}

	second, err := pt.Translate(virtAddr + mm.PageSize)
	if err != nil {
		t.Fatal(err)
	}

	if first == second {
		t.Fatal("expected pages to be backed by distinct frames")
	}

	for _, addr := range []uintptr{first, second} {
		if pool, _ := m.reg.PoolFor(mm.FrameFromAddress(addr)); pool != &m.processPool {
			t.Fatalf("expected frame at 0x%x to come from the process pool", addr)
		}
	}
}

func TestNonRecoverablePageFaults(t *testing.T) {
	specs := []struct {
		descr     string
		frames    uint32
		regions   []Region
		virtAddr  uintptr
		regsInfo  uint32
		expErr    *kernel.Error
		expReason string
	}{
		{
			"address outside every region",
			16,
			[]Region{AddressRange{Base: 4 * mm.Mb, Size: 4 * mm.Mb}},
			16 * mm.Mb,
			0,
			errIllegitimateAccess,
			"address is not part of any registered region (read from non-present page)",
		},
		{
			"no frame for the page table",
			2,
			nil,
			16 * mm.Mb,
			2,
			pmm.ErrPoolExhausted,
			"could not back page: not enough contiguous frames available (write to non-present page)",
		},
		{
			"no frame for the page",
			3,
			[]Region{AddressRange{Base: 16 * mm.Mb, Size: mm.Mb}},
			16 * mm.Mb,
			2,
			pmm.ErrPoolExhausted,
			"could not back page: not enough contiguous frames available",
		},
	}

	for specIndex, spec := range specs {
		t.Run(spec.descr, func(t *testing.T) {
			var (
				m   = newTestMachine(t, spec.frames)
				pt  PageTable
				buf bytes.Buffer
			)

			m.boot(&pt)
			for _, r := range spec.regions {
				pt.RegisterRegion(r)
			}

			kfmt.SetOutputSink(&buf)

			defer func() {
				err := recover()
				if err != spec.expErr {
					t.Fatalf("[spec %d] expected panic with %v; got %v", specIndex, spec.expErr, err)
				}

				if got := buf.String(); !strings.Contains(got, "Page fault while accessing address: 0x01000000") || !strings.Contains(got, spec.expReason) {
					t.Fatalf("[spec %d] expected output to contain fault address and reason %q; got:\n%s", specIndex, spec.expReason, got)
				}
			}()

			m.cr2 = uint32(spec.virtAddr)
			m.paging.HandleInterrupt(&gate.Registers{Info: spec.regsInfo})
		})
	}
}

func TestPageFaultWithoutActiveTable(t *testing.T) {
	var (
		m   = newTestMachine(t, 16)
		buf bytes.Buffer
	)

	kfmt.SetOutputSink(&buf)

	defer func() {
		if err := recover(); err != errNoActiveTable {
			t.Fatalf("expected panic with errNoActiveTable; got %v", err)
		}
	}()

	m.fault(16 * mm.Mb)
}

func TestPageFaultInsideRegion(t *testing.T) {
	var (
		m  = newTestMachine(t, 16)
		pt PageTable
	)

	m.boot(&pt)
	pt.RegisterRegion(AddressRange{Base: 4 * mm.Mb, Size: 4 * mm.Mb})
	pt.RegisterRegion(AddressRange{Base: 512 * mm.Mb, Size: 4 * mm.Mb})

	for _, virtAddr := range []uintptr{5 * mm.Mb, 513 * mm.Mb} {
		m.fault(virtAddr)
		if _, err := pt.Translate(virtAddr); err != nil {
			t.Fatalf("expected 0x%x to be mapped after the fault; got %v", virtAddr, err)
		}
	}
}
