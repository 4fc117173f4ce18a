package vmm

import (
	"testing"

	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm/pmm"
)

func TestFreePage(t *testing.T) {
	var (
		m  = newTestMachine(t, 64)
		pt PageTable
	)

	m.boot(&pt)

	const virtAddr = uintptr(0x00c00000)
	page := mm.PageFromAddress(virtAddr)

	m.fault(virtAddr)
	physAddr, err := pt.Translate(virtAddr)
	if err != nil {
		t.Fatal(err)
	}

	var (
		frame      = mm.FrameFromAddress(physAddr)
		freeBefore = m.processPool.FreeFrames()
		loads      = m.cr3Loads
	)

	if err = pt.FreePage(page); err != nil {
		t.Fatal(err)
	}

	if got := m.processPool.FreeFrames() - freeBefore; got != 1 {
		t.Fatalf("expected FreePage to release 1 frame; released %d", got)
	}

	if state, _ := m.processPool.State(frame); state != pmm.Free {
		t.Fatalf("expected frame %d to be free; got %s", frame, state)
	}

	tableFrame := m.dirEntry(&pt, DirIndexOf(virtAddr)).Frame()
	if pte := m.physEntry(tableFrame.Address() + uintptr(TableIndexOf(virtAddr))<<entryShift); pte != pageTableEntry(FlagRW) {
		t.Fatalf("expected freed entry to be writable and not present; got 0x%x", pte)
	}

	if _, err = pt.Translate(virtAddr); err != ErrInvalidMapping {
		t.Fatalf("expected ErrInvalidMapping; got %v", err)
	}

	if m.cr3Loads != loads+1 || m.cr3 != pt.DirectoryFrame().Address() {
		t.Fatal("expected FreePage to reload CR3")
	}

	t.Run("double free is a no-op", func(t *testing.T) {
		freeBefore := m.processPool.FreeFrames()
		loads := m.cr3Loads

		if err := pt.FreePage(page); err != nil {
			t.Fatal(err)
		}

		if m.processPool.FreeFrames() != freeBefore {
			t.Fatal("expected no frame to be released twice")
		}

		if m.cr3Loads != loads+1 {
			t.Fatal("expected FreePage to reload CR3")
		}
	})

	t.Run("refault reuses the page table", func(t *testing.T) {
		freeBefore := m.processPool.FreeFrames()

		m.fault(virtAddr)

		if got := freeBefore - m.processPool.FreeFrames(); got != 1 {
			t.Fatalf("expected refault to allocate a single frame; allocated %d", got)
		}

		if _, err := pt.Translate(virtAddr); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("page without a table", func(t *testing.T) {
		freeBefore := m.processPool.FreeFrames()

		if err := pt.FreePage(mm.PageFromAddress(256 * mm.Mb)); err != nil {
			t.Fatal(err)
		}

		if m.processPool.FreeFrames() != freeBefore {
			t.Fatal("expected no frame to be released")
		}
	})
}

func TestFreePageBeforeTranslation(t *testing.T) {
	var (
		m  = newTestMachine(t, 16)
		pt PageTable
	)

	if err := m.paging.NewPageTable(&pt); err != nil {
		t.Fatal(err)
	}

	// Shared pages are identity mapped and are not owned by any pool
	if err := pt.FreePage(mm.PageFromAddress(0)); err == nil {
		t.Fatal("expected releasing a frame outside every pool to fail")
	}

	if _, err := pt.Translate(0); err != nil {
		t.Fatalf("expected failed release to leave the mapping intact; got %v", err)
	}
}
