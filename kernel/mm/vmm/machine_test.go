package vmm

import (
	"testing"
	"unsafe"

	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/cpu"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/gate"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/kfmt"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm/pmm"
)

// testMachine backs physical memory with lazily allocated pages and emulates
// the MMU for the pointer resolver once CR0.PG is set. Control registers are
// wired to the package's cpu hooks.
type testMachine struct {
	t      *testing.T
	frames map[mm.Frame]*[mm.PageSize]byte

	cr0      uint32
	cr2      uint32
	cr3      uintptr
	cr3Loads int

	reg         pmm.Registry
	kernelPool  pmm.ContFramePool
	processPool pmm.ContFramePool
	paging      Paging
}

// newTestMachine sets up a kernel pool (frames 512-1023) and a process pool
// of processFrames frames starting at frame 1024 and initializes paging with
// a 4M shared region.
func newTestMachine(t *testing.T, processFrames uint32) *testMachine {
	m := &testMachine{
		t:      t,
		frames: make(map[mm.Frame]*[mm.PageSize]byte),
		cr0:    cpu.CR0ProtectedModeBit,
	}

	mm.SetPointerResolver(m.resolve)
	readCR0Fn = func() uint32 { return m.cr0 }
	writeCR0Fn = func(val uint32) { m.cr0 = val }
	readCR2Fn = func() uint32 { return m.cr2 }
	switchPDTFn = func(addr uintptr) {
		m.cr3 = addr
		m.cr3Loads++
	}

	t.Cleanup(func() {
		mm.SetPointerResolver(nil)
		readCR0Fn = cpu.ReadCR0
		writeCR0Fn = cpu.WriteCR0
		readCR2Fn = cpu.ReadCR2
		switchPDTFn = cpu.SwitchPDT
		kfmt.SetOutputSink(nil)
	})

	if err := m.kernelPool.Init(&m.reg, 512, 512, 0); err != nil {
		t.Fatal(err)
	}

	infoFrame, err := m.kernelPool.AllocFrames(pmm.InfoFramesNeeded(processFrames))
	if err != nil {
		t.Fatal(err)
	}

	if err = m.processPool.Init(&m.reg, 1024, processFrames, infoFrame); err != nil {
		t.Fatal(err)
	}

	if err = m.paging.Init(&m.reg, &m.kernelPool, &m.processPool, 4*mm.Mb); err != nil {
		t.Fatal(err)
	}

	return m
}

// phys returns a pointer to physical address addr.
func (m *testMachine) phys(addr uintptr) unsafe.Pointer {
	frame := mm.FrameFromAddress(addr)
	page, exists := m.frames[frame]
	if !exists {
		page = new([mm.PageSize]byte)
		m.frames[frame] = page
	}

	return unsafe.Pointer(&page[addr&(mm.PageSize-1)])
}

// fill overwrites the contents of a physical frame with junk.
func (m *testMachine) fill(frame mm.Frame, junk byte) {
	page := (*[mm.PageSize]byte)(m.phys(frame.Address()))
	for i := range page {
		page[i] = junk
	}
}

// resolve translates addr like the MMU would and returns a pointer to the
// backing memory.
func (m *testMachine) resolve(addr uintptr) unsafe.Pointer {
	if m.cr0&cpu.CR0PagingBit == 0 {
		return m.phys(addr)
	}

	pde := m.physEntry(m.cr3 + uintptr(DirIndexOf(addr))<<entryShift)
	if !pde.HasFlags(FlagPresent) {
		m.t.Fatalf("access to address 0x%x with a non-present directory entry", addr)
	}

	pte := m.physEntry(pde.Frame().Address() + uintptr(TableIndexOf(addr))<<entryShift)
	if !pte.HasFlags(FlagPresent) {
		m.t.Fatalf("access to unmapped address 0x%x", addr)
	}

	return m.phys(pte.Frame().Address() + addr&(mm.PageSize-1))
}

// physEntry returns the entry stored at physical address addr.
func (m *testMachine) physEntry(addr uintptr) pageTableEntry {
	return *(*pageTableEntry)(m.phys(addr))
}

// dirEntry returns directory entry index of pt read through its physical address.
func (m *testMachine) dirEntry(pt *PageTable, index DirIndex) pageTableEntry {
	return m.physEntry(pt.DirectoryFrame().Address() + uintptr(index)<<entryShift)
}

// boot constructs pt, loads it and enables translation.
func (m *testMachine) boot(pt *PageTable) {
	if err := m.paging.NewPageTable(pt); err != nil {
		m.t.Fatal(err)
	}
	pt.Load()
	m.paging.EnableTranslation()
}

// fault raises a page fault for addr.
func (m *testMachine) fault(addr uintptr) {
	m.cr2 = uint32(addr)
	m.paging.HandleInterrupt(&gate.Registers{Info: 2})
}
