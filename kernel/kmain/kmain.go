// Package kmain contains the kernel entrypoint and brings up the memory
// subsystems.
package kmain

import (
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/cpu"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/gate"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/kfmt"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm/pmm"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm/vmm"
)

// Physical memory layout. The first 2M hold the kernel image; the kernel pool
// manages the next 2M and the process pool everything from 4M up to 32M. The
// machine has a 1M memory hole at 15M that must never be handed out.
const (
	KernelPoolStart  = mm.Frame((2 * mm.Mb) >> mm.PageShift)
	KernelPoolFrames = uint32((2 * mm.Mb) >> mm.PageShift)

	ProcessPoolStart  = mm.Frame((4 * mm.Mb) >> mm.PageShift)
	ProcessPoolFrames = uint32((28 * mm.Mb) >> mm.PageShift)

	MemHoleStart = 15 * mm.Mb
	MemHoleSize  = 1 * mm.Mb

	// SharedSize is the identity mapped region shared by all address
	// spaces.
	SharedSize = 4 * mm.Mb

	// PhysMemSize is the amount of physical memory covered by the layout.
	PhysMemSize = 32 * mm.Mb
)

var (
	// The Go allocator is not available this early so all memory
	// subsystem state is statically allocated.
	mem Memory

	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
)

// Memory holds the state of the memory subsystems. A Memory value must not be
// copied once InitMemory has been called on it.
type Memory struct {
	Registry    pmm.Registry
	KernelPool  pmm.ContFramePool
	ProcessPool pmm.ContFramePool
	Paging      vmm.Paging
	PageTable   vmm.PageTable

	// Interrupts routes exceptions to their handlers; the page fault
	// handler is installed by InitMemory.
	Interrupts gate.Dispatcher
}

// InitMemory sets up the frame pools, builds and loads the kernel page table,
// installs the page fault handler and enables paging.
//
// Pool and page table updates are not reentrant. Interrupts are disabled
// before any of them run and stay disabled; the page fault handler is entered
// through an interrupt gate which keeps them masked.
func InitMemory(m *Memory) *kernel.Error {
	cpu.DisableInterrupts()

	if err := m.KernelPool.Init(&m.Registry, KernelPoolStart, KernelPoolFrames, 0); err != nil {
		return err
	}

	// The process pool bitmap is stored in frames borrowed from the kernel pool
	infoFrame, err := m.KernelPool.AllocFrames(pmm.InfoFramesNeeded(ProcessPoolFrames))
	if err != nil {
		return err
	}

	if err = m.ProcessPool.Init(&m.Registry, ProcessPoolStart, ProcessPoolFrames, infoFrame); err != nil {
		return err
	}

	if err = m.ProcessPool.MarkInaccessible(mm.FrameFromAddress(MemHoleStart), uint32(MemHoleSize>>mm.PageShift)); err != nil {
		return err
	}

	if err = m.Paging.Init(&m.Registry, &m.KernelPool, &m.ProcessPool, SharedSize); err != nil {
		return err
	}

	m.Paging.InstallFaultHandler(&m.Interrupts)

	if err = m.Paging.NewPageTable(&m.PageTable); err != nil {
		return err
	}

	m.PageTable.Load()
	m.Paging.EnableTranslation()
	return nil
}

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. This function is invoked by the rt0 assembly code after
// setting up the GDT, the IDT stubs and a minimal g0 struct that allows Go code
// to run on the 4K stack allocated by the assembly code.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain() {
	if err := InitMemory(&mem); err != nil {
		panic(err)
	}

	kfmt.Printf("[kmain] memory subsystems initialized: %d kernel frames and %d process frames free\n",
		mem.KernelPool.FreeFrames(), mem.ProcessPool.FreeFrames())

	// Use kfmt.Panic instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	kfmt.Panic(errKmainReturned)
}

// Dispatch is called by the IDT entry stubs with the vector number and the
// saved register state.
func Dispatch(intNumber gate.InterruptNumber, regs *gate.Registers) {
	mem.Interrupts.Dispatch(intNumber, regs)
}
