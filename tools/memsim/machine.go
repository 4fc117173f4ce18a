//go:build !386

package main

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/viney-shih/go-lock"
	"go.uber.org/zap"

	"github.com/tshree19/CSCE611-OS-FALL2022/kernel"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/cpu"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/gate"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/kfmt"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/kmain"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm/vmm"
)

const (
	// page fault error code bits
	faultCodeWrite = 1 << 1

	entryPresent = uint32(vmm.FlagPresent)
	entryFrame   = uint32(0xFFFFF000)
)

var (
	errNestedFault   = errors.New("page fault raised while servicing a page fault")
	errBusError      = errors.New("physical address outside of RAM")
	errFaultRepeated = errors.New("page fault handler did not map the faulting page")
)

// HaltError is returned when the kernel panics while servicing a fault.
type HaltError struct {
	Addr  uintptr
	Cause *kernel.Error
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("kernel halted while servicing fault at 0x%08x: %s", e.Addr, e.Cause.Error())
}

// Unwrap returns the kernel error that caused the halt.
func (e *HaltError) Unwrap() error { return e.Cause }

// Machine emulates a single-core 32-bit x86 machine with kmain.PhysMemSize
// bytes of RAM. Kernel memory accesses are routed through mm.Ptr to a
// software MMU that walks the page tables stored in RAM.
//
// The kernel relies on the hosted cpu register file and on package-level
// hooks, so only one Machine may be booted at a time.
type Machine struct {
	log *zap.Logger
	ram []byte
	mem kmain.Memory

	// irq guards page fault delivery. A fault raised while the line is
	// held is a nested fault.
	irq *lock.CASMutex

	console *consoleWriter
	faults  uint64
}

// NewMachine allocates the machine RAM.
func NewMachine(log *zap.Logger) *Machine {
	return &Machine{
		log: log,
		ram: make([]byte, kmain.PhysMemSize),
		irq: lock.NewCASMutex(),
	}
}

// Boot resets the CPU, attaches the kernel console to the machine logger and
// brings up the kernel memory subsystems.
func (m *Machine) Boot() error {
	cpu.Reset()
	mm.SetPointerResolver(m.resolve)
	m.console = newConsoleWriter(m.log.Named("kernel"))
	kfmt.SetOutputSink(m.console)

	if err := kmain.InitMemory(&m.mem); err != nil {
		m.Shutdown()
		return err
	}

	m.log.Info("machine booted",
		zap.Int("ramMiB", len(m.ram)>>20),
		zap.Uint32("kernelFramesFree", m.mem.KernelPool.FreeFrames()),
		zap.Uint32("processFramesFree", m.mem.ProcessPool.FreeFrames()),
		zap.Uintptr("pageDirectory", m.mem.PageTable.DirectoryFrame().Address()),
	)
	return nil
}

// Shutdown detaches the machine from the kernel hooks.
func (m *Machine) Shutdown() {
	if m.console != nil {
		m.console.Flush()
	}
	mm.SetPointerResolver(nil)
	kfmt.SetOutputSink(nil)
	cpu.Reset()
}

// Memory returns the kernel memory subsystems running on the machine.
func (m *Machine) Memory() *kmain.Memory { return &m.mem }

// Faults returns the number of page faults delivered to the kernel.
func (m *Machine) Faults() uint64 { return m.faults }

// Write stores value at virtAddr, delivering a page fault to the kernel if
// the address is not mapped.
func (m *Machine) Write(virtAddr uintptr, value byte) error {
	physAddr, err := m.access(virtAddr, true)
	if err != nil {
		return err
	}

	*(*byte)(m.physPtr(physAddr)) = value
	return nil
}

// Read loads the byte at virtAddr, delivering a page fault to the kernel if
// the address is not mapped.
func (m *Machine) Read(virtAddr uintptr) (byte, error) {
	physAddr, err := m.access(virtAddr, false)
	if err != nil {
		return 0, err
	}

	return *(*byte)(m.physPtr(physAddr)), nil
}

// access translates virtAddr. An unmapped address raises a page fault and
// the access is retried once.
func (m *Machine) access(virtAddr uintptr, write bool) (uintptr, error) {
	if physAddr, ok := m.translate(virtAddr); ok {
		return physAddr, nil
	}

	if err := m.raisePageFault(virtAddr, write); err != nil {
		return 0, err
	}

	physAddr, ok := m.translate(virtAddr)
	if !ok {
		return 0, fmt.Errorf("%w: 0x%08x", errFaultRepeated, virtAddr)
	}

	return physAddr, nil
}

// raisePageFault loads CR2 and dispatches a page fault through the kernel's
// interrupt dispatcher. Kernel panics are returned as a *HaltError.
func (m *Machine) raisePageFault(virtAddr uintptr, write bool) (err error) {
	if !m.irq.TryLock() {
		return fmt.Errorf("%w: 0x%08x", errNestedFault, virtAddr)
	}
	defer m.irq.Unlock()

	defer func() {
		switch r := recover().(type) {
		case nil:
		case *kernel.Error:
			err = &HaltError{Addr: virtAddr, Cause: r}
		case error:
			err = r
		default:
			panic(r)
		}
	}()

	regs := gate.Registers{}
	if write {
		regs.Info |= faultCodeWrite
	}

	m.faults++
	cpu.SetCR2(uint32(virtAddr))
	m.log.Debug("page fault", zap.Uintptr("addr", virtAddr), zap.Bool("write", write))
	m.mem.Interrupts.Dispatch(gate.PageFaultException, &regs)
	return nil
}

// translate walks the active page tables like the MMU does. With paging
// disabled addresses are physical.
func (m *Machine) translate(virtAddr uintptr) (uintptr, bool) {
	if cpu.ReadCR0()&cpu.CR0PagingBit == 0 {
		return virtAddr, true
	}

	pde := m.physEntry(cpu.ActivePDT() + uintptr(vmm.DirIndexOf(virtAddr))<<2)
	if pde&entryPresent == 0 {
		return 0, false
	}

	pte := m.physEntry(uintptr(pde&entryFrame) + uintptr(vmm.TableIndexOf(virtAddr))<<2)
	if pte&entryPresent == 0 {
		return 0, false
	}

	return uintptr(pte&entryFrame) + virtAddr&(mm.PageSize-1), true
}

// physEntry reads a 32-bit page table entry from physical memory.
func (m *Machine) physEntry(physAddr uintptr) uint32 {
	return *(*uint32)(m.physPtr(physAddr))
}

func (m *Machine) physPtr(physAddr uintptr) unsafe.Pointer {
	if physAddr >= uintptr(len(m.ram)) {
		panic(fmt.Errorf("%w: 0x%08x", errBusError, physAddr))
	}

	return unsafe.Pointer(&m.ram[physAddr])
}

// resolve is installed as the kernel pointer resolver. Kernel accesses to
// unmapped addresses fault like any other access.
func (m *Machine) resolve(addr uintptr) unsafe.Pointer {
	physAddr, err := m.access(addr, true)
	if err != nil {
		panic(err)
	}

	return m.physPtr(physAddr)
}
