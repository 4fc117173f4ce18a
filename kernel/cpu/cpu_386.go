//go:build 386

package cpu

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// Halt stops instruction execution.
func Halt()

// SwitchPDT sets the root page directory to point to the specified physical
// address. Writing CR3 also flushes every non-global TLB entry.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active page
// directory.
func ActivePDT() uintptr

// ReadCR0 returns the value stored in the CR0 register.
func ReadCR0() uint32

// WriteCR0 stores val in the CR0 register.
func WriteCR0(val uint32)

// ReadCR2 returns the value stored in the CR2 register (the linear address
// that caused the last page fault).
func ReadCR2() uint32
