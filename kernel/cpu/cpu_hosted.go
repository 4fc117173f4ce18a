//go:build !386

package cpu

// On hosted builds (tests and the tools/ simulators) the control registers are
// backed by a software register file so the memory core can run unmodified
// on top of a simulated MMU.

var (
	regCR0       = CR0ProtectedModeBit
	regCR2       uint32
	regCR3       uintptr
	interruptsOn bool
	halted       bool

	// tlbFlushes counts CR3 reloads.
	tlbFlushes uint64
)

// DisableInterrupts disables interrupt handling.
func DisableInterrupts() { interruptsOn = false }

// InterruptsEnabled reports the state of the simulated interrupt flag.
func InterruptsEnabled() bool { return interruptsOn }

// SetInterruptFlag sets the simulated interrupt flag, e.g. to model a loader
// that hands over control with interrupts enabled.
func SetInterruptFlag(on bool) { interruptsOn = on }

// Halt stops instruction execution. A halted hosted CPU never returns to its
// caller; the halt surfaces as a panic carrying ErrHalted.
func Halt() {
	halted = true
	panic(ErrHalted)
}

// Halted reports whether Halt has been called since the last Reset.
func Halted() bool { return halted }

// SwitchPDT sets the root page directory to point to the specified physical
// address and flushes the TLB.
func SwitchPDT(pdtPhysAddr uintptr) {
	regCR3 = pdtPhysAddr
	tlbFlushes++
}

// ActivePDT returns the physical address of the currently active page
// directory.
func ActivePDT() uintptr { return regCR3 }

// ReadCR0 returns the value stored in the CR0 register.
func ReadCR0() uint32 { return regCR0 }

// WriteCR0 stores val in the CR0 register.
func WriteCR0(val uint32) { regCR0 = val }

// ReadCR2 returns the value stored in the CR2 register.
func ReadCR2() uint32 { return regCR2 }

// SetCR2 loads the faulting linear address into CR2. The simulated MMU calls
// it before raising a page fault.
func SetCR2(addr uint32) { regCR2 = addr }

// TLBFlushes returns the number of TLB flushes requested so far.
func TLBFlushes() uint64 { return tlbFlushes }

// Reset returns the software register file to its power-on state.
func Reset() {
	regCR0, regCR2, regCR3 = CR0ProtectedModeBit, 0, 0
	interruptsOn, halted = false, false
	tlbFlushes = 0
}

// haltError is the value carried by the panic raised by a hosted Halt.
type haltError struct{}

func (haltError) Error() string { return "cpu halted" }

// ErrHalted is the panic value raised when a hosted CPU halts.
var ErrHalted error = haltError{}
