// Package gate routes processor exceptions to the kernel subsystems that
// service them. The low-level IDT entry stubs save a Registers snapshot and
// call Dispatcher.Dispatch with the vector number.
package gate

import (
	"io"

	"github.com/tshree19/CSCE611-OS-FALL2022/kernel"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/kfmt"
)

// Registers contains a snapshot of the 32-bit register values when an
// exception or interrupt occurs.
type Registers struct {
	EAX uint32
	EBX uint32
	ECX uint32
	EDX uint32
	ESI uint32
	EDI uint32
	EBP uint32

	// Info contains the error code pushed by the CPU for exceptions that
	// provide one (e.g. page faults) or the IRQ number for HW interrupts.
	Info uint32

	// The return frame used by IRET
	EIP    uint32
	CS     uint32
	EFlags uint32
	ESP    uint32
	SS     uint32
}

// DumpTo outputs the register contents to w.
func (r *Registers) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "EAX = %8x EBX = %8x\n", r.EAX, r.EBX)
	kfmt.Fprintf(w, "ECX = %8x EDX = %8x\n", r.ECX, r.EDX)
	kfmt.Fprintf(w, "ESI = %8x EDI = %8x\n", r.ESI, r.EDI)
	kfmt.Fprintf(w, "EBP = %8x\n", r.EBP)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "EIP = %8x CS  = %8x\n", r.EIP, r.CS)
	kfmt.Fprintf(w, "ESP = %8x SS  = %8x\n", r.ESP, r.SS)
	kfmt.Fprintf(w, "EFL = %8x\n", r.EFlags)
}

// InterruptNumber describes an x86 interrupt/exception/trap slot.
type InterruptNumber uint8

const (
	// DivideByZero occurs when dividing any number by 0 using the DIV or
	// IDIV instruction.
	DivideByZero = InterruptNumber(0)

	// InvalidOpcode occurs when the CPU attempts to execute an invalid or
	// undefined instruction opcode.
	InvalidOpcode = InterruptNumber(6)

	// DoubleFault occurs when an exception is raised while the CPU is
	// trying to deliver a previous exception.
	DoubleFault = InterruptNumber(8)

	// GPFException occurs when a general protection fault occurs.
	GPFException = InterruptNumber(13)

	// PageFaultException occurs when a page directory or page table entry
	// is not present or when a privilege and/or RW protection check fails.
	// The faulting linear address is stored in CR2.
	PageFaultException = InterruptNumber(14)
)

// Handler is implemented by subsystems that service an interrupt vector.
type Handler interface {
	HandleInterrupt(regs *Registers)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(regs *Registers)

// HandleInterrupt calls fn(regs).
func (fn HandlerFunc) HandleInterrupt(regs *Registers) { fn(regs) }

var errUnhandledInterrupt = &kernel.Error{Module: "gate", Message: "no handler installed for interrupt"}

// Dispatcher maps interrupt vectors to the handlers that service them.
type Dispatcher struct {
	handlers [256]Handler
}

// HandleInterrupt installs h as the handler for intNumber replacing any
// previously installed handler. Passing a nil handler uninstalls it.
func (d *Dispatcher) HandleInterrupt(intNumber InterruptNumber, h Handler) {
	d.handlers[intNumber] = h
}

// Handler returns the handler installed for intNumber or nil.
func (d *Dispatcher) Handler(intNumber InterruptNumber) Handler {
	return d.handlers[intNumber]
}

// Dispatch routes an incoming interrupt to its installed handler. Exceptions
// without a handler cannot be recovered from and cause a kernel panic.
func (d *Dispatcher) Dispatch(intNumber InterruptNumber, regs *Registers) {
	if h := d.handlers[intNumber]; h != nil {
		h.HandleInterrupt(regs)
		return
	}

	kfmt.Printf("\nUnhandled interrupt %d (info: 0x%x)\nRegisters:\n", uint8(intNumber), regs.Info)
	regs.DumpTo(kfmt.GetOutputSink())
	panic(errUnhandledInterrupt)
}
