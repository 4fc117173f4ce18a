//go:build !386

package cpu

import "testing"

func TestHostedControlRegisters(t *testing.T) {
	defer Reset()
	Reset()

	if got := ReadCR0(); got != CR0ProtectedModeBit {
		t.Fatalf("expected CR0 to be 0x%x after reset; got 0x%x", CR0ProtectedModeBit, got)
	}

	WriteCR0(ReadCR0() | CR0PagingBit)
	if ReadCR0()&CR0PagingBit == 0 {
		t.Fatal("expected CR0.PG to be set")
	}

	SwitchPDT(0x2000)
	if got := ActivePDT(); got != 0x2000 {
		t.Fatalf("expected active PDT to be 0x2000; got 0x%x", got)
	}

	SwitchPDT(0x2000)
	if exp, got := uint64(2), TLBFlushes(); got != exp {
		t.Fatalf("expected %d TLB flushes; got %d", exp, got)
	}

	SetCR2(0xbadf000)
	if got := ReadCR2(); got != 0xbadf000 {
		t.Fatalf("expected CR2 to be 0xbadf000; got 0x%x", got)
	}
}

func TestHostedInterruptFlag(t *testing.T) {
	defer Reset()
	Reset()

	SetInterruptFlag(true)
	if !InterruptsEnabled() {
		t.Fatal("expected interrupts to be enabled")
	}

	DisableInterrupts()
	if InterruptsEnabled() {
		t.Fatal("expected interrupts to be disabled")
	}
}

func TestHostedHalt(t *testing.T) {
	defer Reset()
	Reset()

	defer func() {
		if err := recover(); err != ErrHalted {
			t.Fatalf("expected Halt to panic with ErrHalted; got %v", err)
		}

		if !Halted() {
			t.Fatal("expected Halted to report true")
		}
	}()

	Halt()
	t.Fatal("expected Halt not to return")
}
