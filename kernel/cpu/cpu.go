// Package cpu exposes the processor primitives used by the memory core:
// control register access (CR0, CR2, CR3), TLB maintenance, interrupt
// masking and halting.
package cpu

const (
	// CR0PagingBit is the CR0.PG bit. Setting it turns on address
	// translation through the page directory loaded in CR3.
	CR0PagingBit = uint32(1 << 31)

	// CR0ProtectedModeBit is the CR0.PE bit. The loader enables protected
	// mode before handing control to the kernel.
	CR0ProtectedModeBit = uint32(1 << 0)
)
