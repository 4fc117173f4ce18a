package vmm

// Region describes a range of virtual addresses that the code running in an
// address space is allowed to touch. Page faults outside every registered
// region are treated as fatal.
type Region interface {
	Contains(virtAddr uintptr) bool
}

// AddressRange is a Region spanning Size bytes starting at Base.
type AddressRange struct {
	Base uintptr
	Size uintptr
}

// Contains returns true if virtAddr lies inside the range.
func (r AddressRange) Contains(virtAddr uintptr) bool {
	return virtAddr >= r.Base && virtAddr-r.Base < r.Size
}
