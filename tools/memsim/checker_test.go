//go:build !386

package main

import (
	"errors"
	"testing"

	"github.com/magiconair/properties/assert"

	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm/vmm"
)

func TestCheckerAcceptsConsistentState(t *testing.T) {
	region := vmm.AddressRange{Base: 8 * mm.Mb, Size: 4 * mm.Mb}
	m, _ := bootTestMachine(t, region)
	c := NewChecker(m)

	for i := uintptr(0); i < 8; i++ {
		page := mm.PageFromAddress(region.Base + i*mm.PageSize)
		assert.Equal(t, m.Write(page.Address(), pageTag(page)), nil)
		c.Touched(page)
	}

	page := mm.PageFromAddress(region.Base)
	assert.Equal(t, m.Memory().PageTable.FreePage(page) == nil, true)
	c.Freed(page)

	assert.Equal(t, c.Resident(), 7)
	assert.Equal(t, c.Check(), nil)
}

func TestCheckerDetectsViolations(t *testing.T) {
	region := vmm.AddressRange{Base: 8 * mm.Mb, Size: 4 * mm.Mb}

	t.Run("corrupt page", func(t *testing.T) {
		m, _ := bootTestMachine(t, region)
		c := NewChecker(m)

		page := mm.PageFromAddress(region.Base)
		assert.Equal(t, m.Write(page.Address(), pageTag(page)+1), nil)
		c.Touched(page)

		assert.Equal(t, errors.Is(c.Check(), errCorruptPage), true)
	})

	t.Run("lost mapping", func(t *testing.T) {
		m, _ := bootTestMachine(t, region)
		c := NewChecker(m)

		c.Touched(mm.PageFromAddress(region.Base))
		assert.Equal(t, errors.Is(c.Check(), errLostMapping), true)
	})

	t.Run("stale mapping", func(t *testing.T) {
		m, _ := bootTestMachine(t, region)
		c := NewChecker(m)

		page := mm.PageFromAddress(region.Base)
		assert.Equal(t, m.Write(page.Address(), pageTag(page)), nil)
		c.Freed(page)

		assert.Equal(t, errors.Is(c.Check(), errStaleMapping), true)
	})

	t.Run("frame outside the process pool", func(t *testing.T) {
		m, _ := bootTestMachine(t)
		c := NewChecker(m)

		// pages in the shared region are identity mapped and none of
		// them belongs to the process pool
		page := mm.PageFromAddress(mm.PageSize)
		assert.Equal(t, m.Write(page.Address(), pageTag(page)), nil)
		c.Touched(page)

		assert.Equal(t, errors.Is(c.Check(), errForeignFrame), true)
	})
}
