//go:build !386

package main

import (
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set"

	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm/pmm"
)

var (
	errFreeCountMismatch = errors.New("pool free counter does not match its bitmap")
	errSharedFrame       = errors.New("frame backs more than one page")
	errForeignFrame      = errors.New("page is backed by a frame outside the process pool")
	errLostMapping       = errors.New("resident page is no longer mapped")
	errStaleMapping      = errors.New("released page is still mapped")
	errCorruptPage       = errors.New("page contents do not match the last write")
)

// Checker tracks the pages the workload expects to be resident and verifies
// the kernel memory invariants against the machine state.
type Checker struct {
	machine *Machine

	// resident holds the pages currently backed by a frame.
	resident mapset.Set

	// released holds pages freed since they were last touched.
	released mapset.Set
}

// NewChecker creates a checker for m.
func NewChecker(m *Machine) *Checker {
	return &Checker{
		machine:  m,
		resident: mapset.NewThreadUnsafeSet(),
		released: mapset.NewThreadUnsafeSet(),
	}
}

// pageTag is the value the workload writes at the start of page.
func pageTag(page mm.Page) byte {
	return byte(page) ^ byte(page>>8) | 1
}

// Touched records that page is resident.
func (c *Checker) Touched(page mm.Page) {
	c.resident.Add(page)
	c.released.Remove(page)
}

// Freed records that page has been released.
func (c *Checker) Freed(page mm.Page) {
	c.resident.Remove(page)
	c.released.Add(page)
}

// Resident returns the number of resident pages.
func (c *Checker) Resident() int { return c.resident.Cardinality() }

// Check verifies that:
//
//   - every pool's free counter equals the number of Free frames in its bitmap
//   - every resident page is mapped to a distinct process pool frame that
//     heads a single frame run and still holds the last value written to it
//   - released pages are not mapped.
func (c *Checker) Check() error {
	mem := c.machine.Memory()

	for i := 0; i < mem.Registry.Len(); i++ {
		pool := mem.Registry.Pool(i)
		if exp, got := pool.Count(pmm.Free), pool.FreeFrames(); exp != got {
			return fmt.Errorf("%w: pool at frame %d has %d free frames but counter is %d",
				errFreeCountMismatch, pool.BaseFrame(), exp, got)
		}
	}

	var (
		err    error
		frames = mapset.NewThreadUnsafeSet()
	)

	c.resident.Each(func(item interface{}) bool {
		err = c.checkResident(&mem.ProcessPool, item.(mm.Page), frames)
		return err != nil
	})
	if err != nil {
		return err
	}

	c.released.Each(func(item interface{}) bool {
		page := item.(mm.Page)
		if _, tErr := mem.PageTable.Translate(page.Address()); tErr == nil {
			err = fmt.Errorf("%w: page 0x%08x", errStaleMapping, page.Address())
		}
		return err != nil
	})

	return err
}

func (c *Checker) checkResident(pool *pmm.ContFramePool, page mm.Page, frames mapset.Set) error {
	mem := c.machine.Memory()

	physAddr, kErr := mem.PageTable.Translate(page.Address())
	if kErr != nil {
		return fmt.Errorf("%w: page 0x%08x: %s", errLostMapping, page.Address(), kErr.Error())
	}

	frame := mm.FrameFromAddress(physAddr)
	if !frames.Add(frame) {
		return fmt.Errorf("%w: frame %d", errSharedFrame, frame)
	}

	if state, sErr := pool.State(frame); sErr != nil || state != pmm.HeadOfSequence {
		return fmt.Errorf("%w: page 0x%08x frame %d", errForeignFrame, page.Address(), frame)
	}

	if got := *(*byte)(c.machine.physPtr(physAddr)); got != pageTag(page) {
		return fmt.Errorf("%w: page 0x%08x holds 0x%02x, expected 0x%02x", errCorruptPage, page.Address(), got, pageTag(page))
	}

	return nil
}
