//go:build !386

package main

import (
	"testing"

	"github.com/magiconair/properties/assert"

	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm/vmm"
)

func TestWorkloadStaysInsideRegions(t *testing.T) {
	cfg, err := ParseConfig([]byte("workload.regions = 4:1;64:2\nworkload.freeRatio = 0.3"))
	assert.Equal(t, err, nil)

	ranges, err := cfg.AddressRanges()
	assert.Equal(t, err, nil)

	var (
		w      = NewWorkload(cfg, ranges)
		frees  int
		counts = make(map[mm.Page]int)
	)

	for i := 0; i < 5000; i++ {
		op := w.Next()

		inside := false
		for _, r := range ranges {
			inside = inside || r.Contains(op.Page.Address())
		}
		assert.Equal(t, inside, true, "operation outside every region")

		if op.Kind == OpFree {
			frees++
		}
		counts[op.Page]++
	}

	// about 30% of the operations release pages
	assert.Equal(t, frees > 1000 && frees < 2000, true)

	// page selection is skewed towards the start of each region
	hot := counts[mm.PageFromAddress(ranges[0].Base)] + counts[mm.PageFromAddress(ranges[1].Base)]
	assert.Equal(t, hot > 5000/(256+512)*2, true)
}

func TestWorkloadIsReproducible(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Equal(t, err, nil)

	ranges := []vmm.AddressRange{{Base: 8 * mm.Mb, Size: 4 * mm.Mb}}
	a, b := NewWorkload(cfg, ranges), NewWorkload(cfg, ranges)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestOpKindString(t *testing.T) {
	assert.Equal(t, OpTouch.String(), "touch")
	assert.Equal(t, OpFree.String(), "free")
}
