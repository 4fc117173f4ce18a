//go:build !386

package main

import (
	"math/rand"

	"github.com/pingcap/go-ycsb/pkg/generator"

	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm/vmm"
)

// OpKind describes a workload operation.
type OpKind uint8

const (
	// OpTouch writes to a page, faulting it in if needed.
	OpTouch OpKind = iota

	// OpFree releases a page through the kernel page table.
	OpFree
)

func (k OpKind) String() string {
	if k == OpFree {
		return "free"
	}
	return "touch"
}

// Op is a single workload operation.
type Op struct {
	Kind OpKind
	Page mm.Page
}

// regionPicker selects pages within a region with a zipfian distribution so
// that a few pages are hot and most are touched rarely.
type regionPicker struct {
	firstPage mm.Page
	zipf      *generator.Zipfian
}

// Workload generates a reproducible sequence of operations over a set of
// regions.
type Workload struct {
	rng       *rand.Rand
	regions   []regionPicker
	freeRatio float64
}

// NewWorkload creates a workload over ranges.
func NewWorkload(cfg *Config, ranges []vmm.AddressRange) *Workload {
	w := &Workload{
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		freeRatio: cfg.FreeRatio,
	}

	for _, r := range ranges {
		pages := int64(r.Size >> mm.PageShift)
		w.regions = append(w.regions, regionPicker{
			firstPage: mm.PageFromAddress(r.Base),
			zipf:      generator.NewZipfianWithRange(0, pages-1, cfg.ZipfConstant),
		})
	}

	return w
}

// Next returns the next operation.
func (w *Workload) Next() Op {
	region := w.regions[w.rng.Intn(len(w.regions))]

	op := Op{
		Kind: OpTouch,
		Page: region.firstPage + mm.Page(region.zipf.Next(w.rng)),
	}

	if w.rng.Float64() < w.freeRatio {
		op.Kind = OpFree
	}

	return op
}
