//go:build !386

package main

import (
	"github.com/jinzhu/copier"
	"go.uber.org/zap"

	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm/pmm"
)

// PoolStats summarizes the frame states of a pool.
type PoolStats struct {
	BaseFrame    uint32
	Frames       uint32
	Free         uint32
	Used         uint32
	Heads        uint32
	Inaccessible uint32
}

// Report describes the outcome of a simulation run.
type Report struct {
	Steps   uint64
	Touches uint64
	Frees   uint64
	Faults  uint64

	ResidentPages int

	// Halted is set when the kernel stopped on an illegitimate access.
	Halted     bool
	HaltReason string

	Initial []PoolStats
	Final   []PoolStats
}

// collectPoolStats appends the statistics of every registered pool to
// dst[:0] and returns the result.
func collectPoolStats(reg *pmm.Registry, dst []PoolStats) []PoolStats {
	dst = dst[:0]
	for i := 0; i < reg.Len(); i++ {
		pool := reg.Pool(i)
		dst = append(dst, PoolStats{
			BaseFrame:    uint32(pool.BaseFrame()),
			Frames:       pool.FrameCount(),
			Free:         pool.Count(pmm.Free),
			Used:         pool.Count(pmm.Used),
			Heads:        pool.Count(pmm.HeadOfSequence),
			Inaccessible: pool.Count(pmm.Inaccessible),
		})
	}

	return dst
}

// snapshot stores a deep copy of live into dst.
func snapshot(dst *[]PoolStats, live []PoolStats) error {
	return copier.CopyWithOption(dst, &live, copier.Option{DeepCopy: true})
}

// Log writes the report to log.
func (r *Report) Log(log *zap.Logger) {
	log.Info("simulation finished",
		zap.Uint64("steps", r.Steps),
		zap.Uint64("touches", r.Touches),
		zap.Uint64("frees", r.Frees),
		zap.Uint64("faults", r.Faults),
		zap.Int("residentPages", r.ResidentPages),
		zap.Bool("halted", r.Halted),
	)

	if r.Halted {
		log.Warn("kernel halted", zap.String("reason", r.HaltReason))
	}

	for i, final := range r.Final {
		fields := []zap.Field{
			zap.Uint32("baseFrame", final.BaseFrame),
			zap.Uint32("frames", final.Frames),
			zap.Uint32("free", final.Free),
			zap.Uint32("heads", final.Heads),
			zap.Uint32("used", final.Used),
			zap.Uint32("inaccessible", final.Inaccessible),
		}

		if i < len(r.Initial) {
			fields = append(fields, zap.Int64("freeDelta", int64(final.Free)-int64(r.Initial[i].Free)))
		}

		log.Info("frame pool", fields...)
	}
}
