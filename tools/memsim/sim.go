//go:build !386

package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/kmain"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm/vmm"
)

var errNoStrayAddress = errors.New("regions cover every address outside the shared region")

// Simulator runs a workload against the kernel memory subsystems on a
// simulated machine and checks their invariants as it goes.
type Simulator struct {
	cfg      *Config
	log      *zap.Logger
	ranges   []vmm.AddressRange
	machine  *Machine
	workload *Workload
	checker  *Checker

	// live is reused when collecting pool statistics.
	live []PoolStats
}

// NewSimulator boots a machine and registers the configured regions with the
// kernel page table. Close must be called once the simulator is no longer
// needed.
func NewSimulator(cfg *Config, log *zap.Logger) (*Simulator, error) {
	ranges, err := cfg.AddressRanges()
	if err != nil {
		return nil, err
	}

	m := NewMachine(log)
	if err = m.Boot(); err != nil {
		return nil, fmt.Errorf("boot failed: %w", err)
	}

	for _, r := range ranges {
		m.Memory().PageTable.RegisterRegion(r)
	}

	return &Simulator{
		cfg:      cfg,
		log:      log,
		ranges:   ranges,
		machine:  m,
		workload: NewWorkload(cfg, ranges),
		checker:  NewChecker(m),
	}, nil
}

// Close shuts the simulated machine down.
func (s *Simulator) Close() {
	s.machine.Shutdown()
}

// Run executes the configured number of workload steps. The returned report
// is valid even if an error occurs.
func (s *Simulator) Run() (*Report, error) {
	var report Report

	s.live = collectPoolStats(&s.machine.Memory().Registry, s.live)
	if err := snapshot(&report.Initial, s.live); err != nil {
		return &report, err
	}

	err := s.runSteps(&report)
	if err == nil && s.cfg.StrayAccess {
		err = s.strayAccess(&report)
	}

	report.Faults = s.machine.Faults()
	report.ResidentPages = s.checker.Resident()

	s.live = collectPoolStats(&s.machine.Memory().Registry, s.live)
	if snapErr := snapshot(&report.Final, s.live); err == nil {
		err = snapErr
	}

	report.Log(s.log)
	return &report, err
}

func (s *Simulator) runSteps(report *Report) error {
	for step := 1; step <= s.cfg.Steps; step++ {
		op := s.workload.Next()
		if err := s.apply(op, report); err != nil {
			return fmt.Errorf("step %d (%s page 0x%08x): %w", step, op.Kind, op.Page.Address(), err)
		}
		report.Steps++

		if step%s.cfg.CheckEvery == 0 {
			if err := s.checker.Check(); err != nil {
				return fmt.Errorf("step %d: %w", step, err)
			}
		}
	}

	return s.checker.Check()
}

func (s *Simulator) apply(op Op, report *Report) error {
	if op.Kind == OpFree {
		report.Frees++
		if err := s.machine.Memory().PageTable.FreePage(op.Page); err != nil {
			return err
		}

		s.checker.Freed(op.Page)
		return nil
	}

	report.Touches++
	if err := s.machine.Write(op.Page.Address(), pageTag(op.Page)); err != nil {
		return err
	}

	s.checker.Touched(op.Page)
	return nil
}

// strayAccess writes to an address outside every region and expects the
// kernel to halt.
func (s *Simulator) strayAccess(report *Report) error {
	addr, found := s.strayAddress()
	if !found {
		return errNoStrayAddress
	}

	err := s.machine.Write(addr, 0)

	var halt *HaltError
	if !errors.As(err, &halt) {
		return fmt.Errorf("expected access to 0x%08x to halt the kernel; got %v", addr, err)
	}

	s.log.Info("stray access halted the kernel", zap.Uintptr("addr", addr))
	report.Halted = true
	report.HaltReason = halt.Error()
	return nil
}

// strayAddress returns the first 4M aligned address above the shared region
// that is not part of any region.
func (s *Simulator) strayAddress() (uintptr, bool) {
	for addr := kmain.SharedSize; addr < recursiveWindowStart; addr += 4 * mm.Mb {
		inRegion := false
		for _, r := range s.ranges {
			inRegion = inRegion || r.Contains(addr)
		}

		if !inRegion {
			return addr, true
		}
	}

	return 0, false
}
