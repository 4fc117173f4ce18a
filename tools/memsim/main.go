//go:build !386

// Command memsim boots the kernel memory subsystems on a simulated 32-bit
// machine and drives them with a generated page access workload, checking the
// frame pool and page table invariants after every step.
package main

import (
	"flag"
	"fmt"
	"os"
)

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[memsim] error: %s\n", err.Error())
	os.Exit(1)
}

func run(configPath string, seed int64, steps int, verbose bool) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	if seed != 0 {
		cfg.Seed = seed
	}
	if steps > 0 {
		cfg.Steps = steps
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	sim, err := NewSimulator(cfg, log)
	if err != nil {
		return err
	}
	defer sim.Close()

	_, err = sim.Run()
	return err
}

func main() {
	configPath := flag.String("config", "", "properties file describing the simulation (defaults are used if omitted)")
	seed := flag.Int64("seed", 0, "override sim.seed")
	steps := flag.Int("steps", 0, "override sim.steps")
	verbose := flag.Bool("v", false, "log every page fault")
	flag.Parse()

	if err := run(*configPath, *seed, *steps, *verbose); err != nil {
		exit(err)
	}
}
