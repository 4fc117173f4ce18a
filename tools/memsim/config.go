//go:build !386

package main

import (
	"errors"
	"fmt"

	"github.com/magiconair/properties"

	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/kmain"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm"
	"github.com/tshree19/CSCE611-OS-FALL2022/kernel/mm/vmm"
)

// recursiveWindowStart is the first virtual address used by the recursive
// page table mapping.
const recursiveWindowStart = uintptr(0xFFC00000)

var (
	errNoRegions      = errors.New("at least one region must be configured")
	errTooManyRegions = fmt.Errorf("at most %d regions can be registered", vmm.MaxRegions)
	errBadRegion      = errors.New("invalid region")
	errBadRatio       = errors.New("workload.freeRatio must be in [0, 1)")
	errBadZipf        = errors.New("workload.zipfConstant must be in (0, 1)")
	errBadSteps       = errors.New("sim.steps must be positive")
)

// Config describes a simulation run. It is decoded from a properties file;
// missing keys take their default value.
type Config struct {
	// Seed initializes the workload PRNG.
	Seed int64 `properties:"sim.seed,default=611"`

	// Steps is the number of workload operations to run.
	Steps int `properties:"sim.steps,default=2000"`

	// CheckEvery controls how often (in steps) the invariant checker runs.
	CheckEvery int `properties:"sim.checkEvery,default=1"`

	// Regions lists the virtual regions registered with the kernel page
	// table as "baseMiB:sizeMiB" pairs.
	Regions []string `properties:"workload.regions,default=4:4;512:16"`

	// FreeRatio is the probability that an operation releases a page
	// instead of touching it.
	FreeRatio float64 `properties:"workload.freeRatio,default=0.2"`

	// ZipfConstant skews page selection within a region.
	ZipfConstant float64 `properties:"workload.zipfConstant,default=0.99"`

	// StrayAccess makes the run end with an access outside every region
	// which must halt the kernel.
	StrayAccess bool `properties:"workload.strayAccess,default=false"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `properties:"log.level,default=info"`
}

// LoadConfig reads a configuration file. An empty path yields the default
// configuration.
func LoadConfig(path string) (*Config, error) {
	p := properties.NewProperties()
	if path != "" {
		var err error
		if p, err = properties.LoadFile(path, properties.UTF8); err != nil {
			return nil, err
		}
	}

	return decodeConfig(p)
}

// ParseConfig decodes a configuration from the contents of a properties file.
func ParseConfig(data []byte) (*Config, error) {
	p, err := properties.Load(data, properties.UTF8)
	if err != nil {
		return nil, err
	}

	return decodeConfig(p)
}

func decodeConfig(p *properties.Properties) (*Config, error) {
	var cfg Config
	if err := p.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for values that the simulated kernel
// cannot satisfy.
func (cfg *Config) Validate() error {
	switch {
	case cfg.Steps <= 0:
		return errBadSteps
	case cfg.FreeRatio < 0 || cfg.FreeRatio >= 1:
		return errBadRatio
	case cfg.ZipfConstant <= 0 || cfg.ZipfConstant >= 1:
		return errBadZipf
	}

	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = 1
	}

	_, err := cfg.AddressRanges()
	return err
}

// AddressRanges parses the configured regions.
func (cfg *Config) AddressRanges() ([]vmm.AddressRange, error) {
	switch {
	case len(cfg.Regions) == 0:
		return nil, errNoRegions
	case len(cfg.Regions) > vmm.MaxRegions:
		return nil, errTooManyRegions
	}

	ranges := make([]vmm.AddressRange, 0, len(cfg.Regions))
	for _, region := range cfg.Regions {
		var baseMiB, sizeMiB uint64
		if n, err := fmt.Sscanf(region, "%d:%d", &baseMiB, &sizeMiB); err != nil || n != 2 {
			return nil, fmt.Errorf("%w %q: expected baseMiB:sizeMiB", errBadRegion, region)
		}

		r := vmm.AddressRange{Base: uintptr(baseMiB) * mm.Mb, Size: uintptr(sizeMiB) * mm.Mb}
		switch {
		case r.Size == 0:
			return nil, fmt.Errorf("%w %q: empty region", errBadRegion, region)
		case r.Base < kmain.SharedSize:
			return nil, fmt.Errorf("%w %q: overlaps the shared region", errBadRegion, region)
		case r.Base+r.Size > recursiveWindowStart || r.Base+r.Size < r.Base:
			return nil, fmt.Errorf("%w %q: overlaps the page table window", errBadRegion, region)
		}

		for _, other := range ranges {
			if r.Base < other.Base+other.Size && other.Base < r.Base+r.Size {
				return nil, fmt.Errorf("%w %q: overlaps another region", errBadRegion, region)
			}
		}

		ranges = append(ranges, r)
	}

	return ranges, nil
}
