package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ppcmmu/core/internal/ppcmmu"
)

// scenario is the declarative BAT/SR/SDR1/memory-map configuration for
// one bench run, loaded from YAML (mirroring the corpus's testrunner
// spec style).
type scenario struct {
	Name              string           `yaml:"name"`
	MSR               uint32           `yaml:"msr"`
	SDR1              uint32           `yaml:"sdr1"`
	SegmentRegisters  map[int]uint32   `yaml:"segment_registers"`
	BAT               batScenario      `yaml:"bat"`
	Regions           []regionScenario `yaml:"regions"`
	AccessCount       int              `yaml:"access_count"`
}

type batScenario struct {
	IBAT []batPairScenario `yaml:"ibat"`
	DBAT []batPairScenario `yaml:"dbat"`
}

type batPairScenario struct {
	Upper uint32 `yaml:"upper"`
	Lower uint32 `yaml:"lower"`
}

type regionScenario struct {
	Start uint32 `yaml:"start"`
	End   uint32 `yaml:"end"`
	Type  string `yaml:"type"`
}

func loadScenario(path string) (*scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var s scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if s.AccessCount <= 0 {
		s.AccessCount = 1024
	}
	return &s, nil
}

// buildMemoryMap allocates host-backed regions for the scenario and
// returns a ppcmmu.MemoryMap over them.
func buildMemoryMap(s *scenario) (ppcmmu.MemoryMap, error) {
	mm := &staticMemoryMap{}
	for _, r := range s.Regions {
		region := ppcmmu.Region{Start: r.Start, End: r.End}
		switch r.Type {
		case "ram":
			region.Type = ppcmmu.RegionRAM
			region.Host = make([]byte, int(r.End-r.Start)+1)
		case "rom":
			region.Type = ppcmmu.RegionROM
			region.Host = make([]byte, int(r.End-r.Start)+1)
		default:
			return nil, fmt.Errorf("unknown region type %q", r.Type)
		}
		mm.regions = append(mm.regions, region)
	}
	return mm, nil
}

// staticMemoryMap is a linear-scan ppcmmu.MemoryMap over a fixed region
// list, sized for bench scenarios rather than a live machine.
type staticMemoryMap struct {
	regions []ppcmmu.Region
}

func (m *staticMemoryMap) FindRange(pa uint32) (*ppcmmu.Region, bool) {
	for i := range m.regions {
		if m.regions[i].Contains(pa) {
			return &m.regions[i], true
		}
	}
	return nil, false
}
