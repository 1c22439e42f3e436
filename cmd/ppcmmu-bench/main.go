// Command ppcmmu-bench drives a synthetic effective-address stream
// through the ppcmmu core against a YAML-described BAT/SR/SDR1/memory-map
// scenario, reporting the resulting hit/miss/translation counters.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/ppcmmu/core/internal/ppcmmu"
)

// scenarioCPU is a minimal ppcmmu.CPUContext driven entirely by the
// loaded scenario: MSR/SDR1/SR are fixed for the run, SPR writes land in
// a map, and exceptions are logged rather than delivered to a real
// interpreter (there is none here, §1: the CPU core is out of scope).
type scenarioCPU struct {
	msr  uint32
	sprs map[int]uint32
	srs  map[int]uint32
	log  *slog.Logger

	syncActions []func()
}

func newScenarioCPU(s *scenario, log *slog.Logger) *scenarioCPU {
	c := &scenarioCPU{
		msr:  s.MSR,
		sprs: make(map[int]uint32),
		srs:  make(map[int]uint32),
		log:  log,
	}
	c.sprs[ppcmmu.SprSDR1] = s.SDR1
	for n, v := range s.SegmentRegisters {
		c.srs[n] = v
	}

	for i, pair := range s.BAT.IBAT {
		c.sprs[ppcmmu.SprIBAT0U+2*i] = pair.Upper
		c.sprs[ppcmmu.SprIBAT0U+2*i+1] = pair.Lower
	}
	for i, pair := range s.BAT.DBAT {
		c.sprs[ppcmmu.SprDBAT0U+2*i] = pair.Upper
		c.sprs[ppcmmu.SprDBAT0U+2*i+1] = pair.Lower
	}
	return c
}

func (c *scenarioCPU) MSR() uint32            { return c.msr }
func (c *scenarioCPU) SPR(n int) uint32       { return c.sprs[n] }
func (c *scenarioCPU) SetSPR(n int, v uint32) { c.sprs[n] = v }
func (c *scenarioCPU) SR(n int) uint32        { return c.srs[n] }
func (c *scenarioCPU) PC() uint32             { return 0 }

func (c *scenarioCPU) Raise(kind ppcmmu.ExceptionKind, srr1Bits uint32) {
	c.log.Warn("scenario: exception raised", "kind", kind, "srr1", srr1Bits,
		"dsisr", c.sprs[ppcmmu.SprDSISR], "dar", c.sprs[ppcmmu.SprDAR])
}

func (c *scenarioCPU) AddContextSyncAction(fn func()) {
	c.syncActions = append(c.syncActions, fn)
}

func (c *scenarioCPU) runSyncActions() {
	actions := c.syncActions
	c.syncActions = nil
	for _, fn := range actions {
		fn()
	}
}

// applyBATUpdates replays the scenario's BAT SPR writes through the MMU
// so that IBATUpdate/DBATUpdate (and their deferred flush scheduling)
// actually run, rather than poking BATEngine fields directly.
func applyBATUpdates(m *ppcmmu.MMU, s *scenario) {
	for i := range s.BAT.IBAT {
		m.IBATUpdate(ppcmmu.SprIBAT0U + 2*i)
	}
	for i := range s.BAT.DBAT {
		m.DBATUpdate(ppcmmu.SprDBAT0U + 2*i)
	}
}

func main() {
	scenarioPath := flag.String("scenario", "internal/ppcmmu/testdata/basic.yaml", "path to a YAML bench scenario")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := loadScenario(*scenarioPath)
	if err != nil {
		log.Error("ppcmmu-bench: failed to load scenario", "error", err)
		os.Exit(1)
	}

	memMap, err := buildMemoryMap(s)
	if err != nil {
		log.Error("ppcmmu-bench: failed to build memory map", "error", err)
		os.Exit(1)
	}

	cpu := newScenarioCPU(s, log)
	prof := &ppcmmu.Profile{}
	m := ppcmmu.NewMMU(cpu, memMap, prof, log)
	applyBATUpdates(m, s)
	cpu.runSyncActions()
	m.OnMSRChange()

	bar := progressbar.Default(int64(s.AccessCount), fmt.Sprintf("translating %s", s.Name))

	var ea uint32
	for i := 0; i < s.AccessCount; i++ {
		ea = uint32(i%4) * 0x1000 // walk a handful of distinct pages
		m.WriteU32(ea, uint32(i))
		m.ReadU32(ea)

		if i%256 == 0 {
			cpu.runSyncActions()
		}
		_ = bar.Add(1)
	}
	cpu.runSyncActions()

	fmt.Printf("\nscenario: %s\n", s.Name)
	fmt.Printf("primary hits:    %d\n", prof.PrimaryTLBHits)
	fmt.Printf("secondary hits:  %d\n", prof.SecondaryTLBHits)
	fmt.Printf("refills:         %d\n", prof.TLBRefills)
	fmt.Printf("replacements:    %d\n", prof.TLBReplacements)
	fmt.Printf("BAT translations: %d\n", prof.BATTranslation)
	fmt.Printf("PAT translations: %d\n", prof.PATTranslation)
	fmt.Printf("data reads:      %d\n", prof.DataMemReads)
	fmt.Printf("data writes:     %d\n", prof.DataMemWrites)
}
