package ppcmmu

import (
	"encoding/binary"
	"log/slog"
)

// AccessKind distinguishes the independent last-used-region caches kept
// by the physical memory dispatcher, so that interleaved access kinds do
// not thrash one another (§4.1).
type AccessKind int

const (
	KindRead AccessKind = iota
	KindWrite
	KindFetch
	KindPageTable
	KindDMA
	numAccessKinds
)

// Dispatcher resolves physical addresses to RAM/ROM/MMIO regions and
// performs typed big-endian loads/stores, or forwards to device
// read/write for MMIO (C1).
type Dispatcher struct {
	memMap MemoryMap
	cache  [numAccessKinds]Region
	log    *slog.Logger
	prof   *Profile
}

// NewDispatcher creates a physical memory dispatcher over memMap. prof
// may be nil to disable counters; log may be nil to use slog.Default().
func NewDispatcher(memMap MemoryMap, prof *Profile, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{memMap: memMap, log: log, prof: prof}
	for i := range d.cache {
		d.cache[i] = unmappedSentinel
	}
	return d
}

// regionFor returns the region backing pa for the given access kind,
// consulting and refreshing that kind's cached descriptor (§4.1).
func (d *Dispatcher) regionFor(kind AccessKind, pa uint32, size int) (*Region, bool) {
	r := &d.cache[kind]
	if pa >= r.Start && uint64(pa)+uint64(size) <= uint64(r.End)+1 {
		return r, true
	}

	found, ok := d.memMap.FindRange(pa)
	if !ok {
		return nil, false
	}
	d.cache[kind] = *found
	return &d.cache[kind], true
}

// InvalidateCaches discards every last-used-region cache; call this after
// the memory map changes shape (regions added, removed or resized).
func (d *Dispatcher) InvalidateCaches() {
	for i := range d.cache {
		d.cache[i] = unmappedSentinel
	}
}

// Read performs a big-endian physical read of size bytes (1, 2, 4 or 8).
// Reads from unmapped memory are a soft failure: they log and return an
// all-ones value of the requested width (§4.1, §7).
func (d *Dispatcher) Read(kind AccessKind, pa uint32, size int) uint64 {
	region, ok := d.regionFor(kind, pa, size)
	if !ok {
		if kind == KindPageTable {
			// An unmapped PTEG address means SDR1 (or the memory map) is
			// misconfigured, not an architectural miss — that case is
			// reported by searchPTEG's normal not-found return. This is
			// fatal rather than silently-degraded (§4.1, §7).
			panic(&InternalError{Msg: "page-table walk: PTEG physical address is unmapped"})
		}
		d.log.Warn("read from unmapped physical memory", "pa", pa, "size", size)
		return allOnes(size)
	}

	switch region.Type {
	case RegionRAM, RegionROM:
		d.countRead(kind)
		off := pa - region.Start
		return readBE(region.Host[off:], size)
	case RegionMMIO:
		if d.prof != nil {
			d.prof.IOMemReads++
		}
		return region.Dev.Read(region.Start, pa-region.Start, size)
	default:
		d.log.Error("physical read: invalid region type", "pa", pa)
		return allOnes(size)
	}
}

// Write performs a big-endian physical write of size bytes. Writes to
// unmapped memory, or to a ROM region, are dropped and logged (§4.1,
// §7) — a deliberate leniency matching legacy ROM probes.
func (d *Dispatcher) Write(kind AccessKind, pa uint32, size int, value uint64) {
	region, ok := d.regionFor(kind, pa, size)
	if !ok {
		if kind == KindPageTable {
			panic(&InternalError{Msg: "page-table walk: PTEG physical address is unmapped"})
		}
		d.log.Warn("write to unmapped physical memory", "pa", pa, "size", size)
		return
	}

	switch region.Type {
	case RegionRAM:
		if d.prof != nil {
			d.prof.DataMemWrites++
		}
		off := pa - region.Start
		writeBE(region.Host[off:], size, value)
	case RegionROM:
		d.log.Warn("write to read-only region dropped", "pa", pa)
	case RegionMMIO:
		if d.prof != nil {
			d.prof.IOMemWrites++
		}
		region.Dev.Write(region.Start, pa-region.Start, value, size)
	default:
		d.log.Error("physical write: invalid region type", "pa", pa)
	}
}

func (d *Dispatcher) countRead(kind AccessKind) {
	if d.prof == nil {
		return
	}
	switch kind {
	case KindFetch:
		d.prof.ExecReads++
	default:
		d.prof.DataMemReads++
	}
}

// DMAWindow returns a direct host-memory slice for devices that need a
// stable reference into RAM/ROM. Unlike ordinary physical access, an
// out-of-range or MMIO-backed DMA request is a hard failure (§4.1, §7):
// it returns UnmappedPhysicalError instead of silently degrading.
func (d *Dispatcher) DMAWindow(pa uint32, length uint32) ([]byte, error) {
	region, ok := d.regionFor(KindDMA, pa, int(length))
	if !ok || (region.Type != RegionRAM && region.Type != RegionROM) {
		return nil, &UnmappedPhysicalError{PA: pa, Size: int(length), Op: "dma"}
	}
	off := pa - region.Start
	end := uint64(off) + uint64(length)
	if end > uint64(len(region.Host)) {
		return nil, &UnmappedPhysicalError{PA: pa, Size: int(length), Op: "dma"}
	}
	return region.Host[off:end], nil
}

func allOnes(size int) uint64 {
	switch size {
	case 1:
		return 0xFF
	case 2:
		return 0xFFFF
	case 4:
		return 0xFFFFFFFF
	default:
		return 0xFFFFFFFFFFFFFFFF
	}
}

func readBE(b []byte, size int) uint64 {
	switch size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(b))
	case 4:
		return uint64(binary.BigEndian.Uint32(b))
	default:
		return binary.BigEndian.Uint64(b)
	}
}

func writeBE(b []byte, size int, value uint64) {
	switch size {
	case 1:
		b[0] = byte(value)
	case 2:
		binary.BigEndian.PutUint16(b, uint16(value))
	case 4:
		binary.BigEndian.PutUint32(b, uint32(value))
	default:
		binary.BigEndian.PutUint64(b, value)
	}
}
