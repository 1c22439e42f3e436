package ppcmmu

// RegionType tags a physical memory region as host-backed storage or an
// emulated device. This is a two-variant tagged union (§9 Design Notes),
// not a dispatch hierarchy: the device interface has a single fixed
// shape and there is no inheritance.
type RegionType int

const (
	RegionRAM RegionType = iota
	RegionROM
	RegionMMIO
)

func (t RegionType) String() string {
	switch t {
	case RegionRAM:
		return "RAM"
	case RegionROM:
		return "ROM"
	case RegionMMIO:
		return "MMIO"
	default:
		return "unknown"
	}
}

// Device is the fixed-shape interface implemented by emulated
// memory-mapped I/O devices. base is the region's start physical address,
// offset is relative to base, size is in bytes (1, 2, 4 or 8).
type Device interface {
	Read(base, offset uint32, size int) uint64
	Write(base, offset uint32, value uint64, size int)
}

// Region describes a contiguous, non-overlapping span of the physical
// address space. End is inclusive. Regions are never moved while
// referenced by a live TLB entry (§3 Invariants).
type Region struct {
	Start, End uint32
	Type       RegionType
	Host       []byte // valid for RegionRAM / RegionROM
	Dev        Device // valid for RegionMMIO
}

// Contains reports whether pa lies within the region.
func (r *Region) Contains(pa uint32) bool {
	return pa >= r.Start && pa <= r.End
}

// MemoryMap is the external physical memory map / device registry the
// core consumes through a narrow lookup interface (§6). Implementations
// should resolve FindRange in O(log n) or better; the core caches results
// itself, and MMU.InvalidateCaches discards those caches after the map
// changes.
type MemoryMap interface {
	// FindRange resolves pa to the region that contains it, if any.
	FindRange(pa uint32) (*Region, bool)
}

// unmappedSentinel is a zero-length region (End below Start, so it
// contains no address) that the physical dispatcher's per-kind caches
// start from and are reset to, so the first access of each kind consults
// the memory map. TLB entries for unmapped pages use MMU.unmappedRegion
// instead.
var unmappedSentinel = Region{Start: 0xFFFFFFFF, End: 0xFFFFFFFE, Type: RegionRAM}
