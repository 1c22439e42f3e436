package ppcmmu

// TLB entry flags (§3 Data Model).
const (
	PageMem      uint16 = 1 << 0
	PageIO       uint16 = 1 << 1
	PageWritable uint16 = 1 << 2
	PTESetC      uint16 = 1 << 3
	TLBEFromBAT  uint16 = 1 << 4
	TLBEFromPAT  uint16 = 1 << 5
)

// InvalidTag marks an unused TLB entry.
const InvalidTag uint32 = 0xFFFFFFFF

const (
	// TLBSize is the number of primary-TLB (and secondary-TLB sets)
	// entries, direct-mapped by (ea>>12)&(TLBSize-1). Must be a power of
	// two.
	TLBSize = 4096
	// TLB2Ways is the associativity of the secondary TLB.
	TLB2Ways  = 4
	pageBits  = 12
	pageMask  = 0xFFF
)

// TLBEntry is one software-TLB slot (§3 Data Model). For host-backed
// pages (PageMem set), pa := ea + HostOffset is constant across the
// entire page (BAT blocks and PTE pages are always at least 4 KiB),
// so a hit resolves with one addition plus a region-relative index;
// Region is borrowed from the memory map for the resulting Region.Host
// slice. For MMIO (PageIO set), Region is used directly and HostOffset
// is unused.
type TLBEntry struct {
	Tag        uint32
	Flags      uint16
	LRU        uint8
	HostOffset int64
	Region     *Region
	// PTEAddr is the physical address of the guest PTE's second word, set
	// only when TLBEFromPAT is set. It lets a later write that hits this
	// cached entry (PTESetC clear) set the PTE's Changed bit in place
	// without re-walking the hash chain (§4.4).
	PTEAddr uint32
}

// tlbPair is one MMU mode's primary+secondary TLB.
type tlbPair struct {
	primary   [TLBSize]TLBEntry
	secondary [TLBSize][TLB2Ways]TLBEntry
}

func newTLBPair() *tlbPair {
	p := &tlbPair{}
	for i := range p.primary {
		p.primary[i].Tag = InvalidTag
		for w := 0; w < TLB2Ways; w++ {
			p.secondary[i][w].Tag = InvalidTag
		}
	}
	return p
}

// SoftTLB is the two-level, mode-indexed software TLB (C4): one
// direct-mapped primary array and one 4-way secondary array per MMU
// mode, with tree-pseudo-LRU replacement in the secondary.
type SoftTLB struct {
	modes [3]*tlbPair // indexed by mmuModeSlot(mode)
	cur   *tlbPair
	prof  *Profile
}

// NewSoftTLB creates a TLB with all three mode pairs allocated and
// invalidated, defaulting to real-addressing mode (mode 0).
func NewSoftTLB(prof *Profile) *SoftTLB {
	t := &SoftTLB{prof: prof}
	for i := range t.modes {
		t.modes[i] = newTLBPair()
	}
	t.cur = t.modes[0]
	return t
}

// mmuModeSlot maps the architectural 3-valued MMU mode (0, 2, 3) to a
// dense array index.
func mmuModeSlot(mode uint8) int {
	switch mode {
	case 0:
		return 0
	case 2:
		return 1
	case 3:
		return 2
	default:
		return 0
	}
}

// SelectMode switches the active TLB pair to the one for mode (§4.6).
func (t *SoftTLB) SelectMode(mode uint8) {
	t.cur = t.modes[mmuModeSlot(mode)]
}

func tlbIndex(ea uint32) uint32 {
	return (ea >> pageBits) & (TLBSize - 1)
}

// touchPLRU applies the tree-pseudo-LRU update for way k of a 4-way set
// (§4.4): way k becomes most-recently-used, its pair sibling becomes
// second-most, and the other pair's low bits are cleared. This mirrors
// the original tlb2_target_entry / lookup_secondary_tlb bit patterns
// exactly, including for invalid-slot installs.
func touchPLRU(ways *[TLB2Ways]TLBEntry, k int) {
	switch k {
	case 0:
		ways[0].LRU = 0x3
		ways[1].LRU = 0x2
		ways[2].LRU &= 0x1
		ways[3].LRU &= 0x1
	case 1:
		ways[0].LRU = 0x2
		ways[1].LRU = 0x3
		ways[2].LRU &= 0x1
		ways[3].LRU &= 0x1
	case 2:
		ways[0].LRU &= 0x1
		ways[1].LRU &= 0x1
		ways[2].LRU = 0x3
		ways[3].LRU = 0x2
	case 3:
		ways[0].LRU &= 0x1
		ways[1].LRU &= 0x1
		ways[2].LRU = 0x2
		ways[3].LRU = 0x3
	}
}

// targetWay picks the secondary-TLB way to install a new entry into:
// invalid ways first (in way order), else the first way with LRU==0.
func (t *SoftTLB) targetWay(ways *[TLB2Ways]TLBEntry) int {
	for k := 0; k < TLB2Ways; k++ {
		if ways[k].Tag == InvalidTag {
			touchPLRU(ways, k)
			return k
		}
	}
	if t.prof != nil {
		t.prof.TLBReplacements++
	}
	for k := 0; k < TLB2Ways; k++ {
		if ways[k].LRU == 0 {
			touchPLRU(ways, k)
			return k
		}
	}
	// Unreachable: with 4 ways, at most 3 can be non-zero after a touch.
	touchPLRU(ways, 3)
	return 3
}

// lookupSecondary scans the 4 ways at ea's index for tag, updates PLRU on
// a hit, and returns the entry (or nil on miss).
func (t *SoftTLB) lookupSecondary(ea uint32, tag uint32) *TLBEntry {
	ways := &t.cur.secondary[tlbIndex(ea)]
	for k := 0; k < TLB2Ways; k++ {
		if ways[k].Tag == tag {
			touchPLRU(ways, k)
			return &ways[k]
		}
	}
	return nil
}

// Lookup resolves ea through the primary then secondary TLB, invoking
// refill on a full miss. refill is supplied by the owning MMU (it needs
// the BAT engine, page-table walker and physical dispatcher, §4.4).
// A secondary hit/refill of a PAGE_MEM entry is copied into the primary
// slot (MMIO entries are never promoted, so that every MMIO access
// re-dispatches to the device, §4.4).
func (t *SoftTLB) Lookup(ea uint32, refill func(ea uint32) *TLBEntry) *TLBEntry {
	tag := ea &^ pageMask
	idx := tlbIndex(ea)
	primary := &t.cur.primary[idx]

	if primary.Tag == tag {
		if t.prof != nil {
			t.prof.PrimaryTLBHits++
		}
		return primary
	}

	secondary := t.lookupSecondary(ea, tag)
	if secondary == nil {
		if t.prof != nil {
			t.prof.TLBRefills++
		}
		secondary = refill(ea)
	} else if t.prof != nil {
		t.prof.SecondaryTLBHits++
	}

	if secondary.Flags&PageMem != 0 {
		primary.Tag = tag
		primary.Flags = secondary.Flags
		primary.HostOffset = secondary.HostOffset
		primary.Region = secondary.Region
		primary.PTEAddr = secondary.PTEAddr
	}

	return secondary
}

// Install writes a freshly-refilled entry into the secondary TLB at ea's
// index, applying the PLRU replacement/victim-selection policy.
func (t *SoftTLB) Install(ea uint32, entry TLBEntry) *TLBEntry {
	ways := &t.cur.secondary[tlbIndex(ea)]
	way := t.targetWay(ways)
	ways[way] = entry
	return &ways[way]
}

// syncFlagAcrossLevels ORs flag into every entry matching ea's tag in the
// current mode's primary and secondary arrays. A read installs the same
// logical mapping into both TLB levels (primary via promotion, secondary
// via Install); a later write may be handed back either copy by Lookup,
// so a flag change made to one (PTESetC, in particular) must be mirrored
// onto the other rather than left to go stale (§4.5).
func (t *SoftTLB) syncFlagAcrossLevels(ea uint32, flag uint16) {
	tag := ea &^ pageMask
	idx := tlbIndex(ea)

	primary := &t.cur.primary[idx]
	if primary.Tag == tag {
		primary.Flags |= flag
	}

	ways := &t.cur.secondary[idx]
	for k := range ways {
		if ways[k].Tag == tag {
			ways[k].Flags |= flag
		}
	}
}

// InvalidateEntry invalidates the single-page entry at ea in the primary
// and every way of the secondary, across all three MMU-mode pairs (§4.6
// TLBIE — the guest may change mode between issuing TLBIE and the
// affected access).
func (t *SoftTLB) InvalidateEntry(ea uint32) {
	tag := ea &^ pageMask
	idx := tlbIndex(ea)

	for _, pair := range t.modes {
		if pair.primary[idx].Tag == tag {
			pair.primary[idx].Tag = InvalidTag
		}
		ways := &pair.secondary[idx]
		for k := range ways {
			if ways[k].Tag == tag {
				ways[k].Tag = InvalidTag
			}
		}
	}
}

// flushByFlag invalidates every entry (in the supervisor/problem mode
// pairs only — real mode never holds BAT/PAT-derived entries with
// translation disabled) whose flags intersect mask, across both TLB
// levels. Used to implement deferred BAT/PAT context-sync flushes
// (§4.6).
func (t *SoftTLB) flushByFlag(mask uint16) {
	for _, pair := range []*tlbPair{t.modes[1], t.modes[2]} {
		for i := range pair.primary {
			if pair.primary[i].Flags&mask != 0 {
				pair.primary[i].Tag = InvalidTag
			}
		}
		for i := range pair.secondary {
			ways := &pair.secondary[i]
			for k := range ways {
				if ways[k].Flags&mask != 0 {
					ways[k].Tag = InvalidTag
				}
			}
		}
	}
}

// FlushAll invalidates every entry in every mode pair (used on full MMU
// reset).
func (t *SoftTLB) FlushAll() {
	for _, pair := range t.modes {
		for i := range pair.primary {
			pair.primary[i].Tag = InvalidTag
		}
		for i := range pair.secondary {
			for k := range pair.secondary[i] {
				pair.secondary[i][k].Tag = InvalidTag
			}
		}
	}
}
