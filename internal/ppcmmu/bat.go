package ppcmmu

// BATKind selects which of the two independent 4-entry BAT arrays a
// translation targets.
type BATKind int

const (
	BATInstruction BATKind = iota
	BATData
)

// BATEntry is one of the 4 IBAT or 4 DBAT entries (§3 Data Model).
// access encodes %SV,PR validity (both zero disables the entry); prot is
// the block's protection code (0 none, 1 read-only, 2 read/write, 3
// reserved; data-side translation treats 3 like 1, read-only).
type BATEntry struct {
	Access uint8
	Prot   uint8
	HiMask uint32
	Bepi   uint32
	PhysHi uint32
}

// BATArray holds the four entries of one MMU's BAT (I or D).
type BATArray [4]BATEntry

// BATResult is the outcome of a single BAT lookup.
type BATResult struct {
	Hit  bool
	Prot uint8
	PA   uint32
}

// BATEngine performs Block Address Translation (C2) against the
// independent IBAT/DBAT arrays.
type BATEngine struct {
	IBAT BATArray
	DBAT BATArray
}

// accessBitsFor returns the %XY access-bit pattern for the given
// privilege level: X is supervisor access, Y is problem/user access,
// mutually exclusive per current MSR[PR].
func accessBitsFor(pr bool) uint8 {
	p := privilegeBit(pr)
	return ((p ^ 1) << 1) | p
}

// Translate scans the four entries of the selected array in index order.
// The first matching entry wins: the architecture leaves multiple
// simultaneous hits undefined, so first-wins is a legitimate and
// testable tie-break (§4.2).
func (e *BATEngine) Translate(kind BATKind, ea uint32, pr bool) BATResult {
	array := &e.IBAT
	if kind == BATData {
		array = &e.DBAT
	}

	access := accessBitsFor(pr)

	for i := range array {
		entry := &array[i]
		if entry.Access&access == 0 {
			continue
		}
		if (ea & entry.HiMask) != entry.Bepi {
			continue
		}
		pa := entry.PhysHi | (ea &^ entry.HiMask)
		return BATResult{Hit: true, Prot: entry.Prot, PA: pa}
	}

	return BATResult{}
}

// updateFromSPR rebuilds one BAT entry from its upper/lower SPR pair, per
// §4.6. upperVal/lowerVal are the raw SPR contents. If the pair's valid
// bits (lower 2 bits of the upper word) are both zero the entry is
// disabled (Access cleared) and the result reports whether it was enabled
// before; otherwise the entry is rebuilt and the result is true.
func updateFromSPR(entry *BATEntry, upperVal, lowerVal uint32) bool {
	if upperVal&3 == 0 {
		wasEnabled := entry.Access != 0
		entry.Access = 0
		return wasEnabled
	}
	bl := (upperVal >> 2) & 0x7FF
	hiMask := ^((bl << 17) | 0x1FFFF)

	entry.Access = uint8(upperVal & 3)
	entry.Prot = uint8(lowerVal & 3)
	entry.HiMask = hiMask
	entry.PhysHi = lowerVal & hiMask
	entry.Bepi = upperVal & hiMask
	return true
}

// ibatIndex/dbatIndex map an SPR number (528..535 / 536..543) to a BAT
// array slot, per the SPR layout in cpu.go.
func ibatIndex(upperSPR int) int { return (upperSPR - SprIBAT0U) / 2 }
func dbatIndex(upperSPR int) int { return (upperSPR - SprDBAT0U) / 2 }
