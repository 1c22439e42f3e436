package ppcmmu

import "testing"

func TestUpdateFromSPRDisabled(t *testing.T) {
	var entry BATEntry
	if updateFromSPR(&entry, 0, 0) {
		t.Fatal("expected disabled BAT pair (access bits zero) to report not-updated")
	}
}

func TestUpdateFromSPRDecode(t *testing.T) {
	var entry BATEntry
	// bl=0 -> 128KB block, access=3 (supervisor+problem), phys base
	// 0x10000000, prot=2 (read/write).
	upper := uint32(3)
	lower := uint32(0x10000000) | 2

	if !updateFromSPR(&entry, upper, lower) {
		t.Fatal("expected enabled BAT pair to report updated")
	}
	if entry.Access != 3 {
		t.Errorf("Access = %d, want 3", entry.Access)
	}
	if entry.Prot != 2 {
		t.Errorf("Prot = %d, want 2", entry.Prot)
	}
	if entry.HiMask != 0xFFFE0000 {
		t.Errorf("HiMask = 0x%08x, want 0xFFFE0000", entry.HiMask)
	}
	if entry.Bepi != 0 {
		t.Errorf("Bepi = 0x%08x, want 0", entry.Bepi)
	}
	if entry.PhysHi != 0x10000000 {
		t.Errorf("PhysHi = 0x%08x, want 0x10000000", entry.PhysHi)
	}
}

func TestBATEngineTranslateHit(t *testing.T) {
	e := &BATEngine{}
	updateFromSPR(&e.DBAT[0], 3, 0x10000000|2)

	res := e.Translate(BATData, 0x00001234, false)
	if !res.Hit {
		t.Fatal("expected hit")
	}
	if res.PA != 0x10001234 {
		t.Errorf("PA = 0x%08x, want 0x10001234", res.PA)
	}
	if res.Prot != 2 {
		t.Errorf("Prot = %d, want 2", res.Prot)
	}
}

func TestBATEngineTranslateMiss(t *testing.T) {
	e := &BATEngine{}
	updateFromSPR(&e.DBAT[0], 3, 0x10000000|2)

	res := e.Translate(BATData, 0x00020000, false)
	if res.Hit {
		t.Fatal("expected miss outside block")
	}
}

func TestBATEngineTranslatePrivilegeGated(t *testing.T) {
	e := &BATEngine{}
	// access=2: supervisor-only.
	updateFromSPR(&e.DBAT[0], 2, 0x10000000|2)

	if res := e.Translate(BATData, 0x1000, false); !res.Hit {
		t.Error("expected supervisor access to hit")
	}
	if res := e.Translate(BATData, 0x1000, true); res.Hit {
		t.Error("expected problem-state access to miss a supervisor-only entry")
	}
}

func TestBATEngineTranslateFirstMatchWins(t *testing.T) {
	e := &BATEngine{}
	updateFromSPR(&e.DBAT[0], 3, 0x10000000|2)
	updateFromSPR(&e.DBAT[1], 3, 0x20000000|2)

	res := e.Translate(BATData, 0x1000, false)
	if res.PA != 0x10001000 {
		t.Errorf("PA = 0x%08x, want entry 0 (first match) to win", res.PA)
	}
}

func TestIBATDBATIndexHelpers(t *testing.T) {
	if got := ibatIndex(SprIBAT2U); got != 2 {
		t.Errorf("ibatIndex(SprIBAT2U) = %d, want 2", got)
	}
	if got := dbatIndex(SprDBAT3U); got != 3 {
		t.Errorf("dbatIndex(SprDBAT3U) = %d, want 3", got)
	}
}
