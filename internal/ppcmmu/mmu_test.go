package ppcmmu

import "testing"

func TestIBATAndDBATUpdateCoalesceFlush(t *testing.T) {
	cpu := newFakeCPU()
	cpu.msr = MsrDR
	mem := &fakeMemMap{regions: []Region{ramRegion(0, 0xFFFF)}}
	m := NewMMU(cpu, mem, nil, nil)

	// Install one BAT-derived and one PAT-derived entry directly; the
	// single coalesced flush scheduled by the IBAT and DBAT updates must
	// clear the TLBEFromBAT entry and leave the TLBEFromPAT one.
	m.tlb.SelectMode(2)
	m.tlb.Install(0x1000, TLBEntry{Tag: 0x1000, Flags: TLBEFromBAT})
	m.tlb.Install(0x2000, TLBEntry{Tag: 0x2000, Flags: TLBEFromPAT})

	cpu.sprs[SprIBAT0U] = 3
	cpu.sprs[SprIBAT0L] = 0x10000000 | 2
	m.IBATUpdate(SprIBAT0U)

	cpu.sprs[SprDBAT0U] = 3
	cpu.sprs[SprDBAT0L] = 0x20000000 | 2
	m.DBATUpdate(SprDBAT0U)

	if len(cpu.syncActions) != 1 {
		t.Fatalf("pending sync actions = %d, want 1 (coalesced)", len(cpu.syncActions))
	}

	cpu.runSyncActions()

	if m.tlb.modes[1].secondary[tlbIndex(0x1000)][0].Tag != InvalidTag {
		t.Error("expected TLBEFromBAT entry to be flushed")
	}
	if m.tlb.modes[1].secondary[tlbIndex(0x2000)][0].Tag == InvalidTag {
		t.Error("expected TLBEFromPAT entry to survive a BAT-only flush")
	}
}

func TestIBATUpdateAloneSchedulesFlush(t *testing.T) {
	// Regression guard for the original's asymmetry (only DBATUpdate
	// scheduled a flush): IBATUpdate alone must also schedule one.
	cpu := newFakeCPU()
	mem := &fakeMemMap{regions: []Region{ramRegion(0, 0xFFFF)}}
	m := NewMMU(cpu, mem, nil, nil)

	cpu.sprs[SprIBAT1U] = 3
	cpu.sprs[SprIBAT1L] = 0x10000000 | 2
	m.IBATUpdate(SprIBAT1U)

	if len(cpu.syncActions) != 1 {
		t.Fatalf("pending sync actions = %d, want 1", len(cpu.syncActions))
	}
}

func TestOnSDR1OrSRChangeSchedulesPATFlush(t *testing.T) {
	cpu := newFakeCPU()
	mem := &fakeMemMap{regions: []Region{ramRegion(0, 0xFFFF)}}
	m := NewMMU(cpu, mem, nil, nil)

	m.tlb.SelectMode(2)
	m.tlb.Install(0x3000, TLBEntry{Tag: 0x3000, Flags: TLBEFromPAT})

	m.OnSDR1OrSRChange()
	if len(cpu.syncActions) != 1 {
		t.Fatalf("pending sync actions = %d, want 1", len(cpu.syncActions))
	}
	cpu.runSyncActions()

	if m.tlb.modes[1].secondary[tlbIndex(0x3000)][0].Tag != InvalidTag {
		t.Error("expected TLBEFromPAT entry to be flushed")
	}
}

func TestTLBInvalidateSingleEntry(t *testing.T) {
	cpu := newFakeCPU()
	mem := &fakeMemMap{regions: []Region{ramRegion(0, 0xFFFF)}}
	m := NewMMU(cpu, mem, nil, nil)

	m.tlb.Install(0x4000, TLBEntry{Tag: 0x4000, Flags: PageMem})
	m.TLBInvalidate(0x4000)

	if m.tlb.cur.secondary[tlbIndex(0x4000)][0].Tag != InvalidTag {
		t.Error("expected TLBInvalidate to clear the entry")
	}
}

func TestDebugReadReturnsErrorWithoutRaising(t *testing.T) {
	cpu := newFakeCPU()
	cpu.msr = MsrDR
	cpu.sprs[SprSDR1] = 0x00010000
	mem := &fakeMemMap{regions: []Region{ramRegion(0, 0x2FFFF)}}
	m := NewMMU(cpu, mem, nil, nil)
	// SR[0] is zero (vsid 0) and no PTE is planted: with data translation
	// on, a data access to this ea misses the page table and normally
	// raises a DSI.

	_, err := m.DebugRead(0x00001000, 4)

	if err == nil {
		t.Fatal("expected DebugRead to return an error on translation miss")
	}
	if _, ok := err.(*DSIError); !ok {
		t.Errorf("err = %#v, want *DSIError", err)
	}
	if len(cpu.raised) != 0 {
		t.Errorf("cpu.raised = %v, want none (DebugRead must not divert real execution)", cpu.raised)
	}
}

func TestDebugReadSuccessPassesThrough(t *testing.T) {
	m, _ := newRealModeMMU(t)
	m.WriteU32(0x500, 0x12345678)

	v, err := m.DebugRead(0x500, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0x12345678 {
		t.Errorf("DebugRead = 0x%08x, want 0x12345678", v)
	}
}

func TestDMAWindowHardFailsOnUnmapped(t *testing.T) {
	cpu := newFakeCPU()
	mem := &fakeMemMap{regions: []Region{ramRegion(0, 0xFFF)}}
	m := NewMMU(cpu, mem, nil, nil)

	if _, err := m.DMAWindow(0x10000, 16); err == nil {
		t.Fatal("expected DMAWindow to fail on an unmapped address")
	}
}
