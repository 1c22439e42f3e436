package ppcmmu

import "testing"

func TestComputeMode(t *testing.T) {
	cases := []struct {
		msr  uint32
		want uint8
	}{
		{0, 0},
		{MsrDR, 2},
		{MsrDR | MsrPR, 3},
		{MsrDR | MsrIR, 2}, // instruction-side bit doesn't affect data mode
	}
	for _, c := range cases {
		if got := computeMode(c.msr); got != c.want {
			t.Errorf("computeMode(0x%x) = %d, want %d", c.msr, got, c.want)
		}
	}
}

func TestControllerOnMSRChangeSwapsTLBPair(t *testing.T) {
	cpu := newFakeCPU()
	tlb := NewSoftTLB(nil)
	ctrl := NewController(tlb, cpu)

	ctrl.OnMSRChange() // mode 0
	real := tlb.cur

	cpu.msr = MsrDR
	ctrl.OnMSRChange() // mode 2
	if tlb.cur == real {
		t.Error("expected TLB pair to change when mode changes")
	}

	cpu.msr = MsrDR // no change
	before := tlb.cur
	ctrl.OnMSRChange()
	if tlb.cur != before {
		t.Error("expected TLB pair to stay the same when mode doesn't change")
	}
}

func TestControllerScheduleBATFlushCoalesces(t *testing.T) {
	cpu := newFakeCPU()
	tlb := NewSoftTLB(nil)
	ctrl := NewController(tlb, cpu)

	ctrl.scheduleBATFlush()
	ctrl.scheduleBATFlush()

	if len(cpu.syncActions) != 1 {
		t.Fatalf("sync actions = %d, want 1 (coalesced)", len(cpu.syncActions))
	}

	cpu.runSyncActions()
	if ctrl.pendingBAT {
		t.Error("expected pendingBAT to reset after the flush runs")
	}

	ctrl.scheduleBATFlush()
	if len(cpu.syncActions) != 1 {
		t.Error("expected a new flush to be schedulable after the previous one ran")
	}
}

func TestControllerSchedulePATFlushIndependentOfBAT(t *testing.T) {
	cpu := newFakeCPU()
	tlb := NewSoftTLB(nil)
	ctrl := NewController(tlb, cpu)

	ctrl.scheduleBATFlush()
	ctrl.schedulePATFlush()

	if len(cpu.syncActions) != 2 {
		t.Fatalf("sync actions = %d, want 2 (independent pending flags)", len(cpu.syncActions))
	}
}
