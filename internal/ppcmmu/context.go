package ppcmmu

// Controller tracks the active MMU mode and coordinates deferred TLB
// flushes triggered by BAT or segment/page-table context changes (C6).
type Controller struct {
	tlb *SoftTLB
	cpu CPUContext

	mode uint8 // current 3-valued MMU mode; 0xFF means "not yet computed"

	pendingBAT bool
	pendingPAT bool
}

// NewController binds a controller to tlb and cpu. It leaves the mode
// uncomputed; call OnMSRChange once before the first access.
func NewController(tlb *SoftTLB, cpu CPUContext) *Controller {
	return &Controller{tlb: tlb, cpu: cpu, mode: 0xFF}
}

// computeMode derives the 3-valued MMU mode from MSR[DR,PR] for data
// accesses: 0 (data translation off), 2 (supervisor, data translation
// on), 3 (problem/user, data translation on). Instruction and data sides
// use independent MSR bits (§3), but the TLB pair selection in dingusppc
// keys off this single composite mode; MSR[IR] does not affect it, since
// Fetch bypasses the TLB entirely (translating through IBAT/PAT when
// MSR[IR]=1).
func computeMode(msr uint32) uint8 {
	dr := (msr & MsrDR) != 0
	pr := (msr & MsrPR) != 0
	if !dr {
		return 0
	}
	if pr {
		return 3
	}
	return 2
}

// OnMSRChange recomputes the active MMU mode and swaps the active TLB
// pair if it changed (§4.6).
func (c *Controller) OnMSRChange() {
	mode := computeMode(c.cpu.MSR())
	if mode != c.mode {
		c.tlb.SelectMode(mode)
		c.mode = mode
	}
}

// scheduleBATFlush coalesces deferred BAT-derived TLB flushes: only the
// first call since the last flush registers a context-sync action.
func (c *Controller) scheduleBATFlush() {
	if c.pendingBAT {
		return
	}
	c.pendingBAT = true
	c.cpu.AddContextSyncAction(func() {
		c.tlb.flushByFlag(TLBEFromBAT)
		c.pendingBAT = false
	})
}

// schedulePATFlush coalesces deferred PAT-derived TLB flushes.
func (c *Controller) schedulePATFlush() {
	if c.pendingPAT {
		return
	}
	c.pendingPAT = true
	c.cpu.AddContextSyncAction(func() {
		c.tlb.flushByFlag(TLBEFromPAT)
		c.pendingPAT = false
	})
}

// OnSDR1OrSRChange schedules a deferred flush of PAT-derived TLB entries
// after SDR1 or a segment register changes (§4.6).
func (c *Controller) OnSDR1OrSRChange() {
	c.schedulePATFlush()
}
