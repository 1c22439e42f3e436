package ppcmmu

import "log/slog"

// MMU is the top-level address-translation and memory-access core: it
// wires the physical dispatcher (C1), BAT engine (C2), page-table walker
// (C3), software TLB (C4) and context-sync controller (C6) behind the
// single virtual-access front end in access.go (C5).
type MMU struct {
	cpu    CPUContext
	memMap MemoryMap
	log    *slog.Logger
	prof   *Profile

	phys *Dispatcher
	bat  *BATEngine
	pat  *PageTableWalker
	tlb  *SoftTLB
	ctrl *Controller

	unmappedRegion Region
}

// NewMMU constructs an MMU bound to cpu (for MSR/SPR/SR/exception
// delivery) and memMap (for physical region resolution). prof may be nil
// to disable profiling counters; log may be nil to use slog.Default().
func NewMMU(cpu CPUContext, memMap MemoryMap, prof *Profile, log *slog.Logger) *MMU {
	if log == nil {
		log = slog.Default()
	}

	phys := NewDispatcher(memMap, prof, log)
	tlb := NewSoftTLB(prof)

	m := &MMU{
		cpu:    cpu,
		memMap: memMap,
		log:    log,
		prof:   prof,
		phys:   phys,
		bat:    &BATEngine{},
		tlb:    tlb,
	}
	m.pat = NewPageTableWalker(cpu, phys, prof)
	m.ctrl = NewController(tlb, cpu)
	m.unmappedRegion = Region{Start: 0, End: 0xFFFFFFFF, Type: RegionMMIO, Dev: unmappedDevice{log: log}}

	m.ctrl.OnMSRChange()
	return m
}

// unmappedDevice backs TLB entries installed for a physical address that
// a BAT or page-table walk resolved to, but which the memory map does not
// cover. It gives the C5 fast path (which dispatches MMIO entries to
// Region.Dev rather than slicing Region.Host) the same soft-failure
// behavior the physical dispatcher applies to ordinary unmapped access
// (§4.1, §7): reads log and return all-ones, writes log and are dropped.
type unmappedDevice struct {
	log *slog.Logger
}

func (d unmappedDevice) Read(base, offset uint32, size int) uint64 {
	d.log.Warn("tlb: read from unmapped physical address", "pa", base+offset, "size", size)
	return allOnes(size)
}

func (d unmappedDevice) Write(base, offset uint32, value uint64, size int) {
	d.log.Warn("tlb: write to unmapped physical address", "pa", base+offset, "size", size)
}

// Fetch reads one big-endian 32-bit instruction word for execution
// (§4.5). Unlike data access this bypasses the software TLB entirely and
// goes straight through IBAT/PAT translation plus the dispatcher's own
// last-used-region cache for KindFetch — mirroring the original's
// quickinstruction_translate, which never populates a TLB for code
// fetch. Execution from an MMIO region is rejected as a fatal error.
func (m *MMU) Fetch(pc uint32) uint32 {
	pa := pc
	if m.cpu.MSR()&MsrIR != 0 {
		pa = m.translateFetch(pc)
	}

	region, ok := m.phys.regionFor(KindFetch, pa, 4)
	if !ok {
		m.log.Warn("fetch from unmapped physical memory", "pc", pc, "pa", pa)
		if m.prof != nil {
			m.prof.ExecReads++
		}
		return 0xFFFFFFFF
	}
	if region.Type == RegionMMIO {
		panic(&InternalError{Msg: "attempt to execute code from MMIO"})
	}

	if m.prof != nil {
		m.prof.ExecReads++
	}
	off := pa - region.Start
	return uint32(readBE(region.Host[off:], 4))
}

// translateFetch performs IBAT-then-PAT translation for an instruction
// fetch (§4.2, §4.3 with isFetch=true).
func (m *MMU) translateFetch(ea uint32) uint32 {
	pr := m.cpu.MSR()&MsrPR != 0

	batRes := m.bat.Translate(BATInstruction, ea, pr)
	if batRes.Hit {
		if m.prof != nil {
			m.prof.BATTranslation++
		}
		if batRes.Prot == 0 {
			m.cpu.Raise(ExceptISI, 0x08000000)
			return ea
		}
		return batRes.PA
	}

	patRes := m.pat.Translate(ea, true, pr, false)
	return patRes.PA
}

// lookupData resolves ea through the software TLB for a data access,
// refilling via BAT-then-PAT translation on a full miss (§4.4).
func (m *MMU) lookupData(ea uint32, isWrite bool) *TLBEntry {
	return m.tlb.Lookup(ea, func(ea uint32) *TLBEntry {
		return m.tlb2Refill(ea, isWrite)
	})
}

// tlb2Refill performs the full BAT-then-PAT translation of ea on a
// software-TLB miss and installs the resulting entry, mirroring the
// original's tlb2_refill (§4.4). With data translation disabled (MSR[DR]
// = 0, mode 0) the mapping is the architectural identity ea == pa; the
// mode-0 TLB pair still caches it so that the C5 front end does not need
// a separate code path for real mode, and it is never invalidated by a
// BAT/PAT context-sync flush (§4.6).
func (m *MMU) tlb2Refill(ea uint32, isWrite bool) *TLBEntry {
	tag := ea &^ pageMask
	entry := TLBEntry{Tag: tag, Flags: PTESetC | PageWritable}

	var phys uint32
	msr := m.cpu.MSR()

	if msr&MsrDR != 0 {
		pr := msr&MsrPR != 0

		batRes := m.bat.Translate(BATData, ea, pr)
		if batRes.Hit {
			if m.prof != nil {
				m.prof.BATTranslation++
			}
			if batRes.Prot == 0 || (isWrite && batRes.Prot&1 != 0) {
				m.raiseDSIProtection(ea, isWrite)
				return m.tlb.Install(ea, m.protectionFaultEntry(tag))
			}
			entry.Flags = TLBEFromBAT | PTESetC
			if batRes.Prot == 2 {
				entry.Flags |= PageWritable
			}
			phys = batRes.PA
		} else {
			patRes := m.pat.Translate(ea, false, pr, isWrite)
			if !patRes.OK {
				// Translate already raised ISI/DSI; this path is only
				// exercised on an embedder whose Raise doesn't unwind.
				return m.tlb.Install(ea, m.protectionFaultEntry(tag))
			}

			entry.Flags = TLBEFromPAT
			entry.PTEAddr = patRes.PTEAddr

			key := patRes.ProtCode >> 2
			pp := patRes.ProtCode & 3
			if !(pp == 3 || (key != 0 && pp == 1)) {
				entry.Flags |= PageWritable
			}
			if isWrite || patRes.PTECAlreadySet {
				entry.Flags |= PTESetC
			}
			phys = patRes.PA
		}
	} else {
		phys = ea
	}

	region, ok := m.memMap.FindRange(phys)
	if !ok {
		m.log.Warn("tlb refill: unmapped physical address", "ea", ea, "pa", phys)
		unmapped := TLBEntry{Tag: tag, Flags: PageIO, Region: &m.unmappedRegion}
		return m.tlb.Install(ea, unmapped)
	}

	entry.Region = region
	if region.Type == RegionMMIO {
		entry.Flags |= PageIO
	} else {
		entry.Flags |= PageMem
		entry.HostOffset = int64(phys) - int64(ea)
	}

	return m.tlb.Install(ea, entry)
}

// protectionFaultEntry builds a dummy TLB entry for the (architecturally
// unreachable, since Raise does not return) path following a BAT
// protection-violation exception. It is never installed via the normal
// Install call in the caller's control-flow sense, but Install is what
// actually writes it into the secondary TLB; callers that invoke this
// helper only reach the subsequent instruction when an embedder's
// CPUContext.Raise mock chooses not to unwind the stack.
func (m *MMU) protectionFaultEntry(tag uint32) TLBEntry {
	// Marked writable and already-Changed so that, on an embedder whose
	// Raise does not unwind the stack, the C5 front end does not also
	// raise its own write-protection fault for the same access — the
	// real exception was already delivered above.
	return TLBEntry{Tag: tag, Flags: PageIO | PageWritable | PTESetC, Region: &m.unmappedRegion}
}

func (m *MMU) raiseDSIProtection(ea uint32, isWrite bool) {
	dsisr := uint32(0x08000000)
	if isWrite {
		dsisr |= 1 << 25
	}
	m.cpu.SetSPR(SprDSISR, dsisr)
	m.cpu.SetSPR(SprDAR, ea)
	m.cpu.Raise(ExceptDSI, 0)
}

// setChangedBit lazily sets the Changed bit of the PAT-derived PTE
// backing entry when a write hits a cached TLB entry that was installed
// by a read (PTESetC clear). This writes the PTE's physical address that
// was recorded at refill time, avoiding a second hash-chain walk (§4.4,
// §4.5 "Changed-bit handling"). It sets PTESetC on both the primary and
// the hit secondary entry, since a read warms both levels and Lookup may
// hand back either one on a later write.
func (m *MMU) setChangedBit(ea uint32, entry *TLBEntry) {
	if entry.Flags&TLBEFromPAT == 0 {
		entry.Flags |= PTESetC
		m.tlb.syncFlagAcrossLevels(ea, PTESetC)
		return
	}

	word1 := uint32(m.phys.Read(KindPageTable, entry.PTEAddr, 4))
	newWord1 := word1 | pteR | pteC
	if newWord1 != word1 {
		m.phys.Write(KindPageTable, entry.PTEAddr, 4, uint64(newWord1))
	}
	entry.Flags |= PTESetC
	m.tlb.syncFlagAcrossLevels(ea, PTESetC)
}

// IBATUpdate rebuilds IBAT entry index from the SPR pair at (upperSPR,
// upperSPR+1) and schedules a deferred flush of BAT-derived TLB entries.
// The original dingusppc only scheduled this flush from DBATUpdate; the
// asymmetry was a bug (§9 Design Notes / REDESIGN FLAGS) since IBAT and
// DBAT-derived entries share the same TLBEFromBAT flag and flush
// mechanism — both updates schedule it here.
func (m *MMU) IBATUpdate(upperSPR int) {
	idx := ibatIndex(upperSPR)
	if updateFromSPR(&m.bat.IBAT[idx], m.cpu.SPR(upperSPR), m.cpu.SPR(upperSPR+1)) {
		m.ctrl.scheduleBATFlush()
	}
}

// DBATUpdate rebuilds DBAT entry index from the SPR pair and schedules a
// deferred flush of BAT-derived TLB entries.
func (m *MMU) DBATUpdate(upperSPR int) {
	idx := dbatIndex(upperSPR)
	if updateFromSPR(&m.bat.DBAT[idx], m.cpu.SPR(upperSPR), m.cpu.SPR(upperSPR+1)) {
		m.ctrl.scheduleBATFlush()
	}
}

// OnMSRChange must be called whenever MSR changes; it recomputes the
// active MMU mode and swaps the active TLB pair if needed (§4.6).
func (m *MMU) OnMSRChange() {
	m.ctrl.OnMSRChange()
}

// OnSDR1OrSRChange must be called whenever SDR1 or a segment register
// changes; it schedules a deferred flush of PAT-derived TLB entries
// (§4.6).
func (m *MMU) OnSDR1OrSRChange() {
	m.ctrl.OnSDR1OrSRChange()
}

// TLBInvalidate implements the tlbie instruction: it invalidates the
// single-page entry at ea across every MMU mode and both TLB levels
// (§4.6).
func (m *MMU) TLBInvalidate(ea uint32) {
	m.tlb.InvalidateEntry(ea)
}

// InvalidateCaches discards the physical dispatcher's last-used-region
// caches; call after the memory map's shape changes.
func (m *MMU) InvalidateCaches() {
	m.phys.InvalidateCaches()
}

// DMAWindow returns a direct host-memory slice for DMA-capable devices
// (§4.1); an unmapped or MMIO-backed request is a hard failure.
func (m *MMU) DMAWindow(pa uint32, length uint32) ([]byte, error) {
	return m.phys.DMAWindow(pa, length)
}

// debugFault is the internal panic value used to unwind out of a
// DebugRead access without disturbing the CPU's real exception state.
type debugFault struct {
	kind     ExceptionKind
	srr1Bits uint32
}

// debugRaiser wraps a CPUContext so that Raise unwinds locally via panic
// instead of delivering a real architectural exception. SetSPR/SPR/MSR/SR
// calls are forwarded to the embedded CPUContext unchanged, so DSISR/DAR
// are still visible to the recovering caller.
type debugRaiser struct {
	CPUContext
}

func (d debugRaiser) Raise(kind ExceptionKind, srr1Bits uint32) {
	panic(debugFault{kind: kind, srr1Bits: srr1Bits})
}

// DebugRead performs a read-only access for debuggers/monitors that must
// never divert guest execution: a translation fault is converted into a
// returned error instead of being raised through the CPU's exception
// upcall (§4.5 "DebugRead"). This is implemented as a locally-scoped
// redirection of the exception sink, not a global flag, so nested or
// concurrent debug reads on independent MMU instances never interfere
// with each other (§9 Design Notes).
func (m *MMU) DebugRead(ea uint32, size int) (v uint64, err error) {
	prevCPU := m.cpu
	wrapped := debugRaiser{prevCPU}
	m.cpu = wrapped
	prevPatCPU := m.pat.setCPU(wrapped)

	defer func() {
		m.cpu = prevCPU
		m.pat.setCPU(prevPatCPU)

		r := recover()
		if r == nil {
			return
		}
		df, ok := r.(debugFault)
		if !ok {
			panic(r)
		}
		if df.kind == ExceptISI {
			err = &ISIError{SRR1Bits: df.srr1Bits, EA: ea}
			return
		}
		err = &DSIError{DSISR: m.cpu.SPR(SprDSISR), DAR: m.cpu.SPR(SprDAR)}
	}()

	switch size {
	case 1:
		v = m.ReadU8(ea)
	case 2:
		v = m.ReadU16(ea)
	case 4:
		v = m.ReadU32(ea)
	default:
		v = m.ReadU64(ea)
	}
	return v, nil
}
