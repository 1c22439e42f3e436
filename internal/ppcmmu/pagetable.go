package ppcmmu

// PTE bits: pteValid is the V bit of word 0 (which holds V|VSID|H|API,
// checked via the composed "pte_check" pattern in searchPTEG below);
// pteR and pteC are in word 1 (which holds RPN|R|C|WIMG|PP).
const (
	pteValid uint32 = 1 << 31
	pteR     uint32 = 1 << 8
	pteC     uint32 = 1 << 7
)

// PATResult is the outcome of a hashed page-table walk (§4.3).
type PATResult struct {
	OK             bool // false if Translate raised an exception instead of resolving
	PA             uint32
	ProtCode       uint8 // (key<<2)|pp
	PTECAlreadySet bool
	PTEAddr        uint32 // physical address of the PTE's second word
}

// PageTableWalker performs the hashed inverted page-table walk (C3).
type PageTableWalker struct {
	cpu  CPUContext
	phys *Dispatcher
	prof *Profile
}

// NewPageTableWalker constructs a walker bound to cpu (for SR/SDR1) and
// phys (for PTEG memory access).
func NewPageTableWalker(cpu CPUContext, phys *Dispatcher, prof *Profile) *PageTableWalker {
	return &PageTableWalker{cpu: cpu, phys: phys, prof: prof}
}

// calcPTEGAddr combines SDR1 with a hash value to produce the physical
// address of a 64-byte PTEG, per §4.3's bit formula (taken bit-for-bit
// from the original calc_pteg_addr).
func (w *PageTableWalker) calcPTEGAddr(hash uint32) uint32 {
	sdr1 := w.cpu.SPR(SprSDR1)

	pteg := sdr1 & 0xFE000000
	pteg |= (sdr1 & 0x01FF0000) | (((sdr1 & 0x1FF) << 16) & ((hash & 0x7FC00) << 6))
	pteg |= (hash & 0x3FF) << 6
	return pteg
}

// searchPTEG scans the 8 PTEs of the PTEG at ptegAddr for one matching
// vsid/h/api. It returns the physical address of the matching PTE's
// second word and true on a hit.
func (w *PageTableWalker) searchPTEG(ptegAddr uint32, vsid uint32, api uint32, h uint32) (uint32, bool) {
	check := pteValid | (vsid << 7) | (h << 6) | api

	for i := uint32(0); i < 8; i++ {
		entryAddr := ptegAddr + i*8
		word0 := uint32(w.phys.Read(KindPageTable, entryAddr, 4))
		if word0 == check {
			return entryAddr + 4, true
		}
	}
	return 0, false
}

// Translate performs the hashed page-table walk for ea (§4.3, steps 1-9).
// isFetch distinguishes an instruction fetch (for no-execute and ISI vs
// DSI reporting); isWrite distinguishes a data store (for C-bit updates
// and protection checks).
func (w *PageTableWalker) Translate(ea uint32, isFetch bool, pr bool, isWrite bool) PATResult {
	sr := w.cpu.SR(int(ea>>28) & 0xF)

	if sr&0x80000000 != 0 {
		// Direct-store segments are unsupported (§3, §9 open question):
		// raise DSI with DSISR bit 0x80000000 rather than aborting.
		w.cpu.SetSPR(SprDSISR, 0x80000000)
		w.cpu.SetSPR(SprDAR, ea)
		w.cpu.Raise(ExceptDSI, 0)
		return PATResult{}
	}

	if sr&0x10000000 != 0 && isFetch {
		w.cpu.Raise(ExceptISI, 0x10000000)
		return PATResult{}
	}

	api := (ea >> 22) & 0x3F
	pageIndex := (ea >> 12) & 0xFFFF
	vsid := sr & 0x00FFFFFF
	hash1 := (sr & 0x7FFFF) ^ pageIndex

	pteAddr, ok := w.searchPTEG(w.calcPTEGAddr(hash1), vsid, api, 0)
	if !ok {
		pteAddr, ok = w.searchPTEG(w.calcPTEGAddr(^hash1), vsid, api, 1)
	}
	if !ok {
		w.raiseMiss(ea, isFetch, isWrite)
		return PATResult{}
	}

	word1 := uint32(w.phys.Read(KindPageTable, pteAddr, 4))

	ks := (sr >> 30) & 1
	kp := (sr >> 29) & 1
	key := (kp & boolBit(pr)) | (ks & boolBit(!pr))
	pp := word1 & 3

	if (key != 0 && (pp == 0 || (pp == 1 && isWrite))) || (pp == 3 && isWrite) {
		w.raiseProtection(ea, isFetch, isWrite)
		return PATResult{}
	}

	// Update R always, C on write, in place in the guest PTE.
	newWord1 := word1 | pteR
	if isWrite {
		newWord1 |= pteC
	}
	if newWord1 != word1 {
		w.phys.Write(KindPageTable, pteAddr, 4, uint64(newWord1))
	}

	if w.prof != nil {
		w.prof.PATTranslation++
	}

	return PATResult{
		OK:             true,
		PA:             (word1 & 0xFFFFF000) | (ea & 0x00000FFF),
		ProtCode:       uint8((key << 2) | pp),
		PTECAlreadySet: word1&pteC != 0,
		PTEAddr:        pteAddr,
	}
}

// setCPU swaps the CPUContext the walker delivers exceptions through,
// returning the previous one. Used by DebugRead to temporarily redirect
// exception delivery without disturbing the walker's other state.
func (w *PageTableWalker) setCPU(cpu CPUContext) CPUContext {
	prev := w.cpu
	w.cpu = cpu
	return prev
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (w *PageTableWalker) raiseMiss(ea uint32, isFetch, isWrite bool) {
	if isFetch {
		w.cpu.Raise(ExceptISI, 0x40000000)
		return
	}
	dsisr := uint32(0x40000000)
	if isWrite {
		dsisr |= 1 << 25
	}
	w.cpu.SetSPR(SprDSISR, dsisr)
	w.cpu.SetSPR(SprDAR, ea)
	w.cpu.Raise(ExceptDSI, 0)
}

func (w *PageTableWalker) raiseProtection(ea uint32, isFetch, isWrite bool) {
	if isFetch {
		w.cpu.Raise(ExceptISI, 0x08000000)
		return
	}
	dsisr := uint32(0x08000000)
	if isWrite {
		dsisr |= 1 << 25
	}
	w.cpu.SetSPR(SprDSISR, dsisr)
	w.cpu.SetSPR(SprDAR, ea)
	w.cpu.Raise(ExceptDSI, 0)
}
