package ppcmmu

// Profile holds optional, per-core MMU/TLB counters. Unlike the
// dingusppc original this mirrors (which kept these as process-global
// variables behind MMU_PROFILING/TLB_PROFILING #ifdefs), the counters
// live in a Profile value that each MMU is given by NewMMU, so that
// multiple cores can be exercised independently in the same process (§9
// Design Notes).
type Profile struct {
	DataMemReads   uint64
	IOMemReads     uint64
	DataMemWrites  uint64
	IOMemWrites    uint64
	ExecReads      uint64
	BATTranslation uint64
	PATTranslation uint64

	UnalignedReads       uint64
	UnalignedWrites      uint64
	UnalignedCrossPageR  uint64
	UnalignedCrossPageW  uint64

	PrimaryTLBHits   uint64
	SecondaryTLBHits uint64
	TLBRefills       uint64
	TLBReplacements  uint64
}

// Reset zeroes every counter.
func (p *Profile) Reset() {
	*p = Profile{}
}
