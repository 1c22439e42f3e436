package ppcmmu

// fakeCPU is a minimal CPUContext double for unit tests: it records
// raised exceptions and scheduled context-sync actions instead of acting
// on them, so tests can assert on intent without a real interpreter.
type fakeCPU struct {
	msr  uint32
	sprs map[int]uint32
	srs  [16]uint32
	pc   uint32

	raised      []raisedException
	syncActions []func()
}

type raisedException struct {
	kind ExceptionKind
	srr1 uint32
}

func newFakeCPU() *fakeCPU {
	return &fakeCPU{sprs: make(map[int]uint32)}
}

func (c *fakeCPU) MSR() uint32             { return c.msr }
func (c *fakeCPU) SPR(n int) uint32        { return c.sprs[n] }
func (c *fakeCPU) SetSPR(n int, v uint32)  { c.sprs[n] = v }
func (c *fakeCPU) SR(n int) uint32         { return c.srs[n] }
func (c *fakeCPU) PC() uint32              { return c.pc }
func (c *fakeCPU) Raise(kind ExceptionKind, srr1Bits uint32) {
	c.raised = append(c.raised, raisedException{kind: kind, srr1: srr1Bits})
}
func (c *fakeCPU) AddContextSyncAction(fn func()) {
	c.syncActions = append(c.syncActions, fn)
}

// runSyncActions drains and runs every pending context-sync action, as
// the real CPU would do at its next context-synchronizing instruction.
func (c *fakeCPU) runSyncActions() {
	actions := c.syncActions
	c.syncActions = nil
	for _, fn := range actions {
		fn()
	}
}

// fakeMemMap is a linear-scan MemoryMap double over an explicit region
// list.
type fakeMemMap struct {
	regions []Region
}

func (m *fakeMemMap) FindRange(pa uint32) (*Region, bool) {
	for i := range m.regions {
		if m.regions[i].Contains(pa) {
			return &m.regions[i], true
		}
	}
	return nil, false
}

func ramRegion(start, end uint32) Region {
	return Region{Start: start, End: end, Type: RegionRAM, Host: make([]byte, int(end-start)+1)}
}

// fakeDevice is a Device double that records writes and returns a fixed
// value on every read.
type fakeDevice struct {
	readValue  uint64
	reads      []uint32
	lastWrite  fakeWrite
	writeCount int
}

type fakeWrite struct {
	offset uint32
	value  uint64
	size   int
}

func (d *fakeDevice) Read(base, offset uint32, size int) uint64 {
	d.reads = append(d.reads, offset)
	return d.readValue
}

func (d *fakeDevice) Write(base, offset uint32, value uint64, size int) {
	d.writeCount++
	d.lastWrite = fakeWrite{offset: offset, value: value, size: size}
}
