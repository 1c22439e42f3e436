package ppcmmu

// crossesPage reports whether a size-byte access starting at ea spills
// into the following page (§4.5).
func crossesPage(ea uint32, size int) bool {
	return (ea&pageMask)+uint32(size) > 0x1000
}

// hostSlice resolves a host-backed TLB entry hit to the backing region's
// byte slice at the matching physical offset. pa := ea + HostOffset is
// constant across the page (§3: BAT blocks and PTE pages are always
// at least 4 KiB), so this is a single addition plus a subtraction.
func (m *MMU) hostSlice(entry *TLBEntry, ea uint32) []byte {
	pa := uint32(int64(ea) + entry.HostOffset)
	return entry.Region.Host[pa-entry.Region.Start:]
}

// ReadU8/16/32/64 and WriteU8/16/32/64 are the per-width virtual access
// entry points (C5). Each performs TLB lookup, alignment classification
// and (for writes) writability/Changed-bit handling, per §4.5.

// ReadU8 reads one byte from ea.
func (m *MMU) ReadU8(ea uint32) uint64 { return m.readWidth(ea, 1) }

// ReadU16 reads a big-endian halfword from ea, decomposing cross-page
// unaligned accesses into single-byte reads (§4.5, §8 decomposition law).
func (m *MMU) ReadU16(ea uint32) uint64 { return m.readWidth(ea, 2) }

// ReadU32 reads a big-endian word from ea.
func (m *MMU) ReadU32(ea uint32) uint64 { return m.readWidth(ea, 4) }

// ReadU64 reads a big-endian doubleword from ea.
func (m *MMU) ReadU64(ea uint32) uint64 { return m.readWidth(ea, 8) }

// WriteU8 writes one byte to ea.
func (m *MMU) WriteU8(ea uint32, v uint64) { m.writeWidth(ea, 1, v) }

// WriteU16 writes a big-endian halfword to ea.
func (m *MMU) WriteU16(ea uint32, v uint64) { m.writeWidth(ea, 2, v) }

// WriteU32 writes a big-endian word to ea.
func (m *MMU) WriteU32(ea uint32, v uint64) { m.writeWidth(ea, 4, v) }

// WriteU64 writes a big-endian doubleword to ea.
func (m *MMU) WriteU64(ea uint32, v uint64) { m.writeWidth(ea, 8, v) }

func (m *MMU) readWidth(ea uint32, size int) uint64 {
	if size > 1 && crossesPage(ea, size) {
		if m.prof != nil {
			m.prof.UnalignedCrossPageR++
		}
		var result uint64
		for i := 0; i < size; i++ {
			result = (result << 8) | m.readWidth(ea+uint32(i), 1)
		}
		return result
	}

	entry := m.lookupData(ea, false)

	if entry.Flags&PageIO != 0 {
		if m.prof != nil {
			m.prof.IOMemReads++
		}
		return entry.Region.Dev.Read(entry.Region.Start, ea-entry.Region.Start, size)
	}

	if m.prof != nil {
		m.prof.DataMemReads++
		if size > 1 && ea&(uint32(size)-1) != 0 {
			m.prof.UnalignedReads++
		}
	}

	return readBE(m.hostSlice(entry, ea), size)
}

func (m *MMU) writeWidth(ea uint32, size int, value uint64) {
	if size > 1 && crossesPage(ea, size) {
		if m.prof != nil {
			m.prof.UnalignedCrossPageW++
		}
		shift := uint((size - 1) * 8)
		for i := 0; i < size; i++ {
			m.writeWidth(ea+uint32(i), 1, (value>>shift)&0xFF)
			shift -= 8
		}
		return
	}

	entry := m.lookupData(ea, true)

	if entry.Flags&PageWritable == 0 {
		dsisr := uint32(0x08000000) | (1 << 25)
		m.cpu.SetSPR(SprDSISR, dsisr)
		m.cpu.SetSPR(SprDAR, ea)
		m.cpu.Raise(ExceptDSI, 0)
		return
	}

	if entry.Flags&PTESetC == 0 {
		m.setChangedBit(ea, entry)
	}

	if entry.Flags&PageIO != 0 {
		if m.prof != nil {
			m.prof.IOMemWrites++
		}
		entry.Region.Dev.Write(entry.Region.Start, ea-entry.Region.Start, value, size)
		return
	}

	if m.prof != nil {
		m.prof.DataMemWrites++
		if size > 1 && ea&(uint32(size)-1) != 0 {
			m.prof.UnalignedWrites++
		}
	}

	writeBE(m.hostSlice(entry, ea), size, value)
}
