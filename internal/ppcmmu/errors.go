package ppcmmu

import "fmt"

// ISIError models an instruction-side translation fault or no-execute
// violation, reported via SRR1 bits (§4.3, §7).
type ISIError struct {
	SRR1Bits uint32
	EA       uint32
}

func (e *ISIError) Error() string {
	return fmt.Sprintf("ISI: ea=0x%08x srr1=0x%08x", e.EA, e.SRR1Bits)
}

// DSIError models a data-side translation or protection fault, reported
// via DSISR/DAR (§4.3, §4.5, §7).
type DSIError struct {
	DSISR uint32
	DAR   uint32
}

func (e *DSIError) Error() string {
	return fmt.Sprintf("DSI: dar=0x%08x dsisr=0x%08x", e.DAR, e.DSISR)
}

// AlignmentError is reserved for disallowed misalignment kinds (§7). The
// core decomposes every unaligned and cross-page access, 8-byte accesses
// crossing a page boundary included (§4.5), so no path in this package
// returns it.
type AlignmentError struct {
	EA   uint32
	Size int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("alignment: ea=0x%08x size=%d", e.EA, e.Size)
}

// UnmappedPhysicalError is non-architectural. DMAWindow returns it for an
// unmapped or MMIO-backed range. Ordinary reads and writes recover from
// unmapped addresses locally (reads return all-ones, writes are dropped),
// and so does DebugRead: it returns errors only for ISI/DSI faults, never
// an UnmappedPhysicalError (§7).
type UnmappedPhysicalError struct {
	PA   uint32
	Size int
	Op   string // "read" or "write"
}

func (e *UnmappedPhysicalError) Error() string {
	return fmt.Sprintf("unmapped physical %s at 0x%08x (size %d)", e.Op, e.PA, e.Size)
}

// InternalError marks an invariant violation. It is always fatal: callers
// should let it propagate rather than attempt recovery.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal: " + e.Msg
}
