package riscv

import "github.com/betrusted-io/xous-core-sub009/kernel/defs"

// Entry is one Sv32 page table entry: a physical page number in bits 10 and
// up, flag bits below. An all-zero entry always means "unmapped". A valid
// entry with none of R/W/X set is a pointer to the next-level table.
type Entry uint32

// Page table entry flag bits.
const (
	EntryValid    Entry = 1 << 0
	EntryRead     Entry = 1 << 1
	EntryWrite    Entry = 1 << 2
	EntryExecute  Entry = 1 << 3
	EntryUser     Entry = 1 << 4
	EntryGlobal   Entry = 1 << 5
	EntryAccessed Entry = 1 << 6
	EntryDirty    Entry = 1 << 7
)

const entryFlagMask Entry = 0x3ff

// NewEntry builds an entry pointing at the given physical address with the
// given flags.
func NewEntry(phys uint32, flags Entry) Entry {
	return Entry(phys>>defs.PageShift)<<10 | (flags & entryFlagMask)
}

// Valid reports whether the entry's valid bit is set. No other bit of an
// invalid entry may be trusted.
func (e Entry) Valid() bool {
	return e&EntryValid != 0
}

// Has reports whether all the given flag bits are set.
func (e Entry) Has(flags Entry) bool {
	return e&flags == flags
}

// PPN returns the physical page number field.
func (e Entry) PPN() uint32 {
	return uint32(e >> 10)
}

// Phys returns the page-aligned physical address the entry points at.
func (e Entry) Phys() uint32 {
	return e.PPN() << defs.PageShift
}
