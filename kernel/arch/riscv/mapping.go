package riscv

import (
	"log"

	"github.com/betrusted-io/xous-core-sub009/kernel/defs"
)

// MemoryMapping wraps one satp value: mode bit 31, address-space ID (the
// owning PID) in bits 22-30, and the root page table's physical page number
// in bits 0-21. Every process owns exactly one MemoryMapping for its whole
// lifetime.
type MemoryMapping struct {
	satp uint32
}

const satpModeSv32 = uint32(1) << 31

// NewMapping builds the mapping for a process whose root page table lives at
// the given physical address.
func NewMapping(pid defs.PID, rootPhys uint32) MemoryMapping {
	return MemoryMapping{
		satp: satpModeSv32 | uint32(pid)<<22 | rootPhys>>defs.PageShift,
	}
}

// MappingFromSatp wraps a raw satp value, typically one prepared by the
// loader and delivered through the Init boot tag.
func MappingFromSatp(satp uint32) MemoryMapping {
	return MemoryMapping{satp: satp}
}

// Current returns the mapping that is live on the hart.
func Current(h *Hart) MemoryMapping {
	return MemoryMapping{satp: h.Satp}
}

// Activate makes this mapping the live translation context. The kernel text,
// the page table window, and the stack executing the switch are mapped
// identically in every address space, so the switch never invalidates the
// code performing it.
func (m MemoryMapping) Activate(h *Hart) {
	h.Satp = m.satp
	h.FlushTLB()
}

// PID extracts the address-space ID field. The field is 9 bits wide but the
// process table is smaller; an ID beyond it cannot name a process and must
// not be narrowed into one, so it is fatal.
func (m MemoryMapping) PID() defs.PID {
	asid := m.satp >> 22 & 0x1ff
	if asid > defs.MaxProcessCount {
		log.Panicf("satp 0x%08x carries address-space ID %d, beyond the process table",
			m.satp, asid)
	}

	return defs.PID(asid)
}

// RootPhys returns the physical address of the root page table.
func (m MemoryMapping) RootPhys() uint32 {
	return m.satp << 10 >> 10 << defs.PageShift
}

// Satp returns the raw register value.
func (m MemoryMapping) Satp() uint32 {
	return m.satp
}
