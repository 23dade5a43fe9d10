// Package riscv models the RV32 Sv32 translation hardware the kernel runs
// on: physical RAM, the per-hart CSR state, and the two-level page table
// format. Page tables are addressed by physical page number into the RAM
// arena with explicit bounds checks, never through raw pointers.
package riscv

import (
	"log"

	"github.com/betrusted-io/xous-core-sub009/kernel/defs"
)

// Memory is the primary physical RAM arena. All page tables live here;
// extra regions (MMIO and the like) are ownable but their contents are not
// modeled.
type Memory struct {
	base uint32
	data []byte
}

// NewMemory creates a RAM arena covering [base, base+size).
func NewMemory(base, size uint32) *Memory {
	if base%defs.PageSize != 0 || size%defs.PageSize != 0 {
		log.Panicf("RAM extent 0x%08x+0x%x is not page-aligned", base, size)
	}

	return &Memory{base: base, data: make([]byte, size)}
}

// Base returns the first physical address of the arena.
func (m *Memory) Base() uint32 {
	return m.base
}

// Size returns the arena size in bytes.
func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

// Contains reports whether the physical address falls inside the arena.
func (m *Memory) Contains(paddr uint32) bool {
	return paddr >= m.base && paddr-m.base < uint32(len(m.data))
}

func (m *Memory) offset(paddr uint32) uint32 {
	if !m.Contains(paddr) {
		log.Panicf("physical address 0x%08x is outside RAM [0x%08x, 0x%08x)",
			paddr, m.base, m.base+uint32(len(m.data)))
	}

	return paddr - m.base
}

// ReadWord returns the machine word at the physical address.
func (m *Memory) ReadWord(paddr uint32) uint32 {
	off := m.offset(paddr)

	return uint32(m.data[off]) |
		uint32(m.data[off+1])<<8 |
		uint32(m.data[off+2])<<16 |
		uint32(m.data[off+3])<<24
}

// WriteWord stores a machine word at the physical address.
func (m *Memory) WriteWord(paddr, value uint32) {
	off := m.offset(paddr)

	m.data[off] = byte(value)
	m.data[off+1] = byte(value >> 8)
	m.data[off+2] = byte(value >> 16)
	m.data[off+3] = byte(value >> 24)
}

// ZeroPage clears the page containing the physical address. Freshly
// allocated pages are always zeroed before they are handed out so stale data
// never leaks between processes.
func (m *Memory) ZeroPage(paddr uint32) {
	off := m.offset(paddr &^ (defs.PageSize - 1))
	for i := uint32(0); i < defs.PageSize; i++ {
		m.data[off+i] = 0
	}
}
