package riscv

// Register indexes into Context.Registers. The zero register is not stored,
// so register xN lives at index N-1.
const (
	RegRA = 0 // x1, return address
	RegSP = 1 // x2, stack pointer
	RegA0 = 9 // x10, first argument
	RegA1 = 10
)

// A Context is the general-purpose register file plus program counter of one
// execution context.
type Context struct {
	Registers [31]uint32
	PC        uint32
}

// A Hart is the per-core hardware state the memory core touches: the satp
// CSR, the live trap context, and a TLB flush counter. The counter stands in
// for the sfence.vma instruction; tests use it to assert that every
// page-table mutation is followed by a flush before control returns.
type Hart struct {
	Satp    uint32
	Context Context

	TLBFlushes uint64
}

// NewHart creates a hart with no active mapping.
func NewHart() *Hart {
	return &Hart{}
}

// FlushTLB invalidates all cached translations.
func (h *Hart) FlushTLB() {
	h.TLBFlushes++
}
