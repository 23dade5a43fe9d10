// Package defs holds the types and constants shared by every kernel
// subsystem: process identifiers, the physical page geometry, and the fixed
// virtual memory layout.
package defs

// PID identifies one process. PIDs are 1-based indexes into the process
// table; PID 0 is reserved and never names a live process.
type PID uint8

// KernelPID is the PID of the kernel itself. The kernel is always the first
// initial program in the boot argument stream.
const KernelPID PID = 1

// MaxProcessCount is the number of slots in the process table. A PID is
// always in [1, MaxProcessCount].
const MaxProcessCount = 254

// Physical page geometry for the Sv32 translation scheme.
const (
	PageSize        = 4096
	PageShift       = 12
	WordSize        = 4
	EntriesPerTable = PageSize / WordSize
)

// Fixed virtual memory layout. The page table window and everything above it
// is mapped identically in every address space so that a mapping switch never
// invalidates the code performing the switch.
const (
	// UserAreaEnd is the first virtual address that is never
	// user-accessible. Mappings below this boundary made on behalf of a
	// non-kernel process implicitly gain the User flag.
	UserAreaEnd uint32 = 0xff00_0000

	// PageTableWindow is the base of the 4 MiB window where every leaf
	// page table is aliased, one page per level-1 slot, so the kernel can
	// write leaf entries through a stable virtual address.
	PageTableWindow uint32 = 0xff40_0000

	// PageTableRoot is where the root page table of the active address
	// space is aliased.
	PageTableRoot uint32 = 0xff80_0000

	// ReturnFromISR is the trampoline a callback frame returns to when an
	// injected upcall finishes.
	ReturnFromISR uint32 = 0xff80_2000

	// ExceptionStackTop is the stack used while running an injected
	// callback frame.
	ExceptionStackTop uint32 = 0xffff_0000
)

// Per-process defaults used when a process does not specify its own layout.
const (
	DefaultBase        uint32 = 0x6000_0000
	DefaultMessageBase uint32 = 0xa000_0000
	DefaultHeapBase    uint32 = 0x2000_0000
	MaxHeapSize        uint32 = 0x0020_0000
	DefaultStackSize   uint32 = 0x0002_0000
)
