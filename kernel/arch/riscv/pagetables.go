package riscv

import (
	"log"

	"github.com/betrusted-io/xous-core-sub009/kernel/defs"
)

// A PageAllocator hands out zeroed physical pages on behalf of a process.
// It is implemented by the memory manager; the indirection keeps this
// package free of a dependency on ownership tracking and lets tests drive
// the walker with a mock.
type PageAllocator interface {
	AllocPage(pid defs.PID) (uint32, error)
}

// PageTables performs the two-level Sv32 walk against a mapping's tables.
// Leaf tables are created on demand through the allocator, and every freshly
// created leaf table is immediately aliased into the page table window so
// the kernel can keep writing leaf entries through a stable virtual address.
type PageTables struct {
	Mem   *Memory
	Hart  *Hart
	Alloc PageAllocator
}

func split(virt uint32) (vpn1, vpn0 uint32) {
	return virt >> 22 & 0x3ff, virt >> 12 & 0x3ff
}

// MapPage installs a leaf entry translating virt to phys under the given
// mapping. The Accessed, Dirty and Valid bits are always set on the result.
// Mappings below the user-area boundary made for a non-kernel process
// implicitly gain the User flag.
//
// Remapping the same (virt, phys) pair is idempotent. Remapping a valid
// entry to a different physical page is a kernel bug and panics, as does
// mapping physical page zero.
func (pt *PageTables) MapPage(
	mapping MemoryMapping,
	pid defs.PID,
	phys, virt uint32,
	flags Entry,
) error {
	if phys == 0 {
		log.Panicf("process %d tried to map physical page zero at 0x%08x",
			pid, virt)
	}

	if pid != defs.KernelPID && virt < defs.UserAreaEnd {
		flags |= EntryUser
	}

	leafTable, err := pt.leafTableFor(mapping, pid, virt)
	if err != nil {
		return err
	}

	vpn1, vpn0 := split(virt)
	entryAddr := leafTable + vpn0*defs.WordSize
	old := Entry(pt.Mem.ReadWord(entryAddr))
	if old.Valid() && old.Phys() != phys&^(defs.PageSize-1) {
		log.Panicf(
			"process %d: virt 0x%08x (l1 %d, l0 %d) is mapped to 0x%08x, refusing to remap to 0x%08x",
			pid, virt, vpn1, vpn0, old.Phys(), phys)
	}

	entry := NewEntry(phys, flags|EntryAccessed|EntryDirty|EntryValid)
	pt.Mem.WriteWord(entryAddr, uint32(entry))
	pt.Hart.FlushTLB()

	return nil
}

// UnmapPage clears the leaf entry for virt. It fails with a bad-address
// error if either level of the walk is not present.
func (pt *PageTables) UnmapPage(mapping MemoryMapping, virt uint32) error {
	entryAddr, err := pt.leafEntryAddr(mapping, virt)
	if err != nil {
		return err
	}

	pt.Mem.WriteWord(entryAddr, 0)
	pt.Hart.FlushTLB()

	return nil
}

// VirtToPhys resolves virt to its raw leaf entry under the given mapping.
func (pt *PageTables) VirtToPhys(mapping MemoryMapping, virt uint32) (Entry, error) {
	entryAddr, err := pt.leafEntryAddr(mapping, virt)
	if err != nil {
		return 0, err
	}

	return Entry(pt.Mem.ReadWord(entryAddr)), nil
}

// ReserveAddress pre-populates the leaf entry for virt with the given
// permission flags but deliberately leaves the Valid bit clear: the page is
// reserved, not backed. A page-fault handler later turns the reservation
// into a real mapping. An already-valid entry is left untouched.
func (pt *PageTables) ReserveAddress(
	mapping MemoryMapping,
	pid defs.PID,
	virt uint32,
	flags Entry,
) error {
	if pid != defs.KernelPID && virt < defs.UserAreaEnd {
		flags |= EntryUser
	}

	leafTable, err := pt.leafTableFor(mapping, pid, virt)
	if err != nil {
		return err
	}

	_, vpn0 := split(virt)
	entryAddr := leafTable + vpn0*defs.WordSize
	if Entry(pt.Mem.ReadWord(entryAddr)).Valid() {
		return nil
	}

	pt.Mem.WriteWord(entryAddr, uint32(flags&^EntryValid))
	pt.Hart.FlushTLB()

	return nil
}

// leafTableFor returns the physical address of the leaf table covering virt,
// creating it if the root entry is still invalid. A freshly created table is
// recursively mapped into the page table window; the recursion is bounded
// because the root entry is installed before the recursive call.
func (pt *PageTables) leafTableFor(
	mapping MemoryMapping,
	pid defs.PID,
	virt uint32,
) (uint32, error) {
	vpn1, _ := split(virt)
	rootEntryAddr := mapping.RootPhys() + vpn1*defs.WordSize
	rootEntry := Entry(pt.Mem.ReadWord(rootEntryAddr))

	if !rootEntry.Valid() {
		tablePhys, err := pt.Alloc.AllocPage(pid)
		if err != nil {
			return 0, err
		}

		rootEntry = NewEntry(tablePhys, EntryValid)
		pt.Mem.WriteWord(rootEntryAddr, uint32(rootEntry))

		window := defs.PageTableWindow + vpn1*defs.PageSize
		err = pt.MapPage(mapping, pid, tablePhys, window, EntryRead|EntryWrite)
		if err != nil {
			return 0, err
		}
	}

	return rootEntry.Phys(), nil
}

// leafEntryAddr walks both levels for virt, failing with a bad-address error
// if either level is not present.
func (pt *PageTables) leafEntryAddr(mapping MemoryMapping, virt uint32) (uint32, error) {
	vpn1, vpn0 := split(virt)

	rootEntry := Entry(pt.Mem.ReadWord(mapping.RootPhys() + vpn1*defs.WordSize))
	if !rootEntry.Valid() {
		return 0, defs.BadAddressError{Addr: virt}
	}

	entryAddr := rootEntry.Phys() + vpn0*defs.WordSize
	if !Entry(pt.Mem.ReadWord(entryAddr)).Valid() {
		return 0, defs.BadAddressError{Addr: virt}
	}

	return entryAddr, nil
}
