// Package mem tracks the ownership of every physical page in the system and
// provides the only sanctioned way to allocate, reserve, map, and unmap
// memory.
package mem

import (
	"log"

	"github.com/betrusted-io/xous-core-sub009/kernel/arch/riscv"
	"github.com/betrusted-io/xous-core-sub009/kernel/bootargs"
	"github.com/betrusted-io/xous-core-sub009/kernel/defs"
	"github.com/betrusted-io/xous-core-sub009/kernel/ktrace"
)

// A Region is one ownable physical address range: the primary RAM block or
// one of the extra regions declared by the loader.
type Region struct {
	Start uint32
	Size  uint32
	Name  uint32
}

// Pages returns the number of pages the region covers.
func (r Region) Pages() int {
	return int(r.Size / defs.PageSize)
}

// Manager owns the global page ownership table: one owner PID per physical
// page across all regions, zero meaning free. It is a singleton by
// construction; nothing here is locked, because on the reference hardware it
// is only ever touched from trap handlers that cannot re-enter each other.
type Manager struct {
	hart   *riscv.Hart
	tracer ktrace.Tracer

	ram *riscv.Memory
	pt  *riscv.PageTables

	// regions[0] is always the primary RAM block. The ownership table is
	// indexed by walking regions in declaration order and accumulating
	// size/PageSize; allocation and lookup must agree on this walk.
	regions  []Region
	owners   []defs.PID
	ramPages int

	// lastAlloc remembers where the previous scan stopped so steady-state
	// allocation does not rescan the whole table.
	lastAlloc int
}

// Init parses the boot argument stream, sizes the ownership table from the
// primary RAM descriptor and the extra regions, and builds the RAM arena.
// The first tag must be the XArg RAM descriptor. Calling Init twice is
// fatal.
func (m *Manager) Init(tags []bootargs.Tag) {
	if m.regions != nil {
		log.Panic("memory manager is already initialized")
	}

	if len(tags) == 0 || tags[0].Name != bootargs.TagXArg {
		log.Panic("first boot argument tag is not the XArg RAM descriptor")
	}

	ram := bootargs.ParseRAM(tags[0])
	m.regions = []Region{{Start: ram.Start, Size: ram.Size, Name: ram.Name}}

	for _, t := range tags[1:] {
		if t.Name != bootargs.TagMREx {
			continue
		}

		for _, r := range bootargs.ParseExtraRegions(t) {
			m.regions = append(m.regions,
				Region{Start: r.Start, Size: r.Size, Name: r.Name})
		}
	}

	total := 0
	for _, r := range m.regions {
		total += r.Pages()
	}

	m.owners = make([]defs.PID, total)
	m.ramPages = m.regions[0].Pages()
	m.ram = riscv.NewMemory(ram.Start, ram.Size)
	m.pt = &riscv.PageTables{Mem: m.ram, Hart: m.hart, Alloc: m}
}

// Memory returns the primary RAM arena.
func (m *Manager) Memory() *riscv.Memory {
	return m.ram
}

// PageTables returns the page table walker bound to this manager.
func (m *Manager) PageTables() *riscv.PageTables {
	return m.pt
}

// pageIndex resolves a page-aligned physical address to its slot in the
// ownership table, walking the regions in declaration order.
func (m *Manager) pageIndex(phys uint32) (int, error) {
	offset := 0
	for _, r := range m.regions {
		if phys >= r.Start && phys-r.Start < r.Size {
			return offset + int((phys-r.Start)/defs.PageSize), nil
		}

		offset += r.Pages()
	}

	return 0, defs.BadAddressError{Addr: phys}
}

// AllocPage hands out one free page of primary RAM to the given process.
// The page is zeroed before it is returned. The scan starts where the last
// one stopped and wraps around once; if no free page is found the system is
// out of memory.
func (m *Manager) AllocPage(pid defs.PID) (uint32, error) {
	if pid == 0 {
		log.Panic("tried to allocate a page for PID 0")
	}

	for i := 0; i < m.ramPages; i++ {
		slot := (m.lastAlloc + i) % m.ramPages
		if m.owners[slot] != 0 {
			continue
		}

		m.owners[slot] = pid
		m.lastAlloc = slot + 1

		phys := m.regions[0].Start + uint32(slot)*defs.PageSize
		m.ram.ZeroPage(phys)

		ktrace.Emit(m.tracer, ktrace.Event{
			Kind: ktrace.KindAlloc, PID: pid, Phys: phys, Size: defs.PageSize,
		})

		return phys, nil
	}

	return 0, defs.ErrOutOfMemory
}

// ClaimPage marks a page as owned by the given process. Claiming a page the
// process already owns is idempotent; claiming a page owned by anyone else
// fails.
func (m *Manager) ClaimPage(phys uint32, pid defs.PID) error {
	return m.claimOrRelease(phys, pid, ktrace.KindClaim)
}

// ReleasePage returns a page owned by the given process to the free pool.
func (m *Manager) ReleasePage(phys uint32, pid defs.PID) error {
	return m.claimOrRelease(phys, pid, ktrace.KindRelease)
}

func (m *Manager) claimOrRelease(phys uint32, pid defs.PID, kind ktrace.Kind) error {
	if phys%defs.PageSize != 0 {
		return defs.BadAlignmentError{Value: phys}
	}

	slot, err := m.pageIndex(phys)
	if err != nil {
		return err
	}

	if m.owners[slot] != 0 && m.owners[slot] != pid {
		return defs.MemoryInUseError{Addr: phys, Owner: m.owners[slot]}
	}

	if kind == ktrace.KindClaim {
		m.owners[slot] = pid
	} else {
		m.owners[slot] = 0
	}

	ktrace.Emit(m.tracer, ktrace.Event{
		Kind: kind, PID: pid, Phys: phys, Size: defs.PageSize,
	})

	return nil
}

// OwnerOf returns the PID owning the page at the given physical address, or
// zero if the page is free or the address unknown.
func (m *Manager) OwnerOf(phys uint32) defs.PID {
	slot, err := m.pageIndex(phys)
	if err != nil {
		return 0
	}

	return m.owners[slot]
}

// FreePages counts the free pages of primary RAM.
func (m *Manager) FreePages() int {
	free := 0
	for i := 0; i < m.ramPages; i++ {
		if m.owners[i] == 0 {
			free++
		}
	}

	return free
}

// MapRange maps the contiguous physical range [phys, phys+size) into the
// current process's address space at virt. The operation is transactional:
// if any page fails to claim or map, every page already handled is unmapped
// and released before the error is returned.
func (m *Manager) MapRange(phys, virt, size uint32, flags riscv.Entry) (uint32, error) {
	if phys == 0 {
		return 0, defs.BadAddressError{Addr: phys}
	}

	if virt == 0 {
		return 0, defs.BadAddressError{Addr: virt}
	}

	if err := checkAlignment(phys, virt, size); err != nil {
		return 0, err
	}

	mapping := riscv.Current(m.hart)
	pid := mapping.PID()

	for off := uint32(0); off < size; off += defs.PageSize {
		err := m.mapOne(mapping, pid, phys+off, virt+off, flags)
		if err != nil {
			m.rollbackRange(mapping, pid, phys, virt, off)
			return 0, err
		}
	}

	ktrace.Emit(m.tracer, ktrace.Event{
		Kind: ktrace.KindMap, PID: pid, Phys: phys, Virt: virt, Size: size,
	})

	return virt, nil
}

func (m *Manager) mapOne(
	mapping riscv.MemoryMapping,
	pid defs.PID,
	phys, virt uint32,
	flags riscv.Entry,
) error {
	if err := m.ClaimPage(phys, pid); err != nil {
		return err
	}

	if err := m.pt.MapPage(mapping, pid, phys, virt, flags); err != nil {
		// The claim succeeded but the mapping did not; hand the page
		// back so the rollback below only has to cover whole pages.
		if relErr := m.ReleasePage(phys, pid); relErr != nil {
			log.Panicf("failed to release page 0x%08x during rollback: %v",
				phys, relErr)
		}

		return err
	}

	return nil
}

// rollbackRange undoes the first done bytes of a partially applied MapRange.
func (m *Manager) rollbackRange(
	mapping riscv.MemoryMapping,
	pid defs.PID,
	phys, virt, done uint32,
) {
	for off := uint32(0); off < done; off += defs.PageSize {
		if err := m.pt.UnmapPage(mapping, virt+off); err != nil {
			log.Panicf("failed to unmap 0x%08x during rollback: %v",
				virt+off, err)
		}

		if err := m.ReleasePage(phys+off, pid); err != nil {
			log.Panicf("failed to release 0x%08x during rollback: %v",
				phys+off, err)
		}
	}
}

// ReserveRange reserves the virtual range [virt, virt+size) in the current
// process's address space without backing it with physical pages. Leaf page
// tables are created as needed, but no entry becomes valid and no page is
// claimed.
func (m *Manager) ReserveRange(virt, size uint32, flags riscv.Entry) error {
	if err := checkAlignment(virt, size, 0); err != nil {
		return err
	}

	mapping := riscv.Current(m.hart)
	pid := mapping.PID()

	for off := uint32(0); off < size; off += defs.PageSize {
		err := m.pt.ReserveAddress(mapping, pid, virt+off, flags)
		if err != nil {
			return err
		}
	}

	ktrace.Emit(m.tracer, ktrace.Event{
		Kind: ktrace.KindReserve, PID: pid, Virt: virt, Size: size,
	})

	return nil
}

// UnmapPage removes the translation for virt from the current process's
// address space and releases ownership of the backing page.
func (m *Manager) UnmapPage(virt uint32) error {
	mapping := riscv.Current(m.hart)
	pid := mapping.PID()

	entry, err := m.pt.VirtToPhys(mapping, virt)
	if err != nil {
		return err
	}

	if err := m.ReleasePage(entry.Phys(), pid); err != nil {
		return err
	}

	if err := m.pt.UnmapPage(mapping, virt); err != nil {
		return err
	}

	ktrace.Emit(m.tracer, ktrace.Event{
		Kind: ktrace.KindUnmap, PID: pid, Phys: entry.Phys(), Virt: virt,
		Size: defs.PageSize,
	})

	return nil
}

// ReleaseAllPages returns every page owned by the given process to the free
// pool. It is the teardown sweep behind process termination; the address
// space being dismantled is never the active one, so no unmapping is needed.
func (m *Manager) ReleaseAllPages(pid defs.PID) int {
	released := 0
	for i := range m.owners {
		if m.owners[i] == pid {
			m.owners[i] = 0
			released++
		}
	}

	ktrace.Emit(m.tracer, ktrace.Event{
		Kind: ktrace.KindTerminate, PID: pid,
		Size: uint32(released) * defs.PageSize,
	})

	return released
}

func checkAlignment(values ...uint32) error {
	for _, v := range values {
		if v%defs.PageSize != 0 {
			return defs.BadAlignmentError{Value: v}
		}
	}

	return nil
}

// A RegionStat summarizes the occupancy of one region for inspection.
type RegionStat struct {
	Name      string
	Start     uint32
	Size      uint32
	PagesUsed int
	PagesFree int
}

// RegionStats reports per-region page occupancy.
func (m *Manager) RegionStats() []RegionStat {
	stats := make([]RegionStat, 0, len(m.regions))

	offset := 0
	for _, r := range m.regions {
		stat := RegionStat{
			Name:  fourCCString(r.Name),
			Start: r.Start,
			Size:  r.Size,
		}

		for i := 0; i < r.Pages(); i++ {
			if m.owners[offset+i] == 0 {
				stat.PagesFree++
			} else {
				stat.PagesUsed++
			}
		}

		offset += r.Pages()
		stats = append(stats, stat)
	}

	return stats
}

func fourCCString(name uint32) string {
	return string([]byte{
		byte(name), byte(name >> 8), byte(name >> 16), byte(name >> 24),
	})
}
