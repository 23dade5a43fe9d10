package mem

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/betrusted-io/xous-core-sub009/kernel/arch/riscv"
	"github.com/betrusted-io/xous-core-sub009/kernel/bootargs"
	"github.com/betrusted-io/xous-core-sub009/kernel/defs"
	"github.com/betrusted-io/xous-core-sub009/kernel/ktrace"
)

const (
	ramBase  = uint32(0x4000_0000)
	ramSize  = uint32(0x0004_0000) // 64 pages
	dispBase = uint32(0xd000_0000)
	dispSize = uint32(0x0000_8000) // 8 pages
)

func bootTags() []bootargs.Tag {
	image := bootargs.MakeImageBuilder().
		WithRAM(ramBase, ramSize, "sram").
		WithExtraRegions([]bootargs.Region{
			{Start: dispBase, Size: dispSize, Name: bootargs.FourCC("disp")},
		}).
		Bytes()

	return bootargs.Read(image)
}

var _ = Describe("Manager", func() {
	var (
		hart    *riscv.Hart
		manager *Manager
		root    uint32
	)

	BeforeEach(func() {
		hart = riscv.NewHart()
		manager = MakeBuilder().WithHart(hart).Build()
		manager.Init(bootTags())

		var err error
		root, err = manager.AllocPage(defs.KernelPID)
		Expect(err).ToNot(HaveOccurred())
		riscv.NewMapping(defs.KernelPID, root).Activate(hart)
	})

	Context("initialization", func() {
		It("should panic when initialized twice", func() {
			Expect(func() { manager.Init(bootTags()) }).To(Panic())
		})

		It("should panic when the first tag is not the RAM descriptor", func() {
			fresh := MakeBuilder().WithHart(hart).Build()
			image := bootargs.MakeImageBuilder().
				WithExtraRegions(nil).
				WithRAM(ramBase, ramSize, "sram").
				Bytes()

			Expect(func() { fresh.Init(bootargs.Read(image)) }).To(Panic())
		})

		It("should size the ownership table across all regions", func() {
			Expect(manager.OwnerOf(dispBase)).To(Equal(defs.PID(0)))
			Expect(manager.OwnerOf(root)).To(Equal(defs.KernelPID))
		})
	})

	Context("page ownership", func() {
		It("should refuse to claim a page owned by another process", func() {
			phys := ramBase + 0x1_0000

			Expect(manager.ClaimPage(phys, 3)).To(Succeed())
			Expect(manager.ClaimPage(phys, 4)).To(MatchError(defs.ErrMemoryInUse))
		})

		It("should allow reclaiming a page by its owner", func() {
			phys := ramBase + 0x1_0000

			Expect(manager.ClaimPage(phys, 3)).To(Succeed())
			Expect(manager.ClaimPage(phys, 3)).To(Succeed())
		})

		It("should hand a released page to a new owner", func() {
			phys := ramBase + 0x1_0000

			Expect(manager.ClaimPage(phys, 3)).To(Succeed())
			Expect(manager.ReleasePage(phys, 3)).To(Succeed())
			Expect(manager.ClaimPage(phys, 4)).To(Succeed())
		})

		It("should track extra-region pages in the same table", func() {
			phys := dispBase + 0x1000

			Expect(manager.ClaimPage(phys, 2)).To(Succeed())
			Expect(manager.OwnerOf(phys)).To(Equal(defs.PID(2)))
			Expect(manager.ClaimPage(phys, 3)).To(MatchError(defs.ErrMemoryInUse))
		})

		It("should reject unaligned addresses", func() {
			err := manager.ClaimPage(ramBase+0x123, 2)
			Expect(err).To(MatchError(defs.ErrBadAlignment))
		})

		It("should reject addresses outside every region", func() {
			err := manager.ClaimPage(0x9000_0000, 2)
			Expect(err).To(MatchError(defs.ErrBadAddress))
		})
	})

	Context("allocation", func() {
		It("should alloc every free page and then run out", func() {
			free := manager.FreePages()
			var last uint32

			for i := 0; i < free; i++ {
				phys, err := manager.AllocPage(2)
				Expect(err).ToNot(HaveOccurred())
				last = phys
			}

			_, err := manager.AllocPage(2)
			Expect(err).To(MatchError(defs.ErrOutOfMemory))

			Expect(manager.ReleasePage(last, 2)).To(Succeed())
			phys, err := manager.AllocPage(2)
			Expect(err).ToNot(HaveOccurred())
			Expect(phys).To(Equal(last))
		})

		It("should return zeroed pages", func() {
			// Dirty a page that is still free, then allocate until the
			// cursor reaches it.
			target := ramBase + 0x3000
			manager.Memory().WriteWord(target+8, 0xdead_beef)

			var phys uint32
			for i := 0; i < manager.FreePages() && phys != target; i++ {
				var err error
				phys, err = manager.AllocPage(2)
				Expect(err).ToNot(HaveOccurred())
			}

			Expect(phys).To(Equal(target))
			Expect(manager.Memory().ReadWord(target + 8)).To(Equal(uint32(0)))
		})

		It("should advance the cursor instead of rescanning", func() {
			first, err := manager.AllocPage(2)
			Expect(err).ToNot(HaveOccurred())

			Expect(manager.ReleasePage(first, 2)).To(Succeed())

			second, err := manager.AllocPage(2)
			Expect(err).ToNot(HaveOccurred())
			Expect(second).To(Equal(first + defs.PageSize))
		})

		It("should panic when asked to allocate for PID 0", func() {
			Expect(func() { _, _ = manager.AllocPage(0) }).To(Panic())
		})
	})

	Context("mapping ranges", func() {
		It("should map a physical range into the current address space", func() {
			phys := ramBase + 0x2_0000
			virt := uint32(0x0010_0000)

			addr, err := manager.MapRange(phys, virt, 2*defs.PageSize,
				riscv.EntryRead|riscv.EntryWrite)
			Expect(err).ToNot(HaveOccurred())
			Expect(addr).To(Equal(virt))

			Expect(manager.OwnerOf(phys)).To(Equal(defs.KernelPID))
			Expect(manager.OwnerOf(phys + defs.PageSize)).To(Equal(defs.KernelPID))

			mapping := riscv.Current(hart)
			entry, err := manager.PageTables().VirtToPhys(mapping, virt+defs.PageSize)
			Expect(err).ToNot(HaveOccurred())
			Expect(entry.Phys()).To(Equal(phys + defs.PageSize))
		})

		It("should roll back everything when a page in the range is taken", func() {
			phys := ramBase + 0x2_0000
			virt := uint32(0x0010_0000)

			// The middle page of the range belongs to someone else.
			Expect(manager.ClaimPage(phys+defs.PageSize, 7)).To(Succeed())

			_, err := manager.MapRange(phys, virt, 3*defs.PageSize, riscv.EntryRead)
			Expect(err).To(MatchError(defs.ErrMemoryInUse))

			Expect(manager.OwnerOf(phys)).To(Equal(defs.PID(0)))
			Expect(manager.OwnerOf(phys + 2*defs.PageSize)).To(Equal(defs.PID(0)))
			Expect(manager.OwnerOf(phys + defs.PageSize)).To(Equal(defs.PID(7)))

			mapping := riscv.Current(hart)
			_, err = manager.PageTables().VirtToPhys(mapping, virt)
			Expect(err).To(MatchError(defs.ErrBadAddress))
		})

		It("should reject null pointers", func() {
			_, err := manager.MapRange(0, 0x0010_0000, defs.PageSize, riscv.EntryRead)
			Expect(err).To(MatchError(defs.ErrBadAddress))

			_, err = manager.MapRange(ramBase, 0, defs.PageSize, riscv.EntryRead)
			Expect(err).To(MatchError(defs.ErrBadAddress))
		})

		It("should reject unaligned arguments without mutating anything", func() {
			free := manager.FreePages()

			_, err := manager.MapRange(ramBase+0x2_0000, 0x0010_0100,
				defs.PageSize, riscv.EntryRead)
			Expect(err).To(MatchError(defs.ErrBadAlignment))

			_, err = manager.MapRange(ramBase+0x2_0000, 0x0010_0000,
				defs.PageSize+1, riscv.EntryRead)
			Expect(err).To(MatchError(defs.ErrBadAlignment))

			Expect(manager.FreePages()).To(Equal(free))
		})
	})

	Context("reserving ranges", func() {
		It("should create leaf tables but claim no backing pages", func() {
			virt := uint32(0x0010_0000)
			free := manager.FreePages()

			Expect(manager.ReserveRange(virt, 4*defs.PageSize,
				riscv.EntryRead|riscv.EntryWrite)).To(Succeed())

			// Two pages went to leaf tables (one covering the range,
			// one covering the page-table window), none to backing.
			Expect(manager.FreePages()).To(Equal(free - 2))

			mapping := riscv.Current(hart)
			_, err := manager.PageTables().VirtToPhys(mapping, virt)
			Expect(err).To(MatchError(defs.ErrBadAddress))
		})

		It("should reject unaligned arguments", func() {
			Expect(manager.ReserveRange(0x0010_0100, defs.PageSize,
				riscv.EntryRead)).To(MatchError(defs.ErrBadAlignment))
			Expect(manager.ReserveRange(0x0010_0000, defs.PageSize-4,
				riscv.EntryRead)).To(MatchError(defs.ErrBadAlignment))
		})
	})

	Context("unmapping", func() {
		It("should release ownership and clear the translation", func() {
			phys := ramBase + 0x2_0000
			virt := uint32(0x0010_0000)

			_, err := manager.MapRange(phys, virt, defs.PageSize, riscv.EntryRead)
			Expect(err).ToNot(HaveOccurred())

			Expect(manager.UnmapPage(virt)).To(Succeed())
			Expect(manager.OwnerOf(phys)).To(Equal(defs.PID(0)))

			_, err = manager.PageTables().VirtToPhys(riscv.Current(hart), virt)
			Expect(err).To(MatchError(defs.ErrBadAddress))
		})

		It("should fail on a page that was never mapped", func() {
			Expect(manager.UnmapPage(0x0020_0000)).To(MatchError(defs.ErrBadAddress))
		})
	})

	Context("process teardown", func() {
		It("should release every page the process owns", func() {
			for i := uint32(0); i < 3; i++ {
				Expect(manager.ClaimPage(ramBase+0x1_0000+i*defs.PageSize, 9)).
					To(Succeed())
			}
			Expect(manager.ClaimPage(dispBase, 9)).To(Succeed())

			Expect(manager.ReleaseAllPages(9)).To(Equal(4))
			Expect(manager.OwnerOf(ramBase + 0x1_0000)).To(Equal(defs.PID(0)))
			Expect(manager.OwnerOf(dispBase)).To(Equal(defs.PID(0)))
		})
	})

	Context("tracing", func() {
		It("should report allocations to the tracer", func() {
			ctrl := gomock.NewController(GinkgoT())
			tracer := NewMockTracer(ctrl)
			manager.tracer = tracer

			var seen ktrace.Event
			tracer.EXPECT().
				Record(gomock.Any()).
				Do(func(e ktrace.Event) { seen = e })

			phys, err := manager.AllocPage(5)
			Expect(err).ToNot(HaveOccurred())

			Expect(seen.Kind).To(Equal(ktrace.KindAlloc))
			Expect(seen.PID).To(Equal(defs.PID(5)))
			Expect(seen.Phys).To(Equal(phys))
			Expect(seen.ID).ToNot(BeEmpty())
		})
	})
})
