package services

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/betrusted-io/xous-core-sub009/kernel/arch/riscv"
	"github.com/betrusted-io/xous-core-sub009/kernel/bootargs"
	"github.com/betrusted-io/xous-core-sub009/kernel/defs"
	"github.com/betrusted-io/xous-core-sub009/kernel/mem"
)

const (
	ramBase = uint32(0x4000_0000)
	ramSize = uint32(0x0100_0000) // 16 MiB

	userEntry     = uint32(0x2000_0000)
	userSP        = uint32(0x2001_0000)
	userStackSize = defs.DefaultStackSize // 131072
)

// Root page tables sit in the top pages of RAM, the way the loader places
// them.
func rootPhys(pid defs.PID) uint32 {
	return ramBase + ramSize - uint32(pid)*defs.PageSize
}

func bootTwoProcesses() []bootargs.Tag {
	image := bootargs.MakeImageBuilder().
		WithRAM(ramBase, ramSize, "sram").
		WithInitPrograms([]bootargs.InitProgram{
			{
				Satp:  riscv.NewMapping(1, rootPhys(1)).Satp(),
				Entry: 0x0000_2000,
				SP:    0x0010_0000,
			},
			{
				Satp:  riscv.NewMapping(2, rootPhys(2)).Satp(),
				Entry: userEntry,
				SP:    userSP,
			},
		}).
		Bytes()

	return bootargs.Read(image)
}

var _ = Describe("SystemServices", func() {
	var (
		hart     *riscv.Hart
		manager  *mem.Manager
		services *SystemServices
	)

	BeforeEach(func() {
		hart = riscv.NewHart()
		manager = mem.MakeBuilder().WithHart(hart).Build()

		tags := bootTwoProcesses()
		manager.Init(tags)

		services = MakeBuilder().
			WithHart(hart).
			WithMemoryManager(manager).
			Build()
		services.Init(tags)
	})

	Context("initialization", func() {
		It("should create both initial processes in Setup", func() {
			kernel, err := services.GetProcess(1)
			Expect(err).ToNot(HaveOccurred())
			Expect(kernel.State).To(Equal(StateSetup))
			Expect(kernel.Parent).To(Equal(defs.PID(0)))

			user, err := services.GetProcess(2)
			Expect(err).ToNot(HaveOccurred())
			Expect(user.State).To(Equal(StateSetup))
			Expect(user.Parent).To(Equal(defs.KernelPID))
		})

		It("should not find processes that were never created", func() {
			_, err := services.GetProcess(3)
			Expect(err).To(MatchError(defs.ErrProcessNotFound))

			_, err = services.GetProcess(0)
			Expect(err).To(MatchError(defs.ErrProcessNotFound))
		})

		It("should claim the loader-built root page tables", func() {
			Expect(manager.OwnerOf(rootPhys(1))).To(Equal(defs.PID(1)))
			Expect(manager.OwnerOf(rootPhys(2))).To(Equal(defs.PID(2)))
		})

		It("should activate the kernel mapping", func() {
			Expect(services.CurrentPID()).To(Equal(defs.KernelPID))
		})

		It("should panic when two images carry the same PID", func() {
			fresh := MakeBuilder().
				WithHart(hart).
				WithMemoryManager(manager).
				Build()

			image := bootargs.MakeImageBuilder().
				WithRAM(ramBase, ramSize, "sram").
				WithInitPrograms([]bootargs.InitProgram{
					{Satp: riscv.NewMapping(1, rootPhys(1)).Satp()},
					{Satp: riscv.NewMapping(1, rootPhys(1)).Satp()},
				}).
				Bytes()

			Expect(func() { fresh.Init(bootargs.Read(image)) }).To(Panic())
		})
	})

	Context("current process consistency", func() {
		It("should panic when the hardware mapping disagrees with the table", func() {
			riscv.NewMapping(1, rootPhys(2)).Activate(hart)

			Expect(func() { services.CurrentPID() }).To(Panic())
		})

		It("should panic when the hardware mapping carries PID 0", func() {
			riscv.NewMapping(0, rootPhys(1)).Activate(hart)

			Expect(func() { services.CurrentPID() }).To(Panic())
		})
	})

	Context("resuming processes", func() {
		It("should first-dispatch a Setup process", func() {
			Expect(services.ResumePID(2, StateReady)).To(Succeed())

			user, err := services.GetProcess(2)
			Expect(err).ToNot(HaveOccurred())
			Expect(user.State).To(Equal(StateRunning))

			Expect(riscv.Current(hart)).To(Equal(user.Mapping))
			Expect(hart.Context.PC).To(Equal(userEntry))
			Expect(hart.Context.Registers[riscv.RegSP]).To(Equal(userSP))
		})

		It("should reserve the stack without backing it", func() {
			Expect(services.ResumePID(2, StateReady)).To(Succeed())

			user, _ := services.GetProcess(2)
			pt := manager.PageTables()

			// Every stack page is reserved in the page table but holds
			// no valid translation and owns no physical page.
			for virt := userSP - userStackSize - defs.PageSize; virt < userSP; virt += defs.PageSize {
				_, err := pt.VirtToPhys(user.Mapping, virt)
				Expect(err).To(MatchError(defs.ErrBadAddress))
			}

			vpn1 := (userSP - defs.PageSize) >> 22
			rootEntry := riscv.Entry(manager.Memory().ReadWord(
				user.Mapping.RootPhys() + vpn1*defs.WordSize))
			Expect(rootEntry.Valid()).To(BeTrue())
		})

		It("should bring a process back with its own context", func() {
			Expect(services.ResumePID(2, StateReady)).To(Succeed())
			userContext := hart.Context

			Expect(services.ResumePID(1, StateReady)).To(Succeed())
			Expect(hart.Context.PC).ToNot(Equal(userEntry))

			Expect(services.ResumePID(2, StateReady)).To(Succeed())
			Expect(hart.Context).To(Equal(userContext))

			user, _ := services.GetProcess(2)
			Expect(user.Saved).To(BeNil())
		})

		It("should demote the previously running process", func() {
			Expect(services.ResumePID(1, StateReady)).To(Succeed())
			Expect(services.ResumePID(2, StateReady)).To(Succeed())

			kernel, _ := services.GetProcess(1)
			Expect(kernel.State).To(Equal(StateReady))

			Expect(services.ResumePID(1, StateSleeping)).To(Succeed())
			user, _ := services.GetProcess(2)
			Expect(user.State).To(Equal(StateSleeping))
		})

		It("should not find a process that was never created", func() {
			Expect(services.ResumePID(9, StateReady)).
				To(MatchError(defs.ErrProcessNotFound))
		})
	})

	Context("callbacks", func() {
		BeforeEach(func() {
			Expect(services.ResumePID(2, StateReady)).To(Succeed())
			Expect(services.ResumePID(1, StateReady)).To(Succeed())
		})

		It("should inject a callback frame into the target", func() {
			services.MakeCallbackTo(2, 0x2080_0000, 3, 0xabcd)

			kernel, _ := services.GetProcess(1)
			Expect(kernel.State).To(Equal(StateReady))
			Expect(kernel.Saved).ToNot(BeNil())

			user, _ := services.GetProcess(2)
			Expect(user.State).To(Equal(StateRunning))
			Expect(riscv.Current(hart)).To(Equal(user.Mapping))

			Expect(hart.Context.PC).To(Equal(uint32(0x2080_0000)))
			Expect(hart.Context.Registers[riscv.RegRA]).To(Equal(defs.ReturnFromISR))
			Expect(hart.Context.Registers[riscv.RegSP]).To(Equal(defs.ExceptionStackTop))
			Expect(hart.Context.Registers[riscv.RegA0]).To(Equal(uint32(3)))
			Expect(hart.Context.Registers[riscv.RegA1]).To(Equal(uint32(0xabcd)))
		})

		It("should restore the saved context when the caller resumes", func() {
			kernelContext := hart.Context

			services.MakeCallbackTo(2, 0x2080_0000, 3, 0)
			Expect(services.ResumePID(1, StateReady)).To(Succeed())

			Expect(hart.Context).To(Equal(kernelContext))

			kernel, _ := services.GetProcess(1)
			Expect(kernel.Saved).To(BeNil())
		})

		It("should panic when a process calls back into itself", func() {
			Expect(func() {
				services.MakeCallbackTo(1, 0x2080_0000, 3, 0)
			}).To(Panic())
		})

		It("should panic when the target is Free", func() {
			Expect(func() {
				services.MakeCallbackTo(9, 0x2080_0000, 3, 0)
			}).To(Panic())
		})

		It("should panic when the target has never been dispatched", func() {
			fresh := MakeBuilder().
				WithHart(hart).
				WithMemoryManager(manager).
				Build()
			fresh.Init(bootTwoProcesses())

			Expect(func() {
				fresh.MakeCallbackTo(2, 0x2080_0000, 3, 0)
			}).To(Panic())
		})

		It("should panic when a context is already in flight", func() {
			services.processes[0].Saved = &riscv.Context{}

			Expect(func() {
				services.MakeCallbackTo(2, 0x2080_0000, 3, 0)
			}).To(Panic())
		})
	})

	Context("termination", func() {
		It("should free the slot and release every owned page", func() {
			Expect(services.ResumePID(2, StateReady)).To(Succeed())
			Expect(services.ResumePID(1, StateReady)).To(Succeed())

			Expect(services.Terminate(2)).To(Succeed())

			_, err := services.GetProcess(2)
			Expect(err).To(MatchError(defs.ErrProcessNotFound))
			Expect(manager.OwnerOf(rootPhys(2))).To(Equal(defs.PID(0)))
		})

		It("should panic when a process terminates itself", func() {
			Expect(services.ResumePID(1, StateReady)).To(Succeed())

			Expect(func() { _ = services.Terminate(1) }).To(Panic())
		})

		It("should not find an unknown process", func() {
			Expect(services.Terminate(9)).To(MatchError(defs.ErrProcessNotFound))
		})
	})
})
