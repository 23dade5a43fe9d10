package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/betrusted-io/xous-core-sub009/kernel/arch/riscv"
	"github.com/betrusted-io/xous-core-sub009/kernel/bootargs"
	"github.com/betrusted-io/xous-core-sub009/kernel/defs"
)

var (
	mkimageRAMStart  uint32
	mkimageRAMSize   uint32
	mkimageProcesses int
)

var mkimageCmd = &cobra.Command{
	Use:   "mkimage <output>",
	Short: "Synthesize a boot argument image",
	Long: "Synthesize a boot argument image with empty page tables. The " +
		"root page table for process N is placed in the N-th page from the " +
		"top of RAM; the kernel claims those pages at boot.",
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		programs := make([]bootargs.InitProgram, 0, mkimageProcesses)
		for i := 1; i <= mkimageProcesses; i++ {
			rootPhys := mkimageRAMStart + mkimageRAMSize - uint32(i)*defs.PageSize
			programs = append(programs, bootargs.InitProgram{
				Satp:  riscv.NewMapping(defs.PID(i), rootPhys).Satp(),
				Entry: 0x2050_0000,
				SP:    0x2010_0000,
			})
		}

		image := bootargs.MakeImageBuilder().
			WithRAM(mkimageRAMStart, mkimageRAMSize, "sram").
			WithInitPrograms(programs).
			Bytes()

		return os.WriteFile(args[0], image, 0o644)
	},
}

func init() {
	mkimageCmd.Flags().Uint32Var(&mkimageRAMStart,
		"ram-start", 0x4000_0000, "physical RAM base address")
	mkimageCmd.Flags().Uint32Var(&mkimageRAMSize,
		"ram-size", 16*1024*1024, "physical RAM size in bytes")
	mkimageCmd.Flags().IntVar(&mkimageProcesses,
		"processes", 2, "number of initial processes, kernel included")

	rootCmd.AddCommand(mkimageCmd)
}
