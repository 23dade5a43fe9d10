package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/betrusted-io/xous-core-sub009/kernel/bootargs"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <image>",
	Short: "Print the tags of a boot argument image",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		for _, t := range bootargs.Read(data) {
			fmt.Printf("%s (%d bytes)\n", t.NameString(), len(t.Data))

			switch t.Name {
			case bootargs.TagXArg:
				ram := bootargs.ParseRAM(t)
				fmt.Printf("    version %d, RAM 0x%08x + 0x%x\n",
					ram.Version, ram.Start, ram.Size)
			case bootargs.TagMREx:
				for _, r := range bootargs.ParseExtraRegions(t) {
					fmt.Printf("    region 0x%08x + 0x%x\n", r.Start, r.Size)
				}
			case bootargs.TagInit:
				for _, p := range bootargs.ParseInitPrograms(t) {
					fmt.Printf("    satp 0x%08x, entry 0x%08x, sp 0x%08x\n",
						p.Satp, p.Entry, p.SP)
				}
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
