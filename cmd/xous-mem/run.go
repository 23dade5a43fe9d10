package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/betrusted-io/xous-core-sub009/datarecording"
	"github.com/betrusted-io/xous-core-sub009/kernel"
	"github.com/betrusted-io/xous-core-sub009/kernel/ktrace"
	"github.com/betrusted-io/xous-core-sub009/monitoring"
)

var (
	runMonitorPort int
	runOpenBrowser bool
	runTracePath   string
)

var runCmd = &cobra.Command{
	Use:   "run <image>",
	Short: "Boot the kernel memory core from a boot argument image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		image, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		builder := kernel.MakeBuilder()

		tracePath := runTracePath
		if tracePath == "" {
			tracePath = os.Getenv("XOUS_TRACE")
		}
		if tracePath != "" {
			recorder := datarecording.New(tracePath)
			builder = builder.WithTracer(ktrace.NewDBTracer(recorder))
		}

		k := builder.Build()
		k.Boot(image)

		for _, stat := range k.Mem.RegionStats() {
			fmt.Printf("region %s at 0x%08x: %d pages used, %d free\n",
				stat.Name, stat.Start, stat.PagesUsed, stat.PagesFree)
		}

		for pid, p := range k.Services.Processes() {
			fmt.Printf("process %3d: %-8s parent %d\n", pid, p.State, p.Parent)
		}

		if !cmd.Flags().Changed("monitor") {
			if env := os.Getenv("XOUS_MONITOR_PORT"); env != "" {
				runMonitorPort, _ = strconv.Atoi(env)
			}
		}

		if runMonitorPort != 0 {
			monitor := monitoring.NewMonitor().WithPortNumber(runMonitorPort)
			monitor.RegisterKernel(k)
			monitor.StartServer()

			if runOpenBrowser {
				monitor.OpenBrowser()
			}

			select {}
		}

		atexit.Exit(0)
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&runMonitorPort,
		"monitor", 0, "serve the inspection API on this port")
	runCmd.Flags().BoolVar(&runOpenBrowser,
		"open", false, "open the browser at the monitor URL")
	runCmd.Flags().StringVar(&runTracePath,
		"trace", "", "record kernel events to this SQLite database")

	rootCmd.AddCommand(runCmd)
}
