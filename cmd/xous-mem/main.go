// Command xous-mem builds, inspects, and boots kernel boot-argument images.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "xous-mem",
	Short: "Inspect and boot kernel memory-core images",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// Optional .env with XOUS_MONITOR_PORT / XOUS_TRACE defaults.
		_ = godotenv.Load()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
