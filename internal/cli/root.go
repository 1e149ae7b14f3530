package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "substrate",
	Short: "Dual-substrate memory for streaming symbolic observation",
	Long:  "Substrate fuses an exact prime-factor membership ledger with a bounded continuous cache. Single Go binary, checkpointed to SQLite.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(statsCmd)
}
