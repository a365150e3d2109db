// Command vaultctl inspects genesis files, prices deposits offline and talks
// to a running vaultledger over gRPC.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "vaultctl",
	Short:         "Operate and inspect a VaultLedger deployment",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
