// Package cli implements the peernet command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "peernet",
	Short: "peernet maintains a pool of peer connections",
	Long: `peernet runs a peer-to-peer node: it accepts inbound peers up to a
capacity and keeps its outbound pool filled from a seed list.

Start a node with "peernet serve", then inspect it with "peernet status"
and "peernet peers".`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
