package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "oxen",
	Short: "Oxen is a version control system for large datasets",
	Long: `Oxen versions large datasets the way git versions source code: content-addressed
storage, a Merkle commit history, and a wire protocol for push/pull sync, with
row-level diffing for tabular files on top.`,
}

// Execute runs the root command, printing any returned error to
// stderr before exiting non-zero.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
