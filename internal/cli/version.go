package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Overridden at build time with -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("knightmint %s (commit=%s, built=%s)\n", version, commit, date)
	},
}
