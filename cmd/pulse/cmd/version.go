package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Populated at build time via -ldflags. The defaults identify a local build.
var (
	Version = "dev"
	Commit  = "none"
	Built   = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show build and runtime details",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "pulse %s (commit %s, built %s)\n", Version, Commit, Built)
		fmt.Fprintf(out, "%s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
