// Package cli holds small helpers shared by CLI commands.
package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build metadata, set via -ldflags at release time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewVersionCommand returns the `version` subcommand for the named binary.
func NewVersionCommand(executable string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit %s, built %s, %s/%s)\n",
				executable, Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
		},
	}
}
