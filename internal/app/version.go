package app

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion records build information injected through ldflags.
func SetVersion(v, c, d string) {
	if v != "" {
		version = v
	}
	if c != "" {
		commit = c
	}
	if d != "" {
		date = d
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  checkArgs(cobra.NoArgs),
	// Printing the version never needs configuration.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pkgimpact %s\ncommit: %s\nbuilt: %s\ngo: %s\n",
			version, commit, date, runtime.Version())
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
