package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// SetBuildInfo records the values injected into main via ldflags.
func SetBuildInfo(version, commit, date string) {
	Version, Commit, BuildDate = version, commit, date
	rootCmd.Version = version
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "csvpipe %s\ncommit: %s\nbuilt: %s\ngo: %s\n",
			Version, Commit, BuildDate, runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("csvpipe {{.Version}}\n")
}
