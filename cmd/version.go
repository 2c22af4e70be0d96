package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var version = "dev"
var commitHash string

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of audsync",
	Long:  `All software has versions. This is audsync's.`,
	Run: func(cmd *cobra.Command, args []string) {
		printVersion()
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}

func printVersion() {
	fmt.Printf("audsync Version: %s, %s/%s, Commit: %s\n",
		version, runtime.GOOS, runtime.GOARCH, commitHash)
}
