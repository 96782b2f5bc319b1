package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/memoir/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "memoir %s\n", version.GitRelease)
		fmt.Fprintf(w, "  commit  %s (%s)\n", version.GitCommit, version.GitCommitDate)
		fmt.Fprintf(w, "  built   %s\n", version.GoInfo)
	},
}
