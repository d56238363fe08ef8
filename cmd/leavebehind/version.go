package main

import (
	"fmt"

	"github.com/ajramos/leavebehind/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Show version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.GetDetailedVersionString())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
