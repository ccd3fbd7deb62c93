package main

import (
	"github.com/spf13/cobra"

	"github.com/producthub/producthub/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.GetFullVersion())
	},
}
