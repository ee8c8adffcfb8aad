package main

import (
	"github.com/spf13/cobra"

	"github.com/ccbr/server-reports/internal/usage"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show local filesystem usage",
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")
		runOne(usage.New(), jsonOut)
	},
}

func init() {
	usageCmd.Flags().Bool("json", false, "Output the report payload as JSON")
}
