package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var smartCmd = &cobra.Command{
	Use:   "smart",
	Short: "Collect SMART data from all devices",
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")

		r, err := buildSmart(loadConfig())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		runOne(r, jsonOut)
	},
}

func init() {
	smartCmd.Flags().Bool("json", false, "Output the report payload as JSON")
}
