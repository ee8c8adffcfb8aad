package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccbr/server-reports/internal/raid"
)

var raidCmd = &cobra.Command{
	Use:   "raid",
	Short: "Show the RAID topology",
	Long: `Detects the RAID management CLI present on this host (` +
		fmt.Sprint(raid.ManagerNames()) + `),
parses its output and shows the linked adapter / array / drive topology.`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")
		manager, _ := cmd.Flags().GetString("manager")

		cfg := loadConfig()
		if manager != "" {
			cfg.RAID.Manager = manager
		}
		r, err := buildRAID(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		runOne(r, jsonOut)
	},
}

func init() {
	raidCmd.Flags().Bool("json", false, "Output the report payload as JSON")
	raidCmd.Flags().String("manager", "", "RAID manager to use instead of autodetection")
}
