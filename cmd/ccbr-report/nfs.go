package main

import (
	"github.com/spf13/cobra"
)

var nfsCmd = &cobra.Command{
	Use:   "nfs",
	Short: "Check NFS mounts for staleness",
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")
		runOne(buildNFS(loadConfig()), jsonOut)
	},
}

func init() {
	nfsCmd.Flags().Bool("json", false, "Output the report payload as JSON")
}
