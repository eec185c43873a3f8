package main

import (
	"os"

	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "clusterwork",
	Short: "Fan work out to a cluster of compute workers",
	Long: `clusterwork splits a request into N independent tasks, sends each one to a
worker node with the compute role (round-robin), and answers with one status
per task in task order once every task has settled.

A task that fails or does not answer within the task timeout is reported as
"Task #<index> failed" without affecting the others.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "front-end base URL for client commands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workCmd)
	rootCmd.AddCommand(membersCmd)
	rootCmd.AddCommand(versionCmd)
}
