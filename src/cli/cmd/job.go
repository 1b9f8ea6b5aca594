package cmd

import "github.com/spf13/cobra"

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Job spec operations against the cluster",
}

func init() {
	rootCmd.AddCommand(jobCmd)
}
