package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var jsEnv string

var jobStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Single rollout status poll for a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobStatus,
}

func init() {
	jobStatusCmd.Flags().StringVar(&jsEnv, "env", "", "target environment (required)")
	jobStatusCmd.MarkFlagRequired("env")

	jobCmd.AddCommand(jobStatusCmd)
}

func runJobStatus(cmd *cobra.Command, args []string) error {
	client, _, err := newCluster(jsEnv)
	if err != nil {
		return err
	}
	defer client.Close()

	status, detail, err := client.Status(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s (%s)\n", args[0], status, detail)
	return nil
}
