package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	jpEnv   string
	jpImage string
)

var jobPlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run the spec and show what would change",
	RunE:  runJobPlan,
}

func init() {
	jobPlanCmd.Flags().StringVar(&jpEnv, "env", "", "target environment (required)")
	jobPlanCmd.Flags().StringVar(&jpImage, "image", "", "image reference to substitute (default: keep template's)")
	jobPlanCmd.MarkFlagRequired("env")

	jobCmd.AddCommand(jobPlanCmd)
}

func runJobPlan(cmd *cobra.Command, args []string) error {
	spec, err := renderForEnv(jpEnv, jpImage)
	if err != nil {
		return err
	}

	client, _, err := newCluster(jpEnv)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := context.Background()
	job, err := client.ParseJob(ctx, spec)
	if err != nil {
		return err
	}

	plan, err := client.Plan(ctx, job)
	if err != nil {
		return err
	}

	if plan.Diff != nil {
		fmt.Printf("job %q: %s\n", job.ID, plan.Diff.Type)
	} else {
		fmt.Printf("job %q: no diff returned\n", job.ID)
	}
	if plan.Warnings != "" {
		fmt.Fprintf(os.Stderr, "warnings: %s\n", plan.Warnings)
	}
	if len(plan.FailedTGAllocs) > 0 {
		for tg := range plan.FailedTGAllocs {
			fmt.Fprintf(os.Stderr, "placement would fail for task group %q\n", tg)
		}
		return fmt.Errorf("plan: %d task group(s) would fail placement", len(plan.FailedTGAllocs))
	}
	return nil
}
