package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sofmeright/slipway/src/jobspec"
)

var (
	jvEnv   string
	jvImage string
)

var jobValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the rendered spec against the cluster schema",
	Long:  "Render the job template and run the cluster's schema check. No side effects.",
	RunE:  runJobValidate,
}

func init() {
	jobValidateCmd.Flags().StringVar(&jvEnv, "env", "", "target environment (required)")
	jobValidateCmd.Flags().StringVar(&jvImage, "image", "", "image reference to substitute (default: keep template's)")
	jobValidateCmd.MarkFlagRequired("env")

	jobCmd.AddCommand(jobValidateCmd)
}

func runJobValidate(cmd *cobra.Command, args []string) error {
	spec, err := renderForEnv(jvEnv, jvImage)
	if err != nil {
		return err
	}

	client, cc, err := newCluster(jvEnv)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := context.Background()
	job, err := client.ParseJob(ctx, spec)
	if err != nil {
		return err
	}

	warnings, err := client.Validate(ctx, job)
	if err != nil {
		return err
	}
	if warnings != "" {
		fmt.Fprintf(os.Stderr, "warnings: %s\n", warnings)
	}
	fmt.Printf("job %q valid for %s\n", job.ID, cc.Name)
	return nil
}

// renderForEnv renders the template for an environment. An empty image ref
// keeps the template's placeholder, so validate/plan can run pre-build.
func renderForEnv(env, imageRef string) (string, error) {
	tmpl, err := loadTemplate()
	if err != nil {
		return "", err
	}

	vars, err := loadEnvVars(env)
	if err != nil {
		return "", err
	}

	if imageRef == "" {
		imageRef = cfg.Deploy.ImagePlaceholder
	}

	rootDir, _ := os.Getwd()
	return jobspec.Render(tmpl, jobspec.RenderOptions{
		Placeholder: cfg.Deploy.ImagePlaceholder,
		ImageRef:    imageRef,
		Version:     detectVersion(rootDir),
		Vars:        vars,
	})
}
