package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sofmeright/slipway/src/jobspec"
)

var (
	jrImage  string
	jrEnv    string
	jrOutput string
)

var jobRenderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the job template into a concrete spec",
	Long: `Substitute the image placeholder and template variables into the job
template and print (or write) the resulting spec. The rendered spec is
syntax-checked; nothing is sent to the cluster.`,
	RunE: runJobRender,
}

func init() {
	jobRenderCmd.Flags().StringVar(&jrImage, "image", "", "image reference to substitute (required)")
	jobRenderCmd.Flags().StringVar(&jrEnv, "env", "", "environment whose var file to apply")
	jobRenderCmd.Flags().StringVarP(&jrOutput, "output", "o", "-", "write rendered spec here ('-' for stdout)")
	jobRenderCmd.MarkFlagRequired("image")

	jobCmd.AddCommand(jobRenderCmd)
}

func runJobRender(cmd *cobra.Command, args []string) error {
	tmpl, err := loadTemplate()
	if err != nil {
		return err
	}

	vars, err := loadEnvVars(jrEnv)
	if err != nil {
		return err
	}

	rootDir, _ := os.Getwd()
	spec, err := jobspec.Render(tmpl, jobspec.RenderOptions{
		Placeholder: cfg.Deploy.ImagePlaceholder,
		ImageRef:    jrImage,
		Version:     detectVersion(rootDir),
		Vars:        vars,
	})
	if err != nil {
		return err
	}

	if jrOutput == "-" || jrOutput == "" {
		fmt.Print(spec)
		return nil
	}
	if err := os.WriteFile(jrOutput, []byte(spec), 0o644); err != nil {
		return fmt.Errorf("writing rendered spec: %w", err)
	}

	if verbose {
		refs, _ := jobspec.ImageRefs(tmpl.Path, []byte(spec))
		for _, ref := range refs {
			fmt.Fprintf(os.Stderr, "image: %s\n", ref)
		}
	}
	return nil
}
