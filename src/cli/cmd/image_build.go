package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sofmeright/slipway/src/build"
	"github.com/sofmeright/slipway/src/output"
	"github.com/sofmeright/slipway/src/registry"
)

var (
	ibLocal     bool
	ibPlatforms []string
	ibTags      []string
	ibDryRun    bool
)

var imageBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build and push the container image",
	Long: `Build the container image using docker buildx.

Resolves tags from git version info, pushes to configured registries, and
reports the resulting digest.`,
	RunE: runImageBuild,
}

func init() {
	imageBuildCmd.Flags().BoolVar(&ibLocal, "local", false, "build for current platform, load into daemon, no push")
	imageBuildCmd.Flags().StringSliceVar(&ibPlatforms, "platform", nil, "override platforms (comma-separated)")
	imageBuildCmd.Flags().StringSliceVar(&ibTags, "tag", nil, "additional tag templates")
	imageBuildCmd.Flags().BoolVar(&ibDryRun, "dry-run", false, "show the request without executing")

	imageCmd.AddCommand(imageBuildCmd)
}

func runImageBuild(cmd *cobra.Command, args []string) error {
	rootDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	if len(args) > 0 {
		rootDir = args[0]
	}

	ctx := context.Background()
	color := output.UseColor()
	w := os.Stdout

	vi := detectVersion(rootDir)
	output.ContextBlock(w, pipelineContextKV(vi))

	push := cfg.Build.PushEnabled() && !ibLocal
	req := buildRequest(ibPlatforms, ibTags, push, vi)
	if ibLocal && len(req.Platforms) > 1 {
		req.Platforms = req.Platforms[:1]
	}

	if ibDryRun {
		fmt.Printf("context:    %s\n", req.ContextDir)
		fmt.Printf("dockerfile: %s\n", req.Dockerfile)
		fmt.Printf("target:     %s\n", req.Target)
		fmt.Printf("platforms:  %v\n", req.Platforms)
		fmt.Printf("tags:       %v\n", req.Tags)
		fmt.Printf("push:       %v\n", req.Push)
		return nil
	}

	output.SectionStart(w, "sw_build", "Build")
	start := time.Now()

	bx := newBuilder()
	if req.Push {
		for _, reg := range cfg.Build.Registries {
			user, pass := registry.ResolveCredentials(reg.Credentials)
			if user == "" {
				continue
			}
			if err := bx.Login(ctx, reg.URL, user, pass); err != nil {
				output.SectionEnd(w, "sw_build")
				return err
			}
		}
	}

	result, err := bx.Build(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		sec := output.NewSection(w, "Build", elapsed, color)
		output.RowStatus(sec, "status", err.Error(), "failed", color)
		sec.Close()
		output.SectionEnd(w, "sw_build")
		return err
	}

	sec := output.NewSection(w, "Build", elapsed, color)
	sec.Row("%-12s%s", "platforms", strings.Join(req.Platforms, ","))
	for _, tag := range result.Tags {
		sec.Row("%-12s%s %s", "tag", tag, output.StatusIcon("success", color))
	}
	sec.Row("%-12s%s", "digest", result.Digest)
	if result.Pushed {
		sec.Row("%-12spushed", "registry")
	} else {
		sec.Row("%-12sloaded into daemon", "registry")
	}
	sec.Close()
	output.SectionEnd(w, "sw_build")

	printBuildRefs(w, result)
	return nil
}

func printBuildRefs(w *os.File, result *build.Result) {
	fmt.Fprintf(w, "\n    Image References\n")
	for _, tag := range result.Tags {
		fmt.Fprintf(w, "    → %s\n", tag)
	}
	fmt.Fprintln(w)
}
