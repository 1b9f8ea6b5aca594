package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sofmeright/slipway/src/build"
	"github.com/sofmeright/slipway/src/deploy"
	"github.com/sofmeright/slipway/src/gitver"
	"github.com/sofmeright/slipway/src/nomad"
	"github.com/sofmeright/slipway/src/output"
	"github.com/sofmeright/slipway/src/preflight"
	"github.com/sofmeright/slipway/src/registry"
)

var (
	dpEnvs          []string
	dpPlatforms     []string
	dpSkipBuild     string
	dpSkipPreflight bool
	dpRevert        bool
	dpInterval      time.Duration
	dpTimeout       time.Duration
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Build, publish, and roll out to one or more environments",
	Long: `Run the full pipeline: build and push the image, rewrite the job spec
with the new reference, validate it, submit it, and poll the rollout until it
is healthy or the deadline passes.

The image is built once; each --env then deploys as an isolated attempt.
Cancelling slipway stops the polling, not the cluster-side rollout.`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().StringSliceVar(&dpEnvs, "env", nil, "target environment(s) (required)")
	deployCmd.Flags().StringSliceVar(&dpPlatforms, "platform", nil, "override build platforms")
	deployCmd.Flags().StringVar(&dpSkipBuild, "image", "", "skip the build, deploy this image reference")
	deployCmd.Flags().BoolVar(&dpSkipPreflight, "skip-preflight", false, "skip the rendered-spec secrets scan")
	deployCmd.Flags().BoolVar(&dpRevert, "revert-on-failure", false, "revert the job to its prior version if the rollout fails")
	deployCmd.Flags().DurationVar(&dpInterval, "poll-interval", 0, "override rollout poll interval")
	deployCmd.Flags().DurationVar(&dpTimeout, "health-timeout", 0, "override rollout health deadline")
	deployCmd.MarkFlagRequired("env")

	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	rootDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ci := output.IsCI()
	color := output.UseColor()
	w := os.Stdout
	pipelineStart := time.Now()

	vi := detectVersion(rootDir)
	output.ContextBlock(w, pipelineContextKV(vi))

	// --- Build (once, shared by every environment) ---
	var prebuilt *build.Result
	if dpSkipBuild != "" {
		prebuilt = &build.Result{ImageRef: dpSkipBuild, Tags: []string{dpSkipBuild}}
	} else {
		prebuilt, err = runDeployBuild(ctx, w, vi, color)
		if err != nil {
			return err
		}
	}

	// --- Shared read-only inputs ---
	tmpl, err := loadTemplate()
	if err != nil {
		return err
	}

	var scanner deploy.SecretScanner
	if !dpSkipPreflight {
		s, sErr := preflight.NewScanner()
		if sErr != nil {
			return sErr
		}
		scanner = s
	}

	revert := dpRevert || cfg.Deploy.RevertOnFailure
	interval := cfg.Deploy.PollInterval
	if dpInterval > 0 {
		interval = dpInterval
	}
	timeout := cfg.Deploy.HealthTimeout
	if dpTimeout > 0 {
		timeout = dpTimeout
	}

	// --- Per-environment attempts ---
	var printMu sync.Mutex
	reporter := func(env string, stage deploy.Stage, status, detail string, elapsed time.Duration) {
		printMu.Lock()
		defer printMu.Unlock()
		icon := output.StatusIcon(statusIconFor(status), color)
		fmt.Fprintf(w, "    %s %-12s %-10s %s\n", icon, env, stage, detail)
	}

	var orchs []*deploy.Orchestrator
	clients := make([]*nomad.Client, 0, len(dpEnvs))
	defer func() {
		for _, c := range clients {
			c.Close()
		}
	}()

	for _, env := range dpEnvs {
		client, _, cErr := newCluster(env)
		if cErr != nil {
			return cErr
		}
		clients = append(clients, client)

		vars, vErr := loadEnvVars(env)
		if vErr != nil {
			return vErr
		}

		orchs = append(orchs, &deploy.Orchestrator{
			Cluster: client,
			Scanner: scanner,
			Opts: deploy.Options{
				Environment:     env,
				Template:        tmpl,
				Placeholder:     cfg.Deploy.ImagePlaceholder,
				Version:         vi,
				Vars:            vars,
				Prebuilt:        prebuilt,
				PollInterval:    interval,
				HealthTimeout:   timeout,
				RevertOnFailure: revert,
				SkipPreflight:   dpSkipPreflight,
				Reporter:        reporter,
			},
		})
	}

	output.SectionStart(w, "sw_rollout", "Rollout")
	attempts, deployErr := deploy.RunAll(ctx, orchs)
	output.SectionEnd(w, "sw_rollout")

	// --- Summary ---
	totalElapsed := time.Since(pipelineStart)
	sumSec := output.NewSection(w, "Summary", 0, color)
	for _, a := range attempts {
		if a == nil {
			continue
		}
		status := "failed"
		detail := ""
		if a.Healthy() {
			status = "success"
			detail = fmt.Sprintf("job %s healthy (%s)", a.JobID, a.ImageRef)
		} else if a.Err != nil {
			detail = a.Err.Error()
			if a.Reverted {
				detail += " — reverted"
			}
		}
		output.SummaryRow(w, a.Environment, status, detail, color)
	}
	sumSec.Separator()
	overall := "success"
	if deployErr != nil {
		overall = "failed"
	}
	output.SummaryTotal(w, totalElapsed, overall, color)
	sumSec.Close()

	// JUnit stage report for CI test tabs.
	if ci {
		stages := map[string][]output.StageReport{}
		for _, a := range attempts {
			if a == nil {
				continue
			}
			for _, st := range a.Stages {
				stages[a.Environment] = append(stages[a.Environment], output.StageReport{
					Name:    string(st.Stage),
					Status:  st.Status,
					Detail:  st.Detail,
					Elapsed: st.Duration,
				})
			}
		}
		if jErr := output.WriteDeployJUnit(".slipway/reports", stages, totalElapsed); jErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write junit report: %v\n", jErr)
		}
	}

	return deployErr
}

// runDeployBuild executes the image build with section-formatted output.
func runDeployBuild(ctx context.Context, w *os.File, vi *gitver.VersionInfo, color bool) (*build.Result, error) {
	output.SectionStart(w, "sw_build", "Build")
	start := time.Now()

	push := cfg.Build.PushEnabled()
	req := buildRequest(dpPlatforms, nil, push, vi)

	bx := newBuilder()
	if req.Push {
		for _, reg := range cfg.Build.Registries {
			user, pass := registry.ResolveCredentials(reg.Credentials)
			if user == "" {
				continue
			}
			if err := bx.Login(ctx, reg.URL, user, pass); err != nil {
				output.SectionEnd(w, "sw_build")
				return nil, err
			}
		}
	}

	result, err := bx.Build(ctx, req)
	elapsed := time.Since(start)
	if err == nil && result.Pushed && result.Digest != "" {
		// Deploy by digest so the cluster pulls exactly what was pushed,
		// even if the tag moves later.
		if pinned, pErr := registry.PinByDigest(result.ImageRef, result.Digest); pErr == nil {
			result.ImageRef = pinned
		}
	}
	if err != nil {
		sec := output.NewSection(w, "Build", elapsed, color)
		output.RowStatus(sec, "status", err.Error(), "failed", color)
		sec.Close()
		output.SectionEnd(w, "sw_build")
		return nil, err
	}

	sec := output.NewSection(w, "Build", elapsed, color)
	for _, tag := range result.Tags {
		sec.Row("%-12s%s", "tag", tag)
	}
	sec.Row("%-12s%s", "digest", result.Digest)
	sec.Close()
	output.SectionEnd(w, "sw_build")

	return result, nil
}

// statusIconFor maps stage/poll statuses onto the three icon states.
func statusIconFor(status string) string {
	switch status {
	case "success", "healthy":
		return "success"
	case "failed":
		return "failed"
	default:
		return "skipped"
	}
}
