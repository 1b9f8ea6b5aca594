// Package deploy sequences the pipeline: build → render → preflight →
// validate → submit → poll. Stages are strictly sequential and fail fast;
// the first failing stage's error is surfaced verbatim and later stages
// never run. Polling is the only loop, bounded by interval and deadline.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sofmeright/slipway/src/build"
	"github.com/sofmeright/slipway/src/gitver"
	"github.com/sofmeright/slipway/src/jobspec"
	"github.com/sofmeright/slipway/src/nomad"
	"github.com/sofmeright/slipway/src/preflight"
)

// ErrHealthTimeout means the rollout did not reach healthy before the
// deadline. This is a reporting boundary: the cluster-side rollout is left
// as-is and may still converge.
var ErrHealthTimeout = errors.New("deploy: health deadline exceeded")

// RolloutFailedError means the cluster reported the rollout failed.
type RolloutFailedError struct {
	Detail string
}

func (e *RolloutFailedError) Error() string {
	return "deploy: rollout failed: " + e.Detail
}

// PreflightError carries secret findings that blocked submission.
type PreflightError struct {
	Findings []preflight.Finding
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("deploy: preflight blocked submission: %d secret finding(s)", len(e.Findings))
}

// Builder produces a container image. Satisfied by *build.Buildx.
type Builder interface {
	Build(ctx context.Context, req build.Request) (*build.Result, error)
}

// Cluster is the control-plane surface the pipeline needs.
// Satisfied by *nomad.Client.
type Cluster interface {
	ParseJob(ctx context.Context, jobHCL string) (*nomad.Job, error)
	Validate(ctx context.Context, job *nomad.Job) (string, error)
	Run(ctx context.Context, job *nomad.Job) (*nomad.Handle, error)
	Status(ctx context.Context, jobID string) (nomad.Status, string, error)
	Revert(ctx context.Context, jobID string, version uint64) error
}

// SecretScanner gates rendered specs. Satisfied by *preflight.Scanner.
type SecretScanner interface {
	ScanSpec(content string) []preflight.Finding
}

// Reporter receives stage transitions for operator output. May be nil.
type Reporter func(env string, stage Stage, status, detail string, elapsed time.Duration)

// Options is the per-attempt configuration. All fields are read-only during
// the run; concurrent attempts share nothing mutable.
type Options struct {
	Environment string
	Template    *jobspec.Template
	Placeholder string
	Version     *gitver.VersionInfo
	Vars        map[string]string

	BuildRequest build.Request

	// Prebuilt skips the build stage, reusing an image built once for a
	// multi-environment fan-out.
	Prebuilt *build.Result

	PollInterval    time.Duration
	HealthTimeout   time.Duration
	RevertOnFailure bool
	SkipPreflight   bool

	Reporter Reporter
}

// Orchestrator runs one deployment attempt.
type Orchestrator struct {
	Builder Builder
	Cluster Cluster
	Scanner SecretScanner
	Opts    Options
}

// Run executes the pipeline. The returned attempt always has a terminal
// state; the error (if any) is also recorded on the attempt.
func (o *Orchestrator) Run(ctx context.Context) (*Attempt, error) {
	a := &Attempt{
		Environment: o.Opts.Environment,
		StartedAt:   time.Now(),
		State:       StateInit,
	}

	err := o.run(ctx, a)
	a.FinishedAt = time.Now()
	if err != nil {
		a.State = StateFailed
		a.Err = err
		return a, err
	}
	a.State = StateHealthy
	return a, nil
}

func (o *Orchestrator) run(ctx context.Context, a *Attempt) error {
	// --- Build ---
	a.State = StateBuilding
	start := time.Now()
	result := o.Opts.Prebuilt
	if result != nil {
		a.record(StageBuild, "skipped", "reusing "+result.ImageRef, start)
		o.report(StageBuild, "skipped", "reusing "+result.ImageRef, time.Since(start))
	} else {
		built, err := o.Builder.Build(ctx, o.Opts.BuildRequest)
		if err != nil {
			a.record(StageBuild, "failed", err.Error(), start)
			o.report(StageBuild, "failed", err.Error(), time.Since(start))
			return err
		}
		result = built
		a.record(StageBuild, "success", result.ImageRef, start)
		o.report(StageBuild, "success", result.ImageRef, time.Since(start))
	}
	a.ImageRef = result.ImageRef

	// --- Render ---
	a.State = StateRendering
	start = time.Now()
	spec, err := jobspec.Render(o.Opts.Template, jobspec.RenderOptions{
		Placeholder: o.Opts.Placeholder,
		ImageRef:    result.ImageRef,
		Version:     o.Opts.Version,
		Vars:        o.Opts.Vars,
	})
	if err != nil {
		a.record(StageRender, "failed", err.Error(), start)
		o.report(StageRender, "failed", err.Error(), time.Since(start))
		return err
	}
	a.record(StageRender, "success", o.Opts.Template.Path, start)
	o.report(StageRender, "success", o.Opts.Template.Path, time.Since(start))

	// --- Preflight ---
	start = time.Now()
	if o.Opts.SkipPreflight || o.Scanner == nil {
		a.record(StagePreflight, "skipped", "", start)
		o.report(StagePreflight, "skipped", "", time.Since(start))
	} else if findings := o.Scanner.ScanSpec(spec); len(findings) > 0 {
		err := &PreflightError{Findings: findings}
		a.record(StagePreflight, "failed", err.Error(), start)
		o.report(StagePreflight, "failed", err.Error(), time.Since(start))
		return err
	} else {
		a.record(StagePreflight, "success", "no secrets detected", start)
		o.report(StagePreflight, "success", "no secrets detected", time.Since(start))
	}

	// --- Validate ---
	a.State = StateValidating
	start = time.Now()
	job, err := o.Cluster.ParseJob(ctx, spec)
	if err == nil {
		_, err = o.Cluster.Validate(ctx, job)
	}
	if err != nil {
		a.record(StageValidate, "failed", err.Error(), start)
		o.report(StageValidate, "failed", err.Error(), time.Since(start))
		return err
	}
	a.JobID = job.ID
	a.record(StageValidate, "success", "job "+job.ID, start)
	o.report(StageValidate, "success", "job "+job.ID, time.Since(start))

	// --- Submit ---
	a.State = StateSubmitting
	start = time.Now()
	handle, err := o.Cluster.Run(ctx, job)
	if err != nil {
		a.record(StageSubmit, "failed", err.Error(), start)
		o.report(StageSubmit, "failed", err.Error(), time.Since(start))
		return err
	}
	a.record(StageSubmit, "success", "eval "+handle.EvalID, start)
	o.report(StageSubmit, "success", "eval "+handle.EvalID, time.Since(start))

	// --- Poll ---
	a.State = StatePolling
	start = time.Now()
	if err := o.poll(ctx, handle.JobID); err != nil {
		a.record(StagePoll, "failed", err.Error(), start)
		o.report(StagePoll, "failed", err.Error(), time.Since(start))
		o.maybeRevert(ctx, a, handle)
		return err
	}
	a.record(StagePoll, "success", "rollout healthy", start)
	o.report(StagePoll, "success", "rollout healthy", time.Since(start))

	return nil
}

// poll repeats status checks on a fixed interval until the rollout is
// terminal, the deadline passes, or the context is cancelled. Cancellation
// stops the orchestrator, not the cluster-side rollout.
func (o *Orchestrator) poll(ctx context.Context, jobID string) error {
	interval := o.Opts.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timeout := o.Opts.HealthTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastDetail string
	for {
		status, detail, err := o.Cluster.Status(ctx, jobID)
		if err != nil {
			return err
		}
		lastDetail = detail
		o.report(StagePoll, string(status), detail, 0)

		switch status {
		case nomad.StatusHealthy:
			return nil
		case nomad.StatusFailed:
			return &RolloutFailedError{Detail: detail}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w after %s (last: %s)", ErrHealthTimeout, timeout, lastDetail)
		case <-ticker.C:
		}
	}
}

// maybeRevert rolls the job back to its pre-submission version when
// configured. Revert never changes the attempt outcome: a failed rollout
// stays failed.
func (o *Orchestrator) maybeRevert(ctx context.Context, a *Attempt, handle *nomad.Handle) {
	if !o.Opts.RevertOnFailure || handle.PriorVersion == nil {
		return
	}
	if err := o.Cluster.Revert(ctx, handle.JobID, *handle.PriorVersion); err != nil {
		o.report(StagePoll, "failed", "revert failed: "+err.Error(), 0)
		return
	}
	a.Reverted = true
	o.report(StagePoll, "skipped", fmt.Sprintf("reverted to version %d", *handle.PriorVersion), 0)
}

func (o *Orchestrator) report(stage Stage, status, detail string, elapsed time.Duration) {
	if o.Opts.Reporter != nil {
		o.Opts.Reporter(o.Opts.Environment, stage, status, detail, elapsed)
	}
}

// RunAll executes orchestrators concurrently as fully isolated attempts.
// One environment failing does not cancel the others; the first error (by
// errgroup's accounting) is returned alongside every attempt.
func RunAll(ctx context.Context, orchs []*Orchestrator) ([]*Attempt, error) {
	attempts := make([]*Attempt, len(orchs))
	var g errgroup.Group

	for i, o := range orchs {
		g.Go(func() error {
			attempt, err := o.Run(ctx)
			attempts[i] = attempt
			return err
		})
	}

	err := g.Wait()
	return attempts, err
}
