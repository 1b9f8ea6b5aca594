package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sofmeright/slipway/src/build"
	"github.com/sofmeright/slipway/src/jobspec"
	"github.com/sofmeright/slipway/src/nomad"
	"github.com/sofmeright/slipway/src/preflight"
)

const testJobHCL = `job "web" {
  group "app" {
    task "server" {
      driver = "docker"
      config {
        image = "PLACEHOLDER_IMAGE"
      }
    }
  }
}
`

// fakeCluster scripts control-plane responses and records call order.
type fakeCluster struct {
	mu    sync.Mutex
	calls []string

	validateErr error
	runErr      error
	revertErr   error

	// statuses is consumed one per Status call; the last entry repeats.
	statuses []scriptedStatus

	priorVersion *uint64
	reverted     *uint64
}

type scriptedStatus struct {
	status nomad.Status
	detail string
}

func (f *fakeCluster) call(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeCluster) called(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == name {
			return true
		}
	}
	return false
}

func (f *fakeCluster) ParseJob(ctx context.Context, jobHCL string) (*nomad.Job, error) {
	f.call("parse")
	return &nomad.Job{ID: "web", Raw: json.RawMessage(`{"ID":"web"}`)}, nil
}

func (f *fakeCluster) Validate(ctx context.Context, job *nomad.Job) (string, error) {
	f.call("validate")
	return "", f.validateErr
}

func (f *fakeCluster) Run(ctx context.Context, job *nomad.Job) (*nomad.Handle, error) {
	f.call("run")
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &nomad.Handle{JobID: job.ID, EvalID: "eval-1", PriorVersion: f.priorVersion}, nil
}

func (f *fakeCluster) Status(ctx context.Context, jobID string) (nomad.Status, string, error) {
	f.call("status")
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return nomad.StatusRunning, "", nil
	}
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s.status, s.detail, nil
}

func (f *fakeCluster) Revert(ctx context.Context, jobID string, version uint64) error {
	f.call("revert")
	f.mu.Lock()
	f.reverted = &version
	f.mu.Unlock()
	return f.revertErr
}

type fakeBuilder struct {
	err    error
	called bool
}

func (f *fakeBuilder) Build(ctx context.Context, req build.Request) (*build.Result, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return &build.Result{ImageRef: "ghcr.io/org/app:1.0.0", Tags: req.Tags}, nil
}

type fakeScanner struct {
	findings []preflight.Finding
}

func (f *fakeScanner) ScanSpec(content string) []preflight.Finding {
	return f.findings
}

func testOrchestrator(cluster *fakeCluster, builder Builder) *Orchestrator {
	return &Orchestrator{
		Builder: builder,
		Cluster: cluster,
		Scanner: &fakeScanner{},
		Opts: Options{
			Environment:   "prod",
			Template:      &jobspec.Template{Path: "job.nomad.hcl", Source: testJobHCL},
			Placeholder:   "PLACEHOLDER_IMAGE",
			PollInterval:  time.Millisecond,
			HealthTimeout: time.Second,
		},
	}
}

func TestRun_HealthyPath(t *testing.T) {
	cluster := &fakeCluster{
		statuses: []scriptedStatus{
			{nomad.StatusRunning, "1/3 healthy"},
			{nomad.StatusHealthy, "3/3 healthy"},
		},
	}
	o := testOrchestrator(cluster, &fakeBuilder{})

	attempt, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !attempt.Healthy() {
		t.Fatalf("attempt state = %q, want healthy", attempt.State)
	}
	if attempt.JobID != "web" {
		t.Fatalf("JobID = %q", attempt.JobID)
	}
	if attempt.ImageRef != "ghcr.io/org/app:1.0.0" {
		t.Fatalf("ImageRef = %q", attempt.ImageRef)
	}

	wantOrder := []string{"parse", "validate", "run"}
	if len(cluster.calls) < 3 {
		t.Fatalf("calls = %v", cluster.calls)
	}
	for i, want := range wantOrder {
		if cluster.calls[i] != want {
			t.Fatalf("call %d = %q, want %q (all: %v)", i, cluster.calls[i], want, cluster.calls)
		}
	}
}

func TestRun_ValidateFailureStopsPipeline(t *testing.T) {
	cluster := &fakeCluster{
		validateErr: &nomad.ValidationError{Errors: []string{"missing count"}},
	}
	o := testOrchestrator(cluster, &fakeBuilder{})

	attempt, err := o.Run(context.Background())
	var ve *nomad.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	if attempt.State != StateFailed {
		t.Fatalf("state = %q, want failed", attempt.State)
	}
	if cluster.called("run") {
		t.Fatalf("Run must not be called after a failed validate; calls: %v", cluster.calls)
	}
}

func TestRun_BuildFailureStopsPipeline(t *testing.T) {
	cluster := &fakeCluster{}
	builder := &fakeBuilder{err: &build.Error{Kind: build.KindBackendFailure, Detail: "exit 1"}}
	o := testOrchestrator(cluster, builder)

	attempt, err := o.Run(context.Background())
	var be *build.Error
	if !errors.As(err, &be) {
		t.Fatalf("expected *build.Error, got %T: %v", err, err)
	}
	if attempt.State != StateFailed {
		t.Fatalf("state = %q", attempt.State)
	}
	if len(cluster.calls) != 0 {
		t.Fatalf("cluster must be untouched after build failure; calls: %v", cluster.calls)
	}
}

func TestRun_PrebuiltSkipsBuild(t *testing.T) {
	cluster := &fakeCluster{
		statuses: []scriptedStatus{{nomad.StatusHealthy, "3/3 healthy"}},
	}
	builder := &fakeBuilder{}
	o := testOrchestrator(cluster, builder)
	o.Opts.Prebuilt = &build.Result{ImageRef: "ghcr.io/org/app:2.0.0"}

	attempt, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if builder.called {
		t.Fatalf("builder must not be called when a prebuilt image is supplied")
	}
	if attempt.ImageRef != "ghcr.io/org/app:2.0.0" {
		t.Fatalf("ImageRef = %q", attempt.ImageRef)
	}
	if attempt.Stages[0].Status != "skipped" {
		t.Fatalf("build stage = %+v, want skipped", attempt.Stages[0])
	}
}

func TestRun_PreflightBlocksSubmission(t *testing.T) {
	cluster := &fakeCluster{}
	o := testOrchestrator(cluster, &fakeBuilder{})
	o.Scanner = &fakeScanner{findings: []preflight.Finding{
		{Line: 6, RuleID: "github-pat", Description: "GitHub personal access token"},
	}}

	_, err := o.Run(context.Background())
	var pe *PreflightError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PreflightError, got %T: %v", err, err)
	}
	if cluster.called("parse") || cluster.called("run") {
		t.Fatalf("cluster must not see a spec that failed preflight; calls: %v", cluster.calls)
	}
}

func TestRun_RolloutFailure(t *testing.T) {
	cluster := &fakeCluster{
		statuses: []scriptedStatus{
			{nomad.StatusRunning, "0/3 healthy"},
			{nomad.StatusFailed, "Failed due to unhealthy allocations"},
		},
	}
	o := testOrchestrator(cluster, &fakeBuilder{})

	attempt, err := o.Run(context.Background())
	var rf *RolloutFailedError
	if !errors.As(err, &rf) {
		t.Fatalf("expected *RolloutFailedError, got %T: %v", err, err)
	}
	if attempt.State != StateFailed {
		t.Fatalf("state = %q", attempt.State)
	}
	if cluster.called("revert") {
		t.Fatalf("revert must not run unless enabled")
	}
}

func TestRun_HealthTimeout(t *testing.T) {
	cluster := &fakeCluster{
		statuses: []scriptedStatus{{nomad.StatusRunning, "1/3 healthy"}},
	}
	o := testOrchestrator(cluster, &fakeBuilder{})
	o.Opts.HealthTimeout = 20 * time.Millisecond
	o.Opts.PollInterval = 5 * time.Millisecond

	_, err := o.Run(context.Background())
	if !errors.Is(err, ErrHealthTimeout) {
		t.Fatalf("expected ErrHealthTimeout, got %v", err)
	}
}

func TestRun_CancellationStopsPolling(t *testing.T) {
	cluster := &fakeCluster{
		statuses: []scriptedStatus{{nomad.StatusRunning, "1/3 healthy"}},
	}
	o := testOrchestrator(cluster, &fakeBuilder{})
	o.Opts.PollInterval = 50 * time.Millisecond
	o.Opts.HealthTimeout = 10 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	attempt, err := o.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempt.State != StateFailed {
		t.Fatalf("state = %q", attempt.State)
	}
}

func TestRun_RevertOnFailure(t *testing.T) {
	prior := uint64(4)
	cluster := &fakeCluster{
		priorVersion: &prior,
		statuses:     []scriptedStatus{{nomad.StatusFailed, "unhealthy"}},
	}
	o := testOrchestrator(cluster, &fakeBuilder{})
	o.Opts.RevertOnFailure = true

	attempt, err := o.Run(context.Background())
	var rf *RolloutFailedError
	if !errors.As(err, &rf) {
		t.Fatalf("expected *RolloutFailedError even with revert, got %v", err)
	}
	if !attempt.Reverted {
		t.Fatalf("attempt not marked reverted")
	}
	if cluster.reverted == nil || *cluster.reverted != 4 {
		t.Fatalf("reverted version = %v, want 4", cluster.reverted)
	}
}

func TestRun_NoRevertForNewJob(t *testing.T) {
	cluster := &fakeCluster{
		statuses: []scriptedStatus{{nomad.StatusFailed, "unhealthy"}},
	}
	o := testOrchestrator(cluster, &fakeBuilder{})
	o.Opts.RevertOnFailure = true

	attempt, _ := o.Run(context.Background())
	if cluster.called("revert") {
		t.Fatalf("nothing to revert to for a first deployment; calls: %v", cluster.calls)
	}
	if attempt.Reverted {
		t.Fatalf("attempt wrongly marked reverted")
	}
}

func TestRunAll_IsolatesFailures(t *testing.T) {
	healthy := &fakeCluster{
		statuses: []scriptedStatus{{nomad.StatusHealthy, "3/3 healthy"}},
	}
	failing := &fakeCluster{
		validateErr: &nomad.ValidationError{Errors: []string{"bad spec"}},
	}

	o1 := testOrchestrator(healthy, &fakeBuilder{})
	o1.Opts.Environment = "staging"
	o2 := testOrchestrator(failing, &fakeBuilder{})
	o2.Opts.Environment = "prod"

	attempts, err := RunAll(context.Background(), []*Orchestrator{o1, o2})
	if err == nil {
		t.Fatalf("expected the prod failure to surface")
	}
	if len(attempts) != 2 {
		t.Fatalf("attempts = %d", len(attempts))
	}
	if !attempts[0].Healthy() {
		t.Fatalf("staging attempt should stay healthy despite prod failing: %+v", attempts[0])
	}
	if attempts[1].State != StateFailed {
		t.Fatalf("prod attempt state = %q", attempts[1].State)
	}
}

func TestRun_ReporterSeesStages(t *testing.T) {
	cluster := &fakeCluster{
		statuses: []scriptedStatus{{nomad.StatusHealthy, "3/3 healthy"}},
	}
	o := testOrchestrator(cluster, &fakeBuilder{})

	var mu sync.Mutex
	seen := map[Stage]bool{}
	o.Opts.Reporter = func(env string, stage Stage, status, detail string, elapsed time.Duration) {
		if env != "prod" {
			t.Errorf("reporter env = %q", env)
		}
		mu.Lock()
		seen[stage] = true
		mu.Unlock()
	}

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, stage := range []Stage{StageBuild, StageRender, StagePreflight, StageValidate, StageSubmit, StagePoll} {
		if !seen[stage] {
			t.Errorf("reporter never saw stage %q", stage)
		}
	}
}
