package deploy

import (
	"time"
)

// Stage names the pipeline steps, in execution order.
type Stage string

const (
	StageBuild     Stage = "build"
	StageRender    Stage = "render"
	StagePreflight Stage = "preflight"
	StageValidate  Stage = "validate"
	StageSubmit    Stage = "submit"
	StagePoll      Stage = "poll"
)

// State is the orchestrator's position in the pipeline. Terminal states are
// StateHealthy and StateFailed; everything else is transient.
type State string

const (
	StateInit       State = "init"
	StateBuilding   State = "building"
	StateRendering  State = "rendering"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateHealthy    State = "healthy"
	StateFailed     State = "failed"
)

// StageResult records one completed pipeline stage.
type StageResult struct {
	Stage    Stage
	Status   string // "success", "failed", "skipped"
	Detail   string
	Duration time.Duration
}

// Attempt is one isolated deployment: a single environment, a single image,
// a single job submission. Mutated only by its orchestrator.
type Attempt struct {
	Environment string
	JobID       string
	ImageRef    string
	StartedAt   time.Time
	FinishedAt  time.Time

	State  State
	Stages []StageResult

	// Err is the first stage failure, typed by the failing component.
	Err error

	// Reverted is set when revert-on-failure rolled the job back.
	Reverted bool
}

// Healthy reports terminal success.
func (a *Attempt) Healthy() bool { return a.State == StateHealthy }

func (a *Attempt) record(stage Stage, status, detail string, start time.Time) {
	a.Stages = append(a.Stages, StageResult{
		Stage:    stage,
		Status:   status,
		Detail:   detail,
		Duration: time.Since(start),
	})
}
