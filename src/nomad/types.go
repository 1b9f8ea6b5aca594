package nomad

import "encoding/json"

// Status is the coarse rollout state reported by a single poll.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusHealthy Status = "healthy"
	StatusFailed  Status = "failed"
	StatusUnknown Status = "unknown"
)

// Terminal reports whether a status ends the polling loop.
func (s Status) Terminal() bool {
	return s == StatusHealthy || s == StatusFailed
}

// Job is a parsed job specification: the full API payload plus the fields
// the pipeline needs by name.
type Job struct {
	ID  string
	Raw json.RawMessage
}

// Handle identifies a submitted deployment for status polling.
type Handle struct {
	JobID        string
	EvalID       string
	JobModifyIdx uint64

	// PriorVersion is the job version registered before this submission,
	// captured for revert-on-failure. Nil when the job is new.
	PriorVersion *uint64
}

// PlanResult summarizes a server-side dry run.
type PlanResult struct {
	Diff           *PlanDiff
	Warnings       string
	FailedTGAllocs map[string]json.RawMessage
}

// PlanDiff is the job-level diff Nomad computes for a plan.
type PlanDiff struct {
	Type string `json:"Type"` // "Added", "Edited", "None"
}

// Deployment is the rollout state of the most recent job submission.
type Deployment struct {
	ID                string                      `json:"ID"`
	JobID             string                      `json:"JobID"`
	JobVersion        uint64                      `json:"JobVersion"`
	Status            string                      `json:"Status"`
	StatusDescription string                      `json:"StatusDescription"`
	TaskGroups        map[string]*DeploymentGroup `json:"TaskGroups"`
}

// DeploymentGroup is per-task-group placement health.
type DeploymentGroup struct {
	DesiredTotal    int `json:"DesiredTotal"`
	PlacedAllocs    int `json:"PlacedAllocs"`
	HealthyAllocs   int `json:"HealthyAllocs"`
	UnhealthyAllocs int `json:"UnhealthyAllocs"`
}

// RolloutStatus maps Nomad's deployment status to the pipeline's enum.
func (d *Deployment) RolloutStatus() Status {
	if d == nil {
		return StatusPending
	}
	switch d.Status {
	case "successful":
		return StatusHealthy
	case "failed", "cancelled":
		return StatusFailed
	case "running", "paused", "blocked", "pending", "initializing":
		return StatusRunning
	default:
		return StatusUnknown
	}
}

// AllocSummary is the fallback health source for jobs that create no
// deployment object (no update stanza, or batch jobs).
type AllocSummary struct {
	Running  int
	Complete int
	Failed   int
	Pending  int
}

// RolloutStatus derives a coarse status from allocation client states.
func (a AllocSummary) RolloutStatus() Status {
	switch {
	case a.Failed > 0:
		return StatusFailed
	case a.Running > 0 && a.Pending == 0:
		return StatusHealthy
	case a.Running > 0 || a.Pending > 0:
		return StatusRunning
	case a.Complete > 0:
		return StatusHealthy // batch job ran to completion
	default:
		return StatusPending
	}
}

// API payload shapes. Field names follow the Nomad HTTP API.

type parseRequest struct {
	JobHCL       string `json:"JobHCL"`
	Canonicalize bool   `json:"Canonicalize"`
}

type jobWrapper struct {
	Job json.RawMessage `json:"Job"`
}

type validateResponse struct {
	DriverConfigValidated bool     `json:"DriverConfigValidated"`
	ValidationErrors      []string `json:"ValidationErrors"`
	Warnings              string   `json:"Warnings"`
	Error                 string   `json:"Error"`
}

type planRequest struct {
	Job  json.RawMessage `json:"Job"`
	Diff bool            `json:"Diff"`
}

type planResponse struct {
	Diff           *PlanDiff                  `json:"Diff"`
	Warnings       string                     `json:"Warnings"`
	FailedTGAllocs map[string]json.RawMessage `json:"FailedTGAllocs"`
}

type registerResponse struct {
	EvalID         string `json:"EvalID"`
	JobModifyIndex uint64 `json:"JobModifyIndex"`
	Warnings       string `json:"Warnings"`
}

type jobInfoResponse struct {
	ID      string `json:"ID"`
	Version uint64 `json:"Version"`
}

type revertRequest struct {
	JobID      string `json:"JobID"`
	JobVersion uint64 `json:"JobVersion"`
}

type allocListEntry struct {
	ClientStatus   string `json:"ClientStatus"`
	JobVersion     uint64 `json:"JobVersion"`
	NextAllocation string `json:"NextAllocation"`
}
