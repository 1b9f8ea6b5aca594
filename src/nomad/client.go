// Package nomad is a thin client over the Nomad control plane HTTP API:
// parse, validate, plan, run, status, and revert. It speaks plain JSON over
// an authenticated transport, optionally tunnelled through SSH.
package nomad

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/sofmeright/slipway/src/config"
)

// Client talks to one cluster environment.
type Client struct {
	base      string
	token     string
	region    string
	namespace string

	httpc  *http.Client
	tunnel *tunnel
}

// New builds a client from cluster config. The ACL token is read from the
// configured env var; an empty token is allowed for unsecured clusters.
func New(cfg config.ClusterConfig) (*Client, error) {
	c := &Client{
		base:      strings.TrimRight(cfg.Address, "/"),
		token:     os.Getenv(cfg.TokenEnv),
		region:    cfg.Region,
		namespace: cfg.Namespace,
		httpc:     &http.Client{Timeout: cfg.Timeout},
	}

	if cfg.Tunnel != nil {
		tn, err := newTunnel(*cfg.Tunnel)
		if err != nil {
			return nil, err
		}
		c.tunnel = tn
		c.httpc.Transport = &http.Transport{DialContext: tn.DialContext}
	}

	return c, nil
}

// Close releases the SSH tunnel if one is open.
func (c *Client) Close() error {
	if c.tunnel != nil {
		return c.tunnel.Close()
	}
	return nil
}

// ParseJob converts job HCL into the API's JSON job structure using the
// cluster's own parser, so local and server interpretation never drift.
func (c *Client) ParseJob(ctx context.Context, jobHCL string) (*Job, error) {
	var raw json.RawMessage
	err := c.doJSON(ctx, http.MethodPost, "/v1/jobs/parse", parseRequest{
		JobHCL:       jobHCL,
		Canonicalize: true,
	}, &raw)
	if err != nil {
		return nil, err
	}

	var meta struct {
		ID string `json:"ID"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil || meta.ID == "" {
		return nil, fmt.Errorf("nomad: parse response missing job ID")
	}

	return &Job{ID: meta.ID, Raw: raw}, nil
}

// Validate runs the cluster's schema check. No side effects. A rejected spec
// returns *ValidationError; the warnings string is advisory.
func (c *Client) Validate(ctx context.Context, job *Job) (string, error) {
	var resp validateResponse
	err := c.doJSON(ctx, http.MethodPut, "/v1/validate/job", jobWrapper{Job: job.Raw}, &resp)
	if err != nil {
		return "", err
	}

	if len(resp.ValidationErrors) > 0 {
		return resp.Warnings, &ValidationError{Errors: resp.ValidationErrors, Warnings: resp.Warnings}
	}
	if resp.Error != "" {
		return resp.Warnings, &ValidationError{Errors: []string{resp.Error}, Warnings: resp.Warnings}
	}
	return resp.Warnings, nil
}

// Plan is a server-side dry run showing what a submission would change.
func (c *Client) Plan(ctx context.Context, job *Job) (*PlanResult, error) {
	var resp planResponse
	path := "/v1/job/" + url.PathEscape(job.ID) + "/plan"
	err := c.doJSON(ctx, http.MethodPut, path, planRequest{Job: job.Raw, Diff: true}, &resp)
	if err != nil {
		return nil, err
	}
	return &PlanResult{
		Diff:           resp.Diff,
		Warnings:       resp.Warnings,
		FailedTGAllocs: resp.FailedTGAllocs,
	}, nil
}

// Run submits the job. The one mutating call in the pipeline. The returned
// handle carries the prior job version (when the job already existed) so a
// failed rollout can be reverted.
func (c *Client) Run(ctx context.Context, job *Job) (*Handle, error) {
	handle := &Handle{JobID: job.ID}

	// Capture the current version before mutating. A missing job is fine —
	// first deployment has nothing to revert to.
	if info, err := c.jobInfo(ctx, job.ID); err == nil && info != nil {
		v := info.Version
		handle.PriorVersion = &v
	}

	var resp registerResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/jobs", jobWrapper{Job: job.Raw}, &resp); err != nil {
		return nil, err
	}

	handle.EvalID = resp.EvalID
	handle.JobModifyIdx = resp.JobModifyIndex
	return handle, nil
}

// Status is a single non-blocking rollout poll. The detail string is
// operator-facing ("2/3 healthy", deployment status description).
func (c *Client) Status(ctx context.Context, jobID string) (Status, string, error) {
	dep, err := c.latestDeployment(ctx, jobID)
	if err != nil {
		return StatusUnknown, "", err
	}

	if dep == nil {
		// No deployment object — job has no update stanza or is batch.
		// Fall back to allocation client states.
		summary, aErr := c.allocSummary(ctx, jobID)
		if aErr != nil {
			return StatusUnknown, "", aErr
		}
		return summary.RolloutStatus(), fmt.Sprintf("allocs: %d running, %d pending, %d failed",
			summary.Running, summary.Pending, summary.Failed), nil
	}

	desired, healthy := 0, 0
	for _, tg := range dep.TaskGroups {
		desired += tg.DesiredTotal
		healthy += tg.HealthyAllocs
	}
	detail := fmt.Sprintf("%d/%d healthy — %s", healthy, desired, dep.StatusDescription)
	return dep.RolloutStatus(), detail, nil
}

// Revert rolls the job back to a previous version.
func (c *Client) Revert(ctx context.Context, jobID string, version uint64) error {
	path := "/v1/job/" + url.PathEscape(jobID) + "/revert"
	return c.doJSON(ctx, http.MethodPost, path, revertRequest{JobID: jobID, JobVersion: version}, nil)
}

// latestDeployment returns the most recent deployment, or nil when none exists.
func (c *Client) latestDeployment(ctx context.Context, jobID string) (*Deployment, error) {
	var dep *Deployment
	path := "/v1/job/" + url.PathEscape(jobID) + "/deployment"
	err := c.doJSON(ctx, http.MethodGet, path, nil, &dep)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return dep, nil
}

// allocSummary classifies allocations of the latest job version. The
// allocations endpoint lists history until garbage collection, so allocs from
// prior versions and failed allocs already replaced by a reschedule must not
// count against the current rollout.
func (c *Client) allocSummary(ctx context.Context, jobID string) (AllocSummary, error) {
	var allocs []allocListEntry
	path := "/v1/job/" + url.PathEscape(jobID) + "/allocations"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &allocs); err != nil {
		return AllocSummary{}, err
	}

	var latest uint64
	for _, a := range allocs {
		if a.JobVersion > latest {
			latest = a.JobVersion
		}
	}

	var s AllocSummary
	for _, a := range allocs {
		if a.JobVersion != latest {
			continue
		}
		switch a.ClientStatus {
		case "running":
			s.Running++
		case "complete":
			s.Complete++
		case "failed", "lost":
			if a.NextAllocation != "" {
				continue // rescheduled, the replacement speaks for it
			}
			s.Failed++
		case "pending":
			s.Pending++
		}
	}
	return s, nil
}

func (c *Client) jobInfo(ctx context.Context, jobID string) (*jobInfoResponse, error) {
	var info jobInfoResponse
	path := "/v1/job/" + url.PathEscape(jobID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// doJSON executes one API request with optional JSON body and decodes the
// response. Connectivity failures become *TransportError, HTTP-level
// rejections *APIError.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	reqURL := c.base + path
	if q := c.query(); q != "" {
		reqURL += "?" + q
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("X-Nomad-Token", c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransportError{Op: method, URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return &APIError{
			Status: resp.StatusCode,
			Method: method,
			URL:    reqURL,
			Body:   truncateBody(respBody, 512),
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response from %s %s: %w", method, reqURL, err)
		}
	}
	return nil
}

func (c *Client) query() string {
	v := url.Values{}
	if c.region != "" {
		v.Set("region", c.region)
	}
	if c.namespace != "" {
		v.Set("namespace", c.namespace)
	}
	return v.Encode()
}

func truncateBody(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}
