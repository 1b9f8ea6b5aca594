package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DigestResolver resolves the registry digest for a pushed image reference.
// Wired to the registry package by the caller; nil skips remote resolution.
type DigestResolver func(ctx context.Context, ref string) (string, error)

// Buildx wraps docker buildx commands.
type Buildx struct {
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer

	ResolveDigest DigestResolver
}

// NewBuildx creates a Buildx runner with default output writers.
func NewBuildx(verbose bool) *Buildx {
	return &Buildx{
		Verbose: verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Build validates the request and executes it via docker buildx.
// All requested platforms build in one invocation, so a failure on any
// platform fails the whole build.
func (bx *Buildx) Build(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.MultiPlatform() && !req.Push {
		return nil, &Error{Kind: KindBadRequest, Detail: "multi-platform builds require push (buildx cannot --load them)"}
	}

	if err := bx.EnsureBuilder(ctx); err != nil {
		return nil, err
	}

	start := time.Now()

	iidFile, err := os.CreateTemp("", "slipway-iid-*")
	if err != nil {
		return nil, fmt.Errorf("creating iidfile: %w", err)
	}
	iidPath := iidFile.Name()
	iidFile.Close()
	defer os.Remove(iidPath)

	args := bx.buildArgs(req, iidPath)

	if bx.Verbose {
		fmt.Fprintf(bx.Stderr, "exec: docker %s\n", strings.Join(args, " "))
	}

	var stderrBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Stdout = bx.Stdout
	cmd.Stderr = io.MultiWriter(bx.Stderr, &stderrBuf)

	if err := cmd.Run(); err != nil {
		return nil, classifyBuildErr(err, stderrBuf.String())
	}

	result := &Result{
		ImageRef: req.Tags[0],
		Tags:     append([]string(nil), req.Tags...),
		Pushed:   req.Push,
	}

	if req.Push {
		if bx.ResolveDigest != nil {
			digest, dErr := bx.ResolveDigest(ctx, req.Tags[0])
			if dErr != nil {
				return nil, fmt.Errorf("resolving pushed digest: %w", dErr)
			}
			result.Digest = digest
		}
	} else {
		iid, rErr := os.ReadFile(iidPath)
		if rErr != nil {
			return nil, fmt.Errorf("reading iidfile: %w", rErr)
		}
		result.Digest = strings.TrimSpace(string(iid))
	}

	result.Duration = time.Since(start)
	return result, nil
}

// buildArgs constructs the docker buildx build argument list.
func (bx *Buildx) buildArgs(req Request, iidPath string) []string {
	args := []string{"buildx", "build"}

	if req.Dockerfile != "" {
		df := req.Dockerfile
		if !filepath.IsAbs(df) {
			df = filepath.Join(req.ContextDir, df)
		}
		args = append(args, "--file", df)
	}

	if req.Target != "" {
		args = append(args, "--target", req.Target)
	}

	if len(req.Platforms) > 0 {
		args = append(args, "--platform", strings.Join(req.Platforms, ","))
	}

	keys := make([]string, 0, len(req.BuildArgs))
	for k := range req.BuildArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, req.BuildArgs[k]))
	}

	for _, tag := range req.Tags {
		args = append(args, "--tag", tag)
	}

	if req.Push {
		args = append(args, "--push")
	} else {
		args = append(args, "--load", "--iidfile", iidPath)
	}

	contextDir := req.ContextDir
	if contextDir == "" {
		contextDir = "."
	}
	args = append(args, contextDir)

	return args
}

// EnsureBuilder checks that a buildx builder is available and creates one if needed.
func (bx *Buildx) EnsureBuilder(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "docker", "buildx", "inspect")
	if err := cmd.Run(); err != nil {
		create := exec.CommandContext(ctx, "docker", "buildx", "create", "--use", "--name", "slipway")
		create.Stdout = bx.Stderr
		create.Stderr = bx.Stderr
		if createErr := create.Run(); createErr != nil {
			return fmt.Errorf("creating buildx builder: %w", createErr)
		}
	}
	return nil
}

// Login authenticates the docker CLI against a registry so buildx can push.
// Credentials come in via stdin, never argv.
func (bx *Buildx) Login(ctx context.Context, registryURL, user, pass string) error {
	cmd := exec.CommandContext(ctx, "docker", "login", registryURL, "--username", user, "--password-stdin")
	cmd.Stdin = strings.NewReader(pass)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		return &Error{Kind: KindPushDenied, Detail: "login to " + registryURL, Err: err}
	}
	return nil
}

// classifyBuildErr distinguishes registry push denial from plain backend
// failure by inspecting buildx stderr.
func classifyBuildErr(err error, stderr string) error {
	lower := strings.ToLower(stderr)
	for _, marker := range []string{"denied", "unauthorized", "authentication required", "insufficient_scope"} {
		if strings.Contains(lower, marker) {
			return &Error{Kind: KindPushDenied, Detail: lastLine(stderr), Err: err}
		}
	}
	return &Error{Kind: KindBackendFailure, Detail: lastLine(stderr), Err: err}
}

// lastLine returns the final non-empty stderr line, which buildx uses for
// its terminal error message.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
