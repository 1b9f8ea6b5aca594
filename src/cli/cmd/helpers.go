package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sofmeright/slipway/src/build"
	"github.com/sofmeright/slipway/src/config"
	"github.com/sofmeright/slipway/src/gitver"
	"github.com/sofmeright/slipway/src/jobspec"
	"github.com/sofmeright/slipway/src/nomad"
	"github.com/sofmeright/slipway/src/output"
	"github.com/sofmeright/slipway/src/registry"
)

// detectVersion resolves git version info, tolerating non-repo contexts.
func detectVersion(rootDir string) *gitver.VersionInfo {
	vi, err := gitver.DetectVersion(rootDir)
	if err != nil {
		if verbose {
			fmt.Fprintf(os.Stderr, "gitver: %v (tag templates limited)\n", err)
		}
		return nil
	}
	return vi
}

// newBuilder wires a buildx runner with registry digest resolution.
func newBuilder() *build.Buildx {
	bx := build.NewBuildx(verbose)
	bx.ResolveDigest = func(ctx context.Context, ref string) (string, error) {
		return registry.ResolveDigest(ctx, ref, registry.Authenticator(credentialPrefixFor(ref)))
	}
	return bx
}

// credentialPrefixFor finds the configured credential prefix whose registry
// URL matches the image reference.
func credentialPrefixFor(ref string) string {
	for _, reg := range cfg.Build.Registries {
		if strings.HasPrefix(ref, reg.URL+"/") {
			return reg.Credentials
		}
	}
	return ""
}

// newCluster builds a cluster client for the named environment.
func newCluster(env string) (*nomad.Client, config.ClusterConfig, error) {
	cc, err := cfg.Environment(env)
	if err != nil {
		return nil, config.ClusterConfig{}, err
	}
	client, err := nomad.New(cc)
	if err != nil {
		return nil, config.ClusterConfig{}, err
	}
	return client, cc, nil
}

// loadEnvVars loads the TOML var file for an environment, if configured.
func loadEnvVars(env string) (map[string]string, error) {
	path := cfg.Deploy.VarFile(env)
	if path == "" {
		return nil, nil
	}
	return config.LoadVars(path)
}

// loadTemplate reads the configured job template.
func loadTemplate() (*jobspec.Template, error) {
	return jobspec.Load(cfg.Deploy.JobFile)
}

// buildRequest assembles the image build request from config, git version
// info, and CLI overrides.
func buildRequest(platforms, extraTags []string, push bool, vi *gitver.VersionInfo) build.Request {
	bc := cfg.Build

	req := build.Request{
		ContextDir: bc.Context,
		Dockerfile: bc.Dockerfile,
		Target:     bc.Target,
		Platforms:  bc.Platforms,
		BuildArgs:  bc.BuildArgs,
		Push:       push,
	}
	if len(platforms) > 0 {
		req.Platforms = platforms
	}

	req.Tags = build.ResolveTags(bc.Registries, vi)
	for _, t := range extraTags {
		req.Tags = append(req.Tags, gitver.ResolveTemplate(t, vi))
	}
	if len(req.Tags) == 0 {
		req.Tags = []string{"slipway:dev"}
		req.Push = false
	}

	return req
}

// pipelineContextKV returns key-value pairs for the pipeline context block.
func pipelineContextKV(vi *gitver.VersionInfo) []output.KV {
	var kv []output.KV

	if vi != nil {
		kv = append(kv, output.KV{Key: "Version", Value: vi.Version})
		kv = append(kv, output.KV{Key: "Commit", Value: vi.SHA})
		if vi.Branch != "" {
			kv = append(kv, output.KV{Key: "Branch", Value: vi.Branch})
		}
	}
	if pipe := os.Getenv("CI_PIPELINE_ID"); pipe != "" {
		kv = append(kv, output.KV{Key: "Pipeline", Value: pipe})
	}

	if n := len(cfg.Build.Registries); n > 0 {
		var urls []string
		seen := map[string]bool{}
		for _, r := range cfg.Build.Registries {
			if !seen[r.URL] {
				urls = append(urls, r.URL)
				seen[r.URL] = true
			}
		}
		kv = append(kv, output.KV{Key: "Registries", Value: fmt.Sprintf("%d (%s)", n, strings.Join(urls, ", "))})
	}

	return kv
}
