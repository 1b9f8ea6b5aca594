package build

import (
	"reflect"
	"testing"

	"github.com/sofmeright/slipway/src/config"
	"github.com/sofmeright/slipway/src/gitver"
)

func stableVersion() *gitver.VersionInfo {
	return &gitver.VersionInfo{
		Version: "1.4.0",
		Base:    "1.4.0",
		Major:   "1", Minor: "4", Patch: "0",
		SHA:       "abc1234",
		FullSHA:   "abc1234def5678900000000000000000000000000",
		Branch:    "main",
		IsRelease: true,
	}
}

func TestResolveTags_StableRelease(t *testing.T) {
	registries := []config.RegistryConfig{
		{
			URL:  "ghcr.io",
			Path: "org/app",
			Tags: []string{"{version}", "{major}.{minor}", "latest"},
		},
	}

	got := ResolveTags(registries, stableVersion())
	want := []string{
		"ghcr.io/org/app:1.4.0",
		"ghcr.io/org/app:1.4",
		"ghcr.io/org/app:latest",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ResolveTags = %v, want %v", got, want)
	}
}

func TestResolveTags_DevBuildSkipsLatest(t *testing.T) {
	v := stableVersion()
	v.IsRelease = false
	v.Version = "1.4.0-dev+abc1234"

	registries := []config.RegistryConfig{
		{URL: "ghcr.io", Path: "org/app", Tags: []string{"{version}", "latest"}},
	}

	got := ResolveTags(registries, v)
	want := []string{"ghcr.io/org/app:1.4.0-dev+abc1234"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ResolveTags = %v, want %v", got, want)
	}
}

func TestResolveTags_DirtyWorktreeSkipsLatest(t *testing.T) {
	v := stableVersion()
	v.Dirty = true

	registries := []config.RegistryConfig{
		{URL: "ghcr.io", Path: "org/app", Tags: []string{"latest"}},
	}

	if got := ResolveTags(registries, v); len(got) != 0 {
		t.Fatalf("dirty worktree must not produce latest: %v", got)
	}
}

func TestResolveTags_MultipleRegistries(t *testing.T) {
	registries := []config.RegistryConfig{
		{URL: "ghcr.io", Path: "org/app", Tags: []string{"{version}"}},
		{URL: "registry.local:5000", Path: "app", Tags: []string{"{sha}"}},
	}

	got := ResolveTags(registries, stableVersion())
	want := []string{
		"ghcr.io/org/app:1.4.0",
		"registry.local:5000/app:abc1234",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ResolveTags = %v, want %v", got, want)
	}
}

func TestResolveTags_NilVersion(t *testing.T) {
	registries := []config.RegistryConfig{
		{URL: "ghcr.io", Path: "org/app", Tags: []string{"latest", "{version}"}},
	}

	// Without version info, "latest" is skipped and templates pass through
	// unexpanded rather than crashing.
	got := ResolveTags(registries, nil)
	want := []string{"ghcr.io/org/app:{version}"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ResolveTags = %v, want %v", got, want)
	}
}
