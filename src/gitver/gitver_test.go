package gitver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func initRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	return dir, repo
}

func commitFile(t *testing.T, dir string, repo *git.Repository, name, content string) {
	t.Helper()

	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
	_, err = wt.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func tagHead(t *testing.T, repo *git.Repository, name string) {
	t.Helper()

	head, err := repo.Head()
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if _, err := repo.CreateTag(name, head.Hash(), nil); err != nil {
		t.Fatalf("tag %s: %v", name, err)
	}
}

func TestDetectVersion_AtReleaseTag(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, dir, repo, "main.go", "package main\n")
	tagHead(t, repo, "v1.2.3")

	v, err := DetectVersion(dir)
	if err != nil {
		t.Fatalf("DetectVersion: %v", err)
	}
	if !v.IsRelease {
		t.Fatalf("expected release at tag, got %+v", v)
	}
	if v.Version != "1.2.3" || v.Base != "1.2.3" {
		t.Fatalf("version = %q base = %q", v.Version, v.Base)
	}
	if v.Major != "1" || v.Minor != "2" || v.Patch != "3" {
		t.Fatalf("components = %s.%s.%s", v.Major, v.Minor, v.Patch)
	}
	if len(v.SHA) != 7 || len(v.FullSHA) != 40 {
		t.Fatalf("sha = %q fullsha = %q", v.SHA, v.FullSHA)
	}
	if !v.Stable() {
		t.Fatalf("clean release should be stable: %+v", v)
	}
}

func TestDetectVersion_Prerelease(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, dir, repo, "main.go", "package main\n")
	tagHead(t, repo, "v2.0.0-rc.1")

	v, err := DetectVersion(dir)
	if err != nil {
		t.Fatalf("DetectVersion: %v", err)
	}
	if !v.IsRelease || !v.IsPrerelease {
		t.Fatalf("expected prerelease, got %+v", v)
	}
	if v.Version != "2.0.0-rc.1" || v.Prerelease != "rc.1" {
		t.Fatalf("version = %q prerelease = %q", v.Version, v.Prerelease)
	}
	if v.Stable() {
		t.Fatalf("prerelease must not be stable")
	}
}

func TestDetectVersion_PastTag(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, dir, repo, "main.go", "package main\n")
	tagHead(t, repo, "v1.0.0")
	commitFile(t, dir, repo, "extra.go", "package main\n")

	v, err := DetectVersion(dir)
	if err != nil {
		t.Fatalf("DetectVersion: %v", err)
	}
	if v.IsRelease {
		t.Fatalf("HEAD past the tag must not be a release: %+v", v)
	}
	if v.Version != "1.0.0-dev+"+v.SHA {
		t.Fatalf("dev version = %q", v.Version)
	}
}

func TestDetectVersion_NoTags(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, dir, repo, "main.go", "package main\n")

	v, err := DetectVersion(dir)
	if err != nil {
		t.Fatalf("DetectVersion: %v", err)
	}
	if v.Base != "0.0.0" {
		t.Fatalf("base = %q, want 0.0.0", v.Base)
	}
	if v.Version != "0.0.0-dev+"+v.SHA {
		t.Fatalf("version = %q", v.Version)
	}
}

func TestDetectVersion_Dirty(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, dir, repo, "main.go", "package main\n")
	tagHead(t, repo, "v1.0.0")

	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main // changed\n"), 0o644); err != nil {
		t.Fatalf("dirty write: %v", err)
	}

	v, err := DetectVersion(dir)
	if err != nil {
		t.Fatalf("DetectVersion: %v", err)
	}
	if !v.Dirty {
		t.Fatalf("expected dirty worktree: %+v", v)
	}
	if v.Stable() {
		t.Fatalf("dirty build must not be stable")
	}
}

func TestDetectVersion_NotARepo(t *testing.T) {
	if _, err := DetectVersion(t.TempDir()); err == nil {
		t.Fatalf("expected error outside a repository")
	}
}

func TestDetectVersion_IgnoresNonSemverTags(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, dir, repo, "main.go", "package main\n")
	tagHead(t, repo, "deployed-prod") // not a version tag
	tagHead(t, repo, "v1.5.0")

	v, err := DetectVersion(dir)
	if err != nil {
		t.Fatalf("DetectVersion: %v", err)
	}
	if !v.IsRelease || v.Version != "1.5.0" {
		t.Fatalf("expected 1.5.0 release, got %+v", v)
	}
}
