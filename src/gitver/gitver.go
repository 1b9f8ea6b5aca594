// Package gitver derives version metadata from the git repository and
// resolves tag/template placeholders against it. It feeds default image tags
// for the build pipeline and {version}/{sha}/{branch} rendering for job specs.
package gitver

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// VersionInfo holds resolved version metadata from git.
type VersionInfo struct {
	Version      string // full version: "1.2.3", "1.2.3-alpha.1", "0.0.0-dev+abc1234"
	Base         string // semver base without prerelease: "1.2.3"
	Major        string
	Minor        string
	Patch        string
	Prerelease   string // "alpha.1", "beta.2", "rc.1", or "" for stable
	SHA          string // short (7) commit hash
	FullSHA      string
	Branch       string
	IsRelease    bool // true if HEAD is exactly at a version tag
	IsPrerelease bool // true if that tag has a prerelease suffix
	Dirty        bool // true if the worktree has uncommitted changes
}

// Stable reports whether this is a clean stable release build: HEAD exactly
// at a semver tag with no prerelease suffix and a clean worktree. Drives
// whether the literal "latest" tag is applied.
func (v *VersionInfo) Stable() bool {
	return v.IsRelease && !v.IsPrerelease && !v.Dirty
}

// DetectVersion resolves version info from the repository at rootDir.
func DetectVersion(rootDir string) (*VersionInfo, error) {
	repo, err := git.PlainOpenWithOptions(rootDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	v := &VersionInfo{
		FullSHA: head.Hash().String(),
		SHA:     head.Hash().String()[:7],
	}
	if head.Name().IsBranch() {
		v.Branch = head.Name().Short()
	}

	if wt, wtErr := repo.Worktree(); wtErr == nil {
		if status, stErr := wt.Status(); stErr == nil {
			v.Dirty = !status.IsClean()
		}
	}

	headTag, highest := versionTags(repo, head.Hash())

	switch {
	case headTag != nil:
		v.IsRelease = true
		applySemver(v, headTag)
	case highest != nil:
		applySemver(v, highest)
	default:
		// No version tags at all — dev version
		v.Base = "0.0.0"
		v.Major, v.Minor, v.Patch = "0", "0", "0"
	}

	if !v.IsRelease {
		v.Version = fmt.Sprintf("%s-dev+%s", v.Base, v.SHA)
	}

	return v, nil
}

// applySemver fills the version fields from a parsed tag.
func applySemver(v *VersionInfo, sv *semver.Version) {
	v.Major = fmt.Sprintf("%d", sv.Major())
	v.Minor = fmt.Sprintf("%d", sv.Minor())
	v.Patch = fmt.Sprintf("%d", sv.Patch())
	v.Base = fmt.Sprintf("%d.%d.%d", sv.Major(), sv.Minor(), sv.Patch())
	v.Version = v.Base

	if pre := sv.Prerelease(); pre != "" {
		v.Prerelease = pre
		v.IsPrerelease = true
		v.Version = v.Base + "-" + pre
	}
}

// versionTags walks all tags, returning the tag pointing exactly at head (if
// any) and the highest semver tag in the repository. Annotated tags are
// dereferenced to their target commit.
func versionTags(repo *git.Repository, head plumbing.Hash) (atHead, highest *semver.Version) {
	iter, err := repo.Tags()
	if err != nil {
		return nil, nil
	}
	defer iter.Close()

	_ = iter.ForEach(func(ref *plumbing.Reference) error {
		name := strings.TrimPrefix(ref.Name().Short(), "v")
		sv, parseErr := semver.StrictNewVersion(name)
		if parseErr != nil {
			return nil // not a version tag
		}

		target := ref.Hash()
		if tag, tagErr := repo.TagObject(ref.Hash()); tagErr == nil {
			target = tag.Target
		}

		if target == head {
			if atHead == nil || sv.GreaterThan(atHead) {
				atHead = sv
			}
		}
		if highest == nil || sv.GreaterThan(highest) {
			highest = sv
		}
		return nil
	})

	return atHead, highest
}
