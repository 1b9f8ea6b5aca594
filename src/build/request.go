package build

import (
	"os"
	"path/filepath"
	"time"
)

// Request describes a single image build. Immutable once constructed.
type Request struct {
	ContextDir string
	Dockerfile string
	Target     string
	Platforms  []string
	BuildArgs  map[string]string

	// Tags are fully qualified image references (registry/path:tag).
	Tags []string

	// Push publishes to the registries named in Tags. When false the image
	// is loaded into the local daemon and the digest is computed locally.
	Push bool
}

// Validate checks the build inputs exist before the backend is invoked.
func (r Request) Validate() error {
	if len(r.Tags) == 0 {
		return &Error{Kind: KindBadRequest, Detail: "no image tags resolved"}
	}
	if fi, err := os.Stat(r.ContextDir); err != nil || !fi.IsDir() {
		return &Error{Kind: KindBadRequest, Detail: "build context not found: " + r.ContextDir}
	}
	df := r.Dockerfile
	if !filepath.IsAbs(df) {
		df = filepath.Join(r.ContextDir, df)
	}
	if _, err := os.Stat(df); err != nil {
		return &Error{Kind: KindMissingDockerfile, Detail: df}
	}
	return nil
}

// MultiPlatform reports whether the request targets more than one platform.
// Multi-platform images can only be pushed, never loaded into the daemon.
func (r Request) MultiPlatform() bool {
	return len(r.Platforms) > 1
}

// Result captures the outcome of a build.
type Result struct {
	// ImageRef is the primary reference for deployment: the first tag,
	// pinned by digest when one was resolved.
	ImageRef string

	Tags     []string // all references, in request order
	Digest   string   // "sha256:..." — registry digest after push, local image ID otherwise
	Pushed   bool
	Duration time.Duration
}
