// Package jobspec renders Nomad job templates into concrete, submittable
// specs. Rendering is an exact image-reference substitution plus template
// variable expansion, followed by an HCL syntax gate — a spec that does not
// parse never leaves this package.
package jobspec

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sofmeright/slipway/src/gitver"
)

// ErrPlaceholderNotFound means the template contains neither the configured
// placeholder nor the target image reference. Failing here prevents silently
// deploying whatever stale image the template happens to carry.
var ErrPlaceholderNotFound = errors.New("jobspec: image placeholder not found in template")

// Template is a raw job template read from disk.
type Template struct {
	Path   string
	Source string
}

// Load reads a job template file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job template: %w", err)
	}
	return &Template{Path: path, Source: string(data)}, nil
}

// Rewrite substitutes the placeholder image reference with imageRef.
//
// It is idempotent: a source already carrying imageRef (and no placeholder)
// passes through unchanged, so rewrite(rewrite(t)) == rewrite(t). A source
// with neither string fails with ErrPlaceholderNotFound.
func Rewrite(source, placeholder, imageRef string) (string, int, error) {
	if placeholder == "" {
		return "", 0, errors.New("jobspec: image placeholder not configured")
	}
	if imageRef == "" {
		// Contains(source, "") is vacuously true; an empty ref would slip
		// through the already-rewritten check below.
		return "", 0, errors.New("jobspec: image reference is empty")
	}

	n := strings.Count(source, placeholder)
	if n == 0 || placeholder == imageRef {
		if strings.Contains(source, imageRef) {
			return source, 0, nil // already rewritten
		}
		return "", 0, ErrPlaceholderNotFound
	}

	return strings.ReplaceAll(source, placeholder, imageRef), n, nil
}

// RenderOptions carries everything a full render needs beyond the template.
type RenderOptions struct {
	Placeholder string
	ImageRef    string
	Version     *gitver.VersionInfo
	Vars        map[string]string
}

// Render produces a concrete job spec: image substitution, then {version}/
// {sha}/{env:*} templates, then {var:*} values, then the syntax gate.
func Render(t *Template, opts RenderOptions) (string, error) {
	spec, _, err := Rewrite(t.Source, opts.Placeholder, opts.ImageRef)
	if err != nil {
		return "", err
	}

	spec = gitver.ResolveTemplate(spec, opts.Version)
	spec = gitver.ResolveVars(spec, opts.Vars)

	if err := CheckSyntax(t.Path, []byte(spec)); err != nil {
		return "", err
	}
	return spec, nil
}
