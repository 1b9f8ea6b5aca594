package build

import (
	"fmt"

	"github.com/sofmeright/slipway/src/config"
	"github.com/sofmeright/slipway/src/gitver"
)

// ResolveTags expands each registry's tag templates into fully qualified
// image references. The literal "latest" template only applies on stable
// release builds (clean worktree, HEAD exactly at a stable semver tag).
func ResolveTags(registries []config.RegistryConfig, v *gitver.VersionInfo) []string {
	var refs []string
	for _, reg := range registries {
		for _, tmpl := range reg.Tags {
			if tmpl == "latest" && (v == nil || !v.Stable()) {
				continue
			}
			tag := gitver.ResolveTemplate(tmpl, v)
			refs = append(refs, fmt.Sprintf("%s/%s:%s", reg.URL, reg.Path, tag))
		}
	}
	return refs
}
