package config

// BuildConfig holds docker buildx build configuration.
type BuildConfig struct {
	Context    string            `yaml:"context"`
	Dockerfile string            `yaml:"dockerfile"`
	Target     string            `yaml:"target"`
	Platforms  []string          `yaml:"platforms"`
	BuildArgs  map[string]string `yaml:"build_args"`
	Push       *bool             `yaml:"push"`
	Registries []RegistryConfig  `yaml:"registries"`
}

// RegistryConfig defines a registry push target.
type RegistryConfig struct {
	URL  string `yaml:"url"`
	Path string `yaml:"path"`

	// Tags are tag templates resolved against git version info:
	//   ["{version}", "{sha}", "latest"]
	// "latest" is only applied on stable release builds.
	Tags []string `yaml:"tags"`

	// Credentials is the env var prefix for auth
	// (e.g., "GHCR" → GHCR_USER / GHCR_PASS).
	Credentials string `yaml:"credentials"`
}

// PushEnabled reports whether built images should be pushed.
// Pushing defaults to on when any registry is configured.
func (b BuildConfig) PushEnabled() bool {
	if b.Push != nil {
		return *b.Push
	}
	return len(b.Registries) > 0
}

// DefaultBuildConfig returns sensible defaults for docker builds.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		Context:    ".",
		Dockerfile: "Dockerfile",
		Platforms:  []string{},
		BuildArgs:  map[string]string{},
	}
}
