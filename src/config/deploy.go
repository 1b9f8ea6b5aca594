package config

import "time"

// DeployConfig holds job rendering and rollout settings.
type DeployConfig struct {
	// JobFile is the Nomad job template path.
	JobFile string `yaml:"job_file"`

	// ImagePlaceholder is the exact image reference the template carries,
	// replaced with the freshly built reference at render time.
	ImagePlaceholder string `yaml:"image_placeholder"`

	// VarFiles maps environment name → TOML file with extra {var:*} values
	// for template rendering. The "*" key applies to every environment.
	VarFiles map[string]string `yaml:"var_files"`

	// PollInterval is the wait between rollout status polls.
	PollInterval time.Duration `yaml:"poll_interval"`

	// HealthTimeout is the hard deadline for the rollout to become healthy.
	// Hitting it fails the attempt; the cluster-side rollout is left as-is.
	HealthTimeout time.Duration `yaml:"health_timeout"`

	// RevertOnFailure reverts the job to its pre-deploy version when the
	// rollout fails after submission. The attempt still reports failure.
	RevertOnFailure bool `yaml:"revert_on_failure"`
}

// VarFile resolves the var file for an environment, falling back to "*".
func (d DeployConfig) VarFile(env string) string {
	if f, ok := d.VarFiles[env]; ok {
		return f
	}
	return d.VarFiles["*"]
}

// DefaultDeployConfig returns sensible defaults for rollouts.
func DefaultDeployConfig() DeployConfig {
	return DeployConfig{
		JobFile:       "deploy/job.nomad.hcl",
		PollInterval:  5 * time.Second,
		HealthTimeout: 5 * time.Minute,
	}
}
