package config

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultConfigFile = ".slipway.yml"

// Config is the top-level Slipway configuration.
type Config struct {
	Build  BuildConfig  `yaml:"build"`
	Deploy DeployConfig `yaml:"deploy"`

	// Cluster holds one entry per target environment (staging, production).
	Cluster map[string]ClusterConfig `yaml:"cluster"`
}

// Load reads configuration from a YAML file.
// If path is empty, it tries the default file.
// Returns sensible defaults if the file doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaults(), nil
		}
		return nil, err
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Environment resolves the named environment's cluster config.
func (c *Config) Environment(name string) (ClusterConfig, error) {
	cc, ok := c.Cluster[name]
	if !ok {
		return ClusterConfig{}, &UnknownEnvironmentError{Name: name}
	}
	cc.Name = name
	return cc.withDefaults(), nil
}

// UnknownEnvironmentError reports a deploy target absent from the cluster map.
type UnknownEnvironmentError struct {
	Name string
}

func (e *UnknownEnvironmentError) Error() string {
	return "unknown environment: " + e.Name
}

func defaults() *Config {
	return &Config{
		Build:   DefaultBuildConfig(),
		Deploy:  DefaultDeployConfig(),
		Cluster: map[string]ClusterConfig{},
	}
}
