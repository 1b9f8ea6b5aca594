package config

import "time"

// ClusterConfig describes one deploy target: a Nomad control plane reachable
// directly over HTTP(S) or through an SSH tunnel.
type ClusterConfig struct {
	Name string `yaml:"-"` // filled from the cluster map key

	// Address is the Nomad API base URL, e.g. "https://nomad.example.com:4646".
	// With a tunnel configured this is the address as seen from the SSH host,
	// typically "http://127.0.0.1:4646".
	Address string `yaml:"address"`

	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`

	// TokenEnv names the environment variable holding the ACL token.
	TokenEnv string `yaml:"token_env"`

	// Timeout bounds each API request.
	Timeout time.Duration `yaml:"timeout"`

	Tunnel *TunnelConfig `yaml:"tunnel"`
}

// TunnelConfig describes an SSH hop in front of the cluster API.
type TunnelConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`

	// KeyFile is the path to the private key. KeyEnv, if set, names an env
	// var holding the key material directly and takes precedence.
	KeyFile string `yaml:"key_file"`
	KeyEnv  string `yaml:"key_env"`

	// KnownHostsFile enables host key verification against the given file.
	// Empty skips verification (private CI runners talking to ephemeral hosts).
	KnownHostsFile string `yaml:"known_hosts_file"`
}

func (c ClusterConfig) withDefaults() ClusterConfig {
	if c.Address == "" {
		c.Address = "http://127.0.0.1:4646"
	}
	if c.TokenEnv == "" {
		c.TokenEnv = "NOMAD_TOKEN"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Tunnel != nil && c.Tunnel.Port == 0 {
		c.Tunnel.Port = 22
	}
	return c
}
