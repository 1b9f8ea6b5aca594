package nomad

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/sofmeright/slipway/src/config"
)

// tunnel dials TCP connections through an SSH hop. The SSH session is
// established lazily on first use and reused for subsequent requests.
type tunnel struct {
	cfg config.TunnelConfig

	mu     sync.Mutex
	client *ssh.Client
}

// newTunnel validates the tunnel config and prepares a dialer.
func newTunnel(cfg config.TunnelConfig) (*tunnel, error) {
	if cfg.Host == "" || cfg.User == "" {
		return nil, fmt.Errorf("nomad: tunnel requires host and user")
	}
	if cfg.KeyEnv == "" && cfg.KeyFile == "" {
		return nil, fmt.Errorf("nomad: tunnel requires key_env or key_file")
	}
	return &tunnel{cfg: cfg}, nil
}

// DialContext satisfies http.Transport's dialer hook.
func (t *tunnel) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	client, err := t.sshClient()
	if err != nil {
		return nil, err
	}
	conn, err := client.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("tunnel dial %s: %w", addr, err)
	}
	return conn, nil
}

func (t *tunnel) sshClient() (*ssh.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return t.client, nil
	}

	signer, err := t.signer()
	if err != nil {
		return nil, err
	}

	hostKey, err := t.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	sshCfg := &ssh.ClientConfig{
		User:            t.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKey,
	}

	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
	client, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}
	t.client = client
	return client, nil
}

// signer loads the private key, preferring key material from the env var
// over the on-disk file.
func (t *tunnel) signer() (ssh.Signer, error) {
	var key []byte
	if t.cfg.KeyEnv != "" {
		key = []byte(os.Getenv(t.cfg.KeyEnv))
		if len(key) == 0 {
			return nil, fmt.Errorf("tunnel key env %s is empty", t.cfg.KeyEnv)
		}
	} else {
		data, err := os.ReadFile(t.cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading tunnel key: %w", err)
		}
		key = data
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parsing tunnel key: %w", err)
	}
	return signer, nil
}

func (t *tunnel) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if t.cfg.KnownHostsFile == "" {
		// No known_hosts configured — ephemeral CI hosts.
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(t.cfg.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts: %w", err)
	}
	return cb, nil
}

// Close tears down the SSH session if one was established.
func (t *tunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}
