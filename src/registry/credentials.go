// Package registry resolves registry credentials and post-push image digests.
package registry

import (
	"os"

	"github.com/google/go-containerregistry/pkg/authn"
)

// ResolveCredentials reads registry auth from environment variables using the
// configured prefix:
//
//	prefix "GHCR"     → GHCR_USER / GHCR_PASS
//	prefix "DOCKER"   → DOCKER_USER / DOCKER_PASS
//
// Either value missing yields empty credentials (anonymous pulls still work).
func ResolveCredentials(prefix string) (user, pass string) {
	if prefix == "" {
		return "", ""
	}
	return os.Getenv(prefix + "_USER"), os.Getenv(prefix + "_PASS")
}

// Authenticator returns the auth to use for a registry: basic auth from the
// env prefix when present, otherwise the ambient docker keychain.
func Authenticator(prefix string) authn.Authenticator {
	user, pass := ResolveCredentials(prefix)
	if user == "" || pass == "" {
		return authn.Anonymous
	}
	return &authn.Basic{Username: user, Password: pass}
}
