package registry

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// ResolveDigest fetches the manifest digest for a pushed image reference.
// The digest is content-addressed, so two pushes of identical content
// resolve to the same value.
func ResolveDigest(ctx context.Context, ref string, auth authn.Authenticator) (string, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return "", fmt.Errorf("parsing image reference %q: %w", ref, err)
	}

	if auth == nil {
		auth = authn.Anonymous
	}

	desc, err := remote.Head(parsed, remote.WithContext(ctx), remote.WithAuth(auth))
	if err != nil {
		// Fall back to the ambient docker keychain before giving up.
		desc, err = remote.Head(parsed, remote.WithContext(ctx), remote.WithAuthFromKeychain(authn.DefaultKeychain))
		if err != nil {
			return "", fmt.Errorf("fetching manifest for %s: %w", ref, err)
		}
	}

	return desc.Digest.String(), nil
}

// PinByDigest rewrites a tagged reference to its digest-pinned form:
//
//	ghcr.io/org/app:v1.2.3 + sha256:abc… → ghcr.io/org/app@sha256:abc…
func PinByDigest(ref, digest string) (string, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return "", fmt.Errorf("parsing image reference %q: %w", ref, err)
	}
	return parsed.Context().Name() + "@" + digest, nil
}
