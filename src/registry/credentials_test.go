package registry

import (
	"testing"

	"github.com/google/go-containerregistry/pkg/authn"
)

func TestResolveCredentials(t *testing.T) {
	t.Setenv("GHCR_USER", "octocat")
	t.Setenv("GHCR_PASS", "hunter2")

	user, pass := ResolveCredentials("GHCR")
	if user != "octocat" || pass != "hunter2" {
		t.Fatalf("got %q / %q", user, pass)
	}
}

func TestResolveCredentials_EmptyPrefix(t *testing.T) {
	user, pass := ResolveCredentials("")
	if user != "" || pass != "" {
		t.Fatalf("empty prefix must yield empty credentials, got %q / %q", user, pass)
	}
}

func TestAuthenticator(t *testing.T) {
	t.Setenv("REG_USER", "deploy")
	t.Setenv("REG_PASS", "s3cret")

	auth := Authenticator("REG")
	basic, ok := auth.(*authn.Basic)
	if !ok {
		t.Fatalf("expected basic auth, got %T", auth)
	}
	if basic.Username != "deploy" || basic.Password != "s3cret" {
		t.Fatalf("basic = %+v", basic)
	}
}

func TestAuthenticator_MissingCredentials(t *testing.T) {
	t.Setenv("PARTIAL_USER", "deploy")
	// no PARTIAL_PASS

	if auth := Authenticator("PARTIAL"); auth != authn.Anonymous {
		t.Fatalf("partial credentials should fall back to anonymous, got %T", auth)
	}
	if auth := Authenticator("UNSET_PREFIX"); auth != authn.Anonymous {
		t.Fatalf("unset prefix should be anonymous, got %T", auth)
	}
}
