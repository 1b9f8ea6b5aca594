package registry

import "testing"

func TestPinByDigest(t *testing.T) {
	cases := []struct {
		ref    string
		digest string
		want   string
	}{
		{
			"ghcr.io/org/app:1.4.0",
			"sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
			"ghcr.io/org/app@sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
		{
			// Bare reference: default tag and registry resolve, digest pins.
			"org/app",
			"sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
			"index.docker.io/org/app@sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
		{
			// Port-qualified private registry.
			"registry.local:5000/app:v2",
			"sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
			"registry.local:5000/app@sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
	}
	for _, tc := range cases {
		got, err := PinByDigest(tc.ref, tc.digest)
		if err != nil {
			t.Errorf("PinByDigest(%q): %v", tc.ref, err)
			continue
		}
		if got != tc.want {
			t.Errorf("PinByDigest(%q) = %q, want %q", tc.ref, got, tc.want)
		}
	}
}

func TestPinByDigest_Idempotent(t *testing.T) {
	digest := "sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

	pinned, err := PinByDigest("ghcr.io/org/app:1.4.0", digest)
	if err != nil {
		t.Fatalf("PinByDigest: %v", err)
	}
	again, err := PinByDigest(pinned, digest)
	if err != nil {
		t.Fatalf("PinByDigest on pinned ref: %v", err)
	}
	if again != pinned {
		t.Fatalf("re-pinning changed the reference: %q vs %q", again, pinned)
	}
}

func TestPinByDigest_BadReference(t *testing.T) {
	if _, err := PinByDigest("not a ref!!", "sha256:abc"); err == nil {
		t.Fatalf("expected parse error for malformed reference")
	}
	if _, err := PinByDigest("", "sha256:abc"); err == nil {
		t.Fatalf("expected parse error for empty reference")
	}
}
