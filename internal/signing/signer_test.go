package signing

import (
	"testing"
	"time"

	"github.com/sfsm565826960/PostmanLite/internal/errdef"
	"github.com/sfsm565826960/PostmanLite/internal/reqspec"
)

type mapCreds map[string]string

func (m mapCreds) Get(name string) string { return m[name] }

func fixedSigner(creds CredentialSource, ms int64) *Signer {
	s := NewSigner(creds)
	s.now = func() time.Time { return time.UnixMilli(ms) }
	return s
}

func TestComputeKnownAnswer(t *testing.T) {
	signer := fixedSigner(mapCreds{"auth_value": "tokenXYZ"}, 1719859200123)

	set, err := signer.Compute(reqspec.AuthConfig{
		Enabled:   true,
		AppID:     "app123",
		SecretKey: "s3cret",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Timestamp != "1719859200123" {
		t.Fatalf("unexpected timestamp %q", set.Timestamp)
	}
	if set.Nonce != "200123" {
		t.Fatalf("unexpected nonce %q", set.Nonce)
	}
	if set.AuthType != "1" {
		t.Fatalf("unexpected auth type %q", set.AuthType)
	}
	if set.AuthValue != "tokenXYZ" {
		t.Fatalf("unexpected auth value %q", set.AuthValue)
	}
	want := "45c02eade397e12d8bc420765be71166f63ded66bf267fb7e039b31ee7f496ed"
	if set.Signature != want {
		t.Fatalf("signature mismatch:\n got %s\nwant %s", set.Signature, want)
	}
}

func TestComputeMissingCredentialResolvesEmpty(t *testing.T) {
	signer := fixedSigner(mapCreds{}, 1719859200123)

	set, err := signer.Compute(reqspec.AuthConfig{
		Enabled:   true,
		AppID:     "app123",
		SecretKey: "s3cret",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.AuthValue != "" {
		t.Fatalf("expected empty auth value, got %q", set.AuthValue)
	}
	want := "d2a2dabb9c0333ec08180ab47f0ce36d6d06930461b309871755c222d1a13e2c"
	if set.Signature != want {
		t.Fatalf("signature mismatch:\n got %s\nwant %s", set.Signature, want)
	}
}

func TestComputeInputChangesChangeSignature(t *testing.T) {
	base := computeAt("app123", "s3cret", "tokenXYZ", "1719859200123")

	otherSecret := computeAt("app123", "other", "tokenXYZ", "1719859200123")
	if otherSecret.Signature == base.Signature {
		t.Fatalf("changing the secret did not change the signature")
	}
	if otherSecret.Signature != "f1ed60d0716fd7e61d087e8cdaf3354322c9aed6f3eb1b6b6d2ce996a5e9f05e" {
		t.Fatalf("unexpected signature %s", otherSecret.Signature)
	}

	otherApp := computeAt("app124", "s3cret", "tokenXYZ", "1719859200123")
	if otherApp.Signature == base.Signature {
		t.Fatalf("changing the app id did not change the signature")
	}
	if otherApp.Signature != "b2806f5fa786860cefd8256edbcaa1b0ee76e6337e287e37bea5997ecabe5ed7" {
		t.Fatalf("unexpected signature %s", otherApp.Signature)
	}
}

func TestComputeDeterministic(t *testing.T) {
	first := computeAt("app123", "s3cret", "tokenXYZ", "1719859200123")
	second := computeAt("app123", "s3cret", "tokenXYZ", "1719859200123")
	if first != second {
		t.Fatalf("same inputs produced different header sets:\n%#v\n%#v", first, second)
	}
}

func TestNonceFromShortTimestamp(t *testing.T) {
	set := computeAt("a", "k", "v", "123")
	if set.Nonce != "123" {
		t.Fatalf("expected short timestamp to be its own nonce, got %q", set.Nonce)
	}
	if set.Signature != "48591cc0a3d1ca0ba02442dea37240547e718ed625fd5fd980359adbe912a617" {
		t.Fatalf("unexpected signature %s", set.Signature)
	}
}

func TestComputeRequiresKeyMaterial(t *testing.T) {
	signer := fixedSigner(mapCreds{}, 1719859200123)

	_, err := signer.Compute(reqspec.AuthConfig{Enabled: true, AppID: "app123"})
	if !errdef.IsCode(err, errdef.CodeAuth) {
		t.Fatalf("expected auth error for missing secret, got %v", err)
	}

	_, err = signer.Compute(reqspec.AuthConfig{Enabled: true, SecretKey: "s3cret"})
	if !errdef.IsCode(err, errdef.CodeAuth) {
		t.Fatalf("expected auth error for missing app id, got %v", err)
	}
}

func TestComputeUsesConfiguredCredentialKey(t *testing.T) {
	creds := mapCreds{"auth_value": "default", "session": "custom"}
	signer := fixedSigner(creds, 1719859200123)

	set, err := signer.Compute(reqspec.AuthConfig{
		Enabled:       true,
		AppID:         "app123",
		SecretKey:     "s3cret",
		CredentialKey: "session",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.AuthValue != "custom" {
		t.Fatalf("expected configured credential key to win, got %q", set.AuthValue)
	}

	set, err = signer.Compute(reqspec.AuthConfig{
		Enabled:   true,
		AppID:     "app123",
		SecretKey: "s3cret",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.AuthValue != "default" {
		t.Fatalf("expected default credential key, got %q", set.AuthValue)
	}
}

func TestPairsWireOrder(t *testing.T) {
	set := computeAt("app123", "s3cret", "tokenXYZ", "1719859200123")
	pairs := set.Pairs()

	wantKeys := []string{"x-appid", "x-request-ts", "x-nonce", "x-auth-type", "x-auth-value", "x-sign"}
	if len(pairs) != len(wantKeys) {
		t.Fatalf("expected %d pairs, got %d", len(wantKeys), len(pairs))
	}
	for i, key := range wantKeys {
		if pairs[i][0] != key {
			t.Fatalf("pair %d: expected key %q, got %q", i, key, pairs[i][0])
		}
	}
	if pairs[5][1] != set.Signature {
		t.Fatalf("x-sign does not carry the signature")
	}
}
