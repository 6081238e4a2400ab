package keyid

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
)

func testKey(t *testing.T) ed25519.PublicKey {
	t.Helper()
	pk, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return pk
}

func TestParseRoundTrip(t *testing.T) {
	kid := New("preprod", testKey(t)).WithRole(RoleProposer).WithRotation(2)
	got, err := Parse(kid.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.Equal(kid) {
		t.Fatalf("round trip mismatch: %s != %s", got, kid)
	}
	if got.Role != RoleProposer || got.Rotation != 2 {
		t.Fatalf("role/rotation lost: %v/%d", got.Role, got.Rotation)
	}
}

func TestShortIDStripsRoleAndRotation(t *testing.T) {
	pk := testKey(t)
	a := New("mainnet", pk).WithRole(RoleProposer)
	b := New("mainnet", pk).WithRole(RoleRegistered).WithRotation(7)
	if a.ShortID() != b.ShortID() {
		t.Fatalf("short ids differ: %s != %s", a.ShortID(), b.ShortID())
	}
	if strings.Contains(a.ShortID(), "://") {
		t.Fatalf("short id must not carry the scheme: %s", a.ShortID())
	}
}

func TestParseRejections(t *testing.T) {
	kid := New("mainnet", testKey(t))
	cases := []struct {
		name string
		in   string
	}{
		{"wrong scheme", "https://mainnet/abc/0/0"},
		{"missing segments", Scheme + "://mainnet/abc/0"},
		{"empty network", strings.Replace(kid.String(), "mainnet", "", 1)},
		{"bad key", Scheme + "://mainnet/!!/0/0"},
		{"short key", Scheme + "://mainnet/YWJj/0/0"},
		{"bad role", strings.Replace(kid.String(), "/0/0", "/x/0", 1)},
		{"bad rotation", strings.Replace(kid.String(), "/0/0", "/0/x", 1)},
	}
	for _, tc := range cases {
		if _, err := Parse(tc.in); err == nil {
			t.Fatalf("%s: expected error for %q", tc.name, tc.in)
		}
	}
}
