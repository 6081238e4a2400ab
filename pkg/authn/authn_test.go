package authn

import "testing"

func TestParseBearerToken(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
		ok   bool
	}{
		{"Bearer tok_abc", "tok_abc", true},
		{"Bearer   spaced  ", "spaced", true},
		{"bearer tok_abc", "", false},
		{"Basic dXNlcg==", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	} {
		got, ok := parseBearerToken(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("parse %q: got %q %v", tc.in, got, ok)
		}
	}
}

func TestHashTokenIsStable(t *testing.T) {
	a := HashToken("tok_abc")
	if a != HashToken("tok_abc") {
		t.Fatalf("hash must be deterministic")
	}
	if a == HashToken("tok_abd") {
		t.Fatalf("distinct tokens must not collide")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %q", a)
	}
}

func TestClientHasScope(t *testing.T) {
	c := &Client{Name: "registrar", Scopes: []string{"keys.register"}}
	if !c.HasScope("keys.register") {
		t.Fatalf("expected scope grant")
	}
	if c.HasScope("documents.accept") {
		t.Fatalf("unexpected scope grant")
	}
}
