package dochash

import (
	"errors"
	"testing"
)

func TestCIDOfIsStable(t *testing.T) {
	data := []byte("signed document bytes")
	a, err := CIDOf(data)
	if err != nil {
		t.Fatalf("cid: %v", err)
	}
	b, err := CIDOf(data)
	if err != nil {
		t.Fatalf("cid: %v", err)
	}
	if !a.Equals(b) {
		t.Fatalf("cid not deterministic: %s != %s", a, b)
	}
	if a.Version() != 1 {
		t.Fatalf("expected CIDv1, got v%d", a.Version())
	}
}

func TestVerifyLocator(t *testing.T) {
	data := []byte("envelope")
	c, err := CIDOf(data)
	if err != nil {
		t.Fatalf("cid: %v", err)
	}
	if err := VerifyLocator(c.Bytes(), data); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := VerifyLocator(c.Bytes(), []byte("tampered")); !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("expected hash mismatch, got %v", err)
	}
	if err := VerifyLocator([]byte{0xff, 0x01}, data); !errors.Is(err, ErrInvalidLocator) {
		t.Fatalf("expected invalid locator, got %v", err)
	}
}
