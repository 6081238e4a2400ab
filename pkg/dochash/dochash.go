// Package dochash computes and verifies content addresses for signed
// documents. Accepted documents are addressed by a CIDv1 over the raw
// envelope bytes, using blake2b-256 and the raw codec.
package dochash

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrInvalidLocator = errors.New("invalid document locator")
	ErrHashMismatch   = errors.New("document hash mismatch")
)

// Sum returns the blake2b-256 digest of data.
func Sum(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

// CIDOf returns the content identifier of a raw document envelope.
func CIDOf(data []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(data, multihash.BLAKE2B_MIN+31, 32)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// ParseLocator decodes raw locator bytes into a CID.
func ParseLocator(locator []byte) (cid.Cid, error) {
	c, err := cid.Cast(locator)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}
	return c, nil
}

// VerifyLocator recomputes the content identifier of data and compares it
// against the locator bytes carried in a document reference.
func VerifyLocator(locator, data []byte) error {
	want, err := ParseLocator(locator)
	if err != nil {
		return err
	}
	got, err := CIDOf(data)
	if err != nil {
		return err
	}
	if !bytes.Equal(want.Bytes(), got.Bytes()) {
		return fmt.Errorf("%w: locator %s, content %s", ErrHashMismatch, want, got)
	}
	return nil
}
