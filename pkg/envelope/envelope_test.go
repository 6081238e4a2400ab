package envelope

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/google/uuid"

	"signeddoc/pkg/keyid"
	"signeddoc/pkg/metadata"
	"signeddoc/pkg/problems"
	"signeddoc/pkg/uuidx"
)

type testSigner struct {
	sk  ed25519.PrivateKey
	pk  ed25519.PublicKey
	kid keyid.KeyID
}

func newTestSigner(t *testing.T, role keyid.Role) testSigner {
	t.Helper()
	pk, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return testSigner{sk: sk, pk: pk, kid: keyid.New("testnet", pk).WithRole(role)}
}

func testMeta() *metadata.Metadata {
	id := uuidx.NewV7()
	return &metadata.Metadata{
		Type:            []uuid.UUID{uuid.New()},
		ID:              id,
		Ver:             id,
		ContentType:     metadata.ContentTypeJSON,
		ContentEncoding: metadata.EncodingBrotli,
	}
}

func buildDoc(t *testing.T, meta *metadata.Metadata, content []byte, signers ...testSigner) *Document {
	t.Helper()
	b := NewBuilder(meta).WithContent(content)
	for _, s := range signers {
		b.Sign(s.sk, s.kid)
	}
	doc, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return doc
}

func TestBuildDecodeRoundTrip(t *testing.T) {
	signer := newTestSigner(t, keyid.RoleProposer)
	content := []byte(`{"title":"fund the archive"}`)
	doc := buildDoc(t, testMeta(), content, signer)

	rep := problems.New()
	decoded, err := Decode(doc.Bytes(), rep)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Problematic() {
		t.Fatalf("unexpected problems: %v", rep.Entries())
	}
	if !bytes.Equal(decoded.Bytes(), doc.Bytes()) {
		t.Fatal("decoded envelope bytes differ from built bytes")
	}
	got, err := decoded.Content()
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("content mismatch: %q != %q", got, content)
	}
	if decoded.Meta.ID != doc.Meta.ID || decoded.Meta.Ver != doc.Meta.Ver {
		t.Fatal("metadata identity mismatch")
	}
	if len(decoded.Signatures()) != 1 {
		t.Fatalf("expected 1 signature, got %d", len(decoded.Signatures()))
	}
	if !decoded.Signatures()[0].KeyID.Equal(signer.kid) {
		t.Fatal("kid mismatch")
	}
}

func TestRebuildIsByteIdentical(t *testing.T) {
	signer := newTestSigner(t, keyid.RoleProposer)
	meta := testMeta()
	content := []byte(`{"v":1}`)
	a := buildDoc(t, meta, content, signer)
	b := buildDoc(t, meta, content, signer)
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("deterministic encoding must be byte-identical across builds")
	}
}

func TestVerifySignature(t *testing.T) {
	signer := newTestSigner(t, keyid.RoleRegistered)
	doc := buildDoc(t, testMeta(), []byte(`{}`), signer)

	sig := doc.Signatures()[0]
	if err := doc.VerifySignature(sig, signer.pk); err != nil {
		t.Fatalf("verify: %v", err)
	}

	other := newTestSigner(t, keyid.RoleRegistered)
	if err := doc.VerifySignature(sig, other.pk); err == nil {
		t.Fatal("verify with the wrong key must fail")
	}

	tampered := sig
	tampered.Bytes = append([]byte(nil), sig.Bytes...)
	tampered.Bytes[0] ^= 0xff
	if err := doc.VerifySignature(tampered, signer.pk); err == nil {
		t.Fatal("tampered signature must fail")
	}
}

func TestMultipleSignatures(t *testing.T) {
	author := newTestSigner(t, keyid.RoleProposer)
	collab := newTestSigner(t, keyid.RoleProposer)
	doc := buildDoc(t, testMeta(), []byte(`{}`), author, collab)

	if len(doc.Signatures()) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(doc.Signatures()))
	}
	for i, s := range []testSigner{author, collab} {
		if err := doc.VerifySignature(doc.Signatures()[i], s.pk); err != nil {
			t.Fatalf("signature [%d]: %v", i, err)
		}
	}
	shorts := doc.AuthorShortIDs()
	if len(shorts) != 2 {
		t.Fatalf("expected 2 short ids, got %v", shorts)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not cbor at all"), problems.New()); err == nil {
		t.Fatal("expected hard error")
	}
}

func TestDecodeWithoutEncoding(t *testing.T) {
	meta := testMeta()
	meta.ContentEncoding = ""
	content := []byte(`{"plain":true}`)
	doc := buildDoc(t, meta, content)

	rep := problems.New()
	decoded, err := Decode(doc.Bytes(), rep)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := decoded.Content()
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("plain payload must pass through unchanged")
	}
	if !bytes.Equal(decoded.Payload(), content) {
		t.Fatal("wire payload must equal content when no encoding is set")
	}
}
