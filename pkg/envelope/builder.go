package envelope

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"signeddoc/pkg/keyid"
	"signeddoc/pkg/metadata"
)

// signer is a pending signing key recorded by the builder.
type signer struct {
	key ed25519.PrivateKey
	kid keyid.KeyID
}

// Builder assembles and signs a document envelope.
type Builder struct {
	meta    *metadata.Metadata
	content []byte
	signers []signer
}

// NewBuilder starts a builder for the given metadata.
func NewBuilder(meta *metadata.Metadata) *Builder {
	return &Builder{meta: meta}
}

// WithContent sets the decoded document content. The builder applies the
// content encoding declared in the metadata at build time.
func (b *Builder) WithContent(content []byte) *Builder {
	b.content = content
	return b
}

// Sign records a signing key. Every recorded key produces one signature.
func (b *Builder) Sign(key ed25519.PrivateKey, kid keyid.KeyID) *Builder {
	b.signers = append(b.signers, signer{key: key, kid: kid})
	return b
}

// Build encodes, signs and decodes the envelope, returning the finished
// document.
func (b *Builder) Build() (*Document, error) {
	if b.meta == nil {
		return nil, errors.New("builder: missing metadata")
	}
	hdr, err := b.meta.ToHeader()
	if err != nil {
		return nil, err
	}
	protected, err := metadata.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("encode protected header: %w", err)
	}

	payload, err := encodeContent(b.content, b.meta.ContentEncoding)
	if err != nil {
		return nil, err
	}

	cs := coseSign{
		Protected:   protected,
		Unprotected: map[any]any{},
		Payload:     payload,
	}
	for _, s := range b.signers {
		sigProtected, err := metadata.Marshal(map[any]any{
			labelAlg: algEdDSA,
			labelKid: []byte(s.kid.String()),
		})
		if err != nil {
			return nil, err
		}
		tbs, err := tbsBytes(protected, sigProtected, payload)
		if err != nil {
			return nil, err
		}
		cs.Signatures = append(cs.Signatures, coseSignature{
			Protected:   sigProtected,
			Unprotected: map[any]any{},
			Signature:   ed25519.Sign(s.key, tbs),
		})
	}

	raw, err := metadata.Marshal(cs)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	doc := &Document{
		Meta:      b.meta,
		raw:       raw,
		protected: protected,
		payload:   payload,
		content:   b.content,
	}
	for i, sig := range cs.Signatures {
		doc.sigs = append(doc.sigs, Signature{
			KeyID:     b.signers[i].kid,
			Bytes:     sig.Signature,
			protected: sig.Protected,
		})
	}
	return doc, nil
}
