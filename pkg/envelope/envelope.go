// Package envelope implements the COSE_Sign envelope of a signed document:
// deterministic CBOR encoding and decoding, payload content encoding, and
// Ed25519 signing over the RFC 9052 Signature structure.
package envelope

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"

	"signeddoc/pkg/keyid"
	"signeddoc/pkg/metadata"
	"signeddoc/pkg/problems"
)

// COSE header labels used in the signature protected header.
const (
	labelAlg = int64(1)
	labelKid = int64(4)
)

// EdDSA algorithm identifier.
const algEdDSA = int64(-8)

// Context string of the COSE to-be-signed structure.
const sigContext = "Signature"

var (
	ErrMalformed        = errors.New("malformed signed document envelope")
	ErrNoContent        = errors.New("document has no content")
	ErrInvalidSignature = errors.New("invalid signature")
)

type coseSign struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected map[any]any
	Payload     []byte
	Signatures  []coseSignature
}

type coseSignature struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected map[any]any
	Signature   []byte
}

// Signature is a single decoded document signature.
type Signature struct {
	KeyID keyid.KeyID
	Bytes []byte

	protected []byte
}

// Document is a decoded signed document envelope.
type Document struct {
	Meta *metadata.Metadata

	raw       []byte
	protected []byte
	payload   []byte
	content   []byte
	sigs      []Signature
}

// Decode parses raw envelope bytes. A structurally unparseable envelope is a
// hard error; recoverable field problems are recorded in the report and the
// document carries whatever decoded cleanly.
func Decode(raw []byte, rep *problems.Report) (*Document, error) {
	const context = "envelope decoding"

	var cs coseSign
	if err := metadata.Unmarshal(raw, &cs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var hdr map[any]any
	if err := metadata.Unmarshal(cs.Protected, &hdr); err != nil {
		return nil, fmt.Errorf("%w: protected header: %v", ErrMalformed, err)
	}
	meta := metadata.FromHeader(hdr, rep)

	doc := &Document{
		Meta:      meta,
		raw:       append([]byte(nil), raw...),
		protected: cs.Protected,
		payload:   cs.Payload,
	}

	for i, sig := range cs.Signatures {
		kid, err := kidFromProtected(sig.Protected)
		if err != nil {
			rep.Add(problems.Entry{
				Kind:       problems.KindMalformedEnvelope,
				Field:      "kid",
				Constraint: err.Error(),
				Context:    fmt.Sprintf("%s, signature [%d]", context, i),
			})
			continue
		}
		doc.sigs = append(doc.sigs, Signature{
			KeyID:     kid,
			Bytes:     sig.Signature,
			protected: sig.Protected,
		})
	}

	if len(cs.Payload) > 0 {
		content, err := decodeContent(cs.Payload, meta.ContentEncoding)
		if err != nil {
			rep.Add(problems.Entry{
				Kind:       problems.KindMalformedEnvelope,
				Field:      "payload",
				Constraint: err.Error(),
				Context:    context,
			})
		} else {
			doc.content = content
		}
	}

	return doc, nil
}

// Bytes returns the exact envelope bytes this document was decoded from or
// built as. Re-encoding a decoded document is byte-identical.
func (d *Document) Bytes() []byte { return d.raw }

// Payload returns the wire payload, still content-encoded.
func (d *Document) Payload() []byte { return d.payload }

// Content returns the decoded payload.
func (d *Document) Content() ([]byte, error) {
	if d.content == nil {
		return nil, ErrNoContent
	}
	return d.content, nil
}

// Signatures returns the decoded signatures.
func (d *Document) Signatures() []Signature { return d.sigs }

// Authors returns the key ID of every signer.
func (d *Document) Authors() []keyid.KeyID {
	out := make([]keyid.KeyID, len(d.sigs))
	for i, s := range d.sigs {
		out[i] = s.KeyID
	}
	return out
}

// AuthorShortIDs returns the deduplicated short ID of every signer.
func (d *Document) AuthorShortIDs() []string {
	seen := make(map[string]struct{}, len(d.sigs))
	out := make([]string, 0, len(d.sigs))
	for _, s := range d.sigs {
		short := s.KeyID.ShortID()
		if _, ok := seen[short]; ok {
			continue
		}
		seen[short] = struct{}{}
		out = append(out, short)
	}
	return out
}

// VerifySignature checks one signature against a registered public key.
func (d *Document) VerifySignature(sig Signature, pk ed25519.PublicKey) error {
	if len(sig.Bytes) != ed25519.SignatureSize {
		return fmt.Errorf("%w: signature length %d", ErrInvalidSignature, len(sig.Bytes))
	}
	tbs, err := tbsBytes(d.protected, sig.protected, d.payload)
	if err != nil {
		return err
	}
	if !ed25519.Verify(pk, tbs, sig.Bytes) {
		return ErrInvalidSignature
	}
	return nil
}

func tbsBytes(bodyProtected, sigProtected, payload []byte) ([]byte, error) {
	if payload == nil {
		payload = []byte{}
	}
	return metadata.Marshal([]any{sigContext, bodyProtected, sigProtected, []byte{}, payload})
}

func kidFromProtected(protected []byte) (keyid.KeyID, error) {
	var hdr map[any]any
	if err := metadata.Unmarshal(protected, &hdr); err != nil {
		return keyid.KeyID{}, fmt.Errorf("protected header: %w", err)
	}
	raw, ok := hdr[labelKid]
	if !ok {
		return keyid.KeyID{}, errors.New("missing kid header")
	}
	kidBytes, ok := raw.([]byte)
	if !ok {
		return keyid.KeyID{}, fmt.Errorf("kid must be a byte string, got %T", raw)
	}
	if alg, ok := hdr[labelAlg]; ok {
		if n, isInt := alg.(int64); !isInt || n != algEdDSA {
			return keyid.KeyID{}, fmt.Errorf("unsupported signature algorithm %v", alg)
		}
	}
	return keyid.Parse(string(kidBytes))
}

func decodeContent(payload []byte, encoding string) ([]byte, error) {
	switch encoding {
	case "":
		return payload, nil
	case metadata.EncodingBrotli:
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(payload)))
		if err != nil {
			return nil, fmt.Errorf("brotli decode: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

func encodeContent(content []byte, encoding string) ([]byte, error) {
	switch encoding {
	case "":
		return content, nil
	case metadata.EncodingBrotli:
		var buf bytes.Buffer
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(content); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}
