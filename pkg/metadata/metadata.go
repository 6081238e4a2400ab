// Package metadata defines the protected-header metadata of a signed
// document and its deterministic CBOR wire forms.
package metadata

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"signeddoc/pkg/problems"
	"signeddoc/pkg/uuidx"
)

// COSE protected header label for the payload content type.
const coseContentTypeLabel = int64(3)

// Text labels of the metadata fields within the protected header.
const (
	labelContentEncoding = "Content-Encoding"
	labelType            = "type"
	labelID              = "id"
	labelVer             = "ver"
	labelRef             = "ref"
	labelTemplate        = "template"
	labelReply           = "reply"
	labelParameters      = "parameters"
	labelSection         = "section"
	labelCollaborators   = "collaborators"
	labelRevocations     = "revocations"
	labelChain           = "chain"
)

// Supported payload content types.
const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

// EncodingBrotli is the only supported payload content encoding.
const EncodingBrotli = "br"

var ErrMalformedHeader = errors.New("malformed protected header")

var (
	canonicalEnc cbor.EncMode
	canonicalDec cbor.DecMode
)

func init() {
	var err error
	canonicalEnc, err = cbor.EncOptions{Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		panic(err)
	}
	// Signed integers keep protected header lookups by int64 label working.
	canonicalDec, err = cbor.DecOptions{IntDec: cbor.IntDecConvertSigned}.DecMode()
	if err != nil {
		panic(err)
	}
}

func encodeCanonical(v any) ([]byte, error) {
	return canonicalEnc.Marshal(v)
}

// Marshal encodes v using the canonical wire encoding shared by every
// document structure.
func Marshal(v any) ([]byte, error) {
	return canonicalEnc.Marshal(v)
}

// Unmarshal decodes canonical wire bytes into v.
func Unmarshal(data []byte, v any) error {
	return canonicalDec.Unmarshal(data, v)
}

// Metadata is the decoded protected-header metadata of a document.
type Metadata struct {
	// Type is the document type, one or more UUIDv4 values.
	Type []uuid.UUID
	// ID is the document identifier, UUIDv7. Fixed across versions.
	ID uuid.UUID
	// Ver is the document version, UUIDv7. First version has Ver == ID.
	Ver uuid.UUID

	ContentType     string
	ContentEncoding string

	Ref        DocumentRefs
	Template   DocumentRefs
	Reply      DocumentRefs
	Parameters DocumentRefs

	// Section is a JSON pointer into the referenced document.
	Section string
	// Collaborators holds signer short IDs allowed to publish new versions.
	Collaborators []string
	Revocations   *Revocations
	Chain         *Chain
}

// PrimaryType returns the first (defining) type UUID.
func (m *Metadata) PrimaryType() uuid.UUID {
	if len(m.Type) == 0 {
		return uuid.Nil
	}
	return m.Type[0]
}

// IsFirstVersion reports whether this is the initial version of the id.
func (m *Metadata) IsFirstVersion() bool {
	return m.ID == m.Ver
}

// RefsByField returns the reference list stored under a link field name.
func (m *Metadata) RefsByField(field string) DocumentRefs {
	switch field {
	case labelRef:
		return m.Ref
	case labelTemplate:
		return m.Template
	case labelReply:
		return m.Reply
	case labelParameters:
		return m.Parameters
	case labelChain:
		if m.Chain != nil && m.Chain.Ref != nil {
			return DocumentRefs{*m.Chain.Ref}
		}
		return nil
	default:
		return nil
	}
}

// ToHeader renders the metadata as a protected header map ready for
// canonical CBOR encoding.
func (m *Metadata) ToHeader() (map[any]any, error) {
	if len(m.Type) == 0 {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedHeader)
	}
	if m.ContentType == "" {
		return nil, fmt.Errorf("%w: missing content type", ErrMalformedHeader)
	}
	hdr := map[any]any{
		coseContentTypeLabel: m.ContentType,
		labelID:              uuidx.Tagged(m.ID),
		labelVer:             uuidx.Tagged(m.Ver),
	}
	if len(m.Type) == 1 {
		hdr[labelType] = uuidx.Tagged(m.Type[0])
	} else {
		types := make([]any, len(m.Type))
		for i, t := range m.Type {
			types[i] = uuidx.Tagged(t)
		}
		hdr[labelType] = types
	}
	if m.ContentEncoding != "" {
		hdr[labelContentEncoding] = m.ContentEncoding
	}
	for label, refs := range map[string]DocumentRefs{
		labelRef:        m.Ref,
		labelTemplate:   m.Template,
		labelReply:      m.Reply,
		labelParameters: m.Parameters,
	} {
		if len(refs) > 0 {
			hdr[label] = refs.toWire()
		}
	}
	if m.Section != "" {
		hdr[labelSection] = m.Section
	}
	if len(m.Collaborators) > 0 {
		sorted := append([]string(nil), m.Collaborators...)
		sort.Strings(sorted)
		cs := make([]any, len(sorted))
		for i, c := range sorted {
			cs[i] = c
		}
		hdr[labelCollaborators] = cs
	}
	if m.Revocations != nil {
		hdr[labelRevocations] = m.Revocations.toWire()
	}
	if m.Chain != nil {
		hdr[labelChain] = m.Chain.toWire()
	}
	return hdr, nil
}

// FromHeader decodes a protected header map into Metadata. Every problem is
// recorded in the report; the returned metadata carries whatever fields
// decoded cleanly so later rules can still run.
func FromHeader(hdr map[any]any, rep *problems.Report) *Metadata {
	const context = "protected header decoding"
	m := &Metadata{}

	malformed := func(field string, err error) {
		rep.Add(problems.Entry{
			Kind:       problems.KindMalformedEnvelope,
			Field:      field,
			Constraint: err.Error(),
			Context:    context,
		})
	}

	if v, ok := hdr[coseContentTypeLabel]; ok {
		if s, ok := v.(string); ok {
			m.ContentType = s
		} else {
			malformed("content-type", fmt.Errorf("expected text, got %T", v))
		}
	} else {
		rep.MissingField("content-type", context)
	}

	if v, ok := hdr[any(labelContentEncoding)]; ok {
		if s, ok := v.(string); ok {
			m.ContentEncoding = s
		} else {
			malformed(labelContentEncoding, fmt.Errorf("expected text, got %T", v))
		}
	}

	if v, ok := hdr[any(labelType)]; ok {
		types, err := typeFromWire(v)
		if err != nil {
			malformed(labelType, err)
		} else {
			m.Type = types
		}
	} else {
		rep.MissingField(labelType, context)
	}

	if v, ok := hdr[any(labelID)]; ok {
		id, err := uuidx.FromTaggedV7(v)
		if err != nil {
			malformed(labelID, err)
		} else {
			m.ID = id
		}
	} else {
		rep.MissingField(labelID, context)
	}

	if v, ok := hdr[any(labelVer)]; ok {
		ver, err := uuidx.FromTaggedV7(v)
		if err != nil {
			malformed(labelVer, err)
		} else {
			m.Ver = ver
		}
	} else {
		rep.MissingField(labelVer, context)
	}

	for label, dst := range map[string]*DocumentRefs{
		labelRef:        &m.Ref,
		labelTemplate:   &m.Template,
		labelReply:      &m.Reply,
		labelParameters: &m.Parameters,
	} {
		v, ok := hdr[any(label)]
		if !ok {
			continue
		}
		refs, err := refsFromWire(v)
		if err != nil {
			malformed(label, err)
			continue
		}
		*dst = refs
	}

	if v, ok := hdr[any(labelSection)]; ok {
		if s, ok := v.(string); ok && s != "" {
			m.Section = s
		} else {
			malformed(labelSection, fmt.Errorf("expected non-empty text, got %T", v))
		}
	}

	if v, ok := hdr[any(labelCollaborators)]; ok {
		cs, err := collaboratorsFromWire(v)
		if err != nil {
			malformed(labelCollaborators, err)
		} else {
			m.Collaborators = cs
		}
	}

	if v, ok := hdr[any(labelRevocations)]; ok {
		rv, err := revocationsFromWire(v)
		if err != nil {
			malformed(labelRevocations, err)
		} else {
			m.Revocations = rv
		}
	}

	if v, ok := hdr[any(labelChain)]; ok {
		ch, err := chainFromWire(v)
		if err != nil {
			malformed(labelChain, err)
		} else {
			m.Chain = ch
		}
	}

	return m
}

func typeFromWire(v any) ([]uuid.UUID, error) {
	switch tv := v.(type) {
	case cbor.Tag:
		t, err := uuidx.FromTaggedV4(tv)
		if err != nil {
			return nil, err
		}
		return []uuid.UUID{t}, nil
	case []any:
		if len(tv) == 0 {
			return nil, errors.New("empty type list")
		}
		out := make([]uuid.UUID, 0, len(tv))
		for _, item := range tv {
			t, err := uuidx.FromTaggedV4(item)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected tagged UUID or array, got %T", v)
	}
}

func collaboratorsFromWire(v any) ([]string, error) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return nil, fmt.Errorf("expected non-empty array, got %T", v)
	}
	seen := make(map[string]struct{}, len(arr))
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := item.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("expected non-empty text entries, got %T", item)
		}
		if _, dup := seen[s]; dup {
			return nil, fmt.Errorf("duplicate collaborator %q", s)
		}
		if n := len(out); n > 0 && s < out[n-1] {
			return nil, fmt.Errorf("collaborators not sorted at %q", s)
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}
