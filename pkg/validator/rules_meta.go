package validator

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"signeddoc/pkg/doctypes"
	"signeddoc/pkg/envelope"
	"signeddoc/pkg/metadata"
	"signeddoc/pkg/problems"
	"signeddoc/pkg/uuidx"
)

// checkType resolves the document type definition. An unknown type stops
// validation: no further rule can run without a profile.
func (v *Validator) checkType(doc *envelope.Document, rep *problems.Report) (doctypes.TypeDef, bool) {
	t := doc.Meta.PrimaryType()
	if t == uuid.Nil {
		// Missing type was already reported during header decoding.
		return doctypes.TypeDef{}, false
	}
	def, ok := doctypes.Lookup(t)
	if !ok {
		rep.Add(problems.Entry{
			Kind:       problems.KindUnknownType,
			Field:      "type",
			Value:      t.String(),
			Constraint: "document type is not registered",
			Context:    "type lookup",
		})
		return doctypes.TypeDef{}, false
	}
	return def, true
}

// checkFieldRequirements compares the present metadata fields against the
// type definition: required fields must appear, excluded fields must not.
func (v *Validator) checkFieldRequirements(doc *envelope.Document, def doctypes.TypeDef, rep *problems.Report) {
	const context = "field requirements"
	m := doc.Meta

	refRules := []struct {
		field string
		rule  doctypes.RefRule
		refs  metadata.DocumentRefs
	}{
		{"ref", def.Ref, m.Ref},
		{"template", def.Template, m.Template},
		{"reply", def.Reply, m.Reply},
		{"parameters", def.Parameters, m.Parameters},
	}
	for _, rr := range refRules {
		switch {
		case rr.rule.Requirement == doctypes.Required && len(rr.refs) == 0:
			rep.MissingField(rr.field, context)
		case rr.rule.Requirement == doctypes.Excluded && len(rr.refs) > 0:
			rep.UnknownField(rr.field, rr.refs.String(), context)
		case !rr.rule.Multiple && len(rr.refs) > 1:
			rep.InvalidValue(rr.field, rr.refs.String(), "field allows a single reference", context)
		}
	}

	plain := []struct {
		field   string
		req     doctypes.Requirement
		present bool
		value   string
	}{
		{"section", def.Section, m.Section != "", m.Section},
		{"collaborators", def.Collaborators, len(m.Collaborators) > 0, ""},
		{"revocations", def.Revocations, m.Revocations != nil, ""},
		{"chain", def.Chain, m.Chain != nil, ""},
	}
	for _, p := range plain {
		switch {
		case p.req == doctypes.Required && !p.present:
			rep.MissingField(p.field, context)
		case p.req == doctypes.Excluded && p.present:
			rep.UnknownField(p.field, p.value, context)
		}
	}
}

// checkContent verifies the declared content type and encoding against the
// type definition and that the payload actually parses as declared.
func (v *Validator) checkContent(doc *envelope.Document, def doctypes.TypeDef, rep *problems.Report) {
	const context = "content"
	m := doc.Meta

	if m.ContentType != "" && m.ContentType != def.ContentType {
		rep.InvalidValue("content-type", m.ContentType,
			"content type must be "+def.ContentType, context)
	}
	if m.ContentEncoding != def.ContentEncoding {
		want := def.ContentEncoding
		if want == "" {
			want = "absent"
		}
		rep.InvalidValue("Content-Encoding", m.ContentEncoding,
			"content encoding must be "+want, context)
	}

	content, err := doc.Content()
	if err != nil {
		// A payload that failed to decode was reported at envelope
		// decoding; an absent payload is reported here.
		if len(doc.Payload()) == 0 {
			rep.MissingField("payload", context)
		}
		return
	}
	switch def.ContentType {
	case metadata.ContentTypeJSON:
		if !json.Valid(content) {
			rep.InvalidValue("payload", "", "payload is not valid JSON", context)
		}
	case metadata.ContentTypeCBOR:
		var decoded any
		if err := metadata.Unmarshal(content, &decoded); err != nil {
			rep.InvalidValue("payload", "", "payload is not valid CBOR", context)
		}
	}
}

// checkVersioning enforces the id/ver ordering rules: ver never precedes
// id, a non-first version requires the first version to exist, and a new
// version must advance past the latest accepted one.
func (v *Validator) checkVersioning(ctx context.Context, doc *envelope.Document, rep *problems.Report) error {
	const context = "versioning"
	m := doc.Meta
	if m.ID == uuid.Nil || m.Ver == uuid.Nil {
		return nil
	}

	if uuidx.Compare(m.Ver, m.ID) < 0 {
		rep.InvalidValue("ver", m.Ver.String(), "ver must not precede id", context)
		return nil
	}

	ts := uuidx.Time(m.Ver)
	now := v.opts.now()
	if v.opts.FutureThreshold > 0 && ts.After(now.Add(v.opts.FutureThreshold)) {
		rep.InvalidValue("ver", m.Ver.String(), "version timestamp is too far in the future", context)
	}
	if v.opts.PastThreshold > 0 && ts.Before(now.Add(-v.opts.PastThreshold)) {
		rep.InvalidValue("ver", m.Ver.String(), "version timestamp is too far in the past", context)
	}

	if !m.IsFirstVersion() {
		first, err := v.docs.GetFirst(ctx, m.ID)
		if err != nil {
			if unavailable(rep, "id", err) {
				return nil
			}
			return err
		}
		if first == nil {
			rep.InvalidValue("id", m.ID.String(), "document id has no accepted first version", context)
		}
	}

	latest, err := v.docs.GetLatest(ctx, m.ID)
	if err != nil {
		if unavailable(rep, "id", err) {
			return nil
		}
		return err
	}
	if latest != nil && uuidx.Compare(m.Ver, latest.Meta.Ver) <= 0 {
		rep.InvalidValue("ver", m.Ver.String(),
			"ver must be greater than the latest accepted version "+latest.Meta.Ver.String(), context)
	}
	return nil
}
