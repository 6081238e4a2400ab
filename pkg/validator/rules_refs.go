package validator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"signeddoc/pkg/dochash"
	"signeddoc/pkg/doctypes"
	"signeddoc/pkg/envelope"
	"signeddoc/pkg/metadata"
	"signeddoc/pkg/problems"
	"signeddoc/pkg/schema"
)

// maxHierarchyDepth bounds the parameters ancestor walk. The real
// hierarchy is at most brand > campaign > category > contest.
const maxHierarchyDepth = 8

// checkReferences resolves every link field: the referenced version must
// exist, its locator must match the stored envelope bytes, its type must be
// allowed, and its parameters scope must agree with this document's.
// Template references additionally validate the payload against the
// template's JSON schema.
func (v *Validator) checkReferences(ctx context.Context, doc *envelope.Document, def doctypes.TypeDef, rep *problems.Report) error {
	fields := []struct {
		field string
		rule  doctypes.RefRule
		refs  metadata.DocumentRefs
	}{
		{"ref", def.Ref, doc.Meta.Ref},
		{"template", def.Template, doc.Meta.Template},
		{"reply", def.Reply, doc.Meta.Reply},
		{"parameters", def.Parameters, doc.Meta.Parameters},
	}
	for _, f := range fields {
		for _, ref := range f.refs {
			resolved, err := v.resolve(ctx, f.field, f.rule, ref, rep)
			if err != nil {
				return err
			}
			if resolved == nil {
				continue
			}
			switch f.field {
			case "parameters":
				if err := v.checkParameterScope(ctx, ref, resolved, rep); err != nil {
					return err
				}
			default:
				if err := v.checkScopeAgreement(ctx, f.field, doc, resolved, rep); err != nil {
					return err
				}
				if f.field == "template" {
					v.checkTemplatePayload(doc, def, resolved, rep)
				}
				if f.field == "reply" {
					checkReplyTarget(doc, resolved, rep)
				}
			}
		}
	}
	return nil
}

// resolve fetches one referenced document and checks locator and type.
func (v *Validator) resolve(ctx context.Context, field string, rule doctypes.RefRule, ref metadata.DocumentRef, rep *problems.Report) (*envelope.Document, error) {
	const context = "reference resolution"

	resolved, err := v.docs.GetDocument(ctx, ref)
	if err != nil {
		if unavailable(rep, field, err) {
			return nil, nil
		}
		return nil, err
	}
	if resolved == nil {
		rep.Add(problems.Entry{
			Kind:       problems.KindReferenceNotFound,
			Field:      field,
			Value:      ref.Key(),
			Constraint: "referenced document version is not accepted",
			Context:    context,
		})
		return nil, nil
	}

	if err := dochash.VerifyLocator(ref.Locator, resolved.Bytes()); err != nil {
		kind := problems.KindHashMismatch
		if errors.Is(err, dochash.ErrInvalidLocator) {
			kind = problems.KindMalformedEnvelope
		}
		rep.Add(problems.Entry{
			Kind:       kind,
			Field:      field,
			Value:      ref.Key(),
			Constraint: err.Error(),
			Context:    context,
		})
		return nil, nil
	}

	if t := resolved.Meta.PrimaryType(); !rule.AllowsType(t) {
		rep.InvalidValue(field, ref.Key(),
			fmt.Sprintf("referenced document type %s is not allowed", t), context)
		return nil, nil
	}
	return resolved, nil
}

// checkReplyTarget requires a reply to stay on the document it discusses:
// the replied-to comment's ref must name the same id as this document's ref.
func checkReplyTarget(doc, resolved *envelope.Document, rep *problems.Report) {
	const context = "reply target"
	if len(resolved.Meta.Ref) == 0 {
		rep.MissingField("ref", context)
		return
	}
	if len(doc.Meta.Ref) == 0 {
		return
	}
	if resolved.Meta.Ref[0].ID != doc.Meta.Ref[0].ID {
		rep.InvalidValue("reply", resolved.Meta.Ref[0].ID.String(),
			"replied-to comment discusses a different document", context)
	}
}

// checkScopeAgreement requires a referenced document to live in the same
// parameters scope as this document, or in a transitive ancestor of it.
func (v *Validator) checkScopeAgreement(ctx context.Context, field string, doc, resolved *envelope.Document, rep *problems.Report) error {
	const context = "parameters scope"
	if len(doc.Meta.Parameters) == 0 || len(resolved.Meta.Parameters) == 0 {
		return nil
	}
	scope, err := v.parameterScope(ctx, doc.Meta.Parameters[0], rep)
	if err != nil || scope == nil {
		return err
	}
	want := resolved.Meta.Parameters[0].ID
	for _, id := range scope {
		if id == want {
			return nil
		}
	}
	rep.InvalidValue(field, resolved.Meta.Parameters[0].Key(),
		"referenced document belongs to a different parameters scope", context)
	return nil
}

// checkParameterScope walks the referenced parameters document's own
// ancestors and requires the walk to terminate at a brand root.
func (v *Validator) checkParameterScope(ctx context.Context, ref metadata.DocumentRef, resolved *envelope.Document, rep *problems.Report) error {
	const context = "parameters scope"

	cur := resolved
	for depth := 0; ; depth++ {
		if depth > maxHierarchyDepth {
			rep.InvalidValue("parameters", ref.Key(),
				"parameters hierarchy is too deep or cyclic", context)
			return nil
		}
		if len(cur.Meta.Parameters) == 0 {
			if cur.Meta.PrimaryType() != doctypes.BrandParameters {
				rep.InvalidValue("parameters", ref.Key(),
					"parameters hierarchy does not terminate at a brand root", context)
			}
			return nil
		}
		next, err := v.docs.GetDocument(ctx, cur.Meta.Parameters[0])
		if err != nil {
			if unavailable(rep, "parameters", err) {
				return nil
			}
			return err
		}
		if next == nil {
			rep.Add(problems.Entry{
				Kind:       problems.KindReferenceNotFound,
				Field:      "parameters",
				Value:      cur.Meta.Parameters[0].Key(),
				Constraint: "parameters ancestor is not accepted",
				Context:    context,
			})
			return nil
		}
		cur = next
	}
}

// parameterScope returns the ids of the document's parameters scope and
// every transitive ancestor, immediate scope first. A nil result means the
// walk could not complete; the cause is already in the report.
func (v *Validator) parameterScope(ctx context.Context, ref metadata.DocumentRef, rep *problems.Report) ([]uuid.UUID, error) {
	scope := []uuid.UUID{ref.ID}
	cur, err := v.docs.GetDocument(ctx, ref)
	if err != nil {
		if unavailable(rep, "parameters", err) {
			return nil, nil
		}
		return nil, err
	}
	for depth := 0; cur != nil && len(cur.Meta.Parameters) > 0; depth++ {
		if depth > maxHierarchyDepth {
			return nil, nil
		}
		parent := cur.Meta.Parameters[0]
		scope = append(scope, parent.ID)
		cur, err = v.docs.GetDocument(ctx, parent)
		if err != nil {
			if unavailable(rep, "parameters", err) {
				return nil, nil
			}
			return nil, err
		}
	}
	return scope, nil
}

// checkTemplatePayload validates the document payload against the schema
// carried by the resolved form template.
func (v *Validator) checkTemplatePayload(doc *envelope.Document, def doctypes.TypeDef, template *envelope.Document, rep *problems.Report) {
	const context = "template schema"
	if def.ContentType != metadata.ContentTypeJSON {
		return
	}
	content, err := doc.Content()
	if err != nil {
		return
	}
	schemaBytes, err := template.Content()
	if err != nil {
		rep.Add(problems.Entry{
			Kind:       problems.KindPayloadSchema,
			Field:      "template",
			Constraint: "template document has no schema payload",
			Context:    context,
		})
		return
	}
	if err := schema.Validate(schemaBytes, content); err != nil {
		rep.Add(problems.Entry{
			Kind:       problems.KindPayloadSchema,
			Field:      "payload",
			Constraint: err.Error(),
			Context:    context,
		})
	}
}
