package validator

import (
	"context"
	"fmt"

	"signeddoc/pkg/doctypes"
	"signeddoc/pkg/envelope"
	"signeddoc/pkg/problems"
)

// checkSignatures verifies every signature against a registered key,
// checks the signer roles against the type definition, and enforces
// ownership: a first version has exactly one author, later versions are
// published by the original author or by collaborators listed in the
// latest accepted version.
func (v *Validator) checkSignatures(ctx context.Context, doc *envelope.Document, def doctypes.TypeDef, rep *problems.Report) error {
	const context = "signer authorization"

	sigs := doc.Signatures()
	if len(sigs) == 0 {
		rep.Add(problems.Entry{
			Kind:       problems.KindUnauthorized,
			Constraint: "document is unsigned",
			Context:    context,
		})
		return nil
	}

	for i, sig := range sigs {
		where := fmt.Sprintf("%s, signature [%d]", context, i)

		pk, err := v.keys.RegisteredKey(ctx, sig.KeyID)
		if err != nil {
			if unavailable(rep, "kid", err) {
				continue
			}
			return err
		}
		if pk == nil {
			rep.Add(problems.Entry{
				Kind:       problems.KindUnauthorized,
				Field:      "kid",
				Value:      sig.KeyID.ShortID(),
				Constraint: "signing key is not registered",
				Context:    where,
			})
			continue
		}
		if err := doc.VerifySignature(sig, pk); err != nil {
			rep.Add(problems.Entry{
				Kind:       problems.KindUnauthorized,
				Field:      "signature",
				Value:      sig.KeyID.ShortID(),
				Constraint: err.Error(),
				Context:    where,
			})
			continue
		}
		if !def.AllowsRole(sig.KeyID.Role) {
			rep.Add(problems.Entry{
				Kind:       problems.KindUnauthorized,
				Field:      "kid",
				Value:      sig.KeyID.Role.String(),
				Constraint: "signer role may not publish this document type",
				Context:    where,
			})
		}
	}

	return v.checkOwnership(ctx, doc, def, rep)
}

func (v *Validator) checkOwnership(ctx context.Context, doc *envelope.Document, def doctypes.TypeDef, rep *problems.Report) error {
	const context = "ownership"
	authors := doc.AuthorShortIDs()

	if doc.Meta.IsFirstVersion() {
		if len(authors) > 1 {
			rep.Add(problems.Entry{
				Kind:       problems.KindUnauthorized,
				Constraint: "first version must be signed by a single author",
				Context:    context,
			})
		}
		return nil
	}

	first, err := v.docs.GetFirst(ctx, doc.Meta.ID)
	if err != nil {
		if unavailable(rep, "id", err) {
			return nil
		}
		return err
	}
	if first == nil {
		// Missing first version was already reported by the versioning
		// rule; ownership cannot be decided without it.
		return nil
	}

	allowed := make(map[string]struct{})
	for _, a := range first.AuthorShortIDs() {
		allowed[a] = struct{}{}
	}
	if def.CollaboratorUpdate {
		latest, err := v.docs.GetLatest(ctx, doc.Meta.ID)
		if err != nil {
			if unavailable(rep, "id", err) {
				return nil
			}
			return err
		}
		if latest != nil {
			for _, c := range latest.Meta.Collaborators {
				allowed[c] = struct{}{}
			}
		}
	}

	for _, a := range authors {
		if _, ok := allowed[a]; !ok {
			rep.Add(problems.Entry{
				Kind:       problems.KindUnauthorized,
				Field:      "kid",
				Value:      a,
				Constraint: "signer is neither the original author nor a listed collaborator",
				Context:    context,
			})
		}
	}
	return nil
}
