package validator

import (
	"context"

	"signeddoc/pkg/envelope"
	"signeddoc/pkg/problems"
	"signeddoc/pkg/uuidx"
)

// checkRevocations enforces revocation monotonicity: a revocation list only
// names prior versions, and once every version was revoked with `true` no
// later version may narrow that back to a list.
func (v *Validator) checkRevocations(ctx context.Context, doc *envelope.Document, rep *problems.Report) error {
	const context = "revocations"
	rv := doc.Meta.Revocations
	if rv == nil {
		return nil
	}

	for _, ver := range rv.Versions {
		if uuidx.Compare(ver, doc.Meta.Ver) >= 0 {
			rep.InvalidValue("revocations", ver.String(),
				"only prior versions can be revoked", context)
		}
	}

	latest, err := v.docs.GetLatest(ctx, doc.Meta.ID)
	if err != nil {
		if unavailable(rep, "revocations", err) {
			return nil
		}
		return err
	}
	if latest != nil && latest.Meta.Revocations != nil &&
		latest.Meta.Revocations.All && !rv.All {
		rep.Add(problems.Entry{
			Kind:       problems.KindMetadataViolation,
			Field:      "revocations",
			Constraint: "all versions were revoked permanently and cannot be reinstated",
			Context:    context,
		})
	}
	return nil
}
