package validator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"signeddoc/pkg/dochash"
	"signeddoc/pkg/doctypes"
	"signeddoc/pkg/envelope"
	"signeddoc/pkg/problems"
	"signeddoc/pkg/uuidx"
)

// checkChain validates the chain link: a head carries height zero and no
// predecessor, every later link points at the accepted predecessor with
// matching id, type and parameters, a strictly greater version and a height
// exactly one above it. No predecessor may gain a second successor.
func (v *Validator) checkChain(ctx context.Context, doc *envelope.Document, def doctypes.TypeDef, rep *problems.Report) error {
	const context = "chain"
	ch := doc.Meta.Chain
	if ch == nil {
		return nil
	}

	broken := func(constraint string, value string) {
		rep.Add(problems.Entry{
			Kind:       problems.KindChainBroken,
			Field:      "chain",
			Value:      value,
			Constraint: constraint,
			Context:    context,
		})
	}

	if len(doc.Meta.Collaborators) > 0 {
		broken("chained documents cannot have collaborators", "")
	}

	if ch.Ref == nil {
		if ch.Height != 0 {
			broken(fmt.Sprintf("chain head must have height 0, got %d", ch.Height), "")
		}
		return nil
	}
	if ch.Height == 0 {
		broken("height 0 cannot have a predecessor", ch.Ref.Key())
		return nil
	}

	pred, err := v.docs.GetDocument(ctx, *ch.Ref)
	if err != nil {
		if unavailable(rep, "chain", err) {
			return nil
		}
		return err
	}
	if pred == nil {
		broken("chain predecessor is not accepted", ch.Ref.Key())
		return nil
	}

	if err := dochash.VerifyLocator(ch.Ref.Locator, pred.Bytes()); err != nil {
		rep.Add(problems.Entry{
			Kind:       problems.KindHashMismatch,
			Field:      "chain",
			Value:      ch.Ref.Key(),
			Constraint: err.Error(),
			Context:    context,
		})
		return nil
	}

	if pred.Meta.ID != doc.Meta.ID {
		broken("chain predecessor belongs to a different document id", pred.Meta.ID.String())
	}
	if pred.Meta.PrimaryType() != doc.Meta.PrimaryType() {
		broken("chain predecessor has a different document type", pred.Meta.PrimaryType().String())
	}
	if uuidx.Compare(doc.Meta.Ver, pred.Meta.Ver) <= 0 {
		broken("chained version must be greater than its predecessor", doc.Meta.Ver.String())
	}
	switch {
	case pred.Meta.Chain == nil:
		broken("chain predecessor is not chained", ch.Ref.Key())
	case pred.Meta.Chain.Height+1 != ch.Height:
		broken(fmt.Sprintf("height must be %d, got %d", pred.Meta.Chain.Height+1, ch.Height), "")
	}
	if !sameParameters(doc, pred) {
		broken("chain predecessor has different parameters", "")
	}

	// Two candidates with equal ver both pass this check; the store's
	// unique index on (chain_pred_id, chain_pred_ver) accepts only one.
	succ, err := v.docs.ChainSuccessor(ctx, ch.Ref.ID, ch.Ref.Ver)
	if err != nil {
		if unavailable(rep, "chain", err) {
			return nil
		}
		return err
	}
	if succ != nil && succ.Meta.Ver != doc.Meta.Ver {
		broken("chain predecessor already has a successor", succ.Meta.Ver.String())
	}
	return nil
}

// VerifyChain re-walks an accepted chain from the latest version of the
// given document back to its head and re-checks every link. A single broken
// link invalidates the whole chain, not only the version that introduced it.
func (v *Validator) VerifyChain(ctx context.Context, id uuid.UUID) (Decision, error) {
	rep := problems.New()
	broken := func(constraint string, value string) {
		rep.Add(problems.Entry{
			Kind:       problems.KindChainBroken,
			Field:      "chain",
			Value:      value,
			Constraint: constraint,
			Context:    "chain walk",
		})
	}

	doc, err := v.docs.GetLatest(ctx, id)
	if err != nil {
		if unavailable(rep, "chain", err) {
			return decision(rep), nil
		}
		return Decision{}, err
	}
	if doc == nil {
		broken("document has no accepted versions", id.String())
		return decision(rep), nil
	}

	for {
		ch := doc.Meta.Chain
		if ch == nil {
			broken("accepted version is not chained", doc.Meta.Ver.String())
			return decision(rep), nil
		}
		if ch.Ref == nil {
			if ch.Height != 0 {
				broken(fmt.Sprintf("chain head must have height 0, got %d", ch.Height), doc.Meta.Ver.String())
			}
			return decision(rep), nil
		}
		if ch.Height == 0 {
			broken("height 0 cannot have a predecessor", ch.Ref.Key())
			return decision(rep), nil
		}

		pred, err := v.docs.GetDocument(ctx, *ch.Ref)
		if err != nil {
			if unavailable(rep, "chain", err) {
				return decision(rep), nil
			}
			return Decision{}, err
		}
		if pred == nil {
			broken("chain predecessor is not accepted", ch.Ref.Key())
			return decision(rep), nil
		}
		if err := dochash.VerifyLocator(ch.Ref.Locator, pred.Bytes()); err != nil {
			rep.Add(problems.Entry{
				Kind:       problems.KindHashMismatch,
				Field:      "chain",
				Value:      ch.Ref.Key(),
				Constraint: err.Error(),
				Context:    "chain walk",
			})
			return decision(rep), nil
		}
		if pred.Meta.ID != doc.Meta.ID || pred.Meta.PrimaryType() != doc.Meta.PrimaryType() {
			broken("chain predecessor identity mismatch", ch.Ref.Key())
			return decision(rep), nil
		}
		// Strictly decreasing versions terminate the walk.
		if uuidx.Compare(pred.Meta.Ver, doc.Meta.Ver) >= 0 {
			broken("chain versions must strictly increase", pred.Meta.Ver.String())
			return decision(rep), nil
		}
		if pred.Meta.Chain == nil || pred.Meta.Chain.Height+1 != ch.Height {
			broken(fmt.Sprintf("height gap below %d", ch.Height), ch.Ref.Key())
			return decision(rep), nil
		}
		doc = pred
	}
}

func sameParameters(a, b *envelope.Document) bool {
	if len(a.Meta.Parameters) != len(b.Meta.Parameters) {
		return false
	}
	for i := range a.Meta.Parameters {
		if a.Meta.Parameters[i].Key() != b.Meta.Parameters[i].Key() {
			return false
		}
	}
	return true
}
