// Package validator is the document rule engine. It checks a decoded
// signed document against its type definition, resolves every reference
// through the document store, verifies signatures and chain links, and
// aggregates all findings into a single decision.
package validator

import (
	"context"
	"errors"
	"time"

	"signeddoc/pkg/doctypes"
	"signeddoc/pkg/envelope"
	"signeddoc/pkg/problems"
	"signeddoc/pkg/store"
)

// Options tunes validation behavior.
type Options struct {
	// FutureThreshold bounds how far ahead of the current time a version
	// timestamp may be. Zero disables the check.
	FutureThreshold time.Duration
	// PastThreshold bounds how far behind the current time a version
	// timestamp may be. Zero disables the check.
	PastThreshold time.Duration
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Validator validates signed documents against the accepted document set.
type Validator struct {
	docs store.DocumentProvider
	keys store.KeyProvider
	opts Options
}

// New returns a validator reading accepted documents and registered keys
// from the given providers.
func New(docs store.DocumentProvider, keys store.KeyProvider, opts Options) *Validator {
	return &Validator{docs: docs, keys: keys, opts: opts}
}

// Decision is the outcome of validating one document.
type Decision struct {
	// Accepted is true when no rule recorded a finding.
	Accepted bool `json:"accepted"`
	// Indeterminate is true when a transient store failure prevented a
	// definite outcome. An indeterminate document is never accepted but
	// may pass on retry.
	Indeterminate bool             `json:"indeterminate"`
	Problems      []problems.Entry `json:"problems,omitempty"`
}

// ValidateBytes decodes raw envelope bytes and validates the document.
// Undecodable bytes yield a rejection, not an error.
func (v *Validator) ValidateBytes(ctx context.Context, raw []byte) (Decision, *envelope.Document, error) {
	rep := problems.New()
	doc, err := envelope.Decode(raw, rep)
	if err != nil {
		rep.Add(problems.Entry{
			Kind:       problems.KindMalformedEnvelope,
			Constraint: err.Error(),
			Context:    "envelope decoding",
		})
		return decision(rep), nil, nil
	}
	dec, err := v.validate(ctx, doc, rep)
	return dec, doc, err
}

// Validate checks a decoded document. The returned error is reserved for
// infrastructure failures (context cancellation, broken store); every
// document problem lands in the decision instead.
func (v *Validator) Validate(ctx context.Context, doc *envelope.Document) (Decision, error) {
	return v.validate(ctx, doc, problems.New())
}

func (v *Validator) validate(ctx context.Context, doc *envelope.Document, rep *problems.Report) (Decision, error) {
	def, known := v.checkType(doc, rep)
	if !known {
		return decision(rep), nil
	}

	v.checkFieldRequirements(doc, def, rep)
	v.checkContent(doc, def, rep)
	if err := v.checkVersioning(ctx, doc, rep); err != nil {
		return Decision{}, err
	}
	if err := v.checkReferences(ctx, doc, def, rep); err != nil {
		return Decision{}, err
	}
	if err := v.checkRevocations(ctx, doc, rep); err != nil {
		return Decision{}, err
	}
	if err := v.checkSignatures(ctx, doc, def, rep); err != nil {
		return Decision{}, err
	}
	if err := v.checkChain(ctx, doc, def, rep); err != nil {
		return Decision{}, err
	}
	if doc.Meta.PrimaryType() == doctypes.ContestBallotCheckpoint {
		if err := v.checkCheckpoint(ctx, doc, rep); err != nil {
			return Decision{}, err
		}
	}
	return decision(rep), nil
}

func decision(rep *problems.Report) Decision {
	return Decision{
		Accepted:      !rep.Problematic(),
		Indeterminate: rep.HasKind(problems.KindReferenceUnavailable),
		Problems:      rep.Entries(),
	}
}

// unavailable converts a transient store failure into an indeterminate
// finding. Any other error is an infrastructure failure for the caller.
func unavailable(rep *problems.Report, field string, err error) bool {
	if errors.Is(err, store.ErrUnavailable) {
		rep.Add(problems.Entry{
			Kind:       problems.KindReferenceUnavailable,
			Field:      field,
			Constraint: err.Error(),
			Context:    "reference resolution",
		})
		return true
	}
	return false
}
