// Package submission aggregates proposal submission actions. A proposal
// version counts as submitted only when the required signers have each
// published a final-status action referencing that exact version; any
// signer's later action retracts an earlier one.
package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"signeddoc/pkg/doctypes"
	"signeddoc/pkg/envelope"
	"signeddoc/pkg/store"
	"signeddoc/pkg/uuidx"
)

// Status is the submission state declared by one action.
type Status string

const (
	// StatusDraft marks the proposal version as a work in progress.
	StatusDraft Status = "draft"
	// StatusFinal marks the proposal version as submitted.
	StatusFinal Status = "final"
	// StatusHide withdraws the proposal version from display.
	StatusHide Status = "hide"
)

var ErrMalformedAction = errors.New("malformed submission action payload")

// actionBody is the JSON payload of a submission action.
type actionBody struct {
	Action Status `json:"action"`
}

// StatusOf decodes the status declared by a submission action document.
func StatusOf(action *envelope.Document) (Status, error) {
	content, err := action.Content()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}
	var body actionBody
	if err := json.Unmarshal(content, &body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}
	switch body.Action {
	case StatusDraft, StatusFinal, StatusHide:
		return body.Action, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrMalformedAction, body.Action)
	}
}

// CountingMode selects whose final action is required for submission.
type CountingMode int

const (
	// CountFinalSigners requires a final action from every author of the
	// proposal version itself.
	CountFinalSigners CountingMode = iota
	// CountAllCollaborators additionally requires a final action from
	// every listed collaborator.
	CountAllCollaborators
)

func (m CountingMode) String() string {
	if m == CountAllCollaborators {
		return "all-collaborators"
	}
	return "final-signers"
}

// ParseCountingMode decodes a mode from its configuration name.
func ParseCountingMode(s string) (CountingMode, error) {
	switch s {
	case "", CountFinalSigners.String():
		return CountFinalSigners, nil
	case CountAllCollaborators.String():
		return CountAllCollaborators, nil
	default:
		return 0, fmt.Errorf("unknown counting mode %q", s)
	}
}

// Aggregator answers submission-state queries over the document store.
type Aggregator struct {
	docs store.DocumentProvider
	mode CountingMode
}

func New(docs store.DocumentProvider, mode CountingMode) *Aggregator {
	return &Aggregator{docs: docs, mode: mode}
}

// IsFinal reports whether the given proposal version is submitted: every
// required signer's newest action referencing it must declare final.
func (a *Aggregator) IsFinal(ctx context.Context, proposal *envelope.Document) (bool, error) {
	latest, err := a.latestActions(ctx, proposal)
	if err != nil {
		return false, err
	}

	required := proposal.AuthorShortIDs()
	if a.mode == CountAllCollaborators {
		required = append(required, proposal.Meta.Collaborators...)
	}
	if len(required) == 0 {
		return false, nil
	}

	seen := make(map[string]struct{}, len(required))
	for _, who := range required {
		if _, dup := seen[who]; dup {
			continue
		}
		seen[who] = struct{}{}
		action, ok := latest[who]
		if !ok {
			return false, nil
		}
		status, err := StatusOf(action)
		if err != nil || status != StatusFinal {
			return false, nil
		}
	}
	return true, nil
}

// latestActions returns the newest submission action per signer short ID
// referencing the exact proposal version.
func (a *Aggregator) latestActions(ctx context.Context, proposal *envelope.Document) (map[string]*envelope.Document, error) {
	actions, err := a.docs.ListByType(ctx, doctypes.ProposalSubmissionAction)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]*envelope.Document)
	for _, action := range actions {
		if len(action.Meta.Ref) == 0 {
			continue
		}
		ref := action.Meta.Ref[0]
		if ref.ID != proposal.Meta.ID || ref.Ver != proposal.Meta.Ver {
			continue
		}
		for _, who := range action.AuthorShortIDs() {
			if cur, ok := latest[who]; !ok || uuidx.Compare(action.Meta.Ver, cur.Meta.Ver) > 0 {
				latest[who] = action
			}
		}
	}
	return latest, nil
}
