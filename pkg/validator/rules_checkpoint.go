package validator

import (
	"bytes"
	"context"

	"github.com/google/uuid"

	"signeddoc/pkg/dochash"
	"signeddoc/pkg/doctypes"
	"signeddoc/pkg/envelope"
	"signeddoc/pkg/metadata"
	"signeddoc/pkg/problems"
	"signeddoc/pkg/smt"
	"signeddoc/pkg/uuidx"
)

// CheckpointBody is the CBOR payload of a contest ballot checkpoint. It
// commits to the accepted ballot set of the contest with a sparse Merkle
// tree: one leaf per ballot id, valued by the envelope hash of its latest
// accepted version. Rejected ballot ids are excluded from the tree.
type CheckpointBody struct {
	Stage      string   `cbor:"stage"`
	Root       []byte   `cbor:"smt-root"`
	Entries    uint64   `cbor:"smt-entries"`
	Rejections [][]byte `cbor:"rejections,omitempty"`
}

// checkCheckpoint recomputes the ballot commitment of a checkpoint and
// compares it against the committed root and leaf count.
func (v *Validator) checkCheckpoint(ctx context.Context, doc *envelope.Document, rep *problems.Report) error {
	const context = "ballot checkpoint"

	content, err := doc.Content()
	if err != nil {
		return nil
	}
	var body CheckpointBody
	if err := metadata.Unmarshal(content, &body); err != nil {
		rep.InvalidValue("payload", "", "checkpoint payload does not decode", context)
		return nil
	}
	if len(body.Root) != 32 {
		rep.InvalidValue("smt-root", "", "smt root must be 32 bytes", context)
		return nil
	}

	rejected := make(map[uuid.UUID]struct{}, len(body.Rejections))
	for _, raw := range body.Rejections {
		if len(raw) != 16 {
			rep.InvalidValue("rejections", "", "rejected ballot id must be 16 bytes", context)
			return nil
		}
		var id uuid.UUID
		copy(id[:], raw)
		rejected[id] = struct{}{}
	}

	if len(doc.Meta.Parameters) == 0 {
		// Missing parameters was already reported; the contest scope is
		// needed to select ballots.
		return nil
	}
	root, entries, err := v.ComputeCheckpoint(ctx, doc.Meta.Parameters[0].ID, rejected)
	if err != nil {
		if unavailable(rep, "payload", err) {
			return nil
		}
		return err
	}

	if !bytes.Equal(body.Root, root[:]) {
		rep.Add(problems.Entry{
			Kind:       problems.KindHashMismatch,
			Field:      "smt-root",
			Constraint: "committed root does not match the recomputed ballot tree",
			Context:    context,
		})
	}
	if body.Entries != uint64(entries) {
		rep.Add(problems.Entry{
			Kind:       problems.KindMetadataViolation,
			Field:      "smt-entries",
			Constraint: "committed leaf count does not match the accepted ballot set",
			Context:    context,
		})
	}
	return nil
}

// ComputeCheckpoint builds the sparse Merkle tree over the latest accepted
// version of every ballot in the contest, excluding rejected ballot ids,
// and returns its root and leaf count.
func (v *Validator) ComputeCheckpoint(ctx context.Context, contest uuid.UUID, rejected map[uuid.UUID]struct{}) ([32]byte, int, error) {
	ballots, err := v.docs.ListByType(ctx, doctypes.ContestBallot)
	if err != nil {
		return [32]byte{}, 0, err
	}

	latest := make(map[uuid.UUID]*envelope.Document)
	for _, b := range ballots {
		if len(b.Meta.Parameters) == 0 || b.Meta.Parameters[0].ID != contest {
			continue
		}
		if _, out := rejected[b.Meta.ID]; out {
			continue
		}
		if cur, ok := latest[b.Meta.ID]; !ok || uuidx.Compare(b.Meta.Ver, cur.Meta.Ver) > 0 {
			latest[b.Meta.ID] = b
		}
	}

	tree := smt.New()
	for id, b := range latest {
		sum := dochash.Sum(b.Bytes())
		tree.Insert(smt.KeyOf(id[:]), sum[:])
	}
	return tree.Root(), tree.Len(), nil
}
