package metadata

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"signeddoc/pkg/problems"
	"signeddoc/pkg/uuidx"
)

func testRef(t *testing.T) DocumentRef {
	t.Helper()
	return DocumentRef{
		ID:      uuidx.NewV7(),
		Ver:     uuidx.NewV7(),
		Locator: DocLocator{0x01, 0x55, 0xa0, 0xe4, 0x02, 0x20, 0x01},
	}
}

func testMeta(t *testing.T) *Metadata {
	t.Helper()
	id := uuidx.NewV7()
	return &Metadata{
		Type:            []uuid.UUID{uuid.New()},
		ID:              id,
		Ver:             id,
		ContentType:     ContentTypeJSON,
		ContentEncoding: EncodingBrotli,
		Ref:             DocumentRefs{testRef(t)},
		Parameters:      DocumentRefs{testRef(t)},
		Collaborators:   []string{"mainnet/abc", "mainnet/def"},
		Revocations:     &Revocations{Versions: []uuid.UUID{id}},
		Chain:           &Chain{Height: 1, Ref: &DocumentRef{ID: id, Ver: id, Locator: DocLocator{0x01}}},
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	want := testMeta(t)
	hdr, err := want.ToHeader()
	if err != nil {
		t.Fatalf("to header: %v", err)
	}
	raw, err := Marshal(hdr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[any]any
	if err := Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	rep := problems.New()
	got := FromHeader(decoded, rep)
	if rep.Problematic() {
		t.Fatalf("unexpected problems: %v", rep.Entries())
	}
	if got.PrimaryType() != want.PrimaryType() || got.ID != want.ID || got.Ver != want.Ver {
		t.Fatalf("identity mismatch: %+v != %+v", got, want)
	}
	if got.ContentType != want.ContentType || got.ContentEncoding != want.ContentEncoding {
		t.Fatal("content headers mismatch")
	}
	if len(got.Ref) != 1 || got.Ref[0].Key() != want.Ref[0].Key() {
		t.Fatalf("ref mismatch: %s", got.Ref)
	}
	if len(got.Collaborators) != 2 {
		t.Fatalf("collaborators mismatch: %v", got.Collaborators)
	}
	if got.Revocations == nil || got.Revocations.All || len(got.Revocations.Versions) != 1 {
		t.Fatalf("revocations mismatch: %v", got.Revocations)
	}
	if got.Chain == nil || got.Chain.Height != 1 || got.Chain.Ref == nil {
		t.Fatalf("chain mismatch: %v", got.Chain)
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	hdr, err := testMeta(t).ToHeader()
	if err != nil {
		t.Fatalf("to header: %v", err)
	}
	a, err := Marshal(hdr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := Marshal(hdr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("canonical encoding is not deterministic")
	}
}

func TestFromHeaderMissingRequired(t *testing.T) {
	rep := problems.New()
	FromHeader(map[any]any{}, rep)
	if !rep.Problematic() {
		t.Fatal("expected problems for an empty header")
	}
	// content-type, type, id, ver all missing
	if got := len(rep.Entries()); got != 4 {
		t.Fatalf("expected 4 findings, got %d: %v", got, rep.Entries())
	}
}

func TestRefsSortedCheck(t *testing.T) {
	a := testRef(t)
	b := testRef(t)
	sorted := DocumentRefs{a, b}
	if err := sorted.checkSorted(); err != nil {
		t.Fatalf("v7-ordered refs must be sorted: %v", err)
	}
	unsorted := DocumentRefs{b, a}
	if err := unsorted.checkSorted(); !errors.Is(err, ErrUnsortedRefs) {
		t.Fatalf("expected unsorted error, got %v", err)
	}
}

func TestCollaboratorsFromWire(t *testing.T) {
	cs, err := collaboratorsFromWire([]any{"mainnet/abc", "mainnet/def"})
	if err != nil || len(cs) != 2 {
		t.Fatalf("sorted list: %v %v", cs, err)
	}
	if _, err := collaboratorsFromWire([]any{"mainnet/def", "mainnet/abc"}); err == nil {
		t.Fatal("unsorted collaborator list must be rejected")
	}
	if _, err := collaboratorsFromWire([]any{"mainnet/abc", "mainnet/abc"}); err == nil {
		t.Fatal("duplicate collaborator must be rejected")
	}
	if _, err := collaboratorsFromWire([]any{}); err == nil {
		t.Fatal("empty array must be rejected")
	}
}

func TestRevocationsFromWire(t *testing.T) {
	if _, err := revocationsFromWire(false); err == nil {
		t.Fatal("`false` must be rejected")
	}
	rv, err := revocationsFromWire(true)
	if err != nil || !rv.All {
		t.Fatalf("`true` must revoke all, got %v err %v", rv, err)
	}
	v1 := uuidx.NewV7()
	v2 := uuidx.NewV7()
	rv, err = revocationsFromWire([]any{uuidx.Tagged(v1), uuidx.Tagged(v2)})
	if err != nil {
		t.Fatalf("sorted list: %v", err)
	}
	if !rv.Revokes(v1) || rv.Revokes(uuidx.NewV7()) {
		t.Fatal("revokes lookup broken")
	}
	if _, err := revocationsFromWire([]any{uuidx.Tagged(v2), uuidx.Tagged(v1)}); err == nil {
		t.Fatal("unsorted revocation list must be rejected")
	}
}

func TestChainFromWire(t *testing.T) {
	c, err := chainFromWire([]any{int64(0)})
	if err != nil || c.Height != 0 || c.Ref != nil {
		t.Fatalf("head decode: %v %v", c, err)
	}
	ref := testRef(t)
	c, err = chainFromWire([]any{int64(3), ref.toWire()})
	if err != nil || c.Height != 3 || c.Ref == nil {
		t.Fatalf("link decode: %v %v", c, err)
	}
	if _, err := chainFromWire([]any{int64(-1)}); err == nil {
		t.Fatal("negative height must be rejected")
	}
	if _, err := chainFromWire([]any{}); err == nil {
		t.Fatal("empty array must be rejected")
	}
}
